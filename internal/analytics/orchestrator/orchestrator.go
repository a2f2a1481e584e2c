// Package orchestrator runs the two-phase function-calling protocol: a forced
// intent selection, intent execution, then a free-form answer conditioned on
// the result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"fds-analytics/internal/analytics/llm"
	apperrors "fds-analytics/internal/common/errors"
	"fds-analytics/internal/common/logger"
	"fds-analytics/internal/common/metrics"
	"fds-analytics/internal/common/observability"
	"fds-analytics/internal/models"
)

const (
	PhaseSelection = "selection"
	PhaseAnswer    = "answer"
)

const DefaultBackoff = 2 * time.Second

// ExecuteFunc runs one intent call.
type ExecuteFunc func(ctx context.Context, name string, args map[string]interface{}) (*models.ToolResult, error)

// Input is one user turn. History must already be bounded.
type Input struct {
	UserMessage       string
	History           []models.Turn
	SystemInstruction string
}

// Output is the outcome of one turn.
type Output struct {
	Answer        string
	IntentName    string
	Arguments     map[string]interface{}
	Result        *models.ToolResult
	ThinkingTrace []string
	// Degraded is set when the model produced no answer text.
	Degraded bool
	Attempts int
}

// Orchestrator holds no per-turn state; each Generate call is independent.
type Orchestrator struct {
	model   llm.Model
	backoff time.Duration
	logger  logger.Logger
}

func New(model llm.Model, backoff time.Duration, log logger.Logger) *Orchestrator {
	if backoff < 0 {
		backoff = DefaultBackoff
	}
	return &Orchestrator{
		model:   model,
		backoff: backoff,
		logger:  log.WithFields(map[string]interface{}{"component": "orchestrator"}),
	}
}

// Generate answers one user message. A rate limit in either phase waits the
// backoff and retries the whole sequence once.
func (o *Orchestrator) Generate(ctx context.Context, in Input, catalog []llm.FunctionDeclaration, execute ExecuteFunc) (*Output, error) {
	if strings.TrimSpace(in.UserMessage) == "" {
		return nil, apperrors.NewEmptyUserMessageError()
	}

	ctx, span := observability.Tracer("fds-analytics/orchestrator").Start(ctx, "orchestrator.generate")
	defer span.End()

	out, err := o.sequence(ctx, in, catalog, execute)
	attempts := 1
	if err != nil && apperrors.IsCode(err, apperrors.ErrCodeModelRateLimited) {
		metrics.ModelRetries.Inc()
		o.logger.Warn("model rate limited, retrying turn after backoff", map[string]interface{}{
			"backoffMs": o.backoff.Milliseconds(),
		})

		timer := time.NewTimer(o.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			span.SetStatus(codes.Error, "cancelled during backoff")
			return nil, err
		case <-timer.C:
		}

		attempts++
		out, err = o.sequence(ctx, in, catalog, execute)
	}
	span.SetAttributes(attribute.Int("orchestrator.attempts", attempts))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.AsStandardError(err).Code))
		return nil, err
	}
	out.Attempts = attempts
	span.SetAttributes(
		attribute.String("orchestrator.intent", out.IntentName),
		attribute.Bool("orchestrator.degraded", out.Degraded),
	)
	return out, nil
}

// sequence runs phase A, execution and phase B once. The turn list is built
// explicitly for each phase.
func (o *Orchestrator) sequence(ctx context.Context, in Input, catalog []llm.FunctionDeclaration, execute ExecuteFunc) (*Output, error) {
	contents := make([]llm.Content, 0, len(in.History)+3)
	for _, t := range in.History {
		contents = append(contents, llm.TextContent(llm.Role(t.Role), t.Content))
	}
	contents = append(contents, llm.TextContent(llm.RoleUser, in.UserMessage))

	selection, err := o.call(ctx, PhaseSelection, llm.Request{
		System:    in.SystemInstruction,
		Contents:  contents,
		Functions: catalog,
		Mode:      llm.ModeForced,
	})
	if err != nil {
		return nil, err
	}

	call, callContent, err := selectCall(selection, catalog)
	if err != nil {
		o.logger.Error("intent selection protocol violation", map[string]interface{}{
			"error":        err.Error(),
			"finishReason": selection.FinishReason,
		})
		return nil, err
	}
	trace := selection.Thoughts()

	o.logger.Info("intent selected", map[string]interface{}{
		"intent": call.Name,
		"args":   call.Args,
	})

	result, err := execute(ctx, call.Name, call.Args)
	if err != nil {
		return nil, err
	}

	contents = append(contents, callContent, llm.Content{
		Role: llm.RoleUser,
		Parts: []llm.Part{{FunctionResponse: &llm.FunctionResponse{
			ID:       call.ID,
			Name:     call.Name,
			Response: result.ToMap(),
		}}},
	})

	answer, err := o.call(ctx, PhaseAnswer, llm.Request{
		System:    in.SystemInstruction,
		Contents:  contents,
		Functions: catalog,
		Mode:      llm.ModeAuto,
	})
	if err != nil {
		return nil, err
	}

	for _, extra := range answer.FunctionCalls() {
		o.logger.Warn("ignoring function call in answer phase", map[string]interface{}{
			"intent": extra.Name,
		})
	}
	trace = append(trace, answer.Thoughts()...)
	if len(trace) > 0 {
		o.logger.Debug("model reasoning", map[string]interface{}{
			"intent":   call.Name,
			"thoughts": trace,
		})
	}

	text := answer.Text()
	degraded := strings.TrimSpace(text) == ""
	if degraded {
		metrics.EmptyAnswers.Inc()
		o.logger.Warn("model returned an empty answer", map[string]interface{}{
			"intent":       call.Name,
			"finishReason": answer.FinishReason,
		})
	}

	return &Output{
		Answer:        text,
		IntentName:    call.Name,
		Arguments:     call.Args,
		Result:        result,
		ThinkingTrace: trace,
		Degraded:      degraded,
	}, nil
}

func (o *Orchestrator) call(ctx context.Context, phase string, req llm.Request) (*llm.Response, error) {
	resp, err := o.model.Generate(ctx, req)
	switch {
	case err == nil:
		metrics.ModelCalls.WithLabelValues(phase, "ok").Inc()
		return resp, nil
	case errors.Is(err, llm.ErrRateLimited):
		metrics.ModelCalls.WithLabelValues(phase, "rate_limited").Inc()
		return nil, apperrors.NewModelRateLimitedError(phase, err)
	default:
		metrics.ModelCalls.WithLabelValues(phase, "error").Inc()
		return nil, apperrors.NewModelCallFailedError(phase, err)
	}
}

// selectCall returns the first function call of a forced turn and the model
// content to replay with it. Only the executed call is replayed; its
// signature and any non-call parts are kept unchanged.
func selectCall(resp *llm.Response, catalog []llm.FunctionDeclaration) (llm.FunctionCall, llm.Content, error) {
	calls := resp.FunctionCalls()
	if len(calls) == 0 {
		return llm.FunctionCall{}, llm.Content{}, apperrors.NewNoIntentSelectedError(
			fmt.Sprintf("finish reason %q, %d parts", resp.FinishReason, len(resp.Content.Parts)))
	}
	chosen := calls[0]

	known := false
	for _, d := range catalog {
		if d.Name == chosen.Name {
			known = true
			break
		}
	}
	if !known {
		return llm.FunctionCall{}, llm.Content{}, apperrors.NewUnknownIntentError(chosen.Name)
	}
	if chosen.Args == nil {
		chosen.Args = map[string]interface{}{}
	}

	replay := llm.Content{Role: llm.RoleModel}
	seen := false
	for _, p := range resp.Content.Parts {
		if p.FunctionCall != nil {
			if seen {
				continue
			}
			seen = true
		}
		replay.Parts = append(replay.Parts, p)
	}
	return chosen, replay, nil
}
