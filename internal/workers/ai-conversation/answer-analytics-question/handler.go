// internal/workers/ai-conversation/answer-analytics-question/handler.go
package answeranalyticsquestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"fds-analytics/internal/analytics/llm"
	"fds-analytics/internal/analytics/orchestrator"
	"fds-analytics/internal/common/aws"
	apperrors "fds-analytics/internal/common/errors"
	"fds-analytics/internal/common/logger"
	"fds-analytics/internal/common/metrics"
	"fds-analytics/internal/models"
)

const (
	TaskType = "answer-analytics-question"
)

// DegradedAnswer replaces an empty model answer.
const DegradedAnswer = "I ran the analysis but couldn't put the result into words. Please try asking again."

type HistoryStore interface {
	GetHistory(ctx context.Context, threadID string) ([]models.Turn, error)
	Append(ctx context.Context, threadID string, turns ...models.Turn) error
}

type HistoryAssembler interface {
	Assemble(turns []models.Turn) []models.Turn
}

type InstructionBuilder interface {
	Build(ctx context.Context) (string, error)
}

type Generator interface {
	Generate(ctx context.Context, in orchestrator.Input, catalog []llm.FunctionDeclaration, execute orchestrator.ExecuteFunc) (*orchestrator.Output, error)
}

// TurnRecorder records per-turn telemetry.
type TurnRecorder interface {
	RecordTurn(ctx context.Context, duration time.Duration, status string)
}

// Dependencies wires the analytics core into the worker.
type Dependencies struct {
	Store        HistoryStore
	Assembler    HistoryAssembler
	Instructions InstructionBuilder
	Orchestrator Generator
	Catalog      []llm.FunctionDeclaration
	Execute      orchestrator.ExecuteFunc
	Alerter      aws.Alerter
	Turns        TurnRecorder
}

type Handler struct {
	config       *Config
	deps         Dependencies
	validate     *validator.Validate
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, deps Dependencies, log logger.Logger) *Handler {
	if deps.Alerter == nil {
		deps.Alerter = aws.NoopAlerter{}
	}
	log = log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:       config,
		deps:         deps,
		validate:     validator.New(),
		errorHandler: apperrors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, apperrors.NewInternalError(fmt.Errorf("parse input: %w", err)), start)
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err, start)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
}

// Execute answers one question. User-input and transient failures produce an
// Output carrying a safe message and the error code; protocol and internal
// failures are returned as errors.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	start := time.Now()
	log := h.logger.With(map[string]interface{}{
		"requestId": uuid.NewString(),
		"threadId":  input.ThreadID,
	})

	if err := h.validate.Struct(input); err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("invalid job variables: %w", err))
	}

	output, err := h.answer(ctx, input, log)
	if err == nil {
		h.recordTurn(ctx, start, "ok")
		return output, nil
	}

	stdErr := apperrors.AsStandardError(err)
	switch stdErr.Category {
	case apperrors.CategoryUserInput, apperrors.CategoryTransient:
		log.Warn("turn answered with error message", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
		})
		h.recordTurn(ctx, start, strings.ToLower(string(stdErr.Category)))
		return &Output{
			Answer:    apperrors.UserMessage(stdErr),
			ErrorCode: string(stdErr.Code),
		}, nil
	default:
		log.Error("turn failed", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"category":  string(stdErr.Category),
			"details":   stdErr.Details,
		})
		h.alert(ctx, input.ThreadID, stdErr, log)
		h.recordTurn(ctx, start, strings.ToLower(string(stdErr.Category)))
		return nil, stdErr
	}
}

func (h *Handler) answer(ctx context.Context, input *Input, log logger.Logger) (*Output, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, apperrors.NewEmptyUserMessageError()
	}

	stored, err := h.deps.Store.GetHistory(ctx, input.ThreadID)
	if err != nil {
		return nil, err
	}
	bounded := h.deps.Assembler.Assemble(stored)

	instruction, err := h.deps.Instructions.Build(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	userTurn := models.Turn{Role: models.RoleUser, Content: message}
	result, err := h.deps.Orchestrator.Generate(ctx, orchestrator.Input{
		UserMessage:       message,
		History:           bounded,
		SystemInstruction: instruction,
	}, h.deps.Catalog, h.deps.Execute)
	if err != nil {
		if cat := apperrors.CategoryOf(err); cat == apperrors.CategoryUserInput || cat == apperrors.CategoryTransient {
			h.persist(ctx, input.ThreadID, log, userTurn)
		}
		return nil, err
	}

	answer := result.Answer
	if result.Degraded {
		answer = DegradedAnswer
	}
	turns := []models.Turn{userTurn}
	if !result.Degraded {
		turns = append(turns, models.Turn{Role: models.RoleModel, Content: answer})
	}
	h.persist(ctx, input.ThreadID, log, turns...)

	log.Info("turn answered", map[string]interface{}{
		"intent":       result.IntentName,
		"degraded":     result.Degraded,
		"attempts":     result.Attempts,
		"historyTurns": len(bounded),
	})
	return &Output{
		Answer:   answer,
		Intent:   result.IntentName,
		Degraded: result.Degraded,
	}, nil
}

// persist stores turns. A store failure after the answer exists is logged only.
func (h *Handler) persist(ctx context.Context, threadID string, log logger.Logger, turns ...models.Turn) {
	if err := h.deps.Store.Append(ctx, threadID, turns...); err != nil {
		log.Warn("failed to persist conversation turns", map[string]interface{}{
			"error": err.Error(),
			"count": len(turns),
		})
	}
}

func (h *Handler) alert(ctx context.Context, threadID string, stdErr *apperrors.StandardError, log logger.Logger) {
	err := h.deps.Alerter.PublishAlert(ctx, aws.Alert{
		Subject:  fmt.Sprintf("[%s] analytics turn failed: %s", TaskType, stdErr.Code),
		Code:     string(stdErr.Code),
		Details:  stdErr.Details,
		ThreadID: threadID,
		Metadata: stdErr.Metadata,
	})
	if err != nil {
		log.Warn("failed to publish alert", map[string]interface{}{"error": err.Error()})
	}
}

func (h *Handler) recordTurn(ctx context.Context, start time.Time, status string) {
	if h.deps.Turns != nil {
		h.deps.Turns.RecordTurn(ctx, time.Since(start), status)
	}
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)

	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error, start time.Time) {
	code := string(apperrors.AsStandardError(err).Code)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.errorHandler.HandleJobError(ctx, client, job, err)
}
