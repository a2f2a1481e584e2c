package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"fds-analytics/internal/common/config"
	"fds-analytics/internal/common/logger"
)

// GeminiModel implements Model on the Gemini API.
type GeminiModel struct {
	client          *genai.Client
	model           string
	temperature     float32
	topP            float32
	includeThoughts bool
	timeout         time.Duration
	limiter         *rate.Limiter
	logger          logger.Logger
}

// NewGeminiModel creates the API client. It makes no network call.
func NewGeminiModel(ctx context.Context, cfg config.GeminiConfig, log logger.Logger) (*GeminiModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &GeminiModel{
		client:          client,
		model:           cfg.Model,
		temperature:     cfg.Temperature,
		topP:            cfg.TopP,
		includeThoughts: cfg.IncludeThoughts,
		timeout:         config.GetDuration(cfg.Timeout),
		limiter:         rate.NewLimiter(limit, 1),
		logger:          log.WithFields(map[string]interface{}{"component": "gemini"}),
	}, nil
}

func (g *GeminiModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: limiter: %v", ErrModelCall, err)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := g.client.Models.GenerateContent(ctx, g.model, toGenaiContents(req.Contents), g.buildConfig(req))
	if err != nil {
		if isRateLimit(err) {
			return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrModelCall, err)
	}

	g.logger.Debug("gemini call completed", map[string]interface{}{
		"mode":      req.Mode.String(),
		"elapsedMs": time.Since(start).Milliseconds(),
	})

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return &Response{Content: Content{Role: RoleModel}}, nil
	}

	candidate := result.Candidates[0]
	return &Response{
		Content:      fromGenaiContent(candidate.Content),
		FinishReason: string(candidate.FinishReason),
	}, nil
}

func (g *GeminiModel) buildConfig(req Request) *genai.GenerateContentConfig {
	temp := g.temperature
	topP := g.topP
	cfg := &genai.GenerateContentConfig{
		Temperature: &temp,
		TopP:        &topP,
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if g.includeThoughts {
		cfg.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
	}

	if len(req.Functions) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Functions))
		names := make([]string, 0, len(req.Functions))
		for _, fn := range req.Functions {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        fn.Name,
				Description: fn.Description,
				Parameters:  toGenaiSchema(fn.Parameters),
			})
			names = append(names, fn.Name)
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}

		fcc := &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAuto}
		if req.Mode == ModeForced {
			fcc = &genai.FunctionCallingConfig{
				Mode:                 genai.FunctionCallingConfigModeAny,
				AllowedFunctionNames: names,
			}
		}
		cfg.ToolConfig = &genai.ToolConfig{FunctionCallingConfig: fcc}
	}
	return cfg
}

// isRateLimit matches HTTP 429 or a RESOURCE_EXHAUSTED status.
func isRateLimit(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED"
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code == http.StatusTooManyRequests || apiErrPtr.Status == "RESOURCE_EXHAUSTED"
	}
	return strings.Contains(err.Error(), "RESOURCE_EXHAUSTED")
}

// --- conversion helpers ---

func toGenaiContents(contents []Content) []*genai.Content {
	out := make([]*genai.Content, 0, len(contents))
	for _, c := range contents {
		gc := &genai.Content{Role: string(c.Role)}
		for _, p := range c.Parts {
			gp := &genai.Part{
				Text:             p.Text,
				Thought:          p.Thought,
				ThoughtSignature: p.Signature,
			}
			if p.FunctionCall != nil {
				gp.FunctionCall = &genai.FunctionCall{
					ID:   p.FunctionCall.ID,
					Name: p.FunctionCall.Name,
					Args: p.FunctionCall.Args,
				}
			}
			if p.FunctionResponse != nil {
				gp.FunctionResponse = &genai.FunctionResponse{
					ID:       p.FunctionResponse.ID,
					Name:     p.FunctionResponse.Name,
					Response: p.FunctionResponse.Response,
				}
			}
			gc.Parts = append(gc.Parts, gp)
		}
		out = append(out, gc)
	}
	return out
}

func fromGenaiContent(c *genai.Content) Content {
	out := Content{Role: RoleModel}
	if c.Role != "" {
		out.Role = Role(c.Role)
	}
	for _, gp := range c.Parts {
		if gp == nil {
			continue
		}
		p := Part{
			Text:      gp.Text,
			Thought:   gp.Thought,
			Signature: gp.ThoughtSignature,
		}
		if gp.FunctionCall != nil {
			p.FunctionCall = &FunctionCall{
				ID:   gp.FunctionCall.ID,
				Name: gp.FunctionCall.Name,
				Args: gp.FunctionCall.Args,
			}
		}
		out.Parts = append(out.Parts, p)
	}
	return out
}

func toGenaiSchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	gs := &genai.Schema{
		Type:        genai.Type(strings.ToUpper(s.Type)),
		Description: s.Description,
		Format:      s.Format,
		Pattern:     s.Pattern,
		Enum:        s.Enum,
		Minimum:     s.Minimum,
		Maximum:     s.Maximum,
		Required:    s.Required,
	}
	if len(s.Properties) > 0 {
		gs.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			gs.Properties[name] = toGenaiSchema(prop)
		}
	}
	return gs
}
