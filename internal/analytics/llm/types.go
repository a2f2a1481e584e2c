// Package llm defines the provider-agnostic model calling interface used by the
// orchestrator, plus the Gemini implementation.
package llm

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrRateLimited marks a quota or rate-limit rejection by the provider.
	ErrRateLimited = errors.New("model rate limited")
	// ErrModelCall marks any other provider failure.
	ErrModelCall = errors.New("model call failed")
)

// Mode controls whether the model must call a function.
type Mode int

const (
	// ModeAuto lets the model answer in text or call a function.
	ModeAuto Mode = iota
	// ModeForced requires exactly one call to a declared function.
	ModeForced
)

func (m Mode) String() string {
	if m == ModeForced {
		return "forced"
	}
	return "auto"
}

// Role is the author of a content block.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Schema is the subset of JSON schema the model understands for function parameters.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Format      string             `json:"format,omitempty"`
	Pattern     string             `json:"pattern,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Minimum     *float64           `json:"minimum,omitempty"`
	Maximum     *float64           `json:"maximum,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// FunctionDeclaration describes one callable function.
type FunctionDeclaration struct {
	Name        string
	Description string
	Parameters  *Schema
}

// FunctionCall is a model request to run a function.
type FunctionCall struct {
	ID   string
	Name string
	Args map[string]interface{}
}

// FunctionResponse carries a function result back to the model.
type FunctionResponse struct {
	ID       string
	Name     string
	Response map[string]interface{}
}

// Part is one segment of a content block. Thought marks reasoning segments;
// Signature is an opaque token that must be replayed unchanged with the part.
type Part struct {
	Text             string
	Thought          bool
	Signature        []byte
	FunctionCall     *FunctionCall
	FunctionResponse *FunctionResponse
}

// Content is one turn in the request history.
type Content struct {
	Role  Role
	Parts []Part
}

// TextContent builds a single-part text turn.
func TextContent(role Role, text string) Content {
	return Content{Role: role, Parts: []Part{{Text: text}}}
}

// Request is one model turn.
type Request struct {
	System    string
	Contents  []Content
	Functions []FunctionDeclaration
	Mode      Mode
}

// Response is the first candidate of a model turn.
type Response struct {
	Content      Content
	FinishReason string
}

// FunctionCalls returns every function call part in order.
func (r *Response) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range r.Content.Parts {
		if p.FunctionCall != nil {
			calls = append(calls, *p.FunctionCall)
		}
	}
	return calls
}

// Text concatenates the non-reasoning text parts.
func (r *Response) Text() string {
	var b strings.Builder
	for _, p := range r.Content.Parts {
		if !p.Thought && p.FunctionCall == nil {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// Thoughts returns the reasoning segments.
func (r *Response) Thoughts() []string {
	var out []string
	for _, p := range r.Content.Parts {
		if p.Thought && p.Text != "" {
			out = append(out, p.Text)
		}
	}
	return out
}

// Model generates one turn.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}
