// Package errors provides the standardized error taxonomy for the analytics core
// and its workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// User-input errors: never retried, answered with a specific message.
const (
	ErrCodeInvalidArgument  ErrorCode = "INVALID_ARGUMENT"
	ErrCodeUnknownCategory  ErrorCode = "UNKNOWN_CATEGORY"
	ErrCodeNoDataForRange   ErrorCode = "NO_DATA_FOR_RANGE"
	ErrCodeEmptyUserMessage ErrorCode = "EMPTY_USER_MESSAGE"
)

// Transient errors.
const (
	ErrCodeModelRateLimited     ErrorCode = "MODEL_RATE_LIMITED"
	ErrCodeModelCallFailed      ErrorCode = "MODEL_CALL_FAILED"
	ErrCodeQueryTimeout         ErrorCode = "QUERY_TIMEOUT"
	ErrCodeQueryExecutionFailed ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeConversationStore    ErrorCode = "CONVERSATION_STORE_FAILED"
)

// Protocol errors: fatal for the turn.
const (
	ErrCodeNoIntentSelected ErrorCode = "NO_INTENT_SELECTED"
	ErrCodeUnknownIntent    ErrorCode = "UNKNOWN_INTENT"
)

const ErrCodeInternal ErrorCode = "INTERNAL_ERROR"

// Category groups error codes by how the caller must react.
type Category string

const (
	CategoryUserInput Category = "USER_INPUT"
	CategoryTransient Category = "TRANSIENT"
	CategoryProtocol  Category = "PROTOCOL"
	CategoryInternal  Category = "INTERNAL"
)

// StandardError represents a structured application error.
// Details is for logs only and must never reach the end user.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Category  Category               `json:"category"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, category Category, message, details string, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Category:  category,
		Message:   message,
		Details:   details,
		Retryable: category == CategoryTransient,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ==========================
// 2. Error Constructors
// ==========================

// NewInvalidArgumentError creates a non-retryable argument validation error.
func NewInvalidArgumentError(intent string, problems []string) *StandardError {
	details := fmt.Sprintf("intent: %s, problems: %v", intent, problems)
	return newError(ErrCodeInvalidArgument, CategoryUserInput, "Invalid or missing argument", details, nil).
		WithMetadata("intent", intent).
		WithMetadata("problems", problems)
}

// NewUnknownCategoryError creates a non-retryable category resolution error.
func NewUnknownCategoryError(input string, known []string) *StandardError {
	return newError(ErrCodeUnknownCategory, CategoryUserInput, "Unknown category",
		fmt.Sprintf("category: %q", input), nil).
		WithMetadata("category", input).
		WithMetadata("knownCategories", known)
}

// NewEmptyUserMessageError rejects blank questions before any model call.
func NewEmptyUserMessageError() *StandardError {
	return newError(ErrCodeEmptyUserMessage, CategoryUserInput, "Empty question", "", nil)
}

// NewModelRateLimitedError creates a retryable rate-limit error.
func NewModelRateLimitedError(phase string, err error) *StandardError {
	return newError(ErrCodeModelRateLimited, CategoryTransient, "Language model rate limited",
		fmt.Sprintf("phase: %s, error: %v", phase, err), err)
}

// NewModelCallFailedError wraps any other model failure.
func NewModelCallFailedError(phase string, err error) *StandardError {
	return newError(ErrCodeModelCallFailed, CategoryTransient, "Language model call failed",
		fmt.Sprintf("phase: %s, error: %v", phase, err), err)
}

// NewQueryTimeoutError creates a retryable data-call timeout error.
func NewQueryTimeoutError(procedure string, err error) *StandardError {
	return newError(ErrCodeQueryTimeout, CategoryTransient, "Data query timeout",
		fmt.Sprintf("procedure: %s", procedure), err)
}

// NewQueryExecutionFailedError creates a retryable data-call failure.
func NewQueryExecutionFailedError(procedure string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, CategoryTransient, "Data query execution error",
		fmt.Sprintf("procedure: %s, error: %v", procedure, err), err)
}

// NewConversationStoreError wraps conversation persistence failures.
func NewConversationStoreError(op string, err error) *StandardError {
	return newError(ErrCodeConversationStore, CategoryTransient, "Conversation store error",
		fmt.Sprintf("op: %s, error: %v", op, err), err)
}

// NewNoIntentSelectedError marks a forced selection turn that produced no call.
func NewNoIntentSelectedError(details string) *StandardError {
	return newError(ErrCodeNoIntentSelected, CategoryProtocol, "Model did not select an intent", details, nil)
}

// NewUnknownIntentError marks a call to a name outside the catalog.
func NewUnknownIntentError(name string) *StandardError {
	return newError(ErrCodeUnknownIntent, CategoryProtocol, "Model selected an unknown intent",
		fmt.Sprintf("intent: %s", name), nil)
}

// NewInternalError wraps anything unclassified.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, CategoryInternal, "Unexpected error", err.Error(), err)
}

// ==========================
// 3. Classification
// ==========================

// AsStandardError returns err as a *StandardError, wrapping unclassified errors as internal.
func AsStandardError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// CategoryOf reports the category of any error.
func CategoryOf(err error) Category {
	return AsStandardError(err).Category
}

// IsUserInput reports whether err should be answered to the user rather than retried.
func IsUserInput(err error) bool {
	return err != nil && CategoryOf(err) == CategoryUserInput
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Code == code
}

// userMessages never mention procedure names, parameters, or model reasoning.
var userMessages = map[ErrorCode]string{
	ErrCodeInvalidArgument:      "I couldn't run that analysis because part of the request was missing or invalid. Please check the dates (YYYY-MM-DD) and any limits, then try again.",
	ErrCodeUnknownCategory:      "I don't recognize that category. Try one of the menu categories such as (Beer), (Sushi), (Food), (Liquor), (Wine) or (N/A Beverages).",
	ErrCodeNoDataForRange:       "There is no sales data for that date range yet.",
	ErrCodeEmptyUserMessage:     "Please ask a question about your sales.",
	ErrCodeModelRateLimited:     "I'm receiving a lot of requests right now. Please try again in a minute.",
	ErrCodeModelCallFailed:      "I couldn't reach the analytics assistant just now. Please try again shortly.",
	ErrCodeQueryTimeout:         "That query took too long to run. Try a shorter date range or ask again in a moment.",
	ErrCodeQueryExecutionFailed: "I couldn't load the sales data just now. Please try again shortly.",
	ErrCodeConversationStore:    "I couldn't load our conversation just now. Please try again shortly.",
}

const genericUserMessage = "Something went wrong while answering your question. The team has been notified."

// UserMessage returns wording that is safe to show to the end user.
func UserMessage(err error) string {
	stdErr := AsStandardError(err)
	if stdErr == nil {
		return ""
	}
	if stdErr.Category == CategoryProtocol || stdErr.Category == CategoryInternal {
		return genericUserMessage
	}
	if msg, ok := userMessages[stdErr.Code]; ok {
		return msg
	}
	return genericUserMessage
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
// Internal details are deliberately left out of the variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeModelCallFailed, ErrCodeQueryExecutionFailed, ErrCodeConversationStore:
		return 2
	case ErrCodeModelRateLimited, ErrCodeQueryTimeout:
		return 1
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   UserMessage(stdErr),
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"errorCategory": string(stdErr.Category),
			"timestamp":     stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}
