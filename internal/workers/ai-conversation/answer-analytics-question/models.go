// internal/workers/ai-conversation/answer-analytics-question/models.go
package answeranalyticsquestion

type Input struct {
	ThreadID string `json:"threadId" validate:"required,max=128"`
	Message  string `json:"message" validate:"max=4000"`
}

// Output is written back to the process instance. ErrorCode is empty on success.
type Output struct {
	Answer    string `json:"answer"`
	Intent    string `json:"intent,omitempty"`
	Degraded  bool   `json:"degraded"`
	ErrorCode string `json:"errorCode"`
}
