// internal/workers/ai-conversation/answer-analytics-question/config.go
package answeranalyticsquestion

import (
	"time"

	"fds-analytics/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(wcfg config.WorkerConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Config{Timeout: timeout}
}
