// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Gemini        GeminiConfig            `mapstructure:"gemini"`
	Analytics     AnalyticsConfig         `mapstructure:"analytics"`
	Conversation  ConversationConfig      `mapstructure:"conversation"`
	Alerts        AlertsConfig            `mapstructure:"alerts"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment" validate:"omitempty,oneof=development staging production test"`
	HTTPPort    int    `mapstructure:"http_port" validate:"gte=0,lte=65535"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address" validate:"required"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active" validate:"gte=1"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host" validate:"required"`
	Port           int    `mapstructure:"port" validate:"gte=1,lte=65535"`
	Database       string `mapstructure:"database" validate:"required"`
	User           string `mapstructure:"user" validate:"required"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode" validate:"oneof=disable require verify-ca verify-full"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // single URL, used when addresses is empty
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

// GeminiConfig configures the language-model client.
type GeminiConfig struct {
	APIKey            string  `mapstructure:"api_key" validate:"required"`
	Model             string  `mapstructure:"model" validate:"required"`
	Temperature       float32 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	TopP              float32 `mapstructure:"top_p" validate:"gte=0,lte=1"`
	IncludeThoughts   bool    `mapstructure:"include_thoughts"`
	Timeout           int     `mapstructure:"timeout"`            // milliseconds
	RateLimitBackoff  int     `mapstructure:"rate_limit_backoff"` // milliseconds
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`
}

// AnalyticsConfig configures the procedure layer and prompt framing.
type AnalyticsConfig struct {
	RawDataset         string `mapstructure:"raw_dataset" validate:"required"`
	InsightsDataset    string `mapstructure:"insights_dataset" validate:"required"`
	ProcedureTimeout   int    `mapstructure:"procedure_timeout"` // milliseconds
	HistoryTokenBudget int    `mapstructure:"history_token_budget" validate:"gte=1"`
	RestaurantName     string `mapstructure:"restaurant_name"`
	ItemIndex          string `mapstructure:"item_index"`
	MaxSuggestions     int    `mapstructure:"max_suggestions" validate:"gte=0"`
}

// ConversationConfig configures the Redis conversation store.
type ConversationConfig struct {
	KeyPrefix string `mapstructure:"key_prefix"`
	MaxTurns  int    `mapstructure:"max_turns" validate:"gte=2"`
	TTLHours  int    `mapstructure:"ttl_hours" validate:"gte=0"`
}

// AlertsConfig holds settings for protocol-violation alerts.
type AlertsConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn" validate:"required_if=Enabled true"`
	} `mapstructure:"sns"`
}

// ObservabilityConfig holds tracing settings.
type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint" validate:"omitempty,url"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
	Output string `mapstructure:"output"`
}
