package am

// Config represents the core reportcopilot configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database" toml:"database" json:"database" yaml:"database"`
	LLM       LLMConfig       `mapstructure:"llm" toml:"llm" json:"llm" yaml:"llm"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline" toml:"pipeline" json:"pipeline" yaml:"pipeline"`
	Templates TemplatesConfig `mapstructure:"templates" toml:"templates" json:"templates" yaml:"templates"`
	Jobs      JobsConfig      `mapstructure:"jobs" toml:"jobs" json:"jobs" yaml:"jobs"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" toml:"rate_limit" json:"rate_limit" yaml:"rate_limit"`
	Budget    BudgetConfig    `mapstructure:"budget" toml:"budget" json:"budget" yaml:"budget"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path" json:"path" yaml:"path"`
}

// Generation backend providers
const (
	ProviderOpenRouter = "openrouter"
	ProviderLocal      = "local"
	ProviderMock       = "mock"
)

// LLMConfig configures the text-generation backend
type LLMConfig struct {
	Provider            string   `mapstructure:"provider" toml:"provider" json:"provider" yaml:"provider"`                                     // openrouter, local, mock
	Mock                bool     `mapstructure:"mock" toml:"mock" json:"mock" yaml:"mock"`                                                     // MOCK_LLM=1 forces the mock provider
	Model               string   `mapstructure:"model" toml:"model" json:"model" yaml:"model"`                                                 // e.g. "openai/gpt-4o-mini"
	APIKey              string   `mapstructure:"api_key" toml:"api_key" json:"-" yaml:"-"`                                                     // never rendered by `am show`
	BaseURL             string   `mapstructure:"base_url" toml:"base_url" json:"base_url" yaml:"base_url"`                                     // local provider endpoint
	TimeoutSeconds      int      `mapstructure:"timeout_seconds" toml:"timeout_seconds" json:"timeout_seconds" yaml:"timeout_seconds"`         // per request
	MaxRetries          int      `mapstructure:"max_retries" toml:"max_retries" json:"max_retries" yaml:"max_retries"`                         // attempts = max_retries + 1
	RetryBackoffSeconds float64  `mapstructure:"retry_backoff_seconds" toml:"retry_backoff_seconds" json:"retry_backoff_seconds" yaml:"retry_backoff_seconds"`
	Temperature         *float64 `mapstructure:"temperature" toml:"temperature" json:"temperature" yaml:"temperature"` // nil = default 0.2
	MaxTokens           *int     `mapstructure:"max_tokens" toml:"max_tokens" json:"max_tokens" yaml:"max_tokens"`     // nil = backend default
	CallsPerMinute      int      `mapstructure:"calls_per_minute" toml:"calls_per_minute" json:"calls_per_minute" yaml:"calls_per_minute"` // 0 = unpaced
}

// PipelineConfig configures report generation defaults
type PipelineConfig struct {
	DefaultTemplate string `mapstructure:"default_template" toml:"default_template" json:"default_template" yaml:"default_template"`
	IncludeReview   bool   `mapstructure:"include_review" toml:"include_review" json:"include_review" yaml:"include_review"`
}

// TemplatesConfig points at an optional file of extra document templates
type TemplatesConfig struct {
	Path string `mapstructure:"path" toml:"path" json:"path" yaml:"path"` // .yaml, .yml or .toml; empty = built-ins only
}

// JobsConfig configures the report job queue and its artifacts
type JobsConfig struct {
	OutputDir           string `mapstructure:"output_dir" toml:"output_dir" json:"output_dir" yaml:"output_dir"`
	Workers             int    `mapstructure:"workers" toml:"workers" json:"workers" yaml:"workers"` // 0 = no background workers
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds" toml:"poll_interval_seconds" json:"poll_interval_seconds" yaml:"poll_interval_seconds"`
	CleanupMaxAgeHours  int    `mapstructure:"cleanup_max_age_hours" toml:"cleanup_max_age_hours" json:"cleanup_max_age_hours" yaml:"cleanup_max_age_hours"`
}

// RateLimitConfig configures the per-client submission window
type RateLimitConfig struct {
	Enabled       bool `mapstructure:"enabled" toml:"enabled" json:"enabled" yaml:"enabled"`
	MaxRequests   int  `mapstructure:"max_requests" toml:"max_requests" json:"max_requests" yaml:"max_requests"`
	WindowSeconds int  `mapstructure:"window_seconds" toml:"window_seconds" json:"window_seconds" yaml:"window_seconds"`
}

// BudgetConfig configures spend limits checked before a job is queued.
// 0 = no limit.
type BudgetConfig struct {
	DailyUSD      float64 `mapstructure:"daily_usd" toml:"daily_usd" json:"daily_usd" yaml:"daily_usd"`
	MonthlyUSD    float64 `mapstructure:"monthly_usd" toml:"monthly_usd" json:"monthly_usd" yaml:"monthly_usd"`
	CostPerJobUSD float64 `mapstructure:"cost_per_job_usd" toml:"cost_per_job_usd" json:"cost_per_job_usd" yaml:"cost_per_job_usd"`
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
