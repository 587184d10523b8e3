package am

import (
	"fmt"

	"github.com/spf13/viper"
)

// Fallback values used when a config field is left at its zero value
const (
	DefaultDatabasePath    = "reportcopilot.db"
	DefaultTemplateKey     = "lab_report"
	DefaultOutputDir       = "outputs"
	DefaultModel           = "openai/gpt-4o-mini"
	DefaultLocalBaseURL    = "http://localhost:11434"
	DefaultTemperature     = 0.2
	DefaultCleanupMaxHours = 24 * 7
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", DefaultDatabasePath)

	// Generation backend defaults
	v.SetDefault("llm.provider", ProviderOpenRouter)
	v.SetDefault("llm.mock", false)
	v.SetDefault("llm.model", DefaultModel)
	v.SetDefault("llm.base_url", DefaultLocalBaseURL)
	v.SetDefault("llm.timeout_seconds", 45)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.retry_backoff_seconds", 1.0)
	v.SetDefault("llm.temperature", DefaultTemperature)
	v.SetDefault("llm.calls_per_minute", 0)

	// Pipeline defaults
	v.SetDefault("pipeline.default_template", DefaultTemplateKey)
	v.SetDefault("pipeline.include_review", true)

	// Templates: built-ins only
	v.SetDefault("templates.path", "")

	// Job queue defaults
	v.SetDefault("jobs.output_dir", DefaultOutputDir)
	v.SetDefault("jobs.workers", 1)
	v.SetDefault("jobs.poll_interval_seconds", 2)
	v.SetDefault("jobs.cleanup_max_age_hours", DefaultCleanupMaxHours)

	// Submission rate limit: 20 per 60s
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.max_requests", 20)
	v.SetDefault("rate_limit.window_seconds", 60)

	// Budget defaults
	v.SetDefault("budget.daily_usd", 0.0)
	v.SetDefault("budget.monthly_usd", 0.0)
	v.SetDefault("budget.cost_per_job_usd", 0.01)
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables.
// The unprefixed LLM_* / MOCK_LLM / RUN_RATE_LIMIT_* names are honoured so existing
// .env files keep working.
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("database.path", "REPORTCOPILOT_DATABASE_PATH", "DB_PATH")

	v.BindEnv("llm.api_key", "REPORTCOPILOT_LLM_API_KEY", "LLM_API_KEY", "OPENROUTER_API_KEY")
	v.BindEnv("llm.model", "REPORTCOPILOT_LLM_MODEL", "LLM_MODEL")
	v.BindEnv("llm.mock", "REPORTCOPILOT_LLM_MOCK", "MOCK_LLM")
	v.BindEnv("llm.timeout_seconds", "REPORTCOPILOT_LLM_TIMEOUT_SECONDS", "LLM_TIMEOUT_SECONDS")
	v.BindEnv("llm.max_retries", "REPORTCOPILOT_LLM_MAX_RETRIES", "LLM_MAX_RETRIES")
	v.BindEnv("llm.retry_backoff_seconds", "REPORTCOPILOT_LLM_RETRY_BACKOFF_SECONDS", "LLM_RETRY_BACKOFF_SECONDS")

	v.BindEnv("rate_limit.enabled", "REPORTCOPILOT_RATE_LIMIT_ENABLED", "RUN_RATE_LIMIT_ENABLED")
	v.BindEnv("rate_limit.max_requests", "REPORTCOPILOT_RATE_LIMIT_MAX_REQUESTS", "RUN_RATE_LIMIT_MAX_REQUESTS")
	v.BindEnv("rate_limit.window_seconds", "REPORTCOPILOT_RATE_LIMIT_WINDOW_SECONDS", "RUN_RATE_LIMIT_WINDOW_SECONDS")
}

// GetDatabasePath returns the configured database path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return DefaultDatabasePath
	}
	return c.Database.Path
}

// EffectiveProvider returns the backend to construct, honouring the mock switch
func (c *Config) EffectiveProvider() string {
	if c.LLM.Mock {
		return ProviderMock
	}
	if c.LLM.Provider == "" {
		return ProviderOpenRouter
	}
	return c.LLM.Provider
}

// GetTemperature returns the sampling temperature (default 0.2)
func (c *Config) GetTemperature() float64 {
	if c.LLM.Temperature == nil {
		return DefaultTemperature
	}
	return *c.LLM.Temperature
}

// GetDefaultTemplate returns the template key used when a request names none
func (c *Config) GetDefaultTemplate() string {
	if c.Pipeline.DefaultTemplate == "" {
		return DefaultTemplateKey
	}
	return c.Pipeline.DefaultTemplate
}

// GetOutputDir returns the job artifact root
func (c *Config) GetOutputDir() string {
	if c.Jobs.OutputDir == "" {
		return DefaultOutputDir
	}
	return c.Jobs.OutputDir
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Database: %s, LLM: {Provider: %s, Model: %s}, Jobs: {Workers: %d}}",
		c.Database.Path, c.EffectiveProvider(), c.LLM.Model, c.Jobs.Workers)
}
