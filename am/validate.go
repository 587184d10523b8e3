package am

import "github.com/teranos/reportcopilot/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	switch c.EffectiveProvider() {
	case ProviderOpenRouter, ProviderLocal, ProviderMock:
	default:
		return errors.Newf("llm.provider must be one of openrouter, local, mock, got %q", c.LLM.Provider)
	}

	if c.EffectiveProvider() == ProviderLocal && c.LLM.BaseURL == "" {
		return errors.New("llm.base_url cannot be empty for the local provider")
	}

	if c.LLM.TimeoutSeconds <= 0 {
		return errors.Newf("llm.timeout_seconds must be > 0, got %d", c.LLM.TimeoutSeconds)
	}
	if c.LLM.MaxRetries < 0 {
		return errors.Newf("llm.max_retries must be >= 0, got %d", c.LLM.MaxRetries)
	}
	if c.LLM.RetryBackoffSeconds < 0 {
		return errors.Newf("llm.retry_backoff_seconds must be >= 0, got %f", c.LLM.RetryBackoffSeconds)
	}
	if c.LLM.Temperature != nil && (*c.LLM.Temperature < 0 || *c.LLM.Temperature > 2) {
		return errors.Newf("llm.temperature must be within [0, 2], got %f", *c.LLM.Temperature)
	}
	if c.LLM.MaxTokens != nil && *c.LLM.MaxTokens <= 0 {
		return errors.Newf("llm.max_tokens must be > 0, got %d (omit for default)", *c.LLM.MaxTokens)
	}
	// 0 = unpaced
	if c.LLM.CallsPerMinute < 0 {
		return errors.Newf("llm.calls_per_minute must be >= 0, got %d", c.LLM.CallsPerMinute)
	}

	// Job workers: 0 = no background workers, negative = invalid
	if c.Jobs.Workers < 0 {
		return errors.Newf("jobs.workers must be >= 0, got %d", c.Jobs.Workers)
	}
	if c.Jobs.Workers > 0 && c.Jobs.PollIntervalSeconds <= 0 {
		return errors.Newf("jobs.poll_interval_seconds must be > 0 when workers are enabled, got %d", c.Jobs.PollIntervalSeconds)
	}
	if c.Jobs.CleanupMaxAgeHours < 0 {
		return errors.Newf("jobs.cleanup_max_age_hours must be >= 0, got %d", c.Jobs.CleanupMaxAgeHours)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.MaxRequests <= 0 {
			return errors.Newf("rate_limit.max_requests must be > 0 when enabled, got %d", c.RateLimit.MaxRequests)
		}
		if c.RateLimit.WindowSeconds <= 0 {
			return errors.Newf("rate_limit.window_seconds must be > 0 when enabled, got %d", c.RateLimit.WindowSeconds)
		}
	}

	// Budget values: 0 = no limit, negative = invalid
	if c.Budget.DailyUSD < 0 {
		return errors.Newf("budget.daily_usd must be >= 0, got %f", c.Budget.DailyUSD)
	}
	if c.Budget.MonthlyUSD < 0 {
		return errors.Newf("budget.monthly_usd must be >= 0, got %f", c.Budget.MonthlyUSD)
	}
	if c.Budget.CostPerJobUSD < 0 {
		return errors.Newf("budget.cost_per_job_usd must be >= 0, got %f", c.Budget.CostPerJobUSD)
	}

	return nil
}
