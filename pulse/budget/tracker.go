package budget

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/teranos/reportcopilot/am"
	"github.com/teranos/reportcopilot/errors"
)

// Sliding windows the limits apply to
const (
	DailyWindow   = 24 * time.Hour
	MonthlyWindow = 30 * 24 * time.Hour
)

// Status represents current spend against the configured limits.
// Remaining is -1 when the matching limit is disabled.
type Status struct {
	DailySpend       float64 `json:"daily_spend_usd"`
	MonthlySpend     float64 `json:"monthly_spend_usd"`
	DailyRemaining   float64 `json:"daily_remaining_usd"`
	MonthlyRemaining float64 `json:"monthly_remaining_usd"`
	DailyOps         int     `json:"daily_ops"`
	MonthlyOps       int     `json:"monthly_ops"`
}

// Tracker enforces spend limits before work is queued
type Tracker struct {
	store   *Store
	config  am.BudgetConfig
	timeNow func() time.Time
}

// NewTracker creates a budget tracker with real time
func NewTracker(db *sql.DB, config am.BudgetConfig) *Tracker {
	return NewTrackerWithClock(db, config, time.Now)
}

// NewTrackerWithClock creates a budget tracker with injectable clock (for testing)
func NewTrackerWithClock(db *sql.DB, config am.BudgetConfig, timeNow func() time.Time) *Tracker {
	return &Tracker{
		store:   NewStore(db),
		config:  config,
		timeNow: timeNow,
	}
}

// Enabled reports whether any limit is configured
func (bt *Tracker) Enabled() bool {
	return bt.config.DailyUSD > 0 || bt.config.MonthlyUSD > 0
}

// GetStatus returns current spend from ai_model_usage
func (bt *Tracker) GetStatus() (*Status, error) {
	now := bt.timeNow()

	dailySpend, dailyOps, err := bt.store.SpendSince(now.Add(-DailyWindow))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get daily spend")
	}
	monthlySpend, monthlyOps, err := bt.store.SpendSince(now.Add(-MonthlyWindow))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get monthly spend")
	}

	return &Status{
		DailySpend:       dailySpend,
		MonthlySpend:     monthlySpend,
		DailyRemaining:   remaining(bt.config.DailyUSD, dailySpend),
		MonthlyRemaining: remaining(bt.config.MonthlyUSD, monthlySpend),
		DailyOps:         dailyOps,
		MonthlyOps:       monthlyOps,
	}, nil
}

func remaining(limit, spend float64) float64 {
	if limit <= 0 {
		return -1
	}
	if spend >= limit {
		return 0
	}
	return limit - spend
}

// CheckBudget returns an error wrapping errors.ErrBudgetExceeded when the
// estimated cost would push spend over a configured limit. 0 = no limit.
func (bt *Tracker) CheckBudget(estimatedCostUSD float64) error {
	if !bt.Enabled() {
		return nil
	}

	status, err := bt.GetStatus()
	if err != nil {
		return errors.Wrap(err, "failed to get budget status")
	}

	if limit := bt.config.DailyUSD; limit > 0 && status.DailySpend+estimatedCostUSD > limit {
		return exceeded("daily", status.DailySpend, estimatedCostUSD, limit)
	}
	if limit := bt.config.MonthlyUSD; limit > 0 && status.MonthlySpend+estimatedCostUSD > limit {
		return exceeded("monthly", status.MonthlySpend, estimatedCostUSD, limit)
	}
	return nil
}

func exceeded(period string, spend, estimate, limit float64) error {
	err := errors.Wrapf(errors.ErrBudgetExceeded,
		"%s budget would be exceeded: current $%.3f + estimated $%.3f > limit $%.2f",
		period, spend, estimate, limit)
	return errors.WithHint(err, fmt.Sprintf("raise budget.%s_usd in am.toml or wait for the window to slide", period))
}

// EstimateJobCost estimates the cost of n report jobs
func (bt *Tracker) EstimateJobCost(n int) float64 {
	return float64(n) * bt.config.CostPerJobUSD
}

// Limits returns the configured limits
func (bt *Tracker) Limits() am.BudgetConfig {
	return bt.config
}
