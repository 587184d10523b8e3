package tracker

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/teranos/reportcopilot/errors"
)

// ModelUsage is one row of ai_model_usage: a single generation backend call
type ModelUsage struct {
	ID                int        `json:"id" db:"id"`
	OperationType     string     `json:"operation_type" db:"operation_type"` // pipeline step, e.g. "writer"
	EntityType        string     `json:"entity_type" db:"entity_type"`       // "report_job"
	EntityID          string     `json:"entity_id" db:"entity_id"`           // job ID
	ModelName         string     `json:"model_name" db:"model_name"`
	ModelProvider     string     `json:"model_provider" db:"model_provider"`
	ModelConfig       *string    `json:"model_config,omitempty" db:"model_config"`
	RequestTimestamp  time.Time  `json:"request_timestamp" db:"request_timestamp"`
	ResponseTimestamp *time.Time `json:"response_timestamp,omitempty" db:"response_timestamp"`
	TokensUsed        *int       `json:"tokens_used,omitempty" db:"tokens_used"`
	Cost              *float64   `json:"cost,omitempty" db:"cost"`
	Success           bool       `json:"success" db:"success"`
	ErrorMessage      *string    `json:"error_message,omitempty" db:"error_message"`
	Metadata          *string    `json:"metadata,omitempty" db:"metadata"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}

// ModelConfig is the sampling configuration recorded with a call
type ModelConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// UsageMetadata is extra context recorded with a call
type UsageMetadata struct {
	Template     string `json:"template,omitempty"`
	Attempts     int    `json:"attempts,omitempty"`
	InputLength  *int   `json:"input_length,omitempty"`
	OutputLength *int   `json:"output_length,omitempty"`
}

// UsageTracker records generation backend calls
type UsageTracker struct {
	db        *sql.DB
	verbosity int
}

// NewUsageTracker creates a tracker writing to db
func NewUsageTracker(db *sql.DB, verbosity int) *UsageTracker {
	return &UsageTracker{
		db:        db,
		verbosity: verbosity,
	}
}

// TrackUsage inserts one usage row. Timestamps are stored in UTC so
// window queries compare consistently.
func (t *UsageTracker) TrackUsage(usage *ModelUsage) error {
	query := `
		INSERT INTO ai_model_usage (
			operation_type, entity_type, entity_id, model_name, model_provider,
			model_config, request_timestamp, response_timestamp, tokens_used,
			cost, success, error_message, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var response *time.Time
	if usage.ResponseTimestamp != nil {
		r := usage.ResponseTimestamp.UTC()
		response = &r
	}

	_, err := t.db.Exec(query,
		usage.OperationType, usage.EntityType, usage.EntityID,
		usage.ModelName, usage.ModelProvider, usage.ModelConfig,
		usage.RequestTimestamp.UTC(), response, usage.TokensUsed,
		usage.Cost, usage.Success, usage.ErrorMessage, usage.Metadata,
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert usage")
	}
	return nil
}

// UsageStats is aggregated usage over a period
type UsageStats struct {
	TotalRequests      int     `json:"total_requests"`
	SuccessfulRequests int     `json:"successful_requests"`
	SuccessRate        float64 `json:"success_rate"`
	TotalTokens        int     `json:"total_tokens"`
	TotalCost          float64 `json:"total_cost"`
	UniqueModels       int     `json:"unique_models"`
}

// GetUsageStats aggregates all calls made at or after since
func (t *UsageTracker) GetUsageStats(since time.Time) (*UsageStats, error) {
	query := `
		SELECT
			COUNT(*) as total_requests,
			COUNT(CASE WHEN success = 1 THEN 1 END) as successful_requests,
			COALESCE(SUM(COALESCE(tokens_used, 0)), 0) as total_tokens,
			COALESCE(SUM(COALESCE(cost, 0)), 0) as total_cost,
			COUNT(DISTINCT model_name) as unique_models
		FROM ai_model_usage
		WHERE request_timestamp >= ?`

	var stats UsageStats
	err := t.db.QueryRow(query, since.UTC()).Scan(
		&stats.TotalRequests, &stats.SuccessfulRequests,
		&stats.TotalTokens, &stats.TotalCost, &stats.UniqueModels,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query usage stats")
	}

	if stats.TotalRequests > 0 {
		stats.SuccessRate = float64(stats.SuccessfulRequests) / float64(stats.TotalRequests)
	}
	return &stats, nil
}

// JobUsage sums the calls recorded for one report job
type JobUsage struct {
	Calls       int            `json:"calls"`
	Failures    int            `json:"failures"`
	TotalTokens int            `json:"total_tokens"`
	TotalCost   float64        `json:"total_cost"`
	ByStep      map[string]int `json:"by_step"`
}

// GetJobUsage returns the usage recorded against a job ID
func (t *UsageTracker) GetJobUsage(jobID string) (*JobUsage, error) {
	rows, err := t.db.Query(`
		SELECT operation_type, success, COALESCE(tokens_used, 0), COALESCE(cost, 0)
		FROM ai_model_usage
		WHERE entity_id = ?
		ORDER BY id`, jobID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query usage for job %s", jobID)
	}
	defer rows.Close()

	usage := &JobUsage{ByStep: make(map[string]int)}
	for rows.Next() {
		var (
			step    string
			success bool
			tokens  int
			cost    float64
		)
		if err := rows.Scan(&step, &success, &tokens, &cost); err != nil {
			return nil, errors.Wrap(err, "failed to scan usage row")
		}
		usage.Calls++
		if !success {
			usage.Failures++
		}
		usage.TotalTokens += tokens
		usage.TotalCost += cost
		usage.ByStep[step]++
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate usage rows")
	}
	return usage, nil
}

// ModelBreakdown is per-model usage over a period
type ModelBreakdown struct {
	ModelName         string   `json:"model_name"`
	ModelProvider     string   `json:"model_provider"`
	RequestCount      int      `json:"request_count"`
	TotalTokens       int      `json:"total_tokens"`
	TotalCost         float64  `json:"total_cost"`
	AvgResponseTimeMs *float64 `json:"avg_response_time_ms,omitempty"`
}

// GetModelBreakdown returns successful usage grouped by model, most expensive first
func (t *UsageTracker) GetModelBreakdown(since time.Time) ([]ModelBreakdown, error) {
	query := `
		SELECT
			model_name,
			model_provider,
			COUNT(*) as request_count,
			SUM(COALESCE(tokens_used, 0)) as total_tokens,
			SUM(COALESCE(cost, 0)) as total_cost,
			AVG(CASE WHEN response_timestamp IS NOT NULL THEN
				(julianday(substr(response_timestamp, 1, 19)) - julianday(substr(request_timestamp, 1, 19))) * 86400000
				ELSE NULL END) as avg_response_time_ms
		FROM ai_model_usage
		WHERE request_timestamp >= ? AND success = 1
		GROUP BY model_name, model_provider
		ORDER BY total_cost DESC`

	rows, err := t.db.Query(query, since.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "failed to query model breakdown")
	}
	defer rows.Close()

	var breakdown []ModelBreakdown
	for rows.Next() {
		var mb ModelBreakdown
		if err := rows.Scan(&mb.ModelName, &mb.ModelProvider, &mb.RequestCount,
			&mb.TotalTokens, &mb.TotalCost, &mb.AvgResponseTimeMs); err != nil {
			return nil, errors.Wrap(err, "failed to scan model breakdown")
		}
		breakdown = append(breakdown, mb)
	}
	return breakdown, rows.Err()
}

// NewModelConfig serializes a model config to JSON; nil when both fields are nil
func NewModelConfig(temperature *float64, maxTokens *int) *string {
	if temperature == nil && maxTokens == nil {
		return nil
	}
	data, err := json.Marshal(ModelConfig{Temperature: temperature, MaxTokens: maxTokens})
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}

// NewUsageMetadata serializes metadata to JSON
func NewUsageMetadata(metadata UsageMetadata) *string {
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}
