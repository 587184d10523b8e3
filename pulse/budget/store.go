// Package budget guards job submission: a per-client sliding-window limiter
// and spend limits read from the ai_model_usage table over sliding 24h/30d windows.
package budget

import (
	"database/sql"
	"time"

	"github.com/teranos/reportcopilot/errors"
)

// Store handles spend queries against the ai_model_usage table
type Store struct {
	db *sql.DB
}

// NewStore creates a new budget store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// SpendSince sums the cost of successful calls made at or after since.
// Usage rows are written in UTC, so since is compared in UTC.
func (s *Store) SpendSince(since time.Time) (totalCost float64, opCount int, err error) {
	err = s.db.QueryRow(`
		SELECT
			COALESCE(SUM(cost), 0) as total_cost,
			COUNT(*) as operation_count
		FROM ai_model_usage
		WHERE request_timestamp >= ?
			AND success = 1
	`, since.UTC()).Scan(&totalCost, &opCount)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "failed to query spend since %s", since.UTC().Format(time.RFC3339))
	}
	return totalCost, opCount, nil
}
