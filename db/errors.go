package db

import (
	"strings"

	"github.com/teranos/reportcopilot/errors"
)

// ErrDatabaseClosed is returned when operations are attempted on a closed database,
// typically while the pulse daemon shuts down with workers still polling.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed reports whether err means the job database is gone. It
// matches wrapped ErrDatabaseClosed as well as database/sql's own
// "sql: database is closed", which carries no sentinel we can wrap.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}
