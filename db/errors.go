package db

import (
	"strings"

	"github.com/teranos/xalq/errors"
)

// ErrDatabaseClosed is returned when operations are attempted on a closed
// database, typically while the CLI shuts down after an interrupt.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed checks if an error indicates the database connection is closed.
// The driver returns its own error values, so their message is matched too.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}
