package db

import (
	"errors"
	"strings"
)

// IsUniqueViolation reports whether the error chain references a Postgres
// unique violation constraint. When constraintName is provided, the helper
// looks for the constraint text in the error messages.
func IsUniqueViolation(err error, constraintName string) bool {
	for cause := err; cause != nil; cause = errors.Unwrap(cause) {
		msg := cause.Error()
		if constraintName != "" {
			if strings.Contains(msg, constraintName) {
				return true
			}
			continue
		}
		// Postgres and the sqlite driver used in tests phrase the
		// violation differently.
		if strings.Contains(msg, "duplicate key value") ||
			strings.Contains(msg, "UNIQUE constraint failed") {
			return true
		}
	}
	return false
}
