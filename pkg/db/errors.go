package db

import (
	"context"
	"errors"
	"strings"

	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	sqlStateUniqueViolation   = "23505"
	sqlStateQueryCanceled     = "57014"
	sqlStateLockNotAvailable  = "55P03"
	sqliteUniqueMessage       = "UNIQUE constraint failed"
	sqliteBusyMessage         = "database is locked"
	sqliteTableLockedMessage  = "database table is locked"
	postgresDuplicateKeyValue = "duplicate key value"
)

// IsUniqueViolation reports whether the provided error references a unique
// constraint violation. When constraintName is provided, the helper looks
// for the constraint text in the error message.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" && !strings.Contains(msg, constraintName) {
		return false
	}
	if pkgerrors.SQLState(err) == sqlStateUniqueViolation {
		return true
	}
	return strings.Contains(msg, postgresDuplicateKeyValue) || strings.Contains(msg, sqliteUniqueMessage)
}

// IsTimeout reports whether err means the store gave up waiting: a context
// deadline, a statement/lock timeout, or SQLite lock contention.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return true
	}
	switch pkgerrors.SQLState(err) {
	case sqlStateQueryCanceled, sqlStateLockNotAvailable:
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, sqliteBusyMessage) || strings.Contains(msg, sqliteTableLockedMessage)
}

// Classify maps a raw storage error onto the typed taxonomy. Errors that are
// already typed pass through untouched.
func Classify(err error, message string) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	switch {
	case IsTimeout(err):
		return pkgerrors.Wrap(pkgerrors.CodeStorageTimeout, err, message)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, message)
	default:
		return pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, message)
	}
}
