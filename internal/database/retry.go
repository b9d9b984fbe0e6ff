package database

import (
	"errors"
	"strings"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/content"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL error codes worth another attempt.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgUniqueViolation      = "23505"
)

var sqliteTransientMarkers = []string{
	"database is locked",
	"database table is locked",
	"sqlite_busy",
	"sqlite_locked",
	"unique constraint failed",
}

// RetryClassifier returns the predicate the transaction coordinator uses to
// decide whether a failed attempt may be retried on db's dialect. Unique
// violations count as transient because concurrent writers racing for the
// same slug or lookup label resolve on the next attempt.
func RetryClassifier(db *gorm.DB) content.RetryClassifier {
	if db != nil && db.Dialector != nil && db.Dialector.Name() == DriverPostgres {
		return isRetryablePostgres
	}
	return isRetryableSQLite
}

func isRetryableSQLite(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	message := strings.ToLower(err.Error())
	for _, marker := range sqliteTransientMarkers {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}

func isRetryablePostgres(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable, pgUniqueViolation:
		return true
	default:
		return false
	}
}
