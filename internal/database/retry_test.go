package database

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestSQLiteRetryClassifier(testContext *testing.T) {
	testCases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{name: "nil", err: nil, retryable: false},
		{name: "busy", err: errors.New("database is locked (5) (SQLITE_BUSY)"), retryable: true},
		{name: "unique slug", err: errors.New("UNIQUE constraint failed: projects.slug"), retryable: true},
		{name: "duplicated key", err: fmt.Errorf("create: %w", gorm.ErrDuplicatedKey), retryable: true},
		{name: "not found", err: gorm.ErrRecordNotFound, retryable: false},
		{name: "syntax", err: errors.New("near \"SELEC\": syntax error"), retryable: false},
	}

	for _, testCase := range testCases {
		testContext.Run(testCase.name, func(testContext *testing.T) {
			if got := isRetryableSQLite(testCase.err); got != testCase.retryable {
				testContext.Fatalf("isRetryableSQLite(%v) = %v, want %v", testCase.err, got, testCase.retryable)
			}
		})
	}
}

func TestPostgresRetryClassifier(testContext *testing.T) {
	testCases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, retryable: true},
		{name: "deadlock", err: fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40P01"}), retryable: true},
		{name: "lock timeout", err: &pgconn.PgError{Code: "55P03"}, retryable: true},
		{name: "unique", err: &pgconn.PgError{Code: "23505"}, retryable: true},
		{name: "not null", err: &pgconn.PgError{Code: "23502"}, retryable: false},
		{name: "plain", err: errors.New("connection refused"), retryable: false},
	}

	for _, testCase := range testCases {
		testContext.Run(testCase.name, func(testContext *testing.T) {
			if got := isRetryablePostgres(testCase.err); got != testCase.retryable {
				testContext.Fatalf("isRetryablePostgres(%v) = %v, want %v", testCase.err, got, testCase.retryable)
			}
		})
	}
}

func TestRetryClassifierFollowsDialect(testContext *testing.T) {
	database, err := OpenSQLite(filepath.Join(testContext.TempDir(), "folio.db"), zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	classifier := RetryClassifier(database)
	if !classifier(errors.New("database is locked")) {
		testContext.Fatalf("expected sqlite classifier for a sqlite handle")
	}
	if classifier(&pgconn.PgError{Code: "40001"}) {
		testContext.Fatalf("sqlite classifier must not match postgres codes")
	}
}
