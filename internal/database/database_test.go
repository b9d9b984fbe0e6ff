package database

import (
	"path/filepath"
	"testing"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/content"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/users"
	"go.uber.org/zap"
)

func TestOpenSQLiteMigratesSchema(testContext *testing.T) {
	database, err := Open(Config{Driver: "SQLite", Path: filepath.Join(testContext.TempDir(), "folio.db")}, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}

	for _, model := range append(content.Models(), &users.Identity{}, &migrationRecord{}) {
		if !database.Migrator().HasTable(model) {
			testContext.Fatalf("expected table for %T", model)
		}
	}
	if !database.Migrator().HasIndex(&content.Project{}, "idx_projects_live_slug") {
		testContext.Fatalf("expected live slug index")
	}
}

func TestOpenRejectsUnknownDriver(testContext *testing.T) {
	if _, err := Open(Config{Driver: "oracle"}, zap.NewNop()); err == nil {
		testContext.Fatalf("expected unsupported driver error")
	}
	if _, err := OpenSQLite("", nil); err == nil {
		testContext.Fatalf("expected missing path error")
	}
	if _, err := OpenPostgres(" ", nil); err == nil {
		testContext.Fatalf("expected missing dsn error")
	}
}
