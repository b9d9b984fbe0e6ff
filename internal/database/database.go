package database

import (
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/content"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// DriverSQLite selects the embedded SQLite store.
	DriverSQLite = "sqlite"
	// DriverPostgres selects a PostgreSQL server.
	DriverPostgres = "postgres"
)

// Config selects and addresses the backing store.
type Config struct {
	Driver string
	Path   string
	DSN    string
}

// Open connects to the configured driver and migrates the schema.
func Open(cfg Config, logger *zap.Logger) (*gorm.DB, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverSQLite, "":
		return OpenSQLite(cfg.Path, logger)
	case DriverPostgres:
		return OpenPostgres(cfg.DSN, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func migrate(db *gorm.DB, logger *zap.Logger) error {
	models := append(content.Models(), &users.Identity{}, &migrationRecord{})
	if err := db.AutoMigrate(models...); err != nil {
		return err
	}
	return applyMigrations(db, logger)
}
