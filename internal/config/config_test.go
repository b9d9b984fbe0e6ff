package config

import (
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/content"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("tauth.signing_secret", "secret")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.DatabaseDriver != "sqlite" || cfg.DatabasePath != defaultDatabasePath {
		t.Fatalf("unexpected database defaults: %q %q", cfg.DatabaseDriver, cfg.DatabasePath)
	}
	if cfg.StorageDriver != StorageDriverMemory {
		t.Fatalf("unexpected storage driver %q", cfg.StorageDriver)
	}
	if cfg.SavePolicy != content.SavePolicyRefreshLive {
		t.Fatalf("unexpected save policy %q", cfg.SavePolicy)
	}
	if cfg.RetryPolicy.MaxAttempts != 3 || cfg.RetryPolicy.BaseDelay != 50*time.Millisecond || cfg.RetryPolicy.Timeout != 5*time.Second {
		t.Fatalf("unexpected retry policy %+v", cfg.RetryPolicy)
	}
	if cfg.UploadTTL != 15*time.Minute {
		t.Fatalf("unexpected upload ttl %v", cfg.UploadTTL)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("FOLIO_TAUTH_SIGNING_SECRET", "from-env")
	t.Setenv("FOLIO_CONTENT_SAVE_POLICY", "require_publish")
	t.Setenv("FOLIO_DATABASE_DRIVER", "postgres")
	t.Setenv("FOLIO_DATABASE_DSN", "postgres://folio@localhost/folio")

	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.TAuthSigningKey != "from-env" {
		t.Fatalf("expected env signing secret, got %q", cfg.TAuthSigningKey)
	}
	if cfg.SavePolicy != content.SavePolicyRequirePublish {
		t.Fatalf("expected require-publish policy, got %q", cfg.SavePolicy)
	}
	if cfg.DatabaseDriver != "postgres" {
		t.Fatalf("expected postgres driver, got %q", cfg.DatabaseDriver)
	}
}

func TestLoadRejectsInvalidConfiguration(t *testing.T) {
	testCases := []struct {
		name     string
		settings map[string]any
		message  string
	}{
		{name: "missing secret", settings: map[string]any{}, message: "tauth.signing_secret"},
		{name: "postgres without dsn", settings: map[string]any{"database.driver": "postgres"}, message: "database.dsn"},
		{name: "unknown driver", settings: map[string]any{"database.driver": "mysql"}, message: "database.driver"},
		{name: "s3 without bucket", settings: map[string]any{"storage.driver": "s3"}, message: "storage.bucket"},
		{name: "unknown policy", settings: map[string]any{"content.save_policy": "eventually"}, message: "content.save_policy"},
		{name: "zero attempts", settings: map[string]any{"transaction.max_attempts": 0}, message: "transaction.max_attempts"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			configViper := NewViper()
			if testCase.name != "missing secret" {
				configViper.Set("tauth.signing_secret", "secret")
			}
			for key, value := range testCase.settings {
				configViper.Set(key, value)
			}
			_, err := Load(configViper)
			if err == nil || !strings.Contains(err.Error(), testCase.message) {
				t.Fatalf("expected error mentioning %q, got %v", testCase.message, err)
			}
		})
	}
}
