package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/content"
	"github.com/spf13/viper"
)

const (
	envPrefix                 = "FOLIO"
	defaultHTTPAddress        = "0.0.0.0:8080"
	defaultDatabaseDriver     = "sqlite"
	defaultDatabasePath       = "folio.db"
	defaultLogLevel           = "info"
	defaultLogFormat          = "json"
	defaultCookieName         = "app_session"
	defaultIssuer             = "tauth"
	defaultStorageDriver      = "memory"
	defaultStorageRegion      = "us-east-1"
	defaultMediaProxyPrefix   = "/media"
	defaultUploadTTLSeconds   = 900
	defaultSavePolicy         = "refresh_live"
	defaultMaxAttempts        = 3
	defaultBaseDelayMillis    = 50
	defaultTransactionTimeout = 5
	defaultCleanupWorkers     = 2
	defaultCleanupQueueSize   = 64
	defaultOrphanGraceMinutes = 60

	// StorageDriverS3 stores media in an S3-compatible bucket.
	StorageDriverS3 = "s3"
	// StorageDriverMemory keeps media in process memory.
	StorageDriverMemory = "memory"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress        string
	AllowedOrigins     []string
	LogLevel           string
	LogFormat          string
	DatabaseDriver     string
	DatabasePath       string
	DatabaseDSN        string
	TAuthSigningKey    string
	TAuthCookieName    string
	TAuthIssuer        string
	TAuthRequiredRole  string
	StorageDriver      string
	StorageBucket      string
	StorageRegion      string
	StorageEndpoint    string
	StorageAccessKeyID string
	StorageSecretKey   string
	StoragePathStyle   bool
	StoragePublicURL   string
	MediaProxyPrefix   string
	UploadTTL          time.Duration
	SavePolicy         content.SavePolicy
	RetryPolicy        content.RetryPolicy
	CleanupWorkers     int
	CleanupQueueSize   int
	OrphanGracePeriod  time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.allowed_origins", []string{"*"})
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("tauth.cookie_name", defaultCookieName)
	configViper.SetDefault("tauth.issuer", defaultIssuer)
	configViper.SetDefault("storage.driver", defaultStorageDriver)
	configViper.SetDefault("storage.region", defaultStorageRegion)
	configViper.SetDefault("media.proxy_prefix", defaultMediaProxyPrefix)
	configViper.SetDefault("media.upload_ttl_seconds", defaultUploadTTLSeconds)
	configViper.SetDefault("content.save_policy", defaultSavePolicy)
	configViper.SetDefault("transaction.max_attempts", defaultMaxAttempts)
	configViper.SetDefault("transaction.base_delay_ms", defaultBaseDelayMillis)
	configViper.SetDefault("transaction.timeout_seconds", defaultTransactionTimeout)
	configViper.SetDefault("cleanup.workers", defaultCleanupWorkers)
	configViper.SetDefault("cleanup.queue_size", defaultCleanupQueueSize)
	configViper.SetDefault("cleanup.orphan_grace_minutes", defaultOrphanGraceMinutes)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	savePolicy, err := content.ParseSavePolicy(configViper.GetString("content.save_policy"))
	if err != nil {
		return AppConfig{}, fmt.Errorf("content.save_policy: %w", err)
	}

	retryPolicy := content.RetryPolicy{
		MaxAttempts: configViper.GetInt("transaction.max_attempts"),
		BaseDelay:   time.Duration(configViper.GetInt("transaction.base_delay_ms")) * time.Millisecond,
		Timeout:     time.Duration(configViper.GetInt("transaction.timeout_seconds")) * time.Second,
	}

	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		AllowedOrigins:     configViper.GetStringSlice("http.allowed_origins"),
		LogLevel:           configViper.GetString("log.level"),
		LogFormat:          configViper.GetString("log.format"),
		DatabaseDriver:     strings.ToLower(configViper.GetString("database.driver")),
		DatabasePath:       configViper.GetString("database.path"),
		DatabaseDSN:        configViper.GetString("database.dsn"),
		TAuthSigningKey:    configViper.GetString("tauth.signing_secret"),
		TAuthCookieName:    configViper.GetString("tauth.cookie_name"),
		TAuthIssuer:        configViper.GetString("tauth.issuer"),
		TAuthRequiredRole:  configViper.GetString("tauth.required_role"),
		StorageDriver:      strings.ToLower(configViper.GetString("storage.driver")),
		StorageBucket:      configViper.GetString("storage.bucket"),
		StorageRegion:      configViper.GetString("storage.region"),
		StorageEndpoint:    configViper.GetString("storage.endpoint"),
		StorageAccessKeyID: configViper.GetString("storage.access_key_id"),
		StorageSecretKey:   configViper.GetString("storage.secret_access_key"),
		StoragePathStyle:   configViper.GetBool("storage.use_path_style"),
		StoragePublicURL:   configViper.GetString("storage.public_base_url"),
		MediaProxyPrefix:   configViper.GetString("media.proxy_prefix"),
		UploadTTL:          time.Duration(configViper.GetInt("media.upload_ttl_seconds")) * time.Second,
		SavePolicy:         savePolicy,
		RetryPolicy:        retryPolicy,
		CleanupWorkers:     configViper.GetInt("cleanup.workers"),
		CleanupQueueSize:   configViper.GetInt("cleanup.queue_size"),
		OrphanGracePeriod:  time.Duration(configViper.GetInt("cleanup.orphan_grace_minutes")) * time.Minute,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.TAuthSigningKey) == "" {
		return fmt.Errorf("tauth.signing_secret is required")
	}
	if strings.TrimSpace(c.TAuthCookieName) == "" {
		return fmt.Errorf("tauth.cookie_name is required")
	}
	if strings.TrimSpace(c.TAuthIssuer) == "" {
		return fmt.Errorf("tauth.issuer is required")
	}
	switch c.DatabaseDriver {
	case "sqlite":
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required")
		}
	case "postgres":
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.DatabaseDriver)
	}
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverS3:
		if strings.TrimSpace(c.StorageBucket) == "" {
			return fmt.Errorf("storage.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("storage.driver must be s3 or memory, got %q", c.StorageDriver)
	}
	if c.UploadTTL <= 0 {
		return fmt.Errorf("media.upload_ttl_seconds must be positive")
	}
	if c.RetryPolicy.MaxAttempts < 1 {
		return fmt.Errorf("transaction.max_attempts must be at least 1")
	}
	if c.RetryPolicy.Timeout <= 0 {
		return fmt.Errorf("transaction.timeout_seconds must be positive")
	}
	if c.CleanupWorkers < 1 || c.CleanupQueueSize < 1 {
		return fmt.Errorf("cleanup.workers and cleanup.queue_size must be positive")
	}
	return nil
}
