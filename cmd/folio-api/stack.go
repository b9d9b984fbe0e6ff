package main

import (
	"context"
	"database/sql"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/config"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/content"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/database"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/media"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// stack holds the long-lived dependencies shared by the serve and sweep commands.
type stack struct {
	db        *gorm.DB
	sqlDB     *sql.DB
	blobs     media.BlobStore
	resolver  media.URLResolver
	catalog   *media.Catalog
	uploads   *media.UploadService
	collector *content.Collector
	sessions  *auth.SessionValidator
	editors   *users.Service
	ids       content.IDProvider
}

func openStack(ctx context.Context, appConfig config.AppConfig, logger *zap.Logger) (*stack, error) {
	db, err := database.Open(database.Config{
		Driver: appConfig.DatabaseDriver,
		Path:   appConfig.DatabasePath,
		DSN:    appConfig.DatabaseDSN,
	}, logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	blobs, publicBase, err := openBlobStore(ctx, appConfig)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	resolver := media.NewURLResolver(appConfig.MediaProxyPrefix, publicBase)
	ids := content.NewUUIDProvider()

	catalog, err := media.NewCatalog(media.CatalogConfig{Resolver: resolver, IDProvider: ids})
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	uploads, err := media.NewUploadService(media.UploadServiceConfig{
		Database:   db,
		Blobs:      blobs,
		Catalog:    catalog,
		IDProvider: ids,
		UploadTTL:  appConfig.UploadTTL,
		Logger:     logger,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	collector, err := content.NewCollector(content.CollectorConfig{Database: db, Blobs: blobs, Logger: logger})
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	sessions, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.TAuthSigningKey),
		Issuer:        appConfig.TAuthIssuer,
		CookieName:    appConfig.TAuthCookieName,
		RequiredRole:  appConfig.TAuthRequiredRole,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	editors, err := users.NewService(users.ServiceConfig{Database: db, Logger: logger})
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return &stack{
		db:        db,
		sqlDB:     sqlDB,
		blobs:     blobs,
		resolver:  resolver,
		catalog:   catalog,
		uploads:   uploads,
		collector: collector,
		sessions:  sessions,
		editors:   editors,
		ids:       ids,
	}, nil
}

func openBlobStore(ctx context.Context, appConfig config.AppConfig) (media.BlobStore, string, error) {
	if appConfig.StorageDriver != config.StorageDriverS3 {
		return media.NewMemoryBlobStore(appConfig.StoragePublicURL), appConfig.StoragePublicURL, nil
	}
	store, err := media.NewS3BlobStore(ctx, media.S3Config{
		Bucket:          appConfig.StorageBucket,
		Region:          appConfig.StorageRegion,
		Endpoint:        appConfig.StorageEndpoint,
		AccessKeyID:     appConfig.StorageAccessKeyID,
		SecretAccessKey: appConfig.StorageSecretKey,
		UsePathStyle:    appConfig.StoragePathStyle,
		PublicBaseURL:   appConfig.StoragePublicURL,
	})
	if err != nil {
		return nil, "", err
	}
	return store, store.PublicBaseURL(), nil
}

func (s *stack) contentService(appConfig config.AppConfig, cleanup content.CleanupQueue, logger *zap.Logger) (*content.Service, error) {
	return content.NewService(content.ServiceConfig{
		Database:    s.db,
		Catalog:     s.catalog,
		Cleanup:     cleanup,
		IDProvider:  s.ids,
		Logger:      logger,
		RetryPolicy: appConfig.RetryPolicy,
		IsRetryable: database.RetryClassifier(s.db),
		SavePolicy:  appConfig.SavePolicy,
	})
}

func (s *stack) close() {
	_ = s.sqlDB.Close()
}
