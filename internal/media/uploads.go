package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultUploadTTL = 15 * time.Minute

	// MaxUploadBytes bounds server-side uploads.
	MaxUploadBytes = 25 << 20
)

var (
	supportedContentTypes = map[string]string{
		"image/jpeg": "jpg",
		"image/png":  "png",
		"image/webp": "webp",
		"image/gif":  "gif",
		"image/avif": "avif",
	}

	// ErrUploadTooLarge indicates that a server-side upload exceeded MaxUploadBytes.
	ErrUploadTooLarge = errors.New("media: upload too large")
	// ErrKeyOutsideProject indicates a commit for a key issued to another project.
	ErrKeyOutsideProject = errors.New("media: storage key does not belong to project")

	errMissingDatabase  = errors.New("media: database handle is required")
	errMissingBlobStore = errors.New("media: blob store is required")
	errMissingCatalog   = errors.New("media: catalog is required")
	errInvalidProjectID = errors.New("media: invalid project id")
	noOpLogger          = zap.NewNop()
)

// UploadServiceConfig describes the dependencies of an UploadService.
type UploadServiceConfig struct {
	Database   *gorm.DB
	Blobs      BlobStore
	Catalog    *Catalog
	IDProvider IDProvider
	Clock      func() time.Time
	UploadTTL  time.Duration
	Logger     *zap.Logger
}

// UploadService issues upload slots and binds committed uploads to asset rows.
type UploadService struct {
	db         *gorm.DB
	blobs      BlobStore
	catalog    *Catalog
	idProvider IDProvider
	clock      func() time.Time
	uploadTTL  time.Duration
	logger     *zap.Logger
}

// NewUploadService validates the configuration and returns an UploadService.
func NewUploadService(cfg UploadServiceConfig) (*UploadService, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Blobs == nil {
		return nil, errMissingBlobStore
	}
	if cfg.Catalog == nil {
		return nil, errMissingCatalog
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	ttl := cfg.UploadTTL
	if ttl <= 0 {
		ttl = defaultUploadTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &UploadService{
		db:         cfg.Database,
		blobs:      cfg.Blobs,
		catalog:    cfg.Catalog,
		idProvider: cfg.IDProvider,
		clock:      clock,
		uploadTTL:  ttl,
		logger:     logger,
	}, nil
}

// UploadSlot is a time-limited permission to PUT one object.
type UploadSlot struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"uploadUrl"`
	PublicURL string    `json:"publicUrl"`
	ProxyURL  string    `json:"proxyUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CreateUploadSlot allocates a storage key for the project and signs a PUT URL for it.
func (s *UploadService) CreateUploadSlot(ctx context.Context, projectID string, contentType string, kind Kind) (UploadSlot, error) {
	extension, err := extensionFor(contentType)
	if err != nil {
		return UploadSlot{}, err
	}
	key, err := s.newKey(projectID, kind, extension)
	if err != nil {
		return UploadSlot{}, err
	}
	uploadURL, err := s.blobs.SignPutURL(ctx, key, normalizeContentType(contentType), s.uploadTTL)
	if err != nil {
		s.logger.Error("sign upload url failed", zap.String("project_id", projectID), zap.String("key", key), zap.Error(err))
		return UploadSlot{}, err
	}
	publicURL := s.blobs.PublicURL(key)
	return UploadSlot{
		Key:       key,
		UploadURL: uploadURL,
		PublicURL: publicURL,
		ProxyURL:  s.catalog.Resolver().Resolve(key),
		ExpiresAt: s.clock().UTC().Add(s.uploadTTL),
	}, nil
}

// CommitRequest carries the metadata a client reports after a direct upload.
type CommitRequest struct {
	ProjectID   string
	Key         string
	PublicURL   string
	Kind        Kind
	Dimensions  Dimensions
	SizeBytes   int64
	ContentType string
	Actor       string
}

// CommitUpload records the uploaded object as a MediaAsset. Committing the
// same key twice returns the existing asset.
func (s *UploadService) CommitUpload(ctx context.Context, request CommitRequest) (Asset, error) {
	if _, err := extensionFor(request.ContentType); err != nil {
		return Asset{}, err
	}
	if _, err := ParseKind(request.Kind.String()); err != nil {
		return Asset{}, err
	}
	key := strings.TrimSpace(request.Key)
	if !strings.HasPrefix(key, projectKeyPrefix(request.ProjectID)) {
		return Asset{}, fmt.Errorf("%w: %s", ErrKeyOutsideProject, key)
	}
	publicURL := strings.TrimSpace(request.PublicURL)
	if publicURL == "" {
		publicURL = s.blobs.PublicURL(key)
	}

	var asset Asset
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ensureErr error
		asset, _, ensureErr = s.catalog.Ensure(tx, EnsureRequest{
			PublicURL:   publicURL,
			StorageKey:  key,
			Kind:        request.Kind,
			Dimensions:  request.Dimensions,
			SizeBytes:   request.SizeBytes,
			ContentType: normalizeContentType(request.ContentType),
			ProjectID:   request.ProjectID,
			Actor:       request.Actor,
		})
		return ensureErr
	})
	if err != nil {
		s.logger.Error("commit upload failed", zap.String("project_id", request.ProjectID), zap.String("key", key), zap.Error(err))
		return Asset{}, err
	}
	return asset, nil
}

// FileUpload is a server-side upload of raw bytes.
type FileUpload struct {
	ProjectID string
	Kind      Kind
	Body      io.Reader
	Actor     string
}

// UploadFile sniffs, stores and binds an image streamed through the API.
func (s *UploadService) UploadFile(ctx context.Context, upload FileUpload) (Asset, error) {
	if _, err := ParseKind(upload.Kind.String()); err != nil {
		return Asset{}, err
	}
	data, err := io.ReadAll(io.LimitReader(upload.Body, MaxUploadBytes+1))
	if err != nil {
		return Asset{}, err
	}
	if len(data) > MaxUploadBytes {
		return Asset{}, ErrUploadTooLarge
	}
	contentType := normalizeContentType(mimetype.Detect(data).String())
	extension, err := extensionFor(contentType)
	if err != nil {
		return Asset{}, err
	}
	key, err := s.newKey(upload.ProjectID, upload.Kind, extension)
	if err != nil {
		return Asset{}, err
	}
	dimensions := Dimensions{}
	if config, _, decodeErr := image.DecodeConfig(bytes.NewReader(data)); decodeErr == nil {
		dimensions = Dimensions{Width: config.Width, Height: config.Height}
	}
	if err := s.blobs.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		s.logger.Error("blob put failed", zap.String("project_id", upload.ProjectID), zap.String("key", key), zap.Error(err))
		return Asset{}, err
	}
	return s.CommitUpload(ctx, CommitRequest{
		ProjectID:   upload.ProjectID,
		Key:         key,
		PublicURL:   s.blobs.PublicURL(key),
		Kind:        upload.Kind,
		Dimensions:  dimensions,
		SizeBytes:   int64(len(data)),
		ContentType: contentType,
		Actor:       upload.Actor,
	})
}

// Locate returns the URL a proxy request for key should be redirected to.
// Keys of external assets point back at their original URL.
func (s *UploadService) Locate(ctx context.Context, rawKey string) (string, error) {
	key, ok := cleanKey(stripQuery(rawKey))
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrAssetNotFound, rawKey)
	}
	asset, err := s.catalog.FindByStorageKey(s.db.WithContext(ctx), key)
	if err != nil && !errors.Is(err, ErrAssetNotFound) {
		return "", err
	}
	if err == nil && strings.Contains(asset.PublicURL, "://") {
		return asset.PublicURL, nil
	}
	if strings.HasPrefix(key, externalKeyPrefix+"/") {
		return "", fmt.Errorf("%w: %s", ErrAssetNotFound, key)
	}
	return s.blobs.PublicURL(key), nil
}

func (s *UploadService) newKey(projectID string, kind Kind, extension string) (string, error) {
	if _, err := ParseKind(kind.String()); err != nil {
		return "", err
	}
	trimmed := strings.TrimSpace(projectID)
	if trimmed == "" || strings.ContainsAny(trimmed, "/\\") {
		return "", fmt.Errorf("%w: %q", errInvalidProjectID, projectID)
	}
	objectID, err := s.idProvider.NewID()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s/%s.%s", projectKeyPrefix(trimmed), kind, objectID, extension), nil
}

func projectKeyPrefix(projectID string) string {
	return "projects/" + strings.TrimSpace(projectID) + "/"
}

func extensionFor(contentType string) (string, error) {
	extension, ok := supportedContentTypes[normalizeContentType(contentType)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
	return extension, nil
}

func normalizeContentType(contentType string) string {
	value := strings.ToLower(strings.TrimSpace(contentType))
	if index := strings.Index(value, ";"); index >= 0 {
		value = strings.TrimSpace(value[:index])
	}
	if value == "image/jpg" {
		return "image/jpeg"
	}
	return value
}
