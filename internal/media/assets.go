package media

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInvalidAssetReference indicates that a submitted value cannot be mapped to a storage key.
	ErrInvalidAssetReference = errors.New("media: invalid asset reference")
	errMissingIDProvider     = errors.New("media: id provider is required")
)

// IDProvider issues identifiers for new asset rows.
type IDProvider interface {
	NewID() (string, error)
}

// CatalogConfig describes the dependencies of a Catalog.
type CatalogConfig struct {
	Resolver   URLResolver
	IDProvider IDProvider
	Clock      func() time.Time
}

// Catalog reads and writes asset metadata and reference rows. Every method
// takes the gorm handle to run on so callers can keep the work inside their
// own transaction.
type Catalog struct {
	resolver   URLResolver
	idProvider IDProvider
	clock      func() time.Time
}

// NewCatalog validates the configuration and returns a Catalog.
func NewCatalog(cfg CatalogConfig) (*Catalog, error) {
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Catalog{
		resolver:   cfg.Resolver,
		idProvider: cfg.IDProvider,
		clock:      clock,
	}, nil
}

// Resolver exposes the URL resolver used for key derivation.
func (c *Catalog) Resolver() URLResolver {
	return c.resolver
}

// FindLive loads a non-deleted asset by id, locking the row for the
// remainder of the transaction.
func (c *Catalog) FindLive(tx *gorm.DB, assetID string) (Asset, error) {
	var asset Asset
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND deleted_at IS NULL", assetID).
		Take(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Asset{}, fmt.Errorf("%w: %s", ErrAssetNotFound, assetID)
	}
	if err != nil {
		return Asset{}, err
	}
	return asset, nil
}

// FindByStorageKey loads the live asset stored under key.
func (c *Catalog) FindByStorageKey(db *gorm.DB, storageKey string) (Asset, error) {
	var asset Asset
	err := db.Where("storage_key = ? AND deleted_at IS NULL", storageKey).Take(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Asset{}, fmt.Errorf("%w: %s", ErrAssetNotFound, storageKey)
	}
	if err != nil {
		return Asset{}, err
	}
	return asset, nil
}

// EnsureRequest describes an asset that should exist after Ensure returns.
type EnsureRequest struct {
	PublicURL   string
	StorageKey  string
	Kind        Kind
	Dimensions  Dimensions
	SizeBytes   int64
	ContentType string
	ProjectID   string
	Actor       string
}

// Ensure returns the asset matching the request's public URL or storage key,
// creating it when neither is known. A soft-deleted match is revived.
func (c *Catalog) Ensure(tx *gorm.DB, request EnsureRequest) (Asset, bool, error) {
	publicURL := strings.TrimSpace(request.PublicURL)
	storageKey := strings.TrimSpace(request.StorageKey)
	if storageKey == "" {
		storageKey = c.resolver.StorageKey(publicURL)
	}
	if storageKey == "" {
		return Asset{}, false, fmt.Errorf("%w: %q", ErrInvalidAssetReference, request.PublicURL)
	}
	if publicURL == "" {
		publicURL = storageKey
	}

	var existing Asset
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("public_url = ? OR storage_key = ?", publicURL, storageKey).
		Order("created_at ASC").
		Take(&existing).Error
	if err == nil {
		if existing.DeletedAt != nil {
			if err := tx.Model(&Asset{}).Where("id = ?", existing.ID).Update("deleted_at", nil).Error; err != nil {
				return Asset{}, false, err
			}
			existing.DeletedAt = nil
		}
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Asset{}, false, err
	}

	kind := request.Kind
	if kind == "" {
		kind = KindGallery
	}
	assetID, err := c.idProvider.NewID()
	if err != nil {
		return Asset{}, false, err
	}
	asset := Asset{
		ID:          assetID,
		StorageKey:  storageKey,
		PublicURL:   publicURL,
		Kind:        kind,
		Width:       request.Dimensions.Width,
		Height:      request.Dimensions.Height,
		Format:      formatFor(storageKey, request.ContentType),
		ContentType: request.ContentType,
		SizeBytes:   request.SizeBytes,
		ProjectID:   request.ProjectID,
		CreatedBy:   request.Actor,
		CreatedAt:   c.clock().UTC(),
	}
	if asset.SizeBytes < 0 {
		asset.SizeBytes = 0
	}
	if err := tx.Create(&asset).Error; err != nil {
		return Asset{}, false, err
	}
	return asset, true, nil
}

// ReplaceReferences rewrites the reference rows held by one owner.
func (c *Catalog) ReplaceReferences(tx *gorm.DB, ownerKind OwnerKind, ownerID string, references []Reference) error {
	if err := c.DropReferences(tx, ownerKind, ownerID); err != nil {
		return err
	}
	if len(references) == 0 {
		return nil
	}
	rows := make([]Reference, 0, len(references))
	seen := make(map[Reference]struct{}, len(references))
	for _, reference := range references {
		reference.OwnerKind = ownerKind
		reference.OwnerID = ownerID
		if _, duplicate := seen[reference]; duplicate {
			continue
		}
		seen[reference] = struct{}{}
		rows = append(rows, reference)
	}
	return tx.Create(&rows).Error
}

// DropReferences removes every reference row held by one owner.
func (c *Catalog) DropReferences(tx *gorm.DB, ownerKind OwnerKind, ownerID string) error {
	return tx.Where("owner_kind = ? AND owner_id = ?", ownerKind, ownerID).Delete(&Reference{}).Error
}

// ReferencedAssets lists the distinct asset ids one owner points at.
func (c *Catalog) ReferencedAssets(tx *gorm.DB, ownerKind OwnerKind, ownerID string) ([]string, error) {
	var assetIDs []string
	err := tx.Model(&Reference{}).
		Where("owner_kind = ? AND owner_id = ?", ownerKind, ownerID).
		Distinct("asset_id").
		Pluck("asset_id", &assetIDs).Error
	return assetIDs, err
}

// CountReferences returns how many live documents point at an asset.
func CountReferences(db *gorm.DB, assetID string) (int64, error) {
	var count int64
	err := db.Model(&Reference{}).Where("asset_id = ?", assetID).Count(&count).Error
	return count, err
}

func formatFor(storageKey, contentType string) string {
	if format := FormatFromKey(storageKey); format != "" {
		return format
	}
	if contentType == "" {
		return ""
	}
	detected := mimetype.Lookup(contentType)
	if detected == nil {
		return ""
	}
	return FormatFromKey(detected.Extension())
}
