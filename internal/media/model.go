package media

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind enumerates the roles an asset can play inside a project.
type Kind string

const (
	// KindHero is the single lead image of a project.
	KindHero Kind = "hero"
	// KindGallery is one image in the ordered project gallery.
	KindGallery Kind = "gallery"
)

var (
	// ErrInvalidKind indicates that an asset kind is neither hero nor gallery.
	ErrInvalidKind = errors.New("media: invalid asset kind")
	// ErrUnsupportedContentType indicates that an upload is not an accepted image type.
	ErrUnsupportedContentType = errors.New("media: unsupported content type")
	// ErrAssetNotFound indicates that an asset id does not resolve to a live asset.
	ErrAssetNotFound = errors.New("media: asset not found")
)

// ParseKind validates raw input and returns a Kind.
func ParseKind(rawInput string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(rawInput))) {
	case KindHero:
		return KindHero, nil
	case KindGallery:
		return KindGallery, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, rawInput)
	}
}

// String returns the underlying kind value.
func (k Kind) String() string {
	return string(k)
}

// Asset is the metadata row for one binary object in the blob store.
// Its lifetime is decided by Reference rows, not by its own columns.
type Asset struct {
	ID          string     `gorm:"column:id;primaryKey;size:64;not null"`
	StorageKey  string     `gorm:"column:storage_key;size:512;not null;uniqueIndex:idx_media_assets_storage_key"`
	PublicURL   string     `gorm:"column:public_url;size:1024;not null;index:idx_media_assets_public_url"`
	Kind        Kind       `gorm:"column:kind;size:16;not null"`
	Width       int        `gorm:"column:width;not null;default:0"`
	Height      int        `gorm:"column:height;not null;default:0"`
	Format      string     `gorm:"column:format;size:16;not null;default:''"`
	ContentType string     `gorm:"column:content_type;size:64;not null;default:''"`
	SizeBytes   int64      `gorm:"column:size_bytes;not null;default:0"`
	ProjectID   string     `gorm:"column:project_id;size:64;not null;default:'';index"`
	CreatedBy   string     `gorm:"column:created_by;size:190;not null;default:''"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime:false;not null"`
	DeletedAt   *time.Time `gorm:"column:deleted_at;index"`
}

// TableName provides the explicit table binding for GORM.
func (Asset) TableName() string {
	return "media_assets"
}

// Live reports whether the asset has not been marked for deletion.
func (a Asset) Live() bool {
	return a.DeletedAt == nil
}

// OwnerKind names the document type holding a reference.
type OwnerKind string

const (
	// OwnerProject marks references held by a live draft project.
	OwnerProject OwnerKind = "project"
	// OwnerSnapshot marks references held by a published snapshot.
	OwnerSnapshot OwnerKind = "snapshot"
)

// Reference records that a live document points at an asset.
// The garbage collector deletes an asset only when no Reference row names it.
type Reference struct {
	OwnerKind OwnerKind `gorm:"column:owner_kind;primaryKey;size:16;not null"`
	OwnerID   string    `gorm:"column:owner_id;primaryKey;size:64;not null"`
	AssetID   string    `gorm:"column:asset_id;primaryKey;size:64;not null;index:idx_media_references_asset"`
	Role      Kind      `gorm:"column:role;primaryKey;size:16;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Reference) TableName() string {
	return "media_references"
}

// Dimensions carries pixel width and height.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}
