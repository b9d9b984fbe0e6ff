package content

import (
	"time"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/media"
	"gorm.io/datatypes"
)

// Status enumerates the publishing states of a project.
type Status string

const (
	// StatusDraft is an editable project without a public snapshot.
	StatusDraft Status = "draft"
	// StatusPublished is a project with a live public snapshot.
	StatusPublished Status = "published"
	// StatusArchived is the terminal soft-deleted state.
	StatusArchived Status = "archived"
)

// VersionSource names the mutation that produced a ProjectVersion.
type VersionSource string

const (
	SourceManualSave VersionSource = "manual-save"
	SourcePublish    VersionSource = "publish"
	SourceUnpublish  VersionSource = "unpublish"
)

// HistoryAction names the event recorded in a ProjectHistoryEntry.
type HistoryAction string

const (
	ActionCreated     HistoryAction = "created"
	ActionDuplicated  HistoryAction = "duplicated"
	ActionSaved       HistoryAction = "saved"
	ActionPublished   HistoryAction = "published"
	ActionUnpublished HistoryAction = "unpublished"
	ActionDeleted     HistoryAction = "deleted"
)

// Actor identifies who performed a mutation.
type Actor string

// SystemActor attributes rows the engine creates on its own behalf.
const SystemActor Actor = "system"

// String returns the underlying actor identifier.
func (a Actor) String() string {
	return string(a)
}

// HeroImage is the lead image of a project. An empty AssetID means no image.
type HeroImage struct {
	AssetID string `json:"assetId,omitempty"`
	URL     string `json:"url,omitempty"`
	Caption string `json:"caption,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
}

// Paragraph is one description paragraph.
type Paragraph struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Order int    `json:"order"`
}

// MetaRow is one label/value fact shown next to the project.
type MetaRow struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value string `json:"value"`
	Order int    `json:"order"`
}

// ServiceRef points at a Service lookup row.
type ServiceRef struct {
	ID        string `json:"id"`
	ServiceID string `json:"serviceId"`
	Label     string `json:"label"`
	Order     int    `json:"order"`
}

// CollaboratorRef points at a Collaborator lookup row.
type CollaboratorRef struct {
	ID             string `json:"id"`
	CollaboratorID string `json:"collaboratorId"`
	Name           string `json:"name"`
	Organization   string `json:"organization,omitempty"`
	Order          int    `json:"order"`
}

// GalleryItem is one image of the ordered project gallery.
type GalleryItem struct {
	ID      string `json:"id"`
	AssetID string `json:"assetId,omitempty"`
	URL     string `json:"url,omitempty"`
	Caption string `json:"caption,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Order   int    `json:"order"`
}

// Project is the mutable draft document and the source of truth.
type Project struct {
	ID            string                               `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	Slug          string                               `gorm:"column:slug;size:60;not null;uniqueIndex:idx_projects_live_slug,where:deleted_at IS NULL" json:"slug"`
	Title         string                               `gorm:"column:title;size:255;not null;default:''" json:"title"`
	TitleSort     string                               `gorm:"column:title_sort;size:255;not null;default:'';index" json:"titleSort"`
	Status        Status                               `gorm:"column:status;size:16;not null;index" json:"status"`
	Revision      int64                                `gorm:"column:revision;not null;default:1" json:"revision"`
	CategoryID    string                               `gorm:"column:category_id;size:64;not null;default:''" json:"categoryId,omitempty"`
	CategoryLabel string                               `gorm:"column:category_label;size:255;not null;default:''" json:"category"`
	Location      string                               `gorm:"column:location;size:255;not null;default:''" json:"location"`
	Year          string                               `gorm:"column:year;size:16;not null;default:''" json:"year"`
	Excerpt       string                               `gorm:"column:excerpt;type:text;not null;default:''" json:"excerpt"`
	Hero          datatypes.JSONType[HeroImage]        `gorm:"column:hero" json:"hero"`
	Description   datatypes.JSONSlice[Paragraph]       `gorm:"column:description" json:"description"`
	Meta          datatypes.JSONSlice[MetaRow]         `gorm:"column:meta" json:"meta"`
	Services      datatypes.JSONSlice[ServiceRef]      `gorm:"column:services" json:"services"`
	Collaborators datatypes.JSONSlice[CollaboratorRef] `gorm:"column:collaborators" json:"collaborators"`
	Gallery       datatypes.JSONSlice[GalleryItem]     `gorm:"column:gallery" json:"gallery"`
	SearchTokens  datatypes.JSONSlice[string]          `gorm:"column:search_tokens" json:"searchTokens"`
	CreatedBy     string                               `gorm:"column:created_by;size:190;not null;default:''" json:"createdBy"`
	UpdatedBy     string                               `gorm:"column:updated_by;size:190;not null;default:''" json:"updatedBy"`
	PublishedBy   string                               `gorm:"column:published_by;size:190;not null;default:''" json:"publishedBy,omitempty"`
	CreatedAt     time.Time                            `gorm:"column:created_at;autoCreateTime:false;not null" json:"createdAt"`
	UpdatedAt     time.Time                            `gorm:"column:updated_at;autoUpdateTime:false;not null;index" json:"updatedAt"`
	PublishedAt   *time.Time                           `gorm:"column:published_at" json:"publishedAt,omitempty"`
	DeletedAt     *time.Time                           `gorm:"column:deleted_at;index" json:"deletedAt,omitempty"`
}

// TableName provides the explicit table binding for GORM.
func (Project) TableName() string {
	return "projects"
}

// PublishedMeta is the public form of a MetaRow.
type PublishedMeta struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// PublishedCollaborator is the public form of a CollaboratorRef.
type PublishedCollaborator struct {
	Name         string `json:"name"`
	Organization string `json:"organization,omitempty"`
}

// PublishedImage is the public form of a hero or gallery image.
type PublishedImage struct {
	AssetID string `json:"assetId"`
	URL     string `json:"url"`
	Caption string `json:"caption"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
}

// PublishedProject is the denormalized public snapshot of a published project.
// It exists exactly while the source project is published.
type PublishedProject struct {
	ProjectID     string                                     `gorm:"column:project_id;primaryKey;size:64;not null" json:"projectId"`
	Slug          string                                     `gorm:"column:slug;size:60;not null;uniqueIndex:idx_published_projects_slug" json:"slug"`
	Title         string                                     `gorm:"column:title;size:255;not null" json:"title"`
	TitleSort     string                                     `gorm:"column:title_sort;size:255;not null;index" json:"-"`
	Category      string                                     `gorm:"column:category;size:255;not null;default:''" json:"category"`
	Location      string                                     `gorm:"column:location;size:255;not null;default:''" json:"location"`
	Year          string                                     `gorm:"column:year;size:16;not null;default:''" json:"year"`
	Excerpt       string                                     `gorm:"column:excerpt;type:text;not null;default:''" json:"excerpt"`
	Hero          datatypes.JSONType[PublishedImage]         `gorm:"column:hero" json:"hero"`
	Description   datatypes.JSONSlice[string]                `gorm:"column:description" json:"description"`
	Meta          datatypes.JSONSlice[PublishedMeta]         `gorm:"column:meta" json:"meta"`
	Services      datatypes.JSONSlice[string]                `gorm:"column:services" json:"services"`
	Collaborators datatypes.JSONSlice[PublishedCollaborator] `gorm:"column:collaborators" json:"collaborators"`
	Gallery       datatypes.JSONSlice[PublishedImage]        `gorm:"column:gallery" json:"gallery"`
	SearchText    string                                     `gorm:"column:search_text;type:text;not null;default:''" json:"-"`
	Revision      int64                                      `gorm:"column:revision;not null" json:"revision"`
	PublishedAt   time.Time                                  `gorm:"column:published_at;not null" json:"publishedAt"`
	PublishedBy   string                                     `gorm:"column:published_by;size:190;not null;default:''" json:"-"`
}

// TableName provides the explicit table binding for GORM.
func (PublishedProject) TableName() string {
	return "published_projects"
}

// ProjectVersion is an append-only full copy of a project after a mutation.
type ProjectVersion struct {
	ID        string         `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	ProjectID string         `gorm:"column:project_id;size:64;not null;uniqueIndex:idx_project_versions_project_version,priority:1" json:"projectId"`
	Version   int64          `gorm:"column:version;not null;uniqueIndex:idx_project_versions_project_version,priority:2" json:"version"`
	Status    Status         `gorm:"column:status;size:16;not null" json:"status"`
	Source    VersionSource  `gorm:"column:source;size:16;not null" json:"source"`
	Payload   datatypes.JSON `gorm:"column:payload;not null" json:"payload"`
	Published bool           `gorm:"column:published;not null;default:false" json:"published"`
	CreatedBy string         `gorm:"column:created_by;size:190;not null;default:''" json:"createdBy"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime:false;not null" json:"createdAt"`
}

// TableName provides the explicit table binding for GORM.
func (ProjectVersion) TableName() string {
	return "project_versions"
}

// ProjectHistoryEntry is an append-only lifecycle event.
type ProjectHistoryEntry struct {
	ID              string        `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	ProjectID       string        `gorm:"column:project_id;size:64;not null;index:idx_project_history_project_time,priority:1" json:"projectId"`
	Action          HistoryAction `gorm:"column:action;size:16;not null" json:"action"`
	FromStatus      Status        `gorm:"column:from_status;size:16;not null;default:''" json:"fromStatus,omitempty"`
	ToStatus        Status        `gorm:"column:to_status;size:16;not null" json:"toStatus"`
	Actor           string        `gorm:"column:actor;size:190;not null;default:''" json:"actor"`
	SnapshotVersion *int64        `gorm:"column:snapshot_version" json:"snapshotVersion,omitempty"`
	CreatedAt       time.Time     `gorm:"column:created_at;autoCreateTime:false;not null;index:idx_project_history_project_time,priority:2" json:"createdAt"`
}

// TableName provides the explicit table binding for GORM.
func (ProjectHistoryEntry) TableName() string {
	return "project_history"
}

// Category is a deduplicated project category keyed by slug.
type Category struct {
	ID        string    `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	Slug      string    `gorm:"column:slug;size:60;not null;uniqueIndex:idx_categories_slug" json:"slug"`
	Label     string    `gorm:"column:label;size:255;not null" json:"label"`
	CreatedBy string    `gorm:"column:created_by;size:190;not null;default:''" json:"createdBy"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime:false;not null" json:"createdAt"`
}

// TableName provides the explicit table binding for GORM.
func (Category) TableName() string {
	return "categories"
}

// ServiceOffering is a deduplicated service offering keyed by slug.
type ServiceOffering struct {
	ID        string    `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	Slug      string    `gorm:"column:slug;size:60;not null;uniqueIndex:idx_services_slug" json:"slug"`
	Label     string    `gorm:"column:label;size:255;not null" json:"label"`
	CreatedBy string    `gorm:"column:created_by;size:190;not null;default:''" json:"createdBy"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime:false;not null" json:"createdAt"`
}

// TableName provides the explicit table binding for GORM.
func (ServiceOffering) TableName() string {
	return "services"
}

// Collaborator is a deduplicated person or studio keyed by name and organization.
type Collaborator struct {
	ID           string    `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	IdentityKey  string    `gorm:"column:identity_key;size:190;not null;uniqueIndex:idx_collaborators_identity" json:"-"`
	DisplayName  string    `gorm:"column:display_name;size:255;not null" json:"displayName"`
	Organization string    `gorm:"column:organization;size:255;not null;default:''" json:"organization,omitempty"`
	CreatedBy    string    `gorm:"column:created_by;size:190;not null;default:''" json:"createdBy"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime:false;not null" json:"createdAt"`
}

// TableName provides the explicit table binding for GORM.
func (Collaborator) TableName() string {
	return "collaborators"
}

// Models lists every table the engine reads or writes, in migration order.
func Models() []any {
	return []any{
		&Project{},
		&PublishedProject{},
		&ProjectVersion{},
		&ProjectHistoryEntry{},
		&Category{},
		&ServiceOffering{},
		&Collaborator{},
		&media.Asset{},
		&media.Reference{},
	}
}
