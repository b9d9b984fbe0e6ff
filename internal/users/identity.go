package users

import (
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/content"
)

// Identity maps a provider-specific login to the canonical editor id that
// appears as the actor in project history.
type Identity struct {
	Provider    string    `gorm:"column:provider;primaryKey;size:32;not null"`
	Subject     string    `gorm:"column:subject;primaryKey;size:190;not null"`
	EditorID    string    `gorm:"column:editor_id;size:190;not null;index"`
	Email       string    `gorm:"column:editor_email;size:320"`
	DisplayName string    `gorm:"column:editor_display_name;size:320"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing editor identities.
func (Identity) TableName() string {
	return "editor_identities"
}

// Editor is an authenticated person allowed to change content.
type Editor struct {
	ID          string
	Email       string
	DisplayName string
}

// Actor returns the label recorded on versions and history entries.
func (e Editor) Actor() content.Actor {
	return content.Actor(e.ID)
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
