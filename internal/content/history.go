package content

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// recorder appends version and history rows. Rows are never updated.
type recorder struct {
	idProvider IDProvider
}

func (r recorder) recordVersion(tx *gorm.DB, project Project, source VersionSource, published bool, actor Actor, now time.Time) (ProjectVersion, error) {
	payload, err := json.Marshal(project)
	if err != nil {
		return ProjectVersion{}, err
	}
	id, err := r.idProvider.NewID()
	if err != nil {
		return ProjectVersion{}, err
	}
	version := ProjectVersion{
		ID:        id,
		ProjectID: project.ID,
		Version:   project.Revision,
		Status:    project.Status,
		Source:    source,
		Payload:   datatypes.JSON(payload),
		Published: published,
		CreatedBy: actor.String(),
		CreatedAt: now,
	}
	if err := tx.Create(&version).Error; err != nil {
		return ProjectVersion{}, err
	}
	return version, nil
}

func (r recorder) recordHistory(tx *gorm.DB, projectID string, action HistoryAction, from, to Status, actor Actor, snapshotVersion *int64, now time.Time) error {
	id, err := r.idProvider.NewID()
	if err != nil {
		return err
	}
	entry := ProjectHistoryEntry{
		ID:              id,
		ProjectID:       projectID,
		Action:          action,
		FromStatus:      from,
		ToStatus:        to,
		Actor:           actor.String(),
		SnapshotVersion: snapshotVersion,
		CreatedAt:       now,
	}
	return tx.Create(&entry).Error
}
