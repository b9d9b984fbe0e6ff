package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/content"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/media"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationBackfillTitleSort            = "2026-03-01_backfill_project_title_sort"
	migrationDropArchivedProjectMediaRefs = "2026-03-12_drop_archived_project_media_refs"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillTitleSort, apply: backfillTitleSort},
		{name: migrationDropArchivedProjectMediaRefs, apply: dropArchivedProjectMediaRefs},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// backfillTitleSort fills the ordering key of rows written before it existed.
func backfillTitleSort(db *gorm.DB) error {
	var projects []content.Project
	if err := db.Select("id", "title").Where("title_sort = ''").Find(&projects).Error; err != nil {
		return err
	}
	for _, project := range projects {
		key := content.SortTitle(project.Title)
		if err := db.Model(&content.Project{}).Where("id = ?", project.ID).Update("title_sort", key).Error; err != nil {
			return err
		}
		if err := db.Model(&content.PublishedProject{}).Where("project_id = ? AND title_sort = ''", project.ID).Update("title_sort", key).Error; err != nil {
			return err
		}
	}
	return nil
}

// dropArchivedProjectMediaRefs removes references still held by archived
// projects so the orphan sweep can reclaim their assets.
func dropArchivedProjectMediaRefs(db *gorm.DB) error {
	archived := db.Model(&content.Project{}).Select("id").Where("deleted_at IS NOT NULL")
	return db.Where("owner_kind IN ? AND owner_id IN (?)", []media.OwnerKind{media.OwnerProject, media.OwnerSnapshot}, archived).
		Delete(&media.Reference{}).Error
}
