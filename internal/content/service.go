package content

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/media"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opServiceNew     = "content.service.new"
	opListDrafts     = "content.list_drafts"
	opGetDraft       = "content.get_draft"
	opCreateDraft    = "content.create_draft"
	opSaveDraft      = "content.save_draft"
	opPublish        = "content.publish"
	opUnpublish      = "content.unpublish"
	opDeleteDraft    = "content.delete_draft"
	opDuplicate      = "content.duplicate"
	opGetPublished   = "content.get_published"
	opListPublished  = "content.list_published"
	opListVersions   = "content.list_versions"
	opListHistory    = "content.list_history"
	placeholderTitle = "Untitled project"
	copySlugSuffix   = "-copy"
)

var noOpLogger = zap.NewNop()

// ServiceConfig describes the dependencies of a Service.
type ServiceConfig struct {
	Database    *gorm.DB
	Catalog     *media.Catalog
	Cleanup     CleanupQueue
	Clock       func() time.Time
	IDProvider  IDProvider
	Logger      *zap.Logger
	RetryPolicy RetryPolicy
	IsRetryable RetryClassifier
	Sleep       SleepFunc
	SavePolicy  SavePolicy
	SystemActor Actor
}

// Service is the content publishing engine. Every mutation runs as one
// retried transaction that writes the project, its snapshot, its media
// references, a version and a history entry; released assets are handed to
// the cleanup queue after commit.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
	runner     transactionRunner
	references referenceResolver
	binder     assetBinder
	catalog    *media.Catalog
	validator  *Validator
	recorder   recorder
	cleanup    CleanupQueue
	savePolicy SavePolicy
}

// NewService validates the configuration and returns a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	if cfg.Catalog == nil {
		return nil, newServiceError(opServiceNew, "missing_catalog", errMissingCatalog)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	systemActor := cfg.SystemActor
	if strings.TrimSpace(systemActor.String()) == "" {
		systemActor = SystemActor
	}
	savePolicy := cfg.SavePolicy
	if savePolicy == "" {
		savePolicy = SavePolicyRefreshLive
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
		runner: transactionRunner{
			db:          cfg.Database,
			policy:      cfg.RetryPolicy,
			isRetryable: cfg.IsRetryable,
			sleep:       sleep,
			logger:      logger,
		},
		references: referenceResolver{idProvider: cfg.IDProvider, systemActor: systemActor},
		binder:     assetBinder{catalog: cfg.Catalog},
		catalog:    cfg.Catalog,
		validator:  NewValidator(),
		recorder:   recorder{idProvider: cfg.IDProvider},
		cleanup:    cfg.Cleanup,
		savePolicy: savePolicy,
	}, nil
}

// ListDrafts returns every live project, most recently updated first.
func (s *Service) ListDrafts(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := s.db.WithContext(ctx).
		Where("deleted_at IS NULL").
		Order("updated_at DESC").
		Order("id DESC").
		Find(&projects).Error; err != nil {
		s.logError(opListDrafts, "query_failed", err)
		return nil, newServiceError(opListDrafts, "query_failed", err)
	}
	return projects, nil
}

// GetDraft loads one live project.
func (s *Service) GetDraft(ctx context.Context, projectID string) (Project, error) {
	project, err := loadLive(s.db.WithContext(ctx), projectID, false)
	if err != nil {
		if IsNotFound(err) {
			return Project{}, err
		}
		s.logError(opGetDraft, "query_failed", err, zap.String("project_id", projectID))
		return Project{}, newServiceError(opGetDraft, "query_failed", err)
	}
	return project, nil
}

// CreateDraft inserts a placeholder draft at revision 1.
func (s *Service) CreateDraft(ctx context.Context, actor Actor) (Project, error) {
	if err := requireActor(actor); err != nil {
		return Project{}, newServiceError(opCreateDraft, "missing_actor", err)
	}
	var created Project
	err := s.runner.run(ctx, opCreateDraft, func(tx *gorm.DB) error {
		now := s.now()
		projectID, err := s.idProvider.NewID()
		if err != nil {
			return err
		}
		slug, err := allocateSlug(tx, placeholderTitle, "", now)
		if err != nil {
			return err
		}
		project := Project{
			ID:            projectID,
			Slug:          slug,
			Title:         placeholderTitle,
			TitleSort:     SortTitle(placeholderTitle),
			Status:        StatusDraft,
			Revision:      1,
			Year:          now.Format("2006"),
			Hero:          datatypes.NewJSONType(HeroImage{}),
			Description:   datatypes.JSONSlice[Paragraph]{},
			Meta:          datatypes.JSONSlice[MetaRow]{},
			Services:      datatypes.JSONSlice[ServiceRef]{},
			Collaborators: datatypes.JSONSlice[CollaboratorRef]{},
			Gallery:       datatypes.JSONSlice[GalleryItem]{},
			CreatedBy:     actor.String(),
			UpdatedBy:     actor.String(),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		project.SearchTokens = datatypes.JSONSlice[string](projectSearchTokens(project))
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		if err := s.recorder.recordHistory(tx, project.ID, ActionCreated, "", StatusDraft, actor, nil, now); err != nil {
			return err
		}
		created = project
		return nil
	})
	if err != nil {
		return Project{}, s.mutationError(opCreateDraft, "", err)
	}
	return created, nil
}

// SaveDraft applies payload to a live project.
func (s *Service) SaveDraft(ctx context.Context, actor Actor, projectID string, payload ProjectPayload) (Project, error) {
	return s.mutate(ctx, opSaveDraft, mutationSave, actor, projectID, &payload)
}

// Publish applies payload, validates it strictly and refreshes the public snapshot.
func (s *Service) Publish(ctx context.Context, actor Actor, projectID string, payload ProjectPayload) (Project, error) {
	return s.mutate(ctx, opPublish, mutationPublish, actor, projectID, &payload)
}

// Unpublish applies payload, returns the project to draft and removes the snapshot.
func (s *Service) Unpublish(ctx context.Context, actor Actor, projectID string, payload ProjectPayload) (Project, error) {
	return s.mutate(ctx, opUnpublish, mutationUnpublish, actor, projectID, &payload)
}

// DeleteDraft archives a project, removes its snapshot and releases its
// assets. The archived project is returned.
func (s *Service) DeleteDraft(ctx context.Context, actor Actor, projectID string) (Project, error) {
	return s.mutate(ctx, opDeleteDraft, mutationDelete, actor, projectID, nil)
}

// Duplicate clones a live project into a new draft under a "-copy" slug.
func (s *Service) Duplicate(ctx context.Context, actor Actor, projectID string) (Project, error) {
	if err := requireActor(actor); err != nil {
		return Project{}, newServiceError(opDuplicate, "missing_actor", err)
	}
	var duplicate Project
	err := s.runner.run(ctx, opDuplicate, func(tx *gorm.DB) error {
		source, err := loadLive(tx, projectID, false)
		if err != nil {
			return err
		}
		now := s.now()
		clone, err := s.cloneProject(source, actor, now)
		if err != nil {
			return err
		}
		clone.Slug, err = allocateSlug(tx, truncateSlug(source.Slug, MaxSlugLength-len(copySlugSuffix))+copySlugSuffix, "", now)
		if err != nil {
			return err
		}
		if err := tx.Create(&clone).Error; err != nil {
			return err
		}
		if err := s.catalog.ReplaceReferences(tx, media.OwnerProject, clone.ID, mediaReferences(clone.Hero.Data(), clone.Gallery)); err != nil {
			return err
		}
		if err := s.recorder.recordHistory(tx, clone.ID, ActionDuplicated, "", StatusDraft, actor, nil, now); err != nil {
			return err
		}
		duplicate = clone
		return nil
	})
	if err != nil {
		return Project{}, s.mutationError(opDuplicate, projectID, err)
	}
	return duplicate, nil
}

// GetPublished loads the public snapshot for slug.
func (s *Service) GetPublished(ctx context.Context, slug string) (PublishedProject, error) {
	var snapshot PublishedProject
	err := s.db.WithContext(ctx).Where("slug = ?", strings.TrimSpace(slug)).Take(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PublishedProject{}, ErrSnapshotNotFound
	}
	if err != nil {
		s.logError(opGetPublished, "query_failed", err, zap.String("slug", slug))
		return PublishedProject{}, newServiceError(opGetPublished, "query_failed", err)
	}
	return snapshot, nil
}

// ListPublished returns the public snapshots in title order, optionally
// narrowed to those whose search text contains every word of query.
func (s *Service) ListPublished(ctx context.Context, query string) ([]PublishedProject, error) {
	statement := s.db.WithContext(ctx).Model(&PublishedProject{})
	for _, token := range searchTokens(query) {
		statement = statement.Where("search_text LIKE ?", "%"+token+"%")
	}
	var snapshots []PublishedProject
	if err := statement.Order("title_sort ASC").Order("project_id ASC").Find(&snapshots).Error; err != nil {
		s.logError(opListPublished, "query_failed", err)
		return nil, newServiceError(opListPublished, "query_failed", err)
	}
	return snapshots, nil
}

// ListVersions returns the version rows of a project, newest first.
func (s *Service) ListVersions(ctx context.Context, projectID string) ([]ProjectVersion, error) {
	var versions []ProjectVersion
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("version DESC").
		Find(&versions).Error; err != nil {
		s.logError(opListVersions, "query_failed", err, zap.String("project_id", projectID))
		return nil, newServiceError(opListVersions, "query_failed", err)
	}
	return versions, nil
}

// ListHistory returns the audit entries of a project, oldest first.
func (s *Service) ListHistory(ctx context.Context, projectID string) ([]ProjectHistoryEntry, error) {
	var entries []ProjectHistoryEntry
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&entries).Error; err != nil {
		s.logError(opListHistory, "query_failed", err, zap.String("project_id", projectID))
		return nil, newServiceError(opListHistory, "query_failed", err)
	}
	return entries, nil
}

func (s *Service) mutate(ctx context.Context, operation string, kind mutationKind, actor Actor, projectID string, payload *ProjectPayload) (Project, error) {
	if err := requireActor(actor); err != nil {
		return Project{}, newServiceError(operation, "missing_actor", err)
	}
	var (
		result   Project
		released []string
	)
	err := s.runner.run(ctx, operation, func(tx *gorm.DB) error {
		project, err := loadLive(tx, projectID, true)
		if err != nil {
			return err
		}
		plan, err := planTransition(kind, project.Status, s.savePolicy)
		if err != nil {
			return err
		}
		before := referencedAssetIDs(project)
		liveSnapshotAssets, err := s.catalog.ReferencedAssets(tx, media.OwnerSnapshot, project.ID)
		if err != nil {
			return err
		}
		for _, assetID := range liveSnapshotAssets {
			before[assetID] = struct{}{}
		}
		now := s.now()

		if payload != nil {
			violations, err := s.applyPayload(tx, &project, *payload, actor, now)
			if err != nil {
				return err
			}
			if plan.validate {
				taken, err := slugInUse(tx, project.Slug, project.ID)
				if err != nil {
					return err
				}
				violations = append(violations, s.validator.Validate(project, plan.mode, taken)...)
			}
			if len(violations) > 0 {
				return &ValidationError{Violations: violations}
			}
		}

		project.Status = plan.to
		if plan.bumpRevision {
			project.Revision++
		}
		project.UpdatedAt = now
		project.UpdatedBy = actor.String()
		if plan.action == ActionPublished {
			project.PublishedAt = &now
			project.PublishedBy = actor.String()
		}
		if plan.to == StatusArchived {
			project.DeletedAt = &now
		}
		if err := tx.Save(&project).Error; err != nil {
			return err
		}

		switch plan.snapshot {
		case snapshotUpsert:
			if err := upsertSnapshot(tx, buildSnapshot(project)); err != nil {
				return err
			}
			if err := s.catalog.ReplaceReferences(tx, media.OwnerSnapshot, project.ID, mediaReferences(project.Hero.Data(), project.Gallery)); err != nil {
				return err
			}
		case snapshotRemove:
			if err := removeSnapshot(tx, project.ID); err != nil {
				return err
			}
			if err := s.catalog.DropReferences(tx, media.OwnerSnapshot, project.ID); err != nil {
				return err
			}
		}

		after := referencedAssetIDs(project)
		if plan.to == StatusArchived {
			after = map[string]struct{}{}
			if err := s.catalog.DropReferences(tx, media.OwnerProject, project.ID); err != nil {
				return err
			}
		} else if err := s.catalog.ReplaceReferences(tx, media.OwnerProject, project.ID, mediaReferences(project.Hero.Data(), project.Gallery)); err != nil {
			return err
		}
		if plan.snapshot == snapshotKeep {
			for _, assetID := range liveSnapshotAssets {
				after[assetID] = struct{}{}
			}
		}

		var snapshotVersion *int64
		if plan.source != "" {
			version, err := s.recorder.recordVersion(tx, project, plan.source, plan.publishedAfter(), actor, now)
			if err != nil {
				return err
			}
			snapshotVersion = &version.Version
		}
		if err := s.recorder.recordHistory(tx, project.ID, plan.action, plan.from, plan.to, actor, snapshotVersion, now); err != nil {
			return err
		}

		result = project
		released = releasedAssetIDs(before, after)
		return nil
	})
	if err != nil {
		return Project{}, s.mutationError(operation, projectID, err)
	}
	if len(released) > 0 && s.cleanup != nil {
		s.cleanup.Enqueue(CleanupTask{ProjectID: projectID, AssetIDs: released})
	}
	return result, nil
}

func (s *Service) cloneProject(source Project, actor Actor, now time.Time) (Project, error) {
	projectID, err := s.idProvider.NewID()
	if err != nil {
		return Project{}, err
	}
	clone := source
	clone.ID = projectID
	clone.Status = StatusDraft
	clone.Revision = 1
	clone.CreatedBy = actor.String()
	clone.UpdatedBy = actor.String()
	clone.PublishedBy = ""
	clone.CreatedAt = now
	clone.UpdatedAt = now
	clone.PublishedAt = nil
	clone.DeletedAt = nil

	clone.Description = make(datatypes.JSONSlice[Paragraph], len(source.Description))
	for index, paragraph := range source.Description {
		if paragraph.ID, err = s.idProvider.NewID(); err != nil {
			return Project{}, err
		}
		clone.Description[index] = paragraph
	}
	clone.Meta = make(datatypes.JSONSlice[MetaRow], len(source.Meta))
	for index, row := range source.Meta {
		if row.ID, err = s.idProvider.NewID(); err != nil {
			return Project{}, err
		}
		clone.Meta[index] = row
	}
	clone.Services = make(datatypes.JSONSlice[ServiceRef], len(source.Services))
	for index, service := range source.Services {
		if service.ID, err = s.idProvider.NewID(); err != nil {
			return Project{}, err
		}
		clone.Services[index] = service
	}
	clone.Collaborators = make(datatypes.JSONSlice[CollaboratorRef], len(source.Collaborators))
	for index, collaborator := range source.Collaborators {
		if collaborator.ID, err = s.idProvider.NewID(); err != nil {
			return Project{}, err
		}
		clone.Collaborators[index] = collaborator
	}
	clone.Gallery = make(datatypes.JSONSlice[GalleryItem], len(source.Gallery))
	for index, item := range source.Gallery {
		if item.ID, err = s.idProvider.NewID(); err != nil {
			return Project{}, err
		}
		clone.Gallery[index] = item
	}
	clone.SearchTokens = append(datatypes.JSONSlice[string]{}, source.SearchTokens...)
	return clone, nil
}

func loadLive(db *gorm.DB, projectID string, forUpdate bool) (Project, error) {
	if strings.TrimSpace(projectID) == "" {
		return Project{}, ErrProjectNotFound
	}
	query := db
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var project Project
	err := query.Where("id = ? AND deleted_at IS NULL", projectID).Take(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Project{}, ErrProjectNotFound
	}
	if err != nil {
		return Project{}, err
	}
	return project, nil
}

func requireActor(actor Actor) error {
	if strings.TrimSpace(actor.String()) == "" {
		return errMissingActor
	}
	return nil
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

// mutationError logs store failures and passes domain errors through untouched.
func (s *Service) mutationError(operation, projectID string, err error) error {
	if isTerminal(err) {
		return err
	}
	var fatal *FatalStoreError
	if errors.As(err, &fatal) {
		s.logError(operation, "store_failed", err, zap.String("project_id", projectID), zap.Int("attempts", fatal.Attempts))
		return err
	}
	s.logError(operation, "mutation_failed", err, zap.String("project_id", projectID))
	return newServiceError(operation, "mutation_failed", err)
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("content service error", attrs...)
}
