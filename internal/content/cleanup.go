package content

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/media"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	cleanupStageMark   = "mark"
	cleanupStageLoad   = "load"
	cleanupStageBlob   = "blob"
	cleanupStagePurge  = "purge"
	defaultCleanupSize = 64
)

var (
	errMissingBlobStore = errors.New("blob store is required")
	errMissingCollector = errors.New("collector is required")
)

// CleanupTask names assets a committed mutation stopped referencing.
type CleanupTask struct {
	ProjectID string
	AssetIDs  []string
}

// CleanupReport summarizes one collection pass.
type CleanupReport struct {
	Deleted  []string
	Retained []string
	Failed   []string
}

// CollectorConfig describes the dependencies of a Collector.
type CollectorConfig struct {
	Database *gorm.DB
	Blobs    media.BlobStore
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Collector deletes assets nothing references any more. It runs outside any
// content transaction and only logs its failures; a half-finished pass leaves
// a soft-deleted row that the next sweep picks up.
type Collector struct {
	db     *gorm.DB
	blobs  media.BlobStore
	clock  func() time.Time
	logger *zap.Logger
}

// NewCollector validates the configuration and returns a Collector.
func NewCollector(cfg CollectorConfig) (*Collector, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Blobs == nil {
		return nil, errMissingBlobStore
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Collector{db: cfg.Database, blobs: cfg.Blobs, clock: clock, logger: logger}, nil
}

// Collect re-checks every candidate against the live reference rows and
// removes the ones no document holds.
func (c *Collector) Collect(ctx context.Context, task CleanupTask) CleanupReport {
	report := CleanupReport{}
	doomed := make([]media.Asset, 0, len(task.AssetIDs))
	for _, assetID := range task.AssetIDs {
		asset, marked, err := c.mark(ctx, assetID)
		if err != nil {
			c.reportFailure(&AssetCleanupError{AssetID: assetID, StorageKey: asset.StorageKey, Stage: stageOf(err), Err: err}, task.ProjectID)
			report.Failed = append(report.Failed, assetID)
			continue
		}
		if !marked {
			report.Retained = append(report.Retained, assetID)
			continue
		}
		doomed = append(doomed, asset)
	}
	purged := make([]media.Asset, 0, len(doomed))
	for _, asset := range doomed {
		removed, err := c.purge(ctx, asset.ID)
		if err != nil {
			c.reportFailure(&AssetCleanupError{AssetID: asset.ID, StorageKey: asset.StorageKey, Stage: cleanupStagePurge, Err: err}, task.ProjectID)
			report.Failed = append(report.Failed, asset.ID)
			continue
		}
		if !removed {
			report.Retained = append(report.Retained, asset.ID)
			continue
		}
		purged = append(purged, asset)
	}
	if len(purged) == 0 {
		return report
	}

	keys := make([]string, 0, len(purged))
	for _, asset := range purged {
		keys = append(keys, asset.StorageKey)
	}
	if err := c.blobs.DeleteBatch(ctx, keys); err != nil {
		for _, asset := range purged {
			c.reportFailure(&AssetCleanupError{AssetID: asset.ID, StorageKey: asset.StorageKey, Stage: cleanupStageBlob, Err: err}, task.ProjectID)
			c.restoreTombstone(ctx, asset)
			report.Failed = append(report.Failed, asset.ID)
		}
		return report
	}
	for _, asset := range purged {
		report.Deleted = append(report.Deleted, asset.ID)
	}
	c.logger.Info("asset cleanup finished",
		zap.String("project_id", task.ProjectID),
		zap.Int("deleted", len(report.Deleted)),
		zap.Int("retained", len(report.Retained)),
		zap.Int("failed", len(report.Failed)))
	return report
}

// SweepOrphans collects assets that are already soft-deleted or that no
// document has referenced for longer than olderThan.
func (c *Collector) SweepOrphans(ctx context.Context, olderThan time.Duration) (CleanupReport, error) {
	cutoff := c.clock().UTC().Add(-olderThan)
	var assetIDs []string
	err := c.db.WithContext(ctx).
		Model(&media.Asset{}).
		Where("deleted_at IS NOT NULL OR (created_at < ? AND NOT EXISTS (SELECT 1 FROM media_references WHERE media_references.asset_id = media_assets.id))", cutoff).
		Order("created_at ASC").
		Pluck("id", &assetIDs).Error
	if err != nil {
		return CleanupReport{}, err
	}
	if len(assetIDs) == 0 {
		return CleanupReport{}, nil
	}
	return c.Collect(ctx, CleanupTask{AssetIDs: assetIDs}), nil
}

type stagedError struct {
	stage string
	err   error
}

func (e *stagedError) Error() string { return e.err.Error() }

func (e *stagedError) Unwrap() error { return e.err }

func stageOf(err error) string {
	var staged *stagedError
	if errors.As(err, &staged) {
		return staged.stage
	}
	return cleanupStageMark
}

// mark soft-deletes the asset unless a reference row still names it. The
// guard and the write are one statement so a concurrent binder either sees
// the mark and revives the row or wins and keeps the asset alive.
func (c *Collector) mark(ctx context.Context, assetID string) (media.Asset, bool, error) {
	result := c.db.WithContext(ctx).
		Model(&media.Asset{}).
		Where("id = ? AND deleted_at IS NULL AND NOT EXISTS (SELECT 1 FROM media_references WHERE media_references.asset_id = media_assets.id)", assetID).
		Update("deleted_at", c.clock().UTC())
	if result.Error != nil {
		return media.Asset{}, false, &stagedError{stage: cleanupStageMark, err: result.Error}
	}

	var asset media.Asset
	err := c.db.WithContext(ctx).Where("id = ?", assetID).Take(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return media.Asset{}, false, nil
	}
	if err != nil {
		return media.Asset{}, false, &stagedError{stage: cleanupStageLoad, err: err}
	}
	if asset.Live() {
		return asset, false, nil
	}
	referenced, err := media.CountReferences(c.db.WithContext(ctx), assetID)
	if err != nil {
		return asset, false, &stagedError{stage: cleanupStageLoad, err: err}
	}
	return asset, referenced == 0, nil
}

// purge hard-deletes a marked row, re-checking the mark and the reference
// rows in the same statement. It runs before the blob is touched so a row
// revived after the mark keeps its bytes.
func (c *Collector) purge(ctx context.Context, assetID string) (bool, error) {
	result := c.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NOT NULL AND NOT EXISTS (SELECT 1 FROM media_references WHERE media_references.asset_id = media_assets.id)", assetID).
		Delete(&media.Asset{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// restoreTombstone puts a purged row back as soft-deleted after its blob
// could not be removed, leaving it for SweepOrphans.
func (c *Collector) restoreTombstone(ctx context.Context, asset media.Asset) {
	if asset.DeletedAt == nil {
		markedAt := c.clock().UTC()
		asset.DeletedAt = &markedAt
	}
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&asset).Error
	if err != nil {
		c.logger.Error("asset tombstone restore failed",
			zap.String("asset_id", asset.ID),
			zap.String("storage_key", asset.StorageKey),
			zap.Error(err))
	}
}

func (c *Collector) reportFailure(err *AssetCleanupError, projectID string) {
	c.logger.Warn("asset cleanup failed",
		zap.String("project_id", projectID),
		zap.String("asset_id", err.AssetID),
		zap.String("storage_key", err.StorageKey),
		zap.String("stage", err.Stage),
		zap.Error(err.Err))
}

// CleanupQueue hands post-commit cleanup work to a collector.
type CleanupQueue interface {
	Enqueue(task CleanupTask)
}

// InlineCleanupQueue collects synchronously on the caller's goroutine.
type InlineCleanupQueue struct {
	collector *Collector
}

// NewInlineCleanupQueue wraps collector.
func NewInlineCleanupQueue(collector *Collector) *InlineCleanupQueue {
	return &InlineCleanupQueue{collector: collector}
}

func (q *InlineCleanupQueue) Enqueue(task CleanupTask) {
	if q == nil || q.collector == nil || len(task.AssetIDs) == 0 {
		return
	}
	q.collector.Collect(context.Background(), task)
}

// AsyncCleanupQueueConfig sizes the background cleanup workers.
type AsyncCleanupQueueConfig struct {
	Workers   int
	QueueSize int
	Logger    *zap.Logger
}

// AsyncCleanupQueue runs collection on a fixed pool of background workers.
// Enqueue never blocks; tasks arriving while the buffer is full are dropped
// and left for SweepOrphans.
type AsyncCleanupQueue struct {
	mu        sync.RWMutex
	closed    bool
	tasks     chan CleanupTask
	collector *Collector
	logger    *zap.Logger
	group     *errgroup.Group
	ctx       context.Context
}

// NewAsyncCleanupQueue starts the workers. They stop after Close drains the buffer.
func NewAsyncCleanupQueue(ctx context.Context, collector *Collector, cfg AsyncCleanupQueueConfig) (*AsyncCleanupQueue, error) {
	if collector == nil {
		return nil, errMissingCollector
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultCleanupSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	queue := &AsyncCleanupQueue{
		tasks:     make(chan CleanupTask, size),
		collector: collector,
		logger:    logger,
		group:     &errgroup.Group{},
		ctx:       context.WithoutCancel(ctx),
	}
	for worker := 0; worker < workers; worker++ {
		queue.group.Go(queue.work)
	}
	return queue, nil
}

func (q *AsyncCleanupQueue) work() error {
	for task := range q.tasks {
		q.collector.Collect(q.ctx, task)
	}
	return nil
}

func (q *AsyncCleanupQueue) Enqueue(task CleanupTask) {
	if len(task.AssetIDs) == 0 {
		return
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("cleanup queue closed, dropping task", zap.String("project_id", task.ProjectID), zap.Strings("asset_ids", task.AssetIDs))
		return
	}
	select {
	case q.tasks <- task:
	default:
		q.logger.Warn("cleanup queue full, dropping task", zap.String("project_id", task.ProjectID), zap.Strings("asset_ids", task.AssetIDs))
	}
}

// Close stops accepting tasks and waits for the workers to finish the buffer.
func (q *AsyncCleanupQueue) Close() error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()
	return q.group.Wait()
}
