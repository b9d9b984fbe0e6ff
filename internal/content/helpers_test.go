package content

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/media"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	testActor     Actor = "editor@example.com"
	testPublicURL       = "https://cdn.example.test"
)

type sequentialIDs struct {
	mu     sync.Mutex
	prefix string
	next   int
}

func (g *sequentialIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("%s-%04d", g.prefix, g.next), nil
}

type steppingClock struct {
	mu      sync.Mutex
	current time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(time.Second)
	return c.current
}

type testEngine struct {
	service   *Service
	db        *gorm.DB
	blobs     *media.MemoryBlobStore
	catalog   *media.Catalog
	collector *Collector
}

type engineOption func(*ServiceConfig)

func withSavePolicy(policy SavePolicy) engineOption {
	return func(cfg *ServiceConfig) {
		cfg.SavePolicy = policy
	}
}

func withLogger(logger *zap.Logger) engineOption {
	return func(cfg *ServiceConfig) {
		cfg.Logger = logger
	}
}

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:folio_content_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(Models()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newTestEngine(t *testing.T, options ...engineOption) *testEngine {
	t.Helper()
	db := openTestDatabase(t)
	clock := &steppingClock{current: time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)}
	ids := &sequentialIDs{prefix: "id"}

	blobs := media.NewMemoryBlobStore(testPublicURL)
	catalog, err := media.NewCatalog(media.CatalogConfig{
		Resolver:   media.NewURLResolver("/media", testPublicURL),
		IDProvider: ids,
		Clock:      clock.Now,
	})
	if err != nil {
		t.Fatalf("failed to construct catalog: %v", err)
	}
	collector, err := NewCollector(CollectorConfig{Database: db, Blobs: blobs, Clock: clock.Now})
	if err != nil {
		t.Fatalf("failed to construct collector: %v", err)
	}

	cfg := ServiceConfig{
		Database:    db,
		Catalog:     catalog,
		Cleanup:     NewInlineCleanupQueue(collector),
		Clock:       clock.Now,
		IDProvider:  ids,
		RetryPolicy: RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Timeout: 5 * time.Second},
	}
	for _, option := range options {
		option(&cfg)
	}
	if cfg.Logger != nil {
		collector.logger = cfg.Logger
	}
	service, err := NewService(cfg)
	if err != nil {
		t.Fatalf("failed to construct content service: %v", err)
	}
	return &testEngine{service: service, db: db, blobs: blobs, catalog: catalog, collector: collector}
}

func (e *testEngine) storeBlob(t *testing.T, key string) string {
	t.Helper()
	if err := e.blobs.Put(context.Background(), key, strings.NewReader("image-bytes"), 11, "image/jpeg"); err != nil {
		t.Fatalf("failed to store blob %s: %v", key, err)
	}
	return e.blobs.PublicURL(key)
}

func (e *testEngine) createDraft(t *testing.T) Project {
	t.Helper()
	project, err := e.service.CreateDraft(context.Background(), testActor)
	if err != nil {
		t.Fatalf("create draft failed: %v", err)
	}
	return project
}

func longParagraph(topic string) string {
	return topic + " was shaped through a long sequence of site visits, material studies and client workshops held over many months."
}

// draftPayload satisfies the loose rules and carries no images.
func draftPayload(title string) ProjectPayload {
	return ProjectPayload{
		Title:    title,
		Category: "Residential",
		Location: "Lisbon, Portugal",
		Year:     "2023",
		Excerpt:  "A compact courtyard house organised around light and shade.",
		Description: []ParagraphInput{
			{Text: longParagraph("The courtyard")},
			{Text: longParagraph("The roof garden")},
		},
		Meta: []MetaInput{
			{Label: "Area", Value: "240 m2"},
			{Label: "Client", Value: "Private"},
			{Label: "Status", Value: "Completed"},
		},
		Services:      []LabelInput{{Label: "Architecture"}},
		Collaborators: []LabelInput{{Label: "Ana Costa — Studio Norte"}},
	}
}

// publishablePayload adds a captioned hero and three captioned gallery images.
func (e *testEngine) publishablePayload(t *testing.T, title string, projectID string) ProjectPayload {
	t.Helper()
	payload := draftPayload(title)
	payload.Hero = &ImageInput{
		URL:     e.storeBlob(t, "projects/"+projectID+"/hero/cover.jpg"),
		Caption: "Street elevation at dusk",
		Width:   1600,
		Height:  900,
	}
	for index := 1; index <= 3; index++ {
		payload.Gallery = append(payload.Gallery, ImageInput{
			URL:     e.storeBlob(t, fmt.Sprintf("projects/%s/gallery/view-%d.jpg", projectID, index)),
			Caption: fmt.Sprintf("View %d", index),
		})
	}
	return payload
}

func intPointer(value int) *int {
	return &value
}

func assertContiguous(t *testing.T, name string, orders []int) {
	t.Helper()
	for index, order := range orders {
		if order != index {
			t.Fatalf("%s order not contiguous: %v", name, orders)
		}
	}
}

func countRows(t *testing.T, db *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var count int64
	if err := db.Model(model).Where(query, args...).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return count
}
