package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/content"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/media"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	testPublicBase = "https://cdn.example.test"
	testEditorID   = "editor-1"
	testAuthHeader = "Bearer valid"
)

type counterIDs struct {
	mu   sync.Mutex
	next int
}

func (c *counterIDs) NewID() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	return fmt.Sprintf("id-%04d", c.next), nil
}

type stubSessions struct {
	err error
}

func (s stubSessions) ValidateRequest(r *http.Request) (auth.SessionClaims, error) {
	if s.err != nil {
		return auth.SessionClaims{}, s.err
	}
	if r.Header.Get("Authorization") != testAuthHeader {
		return auth.SessionClaims{}, auth.ErrMissingSessionToken
	}
	return auth.SessionClaims{UserID: testEditorID}, nil
}

type stubEditors struct{}

func (stubEditors) ResolveEditor(_ context.Context, claims auth.SessionClaims) (users.Editor, error) {
	return users.Editor{ID: claims.UserID}, nil
}

type testServer struct {
	handler http.Handler
	blobs   *media.MemoryBlobStore
	events  *EventDispatcher
}

func newTestServer(t *testing.T, logger *zap.Logger) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:folio_server_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
	if err := db.AutoMigrate(content.Models()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	ids := &counterIDs{}
	resolver := media.NewURLResolver("/media", testPublicBase)
	blobs := media.NewMemoryBlobStore(testPublicBase)
	catalog, err := media.NewCatalog(media.CatalogConfig{Resolver: resolver, IDProvider: ids})
	if err != nil {
		t.Fatalf("failed to construct catalog: %v", err)
	}
	uploads, err := media.NewUploadService(media.UploadServiceConfig{
		Database:   db,
		Blobs:      blobs,
		Catalog:    catalog,
		IDProvider: ids,
	})
	if err != nil {
		t.Fatalf("failed to construct upload service: %v", err)
	}
	collector, err := content.NewCollector(content.CollectorConfig{Database: db, Blobs: blobs})
	if err != nil {
		t.Fatalf("failed to construct collector: %v", err)
	}
	service, err := content.NewService(content.ServiceConfig{
		Database:    db,
		Catalog:     catalog,
		Cleanup:     content.NewInlineCleanupQueue(collector),
		IDProvider:  ids,
		RetryPolicy: content.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Timeout: 5 * time.Second},
	})
	if err != nil {
		t.Fatalf("failed to construct content service: %v", err)
	}

	events := NewEventDispatcher()
	handler, err := NewHTTPHandler(Dependencies{
		Sessions: stubSessions{},
		Editors:  stubEditors{},
		Content:  service,
		Uploads:  uploads,
		Blobs:    blobs,
		Resolver: resolver,
		Events:   events,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("failed to construct handler: %v", err)
	}
	return &testServer{handler: handler, blobs: blobs, events: events}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if strings.HasPrefix(path, "/admin/") {
		request.Header.Set("Authorization", testAuthHeader)
	}
	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, request)
	return recorder
}

func (s *testServer) storeBlob(t *testing.T, key string) string {
	t.Helper()
	if err := s.blobs.Put(context.Background(), key, strings.NewReader("image-bytes"), 11, "image/jpeg"); err != nil {
		t.Fatalf("failed to store blob %s: %v", key, err)
	}
	return s.blobs.PublicURL(key)
}

func (s *testServer) publishablePayload(t *testing.T, title, projectID string) content.ProjectPayload {
	t.Helper()
	paragraph := func(topic string) string {
		return topic + " was shaped through a long sequence of site visits, material studies and client workshops held over many months."
	}
	payload := content.ProjectPayload{
		Title:    title,
		Category: "Residential",
		Location: "Porto, Portugal",
		Year:     "2022",
		Excerpt:  "A terraced house stepping down toward the river.",
		Hero: &content.ImageInput{
			URL:     s.storeBlob(t, "projects/"+projectID+"/hero/cover.jpg"),
			Caption: "River facade",
		},
		Description: []content.ParagraphInput{
			{Text: paragraph("The terrace")},
			{Text: paragraph("The stair")},
		},
		Meta: []content.MetaInput{
			{Label: "Area", Value: "310 m2"},
			{Label: "Client", Value: "Private"},
			{Label: "Status", Value: "Completed"},
		},
		Services:      []content.LabelInput{{Label: "Architecture"}},
		Collaborators: []content.LabelInput{{Label: "Rui Alves - Atelier Sul"}},
	}
	for index := 1; index <= 3; index++ {
		payload.Gallery = append(payload.Gallery, content.ImageInput{
			URL:     s.storeBlob(t, fmt.Sprintf("projects/%s/gallery/view-%d.jpg", projectID, index)),
			Caption: fmt.Sprintf("View %d", index),
		})
	}
	return payload
}

func decodeJSON[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var value T
	if err := json.Unmarshal(recorder.Body.Bytes(), &value); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return value
}

func expectStatus(t *testing.T, recorder *httptest.ResponseRecorder, status int) {
	t.Helper()
	if recorder.Code != status {
		t.Fatalf("unexpected status code: got %d, want %d (body %s)", recorder.Code, status, recorder.Body.String())
	}
}
