package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/content"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestProjectLifecycleOverHTTP(t *testing.T) {
	server := newTestServer(t, nil)

	created := server.do(t, http.MethodPost, "/admin/projects", nil)
	expectStatus(t, created, http.StatusCreated)
	draft := decodeJSON[content.Project](t, created)
	if draft.Status != content.StatusDraft || draft.Revision != 1 {
		t.Fatalf("unexpected new draft: %+v", draft)
	}

	invalid := server.do(t, http.MethodPost, "/admin/projects/"+draft.ID+"/publish", content.ProjectPayload{Title: "Casa do Rio"})
	expectStatus(t, invalid, http.StatusUnprocessableEntity)
	rejection := decodeJSON[errorResponse](t, invalid)
	if rejection.Error != "validation_failed" || len(rejection.Violations) == 0 {
		t.Fatalf("expected violations, got %+v", rejection)
	}

	payload := server.publishablePayload(t, "Casa do Rio", draft.ID)
	published := server.do(t, http.MethodPost, "/admin/projects/"+draft.ID+"/publish", payload)
	expectStatus(t, published, http.StatusOK)
	project := decodeJSON[content.Project](t, published)
	if project.Status != content.StatusPublished || project.Slug != "casa-do-rio" {
		t.Fatalf("unexpected published project: %+v", project)
	}
	if hero := project.Hero.Data(); hero.URL != "/media/projects/"+draft.ID+"/hero/cover.jpg" {
		t.Fatalf("expected proxy hero url, got %q", hero.URL)
	}

	public := server.do(t, http.MethodGet, "/projects/casa-do-rio", nil)
	expectStatus(t, public, http.StatusOK)
	snapshot := decodeJSON[content.PublishedProject](t, public)
	if snapshot.Title != "Casa do Rio" || len(snapshot.Gallery) != 3 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	if !strings.HasPrefix(snapshot.Gallery[0].URL, "/media/") {
		t.Fatalf("expected proxy gallery url, got %q", snapshot.Gallery[0].URL)
	}

	listing := server.do(t, http.MethodGet, "/projects?q=river", nil)
	expectStatus(t, listing, http.StatusOK)
	found := decodeJSON[struct {
		Projects []content.PublishedProject `json:"projects"`
	}](t, listing)
	if len(found.Projects) != 1 {
		t.Fatalf("expected search to find the project, got %d", len(found.Projects))
	}

	unpublished := server.do(t, http.MethodPost, "/admin/projects/"+draft.ID+"/unpublish", payload)
	expectStatus(t, unpublished, http.StatusOK)
	expectStatus(t, server.do(t, http.MethodGet, "/projects/casa-do-rio", nil), http.StatusNotFound)

	duplicated := server.do(t, http.MethodPost, "/admin/projects/"+draft.ID+"/duplicate", nil)
	expectStatus(t, duplicated, http.StatusCreated)
	if clone := decodeJSON[content.Project](t, duplicated); clone.Slug != "casa-do-rio-copy" {
		t.Fatalf("unexpected duplicate slug %q", clone.Slug)
	}

	versions := decodeJSON[struct {
		Versions []content.ProjectVersion `json:"versions"`
	}](t, server.do(t, http.MethodGet, "/admin/projects/"+draft.ID+"/versions", nil))
	if len(versions.Versions) != 2 || versions.Versions[0].Version != 3 {
		t.Fatalf("expected versions 3 and 2 newest first, got %+v", versions.Versions)
	}

	deleted := server.do(t, http.MethodDelete, "/admin/projects/"+draft.ID, nil)
	expectStatus(t, deleted, http.StatusOK)
	if archived := decodeJSON[content.Project](t, deleted); archived.Status != content.StatusArchived || archived.DeletedAt == nil {
		t.Fatalf("expected the archived draft in the delete response, got %+v", archived)
	}
	expectStatus(t, server.do(t, http.MethodGet, "/admin/projects/"+draft.ID, nil), http.StatusNotFound)

	history := decodeJSON[struct {
		History []content.ProjectHistoryEntry `json:"history"`
	}](t, server.do(t, http.MethodGet, "/admin/projects/"+draft.ID+"/history", nil))
	actions := make([]content.HistoryAction, 0, len(history.History))
	for _, entry := range history.History {
		actions = append(actions, entry.Action)
		if entry.Actor != testEditorID {
			t.Fatalf("expected editor actor, got %q", entry.Actor)
		}
	}
	expected := []content.HistoryAction{content.ActionCreated, content.ActionPublished, content.ActionUnpublished, content.ActionDeleted}
	if len(actions) != len(expected) {
		t.Fatalf("unexpected history %v", actions)
	}
	for index := range expected {
		if actions[index] != expected[index] {
			t.Fatalf("unexpected history %v", actions)
		}
	}
}

func TestSaveDraftAcceptsLooseContent(t *testing.T) {
	server := newTestServer(t, nil)
	draft := decodeJSON[content.Project](t, server.do(t, http.MethodPost, "/admin/projects", nil))

	saved := server.do(t, http.MethodPut, "/admin/projects/"+draft.ID, content.ProjectPayload{Title: "Work in progress"})
	expectStatus(t, saved, http.StatusUnprocessableEntity)

	payload := server.publishablePayload(t, "Work in progress", draft.ID)
	payload.Gallery = nil
	payload.Hero = nil
	saved = server.do(t, http.MethodPut, "/admin/projects/"+draft.ID, payload)
	expectStatus(t, saved, http.StatusOK)
	if project := decodeJSON[content.Project](t, saved); project.Revision != 2 || project.Status != content.StatusDraft {
		t.Fatalf("unexpected saved project: %+v", project)
	}

	listing := decodeJSON[projectListResponse](t, server.do(t, http.MethodGet, "/admin/projects", nil))
	if len(listing.Projects) != 1 || listing.Projects[0].Title != "Work in progress" {
		t.Fatalf("unexpected draft listing: %+v", listing.Projects)
	}
}

func TestUnknownProjectReturnsNotFound(t *testing.T) {
	server := newTestServer(t, nil)

	expectStatus(t, server.do(t, http.MethodGet, "/admin/projects/missing", nil), http.StatusNotFound)
	expectStatus(t, server.do(t, http.MethodPut, "/admin/projects/missing", content.ProjectPayload{}), http.StatusNotFound)
	expectStatus(t, server.do(t, http.MethodDelete, "/admin/projects/missing", nil), http.StatusNotFound)
	expectStatus(t, server.do(t, http.MethodGet, "/projects/missing", nil), http.StatusNotFound)
}

func TestMalformedPayloadIsRejected(t *testing.T) {
	server := newTestServer(t, nil)
	draft := decodeJSON[content.Project](t, server.do(t, http.MethodPost, "/admin/projects", nil))

	request := httptest.NewRequest(http.MethodPut, "/admin/projects/"+draft.ID, strings.NewReader("{not json"))
	request.Header.Set("Authorization", testAuthHeader)
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	server.handler.ServeHTTP(recorder, request)
	expectStatus(t, recorder, http.StatusBadRequest)
}

func TestAdminRoutesRequireSession(t *testing.T) {
	server := newTestServer(t, nil)

	request := httptest.NewRequest(http.MethodGet, "/admin/projects", http.NoBody)
	recorder := httptest.NewRecorder()
	server.handler.ServeHTTP(recorder, request)
	expectStatus(t, recorder, http.StatusUnauthorized)

	expectStatus(t, server.do(t, http.MethodGet, "/healthz", nil), http.StatusOK)
}

func TestAuthorizeRequestLogLevels(t *testing.T) {
	testCases := []struct {
		name    string
		err     error
		status  int
		level   zapcore.Level
		message string
	}{
		{name: "expired", err: auth.ErrExpiredSessionToken, status: http.StatusUnauthorized, level: zapcore.InfoLevel, message: "session validation failed"},
		{name: "tampered", err: errors.New("signature mismatch"), status: http.StatusUnauthorized, level: zapcore.WarnLevel, message: "session validation failed"},
		{name: "not an editor", err: auth.ErrMissingSessionRole, status: http.StatusForbidden, level: zapcore.InfoLevel, message: "session lacks editor role"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			recorder := httptest.NewRecorder()
			ctx, _ := gin.CreateTestContext(recorder)
			ctx.Request = httptest.NewRequest(http.MethodGet, "/admin/projects", http.NoBody)

			core, logs := observer.New(zapcore.DebugLevel)
			handler := &httpHandler{
				sessions: stubSessions{err: testCase.err},
				editors:  stubEditors{},
				logger:   zap.New(core),
			}

			handler.authorizeRequest(ctx)

			if recorder.Code != testCase.status {
				t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, testCase.status)
			}
			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("expected exactly one log entry, got %d", len(entries))
			}
			if entries[0].Level != testCase.level || entries[0].Message != testCase.message {
				t.Fatalf("unexpected log entry %s %q", entries[0].Level, entries[0].Message)
			}
		})
	}
}

func TestRespondErrorMapsStoreExhaustion(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{logger: zap.New(core)}
	handler.respondError(ctx, "publish", &content.FatalStoreError{Operation: "content.publish", Attempts: 3, Err: errors.New("database is locked")})

	expectStatus(t, recorder, http.StatusServiceUnavailable)
	if logs.FilterMessage("store unavailable").Len() != 1 {
		t.Fatalf("expected store failure to be logged")
	}
}

func TestCORSMiddlewareAllowsCredentialedOrigins(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(corsMiddleware([]string{"https://studio.example.com"}))
	router.OPTIONS("/admin/projects", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	request := httptest.NewRequest(http.MethodOptions, "/admin/projects", http.NoBody)
	request.Header.Set("Origin", "https://studio.example.com")
	request.Header.Set("Access-Control-Request-Method", http.MethodPut)
	request.Header.Set("Access-Control-Request-Headers", "Authorization")

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "https://studio.example.com" {
		t.Fatalf("unexpected allowed origin %q", recorder.Header().Get("Access-Control-Allow-Origin"))
	}
	if recorder.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("expected credentials to be enabled")
	}
}
