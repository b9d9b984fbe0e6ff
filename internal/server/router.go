package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/content"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/media"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const editorContextKey = "folio_editor"

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingEditorResolver   = errors.New("editor resolver dependency required")
	errMissingContentService   = errors.New("content service dependency required")
	errMissingUploadService    = errors.New("upload service dependency required")
)

// SessionValidator authenticates an incoming request.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// EditorResolver maps session claims onto the editor recorded as actor.
type EditorResolver interface {
	ResolveEditor(ctx context.Context, claims auth.SessionClaims) (users.Editor, error)
}

// Dependencies wires the HTTP surface to the engine.
type Dependencies struct {
	Sessions       SessionValidator
	Editors        EditorResolver
	Content        *content.Service
	Uploads        *media.UploadService
	Blobs          media.BlobStore
	Resolver       media.URLResolver
	Events         *EventDispatcher
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewHTTPHandler builds the gin router serving the admin and public APIs.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Editors == nil {
		return nil, errMissingEditorResolver
	}
	if deps.Content == nil {
		return nil, errMissingContentService
	}
	if deps.Uploads == nil {
		return nil, errMissingUploadService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	events := deps.Events
	if events == nil {
		events = NewEventDispatcher()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		sessions:  deps.Sessions,
		editors:   deps.Editors,
		content:   deps.Content,
		uploads:   deps.Uploads,
		blobs:     deps.Blobs,
		resolver:  deps.Resolver,
		events:    events,
		heartbeat: defaultHeartbeatTick,
		logger:    logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/projects", handler.handleListPublished)
	router.GET("/projects/:slug", handler.handleGetPublished)
	router.GET(deps.Resolver.ProxyPrefix()+"/*key", handler.handleMedia)

	admin := router.Group("/admin")
	admin.Use(handler.authorizeRequest)
	admin.GET("/events", handler.handleEvents)
	admin.GET("/projects", handler.handleListDrafts)
	admin.POST("/projects", handler.handleCreateDraft)
	admin.GET("/projects/:id", handler.handleGetDraft)
	admin.PUT("/projects/:id", handler.handleSaveDraft)
	admin.DELETE("/projects/:id", handler.handleDeleteDraft)
	admin.POST("/projects/:id/publish", handler.handlePublish)
	admin.POST("/projects/:id/unpublish", handler.handleUnpublish)
	admin.POST("/projects/:id/duplicate", handler.handleDuplicate)
	admin.GET("/projects/:id/versions", handler.handleListVersions)
	admin.GET("/projects/:id/history", handler.handleListHistory)
	admin.POST("/projects/:id/uploads", handler.handleCreateUploadSlot)
	admin.POST("/projects/:id/uploads/commit", handler.handleCommitUpload)
	admin.POST("/projects/:id/media", handler.handleUploadFile)

	return router, nil
}

type httpHandler struct {
	sessions  SessionValidator
	editors   EditorResolver
	content   *content.Service
	uploads   *media.UploadService
	blobs     media.BlobStore
	resolver  media.URLResolver
	events    *EventDispatcher
	heartbeat time.Duration
	logger    *zap.Logger
}

// corsMiddleware admits the configured origins; none or "*" reflects any
// origin so the session cookie can still be sent.
func corsMiddleware(origins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-TAuth-Tenant"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		config.AllowOriginFunc = func(string) bool { return true }
	} else {
		config.AllowOrigins = origins
	}
	return cors.New(config)
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingSessionRole):
			h.logger.Info("session lacks editor role", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		case errors.Is(err, auth.ErrExpiredSessionToken), errors.Is(err, auth.ErrMissingSessionToken):
			h.logger.Info("session validation failed", zap.Error(err))
		default:
			h.logger.Warn("session validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	editor, err := h.editors.ResolveEditor(c.Request.Context(), claims)
	if err != nil {
		h.logger.Warn("editor resolution failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(editorContextKey, editor)
	c.Next()
}

func editorFrom(c *gin.Context) users.Editor {
	value, _ := c.Get(editorContextKey)
	editor, _ := value.(users.Editor)
	return editor
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
