package server

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/content"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

// objectOpener is implemented by blob stores that can serve bytes directly.
type objectOpener interface {
	Open(key string) (io.Reader, bool)
}

func (h *httpHandler) handleListPublished(c *gin.Context) {
	snapshots, err := h.content.ListPublished(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.respondError(c, "list_published", err)
		return
	}
	projects := make([]content.PublishedProject, 0, len(snapshots))
	for _, snapshot := range snapshots {
		projects = append(projects, h.presentPublished(snapshot))
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (h *httpHandler) handleGetPublished(c *gin.Context) {
	snapshot, err := h.content.GetPublished(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.respondError(c, "get_published", err)
		return
	}
	c.JSON(http.StatusOK, h.presentPublished(snapshot))
}

func (h *httpHandler) handleMedia(c *gin.Context) {
	key := c.Param("key")
	if opener, ok := h.blobs.(objectOpener); ok {
		if reader, found := opener.Open(strings.TrimLeft(key, "/")); found {
			data, err := io.ReadAll(reader)
			if err != nil {
				h.respondError(c, "serve_media", err)
				return
			}
			c.Data(http.StatusOK, mimetype.Detect(data).String(), data)
			return
		}
	}
	target, err := h.uploads.Locate(c.Request.Context(), key)
	if err != nil {
		h.respondError(c, "locate_media", err)
		return
	}
	c.Redirect(http.StatusFound, target)
}

func (h *httpHandler) handleEvents(c *gin.Context) {
	stream, cleanup := h.events.Subscribe(c.Request.Context())
	defer cleanup()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case event := <-stream:
			c.SSEvent(event.Type, event)
			return true
		case <-ticker.C:
			c.SSEvent(eventHeartbeat, gin.H{"source": eventSource})
			return true
		}
	})
}

// presentPublished rewrites snapshot image URLs into their servable proxy form.
func (h *httpHandler) presentPublished(snapshot content.PublishedProject) content.PublishedProject {
	hero := snapshot.Hero.Data()
	hero.URL = h.resolver.Resolve(hero.URL)
	snapshot.Hero = datatypes.NewJSONType(hero)
	gallery := make([]content.PublishedImage, 0, len(snapshot.Gallery))
	for _, image := range snapshot.Gallery {
		image.URL = h.resolver.Resolve(image.URL)
		gallery = append(gallery, image)
	}
	snapshot.Gallery = datatypes.JSONSlice[content.PublishedImage](gallery)
	return snapshot
}
