package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/content"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

type projectListResponse struct {
	Projects []content.Project `json:"projects"`
}

func (h *httpHandler) handleListDrafts(c *gin.Context) {
	projects, err := h.content.ListDrafts(c.Request.Context())
	if err != nil {
		h.respondError(c, "list_drafts", err)
		return
	}
	response := projectListResponse{Projects: make([]content.Project, 0, len(projects))}
	for _, project := range projects {
		response.Projects = append(response.Projects, h.presentDraft(project))
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleGetDraft(c *gin.Context) {
	project, err := h.content.GetDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "get_draft", err)
		return
	}
	c.JSON(http.StatusOK, h.presentDraft(project))
}

func (h *httpHandler) handleCreateDraft(c *gin.Context) {
	editor := editorFrom(c)
	project, err := h.content.CreateDraft(c.Request.Context(), editor.Actor())
	if err != nil {
		h.respondError(c, "create_draft", err)
		return
	}
	h.announce("project.created", project, editor.ID)
	c.JSON(http.StatusCreated, h.presentDraft(project))
}

type payloadMutation func(c *gin.Context, payload content.ProjectPayload) (content.Project, error)

func (h *httpHandler) handleSaveDraft(c *gin.Context) {
	h.applyPayload(c, "save_draft", "project.saved", func(c *gin.Context, payload content.ProjectPayload) (content.Project, error) {
		return h.content.SaveDraft(c.Request.Context(), editorFrom(c).Actor(), c.Param("id"), payload)
	})
}

func (h *httpHandler) handlePublish(c *gin.Context) {
	h.applyPayload(c, "publish", "project.published", func(c *gin.Context, payload content.ProjectPayload) (content.Project, error) {
		return h.content.Publish(c.Request.Context(), editorFrom(c).Actor(), c.Param("id"), payload)
	})
}

func (h *httpHandler) handleUnpublish(c *gin.Context) {
	h.applyPayload(c, "unpublish", "project.unpublished", func(c *gin.Context, payload content.ProjectPayload) (content.Project, error) {
		return h.content.Unpublish(c.Request.Context(), editorFrom(c).Actor(), c.Param("id"), payload)
	})
}

func (h *httpHandler) applyPayload(c *gin.Context, operation, eventType string, mutation payloadMutation) {
	var payload content.ProjectPayload
	if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c)
		return
	}
	project, err := mutation(c, payload)
	if err != nil {
		h.respondError(c, operation, err)
		return
	}
	h.announce(eventType, project, editorFrom(c).ID)
	c.JSON(http.StatusOK, h.presentDraft(project))
}

func (h *httpHandler) handleDeleteDraft(c *gin.Context) {
	editor := editorFrom(c)
	project, err := h.content.DeleteDraft(c.Request.Context(), editor.Actor(), c.Param("id"))
	if err != nil {
		h.respondError(c, "delete_draft", err)
		return
	}
	h.announce("project.deleted", project, editor.ID)
	c.JSON(http.StatusOK, h.presentDraft(project))
}

func (h *httpHandler) handleDuplicate(c *gin.Context) {
	editor := editorFrom(c)
	project, err := h.content.Duplicate(c.Request.Context(), editor.Actor(), c.Param("id"))
	if err != nil {
		h.respondError(c, "duplicate", err)
		return
	}
	h.announce("project.duplicated", project, editor.ID)
	c.JSON(http.StatusCreated, h.presentDraft(project))
}

func (h *httpHandler) handleListVersions(c *gin.Context) {
	versions, err := h.content.ListVersions(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "list_versions", err)
		return
	}
	if versions == nil {
		versions = []content.ProjectVersion{}
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

func (h *httpHandler) handleListHistory(c *gin.Context) {
	entries, err := h.content.ListHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "list_history", err)
		return
	}
	if entries == nil {
		entries = []content.ProjectHistoryEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

func (h *httpHandler) announce(eventType string, project content.Project, actor string) {
	h.events.Publish(ProjectEvent{
		Type:      eventType,
		ProjectID: project.ID,
		Revision:  project.Revision,
		Actor:     actor,
	})
}

// presentDraft rewrites stored image URLs into their servable proxy form.
func (h *httpHandler) presentDraft(project content.Project) content.Project {
	hero := project.Hero.Data()
	hero.URL = h.resolver.Resolve(hero.URL)
	project.Hero = datatypes.NewJSONType(hero)
	gallery := make([]content.GalleryItem, 0, len(project.Gallery))
	for _, item := range project.Gallery {
		item.URL = h.resolver.Resolve(item.URL)
		gallery = append(gallery, item)
	}
	project.Gallery = datatypes.JSONSlice[content.GalleryItem](gallery)
	return project
}
