package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/media"
	"github.com/gin-gonic/gin"
)

type uploadSlotRequest struct {
	ContentType string `json:"contentType" binding:"required"`
	Kind        string `json:"kind" binding:"required"`
}

type commitUploadRequest struct {
	Key         string `json:"key" binding:"required"`
	PublicURL   string `json:"publicUrl"`
	Kind        string `json:"kind" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
	Width       int    `json:"width" binding:"gte=0"`
	Height      int    `json:"height" binding:"gte=0"`
	SizeBytes   int64  `json:"sizeBytes" binding:"gte=0"`
}

type assetPayload struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	URL         string `json:"url"`
	PublicURL   string `json:"publicUrl"`
	Kind        string `json:"kind"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Format      string `json:"format"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

func (h *httpHandler) handleCreateUploadSlot(c *gin.Context) {
	var request uploadSlotRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c)
		return
	}
	kind, err := media.ParseKind(request.Kind)
	if err != nil {
		h.respondError(c, "create_upload_slot", err)
		return
	}
	projectID := c.Param("id")
	if _, err := h.content.GetDraft(c.Request.Context(), projectID); err != nil {
		h.respondError(c, "create_upload_slot", err)
		return
	}
	slot, err := h.uploads.CreateUploadSlot(c.Request.Context(), projectID, request.ContentType, kind)
	if err != nil {
		h.respondError(c, "create_upload_slot", err)
		return
	}
	c.JSON(http.StatusCreated, slot)
}

func (h *httpHandler) handleCommitUpload(c *gin.Context) {
	var request commitUploadRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c)
		return
	}
	kind, err := media.ParseKind(request.Kind)
	if err != nil {
		h.respondError(c, "commit_upload", err)
		return
	}
	projectID := c.Param("id")
	if _, err := h.content.GetDraft(c.Request.Context(), projectID); err != nil {
		h.respondError(c, "commit_upload", err)
		return
	}
	asset, err := h.uploads.CommitUpload(c.Request.Context(), media.CommitRequest{
		ProjectID:   projectID,
		Key:         request.Key,
		PublicURL:   request.PublicURL,
		Kind:        kind,
		Dimensions:  media.Dimensions{Width: request.Width, Height: request.Height},
		SizeBytes:   request.SizeBytes,
		ContentType: request.ContentType,
		Actor:       editorFrom(c).ID,
	})
	if err != nil {
		h.respondError(c, "commit_upload", err)
		return
	}
	c.JSON(http.StatusCreated, h.presentAsset(asset))
}

func (h *httpHandler) handleUploadFile(c *gin.Context) {
	kind, err := media.ParseKind(c.DefaultPostForm("kind", media.KindGallery.String()))
	if err != nil {
		h.respondError(c, "upload_file", err)
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		badRequest(c)
		return
	}
	if fileHeader.Size > media.MaxUploadBytes {
		h.respondError(c, "upload_file", media.ErrUploadTooLarge)
		return
	}
	projectID := c.Param("id")
	if _, err := h.content.GetDraft(c.Request.Context(), projectID); err != nil {
		h.respondError(c, "upload_file", err)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		badRequest(c)
		return
	}
	defer file.Close()

	asset, err := h.uploads.UploadFile(c.Request.Context(), media.FileUpload{
		ProjectID: projectID,
		Kind:      kind,
		Body:      file,
		Actor:     editorFrom(c).ID,
	})
	if err != nil {
		h.respondError(c, "upload_file", err)
		return
	}
	c.JSON(http.StatusCreated, h.presentAsset(asset))
}

func (h *httpHandler) presentAsset(asset media.Asset) assetPayload {
	return assetPayload{
		ID:          asset.ID,
		Key:         asset.StorageKey,
		URL:         h.resolver.Resolve(asset.PublicURL),
		PublicURL:   asset.PublicURL,
		Kind:        asset.Kind.String(),
		Width:       asset.Width,
		Height:      asset.Height,
		Format:      asset.Format,
		ContentType: asset.ContentType,
		SizeBytes:   asset.SizeBytes,
	}
}
