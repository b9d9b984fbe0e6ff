package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/content"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/media"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error      string              `json:"error"`
	Violations []content.Violation `json:"violations,omitempty"`
}

// respondError maps engine errors onto HTTP statuses.
func (h *httpHandler) respondError(c *gin.Context, operation string, err error) {
	if validationErr, ok := content.IsValidation(err); ok {
		h.logger.Debug("content validation failed", zap.String("operation", operation), zap.Strings("violations", validationErr.Messages()))
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: "validation_failed", Violations: validationErr.Violations})
		return
	}
	var fatal *content.FatalStoreError
	switch {
	case content.IsNotFound(err), errors.Is(err, media.ErrAssetNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "not_found"})
	case errors.Is(err, media.ErrUnsupportedContentType):
		c.JSON(http.StatusUnsupportedMediaType, errorResponse{Error: "unsupported_content_type"})
	case errors.Is(err, media.ErrUploadTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Error: "upload_too_large"})
	case errors.Is(err, media.ErrInvalidKind), errors.Is(err, media.ErrKeyOutsideProject):
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid_request"})
	case errors.As(err, &fatal):
		h.logger.Error("store unavailable", zap.String("operation", operation), zap.Int("attempts", fatal.Attempts), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "store_unavailable"})
	default:
		h.logger.Error("request failed", zap.String("operation", operation), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal_error"})
	}
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid_request"})
}
