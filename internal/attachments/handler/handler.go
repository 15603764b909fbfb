package handler

import (
	"fmt"
	"net/http"

	"crm_backend/internal/attachments/service"
	"crm_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for activity attachments.
type Handler struct {
	svc *service.Service
}

const (
	formFileField          = "file"
	msgNoFile              = "no file provided"
	msgInvalidActivityID   = "invalid activity ID"
	msgInvalidAttachmentID = "invalid attachment ID"
	msgReadFailed          = "failed to read uploaded file"
)

// New creates a new attachments handler.
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Upload stores a multipart file on an activity.
// POST /api/v1/activities/:id/attachments
func (h *Handler) Upload(c *gin.Context) {
	activityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidActivityID, nil)
		return
	}

	fileHeader, err := c.FormFile(formFileField)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgNoFile, nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgReadFailed, nil)
		return
	}
	defer file.Close()

	result, err := h.svc.Upload(c.Request.Context(), identity.UserID(), activityID, service.Upload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Body:        file,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// Download streams an attachment.
// GET /api/v1/activities/:id/attachments/:attachmentId
func (h *Handler) Download(c *gin.Context) {
	activityID, attachmentID, ok := parseIDs(c)
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	download, err := h.svc.Download(c.Request.Context(), identity.UserID(), activityID, attachmentID)
	if httpkit.HandleError(c, err) {
		return
	}
	defer download.Body.Close()

	c.DataFromReader(http.StatusOK, download.Size, download.ContentType, download.Body, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, download.Filename),
	})
}

// Delete removes an attachment.
// DELETE /api/v1/activities/:id/attachments/:attachmentId
func (h *Handler) Delete(c *gin.Context) {
	activityID, attachmentID, ok := parseIDs(c)
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), identity.UserID(), activityID, attachmentID); httpkit.HandleError(c, err) {
		return
	}
	httpkit.NoContent(c)
}

func parseIDs(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	activityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidActivityID, nil)
		return uuid.Nil, uuid.Nil, false
	}
	attachmentID, err := uuid.Parse(c.Param("attachmentId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidAttachmentID, nil)
		return uuid.Nil, uuid.Nil, false
	}
	return activityID, attachmentID, true
}
