package documents

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"claimdocs-backend/internal/quota"
	"claimdocs-backend/internal/shared/server/middleware"
	"claimdocs-backend/internal/shared/server/respond"
	"claimdocs-backend/internal/shared/storage/object"
)

// Handler exposes the document endpoints.
type Handler struct {
	Service        *Service
	MaxUploadBytes int64
	poll           *pollLimiter
}

func NewHandler(svc *Service, maxUploadBytes int64, pollInterval time.Duration) *Handler {
	return &Handler{
		Service:        svc,
		MaxUploadBytes: maxUploadBytes,
		poll:           newPollLimiter(pollInterval),
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents", h.upload)
	rg.GET("/documents", h.list)
	rg.GET("/documents/:id", h.get)
	rg.GET("/documents/:id/status", h.status)
	rg.PATCH("/documents/:id", h.update)
	rg.DELETE("/documents/:id", h.delete)
	rg.POST("/documents/:id/retry", h.retry)
}

func (h *Handler) upload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	requestID := middleware.RequestIDFromContext(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large",
				fmt.Sprintf("file exceeds the %d byte upload limit", h.MaxUploadBytes), nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "invalid_upload", "multipart field 'file' is required", nil)
		return
	}
	defer file.Close()

	if header.Size > h.MaxUploadBytes {
		respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large",
			fmt.Sprintf("file exceeds the %d byte upload limit", h.MaxUploadBytes), nil)
		return
	}

	doc, err := h.Service.Submit(c.Request.Context(), userID, requestID,
		header.Filename, c.PostForm("documentType"), file, header.Size)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "invalid_upload", "file name is not usable", nil)
		case errors.Is(err, quota.ErrLimitReached):
			respond.Error(c, http.StatusForbidden, "quota_exceeded", "document quota reached for this period", nil)
		case errors.Is(err, object.ErrUnavailable):
			respond.Error(c, http.StatusServiceUnavailable, "storage_unavailable", "could not store the document, try again", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to accept document", nil)
		}
		return
	}
	respond.JSON(c, http.StatusCreated, gin.H{"documentId": doc.ID, "status": doc.Status})
}

func (h *Handler) status(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	documentID := c.Param("id")

	if ok, wait := h.poll.Allow(userID + ":" + documentID); !ok {
		c.Header("Retry-After", strconv.Itoa(wait))
		respond.Error(c, http.StatusTooManyRequests, "poll_too_fast",
			"polling too frequently, slow down", nil)
		return
	}

	d, err := h.Service.Status(c.Request.Context(), userID, documentID)
	if err != nil {
		h.respondLookupError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, toStatusResponse(d))
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	d, err := h.Service.Status(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.respondLookupError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, toDetailResponse(d))
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	docs, err := h.Service.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list documents", nil)
		return
	}
	out := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, toResponse(d))
	}
	respond.JSON(c, http.StatusOK, gin.H{"documents": out})
}

func (h *Handler) update(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req struct {
		FileName     string `json:"fileName"`
		DocumentType string `json:"documentType"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "body must be JSON", nil)
		return
	}

	d, err := h.Service.UpdateMetadata(c.Request.Context(), userID, c.Param("id"), req.FileName, req.DocumentType)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "invalid_request", "nothing valid to update", nil)
		case errors.Is(err, ErrConflict):
			respond.Error(c, http.StatusConflict, "not_editable", "metadata is frozen once processing starts", nil)
		default:
			h.respondLookupError(c, err)
		}
		return
	}
	respond.JSON(c, http.StatusOK, toResponse(d))
}

func (h *Handler) delete(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if err := h.Service.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.respondLookupError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) retry(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	requestID := middleware.RequestIDFromContext(c)

	d, err := h.Service.Retry(c.Request.Context(), userID, requestID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrRetryLimit):
			respond.Error(c, http.StatusConflict, "retry_limit_exceeded",
				"this document has used all of its retries, contact support", nil)
		case errors.Is(err, ErrConflict):
			respond.Error(c, http.StatusConflict, "not_retryable",
				"only failed documents can be retried", nil)
		default:
			h.respondLookupError(c, err)
		}
		return
	}
	respond.JSON(c, http.StatusAccepted, gin.H{"documentId": d.ID, "status": d.Status})
}

func (h *Handler) respondLookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "document belongs to another user", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "document lookup failed", nil)
	}
}
