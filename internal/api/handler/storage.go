package handler

import (
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/reelforge/internal/api/middleware"
	"github.com/timmy/reelforge/internal/storage"
)

// StorageHandler browses the media bucket.
type StorageHandler struct {
	browser storage.ObjectBrowser
}

// NewStorageHandler creates a new storage handler. browser may be nil when storage is not configured.
func NewStorageHandler(browser storage.ObjectBrowser) *StorageHandler {
	return &StorageHandler{browser: browser}
}

func (h *StorageHandler) available(c *gin.Context) bool {
	if h.browser == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage is not configured"})
		return false
	}
	return true
}

// ListObjects handles GET /api/v1/storage/objects.
// Query: prefix, delimiter (default "/"), limit, cursor.
func (h *StorageHandler) ListObjects(c *gin.Context) {
	if !h.available(c) {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	page, err := h.browser.List(c.Request.Context(), storage.ListOptions{
		Prefix:    c.Query("prefix"),
		Delimiter: c.DefaultQuery("delimiter", "/"),
		Limit:     limit,
		Cursor:    c.Query("cursor"),
	})
	if err != nil {
		respondError(c, err, "Failed to list objects")
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetObject handles GET /api/v1/storage/objects/*key and streams the object.
func (h *StorageHandler) GetObject(c *gin.Context) {
	if !h.available(c) {
		return
	}
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "object key is required"})
		return
	}

	obj, err := h.browser.Open(c.Request.Context(), key)
	if err != nil {
		respondError(c, err, "Failed to open object")
		return
	}
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, obj.ContentLength, contentType, obj.Body, map[string]string{
		"Content-Disposition": `inline; filename="` + path.Base(key) + `"`,
	})
}

// HeadObject handles HEAD /api/v1/storage/objects/*key.
func (h *StorageHandler) HeadObject(c *gin.Context) {
	if h.browser == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	key := strings.TrimPrefix(c.Param("key"), "/")
	ok, err := h.browser.Exists(c.Request.Context(), key)
	switch {
	case err != nil:
		middleware.GetLogger(c).WithError(err).Error("Failed to check object")
		c.Status(http.StatusInternalServerError)
	case !ok:
		c.Status(http.StatusNotFound)
	default:
		c.Header("Location", h.browser.GetURL(key))
		c.Status(http.StatusOK)
	}
}
