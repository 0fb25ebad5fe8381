package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"talentvault/internal/api/middleware"
	"talentvault/internal/errcode"
	"talentvault/internal/syncengine"
)

// SyncHandler exposes manual control over the cache reconciliation loop.
type SyncHandler struct {
	engine *syncengine.Engine
	logger *slog.Logger
}

// NewSyncHandler builds the sync handler.
func NewSyncHandler(engine *syncengine.Engine, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{engine: engine, logger: logger}
}

// Upload pushes the local cache file to the canonical blob. force=true queues
// behind an in-flight upload instead of returning busy.
func (h *SyncHandler) Upload(c *gin.Context) {
	force := c.Query("force") == "true"
	if err := h.engine.Upload(c.Request.Context(), force); err != nil {
		if errors.Is(err, syncengine.ErrSyncInProgress) {
			Conflict(c, errcode.SyncBusy, err.Error())
			return
		}
		middleware.LoggerFromContext(c).Error("upload failed", slog.Any("error", err))
		Internal(c, "upload failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "uploaded"})
}

// Download pulls the canonical blob into the local cache file. force=true
// bypasses the freshness window.
func (h *SyncHandler) Download(c *gin.Context) {
	force := c.Query("force") == "true"
	if err := h.engine.Download(c.Request.Context(), force); err != nil {
		middleware.LoggerFromContext(c).Error("download failed", slog.Any("error", err))
		Internal(c, "download failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "downloaded"})
}

// Refresh discards the local cache file and re-downloads the canonical blob.
func (h *SyncHandler) Refresh(c *gin.Context) {
	if err := h.engine.ForceRefresh(c.Request.Context()); err != nil {
		middleware.LoggerFromContext(c).Error("force refresh failed", slog.Any("error", err))
		Internal(c, "refresh failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "refreshed"})
}

// Status reports the engine's current view of the local cache file.
func (h *SyncHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Status())
}
