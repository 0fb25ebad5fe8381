package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"talentvault/internal/api/middleware"
	"talentvault/internal/backup"
	"talentvault/internal/errcode"
)

// BackupHandler exposes the backup catalogue and its maintenance operations.
type BackupHandler struct {
	manager *backup.Manager
	logger  *slog.Logger
}

// NewBackupHandler builds the backup handler.
func NewBackupHandler(manager *backup.Manager, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: manager, logger: logger}
}

type createBackupRequest struct {
	Compress        *bool  `json:"compress"`
	IncludeMetadata *bool  `json:"include_metadata"`
	Type            string `json:"type"`
}

// Create produces a new backup artifact. Compression and metadata wrapping
// default to on.
func (h *BackupHandler) Create(c *gin.Context) {
	req := createBackupRequest{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, err.Error())
			return
		}
	}

	compress := req.Compress == nil || *req.Compress
	includeMetadata := req.IncludeMetadata == nil || *req.IncludeMetadata
	backupType := req.Type
	if backupType == "" {
		backupType = backup.TypeManual
	}

	info, err := h.manager.CreateBackup(c.Request.Context(), backupType, compress, includeMetadata)
	if err != nil {
		if errors.Is(err, backup.ErrBackupInProgress) {
			Conflict(c, errcode.BackupBusy, err.Error())
			return
		}
		middleware.LoggerFromContext(c).Error("create backup failed", slog.Any("error", err))
		Internal(c, "backup failed")
		return
	}
	c.JSON(http.StatusCreated, info)
}

// List returns the backup catalogue, newest first.
func (h *BackupHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	backups, err := h.manager.ListBackups(c.Request.Context(), limit)
	if err != nil {
		middleware.LoggerFromContext(c).Error("list backups failed", slog.Any("error", err))
		Internal(c, "list backups failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"backups": backups, "count": len(backups)})
}

type restoreRequest struct {
	Name string `json:"name"`
}

// Restore replaces the local cache file with a backup artifact and re-uploads
// it as the canonical blob. An empty name restores the latest alias.
func (h *BackupHandler) Restore(c *gin.Context) {
	req := restoreRequest{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, err.Error())
			return
		}
	}

	if err := h.manager.Restore(c.Request.Context(), req.Name); err != nil {
		if errors.Is(err, backup.ErrBackupNotFound) {
			NotFound(c, err.Error())
			return
		}
		middleware.LoggerFromContext(c).Error("restore failed", slog.Any("error", err))
		Internal(c, "restore failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "restored"})
}

// Delete removes a named backup artifact. The latest alias is protected.
func (h *BackupHandler) Delete(c *gin.Context) {
	name := c.Param("name")
	if err := h.manager.DeleteBackup(c.Request.Context(), name); err != nil {
		if errors.Is(err, backup.ErrBackupNotFound) {
			NotFound(c, err.Error())
			return
		}
		middleware.LoggerFromContext(c).Error("delete backup failed", slog.Any("error", err))
		Internal(c, err.Error())
		return
	}
	c.Status(http.StatusOK)
}

// Cleanup sweeps artifacts older than the retention window.
func (h *BackupHandler) Cleanup(c *gin.Context) {
	count, names, err := h.manager.CleanupOldBackups(c.Request.Context())
	if err != nil {
		middleware.LoggerFromContext(c).Error("cleanup failed", slog.Any("error", err))
		Internal(c, "cleanup failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": count, "names": names})
}

// Stats returns catalogue aggregates and attempt counters.
func (h *BackupHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Stats(c.Request.Context()))
}

// Health reports the backup subsystem status.
func (h *BackupHandler) Health(c *gin.Context) {
	health := h.manager.Health(c.Request.Context())
	status := http.StatusOK
	if health.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}

// RestorePoints lists everything the system can roll back to.
func (h *BackupHandler) RestorePoints(c *gin.Context) {
	points, err := h.manager.RestorePoints(c.Request.Context())
	if err != nil {
		middleware.LoggerFromContext(c).Error("restore points failed", slog.Any("error", err))
		Internal(c, "restore points failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"restore_points": points, "count": len(points)})
}

// History returns recent rows from the backup audit log.
func (h *BackupHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	rows, err := h.manager.History(c.Request.Context(), limit)
	if err != nil {
		middleware.LoggerFromContext(c).Error("backup history failed", slog.Any("error", err))
		Internal(c, "backup history failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": rows, "count": len(rows)})
}
