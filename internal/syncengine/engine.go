package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"talentvault/internal/blobstore"
	"talentvault/internal/config"
	"talentvault/internal/database"
	"talentvault/internal/metrics"
)

// ErrSyncInProgress is returned when a non-forced upload finds another upload
// already in flight. The caller may retry or pass force to queue behind it.
var ErrSyncInProgress = errors.New("sync already in progress")

// Status is a point-in-time view of the engine's sync state.
type Status struct {
	LastSyncTime         time.Time `json:"last_sync_time"`
	IsSyncing            bool      `json:"is_syncing"`
	LocalDBExists        bool      `json:"local_db_exists"`
	LocalDBSize          int64     `json:"local_db_size"`
	ForceDownloadFlagged bool      `json:"force_download_flagged"`
}

// Engine maintains the local replica of the canonical remote database blob
// and arbitrates every transition between "remote is authoritative" and
// "local is authoritative". It is the sole gateway to a live connection.
type Engine struct {
	store     blobstore.ObjectStore
	bucket    string
	object    string
	localPath string
	freshness time.Duration
	interval  time.Duration
	opTimeout time.Duration
	retry     Policy
	logger    *slog.Logger

	// mu guards the gorm handle and wholesale replacement of the local file.
	mu sync.Mutex
	db *gorm.DB

	// uploading marks an in-flight upload; uploadMu serializes the actual
	// writes onto the remote blob.
	uploading atomic.Bool
	uploadMu  sync.Mutex

	stateMu       sync.Mutex
	lastSync      time.Time
	forceDownload bool

	runner *Runner
}

// New constructs the engine and unconditionally reconciles with the remote
// store: the canonical blob is downloaded, or created from an empty schema if
// it does not exist yet. A failed download degrades to a locally bootstrapped
// file rather than failing construction.
func New(store blobstore.ObjectStore, cfg config.SyncConfig, opTimeout time.Duration, logger *slog.Logger) (*Engine, error) {
	e := &Engine{
		store:     store,
		bucket:    cfg.Bucket,
		object:    cfg.ObjectName,
		localPath: cfg.LocalPath,
		freshness: cfg.FreshnessWindow,
		interval:  cfg.Interval,
		opTimeout: opTimeout,
		retry:     DefaultPolicy,
		logger:    logger.With(slog.String("component", "syncengine")),
	}

	if err := e.Download(context.Background(), true); err != nil {
		e.logger.Warn("initial download failed, serving local copy", slog.Any("error", err))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		if err := e.openDBLocked(); err != nil {
			return nil, fmt.Errorf("open local database: %w", err)
		}
	}
	return e, nil
}

// Download fetches the canonical blob into the local cache file. Without
// force, a local file younger than the freshness window short-circuits the
// network call. A missing remote blob is not an error: the schema is created
// locally and uploaded, claiming the canonical slot.
func (e *Engine) Download(ctx context.Context, force bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.downloadLocked(ctx, force)
}

func (e *Engine) downloadLocked(ctx context.Context, force bool) error {
	if !force {
		if fi, err := os.Stat(e.localPath); err == nil && time.Since(fi.ModTime()) < e.freshness {
			return nil
		}
	}

	octx, cancel := context.WithTimeout(ctx, e.opTimeout)
	data, err := e.store.Get(octx, e.bucket, e.object)
	cancel()

	if errors.Is(err, blobstore.ErrNotFound) {
		e.logger.Info("remote database missing, creating initial schema")
		return e.bootstrapLocked(ctx)
	}
	if err != nil {
		metrics.ObserveSync(database.SyncTypeDownload, database.StatusFailed)
		if _, statErr := os.Stat(e.localPath); statErr != nil {
			// Never leave the system without a usable local file.
			if bootErr := e.bootstrapLocked(ctx); bootErr != nil {
				e.logger.Error("bootstrap after failed download failed", slog.Any("error", bootErr))
			}
		}
		e.logSyncLocked(database.SyncTypeDownload, database.StatusFailed, err.Error())
		return fmt.Errorf("download database: %w", err)
	}

	if err := e.replaceFileLocked(data); err != nil {
		metrics.ObserveSync(database.SyncTypeDownload, database.StatusFailed)
		return err
	}

	e.setLastSync(time.Now())
	metrics.ObserveSync(database.SyncTypeDownload, database.StatusSuccess)
	e.logSyncLocked(database.SyncTypeDownload, database.StatusSuccess, "")
	e.logger.Info("database downloaded", slog.String("path", e.localPath), slog.Int("bytes", len(data)))
	return nil
}

// replaceFileLocked swaps the local file via download-to-temp-then-rename so
// readers never observe a partial file.
func (e *Engine) replaceFileLocked(data []byte) error {
	dir := filepath.Dir(e.localPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create database dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	e.closeDBLocked()
	if err := os.Rename(tmpName, e.localPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace local database: %w", err)
	}
	if err := e.openDBLocked(); err != nil {
		return fmt.Errorf("reopen local database: %w", err)
	}
	return nil
}

// bootstrapLocked creates an empty schema locally and pushes it remotely,
// first-writer-wins for the canonical slot. The upload is best-effort.
func (e *Engine) bootstrapLocked(ctx context.Context) error {
	e.closeDBLocked()
	if err := os.MkdirAll(filepath.Dir(e.localPath), 0o755); err != nil {
		return fmt.Errorf("create database dir: %w", err)
	}
	if err := e.openDBLocked(); err != nil {
		return fmt.Errorf("create local database: %w", err)
	}
	if err := database.Migrate(e.db); err != nil {
		return err
	}

	data, err := e.snapshotLocked()
	if err != nil {
		e.logger.Warn("read bootstrapped database failed", slog.Any("error", err))
		return nil
	}
	octx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()
	if err := e.store.Put(octx, e.bucket, e.object, data, "application/octet-stream"); err != nil {
		e.logger.Warn("initial upload failed", slog.Any("error", err))
		return nil
	}
	e.setLastSync(time.Now())
	e.logger.Info("initial database created and uploaded")
	return nil
}

// Upload pushes the local file to the canonical blob. A non-forced call that
// finds another upload in flight returns ErrSyncInProgress; a forced call
// queues behind it. Transient failures are retried per the engine policy.
func (e *Engine) Upload(ctx context.Context, force bool) error {
	if e.uploading.CompareAndSwap(false, true) {
		defer e.uploading.Store(false)
	} else if !force {
		return ErrSyncInProgress
	}

	e.uploadMu.Lock()
	defer e.uploadMu.Unlock()
	return e.performUpload(ctx)
}

func (e *Engine) performUpload(ctx context.Context) error {
	data, err := e.SnapshotBytes(ctx)
	if err != nil {
		metrics.ObserveSync(database.SyncTypeUpload, database.StatusFailed)
		return fmt.Errorf("read local database: %w", err)
	}

	err = e.retry.Do(ctx, func(ctx context.Context) error {
		octx, cancel := context.WithTimeout(ctx, e.opTimeout)
		defer cancel()
		return e.store.Put(octx, e.bucket, e.object, data, "application/octet-stream")
	})
	if err != nil {
		metrics.ObserveSync(database.SyncTypeUpload, database.StatusFailed)
		e.logSync(database.SyncTypeUpload, database.StatusFailed, err.Error())
		return fmt.Errorf("upload database: %w", err)
	}

	e.setLastSync(time.Now())
	metrics.ObserveSync(database.SyncTypeUpload, database.StatusSuccess)
	e.logSync(database.SyncTypeUpload, database.StatusSuccess, "")
	e.logger.Info("database uploaded", slog.Int("bytes", len(data)))
	return nil
}

// Conn is the sole gateway for obtaining a handle to the local file. A set
// force-download flag or a missing file triggers a forced download first.
func (e *Engine) Conn(ctx context.Context) (*gorm.DB, error) {
	e.stateMu.Lock()
	force := e.forceDownload
	e.stateMu.Unlock()

	_, statErr := os.Stat(e.localPath)
	if force || statErr != nil {
		if err := e.Download(ctx, true); err != nil {
			e.logger.Warn("forced download before connection failed", slog.Any("error", err))
		}
		e.stateMu.Lock()
		e.forceDownload = false
		e.stateMu.Unlock()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		if err := e.openDBLocked(); err != nil {
			return nil, fmt.Errorf("open local database: %w", err)
		}
	}
	return e.db, nil
}

// MarkStale flags the next connection request to download first. This is how
// the session gate injects refresh-on-login without the record store knowing
// about sessions.
func (e *Engine) MarkStale() {
	e.stateMu.Lock()
	e.forceDownload = true
	e.stateMu.Unlock()
}

// ForceRefresh discards the local file and redownloads unconditionally.
func (e *Engine) ForceRefresh(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeDBLocked()
	if err := os.Remove(e.localPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove local database: %w", err)
	}
	return e.downloadLocked(ctx, true)
}

// SnapshotBytes returns the current content of the local file, checkpointing
// the journal first so the bytes are self-contained.
func (e *Engine) SnapshotBytes(_ context.Context) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() ([]byte, error) {
	if e.db != nil {
		if err := e.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error; err != nil {
			e.logger.Debug("wal checkpoint failed", slog.Any("error", err))
		}
	}
	return os.ReadFile(e.localPath)
}

// ReplaceLocal overwrites the local file with raw bytes (restore path). The
// current file is set aside first; a failed set-aside is logged, not fatal.
// The aside path is returned so operators have a manual recovery point.
func (e *Engine) ReplaceLocal(_ context.Context, raw []byte) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeDBLocked()

	aside := ""
	if _, err := os.Stat(e.localPath); err == nil {
		aside = fmt.Sprintf("%s.restore_backup_%d", e.localPath, time.Now().Unix())
		if err := os.Rename(e.localPath, aside); err != nil {
			e.logger.Warn("failed to set aside current database", slog.Any("error", err))
			aside = ""
		}
	}

	if err := os.MkdirAll(filepath.Dir(e.localPath), 0o755); err != nil {
		return aside, fmt.Errorf("create database dir: %w", err)
	}
	if err := os.WriteFile(e.localPath, raw, 0o644); err != nil {
		return aside, fmt.Errorf("write restored database: %w", err)
	}
	if err := e.openDBLocked(); err != nil {
		return aside, fmt.Errorf("open restored database: %w", err)
	}
	return aside, nil
}

// VerifyIntegrity runs the storage engine's consistency check and confirms
// the required tables are present.
func (e *Engine) VerifyIntegrity(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		if err := e.openDBLocked(); err != nil {
			return fmt.Errorf("open local database: %w", err)
		}
	}

	var result string
	if err := e.db.WithContext(ctx).Raw("PRAGMA integrity_check").Scan(&result).Error; err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check returned %q", result)
	}

	for _, table := range []string{"candidates", "sync_log", "backup_log"} {
		if !e.db.Migrator().HasTable(table) {
			return fmt.Errorf("required table %q missing", table)
		}
	}
	return nil
}

// Status reports the current sync state.
func (e *Engine) Status() Status {
	st := Status{IsSyncing: e.uploading.Load()}

	e.stateMu.Lock()
	st.LastSyncTime = e.lastSync
	st.ForceDownloadFlagged = e.forceDownload
	e.stateMu.Unlock()

	if fi, err := os.Stat(e.localPath); err == nil {
		st.LocalDBExists = true
		st.LocalDBSize = fi.Size()
	}
	return st
}

// StartAutoSync launches the periodic background upload loop.
func (e *Engine) StartAutoSync() {
	if e.runner != nil {
		return
	}
	e.runner = NewRunner("auto-sync", e.interval, 0, func(ctx context.Context) error {
		if e.uploading.Load() {
			return nil
		}
		err := e.Upload(ctx, false)
		if errors.Is(err, ErrSyncInProgress) {
			return nil
		}
		return err
	}, e.logger)
	e.runner.Start()
	e.logger.Info("auto-sync started", slog.Duration("interval", e.interval))
}

// Stop halts the background upload loop, if running.
func (e *Engine) Stop() {
	if e.runner != nil {
		e.runner.Stop()
		e.runner = nil
	}
}

// Cleanup performs a final upload and removes the local file.
func (e *Engine) Cleanup(ctx context.Context) {
	if err := e.Upload(ctx, true); err != nil {
		e.logger.Warn("final upload failed", slog.Any("error", err))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeDBLocked()
	if err := os.Remove(e.localPath); err != nil && !os.IsNotExist(err) {
		e.logger.Warn("remove local database failed", slog.Any("error", err))
		return
	}
	e.logger.Info("local database cleaned up")
}

// LocalPath exposes the cache file location for status reporting.
func (e *Engine) LocalPath() string { return e.localPath }

func (e *Engine) openDBLocked() error {
	db, err := database.Open(e.localPath)
	if err != nil {
		return err
	}
	e.db = db
	return nil
}

func (e *Engine) closeDBLocked() {
	if e.db == nil {
		return
	}
	if err := database.Close(e.db); err != nil {
		e.logger.Warn("close local database failed", slog.Any("error", err))
	}
	e.db = nil
}

func (e *Engine) setLastSync(t time.Time) {
	e.stateMu.Lock()
	e.lastSync = t
	e.stateMu.Unlock()
}

// logSync appends an audit row; failures to log never fail the action.
func (e *Engine) logSync(syncType, status, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logSyncLocked(syncType, status, message)
}

func (e *Engine) logSyncLocked(syncType, status, message string) {
	if e.db == nil {
		return
	}
	row := database.SyncLog{SyncType: syncType, Status: status, Message: message, SyncTime: time.Now()}
	if err := e.db.Create(&row).Error; err != nil {
		e.logger.Debug("write sync log failed", slog.Any("error", err))
	}
}
