package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"talentvault/internal/blobstore"
	"talentvault/internal/config"
	"talentvault/internal/database"
	"talentvault/internal/metrics"
	"talentvault/internal/records"
	"talentvault/internal/syncengine"
)

// LatestAlias is the fixed-name artifact always overwritten with the most
// recent backup's raw, unwrapped database bytes.
const LatestAlias = "latest.db"

const backupTimeLayout = "20060102_150405"

var (
	// ErrBackupInProgress is returned when a backup is requested while another
	// is in flight; callers get "already in progress" rather than queueing.
	ErrBackupInProgress = errors.New("backup already in progress")

	// ErrBackupNotFound indicates the named artifact does not exist.
	ErrBackupNotFound = errors.New("backup not found")
)

// Backup types and statuses.
const (
	TypeManual    = "manual"
	TypeAuto      = "auto"
	TypeScheduled = "scheduled"

	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Info describes one backup artifact.
type Info struct {
	Name       string         `json:"name"`
	Timestamp  time.Time      `json:"timestamp"`
	SizeBytes  int64          `json:"size_bytes"`
	Type       string         `json:"backup_type"`
	Status     string         `json:"status"`
	Compressed bool           `json:"compressed"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// StatsProvider supplies candidate counts for backup metadata.
type StatsProvider interface {
	DashboardStats(ctx context.Context) records.DashboardStats
}

// Manager produces, catalogues, retains and restores point-in-time copies of
// the local cache file in a bucket separate from the live canonical blob.
type Manager struct {
	store      blobstore.ObjectStore
	engine     *syncengine.Engine
	stats      StatsProvider
	bucket     string
	syncBucket string
	syncObject string
	cfg        config.BackupConfig
	opTimeout  time.Duration
	retry      syncengine.Policy
	appVersion string
	logger     *slog.Logger

	inProgress atomic.Bool
	writeCount atomic.Int64

	mu             sync.Mutex
	lastBackup     time.Time
	attempted      int
	succeeded      int
	failed         int
	lastResultSize int64

	runner *syncengine.Runner
}

// NewManager wires the backup engine. stats may be nil; metadata then omits
// candidate counts.
func NewManager(
	store blobstore.ObjectStore,
	engine *syncengine.Engine,
	stats StatsProvider,
	backupCfg config.BackupConfig,
	syncCfg config.SyncConfig,
	opTimeout time.Duration,
	appVersion string,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		store:      store,
		engine:     engine,
		stats:      stats,
		bucket:     backupCfg.Bucket,
		syncBucket: syncCfg.Bucket,
		syncObject: syncCfg.ObjectName,
		cfg:        backupCfg,
		opTimeout:  opTimeout,
		retry:      syncengine.DefaultPolicy,
		appVersion: appVersion,
		logger:     logger.With(slog.String("component", "backup")),
	}
}

// CreateBackup produces one artifact. A second call while one is in flight
// returns ErrBackupInProgress. The live database is force-synced first so the
// backup reflects the latest writes, and the latest alias is refreshed with
// the raw bytes on success.
func (m *Manager) CreateBackup(ctx context.Context, backupType string, compress, includeMetadata bool) (*Info, error) {
	if !m.inProgress.CompareAndSwap(false, true) {
		return nil, ErrBackupInProgress
	}
	defer m.inProgress.Store(false)

	timestamp := time.Now()
	name := backupName(backupType, timestamp, compress)
	m.logger.Info("starting backup", slog.String("type", backupType), slog.String("name", name))

	if err := m.engine.Upload(ctx, true); err != nil {
		// The local file still holds everything; back it up anyway.
		m.logger.Warn("pre-backup sync failed", slog.Any("error", err))
	}

	raw, err := m.engine.SnapshotBytes(ctx)
	if err != nil {
		m.recordFailure(ctx, backupType, name, err)
		return nil, fmt.Errorf("read database: %w", err)
	}

	var meta map[string]any
	if includeMetadata {
		meta = m.metadata(ctx)
	}

	data, err := encodeArtifact(raw, compress, includeMetadata, meta)
	if err != nil {
		m.recordFailure(ctx, backupType, name, err)
		return nil, err
	}

	err = m.retry.Do(ctx, func(ctx context.Context) error {
		octx, cancel := context.WithTimeout(ctx, m.opTimeout)
		defer cancel()
		return m.store.Put(octx, m.bucket, name, data, "application/octet-stream")
	})
	if err != nil {
		m.recordFailure(ctx, backupType, name, err)
		return nil, fmt.Errorf("upload backup: %w", err)
	}

	// Restore-from-latest must always see a plain file, never a nested
	// envelope, so the alias gets the unwrapped bytes.
	octx, cancel := context.WithTimeout(ctx, m.opTimeout)
	if err := m.store.Put(octx, m.bucket, LatestAlias, raw, "application/octet-stream"); err != nil {
		m.logger.Warn("refresh latest alias failed", slog.Any("error", err))
	}
	cancel()

	info := &Info{
		Name:       name,
		Timestamp:  timestamp,
		SizeBytes:  int64(len(data)),
		Type:       backupType,
		Status:     StatusCompleted,
		Compressed: compress,
		Metadata:   meta,
	}
	m.recordSuccess(ctx, info)
	m.logger.Info("backup completed", slog.String("name", name), slog.Int("bytes", len(data)))
	return info, nil
}

// Restore rebuilds the local cache file from the named artifact (the latest
// alias by default), then force-uploads so the restored state becomes
// canonical remotely. The pre-restore file is set aside on disk and the
// current canonical blob is snapshotted server-side; both are manual recovery
// paths, not auto-rollback points.
func (m *Manager) Restore(ctx context.Context, name string) error {
	if name == "" {
		name = LatestAlias
	}
	m.logger.Info("starting restore", slog.String("name", name))

	preName := fmt.Sprintf("backup_prerestore_%s.db", time.Now().Format(backupTimeLayout))
	octx, cancel := context.WithTimeout(ctx, m.opTimeout)
	if err := m.store.Copy(octx, m.syncBucket, m.syncObject, m.bucket, preName); err != nil {
		m.logger.Warn("pre-restore snapshot of canonical blob failed", slog.Any("error", err))
	}
	cancel()

	octx, cancel = context.WithTimeout(ctx, m.opTimeout)
	data, err := m.store.Get(octx, m.bucket, name)
	cancel()
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrBackupNotFound, name)
		}
		return fmt.Errorf("download backup %q: %w", name, err)
	}

	raw, err := decodeArtifact(data)
	if err != nil {
		return fmt.Errorf("process backup %q: %w", name, err)
	}

	aside, err := m.engine.ReplaceLocal(ctx, raw)
	if err != nil {
		return fmt.Errorf("restore database: %w", err)
	}

	if err := m.engine.VerifyIntegrity(ctx); err != nil {
		if aside != "" {
			return fmt.Errorf("restored database failed integrity check (pre-restore copy at %s): %w", aside, err)
		}
		return fmt.Errorf("restored database failed integrity check: %w", err)
	}

	if err := m.engine.Upload(ctx, true); err != nil {
		m.logger.Warn("post-restore sync failed", slog.Any("error", err))
	}

	m.logger.Info("restore completed", slog.String("name", name))
	return nil
}

// ListBackups enumerates artifacts matching the backup naming convention,
// newest first. limit <= 0 returns everything.
func (m *Manager) ListBackups(ctx context.Context, limit int) ([]Info, error) {
	octx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	objects, err := m.store.List(octx, m.bucket, "backup_")
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	infos := make([]Info, 0, len(objects))
	for _, obj := range objects {
		if obj.Key == LatestAlias {
			continue
		}
		backupType, timestamp, ok := parseBackupName(obj.Key)
		if !ok {
			backupType = "unknown"
			timestamp = obj.LastModified
		}
		infos = append(infos, Info{
			Name:       obj.Key,
			Timestamp:  timestamp,
			SizeBytes:  obj.Size,
			Type:       backupType,
			Status:     StatusCompleted,
			Compressed: strings.HasSuffix(obj.Key, ".gz"),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Timestamp.After(infos[j].Timestamp) })
	if limit > 0 && len(infos) > limit {
		infos = infos[:limit]
	}
	return infos, nil
}

// DeleteBackup removes one named artifact. The latest alias is protected.
func (m *Manager) DeleteBackup(ctx context.Context, name string) error {
	if name == LatestAlias {
		return fmt.Errorf("refusing to delete the %s alias", LatestAlias)
	}

	octx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	exists, err := m.store.Exists(octx, m.bucket, name)
	if err != nil {
		return fmt.Errorf("check backup %q: %w", name, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrBackupNotFound, name)
	}
	if err := m.store.Delete(octx, m.bucket, name); err != nil {
		return fmt.Errorf("delete backup %q: %w", name, err)
	}
	m.logger.Info("backup deleted", slog.String("name", name))
	return nil
}

// CleanupOldBackups deletes every backup older than the retention window,
// never the latest alias. It returns the deleted names.
func (m *Manager) CleanupOldBackups(ctx context.Context) (int, []string, error) {
	cutoff := time.Now().AddDate(0, 0, -m.cfg.RetentionDays)

	backups, err := m.ListBackups(ctx, 0)
	if err != nil {
		return 0, nil, err
	}

	deleted := make([]string, 0)
	for _, b := range backups {
		if !b.Timestamp.Before(cutoff) {
			continue
		}
		if err := m.DeleteBackup(ctx, b.Name); err != nil {
			m.logger.Warn("delete old backup failed",
				slog.String("name", b.Name),
				slog.Any("error", err),
			)
			continue
		}
		deleted = append(deleted, b.Name)
	}

	if len(deleted) > 0 {
		m.logger.Info("old backups cleaned up", slog.Int("count", len(deleted)))
	}
	return len(deleted), deleted, nil
}

func (m *Manager) metadata(ctx context.Context) map[string]any {
	meta := map[string]any{
		"timestamp":        time.Now().Format(time.RFC3339),
		"app_version":      m.appVersion,
		"database_version": "1.0",
		"backup_tool":      "talentvault-backup",
	}
	m.mu.Lock()
	if !m.lastBackup.IsZero() {
		meta["previous_backup_time"] = m.lastBackup.Format(time.RFC3339)
	}
	m.mu.Unlock()

	if m.stats != nil {
		ds := m.stats.DashboardStats(ctx)
		meta["total_candidates"] = ds.TotalCandidates
		meta["unique_industries"] = ds.UniqueIndustries
		meta["database_size_mb"] = ds.DatabaseSizeMB
	}
	return meta
}

func (m *Manager) recordSuccess(ctx context.Context, info *Info) {
	m.mu.Lock()
	m.attempted++
	m.succeeded++
	m.lastBackup = info.Timestamp
	m.lastResultSize = info.SizeBytes
	m.mu.Unlock()

	metrics.ObserveBackup(info.Type, database.StatusSuccess)
	metrics.SetLastBackupSize(info.SizeBytes)

	m.logBackup(ctx, info.Name, database.StatusSuccess, info.SizeBytes)
	// Re-sync so the log entry itself is durable remotely.
	if err := m.engine.Upload(ctx, false); err != nil && !errors.Is(err, syncengine.ErrSyncInProgress) {
		m.logger.Debug("post-backup log sync failed", slog.Any("error", err))
	}
}

func (m *Manager) recordFailure(ctx context.Context, backupType, name string, cause error) {
	m.mu.Lock()
	m.attempted++
	m.failed++
	m.mu.Unlock()

	metrics.ObserveBackup(backupType, database.StatusFailed)
	m.logger.Error("backup failed", slog.String("name", name), slog.Any("error", cause))
	m.logBackup(ctx, name, database.StatusFailed, 0)
}

// logBackup appends an audit row; failures to log never fail the backup.
func (m *Manager) logBackup(ctx context.Context, name, status string, size int64) {
	db, err := m.engine.Conn(ctx)
	if err != nil {
		m.logger.Debug("backup log connection failed", slog.Any("error", err))
		return
	}
	row := database.BackupLog{BackupName: name, BackupTime: time.Now(), Status: status, FileSize: size}
	if err := db.WithContext(ctx).Create(&row).Error; err != nil {
		m.logger.Debug("write backup log failed", slog.Any("error", err))
	}
}

func backupName(backupType string, timestamp time.Time, compressed bool) string {
	ext := ".db"
	if compressed {
		ext = ".gz"
	}
	return fmt.Sprintf("backup_%s_%s%s", backupType, timestamp.Format(backupTimeLayout), ext)
}

// parseBackupName extracts type and timestamp from the naming convention
// backup_<type>_<YYYYMMDD_HHMMSS>[.db|.gz].
func parseBackupName(name string) (string, time.Time, bool) {
	trimmed := strings.TrimSuffix(strings.TrimSuffix(name, ".gz"), ".db")
	parts := strings.Split(trimmed, "_")
	if len(parts) != 4 || parts[0] != "backup" {
		return "", time.Time{}, false
	}
	timestamp, err := time.ParseInLocation(backupTimeLayout, parts[2]+"_"+parts[3], time.Local)
	if err != nil {
		return "", time.Time{}, false
	}
	return parts[1], timestamp, true
}
