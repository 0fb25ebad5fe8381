package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"talentvault/internal/blobstore"
	"talentvault/internal/database"
)

// Stats summarises the backup catalogue and the manager's own attempt counters.
type Stats struct {
	TotalBackups      int            `json:"total_backups"`
	TotalSizeBytes    int64          `json:"total_size_bytes"`
	TotalSizeMB       float64        `json:"total_size_mb"`
	LatestBackup      *Info          `json:"latest_backup,omitempty"`
	AvgIntervalHours  float64        `json:"avg_backup_interval_hours"`
	RetentionDays     int            `json:"retention_days"`
	AutoBackupEnabled bool           `json:"auto_backup_enabled"`
	BackupInProgress  bool           `json:"backup_in_progress"`
	LastBackupTime    *time.Time     `json:"last_backup_time,omitempty"`
	BackupTypes       map[string]int `json:"backup_types"`
	AttemptedBackups  int            `json:"attempted_backups"`
	SuccessfulBackups int            `json:"successful_backups"`
	FailedBackups     int            `json:"failed_backups"`
}

// Health is the combined status of the backup subsystem.
type Health struct {
	Status    string    `json:"status"`
	Issues    []string  `json:"issues"`
	LastCheck time.Time `json:"last_check"`
}

// RestorePoint is an artifact the system can be rolled back to.
type RestorePoint struct {
	Name          string    `json:"name"`
	Timestamp     time.Time `json:"timestamp"`
	SizeBytes     int64     `json:"size_bytes"`
	Type          string    `json:"backup_type"`
	Compressed    bool      `json:"compressed"`
	IsLatestAlias bool      `json:"is_latest_alias"`
}

// Health thresholds.
const (
	staleBackupAfter   = 48 * time.Hour
	storageAdvisoryMB  = 1024
	failureRateWarning = 0.2
)

// Stats aggregates the stored catalogue with in-memory counters.
func (m *Manager) Stats(ctx context.Context) Stats {
	m.mu.Lock()
	stats := Stats{
		RetentionDays:     m.cfg.RetentionDays,
		AutoBackupEnabled: m.cfg.AutoEnabled,
		AttemptedBackups:  m.attempted,
		SuccessfulBackups: m.succeeded,
		FailedBackups:     m.failed,
		BackupTypes:       map[string]int{},
	}
	if !m.lastBackup.IsZero() {
		t := m.lastBackup
		stats.LastBackupTime = &t
	}
	m.mu.Unlock()
	stats.BackupInProgress = m.inProgress.Load()

	backups, err := m.ListBackups(ctx, 0)
	if err != nil {
		m.logger.Error("list backups for stats failed", slog.Any("error", err))
		return stats
	}

	stats.TotalBackups = len(backups)
	for _, b := range backups {
		stats.TotalSizeBytes += b.SizeBytes
		stats.BackupTypes[b.Type]++
	}
	stats.TotalSizeMB = float64(stats.TotalSizeBytes) / (1024 * 1024)

	if len(backups) > 0 {
		latest := backups[0]
		stats.LatestBackup = &latest
	}
	if len(backups) >= 2 {
		span := backups[0].Timestamp.Sub(backups[len(backups)-1].Timestamp)
		stats.AvgIntervalHours = span.Hours() / float64(len(backups)-1)
	}
	return stats
}

// Health combines store connectivity, backup staleness, storage footprint and
// the observed failure rate into one status.
func (m *Manager) Health(ctx context.Context) Health {
	health := Health{Status: "healthy", Issues: []string{}, LastCheck: time.Now()}

	octx, cancel := context.WithTimeout(ctx, m.opTimeout)
	backups, listErr := m.ListBackups(octx, 0)
	cancel()
	if listErr != nil {
		health.Status = "unhealthy"
		health.Issues = append(health.Issues, fmt.Sprintf("backup store connectivity issue: %v", listErr))
		return health
	}

	last := m.lastBackupOrCatalogued(backups)
	switch {
	case last.IsZero():
		raiseTo(&health, "warning")
		health.Issues = append(health.Issues, "no backups found")
	case time.Since(last) > staleBackupAfter:
		raiseTo(&health, "warning")
		health.Issues = append(health.Issues, fmt.Sprintf("last backup was %.1f hours ago", time.Since(last).Hours()))
	}

	var totalBytes int64
	for _, b := range backups {
		totalBytes += b.SizeBytes
	}
	if totalMB := float64(totalBytes) / (1024 * 1024); totalMB > storageAdvisoryMB {
		health.Issues = append(health.Issues, fmt.Sprintf("backup storage usage is high: %.1f MB", totalMB))
	}

	m.mu.Lock()
	attempted, failed := m.attempted, m.failed
	m.mu.Unlock()
	if attempted > 0 && float64(failed)/float64(attempted) > failureRateWarning {
		raiseTo(&health, "warning")
		health.Issues = append(health.Issues, fmt.Sprintf("backup failure rate is high: %d of %d attempts failed", failed, attempted))
	}

	return health
}

// lastBackupOrCatalogued prefers the in-memory last backup time but falls
// back to the catalogue, so a restarted process is not reported as having no
// backups.
func (m *Manager) lastBackupOrCatalogued(backups []Info) time.Time {
	m.mu.Lock()
	last := m.lastBackup
	m.mu.Unlock()
	if last.IsZero() && len(backups) > 0 {
		last = backups[0].Timestamp
	}
	return last
}

func raiseTo(h *Health, status string) {
	if h.Status == "unhealthy" {
		return
	}
	if status == "unhealthy" || h.Status == "healthy" {
		h.Status = status
	}
}

// RestorePoints lists everything the system can restore from: the latest
// alias, if present, plus every named backup.
func (m *Manager) RestorePoints(ctx context.Context) ([]RestorePoint, error) {
	points := make([]RestorePoint, 0, 8)

	octx, cancel := context.WithTimeout(ctx, m.opTimeout)
	meta, err := m.store.Stat(octx, m.bucket, LatestAlias)
	cancel()
	if err == nil {
		points = append(points, RestorePoint{
			Name:          LatestAlias,
			Timestamp:     meta.LastModified,
			SizeBytes:     meta.Size,
			Type:          "latest",
			IsLatestAlias: true,
		})
	} else if !isNotFound(err) {
		return nil, fmt.Errorf("stat latest alias: %w", err)
	}

	backups, err := m.ListBackups(ctx, 0)
	if err != nil {
		return nil, err
	}
	for _, b := range backups {
		points = append(points, RestorePoint{
			Name:       b.Name,
			Timestamp:  b.Timestamp,
			SizeBytes:  b.SizeBytes,
			Type:       b.Type,
			Compressed: b.Compressed,
		})
	}
	return points, nil
}

// History returns the audit rows from the local file's backup log, newest
// first. limit <= 0 defaults to 20.
func (m *Manager) History(ctx context.Context, limit int) ([]database.BackupLog, error) {
	if limit <= 0 {
		limit = 20
	}
	db, err := m.engine.Conn(ctx)
	if err != nil {
		return nil, err
	}

	var rows []database.BackupLog
	if err := db.WithContext(ctx).Order("backup_time DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load backup history: %w", err)
	}
	return rows, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, blobstore.ErrNotFound)
}
