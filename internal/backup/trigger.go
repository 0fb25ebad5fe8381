package backup

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"talentvault/internal/syncengine"
)

// NoteWrite counts one write operation toward the volume trigger. Reaching
// the configured threshold fires an automatic backup and resets the counter,
// independently of the hourly scheduler.
func (m *Manager) NoteWrite(ctx context.Context) {
	if !m.cfg.AutoEnabled {
		return
	}
	if m.writeCount.Add(1) < int64(m.cfg.WriteThreshold) {
		return
	}
	m.writeCount.Store(0)

	if _, err := m.CreateBackup(ctx, TypeAuto, true, true); err != nil && !errors.Is(err, ErrBackupInProgress) {
		m.logger.Error("volume-triggered backup failed", slog.Any("error", err))
	}
}

// StartScheduler launches the periodic auto-backup loop. Each cycle creates
// an auto backup when none exists yet or the last one is older than the
// schedule age, then sweeps retention. A failed cycle is retried on the
// shorter recheck interval; the loop never exits on its own.
func (m *Manager) StartScheduler() {
	if !m.cfg.AutoEnabled || m.runner != nil {
		return
	}

	m.runner = syncengine.NewRunner("backup-scheduler", m.cfg.ScheduleInterval, m.cfg.FailureRecheck, func(ctx context.Context) error {
		if !m.shouldAutoBackup() {
			return nil
		}
		m.logger.Info("creating scheduled automatic backup")
		if _, err := m.CreateBackup(ctx, TypeAuto, true, true); err != nil {
			if errors.Is(err, ErrBackupInProgress) {
				return nil
			}
			return err
		}
		if _, _, err := m.CleanupOldBackups(ctx); err != nil {
			m.logger.Warn("retention cleanup failed", slog.Any("error", err))
		}
		return nil
	}, m.logger)
	m.runner.Start()
	m.logger.Info("backup scheduler started", slog.Duration("interval", m.cfg.ScheduleInterval))
}

// Stop halts the scheduler loop, if running.
func (m *Manager) Stop() {
	if m.runner != nil {
		m.runner.Stop()
		m.runner = nil
	}
}

func (m *Manager) shouldAutoBackup() bool {
	m.mu.Lock()
	last := m.lastBackup
	m.mu.Unlock()
	return last.IsZero() || time.Since(last) > m.cfg.MaxScheduleAge
}
