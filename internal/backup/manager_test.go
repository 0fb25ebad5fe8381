package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"talentvault/internal/blobstore"
	"talentvault/internal/config"
	"talentvault/internal/database"
	"talentvault/internal/records"
	"talentvault/internal/syncengine"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T) (*Manager, *records.Store, *blobstore.Memory) {
	t.Helper()
	memory := blobstore.NewMemory()

	syncCfg := config.SyncConfig{
		Bucket:          "appdata",
		ObjectName:      "hr_candidates.db",
		LocalPath:       filepath.Join(t.TempDir(), "hr_candidates.db"),
		Interval:        time.Minute,
		FreshnessWindow: 5 * time.Minute,
	}
	backupCfg := config.BackupConfig{
		Bucket:           "appdatabackups",
		RetentionDays:    30,
		AutoEnabled:      true,
		WriteThreshold:   5,
		ScheduleInterval: time.Hour,
		FailureRecheck:   5 * time.Minute,
		MaxScheduleAge:   24 * time.Hour,
	}

	engine, err := syncengine.New(memory, syncCfg, 5*time.Second, testLogger())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	store := records.NewStore(engine, nil, testLogger())
	manager := NewManager(memory, engine, store, backupCfg, syncCfg, 5*time.Second, "test", testLogger())
	store.SetNotifier(manager)
	return manager, store, memory
}

func sampleCandidate(email string) records.Candidate {
	return records.Candidate{
		Name:     "Jane Doe",
		Email:    email,
		Industry: "Fintech",
		Skills:   []database.SkillEntry{{Skill: "Python", Proficiency: 5}},
	}
}

func TestCreateAndRestoreBackup(t *testing.T) {
	ctx := context.Background()
	manager, store, memory := newTestManager(t)

	if _, err := store.Insert(ctx, sampleCandidate("jane@example.com")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	info, err := manager.CreateBackup(ctx, TypeManual, true, true)
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}
	if !strings.HasPrefix(info.Name, "backup_manual_") || !strings.HasSuffix(info.Name, ".gz") {
		t.Fatalf("unexpected backup name %q", info.Name)
	}
	if !info.Compressed || info.Metadata["total_candidates"] == nil {
		t.Fatalf("expected compressed artifact with stats metadata: %+v", info)
	}

	// The latest alias always holds plain database bytes.
	latest, err := memory.Get(ctx, "appdatabackups", LatestAlias)
	if err != nil {
		t.Fatalf("get latest alias: %v", err)
	}
	if !bytes.HasPrefix(latest, []byte("SQLite format 3\x00")) {
		t.Fatal("latest alias is not a plain database file")
	}

	if err := store.Delete(ctx, "jane@example.com"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if err := manager.Restore(ctx, info.Name); err != nil {
		t.Fatalf("restore: %v", err)
	}

	got, err := store.GetByEmail(ctx, "jane@example.com")
	if err != nil {
		t.Fatalf("get after restore: %v", err)
	}
	if got == nil || got.Skills[0].Skill != "Python" {
		t.Fatalf("restored candidate missing or wrong: %+v", got)
	}
}

func TestRestoreFromLatestAlias(t *testing.T) {
	ctx := context.Background()
	manager, store, _ := newTestManager(t)

	if _, err := store.Insert(ctx, sampleCandidate("jane@example.com")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := manager.CreateBackup(ctx, TypeManual, true, true); err != nil {
		t.Fatalf("create backup: %v", err)
	}
	if err := store.Delete(ctx, "jane@example.com"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if err := manager.Restore(ctx, ""); err != nil {
		t.Fatalf("restore from latest: %v", err)
	}

	got, err := store.GetByEmail(ctx, "jane@example.com")
	if err != nil || got == nil {
		t.Fatalf("candidate not restored from latest alias: (%v, %v)", got, err)
	}
}

func TestRestoreMissingBackup(t *testing.T) {
	manager, _, _ := newTestManager(t)
	err := manager.Restore(context.Background(), "backup_manual_20300101_000000.gz")
	if !errors.Is(err, ErrBackupNotFound) {
		t.Fatalf("expected ErrBackupNotFound, got %v", err)
	}
}

func TestWriteThresholdTriggersAutoBackup(t *testing.T) {
	ctx := context.Background()
	manager, store, _ := newTestManager(t)

	for i := 0; i < 5; i++ {
		email := fmt.Sprintf("candidate%d@example.com", i)
		if _, err := store.Insert(ctx, sampleCandidate(email)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	backups, err := manager.ListBackups(ctx, 0)
	if err != nil {
		t.Fatalf("list backups: %v", err)
	}
	autos := 0
	for _, b := range backups {
		if b.Type == TypeAuto {
			autos++
		}
	}
	if autos != 1 {
		t.Fatalf("expected exactly one auto backup after %d writes, got %d (backups: %+v)", 5, autos, backups)
	}
}

func TestCleanupOldBackups(t *testing.T) {
	ctx := context.Background()
	manager, _, memory := newTestManager(t)

	if _, err := manager.CreateBackup(ctx, TypeManual, false, false); err != nil {
		t.Fatalf("create backup: %v", err)
	}

	oldName := "backup_manual_20200101_000000.db"
	if err := memory.Put(ctx, "appdatabackups", oldName, []byte("stale"), "application/octet-stream"); err != nil {
		t.Fatalf("seed old backup: %v", err)
	}

	count, names, err := manager.CleanupOldBackups(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if count != 1 || len(names) != 1 || names[0] != oldName {
		t.Fatalf("expected only the stale backup deleted, got count=%d names=%v", count, names)
	}

	backups, err := manager.ListBackups(ctx, 0)
	if err != nil {
		t.Fatalf("list backups: %v", err)
	}
	if len(backups) != 1 {
		t.Fatalf("fresh backup should survive cleanup, got %+v", backups)
	}
}

func TestDeleteBackupProtectsLatestAlias(t *testing.T) {
	manager, _, _ := newTestManager(t)
	if err := manager.DeleteBackup(context.Background(), LatestAlias); err == nil {
		t.Fatal("expected refusal to delete the latest alias")
	}
}

func TestDeleteMissingBackup(t *testing.T) {
	manager, _, _ := newTestManager(t)
	err := manager.DeleteBackup(context.Background(), "backup_manual_20300101_000000.db")
	if !errors.Is(err, ErrBackupNotFound) {
		t.Fatalf("expected ErrBackupNotFound, got %v", err)
	}
}

func TestParseBackupName(t *testing.T) {
	backupType, timestamp, ok := parseBackupName("backup_manual_20260115_142530.gz")
	if !ok || backupType != "manual" {
		t.Fatalf("parse failed: type=%q ok=%v", backupType, ok)
	}
	if timestamp.Year() != 2026 || timestamp.Month() != time.January || timestamp.Hour() != 14 {
		t.Fatalf("unexpected timestamp %v", timestamp)
	}

	for _, bad := range []string{"latest.db", "backup_manual.db", "backup_manual_notadate_000000.db", "somethingelse"} {
		if _, _, ok := parseBackupName(bad); ok {
			t.Errorf("expected parse failure for %q", bad)
		}
	}
}

func TestHealthWarnsWithoutBackups(t *testing.T) {
	manager, _, _ := newTestManager(t)
	health := manager.Health(context.Background())
	if health.Status != "warning" {
		t.Fatalf("expected warning without backups, got %q (issues: %v)", health.Status, health.Issues)
	}
}

func TestStatsCountsCatalogue(t *testing.T) {
	ctx := context.Background()
	manager, _, _ := newTestManager(t)

	if _, err := manager.CreateBackup(ctx, TypeManual, true, false); err != nil {
		t.Fatalf("create backup: %v", err)
	}

	stats := manager.Stats(ctx)
	if stats.TotalBackups != 1 || stats.SuccessfulBackups != 1 || stats.AttemptedBackups != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.BackupTypes[TypeManual] != 1 {
		t.Fatalf("type breakdown missing manual backup: %+v", stats.BackupTypes)
	}
	if stats.LastBackupTime == nil {
		t.Fatal("expected last backup time to be set")
	}

	points, err := manager.RestorePoints(ctx)
	if err != nil {
		t.Fatalf("restore points: %v", err)
	}
	// The latest alias plus the named backup.
	if len(points) != 2 || !points[0].IsLatestAlias {
		t.Fatalf("unexpected restore points: %+v", points)
	}
}
