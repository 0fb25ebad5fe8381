package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BLOB_ACCESS_KEY_ID", "minioadmin")
	t.Setenv("BLOB_SECRET_ACCESS_KEY", "minioadmin")
	t.Setenv("SESSION_SIGNING_KEY", "test-signing-key")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.API.Port != 8080 {
		t.Errorf("unexpected api port %d", cfg.API.Port)
	}
	if cfg.Sync.ObjectName != "hr_candidates.db" {
		t.Errorf("unexpected object name %q", cfg.Sync.ObjectName)
	}
	if cfg.Sync.Interval != 300*time.Second {
		t.Errorf("unexpected sync interval %v", cfg.Sync.Interval)
	}
	if cfg.Sync.FreshnessWindow != 5*time.Minute {
		t.Errorf("unexpected freshness window %v", cfg.Sync.FreshnessWindow)
	}
	if cfg.Backup.RetentionDays != 30 {
		t.Errorf("unexpected retention %d", cfg.Backup.RetentionDays)
	}
	if cfg.Backup.WriteThreshold != 5 {
		t.Errorf("unexpected write threshold %d", cfg.Backup.WriteThreshold)
	}
	if cfg.Backup.ScheduleInterval != time.Hour {
		t.Errorf("unexpected schedule interval %v", cfg.Backup.ScheduleInterval)
	}
	if cfg.Redis.Addr() != "localhost:6379" {
		t.Errorf("unexpected redis addr %q", cfg.Redis.Addr())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DB_CONTAINER", "proddata")
	t.Setenv("DB_BLOB_NAME", "candidates.db")
	t.Setenv("LOCAL_DB_PATH", "/var/lib/talentvault/candidates.db")
	t.Setenv("BACKUP_CONTAINER", "prodbackups")
	t.Setenv("BACKUP_RETENTION_DAYS", "7")
	t.Setenv("AUTO_SYNC_ENABLED", "false")
	t.Setenv("SYNC_INTERVAL", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Sync.Bucket != "proddata" || cfg.Sync.ObjectName != "candidates.db" {
		t.Errorf("sync overrides not applied: %+v", cfg.Sync)
	}
	if cfg.Sync.AutoSyncEnabled {
		t.Error("auto sync should be disabled")
	}
	if cfg.Sync.Interval != 30*time.Second {
		t.Errorf("unexpected sync interval %v", cfg.Sync.Interval)
	}
	if cfg.Backup.Bucket != "prodbackups" || cfg.Backup.RetentionDays != 7 {
		t.Errorf("backup overrides not applied: %+v", cfg.Backup)
	}
}

func TestLoadRejectsMissingCredentials(t *testing.T) {
	t.Setenv("BLOB_ACCESS_KEY_ID", "")
	t.Setenv("BLOB_SECRET_ACCESS_KEY", "")
	t.Setenv("SESSION_SIGNING_KEY", "test-signing-key")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without blob credentials")
	}
}

func TestLoadRejectsSharedBuckets(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DB_CONTAINER", "shared")
	t.Setenv("BACKUP_CONTAINER", "shared")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when sync and backup share a bucket")
	}
}
