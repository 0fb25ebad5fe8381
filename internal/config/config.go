package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application settings that may be sourced from files or environment variables.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Blob    BlobConfig    `mapstructure:"blob"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Backup  BackupConfig  `mapstructure:"backup"`
	Session SessionConfig `mapstructure:"session"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port int `mapstructure:"port"`
}

// BlobConfig contains connection options for MinIO/S3-compatible object storage.
type BlobConfig struct {
	Endpoint         string        `mapstructure:"endpoint"`
	AccessKeyID      string        `mapstructure:"access_key_id"`
	SecretAccessKey  string        `mapstructure:"secret_access_key"`
	UseSSL           bool          `mapstructure:"use_ssl"`
	Region           string        `mapstructure:"region"`
	AutoCreateBucket bool          `mapstructure:"auto_create_bucket"`
	OpTimeout        time.Duration `mapstructure:"op_timeout"`
}

// SyncConfig controls the local cache file and its reconciliation with the remote blob.
type SyncConfig struct {
	Bucket          string        `mapstructure:"bucket"`
	ObjectName      string        `mapstructure:"object_name"`
	LocalPath       string        `mapstructure:"local_path"`
	Interval        time.Duration `mapstructure:"interval"`
	FreshnessWindow time.Duration `mapstructure:"freshness_window"`
	AutoSyncEnabled bool          `mapstructure:"auto_sync_enabled"`
}

// BackupConfig controls the backup bucket, retention and automatic triggers.
type BackupConfig struct {
	Bucket           string        `mapstructure:"bucket"`
	RetentionDays    int           `mapstructure:"retention_days"`
	AutoEnabled      bool          `mapstructure:"auto_enabled"`
	WriteThreshold   int           `mapstructure:"write_threshold"`
	ScheduleInterval time.Duration `mapstructure:"schedule_interval"`
	FailureRecheck   time.Duration `mapstructure:"failure_recheck"`
	MaxScheduleAge   time.Duration `mapstructure:"max_schedule_age"`
}

// SessionConfig contains session token settings.
type SessionConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

// RedisConfig contains Redis connection settings for the per-session result cache.
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr builds a go-redis compatible address.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Load reads configuration solely from environment variables (with optional defaults).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("blob.endpoint", "localhost:9000")
	v.SetDefault("blob.use_ssl", false)
	v.SetDefault("blob.auto_create_bucket", true)
	v.SetDefault("blob.op_timeout", 30*time.Second)
	v.SetDefault("sync.bucket", "appdata")
	v.SetDefault("sync.object_name", "hr_candidates.db")
	v.SetDefault("sync.local_path", "/tmp/hr_candidates.db")
	v.SetDefault("sync.interval", 300*time.Second)
	v.SetDefault("sync.freshness_window", 5*time.Minute)
	v.SetDefault("sync.auto_sync_enabled", true)
	v.SetDefault("backup.bucket", "appdatabackups")
	v.SetDefault("backup.retention_days", 30)
	v.SetDefault("backup.auto_enabled", true)
	v.SetDefault("backup.write_threshold", 5)
	v.SetDefault("backup.schedule_interval", time.Hour)
	v.SetDefault("backup.failure_recheck", 5*time.Minute)
	v.SetDefault("backup.max_schedule_age", 24*time.Hour)
	v.SetDefault("session.token_ttl", 12*time.Hour)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                 "API_PORT",
		"blob.endpoint":            "BLOB_ENDPOINT",
		"blob.access_key_id":       "BLOB_ACCESS_KEY_ID",
		"blob.secret_access_key":   "BLOB_SECRET_ACCESS_KEY",
		"blob.use_ssl":             "BLOB_USE_SSL",
		"blob.region":              "BLOB_REGION",
		"blob.auto_create_bucket":  "BLOB_AUTO_CREATE_BUCKET",
		"blob.op_timeout":          "BLOB_OP_TIMEOUT",
		"sync.bucket":              "DB_CONTAINER",
		"sync.object_name":         "DB_BLOB_NAME",
		"sync.local_path":          "LOCAL_DB_PATH",
		"sync.interval":            "SYNC_INTERVAL",
		"sync.freshness_window":    "SYNC_FRESHNESS_WINDOW",
		"sync.auto_sync_enabled":   "AUTO_SYNC_ENABLED",
		"backup.bucket":            "BACKUP_CONTAINER",
		"backup.retention_days":    "BACKUP_RETENTION_DAYS",
		"backup.auto_enabled":      "AUTO_BACKUP_ENABLED",
		"backup.write_threshold":   "BACKUP_WRITE_THRESHOLD",
		"backup.schedule_interval": "BACKUP_SCHEDULE_INTERVAL",
		"session.signing_key":      "SESSION_SIGNING_KEY",
		"session.token_ttl":        "SESSION_TOKEN_TTL",
		"redis.host":               "REDIS_HOST",
		"redis.port":               "REDIS_PORT",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.Blob.Endpoint == "" {
		return errors.New("blob endpoint is required")
	}
	if cfg.Blob.AccessKeyID == "" {
		return errors.New("blob access key id is required")
	}
	if cfg.Blob.SecretAccessKey == "" {
		return errors.New("blob secret access key is required")
	}
	if cfg.Blob.OpTimeout <= 0 {
		return errors.New("blob op timeout must be positive")
	}
	if cfg.Sync.Bucket == "" {
		return errors.New("sync bucket is required")
	}
	if cfg.Sync.ObjectName == "" {
		return errors.New("sync object name is required")
	}
	if cfg.Sync.LocalPath == "" {
		return errors.New("sync local path is required")
	}
	if cfg.Sync.Interval <= 0 {
		return errors.New("sync interval must be positive")
	}
	if cfg.Backup.Bucket == "" {
		return errors.New("backup bucket is required")
	}
	if cfg.Backup.Bucket == cfg.Sync.Bucket {
		return errors.New("backup bucket must differ from the sync bucket")
	}
	if cfg.Backup.RetentionDays <= 0 {
		return errors.New("backup retention days must be positive")
	}
	if cfg.Backup.WriteThreshold <= 0 {
		return errors.New("backup write threshold must be positive")
	}
	if cfg.Session.SigningKey == "" {
		return errors.New("session signing key is required")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	return nil
}
