package database

import (
	"time"

	"gorm.io/datatypes"
)

// Candidate is the sole domain entity persisted in the local cache file.
// Nested collections are stored as serialized JSON text within scalar columns;
// use the codec in collections.go to read them.
type Candidate struct {
	ID                   uint   `gorm:"primaryKey"`
	Name                 string `gorm:"not null"`
	CurrentRole          string
	Email                string `gorm:"uniqueIndex"`
	Phone                string
	NoticePeriod         string
	CurrentSalary        string
	Industry             string
	DesiredSalary        string
	HighestQualification string
	Experience           datatypes.JSON
	Skills               datatypes.JSON
	Qualifications       datatypes.JSON
	Achievements         datatypes.JSON
	SpecialSkills        string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// TableName keeps the table compatible with the remote canonical blob.
func (Candidate) TableName() string { return "candidates" }

// Sync directions and shared outcome values for the audit tables.
const (
	SyncTypeUpload   = "upload"
	SyncTypeDownload = "download"

	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// SyncLog is an append-only audit row for sync operations.
type SyncLog struct {
	ID       uint      `gorm:"primaryKey"`
	SyncTime time.Time `gorm:"autoCreateTime"`
	SyncType string    `gorm:"not null"`
	Status   string    `gorm:"not null"`
	Message  string
}

func (SyncLog) TableName() string { return "sync_log" }

// BackupLog is an append-only audit row for backup operations.
type BackupLog struct {
	ID         uint      `gorm:"primaryKey"`
	BackupName string    `gorm:"not null"`
	BackupTime time.Time `gorm:"autoCreateTime"`
	Status     string    `gorm:"not null"`
	FileSize   int64
}

func (BackupLog) TableName() string { return "backup_log" }
