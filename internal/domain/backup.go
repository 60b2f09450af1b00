package domain

import "time"

type BackupStatus string

const (
	BackupQueued  BackupStatus = "queued"
	BackupRunning BackupStatus = "running"
	BackupSuccess BackupStatus = "success"
	BackupFailed  BackupStatus = "failed"
)

// ArtifactLocation is where the backup API placed a finished artifact.
type ArtifactLocation string

const (
	LocationS3           ArtifactLocation = "S3"
	LocationLocalDesktop ArtifactLocation = "LOCAL_DESKTOP"
	LocationLocalTmp     ArtifactLocation = "LOCAL_TMP"
)

type Backup struct {
	ID            string
	Name          *string
	Type          BackupType
	SizeBytes     int64
	StorageTarget ArtifactLocation
	StoragePath   string
	Status        BackupStatus
	CreatedAt     time.Time
	StartedAt     *time.Time
	ErrorText     *string
}

// Restorable reports whether a restore may be requested for the backup.
func (b Backup) Restorable() bool {
	return b.Status == BackupSuccess && b.Type == BackupFull
}

// Downloadable reports whether the artifact can be fetched.
func (b Backup) Downloadable() bool {
	return b.Status == BackupSuccess && b.StorageTarget == LocationS3
}

type RestoreStatus string

const (
	RestoreQueued     RestoreStatus = "QUEUED"
	RestoreInProgress RestoreStatus = "IN_PROGRESS"
	RestoreCompleted  RestoreStatus = "COMPLETED"
	RestoreFailed     RestoreStatus = "FAILED"
)

type RestoreAttempt struct {
	ID           string
	ConnectionID string
	BackupID     string
	Status       RestoreStatus
	RequestedAt  time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
	WorkerID     *string
	Attempt      int
	Error        *string
}

type BackupCapabilities struct {
	Allowed     bool
	Engine      Engine
	Reason      string
	Modes       []BackupType
	Formats     []string
	Compression bool
}

// Supports reports whether the capabilities allow the given backup type.
func (c BackupCapabilities) Supports(t BackupType) bool {
	for _, m := range c.Modes {
		if m == t {
			return true
		}
	}
	return false
}

// BackupRequest is the payload of a manual backup.
type BackupRequest struct {
	Type BackupType
	Name *string
}

// MaxBackupNameLength bounds an optional backup label.
const MaxBackupNameLength = 64
