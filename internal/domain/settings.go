package domain

import (
	"strconv"
	"time"
)

type StorageTarget string

const (
	StorageS3    StorageTarget = "S3"
	StorageLocal StorageTarget = "LOCAL"
)

type RetentionMode string

const (
	RetentionCount RetentionMode = "COUNT"
	RetentionDays  RetentionMode = "DAYS"
)

type BackupType string

const (
	BackupFull          BackupType = "FULL"
	BackupStructureOnly BackupType = "STRUCTURE_ONLY"
	BackupDataOnly      BackupType = "DATA_ONLY"
)

// AllowedBackupTypes filters the backup types by engine. Document stores
// have no separate schema to dump.
func AllowedBackupTypes(e Engine) []BackupType {
	if e.IsDocumentStore() {
		return []BackupType{BackupFull, BackupDataOnly}
	}
	return []BackupType{BackupFull, BackupStructureOnly, BackupDataOnly}
}

// BackupSettings is the one-to-one backup configuration of a connection.
type BackupSettings struct {
	ConnectionID string
	Engine       Engine

	StorageTarget        StorageTarget
	S3Bucket             *string
	S3Region             *string
	BackupUploadRoleARN  *string
	BackupRestoreRoleARN *string
	BackupDeleteRoleARN  *string
	LocalStoragePath     *string

	RetentionEnabled bool
	RetentionMode    *RetentionMode
	RetentionValue   *int

	DefaultBackupType BackupType

	SchedulingEnabled bool
	CronExpression    *string

	TimeoutMinutes *int

	CreatedAt *time.Time
	UpdatedAt *time.Time
}

// RetentionEditable reports whether the retention card may be edited: only
// S3 storage with a delete role can prune old backups.
func (s BackupSettings) RetentionEditable() bool {
	return s.StorageTarget == StorageS3 && deref(s.BackupDeleteRoleARN) != ""
}

// SchedulingEditable reports whether the scheduling card may be edited.
func (s BackupSettings) SchedulingEditable() bool {
	return s.StorageTarget != StorageLocal
}

// Clone returns a deep copy so snapshots survive later mutation.
func (s BackupSettings) Clone() BackupSettings {
	c := s
	c.S3Bucket = cloneptr(s.S3Bucket)
	c.S3Region = cloneptr(s.S3Region)
	c.BackupUploadRoleARN = cloneptr(s.BackupUploadRoleARN)
	c.BackupRestoreRoleARN = cloneptr(s.BackupRestoreRoleARN)
	c.BackupDeleteRoleARN = cloneptr(s.BackupDeleteRoleARN)
	c.LocalStoragePath = cloneptr(s.LocalStoragePath)
	c.RetentionMode = cloneptr(s.RetentionMode)
	c.RetentionValue = cloneptr(s.RetentionValue)
	c.CronExpression = cloneptr(s.CronExpression)
	c.TimeoutMinutes = cloneptr(s.TimeoutMinutes)
	c.CreatedAt = cloneptr(s.CreatedAt)
	c.UpdatedAt = cloneptr(s.UpdatedAt)
	return c
}

// StorageDraft is the editable state of the storage card.
type StorageDraft struct {
	Target         StorageTarget
	S3Bucket       string
	S3Region       string
	UploadRoleARN  string
	RestoreRoleARN string
	DeleteRoleARN  string
	LocalPath      string
}

func StorageDraftFrom(s BackupSettings) StorageDraft {
	return StorageDraft{
		Target:         s.StorageTarget,
		S3Bucket:       deref(s.S3Bucket),
		S3Region:       deref(s.S3Region),
		UploadRoleARN:  deref(s.BackupUploadRoleARN),
		RestoreRoleARN: deref(s.BackupRestoreRoleARN),
		DeleteRoleARN:  deref(s.BackupDeleteRoleARN),
		LocalPath:      deref(s.LocalStoragePath),
	}
}

// RetentionDraft keeps the value as typed text.
type RetentionDraft struct {
	Enabled bool
	Mode    RetentionMode
	Value   string
}

func RetentionDraftFrom(s BackupSettings) RetentionDraft {
	d := RetentionDraft{Enabled: s.RetentionEnabled, Mode: RetentionCount, Value: "1"}
	if s.RetentionMode != nil {
		d.Mode = *s.RetentionMode
	}
	if s.RetentionValue != nil {
		d.Value = strconv.Itoa(*s.RetentionValue)
	}
	return d
}

type ScheduleDraft struct {
	Enabled bool
	Cron    string
}

func ScheduleDraftFrom(s BackupSettings) ScheduleDraft {
	return ScheduleDraft{Enabled: s.SchedulingEnabled, Cron: deref(s.CronExpression)}
}

type LimitsDraft struct {
	TimeoutMinutes string
}

// DefaultTimeoutMinutes is shown when the server has no timeout stored.
const DefaultTimeoutMinutes = 60

func LimitsDraftFrom(s BackupSettings) LimitsDraft {
	timeout := DefaultTimeoutMinutes
	if s.TimeoutMinutes != nil {
		timeout = *s.TimeoutMinutes
	}
	return LimitsDraft{TimeoutMinutes: strconv.Itoa(timeout)}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func cloneptr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
