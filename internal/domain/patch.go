package domain

import (
	"strconv"
	"strings"
)

// Patch is a sparse partial update. A key mapped to nil clears the field on
// the server; an absent key leaves it untouched.
type Patch map[string]any

// Connection patch keys.
const (
	KeyName        = "name"
	KeyHost        = "host"
	KeyPort        = "port"
	KeyEngine      = "engine"
	KeyEnvironment = "environment"
	KeyUsername    = "username"
	KeySecret      = "secret"
	KeySSLMode     = "sslMode"
)

// Backup settings patch keys.
const (
	KeyStorageTarget        = "storageTarget"
	KeyS3Bucket             = "s3Bucket"
	KeyS3Region             = "s3Region"
	KeyBackupUploadRoleARN  = "backupUploadRoleArn"
	KeyBackupRestoreRoleARN = "backupRestoreRoleArn"
	KeyBackupDeleteRoleARN  = "backupDeleteRoleArn"
	KeyLocalStoragePath     = "localStoragePath"
	KeyRetentionEnabled     = "retentionEnabled"
	KeyRetentionMode        = "retentionMode"
	KeyRetentionValue       = "retentionValue"
	KeySchedulingEnabled    = "schedulingEnabled"
	KeyCronExpression       = "cronExpression"
	KeyDefaultBackupType    = "defaultBackupType"
	KeyTimeoutMinutes       = "timeoutMinutes"
)

var (
	s3Keys = []string{
		KeyS3Bucket, KeyS3Region, KeyBackupUploadRoleARN,
		KeyBackupRestoreRoleARN, KeyBackupDeleteRoleARN,
	}
	verificationKeys = []string{KeyHost, KeyPort, KeyEngine, KeyUsername, KeySecret, KeySSLMode}
)

func (p Patch) Empty() bool { return len(p) == 0 }

func (p Patch) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// IsNull reports whether the patch explicitly clears key.
func (p Patch) IsNull(key string) bool {
	v, ok := p[key]
	return ok && v == nil
}

// BuildConnectionPatch diffs an edited draft against the stored connection.
// The secret is included only when the user typed one.
func BuildConnectionPatch(original ConnectionDetails, d ConnectionDraft) Patch {
	p := Patch{}

	if name := strings.TrimSpace(d.Name); name != original.Name {
		p[KeyName] = name
	}
	if host := strings.TrimSpace(d.Host); host != original.Host {
		p[KeyHost] = host
	}
	if port, ok := d.PortValue(); ok && !equalPtr(port, original.Port) {
		p[KeyPort] = nullable(port)
	}
	if d.Engine != "" && d.Engine != original.Engine {
		p[KeyEngine] = string(d.Engine)
	}
	if env := strings.TrimSpace(d.Environment); env != original.Environment {
		p[KeyEnvironment] = env
	}
	if username := optionalString(d.Username); !equalPtr(username, original.Username) {
		p[KeyUsername] = nullable(username)
	}
	if mode := optionalSSLMode(d.SSLMode); !equalPtr(mode, original.SSLMode) {
		if mode == nil {
			p[KeySSLMode] = nil
		} else {
			p[KeySSLMode] = string(*mode)
		}
	}
	if secret := strings.TrimSpace(d.Secret); secret != "" {
		p[KeySecret] = secret
	}

	return p
}

// RequiresBackendVerification reports whether applying p changes how the
// backend reaches the database.
func RequiresBackendVerification(p Patch) bool {
	for _, k := range verificationKeys {
		if p.Has(k) {
			return true
		}
	}
	return false
}

// BuildStoragePatch diffs the storage card. Switching targets clears every
// field of the group that is no longer active. Switching to LOCAL also
// disables retention and scheduling.
func BuildStoragePatch(original BackupSettings, d StorageDraft) Patch {
	p := Patch{}
	switched := d.Target != original.StorageTarget
	if switched {
		p[KeyStorageTarget] = string(d.Target)
	}

	switch d.Target {
	case StorageS3:
		setRequired(p, KeyS3Bucket, d.S3Bucket, original.S3Bucket)
		setRequired(p, KeyS3Region, d.S3Region, original.S3Region)
		setRequired(p, KeyBackupUploadRoleARN, d.UploadRoleARN, original.BackupUploadRoleARN)
		setOptional(p, KeyBackupRestoreRoleARN, d.RestoreRoleARN, original.BackupRestoreRoleARN)
		setOptional(p, KeyBackupDeleteRoleARN, d.DeleteRoleARN, original.BackupDeleteRoleARN)
		if switched {
			p[KeyLocalStoragePath] = nil
		}
	case StorageLocal:
		setRequired(p, KeyLocalStoragePath, d.LocalPath, original.LocalStoragePath)
		if switched {
			for _, k := range s3Keys {
				p[k] = nil
			}
			disableS3Only(p, original)
		}
	}

	return p
}

// disableS3Only turns off retention and scheduling, which LOCAL storage does
// not support, and clears their stored values.
func disableS3Only(p Patch, original BackupSettings) {
	if original.RetentionEnabled {
		p[KeyRetentionEnabled] = false
	}
	if original.RetentionMode != nil {
		p[KeyRetentionMode] = nil
	}
	if original.RetentionValue != nil {
		p[KeyRetentionValue] = nil
	}
	if original.SchedulingEnabled {
		p[KeySchedulingEnabled] = false
	}
	if original.CronExpression != nil {
		p[KeyCronExpression] = nil
	}
}

// BuildRetentionPatch diffs the retention card. Disabling retention clears
// the mode and value that were stored.
func BuildRetentionPatch(original BackupSettings, d RetentionDraft) Patch {
	p := Patch{}
	if d.Enabled != original.RetentionEnabled {
		p[KeyRetentionEnabled] = d.Enabled
	}

	if !d.Enabled {
		if original.RetentionMode != nil {
			p[KeyRetentionMode] = nil
		}
		if original.RetentionValue != nil {
			p[KeyRetentionValue] = nil
		}
		return p
	}

	if original.RetentionMode == nil || *original.RetentionMode != d.Mode {
		p[KeyRetentionMode] = string(d.Mode)
	}
	if value, err := strconv.Atoi(strings.TrimSpace(d.Value)); err == nil {
		if original.RetentionValue == nil || *original.RetentionValue != value {
			p[KeyRetentionValue] = value
		}
	}
	return p
}

// BuildSchedulePatch diffs the scheduling card. Disabling scheduling clears
// a stored expression.
func BuildSchedulePatch(original BackupSettings, d ScheduleDraft) Patch {
	p := Patch{}
	if d.Enabled != original.SchedulingEnabled {
		p[KeySchedulingEnabled] = d.Enabled
	}
	if !d.Enabled {
		if original.CronExpression != nil {
			p[KeyCronExpression] = nil
		}
		return p
	}
	setRequired(p, KeyCronExpression, d.Cron, original.CronExpression)
	return p
}

func BuildBackupTypePatch(original BackupSettings, t BackupType) Patch {
	p := Patch{}
	if t != original.DefaultBackupType {
		p[KeyDefaultBackupType] = string(t)
	}
	return p
}

func BuildLimitsPatch(original BackupSettings, d LimitsDraft) Patch {
	p := Patch{}
	timeout, err := strconv.Atoi(strings.TrimSpace(d.TimeoutMinutes))
	if err != nil {
		return p
	}
	if original.TimeoutMinutes == nil || *original.TimeoutMinutes != timeout {
		p[KeyTimeoutMinutes] = timeout
	}
	return p
}

// ApplyPatch returns a copy of s with p merged in. Unknown keys are ignored.
func ApplyPatch(s BackupSettings, p Patch) BackupSettings {
	out := s.Clone()
	for k, v := range p {
		switch k {
		case KeyStorageTarget:
			if t, ok := v.(string); ok {
				out.StorageTarget = StorageTarget(t)
			}
		case KeyS3Bucket:
			out.S3Bucket = stringValue(v)
		case KeyS3Region:
			out.S3Region = stringValue(v)
		case KeyBackupUploadRoleARN:
			out.BackupUploadRoleARN = stringValue(v)
		case KeyBackupRestoreRoleARN:
			out.BackupRestoreRoleARN = stringValue(v)
		case KeyBackupDeleteRoleARN:
			out.BackupDeleteRoleARN = stringValue(v)
		case KeyLocalStoragePath:
			out.LocalStoragePath = stringValue(v)
		case KeyRetentionEnabled:
			out.RetentionEnabled, _ = v.(bool)
		case KeyRetentionMode:
			if m := stringValue(v); m != nil {
				mode := RetentionMode(*m)
				out.RetentionMode = &mode
			} else {
				out.RetentionMode = nil
			}
		case KeyRetentionValue:
			out.RetentionValue = intValue(v)
		case KeySchedulingEnabled:
			out.SchedulingEnabled, _ = v.(bool)
		case KeyCronExpression:
			out.CronExpression = stringValue(v)
		case KeyDefaultBackupType:
			if t, ok := v.(string); ok {
				out.DefaultBackupType = BackupType(t)
			}
		case KeyTimeoutMinutes:
			out.TimeoutMinutes = intValue(v)
		}
	}
	return out
}

func setRequired(p Patch, key, value string, original *string) {
	value = strings.TrimSpace(value)
	if value != deref(original) {
		p[key] = value
	}
}

func setOptional(p Patch, key, value string, original *string) {
	v := optionalString(value)
	if !equalPtr(v, original) {
		p[key] = nullable(v)
	}
}

func nullable[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func stringValue(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func intValue(v any) *int {
	i, ok := v.(int)
	if !ok {
		return nil
	}
	return &i
}
