package domain

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
)

var (
	namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	hostPattern = regexp.MustCompile(
		`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*)$|^(\d{1,3}\.){3}\d{1,3}$`)
	roleResourcePattern = regexp.MustCompile(`^role/[A-Za-z0-9+=,.@_\-/]+$`)
	accountPattern      = regexp.MustCompile(`^\d{12}$`)
)

const (
	maxNameLength     = 64
	maxHostLength     = 253
	maxUsernameLength = 64
	maxSecretLength   = 128
	MaxTimeoutMinutes = 1440
)

// ValidateConnection checks a connection draft. The secret is mandatory only
// when creating.
func ValidateConnection(d ConnectionDraft, create bool) []string {
	var violations []string

	name := strings.TrimSpace(d.Name)
	switch {
	case name == "":
		violations = append(violations, "Database name is required")
	case !namePattern.MatchString(name):
		violations = append(violations, "Database name must contain only letters, numbers, underscores, or dashes")
	case len(name) > maxNameLength:
		violations = append(violations, "Database name must be 1–64 characters")
	}

	host := strings.TrimSpace(d.Host)
	switch {
	case host == "":
		violations = append(violations, "Host is required")
	case len(host) > maxHostLength:
		violations = append(violations, "Host must be at most 253 characters")
	case !hostPattern.MatchString(host):
		violations = append(violations, "Host must be a valid hostname or IP address")
	}

	if !d.Engine.IsDocumentStore() || strings.TrimSpace(d.Port) != "" {
		port, ok := d.PortValue()
		if !ok || port == nil || *port < 1 || *port > 65535 {
			violations = append(violations, "Port must be a valid number between 1–65535")
		}
	}

	if d.Engine == "" {
		violations = append(violations, "Database engine is required")
	} else if !d.Engine.Valid() {
		violations = append(violations, "Database engine is not supported")
	}

	if strings.TrimSpace(d.Environment) == "" {
		violations = append(violations, "Environment is required")
	}

	if utf8.RuneCountInString(strings.TrimSpace(d.Username)) > maxUsernameLength {
		violations = append(violations, "Username must be at most 64 characters")
	}

	secret := strings.TrimSpace(d.Secret)
	switch {
	case create && secret == "":
		violations = append(violations, "Password is required")
	case utf8.RuneCountInString(secret) > maxSecretLength:
		violations = append(violations, "Password must be at most 128 characters")
	}

	if modes := d.Engine.SSLModes(); modes != nil && d.SSLMode != "" && !slices.Contains(modes, d.SSLMode) {
		switch d.Engine {
		case EnginePostgreSQL:
			violations = append(violations, "Invalid SSL mode selected for PostgreSQL")
		case EngineMySQL:
			violations = append(violations, "Invalid SSL mode selected for MySQL")
		}
	}

	return violations
}

// ValidIAMRoleARN reports whether s is an IAM role ARN in the aws partition.
func ValidIAMRoleARN(s string) bool {
	parsed, err := arn.Parse(s)
	if err != nil {
		return false
	}
	return parsed.Partition == "aws" &&
		parsed.Service == "iam" &&
		parsed.Region == "" &&
		accountPattern.MatchString(parsed.AccountID) &&
		roleResourcePattern.MatchString(parsed.Resource)
}

// ValidateStorage checks the storage card. retentionEnabled is the
// authoritative retention flag: a delete role becomes mandatory with it.
func ValidateStorage(d StorageDraft, retentionEnabled bool) []string {
	var violations []string

	switch d.Target {
	case StorageS3:
		if strings.TrimSpace(d.S3Bucket) == "" {
			violations = append(violations, "S3 bucket is required")
		}
		if strings.TrimSpace(d.S3Region) == "" {
			violations = append(violations, "S3 region is required")
		}
		upload := strings.TrimSpace(d.UploadRoleARN)
		if upload == "" {
			violations = append(violations, "IAM Backup Upload Role ARN is required")
		} else if !ValidIAMRoleARN(upload) {
			violations = append(violations, "Invalid IAM Backup Upload ARN format")
		}
		if restore := strings.TrimSpace(d.RestoreRoleARN); restore != "" && !ValidIAMRoleARN(restore) {
			violations = append(violations, "Invalid IAM Backup Restore ARN format")
		}
		del := strings.TrimSpace(d.DeleteRoleARN)
		switch {
		case retentionEnabled && del == "":
			violations = append(violations, "Backup Delete Role ARN is required when retention is enabled")
		case del != "" && !ValidIAMRoleARN(del):
			violations = append(violations, "Invalid IAM Backup Delete ARN format")
		}
	case StorageLocal:
		if strings.TrimSpace(d.LocalPath) == "" {
			violations = append(violations, "Local storage path is required")
		}
	default:
		violations = append(violations, "Storage target is required")
	}

	return violations
}

// ValidateRetention checks the retention card against the current storage
// configuration.
func ValidateRetention(d RetentionDraft, target StorageTarget, deleteRolePresent bool) []string {
	if !d.Enabled {
		return nil
	}

	var violations []string
	if target != StorageS3 || !deleteRolePresent {
		violations = append(violations, "Retention requires S3 storage with a Backup Delete Role ARN")
	}

	value, err := strconv.Atoi(strings.TrimSpace(d.Value))
	positive := err == nil && value > 0

	switch d.Mode {
	case RetentionCount:
		if !positive {
			violations = append(violations, "Number of backups must be greater than 0")
		}
	case RetentionDays:
		if !positive {
			violations = append(violations, "Retention days must be greater than 0")
		}
	default:
		violations = append(violations, "Retention mode is required")
	}

	return violations
}

// ValidateSchedule checks the scheduling card. Only the field count of the
// cron expression is verified here.
func ValidateSchedule(d ScheduleDraft) []string {
	if !d.Enabled {
		return nil
	}
	expr := strings.TrimSpace(d.Cron)
	if expr == "" {
		return []string{"Cron expression is required when scheduling is enabled"}
	}
	if len(strings.Fields(expr)) != 5 {
		return []string{"Cron expression must have 5 fields"}
	}
	return nil
}

func ValidateBackupType(t BackupType, e Engine) []string {
	if !slices.Contains(AllowedBackupTypes(e), t) {
		return []string{"Please select a valid default backup type"}
	}
	return nil
}

func ValidateLimits(d LimitsDraft) []string {
	timeout, err := strconv.Atoi(strings.TrimSpace(d.TimeoutMinutes))
	switch {
	case err != nil:
		return []string{"Timeout must be a valid number"}
	case timeout <= 0:
		return []string{"Timeout must be greater than 0 minutes"}
	case timeout > MaxTimeoutMinutes:
		return []string{"Timeout cannot exceed 1440 minutes (24 hours)"}
	}
	return nil
}

// ValidateBackupName checks the optional label of a manual backup.
func ValidateBackupName(name string) []string {
	if utf8.RuneCountInString(strings.TrimSpace(name)) > MaxBackupNameLength {
		return []string{"Backup name must be 64 characters or less."}
	}
	return nil
}
