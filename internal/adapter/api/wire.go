package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/semmidev/phylaxctl/internal/domain"
)

type envelope[T any] struct {
	Data T `json:"data"`
}

type wireConnection struct {
	ID            string   `json:"id"`
	Name          string   `json:"db_name"`
	Engine        string   `json:"db_type"`
	Environment   string   `json:"env_tag"`
	Status        string   `json:"status"`
	LastBackupAt  *string  `json:"lastBackupAt"`
	BackupStatus  *string  `json:"backupStatus"`
	StorageUsedGB *float64 `json:"storageUsedGB"`
}

type wireConnectionDetails struct {
	ID          string  `json:"id"`
	Name        string  `json:"dbName"`
	Host        string  `json:"dbHost"`
	Port        *int    `json:"dbPort"`
	Engine      string  `json:"dbEngine"`
	Environment string  `json:"environment"`
	Username    *string `json:"dbUsername"`
	SSLMode     *string `json:"sslMode"`
}

type wireCreateRequest struct {
	Engine      string  `json:"dbType"`
	Host        string  `json:"dbHost"`
	Port        *int    `json:"dbPort,omitempty"`
	Name        string  `json:"dbName"`
	Environment string  `json:"envTag"`
	Username    *string `json:"dbUserName,omitempty"`
	Secret      string  `json:"dbUserSecret"`
	SSLMode     *string `json:"sslMode,omitempty"`
}

type wireDryRunRequest struct {
	ConnectionID string  `json:"connectionId,omitempty"`
	Engine       string  `json:"dbType"`
	Host         string  `json:"dbHost"`
	Port         *int    `json:"dbPort,omitempty"`
	Name         string  `json:"dbName"`
	Username     *string `json:"dbUserName,omitempty"`
	Secret       string  `json:"dbUserSecret,omitempty"`
	SSLMode      *string `json:"sslMode,omitempty"`
}

type wireVerifyState struct {
	Status       string  `json:"status"`
	ErrorMessage *string `json:"errorMessage"`
}

type wireSettings struct {
	ConnectionID         string  `json:"connection_id"`
	Engine               string  `json:"db_type"`
	StorageTarget        string  `json:"storage_target"`
	S3Bucket             *string `json:"s3_bucket"`
	S3Region             *string `json:"s3_region"`
	BackupUploadRoleARN  *string `json:"backup_upload_role_arn"`
	BackupRestoreRoleARN *string `json:"backup_restore_role_arn"`
	BackupDeleteRoleARN  *string `json:"backup_delete_role_arn"`
	LocalStoragePath     *string `json:"local_storage_path"`
	RetentionEnabled     bool    `json:"retention_enabled"`
	RetentionMode        *string `json:"retention_mode"`
	RetentionValue       *int    `json:"retention_value"`
	DefaultBackupType    string  `json:"default_backup_type"`
	SchedulingEnabled    bool    `json:"scheduling_enabled"`
	CronExpression       *string `json:"cron_expression"`
	TimeoutMinutes       *int    `json:"timeout_minutes"`
	CreatedAt            *string `json:"created_at"`
	UpdatedAt            *string `json:"updated_at"`
}

type wireBackup struct {
	ID            string  `json:"id"`
	Name          *string `json:"backup_name"`
	Type          *string `json:"backup_type"`
	SizeBytes     *int64  `json:"backup_size_bytes"`
	StorageTarget *string `json:"storage_target"`
	StoragePath   *string `json:"storage_path"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"created_at"`
	StartedAt     *string `json:"started_at"`
	Error         *string `json:"error"`
}

type wireBackupRequest struct {
	Type string  `json:"backupType"`
	Name *string `json:"backupName,omitempty"`
}

type wireCapabilities struct {
	Allowed     bool     `json:"allowed"`
	Engine      string   `json:"engine"`
	Reason      *string  `json:"reason"`
	Modes       []string `json:"modes"`
	Formats     []string `json:"formats"`
	Compression bool     `json:"compression"`
}

type wireDownload struct {
	URL string `json:"downloadUrl"`
}

type wireRestore struct {
	ID           string  `json:"id"`
	ConnectionID string  `json:"connection_id"`
	BackupID     string  `json:"backup_id"`
	Status       string  `json:"status"`
	RequestedAt  string  `json:"requested_at"`
	StartedAt    *string `json:"started_at"`
	FinishedAt   *string `json:"finished_at"`
	WorkerID     *string `json:"worker_id"`
	Attempt      int     `json:"attempt"`
	Error        *string `json:"error"`
}

// connectionKeys maps connection patch keys to the wire.
var connectionKeys = map[string]string{
	domain.KeyName:        "dbName",
	domain.KeyHost:        "dbHost",
	domain.KeyPort:        "dbPort",
	domain.KeyEngine:      "dbEngine",
	domain.KeyEnvironment: "environment",
	domain.KeyUsername:    "dbUsername",
	domain.KeySecret:      "dbUserSecret",
	domain.KeySSLMode:     "sslMode",
}

var settingsKeys = map[string]string{
	domain.KeyStorageTarget:        "storage_target",
	domain.KeyS3Bucket:             "s3_bucket",
	domain.KeyS3Region:             "s3_region",
	domain.KeyBackupUploadRoleARN:  "backup_upload_role_arn",
	domain.KeyBackupRestoreRoleARN: "backup_restore_role_arn",
	domain.KeyBackupDeleteRoleARN:  "backup_delete_role_arn",
	domain.KeyLocalStoragePath:     "local_storage_path",
	domain.KeyRetentionEnabled:     "retention_enabled",
	domain.KeyRetentionMode:        "retention_mode",
	domain.KeyRetentionValue:       "retention_value",
	domain.KeySchedulingEnabled:    "scheduling_enabled",
	domain.KeyCronExpression:       "cron_expression",
	domain.KeyDefaultBackupType:    "default_backup_type",
	domain.KeyTimeoutMinutes:       "timeout_minutes",
}

// translatePatch renames patch keys for the wire. Explicit nulls are kept.
func translatePatch(p domain.Patch, names map[string]string) (map[string]any, error) {
	out := make(map[string]any, len(p))
	for k, v := range p {
		name, ok := names[k]
		if !ok {
			return nil, fmt.Errorf("unknown patch key %q", k)
		}
		out[name] = v
	}
	return out, nil
}

func normalizeEngine(v string) (domain.Engine, error) {
	switch strings.ToUpper(v) {
	case "POSTGRES", "POSTGRESQL":
		return domain.EnginePostgreSQL, nil
	case "MYSQL":
		return domain.EngineMySQL, nil
	case "MONGODB":
		return domain.EngineMongoDB, nil
	}
	return "", domain.UnexpectedValue("engine", v)
}

func normalizeVerifyState(v string) (domain.VerifyState, error) {
	switch s := domain.VerifyState(v); s {
	case domain.VerifyCreated, domain.VerifyVerifying, domain.VerifyVerified, domain.VerifyError:
		return s, nil
	}
	return "", domain.UnexpectedValue("verification status", v)
}

func normalizeBackupStatus(v string) (domain.BackupStatus, error) {
	switch v {
	case "QUEUED":
		return domain.BackupQueued, nil
	case "RUNNING":
		return domain.BackupRunning, nil
	case "COMPLETED":
		return domain.BackupSuccess, nil
	case "FAILED":
		return domain.BackupFailed, nil
	}
	return "", domain.UnexpectedValue("backup status", v)
}

func normalizeSSLMode(v *string) (*domain.SSLMode, error) {
	if v == nil || *v == "" {
		return nil, nil
	}
	switch m := domain.SSLMode(*v); m {
	case domain.SSLDisable, domain.SSLRequire, domain.SSLVerifyCA, domain.SSLVerifyFull:
		return &m, nil
	}
	return nil, domain.UnexpectedValue("SSL mode", *v)
}

func normalizeStorageTarget(v string) (domain.StorageTarget, error) {
	switch t := domain.StorageTarget(v); t {
	case domain.StorageS3, domain.StorageLocal:
		return t, nil
	}
	return "", domain.UnexpectedValue("storage target", v)
}

func normalizeRetentionMode(v *string) (*domain.RetentionMode, error) {
	if v == nil || *v == "" {
		return nil, nil
	}
	switch m := domain.RetentionMode(*v); m {
	case domain.RetentionCount, domain.RetentionDays:
		return &m, nil
	}
	return nil, domain.UnexpectedValue("retention mode", *v)
}

func normalizeBackupType(v string) (domain.BackupType, error) {
	switch t := domain.BackupType(v); t {
	case domain.BackupFull, domain.BackupStructureOnly, domain.BackupDataOnly:
		return t, nil
	}
	return "", domain.UnexpectedValue("backup type", v)
}

func normalizeLocation(v string) (domain.ArtifactLocation, error) {
	switch l := domain.ArtifactLocation(v); l {
	case domain.LocationS3, domain.LocationLocalDesktop, domain.LocationLocalTmp:
		return l, nil
	}
	return "", domain.UnexpectedValue("storage target", v)
}

func normalizeRestoreStatus(v string) (domain.RestoreStatus, error) {
	switch s := domain.RestoreStatus(v); s {
	case domain.RestoreQueued, domain.RestoreInProgress, domain.RestoreCompleted, domain.RestoreFailed:
		return s, nil
	}
	return "", domain.UnexpectedValue("restore status", v)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", v, err)
	}
	return t, nil
}

func parseOptionalTime(v *string) (*time.Time, error) {
	if v == nil || *v == "" {
		return nil, nil
	}
	t, err := parseTime(*v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (w wireConnection) toDomain() (domain.Connection, error) {
	engine, err := normalizeEngine(w.Engine)
	if err != nil {
		return domain.Connection{}, err
	}
	state, err := normalizeVerifyState(w.Status)
	if err != nil {
		return domain.Connection{}, err
	}
	lastBackupAt, err := parseOptionalTime(w.LastBackupAt)
	if err != nil {
		return domain.Connection{}, err
	}

	conn := domain.Connection{
		ID:           w.ID,
		Name:         w.Name,
		Engine:       engine,
		Environment:  w.Environment,
		Status:       state.ConnectionStatus(),
		LastBackupAt: lastBackupAt,
	}
	if w.BackupStatus != nil && *w.BackupStatus != "" {
		status, err := normalizeBackupStatus(*w.BackupStatus)
		if err != nil {
			return domain.Connection{}, err
		}
		conn.BackupStatus = &status
	}
	if w.StorageUsedGB != nil {
		conn.StorageUsedGB = *w.StorageUsedGB
	}
	return conn, nil
}

func (w wireConnectionDetails) toDomain(id string) (domain.ConnectionDetails, error) {
	engine, err := normalizeEngine(w.Engine)
	if err != nil {
		return domain.ConnectionDetails{}, err
	}
	sslMode, err := normalizeSSLMode(w.SSLMode)
	if err != nil {
		return domain.ConnectionDetails{}, err
	}
	if w.ID != "" {
		id = w.ID
	}
	return domain.ConnectionDetails{
		ID:          id,
		Name:        w.Name,
		Host:        w.Host,
		Port:        w.Port,
		Engine:      engine,
		Environment: w.Environment,
		Username:    w.Username,
		SSLMode:     sslMode,
	}, nil
}

func (w wireSettings) toDomain() (domain.BackupSettings, error) {
	var s domain.BackupSettings
	var err error

	if s.Engine, err = normalizeEngine(w.Engine); err != nil {
		return s, err
	}
	if s.StorageTarget, err = normalizeStorageTarget(w.StorageTarget); err != nil {
		return s, err
	}
	if s.RetentionMode, err = normalizeRetentionMode(w.RetentionMode); err != nil {
		return s, err
	}
	if s.DefaultBackupType, err = normalizeBackupType(w.DefaultBackupType); err != nil {
		return s, err
	}
	if s.CreatedAt, err = parseOptionalTime(w.CreatedAt); err != nil {
		return s, err
	}
	if s.UpdatedAt, err = parseOptionalTime(w.UpdatedAt); err != nil {
		return s, err
	}

	s.ConnectionID = w.ConnectionID
	s.S3Bucket = w.S3Bucket
	s.S3Region = w.S3Region
	s.BackupUploadRoleARN = w.BackupUploadRoleARN
	s.BackupRestoreRoleARN = w.BackupRestoreRoleARN
	s.BackupDeleteRoleARN = w.BackupDeleteRoleARN
	s.LocalStoragePath = w.LocalStoragePath
	s.RetentionEnabled = w.RetentionEnabled
	s.RetentionValue = w.RetentionValue
	s.SchedulingEnabled = w.SchedulingEnabled
	s.CronExpression = w.CronExpression
	s.TimeoutMinutes = w.TimeoutMinutes
	return s, nil
}

func (w wireBackup) toDomain() (domain.Backup, error) {
	status, err := normalizeBackupStatus(w.Status)
	if err != nil {
		return domain.Backup{}, err
	}
	createdAt, err := parseTime(w.CreatedAt)
	if err != nil {
		return domain.Backup{}, err
	}
	startedAt, err := parseOptionalTime(w.StartedAt)
	if err != nil {
		return domain.Backup{}, err
	}

	b := domain.Backup{
		ID:        w.ID,
		Name:      w.Name,
		Status:    status,
		CreatedAt: createdAt,
		StartedAt: startedAt,
		ErrorText: w.Error,
	}
	if w.Type != nil {
		if b.Type, err = normalizeBackupType(*w.Type); err != nil {
			return domain.Backup{}, err
		}
	}
	if w.StorageTarget != nil {
		if b.StorageTarget, err = normalizeLocation(*w.StorageTarget); err != nil {
			return domain.Backup{}, err
		}
	}
	if w.SizeBytes != nil {
		b.SizeBytes = *w.SizeBytes
	}
	if w.StoragePath != nil {
		b.StoragePath = *w.StoragePath
	}
	return b, nil
}

func (w wireCapabilities) toDomain() (domain.BackupCapabilities, error) {
	caps := domain.BackupCapabilities{
		Allowed:     w.Allowed,
		Formats:     w.Formats,
		Compression: w.Compression,
	}
	if w.Engine != "" {
		engine, err := normalizeEngine(w.Engine)
		if err != nil {
			return caps, err
		}
		caps.Engine = engine
	}
	if w.Reason != nil {
		caps.Reason = *w.Reason
	}
	for _, m := range w.Modes {
		t, err := normalizeBackupType(m)
		if err != nil {
			return caps, err
		}
		caps.Modes = append(caps.Modes, t)
	}
	return caps, nil
}

func (w wireRestore) toDomain() (domain.RestoreAttempt, error) {
	status, err := normalizeRestoreStatus(w.Status)
	if err != nil {
		return domain.RestoreAttempt{}, err
	}
	requestedAt, err := parseTime(w.RequestedAt)
	if err != nil {
		return domain.RestoreAttempt{}, err
	}
	startedAt, err := parseOptionalTime(w.StartedAt)
	if err != nil {
		return domain.RestoreAttempt{}, err
	}
	finishedAt, err := parseOptionalTime(w.FinishedAt)
	if err != nil {
		return domain.RestoreAttempt{}, err
	}
	return domain.RestoreAttempt{
		ID:           w.ID,
		ConnectionID: w.ConnectionID,
		BackupID:     w.BackupID,
		Status:       status,
		RequestedAt:  requestedAt,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
		WorkerID:     w.WorkerID,
		Attempt:      w.Attempt,
		Error:        w.Error,
	}, nil
}

func sslModeString(m *domain.SSLMode) *string {
	if m == nil {
		return nil
	}
	s := string(*m)
	return &s
}
