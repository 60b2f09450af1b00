package domain

import "context"

// ConnectionAPI is the remote side of connection management and the
// verification protocol.
type ConnectionAPI interface {
	ListConnections(ctx context.Context) ([]Connection, error)
	CreateConnection(ctx context.Context, c NewConnection) (Connection, error)
	GetConnection(ctx context.Context, id string) (ConnectionDetails, error)
	UpdateConnection(ctx context.Context, id string, p Patch) error
	DeleteConnection(ctx context.Context, id string) error
	DryRunVerify(ctx context.Context, c DryRunCandidate) (DryRunResult, error)
	StartBackendVerification(ctx context.Context, id string) (VerifyState, error)
	GetVerificationStatus(ctx context.Context, id string) (VerificationStatus, error)
}

type SettingsAPI interface {
	GetBackupSettings(ctx context.Context, connectionID string) (BackupSettings, error)
	UpdateBackupSettings(ctx context.Context, connectionID string, p Patch) error
}

type BackupAPI interface {
	ListBackups(ctx context.Context, connectionID string) ([]Backup, error)
	InitiateBackup(ctx context.Context, connectionID string, req BackupRequest) (Backup, error)
	GetBackupCapabilities(ctx context.Context, connectionID string) (BackupCapabilities, error)
	GetDownloadURL(ctx context.Context, backupID string) (string, error)
	RequestRestore(ctx context.Context, connectionID, backupID string) (RestoreAttempt, error)
}

// Notifier delivers out-of-band messages about finished operations.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// SavedDraft is the persisted part of the add-connection form. It has no
// secret field so a secret can never reach disk.
type SavedDraft struct {
	Name        string
	Host        string
	Port        string
	Engine      Engine
	Environment string
	Username    string
	SSLMode     SSLMode
}

func SavedDraftFrom(d ConnectionDraft) SavedDraft {
	return SavedDraft{
		Name:        d.Name,
		Host:        d.Host,
		Port:        d.Port,
		Engine:      d.Engine,
		Environment: d.Environment,
		Username:    d.Username,
		SSLMode:     d.SSLMode,
	}
}

func (s SavedDraft) ConnectionDraft() ConnectionDraft {
	return ConnectionDraft{
		Name:        s.Name,
		Host:        s.Host,
		Port:        s.Port,
		Engine:      s.Engine,
		Environment: s.Environment,
		Username:    s.Username,
		SSLMode:     s.SSLMode,
	}
}

type DraftStore interface {
	Load(ctx context.Context, key string) (SavedDraft, bool, error)
	Save(ctx context.Context, key string, d SavedDraft) error
	Delete(ctx context.Context, key string) error
}
