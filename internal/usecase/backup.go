package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/semmidev/phylaxctl/internal/domain"
	"github.com/semmidev/phylaxctl/internal/infrastructure/metrics"
)

type Logger interface {
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

// Backups runs manual backup, restore and download requests for the
// connections managed by the console.
type Backups struct {
	api          domain.BackupAPI
	settings     domain.SettingsAPI
	downloads    domain.DownloadStore
	fetcher      domain.ArtifactFetcher
	httpClient   *http.Client
	decompressor domain.Decompressor
	notifier     domain.Notifier
	logger       Logger
	decompress   bool

	mu        sync.Mutex
	restoring map[string]bool
}

type BackupsDeps struct {
	API       domain.BackupAPI
	Settings  domain.SettingsAPI
	Downloads domain.DownloadStore
	// Fetcher reads artifacts straight from S3. Presigned URLs from the
	// backup API are used when nil.
	Fetcher      domain.ArtifactFetcher
	HTTPClient   *http.Client
	Decompressor domain.Decompressor
	Notifier     domain.Notifier
	Logger       Logger
	Decompress   bool
}

func NewBackups(deps BackupsDeps) *Backups {
	client := deps.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Minute}
	}
	return &Backups{
		api:          deps.API,
		settings:     deps.Settings,
		downloads:    deps.Downloads,
		fetcher:      deps.Fetcher,
		httpClient:   client,
		decompressor: deps.Decompressor,
		notifier:     deps.Notifier,
		logger:       deps.Logger,
		decompress:   deps.Decompress,
		restoring:    make(map[string]bool),
	}
}

func (uc *Backups) List(ctx context.Context, connectionID string) ([]domain.Backup, error) {
	backups, err := uc.api.ListBackups(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	return backups, nil
}

// Initiate requests a manual backup. An empty backup type falls back to the
// connection's default backup type.
func (uc *Backups) Initiate(ctx context.Context, connectionID string, backupType domain.BackupType, name string) (domain.Backup, error) {
	if violations := domain.ValidateBackupName(name); len(violations) > 0 {
		return domain.Backup{}, domain.AsValidation(violations)
	}

	caps, err := uc.api.GetBackupCapabilities(ctx, connectionID)
	if err != nil {
		return domain.Backup{}, fmt.Errorf("backup capabilities: %w", err)
	}
	if !caps.Allowed {
		return domain.Backup{}, &domain.CapabilityError{Reason: caps.Reason}
	}

	engine := caps.Engine
	if backupType == "" || engine == "" {
		settings, err := uc.settings.GetBackupSettings(ctx, connectionID)
		if err != nil {
			return domain.Backup{}, fmt.Errorf("load backup settings: %w", err)
		}
		if backupType == "" {
			backupType = settings.DefaultBackupType
		}
		if engine == "" {
			engine = settings.Engine
		}
	}

	if !slices.Contains(domain.AllowedBackupTypes(engine), backupType) ||
		(len(caps.Modes) > 0 && !caps.Supports(backupType)) {
		return domain.Backup{}, domain.AsValidation([]string{
			fmt.Sprintf("Backup type %s is not supported for this connection", backupType),
		})
	}

	req := domain.BackupRequest{Type: backupType}
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		req.Name = &trimmed
	}

	uc.logger.Infof("[%s] Requesting %s backup", connectionID, backupType)
	backup, err := uc.api.InitiateBackup(ctx, connectionID, req)
	if err != nil {
		metrics.BackupRequests.WithLabelValues("backup", "error").Inc()
		return domain.Backup{}, fmt.Errorf("initiate backup: %w", err)
	}
	metrics.BackupRequests.WithLabelValues("backup", "success").Inc()

	uc.notify(ctx, fmt.Sprintf("Backup %s (%s) queued for connection %s", backup.ID, backupType, connectionID))
	return backup, nil
}

// Restore requests a restore of a successful full backup. A second request
// for the same backup is rejected while the first is in flight.
func (uc *Backups) Restore(ctx context.Context, connectionID, backupID string) (domain.RestoreAttempt, error) {
	backup, err := uc.find(ctx, connectionID, backupID)
	if err != nil {
		return domain.RestoreAttempt{}, err
	}
	if !backup.Restorable() {
		return domain.RestoreAttempt{}, domain.ErrNotRestorable
	}

	uc.mu.Lock()
	if uc.restoring[backupID] {
		uc.mu.Unlock()
		return domain.RestoreAttempt{}, domain.ErrRestoreInFlight
	}
	uc.restoring[backupID] = true
	uc.mu.Unlock()

	defer func() {
		uc.mu.Lock()
		delete(uc.restoring, backupID)
		uc.mu.Unlock()
	}()

	uc.logger.Infof("[%s] Requesting restore of backup %s", connectionID, backupID)
	attempt, err := uc.api.RequestRestore(ctx, connectionID, backupID)
	if err != nil {
		metrics.BackupRequests.WithLabelValues("restore", "error").Inc()
		return domain.RestoreAttempt{}, fmt.Errorf("request restore: %w", err)
	}
	metrics.BackupRequests.WithLabelValues("restore", "success").Inc()

	uc.notify(ctx, fmt.Sprintf("Restore of backup %s started for connection %s", backupID, connectionID))
	return attempt, nil
}

// Download fetches a successful S3 artifact into the downloads directory
// and returns the local path.
func (uc *Backups) Download(ctx context.Context, connectionID, backupID string) (string, error) {
	start := time.Now()
	backup, err := uc.find(ctx, connectionID, backupID)
	if err != nil {
		return "", err
	}
	if !backup.Downloadable() {
		return "", domain.ErrNotDownloadable
	}

	filename := generateFilename(backup)
	var path string
	if uc.fetcher != nil {
		path, err = uc.downloadDirect(ctx, connectionID, backup, filename)
	} else {
		path, err = uc.downloadPresigned(ctx, backup, filename)
	}
	if err != nil {
		metrics.BackupRequests.WithLabelValues("download", "error").Inc()
		return "", err
	}
	metrics.BackupRequests.WithLabelValues("download", "success").Inc()

	if uc.decompress && strings.HasSuffix(path, ".gz") && uc.decompressor != nil {
		path, err = uc.decompressDownload(path)
		if err != nil {
			return "", err
		}
	}

	uc.logger.Infof("[%s] Downloaded backup %s in %s: %s",
		connectionID, backupID, time.Since(start).Round(time.Millisecond), path)
	return path, nil
}

func (uc *Backups) downloadPresigned(ctx context.Context, backup domain.Backup, filename string) (string, error) {
	url, err := uc.api.GetDownloadURL(ctx, backup.ID)
	if err != nil {
		return "", fmt.Errorf("download url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	resp, err := uc.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download artifact: unexpected status %d", resp.StatusCode)
	}

	path, err := uc.downloads.Save(ctx, filename, resp.Body)
	if err != nil {
		return "", fmt.Errorf("save artifact: %w", err)
	}
	return path, nil
}

func (uc *Backups) downloadDirect(ctx context.Context, connectionID string, backup domain.Backup, filename string) (string, error) {
	settings, err := uc.settings.GetBackupSettings(ctx, connectionID)
	if err != nil {
		return "", fmt.Errorf("load backup settings: %w", err)
	}
	if settings.S3Bucket == nil || *settings.S3Bucket == "" {
		return "", errors.New("connection has no S3 bucket configured")
	}
	bucket := *settings.S3Bucket
	key := objectKey(bucket, backup.StoragePath)

	tmp, err := os.CreateTemp("", "phylax-download-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	uc.logger.Infof("[%s] Fetching s3://%s/%s", connectionID, bucket, key)
	if _, err := uc.fetcher.Fetch(ctx, bucket, key, tmp); err != nil {
		return "", fmt.Errorf("fetch artifact: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind artifact: %w", err)
	}

	path, err := uc.downloads.Save(ctx, filename, tmp)
	if err != nil {
		return "", fmt.Errorf("save artifact: %w", err)
	}
	return path, nil
}

func (uc *Backups) decompressDownload(path string) (string, error) {
	target := strings.TrimSuffix(path, ".gz")
	uc.logger.Infof("Decompressing %s", path)
	if err := uc.decompressor.Decompress(path, target); err != nil {
		return "", fmt.Errorf("decompression: %w", err)
	}
	if err := os.Remove(path); err != nil {
		uc.logger.Warnf("Failed to remove compressed artifact %s: %v", path, err)
	}
	return target, nil
}

func (uc *Backups) find(ctx context.Context, connectionID, backupID string) (domain.Backup, error) {
	backups, err := uc.List(ctx, connectionID)
	if err != nil {
		return domain.Backup{}, err
	}
	for _, b := range backups {
		if b.ID == backupID {
			return b, nil
		}
	}
	return domain.Backup{}, fmt.Errorf("backup %s: %w", backupID, domain.ErrNotFound)
}

func (uc *Backups) notify(ctx context.Context, message string) {
	if uc.notifier == nil {
		return
	}
	if err := uc.notifier.Notify(ctx, message); err != nil {
		uc.logger.Warnf("Notification failed: %v", err)
	}
}
