package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/semmidev/phylaxctl/internal/domain"
)

func (c *Client) ListBackups(ctx context.Context, connectionID string) ([]domain.Backup, error) {
	var resp envelope[[]wireBackup]
	if err := c.do(ctx, http.MethodGet, "/backups/"+escape(connectionID), nil, &resp); err != nil {
		return nil, err
	}

	backups := make([]domain.Backup, 0, len(resp.Data))
	for _, w := range resp.Data {
		b, err := w.toDomain()
		if err != nil {
			return nil, fmt.Errorf("backup %s: %w", w.ID, err)
		}
		backups = append(backups, b)
	}
	return backups, nil
}

// InitiateBackup queues a manual backup. The API may answer without a body,
// in which case a queued record is synthesized from the request.
func (c *Client) InitiateBackup(ctx context.Context, connectionID string, r domain.BackupRequest) (domain.Backup, error) {
	req := wireBackupRequest{Type: string(r.Type), Name: r.Name}
	var resp envelope[*wireBackup]
	if err := c.do(ctx, http.MethodPost, "/backups/"+escape(connectionID), req, &resp); err != nil {
		if !errors.Is(err, errEmptyBody) {
			return domain.Backup{}, err
		}
	}
	if resp.Data == nil || resp.Data.ID == "" {
		return domain.Backup{Name: r.Name, Type: r.Type, Status: domain.BackupQueued}, nil
	}
	return resp.Data.toDomain()
}

// GetBackupCapabilities is cached per connection for a short TTL.
func (c *Client) GetBackupCapabilities(ctx context.Context, connectionID string) (domain.BackupCapabilities, error) {
	if cached, found := c.capabilities.Get(connectionID); found {
		return cached.(domain.BackupCapabilities), nil
	}

	var resp wireCapabilities
	if err := c.do(ctx, http.MethodGet, "/backups/"+escape(connectionID)+"/capabilities", nil, &resp); err != nil {
		return domain.BackupCapabilities{}, err
	}
	caps, err := resp.toDomain()
	if err != nil {
		return domain.BackupCapabilities{}, err
	}
	c.capabilities.Set(connectionID, caps, c.capTTL)
	return caps, nil
}

func (c *Client) GetDownloadURL(ctx context.Context, backupID string) (string, error) {
	var resp wireDownload
	if err := c.do(ctx, http.MethodGet, "/backups/download/"+escape(backupID), nil, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", errors.New("api returned an empty download url")
	}
	return resp.URL, nil
}

func (c *Client) RequestRestore(ctx context.Context, connectionID, backupID string) (domain.RestoreAttempt, error) {
	var resp wireRestore
	path := "/restore/" + escape(connectionID) + "/" + escape(backupID)
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return domain.RestoreAttempt{}, err
	}
	return resp.toDomain()
}
