package api

import (
	"context"
	"net/http"

	"github.com/semmidev/phylaxctl/internal/domain"
)

func (c *Client) GetBackupSettings(ctx context.Context, connectionID string) (domain.BackupSettings, error) {
	var resp envelope[wireSettings]
	if err := c.do(ctx, http.MethodGet, "/backup-settings/"+escape(connectionID), nil, &resp); err != nil {
		return domain.BackupSettings{}, err
	}
	settings, err := resp.Data.toDomain()
	if err != nil {
		return domain.BackupSettings{}, err
	}
	if settings.ConnectionID == "" {
		settings.ConnectionID = connectionID
	}
	return settings, nil
}

func (c *Client) UpdateBackupSettings(ctx context.Context, connectionID string, p domain.Patch) error {
	body, err := translatePatch(p, settingsKeys)
	if err != nil {
		return err
	}
	if err := c.do(ctx, http.MethodPatch, "/backup-settings/"+escape(connectionID), body, nil); err != nil {
		return err
	}
	c.capabilities.Delete(connectionID)
	return nil
}
