package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/semmidev/phylaxctl/internal/domain"
)

// ListView selects which connections a listing shows. It is either
// AllConnections or SearchConnections.
type ListView interface {
	listView()
}

type AllConnections struct{}

// SearchConnections matches the query against name or engine, ignoring
// case.
type SearchConnections struct {
	Query string
}

func (AllConnections) listView()    {}
func (SearchConnections) listView() {}

type Stats struct {
	Total            int
	Active           int
	BackedUp         int
	LastBackupStatus *domain.BackupStatus
	LastBackupAt     *time.Time
	StorageUsedGB    float64
}

type Catalog struct {
	api    domain.ConnectionAPI
	logger Logger
}

func NewCatalog(api domain.ConnectionAPI, logger Logger) *Catalog {
	return &Catalog{api: api, logger: logger}
}

func (c *Catalog) List(ctx context.Context, view ListView) ([]domain.Connection, error) {
	connections, err := c.api.ListConnections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}

	search, ok := view.(SearchConnections)
	if !ok {
		return connections, nil
	}
	query := strings.ToLower(strings.TrimSpace(search.Query))
	if query == "" {
		return connections, nil
	}

	filtered := make([]domain.Connection, 0, len(connections))
	for _, conn := range connections {
		if strings.Contains(strings.ToLower(conn.Name), query) ||
			strings.Contains(strings.ToLower(string(conn.Engine)), query) {
			filtered = append(filtered, conn)
		}
	}
	return filtered, nil
}

func (c *Catalog) Delete(ctx context.Context, id string) error {
	if err := c.api.DeleteConnection(ctx, id); err != nil {
		return fmt.Errorf("delete connection %s: %w", id, err)
	}
	c.logger.Infof("[%s] Connection deleted", id)
	return nil
}

// ComputeStats aggregates the dashboard figures of a connection list.
func ComputeStats(connections []domain.Connection) Stats {
	stats := Stats{Total: len(connections)}
	for _, conn := range connections {
		if conn.Status == domain.StatusActive {
			stats.Active++
		}
		if conn.LastBackupAt != nil && conn.BackupStatus != nil && *conn.BackupStatus == domain.BackupSuccess {
			stats.BackedUp++
		}
		if conn.LastBackupAt != nil && (stats.LastBackupAt == nil || conn.LastBackupAt.After(*stats.LastBackupAt)) {
			stats.LastBackupAt = conn.LastBackupAt
			stats.LastBackupStatus = conn.BackupStatus
		}
		stats.StorageUsedGB += conn.StorageUsedGB
	}
	return stats
}

func (c *Catalog) Stats(ctx context.Context) (Stats, error) {
	connections, err := c.List(ctx, AllConnections{})
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(connections), nil
}
