package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/clock"

	"github.com/semmidev/phylaxctl/internal/domain"
)

// Cleanup prunes downloaded artifacts older than the retention window.
type Cleanup struct {
	downloads     domain.DownloadStore
	clock         clock.Clock
	logger        Logger
	retentionDays int
}

func NewCleanup(downloads domain.DownloadStore, clk clock.Clock, logger Logger, retentionDays int) *Cleanup {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Cleanup{
		downloads:     downloads,
		clock:         clk,
		logger:        logger,
		retentionDays: retentionDays,
	}
}

// Execute deletes old downloads and returns how many were removed.
func (uc *Cleanup) Execute(ctx context.Context) (int, error) {
	if uc.retentionDays <= 0 {
		uc.logger.Infof("Download retention disabled, nothing to prune")
		return 0, nil
	}
	uc.logger.Infof("Pruning downloads, retention: %d days", uc.retentionDays)

	cutoff := uc.clock.Now().AddDate(0, 0, -uc.retentionDays)

	files, err := uc.downloads.GetOldFiles(ctx, cutoff)
	if err != nil {
		uc.logger.Warnf("Listing old downloads by age failed, falling back to file names: %v", err)
		files, err = uc.fallbackListFiles(ctx, cutoff)
		if err != nil {
			return 0, err
		}
	}

	deleted := 0
	for _, filename := range files {
		uc.logger.Infof("Deleting old download: %s", filename)
		if err := uc.downloads.Delete(ctx, filename); err != nil {
			uc.logger.Errorf("Failed to delete %s: %v", filename, err)
			continue
		}
		deleted++
	}

	uc.logger.Infof("Deleted %d old download(s)", deleted)
	return deleted, nil
}

func (uc *Cleanup) fallbackListFiles(ctx context.Context, cutoff time.Time) ([]string, error) {
	files, err := uc.downloads.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	oldFiles := make([]string, 0)
	for _, filename := range files {
		timestamp, err := extractTimestamp(filename)
		if err != nil {
			uc.logger.Warnf("Could not parse timestamp from %s: %v", filename, err)
			continue
		}
		if timestamp.Before(cutoff) {
			oldFiles = append(oldFiles, filename)
		}
	}

	return oldFiles, nil
}
