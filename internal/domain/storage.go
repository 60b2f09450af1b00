package domain

import (
	"context"
	"io"
	"time"
)

// DownloadStore is the local directory that receives downloaded artifacts.
type DownloadStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) error
	GetOldFiles(ctx context.Context, cutoffTime time.Time) ([]string, error)
	GetPath(name string) string
}

// ArtifactFetcher reads a backup artifact from object storage.
type ArtifactFetcher interface {
	Fetch(ctx context.Context, bucket, key string, w io.WriterAt) (int64, error)
}
