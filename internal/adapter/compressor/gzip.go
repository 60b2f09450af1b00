package compressor

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// GzipDecompressor unpacks gzip artifacts fetched from the backup store.
type GzipDecompressor struct{}

func NewGzip() *GzipDecompressor {
	return &GzipDecompressor{}
}

// Decompress writes the decompressed content of sourcePath to destPath. A
// partially written destination is removed on failure.
func (g *GzipDecompressor) Decompress(sourcePath, destPath string) error {
	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	gzipReader, err := gzip.NewReader(sourceFile)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	destFile, err := os.CreateTemp(filepath.Dir(destPath), ".decompress-*")
	if err != nil {
		return fmt.Errorf("failed to create dest file: %w", err)
	}
	defer os.Remove(destFile.Name())

	if _, err := io.Copy(destFile, gzipReader); err != nil {
		destFile.Close()
		return fmt.Errorf("failed to decompress: %w", err)
	}
	if err := destFile.Close(); err != nil {
		return fmt.Errorf("failed to close dest file: %w", err)
	}
	if err := os.Rename(destFile.Name(), destPath); err != nil {
		return fmt.Errorf("failed to move dest file: %w", err)
	}

	return nil
}
