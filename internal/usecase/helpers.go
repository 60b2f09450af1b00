package usecase

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/semmidev/phylaxctl/internal/domain"
)

var (
	timestampPattern = regexp.MustCompile(`(\d{8})_(\d{6})`)
	unsafeNameChars  = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
)

// generateFilename names a downloaded artifact
// <label>_<type>_<YYYYMMDD>_<HHMMSS><ext>, keeping the remote extension.
func generateFilename(b domain.Backup) string {
	label := b.ID
	if b.Name != nil && strings.TrimSpace(*b.Name) != "" {
		label = *b.Name
	}
	label = strings.Trim(unsafeNameChars.ReplaceAllString(label, "-"), "-")
	if label == "" {
		label = "backup"
	}

	timestamp := b.CreatedAt.UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%s%s", label, strings.ToLower(string(b.Type)), timestamp, artifactExt(b.StoragePath))
}

func artifactExt(storagePath string) string {
	base := path.Base(storagePath)
	ext := path.Ext(base)
	if ext == ".gz" {
		inner := path.Ext(strings.TrimSuffix(base, ext))
		return inner + ext
	}
	if ext == "" {
		return ".backup"
	}
	return ext
}

// objectKey strips an s3://bucket/ prefix from a storage path.
func objectKey(bucket, storagePath string) string {
	key := strings.TrimPrefix(storagePath, "s3://"+bucket+"/")
	return strings.TrimPrefix(key, "/")
}

func extractTimestamp(filename string) (time.Time, error) {
	matches := timestampPattern.FindStringSubmatch(filename)
	if len(matches) < 3 {
		return time.Time{}, fmt.Errorf("invalid filename format: no timestamp found")
	}
	return time.Parse("20060102_150405", matches[1]+"_"+matches[2])
}

func keys(p domain.Patch) []string {
	out := make([]string, 0, len(p))
	for k := range p {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
