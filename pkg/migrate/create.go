package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	gooseUpMarker   = "-- +goose Up"
	gooseDownMarker = "-- +goose Down"

	versionLayout = "20060102150405"
)

var unsafeNameRe = regexp.MustCompile(`[^a-z0-9_]+`)

// CreateSQLMigration writes an empty goose migration stamped with the current
// UTC time and returns its path.
func CreateSQLMigration(dir string, name string) (string, error) {
	return createSQLMigration(dir, name, time.Now())
}

func createSQLMigration(dir, name string, at time.Time) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := migrationSlug(name)
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	fullpath := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", at.UTC().Format(versionLayout), slug))
	if _, err := os.Stat(fullpath); err == nil {
		return "", fmt.Errorf("migration already exists: %s", fullpath)
	}

	body := strings.Join([]string{
		gooseUpMarker,
		"-- +goose StatementBegin",
		"-- " + slug,
		"-- +goose StatementEnd",
		"",
		gooseDownMarker,
		"-- +goose StatementBegin",
		"-- rollback " + slug,
		"-- +goose StatementEnd",
		"",
	}, "\n")
	if err := os.WriteFile(fullpath, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", fullpath, err)
	}
	return fullpath, nil
}

func migrationSlug(name string) string {
	slug := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
	return strings.Trim(unsafeNameRe.ReplaceAllString(slug, "_"), "_")
}
