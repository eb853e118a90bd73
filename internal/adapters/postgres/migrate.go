package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrationFiles lists the embedded migrations for a direction ("up" or
// "down"). Up files are in ascending order, down files descending.
func MigrationFiles(direction string) ([]string, error) {
	if direction != "up" && direction != "down" {
		return nil, fmt.Errorf("unknown migration direction %q", direction)
	}
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	suffix := "." + direction + ".sql"
	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), suffix) {
			files = append(files, "migrations/"+e.Name())
		}
	}
	sort.Strings(files)
	if direction == "down" {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}
	return files, nil
}

// Migrate applies every embedded migration of the given direction in order.
// Each file runs as a single multi-statement Exec.
func Migrate(ctx context.Context, db *DB, direction string) error {
	files, err := MigrationFiles(direction)
	if err != nil {
		return err
	}

	for _, f := range files {
		data, err := migrationFS.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		if _, err := db.Pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("exec %s: %w", f, err)
		}
		slog.Info("migration applied", "file", f)
	}
	return nil
}
