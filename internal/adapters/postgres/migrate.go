package postgres

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
)

// Migrate executes every *.sql file of fsys in lexical order. The files
// are idempotent, so Migrate may run on every deploy.
func (db *DB) Migrate(ctx context.Context, fsys fs.FS) ([]string, error) {
	files, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := fs.ReadFile(fsys, f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		if _, err := db.Pool.Exec(ctx, string(data)); err != nil {
			return nil, fmt.Errorf("exec %s: %w", f, err)
		}
		slog.Debug("migration applied", "file", f)
	}
	return files, nil
}
