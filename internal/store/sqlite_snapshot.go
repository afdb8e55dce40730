package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// GenerateSnapshot writes a consistent copy of the database to path using
// VACUUM INTO. An existing file at path is replaced.
func (s *SQLiteStore) GenerateSnapshot(ctx context.Context, path string) error {
	if err := s.ready(); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create snapshot directory: %w", err)
		}
	}

	// VACUUM INTO refuses to overwrite, so write beside the target and rename.
	tmp := path + ".tmp"
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale snapshot temp file: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, tmp); err != nil {
		return fmt.Errorf("vacuum into %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}
