package storage

import (
	"path/filepath"
	"testing"
)

func TestMigrateSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.db")

	for _, run := range []string{"fresh", "up to date"} {
		t.Run(run, func(t *testing.T) {
			version, err := migrateSchema(path)
			if err != nil {
				t.Fatalf("migrateSchema() error = %v", err)
			}
			if version != 1 {
				t.Errorf("migrateSchema() = %d, want 1", version)
			}
		})
	}
}
