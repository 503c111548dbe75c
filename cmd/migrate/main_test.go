package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFilesSortedSQLOnly(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_indexes.sql", "0001_schema.sql", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive.sql"), 0o755))

	files, err := migrationFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_schema.sql", "0002_indexes.sql"}, files)
}

func TestPendingSkipsApplied(t *testing.T) {
	files := []string{"0001_schema.sql", "0002_indexes.sql", "0003_seed.sql"}
	applied := map[string]bool{"0001_schema.sql": true, "0003_seed.sql": true}

	assert.Equal(t, []string{"0002_indexes.sql"}, pending(files, applied))
	assert.Empty(t, pending(nil, applied))
}
