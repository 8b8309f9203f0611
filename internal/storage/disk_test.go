package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "shitsumon.db")
	require.NoError(t, os.WriteFile(db, []byte("hello"), 0644))

	index := filepath.Join(dir, "history.bleve")
	require.NoError(t, os.Mkdir(index, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(index, "a"), []byte("ab"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(index, "b"), []byte("c"), 0644))

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"database file", []string{db}, 5},
		{"index directory", []string{index}, 3},
		{"file and directory", []string{db, index}, 8},
		{"missing wal skipped", []string{db, db + "-wal", index}, 8},
		{"empty and memory skipped", []string{"", ":memory:", db}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiskUsageBytes(tt.paths...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
