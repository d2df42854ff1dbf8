package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	dir := t.TempDir()

	f, err := Create(dir, "add ledger indexes")
	require.NoError(t, err)

	assert.Len(t, f.Version, 14)
	assert.Contains(t, f.UpPath, "add_ledger_indexes.up.sql")
	assert.Contains(t, f.DownPath, "add_ledger_indexes.down.sql")

	up, err := os.ReadFile(f.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "add ledger indexes")

	_, err = os.Stat(f.DownPath)
	require.NoError(t, err)
}

func TestCreate_NestedDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db", "migrations")

	_, err := Create(dir, "initial")
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestList(t *testing.T) {
	dir := t.TempDir()

	_, err := Create(dir, "create barter schema")
	require.NoError(t, err)
	_, err = Create(dir, "add proposal close reason")
	require.NoError(t, err)

	names, err := List(dir)
	require.NoError(t, err)
	require.Len(t, names, 2)
	for _, name := range names {
		assert.NotContains(t, name, ".sql")
	}
}

func TestList_MissingDirectory(t *testing.T) {
	names, err := List(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "add_users_table", slugify("Add Users  Table"))
	assert.Equal(t, "v2_schema", slugify("v2-schema-"))
	assert.Equal(t, "abc123", slugify("abc123!?"))
}
