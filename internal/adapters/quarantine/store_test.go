package quarantine_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/hearth/internal/adapters/quarantine"
	"go.trai.ch/hearth/internal/core/domain"
)

func TestStore_QuarantinePreservesBytes(t *testing.T) {
	root := t.TempDir()
	live := filepath.Join(root, "live", "libraries", "a.jar")
	require.NoError(t, os.MkdirAll(filepath.Dir(live), domain.DirPerm))
	require.NoError(t, os.WriteFile(live, []byte("corrupt"), domain.FilePerm))

	store := quarantine.NewStore(filepath.Join(root, ".quarantine"))
	rec := domain.QuarantineRecord{
		Artifact:     "a",
		Kind:         domain.KindDependency,
		RelativePath: "libraries/a.jar",
		Expected:     domain.Checksum{Algorithm: domain.AlgorithmSHA1, Value: "1111111111111111111111111111111111111111"},
		Observed:     "2222222222222222222222222222222222222222",
		Reason:       "checksum mismatch",
	}

	entry, err := store.Quarantine(live, rec)
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.Record.QuarantinedAt.IsZero())

	_, err = os.Stat(live)
	assert.ErrorIs(t, err, os.ErrNotExist, "the live file is moved, not copied")

	data, err := os.ReadFile(entry.PayloadPath)
	require.NoError(t, err)
	assert.Equal(t, "corrupt", string(data))

	entries, err := store.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.ID, entries[0].ID)
	assert.Equal(t, "libraries/a.jar", entries[0].Record.RelativePath)
	assert.True(t, rec.Expected.Equal(entries[0].Record.Expected))
}

func TestStore_ListOrderAndPurge(t *testing.T) {
	root := t.TempDir()
	store := quarantine.NewStore(filepath.Join(root, ".quarantine"))

	var ids []string
	for _, name := range []string{"first", "second", "third"} {
		path := filepath.Join(root, name)
		require.NoError(t, os.WriteFile(path, []byte(name), domain.FilePerm))
		entry, err := store.Quarantine(path, domain.QuarantineRecord{Artifact: name})
		require.NoError(t, err)
		ids = append(ids, entry.ID)
	}

	entries, err := store.List()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, ids[i], e.ID, "entries are listed oldest first")
	}

	removed, err := store.Purge()
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	entries, err = store.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_QuarantineMissingFile(t *testing.T) {
	store := quarantine.NewStore(t.TempDir())
	_, err := store.Quarantine(filepath.Join(t.TempDir(), "missing"), domain.QuarantineRecord{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.ErrQuarantineFailed.Error())
}
