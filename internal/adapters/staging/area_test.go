package staging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/hearth/internal/adapters/staging"
	"go.trai.ch/hearth/internal/core/domain"
)

func artifact(name string) *domain.Artifact {
	return &domain.Artifact{Name: name, Kind: domain.KindDependency}
}

func TestArea_PathIsStable(t *testing.T) {
	dir := t.TempDir()
	a := staging.NewArea(dir)
	b := staging.NewArea(dir)

	assert.Equal(t, a.Path(artifact("x")), b.Path(artifact("x")))
	assert.NotEqual(t, a.Path(artifact("x")), a.Path(artifact("y")))
	assert.NotEqual(t, a.Path(artifact("x")), a.Path(&domain.Artifact{Name: "x", Kind: domain.KindDataObject}))
	assert.Equal(t, dir, filepath.Dir(a.Path(artifact("x"))))
}

func TestArea_LookupDiscard(t *testing.T) {
	area := staging.NewArea(filepath.Join(t.TempDir(), ".staging"))
	art := artifact("lib")

	_, ok, err := area.Lookup(art)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, area.Prepare())
	path := area.Path(art)
	require.NoError(t, os.WriteFile(path, []byte("bytes"), domain.FilePerm))
	require.NoError(t, os.WriteFile(path+domain.PartialSuffix, []byte("by"), domain.FilePerm))

	got, ok, err := area.Lookup(art)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, path, got)

	keys, err := area.List()
	require.NoError(t, err)
	assert.Len(t, keys, 1, "partial downloads are not listed as entries")

	require.NoError(t, area.Discard(art))
	_, ok, err = area.Lookup(art)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = os.Stat(path + domain.PartialSuffix)
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, area.Discard(art), "discarding twice is fine")
}

func TestArea_Clean(t *testing.T) {
	area := staging.NewArea(t.TempDir())
	for _, n := range []string{"a", "b"} {
		require.NoError(t, os.WriteFile(area.Path(artifact(n)), []byte(n), domain.FilePerm))
	}
	require.NoError(t, os.WriteFile(area.Path(artifact("c"))+domain.PartialSuffix, []byte("c"), domain.FilePerm))

	removed, err := area.Clean()
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	keys, err := area.List()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestArea_MissingDir(t *testing.T) {
	area := staging.NewArea(filepath.Join(t.TempDir(), "nope"))
	keys, err := area.List()
	require.NoError(t, err)
	assert.Empty(t, keys)

	removed, err := area.Clean()
	require.NoError(t, err)
	assert.Zero(t, removed)
}
