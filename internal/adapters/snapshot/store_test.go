package snapshot_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/hearth/internal/adapters/fs"
	"go.trai.ch/hearth/internal/adapters/snapshot"
	"go.trai.ch/hearth/internal/core/domain"
)

type instance struct {
	live  string
	store *snapshot.Store
	lock  *domain.Lockfile
}

func sum(t *testing.T, content string) domain.Checksum {
	t.Helper()
	v, err := fs.SumBytes([]byte(content), domain.AlgorithmSHA256)
	require.NoError(t, err)
	return domain.Checksum{Algorithm: domain.AlgorithmSHA256, Value: v}
}

func writeLive(t *testing.T, live, rel, content string) {
	t.Helper()
	path := filepath.Join(live, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), domain.DirPerm))
	require.NoError(t, os.WriteFile(path, []byte(content), domain.FilePerm))
}

func newInstance(t *testing.T, files map[string]string) *instance {
	t.Helper()
	root := t.TempDir()
	inst := &instance{
		live:  filepath.Join(root, "live"),
		store: snapshot.NewStore(filepath.Join(root, ".snapshots"), fs.NewHasher()),
		lock: &domain.Lockfile{
			SchemaVersion: 1, PackID: "p", PackVersion: "1", PinnedVersionID: "v",
			GeneratedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	for rel, content := range files {
		writeLive(t, inst.live, rel, content)
		inst.lock.Artifacts = append(inst.lock.Artifacts, domain.Artifact{
			Name: rel, Kind: domain.KindDependency, SourceURL: "https://e/" + rel, RelativePath: rel, Checksum: sum(t, content),
		})
	}
	domain.SortArtifacts(inst.lock.Artifacts)
	return inst
}

func TestStore_CreateAndRestore(t *testing.T) {
	inst := newInstance(t, map[string]string{"a/one.jar": "one", "b/two.jar": "two"})

	snap, err := inst.store.Create(context.Background(), inst.lock, inst.live)
	require.NoError(t, err)
	require.Len(t, snap.Artifacts, 2)
	assert.Equal(t, "a/one.jar", snap.Artifacts[0].RelativePath)
	assert.Equal(t, int64(3), snap.Artifacts[0].Size)
	require.NoError(t, inst.store.Verify(snap))

	// Corrupt the live tree in place; the snapshot must be unaffected.
	writeLive(t, inst.live, "a/one.jar", "garbage")
	require.NoError(t, inst.store.Verify(snap))

	dest := filepath.Join(inst.live, "a", "one.jar")
	require.NoError(t, inst.store.Restore(snap, snap.Artifacts[0], dest))
	data, err := os.ReadFile(dest) //nolint:gosec // test path
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	got, err := inst.store.Get(snap.ID)
	require.NoError(t, err)
	assert.True(t, snap.SameContent(got))
}

func TestStore_CreateRejectsUnverifiedLive(t *testing.T) {
	inst := newInstance(t, map[string]string{"a.jar": "a"})
	writeLive(t, inst.live, "a.jar", "tampered")

	_, err := inst.store.Create(context.Background(), inst.lock, inst.live)
	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.ErrSnapshotWriteFailed.Error())

	snaps, err := inst.store.List()
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestStore_CreateSkipsIdenticalContent(t *testing.T) {
	inst := newInstance(t, map[string]string{"a.jar": "a"})

	first, err := inst.store.Create(context.Background(), inst.lock, inst.live)
	require.NoError(t, err)
	second, err := inst.store.Create(context.Background(), inst.lock, inst.live)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	snaps, err := inst.store.List()
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestStore_ListPruneLatest(t *testing.T) {
	inst := newInstance(t, map[string]string{"a.jar": "a"})

	var ids []string
	for _, content := range []string{"v1", "v2", "v3"} {
		writeLive(t, inst.live, "a.jar", content)
		inst.lock.Artifacts[0].Checksum = sum(t, content)
		snap, err := inst.store.Create(context.Background(), inst.lock, inst.live)
		require.NoError(t, err)
		ids = append(ids, snap.ID)
	}

	snaps, err := inst.store.List()
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, ids[2], snaps[0].ID, "newest first")

	latest, err := inst.store.Latest()
	require.NoError(t, err)
	assert.Equal(t, ids[2], latest.ID)

	removed, err := inst.store.Prune(2)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	snaps, err = inst.store.List()
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, []string{ids[2], ids[1]}, []string{snaps[0].ID, snaps[1].ID})

	_, err = inst.store.Get(ids[0])
	require.Error(t, err)
}

func TestStore_VerifyDetectsCorruptStore(t *testing.T) {
	inst := newInstance(t, map[string]string{"a.jar": "a"})
	snap, err := inst.store.Create(context.Background(), inst.lock, inst.live)
	require.NoError(t, err)

	root := filepath.Dir(inst.live)
	stored := filepath.Join(root, ".snapshots", snap.ID, "files", "a.jar")
	require.NoError(t, os.WriteFile(stored, []byte("rot"), domain.FilePerm))

	err = inst.store.Verify(snap)
	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.ErrSnapshotCorrupt.Error())
}

func TestStore_GetRejectsPaths(t *testing.T) {
	inst := newInstance(t, nil)
	_, err := inst.store.Get("../../etc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.ErrSnapshotNotFound.Error())

	latest, err := inst.store.Latest()
	require.NoError(t, err)
	assert.Nil(t, latest)
}
