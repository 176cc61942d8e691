package lockfile_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/hearth/internal/adapters/lockfile"
	"go.trai.ch/hearth/internal/core/domain"
	"go.trai.ch/hearth/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

var desired = domain.DesiredState{
	PackID:          "pack",
	PackVersion:     "1.0.0",
	PinnedVersionID: "1.20.1",
	GeneratedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
}

func resolved() []domain.Artifact {
	return []domain.Artifact{
		{
			Name: "1.20.1", Kind: domain.KindPrimaryPackage, SourceURL: "https://example.com/client.jar",
			RelativePath: "versions/1.20.1/1.20.1.jar",
			Checksum:     domain.Checksum{Algorithm: domain.AlgorithmSHA1, Value: "1111111111111111111111111111111111111111"},
			Size:         domain.Int64(10),
		},
		{
			Name: "a.ogg", Kind: domain.KindDataObject, SourceURL: "https://example.com/aa/aa",
			RelativePath: "assets/objects/aa/aaaa",
			Checksum:     domain.Checksum{Algorithm: domain.AlgorithmSHA1, Value: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
		},
	}
}

func newStore(t *testing.T, now time.Time) (*lockfile.Store, *domain.Layout) {
	t.Helper()
	layout, err := domain.NewLayout(t.TempDir())
	require.NoError(t, err)
	clock := now
	return lockfile.NewStore(layout, lockfile.WithClock(func() time.Time { return clock })), layout
}

func TestStore_GenerateAndLoad(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockUpstreamResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), "1.20.1").Return(resolved(), nil)

	store, layout := newStore(t, time.Date(2026, 3, 4, 5, 6, 7, 8, time.FixedZone("x", 3600)))

	exists, err := store.Exists()
	require.NoError(t, err)
	assert.False(t, exists)

	lock, err := store.Generate(context.Background(), desired, resolver)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 4, 4, 6, 7, 0, time.UTC), lock.GeneratedAt)
	assert.Equal(t, domain.KindDataObject, lock.Artifacts[0].Kind, "artifacts are persisted sorted")

	exists, err = store.Exists()
	require.NoError(t, err)
	assert.True(t, exists)

	loaded, err := store.Load()
	require.NoError(t, err)
	if diff := cmp.Diff(lock, loaded); diff != "" {
		t.Errorf("loaded lockfile differs (-generated +loaded):\n%s", diff)
	}

	_, err = os.Stat(layout.LockPath())
	require.NoError(t, err)
}

func TestStore_Generate_Reproducible(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockUpstreamResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), "1.20.1").Return(resolved(), nil).Times(2)

	first, _ := newStore(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	second, _ := newStore(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))

	a, err := first.Generate(context.Background(), desired, resolver)
	require.NoError(t, err)
	b, err := second.Generate(context.Background(), desired, resolver)
	require.NoError(t, err)

	assert.NotEqual(t, a.GeneratedAt, b.GeneratedAt)
	if diff := cmp.Diff(a.Artifacts, b.Artifacts); diff != "" {
		t.Errorf("two generations differ beyond generatedAt:\n%s", diff)
	}
}

func TestStore_Generate_RefusesExisting(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockUpstreamResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(resolved(), nil).Times(1)

	store, _ := newStore(t, time.Now())
	_, err := store.Generate(context.Background(), desired, resolver)
	require.NoError(t, err)

	_, err = store.Generate(context.Background(), desired, resolver)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindConfigError))
	assert.Contains(t, err.Error(), domain.ErrLockfileExists.Error())
}

func TestStore_Load_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"truncated", `{"schemaVersion": 1, "artifacts": [`, domain.ErrLockfileParseFailed.Error()},
		{"wrong schema", `{"schemaVersion": 9}`, domain.ErrLockfileInvalid.Error()},
		{"escaping path", `{"schemaVersion":1,"packId":"p","packVersion":"1","pinnedVersionId":"v",
			"generatedAt":"2026-01-01T00:00:00Z","artifacts":[{"name":"x","kind":"dependency","sourceUrl":"https://e/x",
			"relativePath":"../../etc/passwd","checksum":{"algorithm":"sha1","value":"1111111111111111111111111111111111111111"}}]}`,
			domain.ErrPathEscapesRoot.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, layout := newStore(t, time.Now())
			require.NoError(t, os.MkdirAll(layout.PackDir(), domain.DirPerm))
			require.NoError(t, os.WriteFile(layout.LockPath(), []byte(tt.content), domain.FilePerm))

			_, err := store.Load()
			require.Error(t, err)
			assert.True(t, domain.IsKind(err, domain.KindConfigError))
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, domain.RemediationRegenerateLock, domain.RemediationOf(err))

			data, readErr := os.ReadFile(layout.LockPath())
			require.NoError(t, readErr)
			assert.Equal(t, tt.content, string(data), "a corrupt lockfile is never rewritten")
		})
	}
}

func TestStore_Load_Missing(t *testing.T) {
	store, _ := newStore(t, time.Now())
	_, err := store.Load()
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindConfigError))
}

func TestStore_Generate_ResolverFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockUpstreamResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(nil, errors.New("boom"))

	store, layout := newStore(t, time.Now())
	_, err := store.Generate(context.Background(), desired, resolver)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindConfigError))

	_, statErr := os.Stat(layout.LockPath())
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestStore_Regenerate(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockUpstreamResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(resolved(), nil).Times(2)

	now := time.Date(2026, 2, 2, 2, 2, 2, 0, time.UTC)
	store, layout := newStore(t, now)

	_, err := store.Generate(context.Background(), desired, resolver)
	require.NoError(t, err)
	before, err := os.ReadFile(layout.LockPath())
	require.NoError(t, err)

	_, err = store.Regenerate(context.Background(), desired, resolver, "  ")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindConfigError))

	_, err = store.Regenerate(context.Background(), desired, resolver, "upstream re-signed client")
	require.NoError(t, err)

	prev := filepath.Join(layout.PackDir(), "lock.1769997722.prev")
	preserved, err := os.ReadFile(prev) //nolint:gosec // test path
	require.NoError(t, err)
	assert.Equal(t, string(before), string(preserved))

	records, err := store.Audit()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "upstream re-signed client", records[0].Reason)
	assert.Equal(t, prev, records[0].PreviousPath)
	assert.True(t, strings.HasPrefix(records[0].NewDigest, "sha256:"))
	assert.Equal(t, records[0].PreviousDigest, records[0].NewDigest, "same clock and metadata give the same bytes")
	assert.Equal(t, os.Getpid(), records[0].PID)
}

func TestStore_Regenerate_FailedSwapKeepsLockAndAudit(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockUpstreamResolver(ctrl)
	first := resolved()
	second := resolved()
	second[0].Checksum.Value = "2222222222222222222222222222222222222222"
	gomock.InOrder(
		resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(first, nil),
		resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(second, nil),
	)

	store, layout := newStore(t, time.Date(2026, 2, 2, 2, 2, 2, 0, time.UTC))
	_, err := store.Generate(context.Background(), desired, resolver)
	require.NoError(t, err)
	before, err := os.ReadFile(layout.LockPath())
	require.NoError(t, err)

	errDisk := errors.New("disk full")
	lockfile.SetWriteFile(store, func(path string, data []byte, perm os.FileMode) error {
		if path == layout.LockPath() {
			return errDisk
		}
		return os.WriteFile(path, data, perm)
	})

	_, err = store.Regenerate(context.Background(), desired, resolver, "pin new client")
	require.Error(t, err)
	assert.ErrorIs(t, err, errDisk)

	exists, err := store.Exists()
	require.NoError(t, err)
	assert.True(t, exists, "an interrupted regeneration never leaves the instance without a lockfile")
	after, err := os.ReadFile(layout.LockPath())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	records, err := store.Audit()
	require.NoError(t, err)
	require.Len(t, records, 1, "the attempt is audited before the swap")
	assert.Equal(t, "pin new client", records[0].Reason)
	assert.NotEqual(t, records[0].PreviousDigest, records[0].NewDigest)

	_, err = store.Load()
	require.NoError(t, err)
}

func TestEncode_Deterministic(t *testing.T) {
	lock := &domain.Lockfile{
		SchemaVersion: 1, PackID: "p", PackVersion: "1", PinnedVersionID: "v",
		GeneratedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Artifacts:   resolved(),
	}
	a, err := lockfile.Encode(lock)
	require.NoError(t, err)
	b, err := lockfile.Encode(lock)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.True(t, strings.HasSuffix(string(a), "}\n"))
}
