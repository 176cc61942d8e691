package planner_test

import (
	"context"
	"crypto/sha1" //nolint:gosec // artifact checksums are declared upstream as sha1
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/hearth/internal/adapters/fs"
	"go.trai.ch/hearth/internal/adapters/staging"
	"go.trai.ch/hearth/internal/adapters/telemetry"
	"go.trai.ch/hearth/internal/core/domain"
	"go.trai.ch/hearth/internal/core/ports/mocks"
	"go.trai.ch/hearth/internal/engine/planner"
	"go.uber.org/mock/gomock"
)

func sha1Hex(content string) string {
	sum := sha1.Sum([]byte(content)) //nolint:gosec // see import
	return hex.EncodeToString(sum[:])
}

func artifact(name string, kind domain.ArtifactKind, rel, content string) domain.Artifact {
	return domain.Artifact{
		Name:         name,
		Kind:         kind,
		SourceURL:    "https://example.invalid/" + rel,
		RelativePath: rel,
		Checksum:     domain.Checksum{Algorithm: domain.AlgorithmSHA1, Value: sha1Hex(content)},
		Size:         domain.Int64(int64(len(content))),
	}
}

func newSession(t *testing.T, artifacts ...domain.Artifact) *domain.Session {
	t.Helper()
	layout, err := domain.NewLayout(t.TempDir())
	require.NoError(t, err)
	cfg := domain.DefaultConfig()
	cfg.VerifyWorkers = 2
	return &domain.Session{
		Layout: layout,
		Config: cfg,
		Lockfile: &domain.Lockfile{
			SchemaVersion:   domain.LockfileSchemaVersion,
			PackID:          "demo",
			PackVersion:     "1.0.0",
			PinnedVersionID: "1.21",
			GeneratedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			Artifacts:       artifacts,
		},
	}
}

func writeLive(t *testing.T, s *domain.Session, rel, content string) {
	t.Helper()
	path := filepath.Join(s.Layout.LiveDir(), filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func newPlanner(s *domain.Session) *planner.Planner {
	return planner.New(fs.NewHasher(), fs.NewWalker(), staging.NewArea(s.Layout.StagingDir()), telemetry.NewNoOpTracer())
}

type row struct {
	Name   string
	State  domain.ArtifactState
	Action domain.Action
}

func rows(plan *domain.Plan) []row {
	out := make([]row, 0, len(plan.Entries))
	for _, e := range plan.Entries {
		out = append(out, row{Name: e.Artifact.Name, State: e.State, Action: e.Action})
	}
	return out
}

func TestPlan_States(t *testing.T) {
	s := newSession(t,
		artifact("client", domain.KindPrimaryPackage, "versions/1.21/1.21.jar", "client-bytes"),
		artifact("lwjgl", domain.KindDependency, "libraries/lwjgl.jar", "lwjgl-bytes"),
		artifact("index", domain.KindIndexFile, "assets/indexes/1.21.json", "{}"),
	)
	writeLive(t, s, "versions/1.21/1.21.jar", "client-bytes")
	writeLive(t, s, "libraries/lwjgl.jar", "garbage")

	plan, err := newPlanner(s).Plan(context.Background(), s)
	require.NoError(t, err)

	want := []row{
		{"client", domain.StateSatisfied, domain.ActionNoop},
		{"lwjgl", domain.StateChecksumMismatch, domain.ActionQuarantineThenFetch},
		{"index", domain.StateMissing, domain.ActionFetch},
	}
	if diff := cmp.Diff(want, rows(plan)); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "sha1:"+sha1Hex("garbage"), plan.Entries[1].Observed)
	assert.Equal(t, filepath.Join(s.Layout.LiveDir(), "libraries", "lwjgl.jar"), plan.Entries[1].LivePath)
	assert.Len(t, plan.Pending(), 2)
}

func TestPlan_DirectoryInPlaceOfFile(t *testing.T) {
	s := newSession(t, artifact("client", domain.KindPrimaryPackage, "client.jar", "x"))
	require.NoError(t, os.MkdirAll(filepath.Join(s.Layout.LiveDir(), "client.jar"), 0o750))

	plan, err := newPlanner(s).Plan(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, domain.StateChecksumMismatch, plan.Entries[0].State)
}

func TestPlan_UnsupportedKindAbortsBeforeHashing(t *testing.T) {
	ctrl := gomock.NewController(t)
	verifier := mocks.NewMockVerifier(ctrl) // no calls expected

	s := newSession(t,
		artifact("client", domain.KindPrimaryPackage, "client.jar", "x"),
		artifact("java", domain.KindManagedRuntime, "runtime/java", "y"),
		artifact("mystery", domain.ArtifactKind("hologram"), "holo.bin", "z"),
	)
	writeLive(t, s, "client.jar", "x")

	p := planner.New(verifier, fs.NewWalker(), nil, telemetry.NewNoOpTracer())
	_, err := p.Plan(context.Background(), s)

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindUnsupportedArtifactKind))
	assert.Contains(t, err.Error(), "java (managedRuntime)")
	assert.Contains(t, err.Error(), "mystery (hologram)")
	assert.Equal(t, domain.RemediationUnsupportedKind, domain.RemediationOf(err))
}

func TestPlan_SharedPathHashedOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	verifier := mocks.NewMockVerifier(ctrl)

	a := artifact("steve", domain.KindDataObject, "assets/objects/ab/abcd", "skin")
	b := artifact("alex", domain.KindDataObject, "assets/objects/ab/abcd", "skin")
	s := newSession(t, a, b)
	writeLive(t, s, a.RelativePath, "skin")

	verifier.EXPECT().Verify(gomock.Any(), a.Checksum).Return(a.Checksum.Value, true, nil).Times(1)

	plan, err := planner.New(verifier, fs.NewWalker(), nil, telemetry.NewNoOpTracer()).Plan(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 2, plan.Count(domain.StateSatisfied))
}

func TestPlan_NoWrites(t *testing.T) {
	s := newSession(t, artifact("client", domain.KindPrimaryPackage, "client.jar", "x"))

	_, err := newPlanner(s).Plan(context.Background(), s)
	require.NoError(t, err)

	entries, err := os.ReadDir(s.Layout.Root())
	require.NoError(t, err)
	assert.Empty(t, entries, "planning must not create anything under the instance root")
}

func TestPlan_Cancelled(t *testing.T) {
	s := newSession(t, artifact("client", domain.KindPrimaryPackage, "client.jar", "x"))
	writeLive(t, s, "client.jar", "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newPlanner(s).Plan(ctx, s)
	require.ErrorIs(t, err, context.Canceled)
}

func TestStatus_Report(t *testing.T) {
	s := newSession(t,
		artifact("client", domain.KindPrimaryPackage, "client.jar", "client"),
		artifact("lwjgl", domain.KindDependency, "libraries/lwjgl.jar", "lwjgl"),
		artifact("java", domain.KindManagedRuntime, "runtime/java", "java"),
	)
	writeLive(t, s, "client.jar", "client")
	writeLive(t, s, "options.txt", "fov:90")
	writeLive(t, s, "saves/world/level.dat", "level")
	writeLive(t, s, "libraries/lwjgl.jar.part", "half")

	area := staging.NewArea(s.Layout.StagingDir())
	require.NoError(t, area.Prepare())
	lwjgl := s.Lockfile.Artifacts[1]
	require.NoError(t, os.WriteFile(area.Path(&lwjgl), []byte("lwjgl"), 0o600))

	report, err := newPlanner(s).Status(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Satisfied)
	assert.Equal(t, 1, report.Missing)
	assert.Equal(t, 0, report.Mismatched)
	assert.Equal(t, 1, report.Unsupported)
	assert.False(t, report.Complete())
	assert.Equal(t, []string{"options.txt", "saves/world/level.dat"}, report.Untracked)
	assert.Equal(t, 1, report.Staged)
	assert.Equal(t, "sha1:"+sha1Hex("client"), report.Artifacts[0].Expected)
}

func TestStatus_MissingLiveTree(t *testing.T) {
	s := newSession(t, artifact("client", domain.KindPrimaryPackage, "client.jar", "client"))

	report, err := newPlanner(s).Status(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Missing)
	assert.Empty(t, report.Untracked)

	_, err = os.Stat(s.Layout.LiveDir())
	assert.True(t, os.IsNotExist(err), "status must not create the live tree")
}
