package recovery_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/hearth/internal/adapters/fs"
	"go.trai.ch/hearth/internal/adapters/lockfile"
	"go.trai.ch/hearth/internal/adapters/manifest"
	"go.trai.ch/hearth/internal/adapters/quarantine"
	"go.trai.ch/hearth/internal/adapters/snapshot"
	"go.trai.ch/hearth/internal/adapters/staging"
	"go.trai.ch/hearth/internal/adapters/telemetry"
	"go.trai.ch/hearth/internal/core/domain"
	"go.trai.ch/hearth/internal/engine/enginetest"
	"go.trai.ch/hearth/internal/engine/executor"
	"go.trai.ch/hearth/internal/engine/planner"
	"go.trai.ch/hearth/internal/engine/recovery"
)

var (
	artA = enginetest.Artifact("client", domain.KindPrimaryPackage, "versions/1.21/1.21.jar", "client-bytes")
	artB = enginetest.Artifact("lwjgl", domain.KindDependency, "libraries/org/lwjgl/lwjgl.jar", "lwjgl-bytes")
	artC = enginetest.Artifact("1.21", domain.KindIndexFile, "assets/indexes/1.21.json", `{"objects":{}}`)

	contents = map[string]string{
		"client": "client-bytes",
		"lwjgl":  "lwjgl-bytes",
		"1.21":   `{"objects":{}}`,
	}
)

type harness struct {
	session     *domain.Session
	fetcher     *enginetest.Fetcher
	resolver    *enginetest.Resolver
	log         *enginetest.Recorder
	lockfiles   *lockfile.Store
	staging     *staging.Area
	quarantine  *quarantine.Store
	snapshots   *snapshot.Store
	coordinator *recovery.Coordinator
}

func newHarness(t *testing.T, artifacts ...domain.Artifact) *harness {
	t.Helper()
	if len(artifacts) == 0 {
		artifacts = []domain.Artifact{artA, artB, artC}
	}
	s := enginetest.Session(t, nil)
	enginetest.WriteManifest(t, s)

	h := &harness{
		session:    s,
		fetcher:    enginetest.NewFetcher(enginetest.Serve(artifacts, contents)),
		resolver:   &enginetest.Resolver{Artifacts: artifacts},
		log:        &enginetest.Recorder{},
		lockfiles:  lockfile.NewStore(s.Layout),
		staging:    staging.NewArea(s.Layout.StagingDir()),
		quarantine: quarantine.NewStore(s.Layout.QuarantineDir()),
		snapshots:  snapshot.NewStore(s.Layout.SnapshotsDir(), fs.NewHasher()),
	}

	hasher := fs.NewHasher()
	tracer := telemetry.NewNoOpTracer()
	h.coordinator = recovery.New(recovery.Deps{
		Lockfiles:  h.lockfiles,
		Manifests:  manifest.NewLoader(),
		Planner:    planner.New(hasher, fs.NewWalker(), h.staging, tracer),
		Executor:   executor.New(h.fetcher, hasher, h.staging, h.quarantine, h.log, tracer, telemetry.NoOpProgress{}),
		Staging:    h.staging,
		Quarantine: h.quarantine,
		Snapshots:  h.snapshots,
		Verifier:   hasher,
		Log:        h.log,
		Tracer:     tracer,
	})
	return h
}

func (h *harness) install(t *testing.T) (domain.InstallResult, error) {
	t.Helper()
	return h.coordinator.Install(context.Background(), h.session, recovery.InstallInput{Resolver: h.resolver})
}

func (h *harness) mustInstall(t *testing.T) domain.InstallResult {
	t.Helper()
	result, err := h.install(t)
	require.NoError(t, err)
	return result
}

func (h *harness) live(t *testing.T) map[string]string {
	t.Helper()
	return enginetest.Tree(t, h.session.Layout.LiveDir())
}

func TestInstall_GeneratesLockfileOnce(t *testing.T) {
	h := newHarness(t)

	result := h.mustInstall(t)

	assert.True(t, result.LockfileGenerated)
	assert.Equal(t, 3, result.FetchedCount)
	assert.Equal(t, 3, result.SatisfiedCount)
	assert.Equal(t, domain.RecoveryNoSnapshot, result.Recovery)
	assert.NotEmpty(t, result.SnapshotID)
	assert.Equal(t, 1, h.resolver.Calls())
	assert.Len(t, h.log.Events(domain.EventLockfile), 1)
}

func TestInstall_Idempotence(t *testing.T) {
	h := newHarness(t)
	first := h.mustInstall(t)
	before := h.live(t)
	fetchesBefore := h.fetcher.Total()

	second := h.mustInstall(t)

	assert.Zero(t, second.FetchedCount)
	assert.False(t, second.LockfileGenerated)
	assert.Equal(t, domain.RecoveryClean, second.Recovery)
	assert.Equal(t, fetchesBefore, h.fetcher.Total(), "second install makes no network calls")
	assert.Equal(t, 1, h.resolver.Calls(), "an existing lockfile is the only authority")
	assert.Equal(t, first.SnapshotID, second.SnapshotID, "identical content reuses the latest snapshot")
	if diff := cmp.Diff(before, h.live(t)); diff != "" {
		t.Errorf("byte image changed (-before +after):\n%s", diff)
	}
}

func TestInstall_Integrity(t *testing.T) {
	h := newHarness(t)
	h.mustInstall(t)

	lock, err := h.lockfiles.Load()
	require.NoError(t, err)
	hasher := fs.NewHasher()
	for _, a := range lock.Artifacts {
		_, ok, err := hasher.Verify(enginetest.LivePath(h.session, a.RelativePath), a.Checksum)
		require.NoError(t, err)
		assert.True(t, ok, "artifact %s matches its declared checksum", a.Name)
	}
}

func TestInstall_CorruptionHandling(t *testing.T) {
	h := newHarness(t)
	h.mustInstall(t)
	enginetest.WriteLive(t, h.session, artA.RelativePath, "garbage")
	callsB, callsC := h.fetcher.Calls(artB.SourceURL), h.fetcher.Calls(artC.SourceURL)
	infoB, err := os.Stat(enginetest.LivePath(h.session, artB.RelativePath))
	require.NoError(t, err)

	result := h.mustInstall(t)

	assert.Equal(t, domain.RecoveryCorruptLive, result.Recovery)
	assert.Equal(t, 1, result.QuarantinedCount)
	assert.Equal(t, 1, result.FetchedCount)
	assert.Equal(t, "client-bytes", enginetest.ReadLive(t, h.session, artA.RelativePath))
	assert.Equal(t, callsB, h.fetcher.Calls(artB.SourceURL), "sibling B makes no network call")
	assert.Equal(t, callsC, h.fetcher.Calls(artC.SourceURL), "sibling C makes no network call")
	infoAfter, err := os.Stat(enginetest.LivePath(h.session, artB.RelativePath))
	require.NoError(t, err)
	assert.Equal(t, infoB.ModTime(), infoAfter.ModTime())

	entries, err := h.quarantine.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	preserved, err := os.ReadFile(entries[0].PayloadPath)
	require.NoError(t, err)
	assert.Equal(t, "garbage", string(preserved), "quarantined bytes are preserved")

	for _, ev := range h.log.Events(domain.EventRefetch, domain.EventQuarantine) {
		assert.Equal(t, domain.AuthorityLockfile, ev.Authority)
		assert.Zero(t, ev.RemoteConsulted)
		assert.Equal(t, artA.Checksum.String(), ev.Expected)
		assert.Equal(t, "sha1:"+enginetest.SHA1("garbage"), ev.Observed)
	}
}

func TestInstall_CrashMidDownloadResumesOrRefetches(t *testing.T) {
	h := newHarness(t)
	// A previous attempt died after staging A completely and while B was half written.
	require.NoError(t, h.staging.Prepare())
	require.NoError(t, os.WriteFile(h.staging.Path(&artA), []byte("client-bytes"), 0o600))
	require.NoError(t, os.WriteFile(h.staging.Path(&artB)+domain.PartialSuffix, []byte("lwj"), 0o600))

	result := h.mustInstall(t)

	assert.Equal(t, domain.RecoveryResumableStaging, result.Recovery)
	assert.Equal(t, 1, result.ResumedCount)
	assert.Equal(t, 2, result.FetchedCount)
	assert.Zero(t, h.fetcher.Calls(artA.SourceURL), "a verified staged entry is promoted without network")
	assert.Equal(t, "lwjgl-bytes", enginetest.ReadLive(t, h.session, artB.RelativePath))
	assert.Equal(t, "client-bytes", enginetest.ReadLive(t, h.session, artA.RelativePath))
}

func TestInstall_CrashWithWrongStagedBytes(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.staging.Prepare())
	require.NoError(t, os.WriteFile(h.staging.Path(&artB), []byte("lwjgl-byte"), 0o600))

	result := h.mustInstall(t)

	assert.Zero(t, result.ResumedCount)
	assert.Equal(t, "lwjgl-bytes", enginetest.ReadLive(t, h.session, artB.RelativePath))
	assert.Len(t, h.log.Events(domain.EventDiscardStaged), 1)
}

func TestInstall_UnsupportedKindFailsBeforeNetwork(t *testing.T) {
	runtime := enginetest.Artifact("java-runtime", domain.KindManagedRuntime, "runtime/java.tar", "jre")
	h := newHarness(t, artA, runtime)

	_, err := h.install(t)

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindUnsupportedArtifactKind))
	assert.Contains(t, err.Error(), "java-runtime")
	assert.Zero(t, h.fetcher.Total(), "no artifact is fetched")
	_, statErr := os.Stat(h.session.Layout.LiveDir())
	assert.True(t, os.IsNotExist(statErr))
}

func TestInstall_BareUnsupportedEntryIsNamed(t *testing.T) {
	h := newHarness(t)
	runtime := domain.Artifact{Name: "java-runtime", Kind: domain.KindManagedRuntime, RelativePath: "runtime/java"}
	data, err := lockfile.Encode(enginetest.Lockfile(artA, runtime))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(h.session.Layout.LockPath(), data, domain.FilePerm))

	_, err = h.install(t)

	require.Error(t, err)
	kind, _ := domain.KindOf(err)
	assert.Equal(t, domain.KindUnsupportedArtifactKind, kind)
	assert.Contains(t, err.Error(), "java-runtime")
	assert.Equal(t, domain.RemediationUnsupportedKind, domain.RemediationOf(err))
	assert.Zero(t, h.fetcher.Total())
	assert.Zero(t, h.resolver.Calls())
}

func TestInstall_CorruptLockfileIsNeverRegenerated(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(h.session.Layout.LockPath(), []byte(`{"schemaVersion": 1, "artif`), 0o600))

	_, err := h.install(t)

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindConfigError))
	assert.Equal(t, domain.RemediationRegenerateLock, domain.RemediationOf(err))
	assert.Zero(t, h.resolver.Calls())
	data, readErr := os.ReadFile(h.session.Layout.LockPath())
	require.NoError(t, readErr)
	assert.Equal(t, `{"schemaVersion": 1, "artif`, string(data))
}

func TestInstall_MissingManifestIsConfigError(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.Remove(h.session.Layout.ManifestPath()))

	_, err := h.install(t)

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindConfigError))
	assert.Zero(t, h.resolver.Calls())
}

func TestInstall_IntegrityFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	first := h.mustInstall(t)
	enginetest.WriteLive(t, h.session, artA.RelativePath, "garbage")
	h.fetcher.Override = func(url string, _ int) (string, bool) {
		return "still garbage", url == artA.SourceURL
	}

	result, err := h.install(t)

	require.Error(t, err, "a rollback never turns a failure into success")
	assert.True(t, domain.IsKind(err, domain.KindDownloadIntegrityFailure))
	assert.Equal(t, first.SnapshotID, result.RolledBackTo)
	assert.Equal(t, "client-bytes", enginetest.ReadLive(t, h.session, artA.RelativePath))

	entries, listErr := h.quarantine.List()
	require.NoError(t, listErr)
	assert.Len(t, entries, 1, "the garbage is quarantined once")
}

func TestInstall_IntegrityFailureWithoutSnapshot(t *testing.T) {
	h := newHarness(t)
	h.fetcher.Override = func(url string, _ int) (string, bool) {
		return "garbage", url == artB.SourceURL
	}

	_, err := h.install(t)

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNoRecoveryPathAvailable))
	assert.Equal(t, domain.RemediationNoRecovery, domain.RemediationOf(err))
	assert.Contains(t, err.Error(), string(domain.KindDownloadIntegrityFailure))

	failures := h.log.Events(domain.EventFail)
	require.Len(t, failures, 1)
	assert.Equal(t, "lwjgl", failures[0].Artifact)
}

func TestInstall_AutoRollbackDisabledReturnsCause(t *testing.T) {
	h := newHarness(t)
	h.session.Config.AutoRollback = false
	h.fetcher.Override = func(url string, _ int) (string, bool) {
		return "garbage", url == artB.SourceURL
	}

	_, err := h.install(t)

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindDownloadIntegrityFailure))
}

func TestRollback_RestoresExactlyTheCorrupted(t *testing.T) {
	h := newHarness(t)
	installed := h.mustInstall(t)
	snap, err := h.snapshots.Get(installed.SnapshotID)
	require.NoError(t, err)
	enginetest.WriteLive(t, h.session, artA.RelativePath, "garbage-a")
	enginetest.WriteLive(t, h.session, artC.RelativePath, "garbage-c")
	infoB, err := os.Stat(enginetest.LivePath(h.session, artB.RelativePath))
	require.NoError(t, err)
	resolverCalls, fetches := h.resolver.Calls(), h.fetcher.Total()

	result, err := h.coordinator.Rollback(context.Background(), h.session, "")
	require.NoError(t, err)

	assert.Equal(t, domain.RollbackResult{
		SnapshotID:       snap.ID,
		RestoredCount:    2,
		UnchangedCount:   1,
		QuarantinedCount: 2,
	}, result)
	hasher := fs.NewHasher()
	for _, e := range snap.Artifacts {
		_, ok, err := hasher.Verify(enginetest.LivePath(h.session, e.RelativePath), e.Checksum)
		require.NoError(t, err)
		assert.True(t, ok, "%s matches the snapshot", e.RelativePath)
	}
	infoAfter, err := os.Stat(enginetest.LivePath(h.session, artB.RelativePath))
	require.NoError(t, err)
	assert.Equal(t, infoB.ModTime(), infoAfter.ModTime(), "untouched entries are not rewritten")
	assert.Equal(t, resolverCalls, h.resolver.Calls())
	assert.Equal(t, fetches, h.fetcher.Total())

	restored := 0
	for _, ev := range h.log.Events(domain.EventRollback) {
		assert.Equal(t, domain.AuthoritySnapshot, ev.Authority)
		assert.Zero(t, ev.RemoteConsulted)
		if ev.Decision == domain.DecisionRollback {
			restored++
		}
	}
	assert.Equal(t, 2, restored)
}

func TestRollback_RejectsCorruptSnapshot(t *testing.T) {
	h := newHarness(t)
	installed := h.mustInstall(t)
	stored := filepath.Join(h.session.Layout.SnapshotsDir(), installed.SnapshotID, "files",
		filepath.FromSlash(artB.RelativePath))
	require.NoError(t, os.WriteFile(stored, []byte("rot"), 0o600))
	enginetest.WriteLive(t, h.session, artA.RelativePath, "garbage")

	_, err := h.coordinator.Rollback(context.Background(), h.session, "")

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNoRecoveryPathAvailable))
	assert.Len(t, h.log.Events(domain.EventSnapshotRejected), 1)
	assert.Equal(t, "garbage", enginetest.ReadLive(t, h.session, artA.RelativePath),
		"nothing is restored from a snapshot that fails verification")
}

func TestRollback_UnknownSnapshot(t *testing.T) {
	h := newHarness(t)
	h.mustInstall(t)

	_, err := h.coordinator.Rollback(context.Background(), h.session, "0190a1e2-0000-7000-8000-000000000000")

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNoRecoveryPathAvailable))
}

func TestRepair_OnlyTouchesNamedArtifacts(t *testing.T) {
	h := newHarness(t)
	h.mustInstall(t)
	enginetest.WriteLive(t, h.session, artA.RelativePath, "garbage-a")
	enginetest.WriteLive(t, h.session, artB.RelativePath, "garbage-b")
	callsB := h.fetcher.Calls(artB.SourceURL)

	result, err := h.coordinator.Repair(context.Background(), h.session, []string{"client"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.QuarantinedCount)
	assert.Equal(t, 1, result.FetchedCount)
	assert.Equal(t, "client-bytes", enginetest.ReadLive(t, h.session, artA.RelativePath))
	assert.Equal(t, "garbage-b", enginetest.ReadLive(t, h.session, artB.RelativePath), "unnamed siblings are untouched")
	assert.Equal(t, callsB, h.fetcher.Calls(artB.SourceURL))
}

func TestRepair_Errors(t *testing.T) {
	h := newHarness(t)

	_, err := h.coordinator.Repair(context.Background(), h.session, nil)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindConfigError), "repair needs a lockfile")

	h.mustInstall(t)
	_, err = h.coordinator.Repair(context.Background(), h.session, []string{"nope"})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindConfigError))
	assert.Contains(t, err.Error(), "nope")
}

func TestAssess_States(t *testing.T) {
	h := newHarness(t)
	h.mustInstall(t)
	lock, err := h.lockfiles.Load()
	require.NoError(t, err)
	h.session.Lockfile = lock
	p := planner.New(fs.NewHasher(), fs.NewWalker(), h.staging, telemetry.NewNoOpTracer())

	assess := func() domain.RecoveryState {
		t.Helper()
		plan, err := p.Plan(context.Background(), h.session)
		require.NoError(t, err)
		a, err := h.coordinator.Assess(context.Background(), h.session, plan)
		require.NoError(t, err)
		return a.State
	}

	assert.Equal(t, domain.RecoveryClean, assess())

	require.NoError(t, os.Remove(enginetest.LivePath(h.session, artB.RelativePath)))
	require.NoError(t, h.staging.Prepare())
	require.NoError(t, os.WriteFile(h.staging.Path(&artB), []byte("lwjgl-bytes"), 0o600))
	assert.Equal(t, domain.RecoveryResumableStaging, assess())

	enginetest.WriteLive(t, h.session, artA.RelativePath, "garbage")
	assert.Equal(t, domain.RecoveryCorruptLive, assess(), "corruption takes precedence")
}
