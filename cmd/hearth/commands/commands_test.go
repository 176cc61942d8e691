package commands_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/hearth/cmd/hearth/commands"
	"go.trai.ch/hearth/internal/app"
	"go.trai.ch/hearth/internal/build"
	"go.trai.ch/hearth/internal/core/domain"
)

type fakeApp struct {
	inst     app.Instance
	names    []string
	snapshot string
	reason   string
	clean    app.CleanOptions
	err      error
	install  domain.InstallResult
}

func (f *fakeApp) Install(_ context.Context, inst app.Instance) (domain.InstallResult, error) {
	f.inst = inst
	return f.install, f.err
}

func (f *fakeApp) Status(_ context.Context, inst app.Instance) (*domain.DiffReport, error) {
	f.inst = inst
	return &domain.DiffReport{
		PackID:    "demo",
		Artifacts: []domain.ArtifactStatus{{Name: "client", RelativePath: "a.jar", State: domain.StateMissing}},
		Missing:   1,
	}, f.err
}

func (f *fakeApp) Rollback(_ context.Context, inst app.Instance, id string) (domain.RollbackResult, error) {
	f.inst, f.snapshot = inst, id
	return domain.RollbackResult{SnapshotID: "snap", RestoredCount: 2}, f.err
}

func (f *fakeApp) Repair(_ context.Context, inst app.Instance, names []string) (domain.InstallResult, error) {
	f.inst, f.names = inst, names
	return domain.InstallResult{}, f.err
}

func (f *fakeApp) Regenerate(_ context.Context, inst app.Instance, reason string) (*domain.Lockfile, error) {
	f.inst, f.reason = inst, reason
	return &domain.Lockfile{PackID: "demo", PinnedVersionID: "1.21"}, f.err
}

func (f *fakeApp) Clean(_ context.Context, inst app.Instance, opts app.CleanOptions) (app.CleanResult, error) {
	f.inst, f.clean = inst, opts
	return app.CleanResult{Staged: 3}, f.err
}

func (f *fakeApp) Snapshots(_ context.Context, inst app.Instance) ([]domain.Snapshot, error) {
	f.inst = inst
	return nil, f.err
}

func (f *fakeApp) Quarantined(_ context.Context, inst app.Instance) ([]domain.QuarantineEntry, error) {
	f.inst = inst
	return nil, f.err
}

type fakeConsole struct {
	json, verbose bool
}

func (c *fakeConsole) SetJSON(enable bool)    { c.json = enable }
func (c *fakeConsole) SetVerbose(enable bool) { c.verbose = enable }

func execute(t *testing.T, a *fakeApp, console commands.Console, args ...string) (string, error) {
	t.Helper()
	cli := commands.New(a, console)
	var out bytes.Buffer
	cli.SetArgs(args)
	cli.SetOutput(&out, &out)
	err := cli.Execute(context.Background())
	return out.String(), err
}

func TestCommands_GlobalFlags(t *testing.T) {
	a := &fakeApp{}
	console := &fakeConsole{}

	_, err := execute(t, a, console, "--instance", "/srv/inst", "--workers", "3", "--no-rollback", "-v", "--json", "install")
	require.NoError(t, err)

	assert.Equal(t, app.Instance{Root: "/srv/inst", Workers: 3, NoRollback: true}, a.inst)
	assert.True(t, console.json)
	assert.True(t, console.verbose)
}

func TestCommands_InstallJSON(t *testing.T) {
	a := &fakeApp{install: domain.InstallResult{SatisfiedCount: 7, FetchedCount: 2, Recovery: domain.RecoveryClean}}

	out, err := execute(t, a, nil, "--json", "install")
	require.NoError(t, err)

	var got domain.InstallResult
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, a.install, got)
}

func TestCommands_InstallReportsRollback(t *testing.T) {
	cause := domain.NewError(domain.KindDownloadIntegrityFailure, "bad bytes", nil)
	a := &fakeApp{install: domain.InstallResult{RolledBackTo: "snap-1"}, err: cause}

	out, err := execute(t, a, nil, "install")

	require.ErrorIs(t, err, cause)
	assert.Contains(t, out, "rolled back to snapshot snap-1")
}

func TestCommands_InstallShowsProgress(t *testing.T) {
	a := &fakeApp{install: domain.InstallResult{
		SatisfiedCount: 2,
		Progress:       &domain.ProgressSummary{Tracked: 2, Completed: 2, Cached: 1},
	}}

	out, err := execute(t, a, nil, "install")
	require.NoError(t, err)
	assert.Contains(t, out, "progress 2 tracked, 2 completed, 1 cached, 0 failed")
}

func TestCommands_Arguments(t *testing.T) {
	t.Run("repair passes artifact names", func(t *testing.T) {
		a := &fakeApp{}
		_, err := execute(t, a, nil, "repair", "client", "lwjgl")
		require.NoError(t, err)
		assert.Equal(t, []string{"client", "lwjgl"}, a.names)
	})

	t.Run("rollback passes the snapshot id", func(t *testing.T) {
		a := &fakeApp{}
		out, err := execute(t, a, nil, "rollback", "0190")
		require.NoError(t, err)
		assert.Equal(t, "0190", a.snapshot)
		assert.Contains(t, out, "restored 2")
	})

	t.Run("rollback accepts at most one id", func(t *testing.T) {
		_, err := execute(t, &fakeApp{}, nil, "rollback", "a", "b")
		require.Error(t, err)
	})

	t.Run("lock regenerate requires a reason", func(t *testing.T) {
		a := &fakeApp{}
		_, err := execute(t, a, nil, "lock", "regenerate")
		require.Error(t, err)

		_, err = execute(t, a, nil, "lock", "regenerate", "--reason", "pack update")
		require.NoError(t, err)
		assert.Equal(t, "pack update", a.reason)
	})

	t.Run("clean purges quarantine only on request", func(t *testing.T) {
		a := &fakeApp{}
		_, err := execute(t, a, nil, "clean")
		require.NoError(t, err)
		assert.False(t, a.clean.Quarantine)

		_, err = execute(t, a, nil, "clean", "--quarantine")
		require.NoError(t, err)
		assert.True(t, a.clean.Quarantine)
	})
}

func TestCommands_ListsRenderEmpty(t *testing.T) {
	out, err := execute(t, &fakeApp{}, nil, "snapshots")
	require.NoError(t, err)
	assert.Contains(t, out, "no snapshots recorded")

	out, err = execute(t, &fakeApp{}, nil, "--json", "quarantine")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestCommands_Status(t *testing.T) {
	out, err := execute(t, &fakeApp{}, nil, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Missing client (a.jar)")
	assert.Contains(t, out, "hearth install")
}

func TestCommands_ErrorsPropagate(t *testing.T) {
	a := &fakeApp{err: errors.New("simulated error")}
	_, err := execute(t, a, nil, "status")
	require.Error(t, err)
	assert.Equal(t, "simulated error", err.Error())
}

func TestCommands_Version(t *testing.T) {
	out, err := execute(t, &fakeApp{}, nil, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "hearth version "+build.Version)
}
