// Package app implements the application layer for hearth.
package app

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strconv"

	"go.trai.ch/hearth/internal/adapters/download"
	"go.trai.ch/hearth/internal/adapters/lockfile"
	"go.trai.ch/hearth/internal/adapters/quarantine"
	"go.trai.ch/hearth/internal/adapters/snapshot"
	"go.trai.ch/hearth/internal/adapters/staging"
	"go.trai.ch/hearth/internal/adapters/upstream"
	"go.trai.ch/hearth/internal/core/domain"
	"go.trai.ch/hearth/internal/core/ports"
	"go.trai.ch/hearth/internal/engine/executor"
	"go.trai.ch/hearth/internal/engine/planner"
	"go.trai.ch/hearth/internal/engine/recovery"
	"go.trai.ch/zerr"
)

// App represents the main application logic.
// It holds only stateless collaborators; every operation opens its own session on an instance root.
type App struct {
	logger    ports.Logger
	configs   ports.ConfigLoader
	manifests ports.DesiredStateLoader
	verifier  ports.Verifier
	walker    ports.Walker
	locker    ports.InstanceLocker
	tracer    ports.Tracer
	progress  ports.Progress

	fetcher  ports.Fetcher
	resolver ports.UpstreamResolver
}

// New creates a new App instance.
func New(
	log ports.Logger,
	configs ports.ConfigLoader,
	manifests ports.DesiredStateLoader,
	verifier ports.Verifier,
	walker ports.Walker,
	locker ports.InstanceLocker,
	tracer ports.Tracer,
	progress ports.Progress,
) *App {
	return &App{
		logger:    log,
		configs:   configs,
		manifests: manifests,
		verifier:  verifier,
		walker:    walker,
		locker:    locker,
		tracer:    tracer,
		progress:  progress,
	}
}

// WithFetcher replaces the HTTP downloader built from the instance configuration.
// This is primarily used for testing.
func (a *App) WithFetcher(f ports.Fetcher) *App {
	a.fetcher = f
	return a
}

// WithResolver replaces the upstream metadata resolver built from the instance configuration.
// This is primarily used for testing.
func (a *App) WithResolver(r ports.UpstreamResolver) *App {
	a.resolver = r
	return a
}

// Instance selects the instance root an operation works on, plus command-line overrides
// applied on top of the loaded configuration.
type Instance struct {
	Root string
	// Workers overrides the download worker count when positive.
	Workers int
	// NoRollback disables automatic rollback for this invocation.
	NoRollback bool
}

func (i Instance) apply(cfg *domain.Config) {
	if i.Workers > 0 {
		cfg.Workers = i.Workers
	}
	if i.NoRollback {
		cfg.AutoRollback = false
	}
}

// Install brings the instance in line with its lockfile, generating the lockfile on first use.
func (a *App) Install(ctx context.Context, inst Instance) (domain.InstallResult, error) {
	s, err := a.open(inst, true)
	if err != nil {
		return domain.InstallResult{}, err
	}
	defer s.close()

	if err := s.staging.Prepare(); err != nil {
		return domain.InstallResult{}, err
	}
	a.recordProgress(s)
	result, err := s.coordinator.Install(ctx, s.Session, recovery.InstallInput{Resolver: s.resolver})
	result.Progress = a.finishProgress()
	if err != nil {
		return result, err
	}
	a.logger.Info("instance satisfied: " + strconv.Itoa(result.SatisfiedCount) + " artifacts, " +
		strconv.Itoa(result.FetchedCount) + " fetched, " + strconv.Itoa(result.ResumedCount) + " resumed")
	return result, nil
}

// Status compares the lockfile with the live tree without writing anything.
func (a *App) Status(ctx context.Context, inst Instance) (*domain.DiffReport, error) {
	s, err := a.open(inst, false)
	if err != nil {
		return nil, err
	}
	defer s.close()

	lock, err := s.lockfiles.Load()
	if err != nil {
		return nil, err
	}
	s.Lockfile = lock
	report, err := s.planner.Status(ctx, s.Session)
	if err != nil {
		return nil, err
	}

	lastRun, ok, err := a.progress.Replay(s.Layout.ProgressJournalPath())
	switch {
	case err != nil:
		a.logger.Warn("progress journal unreadable: " + err.Error())
	case ok:
		report.LastRun = &lastRun
	}
	return report, nil
}

// Rollback restores the live tree from a snapshot; an empty id selects the newest valid one.
func (a *App) Rollback(ctx context.Context, inst Instance, snapshotID string) (domain.RollbackResult, error) {
	s, err := a.open(inst, true)
	if err != nil {
		return domain.RollbackResult{}, err
	}
	defer s.close()
	return s.coordinator.Rollback(ctx, s.Session, snapshotID)
}

// Repair verifies the named artifacts, or all of them, and re-fetches only the broken ones.
func (a *App) Repair(ctx context.Context, inst Instance, names []string) (domain.InstallResult, error) {
	s, err := a.open(inst, true)
	if err != nil {
		return domain.InstallResult{}, err
	}
	defer s.close()

	if err := s.staging.Prepare(); err != nil {
		return domain.InstallResult{}, err
	}
	a.recordProgress(s)
	result, err := s.coordinator.Repair(ctx, s.Session, names)
	result.Progress = a.finishProgress()
	return result, err
}

// recordProgress journals the per-artifact progress of this run under the instance root.
// Progress is informational, so a journal that cannot be created only warns.
func (a *App) recordProgress(s *session) {
	if err := a.progress.Record(s.Layout.ProgressJournalPath()); err != nil {
		a.logger.Warn("progress journal unavailable: " + err.Error())
	}
}

func (a *App) finishProgress() *domain.ProgressSummary {
	summary, err := a.progress.Finish()
	if err != nil {
		a.logger.Warn("progress journal incomplete: " + err.Error())
	}
	return &summary
}

// Regenerate explicitly replaces the lockfile from the current desired-state descriptor.
// The live tree is not touched; the next install reconciles it.
func (a *App) Regenerate(ctx context.Context, inst Instance, reason string) (*domain.Lockfile, error) {
	s, err := a.open(inst, true)
	if err != nil {
		return nil, err
	}
	defer s.close()

	desired, err := a.manifests.Load(s.Layout.ManifestPath())
	if err != nil {
		return nil, err
	}
	lock, err := s.lockfiles.Regenerate(ctx, desired, s.resolver, reason)
	if err != nil {
		return nil, err
	}
	a.logger.Event(domain.Event{
		Kind:     domain.EventLockfile,
		Decision: domain.DecisionGenerate,
		Detail:   "regenerated for " + lock.PinnedVersionID + ": " + reason,
	})
	return lock, nil
}

// CleanOptions configuration for the Clean method.
type CleanOptions struct {
	// Quarantine also deletes preserved quarantine entries.
	Quarantine bool
}

// CleanResult reports what Clean removed.
type CleanResult struct {
	Staged      int `json:"staged"`
	Quarantined int `json:"quarantined"`
	Snapshots   int `json:"snapshots"`
}

// Clean removes leftover staging entries and partial downloads, prunes snapshots beyond the
// retention count and, when asked, purges the quarantine.
func (a *App) Clean(_ context.Context, inst Instance, opts CleanOptions) (CleanResult, error) {
	var result CleanResult
	s, err := a.open(inst, true)
	if err != nil {
		return result, err
	}
	defer s.close()

	var errs error
	if result.Staged, err = s.staging.Clean(); err != nil {
		errs = errors.Join(errs, err)
	}
	if result.Snapshots, err = s.snapshots.Prune(s.Config.SnapshotRetain); err != nil {
		errs = errors.Join(errs, err)
	}
	if opts.Quarantine {
		if result.Quarantined, err = s.quarantine.Purge(); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	a.logger.Info("removed " + strconv.Itoa(result.Staged) + " staged entries, " +
		strconv.Itoa(result.Snapshots) + " snapshots, " + strconv.Itoa(result.Quarantined) + " quarantine entries")
	return result, errs
}

// Snapshots lists the recorded snapshots, newest first.
func (a *App) Snapshots(_ context.Context, inst Instance) ([]domain.Snapshot, error) {
	s, err := a.open(inst, false)
	if err != nil {
		return nil, err
	}
	defer s.close()
	return s.snapshots.List()
}

// Quarantined lists the quarantine entries, oldest first.
func (a *App) Quarantined(_ context.Context, inst Instance) ([]domain.QuarantineEntry, error) {
	s, err := a.open(inst, false)
	if err != nil {
		return nil, err
	}
	defer s.close()
	return s.quarantine.List()
}

// session is one operation's view of an instance.
type session struct {
	*domain.Session
	lockfiles   *lockfile.Store
	staging     *staging.Area
	quarantine  *quarantine.Store
	snapshots   *snapshot.Store
	planner     *planner.Planner
	coordinator *recovery.Coordinator
	resolver    ports.UpstreamResolver
	release     func()
}

func (s *session) close() {
	s.release()
}

// open resolves the layout and configuration of an instance and, when exclusive,
// takes its advisory lock.
func (a *App) open(inst Instance, exclusive bool) (*session, error) {
	layout, err := domain.NewLayout(inst.Root)
	if err != nil {
		return nil, domain.NewError(domain.KindConfigError, "instance root is invalid", err)
	}
	info, err := os.Stat(layout.Root())
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, domain.NewError(domain.KindConfigError, "instance root does not exist",
			zerr.With(domain.ErrInvalidInstanceRoot, "root", layout.Root())).
			WithRemediation("pass --instance pointing at an instance created by the instance manager")
	case err != nil:
		return nil, domain.NewError(domain.KindConfigError, "instance root cannot be inspected",
			zerr.With(zerr.Wrap(err, domain.ErrInvalidInstanceRoot.Error()), "root", layout.Root()))
	case !info.IsDir():
		return nil, domain.NewError(domain.KindConfigError, "instance root is not a directory",
			zerr.With(domain.ErrInvalidInstanceRoot, "root", layout.Root()))
	}

	cfg, err := a.configs.Load(layout)
	if err != nil {
		return nil, err
	}
	inst.apply(&cfg)

	release := func() {}
	if exclusive {
		lock, err := a.locker.Acquire(layout.InstanceLockPath())
		if err != nil {
			return nil, err
		}
		release = func() {
			if err := lock.Release(); err != nil {
				a.logger.Warn("failed to release instance lock: " + err.Error())
			}
		}
	}

	fetcher := a.fetcher
	if fetcher == nil {
		fetcher = download.New(a.verifier, download.OptionsFromConfig(cfg))
	}
	resolver := a.resolver
	if resolver == nil {
		resolver = upstream.New(upstream.OptionsFromConfig(cfg))
	}

	s := &session{
		Session:    &domain.Session{Layout: layout, Config: cfg},
		lockfiles:  lockfile.NewStore(layout),
		staging:    staging.NewArea(layout.StagingDir()),
		quarantine: quarantine.NewStore(layout.QuarantineDir()),
		snapshots:  snapshot.NewStore(layout.SnapshotsDir(), a.verifier),
		resolver:   resolver,
		release:    release,
	}
	s.planner = planner.New(a.verifier, a.walker, s.staging, a.tracer)
	s.coordinator = recovery.New(recovery.Deps{
		Lockfiles:  s.lockfiles,
		Manifests:  a.manifests,
		Planner:    s.planner,
		Executor:   executor.New(fetcher, a.verifier, s.staging, s.quarantine, a.logger, a.tracer, a.progress),
		Staging:    s.staging,
		Quarantine: s.quarantine,
		Snapshots:  s.snapshots,
		Verifier:   a.verifier,
		Log:        a.logger,
		Tracer:     a.tracer,
	})
	return s, nil
}
