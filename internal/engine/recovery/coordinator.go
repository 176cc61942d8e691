// Package recovery evaluates the state of an instance at the start of every attempt and decides
// between resuming, repairing, rolling back and failing.
package recovery

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strconv"
	"syscall"

	"go.trai.ch/hearth/internal/core/domain"
	"go.trai.ch/hearth/internal/core/ports"
	"go.trai.ch/zerr"
)

// Planner computes the action list for a session.
type Planner interface {
	Plan(ctx context.Context, s *domain.Session) (*domain.Plan, error)
}

// Executor carries out a plan.
type Executor interface {
	Execute(ctx context.Context, s *domain.Session, plan *domain.Plan) (domain.ExecutionReport, error)
}

// Deps are the collaborators of a Coordinator.
type Deps struct {
	Lockfiles  ports.LockfileStore
	Manifests  ports.DesiredStateLoader
	Planner    Planner
	Executor   Executor
	Staging    ports.StagingArea
	Quarantine ports.QuarantineStore
	Snapshots  ports.SnapshotStore
	Verifier   ports.Verifier
	Log        ports.Logger
	Tracer     ports.Tracer
}

// Coordinator owns the recovery state machine of one instance.
type Coordinator struct {
	Deps
}

// New creates a Coordinator.
func New(deps Deps) *Coordinator {
	return &Coordinator{Deps: deps}
}

// Assessment is the verdict of Assess.
type Assessment struct {
	State domain.RecoveryState
	// Resumable names pending artifacts whose staged bytes verify.
	Resumable []string
	// Corrupt names artifacts whose live bytes fail verification.
	Corrupt []string
	// Pending is the number of artifacts requiring work.
	Pending int
	// Snapshot is the newest recorded snapshot, nil when none exists.
	Snapshot *domain.Snapshot
}

// Assess classifies the instance. CorruptLive takes precedence over ResumableStaging, which takes
// precedence over Clean. NoSnapshot replaces Clean when work is pending and nothing could back a rollback.
func (c *Coordinator) Assess(ctx context.Context, s *domain.Session, plan *domain.Plan) (Assessment, error) {
	return c.assess(ctx, s, plan, nil)
}

func (c *Coordinator) assess(ctx context.Context, s *domain.Session, plan *domain.Plan, g *guardedResolver) (Assessment, error) {
	_, span := c.Tracer.Start(ctx, "assess")
	defer span.End()

	var out Assessment
	for _, entry := range plan.Pending() {
		out.Pending++
		a := entry.Artifact
		if entry.State == domain.StateChecksumMismatch {
			out.Corrupt = append(out.Corrupt, a.Name)
			c.Log.Event(domain.Event{
				Kind:            domain.EventRefetch,
				Artifact:        a.Name,
				Decision:        domain.DecisionQuarantine,
				Expected:        a.Checksum.String(),
				Observed:        entry.Observed,
				Authority:       domain.AuthorityLockfile,
				RemoteConsulted: g.consulted(),
			})
			continue
		}
		staged, ok, err := c.Staging.Lookup(&a)
		if err != nil {
			span.RecordError(err)
			return out, err
		}
		if !ok {
			continue
		}
		if _, valid, err := c.Verifier.Verify(staged, a.Checksum); err == nil && valid {
			out.Resumable = append(out.Resumable, a.Name)
		}
	}

	snap, err := c.Snapshots.Latest()
	if err != nil {
		c.Log.Warn("snapshots unreadable: " + err.Error())
	}
	out.Snapshot = snap

	switch {
	case len(out.Corrupt) > 0:
		out.State = domain.RecoveryCorruptLive
	case len(out.Resumable) > 0:
		out.State = domain.RecoveryResumableStaging
	case out.Pending > 0 && out.Snapshot == nil:
		out.State = domain.RecoveryNoSnapshot
	default:
		out.State = domain.RecoveryClean
	}

	span.SetAttribute("state", string(out.State))
	c.Log.Event(domain.Event{
		Kind:            domain.EventAssess,
		Decision:        domain.DecisionProceed,
		Authority:       domain.AuthorityLockfile,
		RemoteConsulted: g.consulted(),
		State:           out.State,
		Detail: "pending=" + strconv.Itoa(out.Pending) +
			" resumable=" + strconv.Itoa(len(out.Resumable)) +
			" corrupt=" + strconv.Itoa(len(out.Corrupt)),
	})
	return out, nil
}

// InstallInput carries what an install needs beyond the session.
type InstallInput struct {
	// Resolver is consulted only when no lockfile exists.
	Resolver ports.UpstreamResolver
}

// Install brings the live tree in line with the lockfile, generating the lockfile first when none exists.
// A failure past the executor's retry budget rolls back to the newest valid snapshot when enabled;
// the original failure is still returned.
func (c *Coordinator) Install(ctx context.Context, s *domain.Session, in InstallInput) (domain.InstallResult, error) {
	ctx, span := c.Tracer.Start(ctx, "install")
	defer span.End()

	var result domain.InstallResult
	g := guard(in.Resolver)

	lock, generated, err := c.lockfile(ctx, s, g)
	if err != nil {
		span.RecordError(err)
		return result, err
	}
	g.seal()
	s.Lockfile = lock
	result.LockfileGenerated = generated

	plan, err := c.Planner.Plan(ctx, s)
	if err != nil {
		span.RecordError(err)
		return result, err
	}

	assessment, err := c.assess(ctx, s, plan, g)
	if err != nil {
		span.RecordError(err)
		return result, err
	}
	result.Recovery = assessment.State

	report, execErr := c.Executor.Execute(ctx, s, plan)
	result.FetchedCount = report.Fetched
	result.ResumedCount = report.Resumed
	result.QuarantinedCount = report.Quarantined

	if execErr == nil {
		result.SatisfiedCount = len(lock.Artifacts)
		if s.Config.Snapshots {
			result.SnapshotID = c.snapshot(ctx, s)
		}
		return result, nil
	}

	result.SatisfiedCount = plan.Count(domain.StateSatisfied) + report.Fetched + report.Resumed
	span.RecordError(execErr)
	return c.recoverFrom(ctx, s, result, assessment, execErr, g)
}

// lockfile loads the authoritative lockfile or generates it when none exists.
func (c *Coordinator) lockfile(ctx context.Context, s *domain.Session, g *guardedResolver) (*domain.Lockfile, bool, error) {
	exists, err := c.Lockfiles.Exists()
	if err != nil {
		return nil, false, err
	}
	if exists {
		lock, err := c.Lockfiles.Load()
		if err != nil {
			return nil, false, err
		}
		c.warnOnDrift(s, lock)
		return lock, false, nil
	}

	desired, err := c.Manifests.Load(s.Layout.ManifestPath())
	if err != nil {
		return nil, false, err
	}
	lock, err := c.Lockfiles.Generate(ctx, desired, g)
	if err != nil {
		return nil, false, err
	}
	c.Log.Event(domain.Event{
		Kind:     domain.EventLockfile,
		Decision: domain.DecisionGenerate,
		Detail:   "pinned " + lock.PinnedVersionID + " with " + strconv.Itoa(len(lock.Artifacts)) + " artifacts",
	})
	return lock, true, nil
}

// warnOnDrift reports a descriptor that no longer names the locked version. The lockfile still wins.
func (c *Coordinator) warnOnDrift(s *domain.Session, lock *domain.Lockfile) {
	desired, err := c.Manifests.Load(s.Layout.ManifestPath())
	if err != nil || desired.Matches(lock) {
		return
	}
	c.Log.Warn("desired-state descriptor names " + desired.PackID + " " + desired.PackVersion +
		" but the lockfile pins " + lock.PackID + " " + lock.PackVersion +
		"; run 'hearth lock regenerate --reason ...' to switch")
}

func (c *Coordinator) snapshot(ctx context.Context, s *domain.Session) string {
	snap, err := c.Snapshots.Create(ctx, s.Lockfile, s.Layout.LiveDir())
	if err != nil {
		c.Log.Warn("install succeeded but no snapshot was recorded: " + err.Error())
		return ""
	}
	if _, err := c.Snapshots.Prune(s.Config.SnapshotRetain); err != nil {
		c.Log.Warn("failed to prune snapshots: " + err.Error())
	}
	return snap.ID
}

// recoverFrom decides what follows a failed execution.
func (c *Coordinator) recoverFrom(
	ctx context.Context,
	s *domain.Session,
	result domain.InstallResult,
	assessment Assessment,
	cause error,
	g *guardedResolver,
) (domain.InstallResult, error) {
	if !domain.IsKind(cause, domain.KindDownloadIntegrityFailure) && !domain.IsKind(cause, domain.KindPromotionFailure) {
		return result, cause
	}
	if !s.Config.AutoRollback {
		return result, cause
	}

	if assessment.Snapshot == nil {
		return result, c.fail(cause, "no snapshot exists to roll back to", g)
	}

	rb, err := c.rollback(ctx, s, "", g)
	if err != nil {
		return result, c.fail(errors.Join(cause, err), "rollback after a failed install did not succeed", g)
	}
	result.RolledBackTo = rb.SnapshotID
	result.QuarantinedCount += rb.QuarantinedCount
	return result, cause
}

func (c *Coordinator) fail(cause error, message string, g *guardedResolver) error {
	err := domain.NewError(domain.KindNoRecoveryPathAvailable, message, cause).
		WithRemediation(domain.RemediationNoRecovery)
	if kindErr := (*domain.Error)(nil); errors.As(cause, &kindErr) {
		err.Artifact = kindErr.Artifact
	}
	c.Log.Event(domain.Event{
		Kind:            domain.EventFail,
		Artifact:        err.Artifact,
		Decision:        domain.DecisionFail,
		Authority:       domain.AuthorityLockfile,
		RemoteConsulted: g.consulted(),
		Detail:          message,
	})
	return err
}

// Rollback restores the live tree from the requested snapshot, or from the newest one that still verifies.
// Only entries whose live bytes differ are restored; corrupt live bytes are quarantined first.
// No upstream metadata is consulted.
func (c *Coordinator) Rollback(ctx context.Context, s *domain.Session, snapshotID string) (domain.RollbackResult, error) {
	return c.rollback(ctx, s, snapshotID, nil)
}

func (c *Coordinator) rollback(ctx context.Context, s *domain.Session, snapshotID string, g *guardedResolver) (domain.RollbackResult, error) {
	ctx, span := c.Tracer.Start(ctx, "rollback", ports.WithAttribute("snapshot", snapshotID))
	defer span.End()

	snap, err := c.chooseSnapshot(snapshotID, g)
	if err != nil {
		span.RecordError(err)
		return domain.RollbackResult{}, err
	}

	result := domain.RollbackResult{SnapshotID: snap.ID}
	for _, entry := range snap.Artifacts {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		restored, quarantined, err := c.restoreEntry(s, snap, entry, g)
		if err != nil {
			span.RecordError(err)
			return result, err
		}
		if quarantined {
			result.QuarantinedCount++
		}
		if restored {
			result.RestoredCount++
		} else {
			result.UnchangedCount++
		}
	}
	span.SetAttribute("restored", result.RestoredCount)
	return result, nil
}

func (c *Coordinator) chooseSnapshot(snapshotID string, g *guardedResolver) (*domain.Snapshot, error) {
	var candidates []domain.Snapshot
	if snapshotID != "" {
		snap, err := c.Snapshots.Get(snapshotID)
		if err != nil {
			return nil, c.fail(err, "snapshot "+snapshotID+" is not available", g)
		}
		candidates = []domain.Snapshot{*snap}
	} else {
		list, err := c.Snapshots.List()
		if err != nil {
			return nil, c.fail(err, "snapshots could not be listed", g)
		}
		candidates = list
	}

	for i := range candidates {
		snap := &candidates[i]
		if err := c.Snapshots.Verify(snap); err != nil {
			c.Log.Event(domain.Event{
				Kind:            domain.EventSnapshotRejected,
				Decision:        domain.DecisionSkip,
				Authority:       domain.AuthoritySnapshot,
				RemoteConsulted: g.consulted(),
				Detail:          snap.ID + ": " + err.Error(),
			})
			continue
		}
		return snap, nil
	}
	return nil, c.fail(domain.ErrSnapshotNotFound, "no snapshot passed verification", g)
}

func (c *Coordinator) restoreEntry(
	s *domain.Session,
	snap *domain.Snapshot,
	entry domain.SnapshotEntry,
	g *guardedResolver,
) (restored, quarantined bool, err error) {
	livePath, err := s.Layout.LivePath(entry.RelativePath)
	if err != nil {
		return false, false, domain.NewError(domain.KindNoRecoveryPathAvailable, "snapshot records a path outside the live tree", err).
			WithRemediation(domain.RemediationNoRecovery)
	}

	event := domain.Event{
		Kind:            domain.EventRollback,
		Artifact:        entry.RelativePath,
		Expected:        entry.Checksum.String(),
		Authority:       domain.AuthoritySnapshot,
		RemoteConsulted: g.consulted(),
	}

	info, statErr := os.Lstat(livePath)
	present := statErr == nil
	switch {
	case statErr != nil && !errors.Is(statErr, fs.ErrNotExist) && !errors.Is(statErr, syscall.ENOTDIR):
		return false, false, zerr.With(zerr.Wrap(statErr, domain.ErrRestoreFailed.Error()), "path", livePath)
	case present && info.Mode().IsRegular():
		observed, ok, err := c.Verifier.Verify(livePath, entry.Checksum)
		if err != nil {
			return false, false, err
		}
		event.Observed = entry.Checksum.Render(observed)
		if ok {
			event.Decision = domain.DecisionSkip
			c.Log.Event(event)
			return false, false, nil
		}
	}

	if present {
		_, err := c.Quarantine.Quarantine(livePath, domain.QuarantineRecord{
			RelativePath: entry.RelativePath,
			Expected:     entry.Checksum,
			Observed:     event.Observed,
			Reason:       "replaced by rollback to snapshot " + snap.ID,
		})
		if err != nil {
			return false, false, restoreError(entry, err)
		}
		quarantined = true
	}

	if err := c.Snapshots.Restore(snap, entry, livePath); err != nil {
		return false, quarantined, restoreError(entry, err)
	}
	event.Decision = domain.DecisionRollback
	c.Log.Event(event)
	return true, quarantined, nil
}

func restoreError(entry domain.SnapshotEntry, cause error) error {
	return domain.NewError(domain.KindPromotionFailure, "snapshot entry could not be restored", cause).
		WithArtifact(entry.RelativePath).
		WithRemediation(domain.RemediationPromotion)
}

// Repair verifies the named live artifacts, or all of them when names is empty, and re-fetches
// only those that are missing or corrupt. Corrupt bytes are quarantined first; siblings are untouched.
func (c *Coordinator) Repair(ctx context.Context, s *domain.Session, names []string) (domain.InstallResult, error) {
	ctx, span := c.Tracer.Start(ctx, "repair", ports.WithAttribute("artifacts", len(names)))
	defer span.End()

	var result domain.InstallResult
	exists, err := c.Lockfiles.Exists()
	if err != nil {
		return result, err
	}
	if !exists {
		return result, domain.NewError(domain.KindConfigError, "repair needs an existing lockfile", domain.ErrLockfileMissing).
			WithRemediation("run 'hearth install' first")
	}
	lock, err := c.Lockfiles.Load()
	if err != nil {
		return result, err
	}
	s.Lockfile = lock

	sub, err := subset(s, names)
	if err != nil {
		span.RecordError(err)
		return result, err
	}

	plan, err := c.Planner.Plan(ctx, sub)
	if err != nil {
		span.RecordError(err)
		return result, err
	}
	assessment, err := c.assess(ctx, sub, plan, nil)
	if err != nil {
		return result, err
	}
	result.Recovery = assessment.State

	report, err := c.Executor.Execute(ctx, sub, plan)
	result.FetchedCount = report.Fetched
	result.ResumedCount = report.Resumed
	result.QuarantinedCount = report.Quarantined
	if err != nil {
		result.SatisfiedCount = plan.Count(domain.StateSatisfied) + report.Fetched + report.Resumed
		span.RecordError(err)
		return result, err
	}
	result.SatisfiedCount = len(sub.Lockfile.Artifacts)
	return result, nil
}

// subset returns a session whose lockfile holds only the named artifacts, in lockfile order.
func subset(s *domain.Session, names []string) (*domain.Session, error) {
	if len(names) == 0 {
		return s, nil
	}
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, ok := s.Lockfile.Find(n); !ok {
			return nil, domain.NewError(domain.KindConfigError, "unknown artifact", zerr.With(domain.ErrArtifactNotInLockfile, "artifact", n)).
				WithArtifact(n).
				WithRemediation("run 'hearth status' to list the artifacts of the lockfile")
		}
		want[n] = struct{}{}
	}

	lock := *s.Lockfile
	lock.Artifacts = nil
	for _, a := range s.Lockfile.Artifacts {
		if _, ok := want[a.Name]; ok {
			lock.Artifacts = append(lock.Artifacts, a)
		}
	}
	return &domain.Session{Layout: s.Layout, Config: s.Config, Lockfile: &lock}, nil
}
