// Package executor carries out an install plan: it stages, verifies and promotes artifacts.
package executor

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"syscall"

	hfs "go.trai.ch/hearth/internal/adapters/fs"
	"go.trai.ch/hearth/internal/core/domain"
	"go.trai.ch/hearth/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Executor runs fetch actions on a pool bounded by Config.Workers. Hashing and promotion
// share a second bound of Config.VerifyWorkers, and promotion into one path is serialized.
type Executor struct {
	fetcher    ports.Fetcher
	verifier   ports.Verifier
	staging    ports.StagingArea
	quarantine ports.QuarantineStore
	log        ports.Logger
	tracer     ports.Tracer
	progress   ports.Progress

	locks pathLocks
}

// New creates an Executor.
func New(
	fetcher ports.Fetcher,
	verifier ports.Verifier,
	staging ports.StagingArea,
	quarantine ports.QuarantineStore,
	log ports.Logger,
	tracer ports.Tracer,
	progress ports.Progress,
) *Executor {
	return &Executor{
		fetcher:    fetcher,
		verifier:   verifier,
		staging:    staging,
		quarantine: quarantine,
		log:        log,
		tracer:     tracer,
		progress:   progress,
	}
}

type counters struct {
	fetched, resumed, quarantined, unchanged atomic.Int64
}

func (c *counters) report() domain.ExecutionReport {
	return domain.ExecutionReport{
		Fetched:     int(c.fetched.Load()),
		Resumed:     int(c.resumed.Load()),
		Quarantined: int(c.quarantined.Load()),
		Unchanged:   int(c.unchanged.Load()),
	}
}

// run is the state of one Execute call.
type run struct {
	e       *Executor
	session *domain.Session
	sem     *semaphore.Weighted
	shared  map[string]int
	counts  *counters
}

// Execute carries out plan. Noop entries cause no network or filesystem access.
// The report is valid even when an error is returned: completed artifacts stay promoted.
func (e *Executor) Execute(ctx context.Context, s *domain.Session, plan *domain.Plan) (domain.ExecutionReport, error) {
	pending := plan.Pending()

	ctx, span := e.tracer.Start(ctx, "execute", ports.WithAttribute("pending", len(pending)))
	defer span.End()

	names := make([]string, 0, len(pending))
	for _, entry := range pending {
		names = append(names, entry.Artifact.Name)
	}
	e.tracer.EmitPlan(ctx, names)

	r := &run{
		e:       e,
		session: s,
		sem:     semaphore.NewWeighted(int64(max(1, s.Config.VerifyWorkers))),
		shared:  make(map[string]int),
		counts:  &counters{},
	}
	for _, entry := range pending {
		r.shared[entry.LivePath]++
	}

	for _, entry := range plan.Entries {
		if entry.Action == domain.ActionNoop {
			r.counts.unchanged.Add(1)
			task := e.progress.Track(entry.Artifact.Key().String())
			task.Cached()
			task.Complete(nil)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.Config.Workers))
	for _, entry := range pending {
		g.Go(func() error {
			return r.artifact(gctx, entry)
		})
	}
	err := g.Wait()

	report := r.counts.report()
	span.SetAttribute("fetched", report.Fetched)
	span.SetAttribute("resumed", report.Resumed)
	span.SetAttribute("quarantined", report.Quarantined)
	if err != nil {
		span.RecordError(err)
		return report, err
	}
	return report, nil
}

func (r *run) artifact(ctx context.Context, entry domain.PlanEntry) (err error) {
	a := entry.Artifact
	task := r.e.progress.Track(a.Key().String())
	ctx, span := r.e.tracer.Start(ctx, "artifact",
		ports.WithAttribute("artifact", a.Name),
		ports.WithAttribute("action", string(entry.Action)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		task.Complete(err)
		span.End()
	}()

	if r.shared[entry.LivePath] > 1 {
		done, err := r.satisfiedBySibling(ctx, entry)
		if err != nil || done {
			if done {
				task.Cached()
			}
			return err
		}
	}

	resumed, err := r.resume(ctx, entry)
	if err != nil {
		return err
	}
	if !resumed {
		task.Log("downloading " + a.SourceURL)
		if err := r.download(ctx, entry); err != nil {
			return err
		}
	} else {
		task.Cached()
	}

	promoted, err := r.promote(ctx, entry)
	if err != nil || !promoted {
		return err
	}
	if resumed {
		r.counts.resumed.Add(1)
	} else {
		r.counts.fetched.Add(1)
	}
	return nil
}

// satisfiedBySibling reports whether another artifact sharing the destination already promoted matching bytes.
// The hashing bound is always taken before the path lock.
func (r *run) satisfiedBySibling(ctx context.Context, entry domain.PlanEntry) (bool, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer r.sem.Release(1)

	unlock := r.e.locks.lock(entry.LivePath)
	defer unlock()

	ok, _, err := r.verifyPath(entry.LivePath, entry.Artifact.Checksum)
	if err != nil || !ok {
		return false, err
	}
	r.counts.unchanged.Add(1)
	return true, nil
}

// resume reports whether a verified staged entry can be promoted without downloading.
// A staged entry that fails verification is discarded.
func (r *run) resume(ctx context.Context, entry domain.PlanEntry) (bool, error) {
	a := entry.Artifact
	staged, exists, err := r.e.staging.Lookup(&a)
	if err != nil || !exists {
		return false, err
	}

	ok, observed, err := r.verify(ctx, staged, a.Checksum)
	if err != nil {
		return false, err
	}
	if ok {
		r.event(domain.EventResume, entry, domain.DecisionResume, observed, "")
		return true, nil
	}

	r.event(domain.EventDiscardStaged, entry, domain.DecisionDiscard, observed, "staged bytes failed verification")
	if err := r.e.staging.Discard(&a); err != nil {
		return false, err
	}
	return false, nil
}

// download fetches the artifact into staging until it verifies or the integrity budget is spent.
func (r *run) download(ctx context.Context, entry domain.PlanEntry) error {
	a := entry.Artifact
	staged := r.e.staging.Path(&a)
	attempts := r.session.Config.IntegrityRetries + 1

	var lastObserved string
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		_, err := r.e.fetcher.Fetch(ctx, domain.FetchRequest{
			URL:  a.SourceURL,
			Dest: staged,
			Size: a.Size,
		})
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return ctx.Err()
		case domain.IsKind(err, domain.KindDownloadIntegrityFailure):
			lastErr = err
			r.retryEvent(entry, attempt, attempts, "", err.Error())
			continue
		default:
			return classifyFetchError(a.Name, err)
		}

		ok, observed, err := r.verify(ctx, staged, a.Checksum)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		lastObserved = observed
		lastErr = zerr.With(zerr.With(domain.ErrChecksumMismatch, "expected", a.Checksum.String()), "observed", observed)
		if err := r.e.staging.Discard(&a); err != nil {
			return err
		}
		r.retryEvent(entry, attempt, attempts, observed, "")
	}

	if err := r.e.staging.Discard(&a); err != nil {
		r.e.log.Warn("failed to discard staged bytes of " + a.Name + ": " + err.Error())
	}
	r.event(domain.EventIntegrityRetry, entry, domain.DecisionFail, lastObserved, "retry budget exhausted")
	return domain.NewError(domain.KindDownloadIntegrityFailure,
		"download failed verification after "+strconv.Itoa(attempts)+" attempts", lastErr).
		WithArtifact(a.Name).
		WithRemediation(domain.RemediationIntegrity)
}

func (r *run) retryEvent(entry domain.PlanEntry, attempt, attempts int, observed, detail string) {
	if attempt >= attempts {
		return
	}
	if detail == "" {
		detail = "attempt " + strconv.Itoa(attempt) + " of " + strconv.Itoa(attempts)
	}
	r.event(domain.EventIntegrityRetry, entry, domain.DecisionRetry, observed, detail)
}

func classifyFetchError(name string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		if de.Artifact == "" {
			de.Artifact = name
		}
		return err
	}
	return domain.NewError(domain.KindTransient, "artifact could not be downloaded", err).
		WithArtifact(name).
		WithRemediation(domain.RemediationTransient)
}

// promote moves the verified staged file into the live tree with one rename.
// A mismatching live file is quarantined immediately before. On failure staging is left intact.
func (r *run) promote(ctx context.Context, entry domain.PlanEntry) (bool, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer r.sem.Release(1)

	unlock := r.e.locks.lock(entry.LivePath)
	defer unlock()

	a := entry.Artifact
	staged := r.e.staging.Path(&a)

	if r.shared[entry.LivePath] > 1 {
		if ok, _, err := r.verifyPath(entry.LivePath, a.Checksum); err == nil && ok {
			r.counts.unchanged.Add(1)
			return false, r.e.staging.Discard(&a)
		}
	}

	if entry.Action == domain.ActionQuarantineThenFetch {
		if err := r.quarantineLive(entry); err != nil {
			return false, err
		}
	}

	parent := filepath.Dir(entry.LivePath)
	if err := os.MkdirAll(parent, domain.DirPerm); err != nil {
		return false, promotionError(a.Name, zerr.With(zerr.Wrap(err, domain.ErrPromotionRenameFailed.Error()), "path", parent))
	}
	if err := os.Rename(staged, entry.LivePath); err != nil {
		return false, promotionError(a.Name, zerr.With(zerr.Wrap(err, domain.ErrPromotionRenameFailed.Error()), "path", entry.LivePath))
	}
	if err := hfs.SyncDir(parent); err != nil {
		return false, promotionError(a.Name, err)
	}

	r.event(domain.EventPromote, entry, domain.DecisionProceed, a.Checksum.Value, "")
	return true, nil
}

func (r *run) quarantineLive(entry domain.PlanEntry) error {
	if _, err := os.Lstat(entry.LivePath); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	a := entry.Artifact
	_, err := r.e.quarantine.Quarantine(entry.LivePath, domain.QuarantineRecord{
		Artifact:     a.Name,
		Kind:         a.Kind,
		RelativePath: a.RelativePath,
		Expected:     a.Checksum,
		Observed:     entry.Observed,
		Reason:       "checksum mismatch",
	})
	if err != nil {
		return promotionError(a.Name, err)
	}
	r.counts.quarantined.Add(1)
	r.event(domain.EventQuarantine, entry, domain.DecisionQuarantine, entry.Observed, "")
	return nil
}

func promotionError(name string, cause error) error {
	return domain.NewError(domain.KindPromotionFailure, "staged artifact could not be promoted", cause).
		WithArtifact(name).
		WithRemediation(domain.RemediationPromotion)
}

// verify hashes path under the hashing bound.
func (r *run) verify(ctx context.Context, path string, want domain.Checksum) (bool, string, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return false, "", err
	}
	defer r.sem.Release(1)

	return r.verifyPath(path, want)
}

func (r *run) verifyPath(path string, want domain.Checksum) (bool, string, error) {
	if _, err := os.Lstat(path); errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return false, "", nil
	}
	observed, ok, err := r.e.verifier.Verify(path, want)
	return ok, want.Render(observed), err
}

func (r *run) event(kind domain.EventKind, entry domain.PlanEntry, decision domain.Decision, observed, detail string) {
	r.e.log.Event(domain.Event{
		Kind:      kind,
		Artifact:  entry.Artifact.Name,
		Decision:  decision,
		Expected:  entry.Artifact.Checksum.String(),
		Observed:  observed,
		Authority: domain.AuthorityLockfile,
		Detail:    detail,
	})
}
