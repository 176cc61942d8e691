// Package planner compares a lockfile against the live tree and decides the action for each artifact.
package planner

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"slices"
	"strings"
	"sync"
	"syscall"

	"go.trai.ch/hearth/internal/core/domain"
	"go.trai.ch/hearth/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// Planner inspects live artifacts. It never writes to the filesystem.
type Planner struct {
	verifier ports.Verifier
	walker   ports.Walker
	staging  ports.StagingArea
	tracer   ports.Tracer
}

// New creates a Planner. staging may be nil, in which case status reports no staged entries.
func New(verifier ports.Verifier, walker ports.Walker, staging ports.StagingArea, tracer ports.Tracer) *Planner {
	return &Planner{
		verifier: verifier,
		walker:   walker,
		staging:  staging,
		tracer:   tracer,
	}
}

// Plan inspects every artifact of the session's lockfile and returns the ordered action list.
// A lockfile containing any artifact kind this engine cannot interpret fails as a whole,
// naming every offender, before a single file is hashed.
func (p *Planner) Plan(ctx context.Context, s *domain.Session) (*domain.Plan, error) {
	ctx, span := p.tracer.Start(ctx, "plan", ports.WithAttribute("artifacts", len(s.Lockfile.Artifacts)))
	defer span.End()

	if err := checkKinds(s.Lockfile); err != nil {
		span.RecordError(err)
		return nil, err
	}

	plan, err := p.inspect(ctx, s)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttribute("pending", len(plan.Pending()))
	return plan, nil
}

// Status reports the state of every artifact without failing on unsupported kinds.
func (p *Planner) Status(ctx context.Context, s *domain.Session) (*domain.DiffReport, error) {
	ctx, span := p.tracer.Start(ctx, "status")
	defer span.End()

	plan, err := p.inspect(ctx, s)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	report := &domain.DiffReport{
		PackID:          s.Lockfile.PackID,
		PackVersion:     s.Lockfile.PackVersion,
		PinnedVersionID: s.Lockfile.PinnedVersionID,
		Artifacts:       make([]domain.ArtifactStatus, 0, len(plan.Entries)),
		Satisfied:       plan.Count(domain.StateSatisfied),
		Missing:         plan.Count(domain.StateMissing),
		Mismatched:      plan.Count(domain.StateChecksumMismatch),
		Unsupported:     plan.Count(domain.StateUnsupportedKind),
	}

	declared := make(map[string]struct{}, len(plan.Entries))
	for _, e := range plan.Entries {
		declared[e.Artifact.RelativePath] = struct{}{}
		report.Artifacts = append(report.Artifacts, domain.ArtifactStatus{
			Name:         e.Artifact.Name,
			Kind:         e.Artifact.Kind,
			RelativePath: e.Artifact.RelativePath,
			State:        e.State,
			Expected:     e.Artifact.Checksum.String(),
			Observed:     e.Observed,
		})
	}

	for rel := range p.walker.WalkFiles(s.Layout.LiveDir(), nil) {
		if _, ok := declared[rel]; !ok {
			report.Untracked = append(report.Untracked, rel)
		}
	}
	slices.Sort(report.Untracked)

	if p.staging != nil {
		staged, err := p.staging.List()
		if err != nil {
			return nil, err
		}
		report.Staged = len(staged)
	}

	return report, nil
}

func checkKinds(lock *domain.Lockfile) error {
	var offenders []string
	for i := range lock.Artifacts {
		if !lock.Artifacts[i].Kind.Supported() {
			offenders = append(offenders, lock.Artifacts[i].Name+" ("+string(lock.Artifacts[i].Kind)+")")
		}
	}
	if len(offenders) == 0 {
		return nil
	}
	return domain.NewError(domain.KindUnsupportedArtifactKind,
		"lockfile contains artifact kinds this engine cannot interpret: "+strings.Join(offenders, ", "), nil).
		WithArtifact(strings.Join(offenders, ", ")).
		WithRemediation(domain.RemediationUnsupportedKind)
}

// observation is the inspected state of one distinct live path.
type observation struct {
	state    domain.ArtifactState
	observed string
}

// inspect hashes each distinct live path once on a pool bounded by VerifyWorkers.
func (p *Planner) inspect(ctx context.Context, s *domain.Session) (*domain.Plan, error) {
	lock := s.Lockfile
	plan := &domain.Plan{Entries: make([]domain.PlanEntry, len(lock.Artifacts))}

	var mu sync.Mutex
	observed := make(map[string]observation, len(lock.Artifacts))
	scheduled := make(map[string]struct{}, len(lock.Artifacts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.Config.VerifyWorkers))

	for i := range lock.Artifacts {
		a := lock.Artifacts[i]
		entry := &plan.Entries[i]
		entry.Artifact = a

		if !a.Kind.Supported() {
			entry.State = domain.StateUnsupportedKind
			continue
		}

		livePath, err := s.Layout.LivePath(a.RelativePath)
		if err != nil {
			_ = g.Wait()
			return nil, domain.NewError(domain.KindConfigError, "lockfile declares a path outside the live tree", err).
				WithArtifact(a.Name).
				WithRemediation(domain.RemediationRegenerateLock)
		}
		entry.LivePath = livePath

		if _, ok := scheduled[a.RelativePath]; ok {
			continue
		}
		scheduled[a.RelativePath] = struct{}{}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			obs, err := p.observe(livePath, a.Checksum)
			if err != nil {
				return zerr.With(err, "artifact", a.Name)
			}
			mu.Lock()
			observed[a.RelativePath] = obs
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range plan.Entries {
		entry := &plan.Entries[i]
		if entry.State == domain.StateUnsupportedKind {
			entry.Action = domain.ActionNoop
			continue
		}
		obs := observed[entry.Artifact.RelativePath]
		entry.State = obs.state
		entry.Observed = obs.observed
		entry.Action = domain.ActionFor(obs.state)
	}
	return plan, nil
}

func (p *Planner) observe(livePath string, want domain.Checksum) (observation, error) {
	info, err := os.Lstat(livePath)
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		return observation{state: domain.StateMissing}, nil
	case err != nil:
		return observation{}, zerr.With(zerr.Wrap(err, domain.ErrFileOpenFailed.Error()), "path", livePath)
	case !info.Mode().IsRegular():
		// A directory or link where a file belongs is replaced like any other mismatch.
		return observation{state: domain.StateChecksumMismatch, observed: info.Mode().Type().String()}, nil
	}

	sum, ok, err := p.verifier.Verify(livePath, want)
	if err != nil {
		return observation{}, err
	}
	if ok {
		return observation{state: domain.StateSatisfied, observed: want.Render(sum)}, nil
	}
	return observation{state: domain.StateChecksumMismatch, observed: want.Render(sum)}, nil
}
