// Package enginetest provides fixtures shared by the engine tests: an instance root with a
// lockfile, an in-memory fetcher, and a logger that records engine events.
package enginetest

import (
	"context"
	"crypto/sha1" //nolint:gosec // lockfiles pin sha1 as declared upstream
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.trai.ch/hearth/internal/core/domain"
	"go.trai.ch/hearth/internal/core/ports"
	"go.trai.ch/zerr"
)

// SHA1 returns the hex sha1 of content.
func SHA1(content string) string {
	sum := sha1.Sum([]byte(content)) //nolint:gosec // see import
	return hex.EncodeToString(sum[:])
}

// Artifact builds a supported artifact whose checksum pins content.
func Artifact(name string, kind domain.ArtifactKind, rel, content string) domain.Artifact {
	return domain.Artifact{
		Name:         name,
		Kind:         kind,
		SourceURL:    "https://mirror.test/" + rel,
		RelativePath: rel,
		Checksum:     domain.Checksum{Algorithm: domain.AlgorithmSHA1, Value: SHA1(content)},
		Size:         domain.Int64(int64(len(content))),
	}
}

// Desired is the descriptor every fixture lockfile is generated for.
var Desired = domain.DesiredState{
	PackID:          "demo",
	PackVersion:     "1.0.0",
	PinnedVersionID: "1.21",
	GeneratedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
}

// Lockfile wraps artifacts in a valid lockfile for Desired.
func Lockfile(artifacts ...domain.Artifact) *domain.Lockfile {
	lock := &domain.Lockfile{
		SchemaVersion:   domain.LockfileSchemaVersion,
		PackID:          Desired.PackID,
		PackVersion:     Desired.PackVersion,
		PinnedVersionID: Desired.PinnedVersionID,
		GeneratedAt:     time.Date(2026, 2, 2, 2, 2, 2, 0, time.UTC),
		Artifacts:       append([]domain.Artifact(nil), artifacts...),
	}
	domain.SortArtifacts(lock.Artifacts)
	return lock
}

// Session returns a session on a fresh instance root with small worker pools.
func Session(t *testing.T, lock *domain.Lockfile) *domain.Session {
	t.Helper()
	layout, err := domain.NewLayout(t.TempDir())
	require.NoError(t, err)

	cfg := domain.DefaultConfig()
	cfg.Workers = 4
	cfg.VerifyWorkers = 2
	cfg.IntegrityRetries = 2
	return &domain.Session{Layout: layout, Config: cfg, Lockfile: lock}
}

// LivePath returns the absolute live path of rel.
func LivePath(s *domain.Session, rel string) string {
	return filepath.Join(s.Layout.LiveDir(), filepath.FromSlash(rel))
}

// WriteLive writes content at rel in the live tree.
func WriteLive(t *testing.T, s *domain.Session, rel, content string) {
	t.Helper()
	path := LivePath(s, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), domain.DirPerm))
	require.NoError(t, os.WriteFile(path, []byte(content), domain.FilePerm))
}

// ReadLive returns the content at rel in the live tree.
func ReadLive(t *testing.T, s *domain.Session, rel string) string {
	t.Helper()
	data, err := os.ReadFile(LivePath(s, rel))
	require.NoError(t, err)
	return string(data)
}

// Tree returns every file below root keyed by slash path, for comparing byte images.
func Tree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

// ErrServerUnavailable is returned by Fetcher for URLs it does not serve.
var ErrServerUnavailable = zerr.New("mirror unavailable")

// Fetcher is an in-memory ports.Fetcher serving fixed contents and counting requests.
type Fetcher struct {
	mu       sync.Mutex
	contents map[string]string
	calls    map[string]int
	// Override, when set, replaces the served content of a URL for a given attempt (1-based).
	Override func(url string, attempt int) (string, bool)
}

var _ ports.Fetcher = (*Fetcher)(nil)

// NewFetcher serves every artifact's pinned content at its SourceURL.
func NewFetcher(contents map[string]string) *Fetcher {
	return &Fetcher{contents: contents, calls: map[string]int{}}
}

// Serve maps artifact source URLs to content for each named artifact.
func Serve(artifacts []domain.Artifact, content map[string]string) map[string]string {
	out := make(map[string]string, len(artifacts))
	for _, a := range artifacts {
		if c, ok := content[a.Name]; ok {
			out[a.SourceURL] = c
		}
	}
	return out
}

// Fetch writes the served content to req.Dest.
func (f *Fetcher) Fetch(ctx context.Context, req domain.FetchRequest) (domain.FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.FetchResult{}, err
	}
	f.mu.Lock()
	f.calls[req.URL]++
	attempt := f.calls[req.URL]
	content, ok := f.contents[req.URL]
	override := f.Override
	f.mu.Unlock()

	if override != nil {
		if c, replaced := override(req.URL, attempt); replaced {
			content, ok = c, true
		}
	}
	if !ok {
		return domain.FetchResult{Attempts: 1}, zerr.With(ErrServerUnavailable, "url", req.URL)
	}

	if err := os.MkdirAll(filepath.Dir(req.Dest), domain.DirPerm); err != nil {
		return domain.FetchResult{}, err
	}
	if err := os.WriteFile(req.Dest, []byte(content), domain.FilePerm); err != nil {
		return domain.FetchResult{}, err
	}
	return domain.FetchResult{Downloaded: true, Bytes: int64(len(content)), Attempts: 1}, nil
}

// Calls returns how many times url was fetched.
func (f *Fetcher) Calls(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// Total returns the number of fetches across all URLs.
func (f *Fetcher) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// Recorder is a ports.Logger keeping every event and error.
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
	errors []error
	lines  []string
}

var _ ports.Logger = (*Recorder)(nil)

// Debug records msg.
func (r *Recorder) Debug(msg string) { r.line(msg) }

// Info records msg.
func (r *Recorder) Info(msg string) { r.line(msg) }

// Warn records msg.
func (r *Recorder) Warn(msg string) { r.line(msg) }

// Error records err.
func (r *Recorder) Error(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

// Event records ev.
func (r *Recorder) Event(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *Recorder) line(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, msg)
}

// Events returns the recorded events, optionally filtered by kind.
func (r *Recorder) Events(kinds ...domain.EventKind) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(kinds) == 0 {
		return append([]domain.Event(nil), r.events...)
	}
	var out []domain.Event
	for _, ev := range r.events {
		for _, k := range kinds {
			if ev.Kind == k {
				out = append(out, ev)
				break
			}
		}
	}
	return out
}

// WriteManifest writes the Desired descriptor to the instance's pack/manifest.
func WriteManifest(t *testing.T, s *domain.Session) {
	t.Helper()
	content := "packId: " + Desired.PackID + "\n" +
		"packVersion: " + Desired.PackVersion + "\n" +
		"pinnedVersionId: \"" + Desired.PinnedVersionID + "\"\n" +
		"generatedAt: " + Desired.GeneratedAt.Format(time.RFC3339) + "\n"
	require.NoError(t, os.MkdirAll(s.Layout.PackDir(), domain.DirPerm))
	require.NoError(t, os.WriteFile(s.Layout.ManifestPath(), []byte(content), domain.FilePerm))
}

// Resolver is a ports.UpstreamResolver returning a fixed artifact list and counting calls.
type Resolver struct {
	Artifacts []domain.Artifact
	calls     atomic.Int64
}

var _ ports.UpstreamResolver = (*Resolver)(nil)

// Resolve returns a copy of the configured artifacts.
func (r *Resolver) Resolve(ctx context.Context, _ string) ([]domain.Artifact, error) {
	r.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]domain.Artifact(nil), r.Artifacts...), nil
}

// Calls returns how many times Resolve was called.
func (r *Resolver) Calls() int {
	return int(r.calls.Load())
}
