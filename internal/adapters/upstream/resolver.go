// Package upstream resolves a pinned version into its canonical artifact list from a version manifest.
package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.trai.ch/hearth/internal/adapters/fs"
	"go.trai.ch/hearth/internal/build"
	"go.trai.ch/hearth/internal/core/domain"
	"go.trai.ch/hearth/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.UpstreamResolver = (*Resolver)(nil)

// defaultMaxMetadataSize bounds a metadata document read into memory.
const defaultMaxMetadataSize = 64 << 20

// Options configures where metadata and objects are fetched from.
type Options struct {
	ManifestURL    string
	ResourcesURL   string
	Platform       string
	RequestTimeout time.Duration
	Attempts       int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// MaxMetadataSize bounds each metadata document; zero means 64 MiB.
	MaxMetadataSize int64
}

// OptionsFromConfig derives resolver options from the engine configuration.
func OptionsFromConfig(cfg domain.Config) Options {
	return Options{
		ManifestURL:    cfg.ManifestURL,
		ResourcesURL:   cfg.ResourcesURL,
		Platform:       cfg.Platform,
		RequestTimeout: cfg.RequestTimeout,
		Attempts:       cfg.NetworkRetries,
		BackoffInitial: cfg.BackoffInitial,
		BackoffMax:     cfg.BackoffMax,
	}
}

// Resolver reads the version manifest, the pinned version's descriptor and its asset index.
type Resolver struct {
	httpClient *http.Client
	opts       Options
}

// New creates a Resolver with its own HTTP client.
func New(opts Options) *Resolver {
	return NewWithClient(&http.Client{Timeout: opts.RequestTimeout}, opts)
}

// NewWithClient creates a Resolver using client for HTTP requests.
func NewWithClient(client *http.Client, opts Options) *Resolver {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	opts.ResourcesURL = strings.TrimRight(opts.ResourcesURL, "/")
	return &Resolver{httpClient: client, opts: opts}
}

// Resolve returns every artifact of the pinned version, sorted by kind and name.
// An unknown version is a ConfigError; unreachable or inconsistent metadata is a TransientFailure.
func (r *Resolver) Resolve(ctx context.Context, pinnedVersionID string) ([]domain.Artifact, error) {
	artifacts, err := r.resolve(ctx, pinnedVersionID)
	if err != nil {
		if _, classified := domain.KindOf(err); classified {
			return nil, err
		}
		return nil, domain.NewError(domain.KindTransient, "upstream metadata unavailable", err).
			WithRemediation(domain.RemediationTransient)
	}
	return artifacts, nil
}

func (r *Resolver) resolve(ctx context.Context, pinnedVersionID string) ([]domain.Artifact, error) {
	var manifest versionManifest
	if _, err := r.getJSON(ctx, r.opts.ManifestURL, "", &manifest); err != nil {
		return nil, err
	}

	var entry *manifestEntry
	for i := range manifest.Versions {
		if manifest.Versions[i].ID == pinnedVersionID {
			entry = &manifest.Versions[i]
			break
		}
	}
	if entry == nil {
		return nil, domain.NewError(domain.KindConfigError, "pinned version is not published upstream",
			zerr.With(domain.ErrUpstreamVersionNotFound, "version", pinnedVersionID)).
			WithRemediation(domain.RemediationFixManifest)
	}

	var desc versionDescriptor
	descSize, err := r.getJSON(ctx, entry.URL, entry.SHA1, &desc)
	if err != nil {
		return nil, zerr.With(err, "version", pinnedVersionID)
	}

	id := pinnedVersionID
	artifacts := []domain.Artifact{
		newArtifact(id, domain.KindVersionDescriptor, entry.URL, path.Join("versions", id, id+".json"), entry.SHA1, descSize),
	}

	if client := desc.Downloads.Client; client != nil {
		artifacts = append(artifacts,
			newArtifact(id, domain.KindPrimaryPackage, client.URL, path.Join("versions", id, id+".jar"), client.SHA1, client.Size))
	}

	artifacts = append(artifacts, r.libraries(desc.Libraries)...)

	if desc.AssetIndex.URL != "" {
		objects, err := r.assets(ctx, desc.AssetIndex)
		if err != nil {
			return nil, zerr.With(err, "version", pinnedVersionID)
		}
		artifacts = append(artifacts, objects...)
	}

	domain.SortArtifacts(artifacts)
	return dedupe(artifacts), nil
}

// dedupe drops repeated declarations of the same artifact in a sorted list.
func dedupe(sorted []domain.Artifact) []domain.Artifact {
	out := sorted[:0]
	for i, a := range sorted {
		if i > 0 {
			prev := out[len(out)-1]
			if prev.Key() == a.Key() && prev.RelativePath == a.RelativePath && prev.Checksum.Equal(a.Checksum) {
				continue
			}
		}
		out = append(out, a)
	}
	return out
}

// libraries converts allowed libraries into dependency and platform-specific artifacts.
func (r *Resolver) libraries(libs []library) []domain.Artifact {
	var out []domain.Artifact
	for _, lib := range libs {
		if !allowed(lib.Rules, r.opts.Platform) {
			continue
		}

		if a := lib.Downloads.Artifact; a != nil && a.URL != "" {
			kind := domain.KindDependency
			if isNativesCoordinate(lib.Name) {
				kind = domain.KindPlatformSpecificComponent
			}
			out = append(out, newArtifact(lib.Name, kind, a.URL, path.Join("libraries", a.Path), a.SHA1, a.Size))
		}

		classifier, ok := lib.Natives[r.opts.Platform]
		if !ok {
			continue
		}
		classifier = strings.ReplaceAll(classifier, "${arch}", "64")
		if c, ok := lib.Downloads.Classifiers[classifier]; ok && c.URL != "" {
			out = append(out, newArtifact(lib.Name+":"+classifier, domain.KindPlatformSpecificComponent,
				c.URL, path.Join("libraries", c.Path), c.SHA1, c.Size))
		}
	}
	return out
}

// assets fetches the asset index and expands it into one artifact per object.
func (r *Resolver) assets(ctx context.Context, ref assetRef) ([]domain.Artifact, error) {
	var index assetIndex
	size, err := r.getJSON(ctx, ref.URL, ref.SHA1, &index)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Artifact, 0, len(index.Objects)+1)
	out = append(out, newArtifact(ref.ID, domain.KindIndexFile, ref.URL, path.Join("assets", "indexes", ref.ID+".json"), ref.SHA1, size))

	for name, obj := range index.Objects {
		hash := strings.ToLower(obj.Hash)
		if len(hash) < 2 {
			return nil, zerr.With(domain.ErrUpstreamParseFailed, "object", name)
		}
		prefix := hash[:2]
		out = append(out, newArtifact(name, domain.KindDataObject,
			r.opts.ResourcesURL+"/"+prefix+"/"+hash, path.Join("assets", "objects", prefix, hash), hash, obj.Size))
	}
	return out, nil
}

// getJSON fetches rawURL, checks the body against wantSHA1 when given, and decodes it into v.
// It returns the body size.
func (r *Resolver) getJSON(ctx context.Context, rawURL, wantSHA1 string, v any) (int64, error) {
	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		return r.get(ctx, rawURL)
	},
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(uint(r.opts.Attempts)), //nolint:gosec // Attempts is at least 1
		backoff.WithMaxElapsedTime(0),
	)
	if err != nil {
		return 0, zerr.With(err, "url", rawURL)
	}

	if wantSHA1 != "" {
		got, err := fs.SumBytes(body, domain.AlgorithmSHA1)
		if err != nil {
			return 0, err
		}
		if !strings.EqualFold(got, wantSHA1) {
			mismatch := zerr.With(domain.ErrUpstreamChecksumMismatch, "url", rawURL)
			mismatch = zerr.With(mismatch, "expected", wantSHA1)
			return 0, zerr.With(mismatch, "observed", got)
		}
	}

	if err := json.Unmarshal(body, v); err != nil {
		return 0, zerr.With(zerr.Wrap(err, domain.ErrUpstreamParseFailed.Error()), "url", rawURL)
	}
	return int64(len(body)), nil
}

func (r *Resolver) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, backoff.Permanent(zerr.Wrap(err, domain.ErrUpstreamRequestFailed.Error()))
	}
	req.Header.Set("User-Agent", build.UserAgent())

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrUpstreamRequestFailed.Error())
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		apiErr := zerr.With(domain.ErrUpstreamRequestFailed, "status_code", resp.StatusCode)
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return nil, apiErr
		}
		return nil, backoff.Permanent(apiErr)
	}

	limit := r.maxSize()
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrUpstreamRequestFailed.Error())
	}
	if int64(len(body)) > limit {
		return nil, backoff.Permanent(zerr.With(domain.ErrUpstreamTooLarge, "limit", limit))
	}
	return body, nil
}

func (r *Resolver) maxSize() int64 {
	if r.opts.MaxMetadataSize > 0 {
		return r.opts.MaxMetadataSize
	}
	return defaultMaxMetadataSize
}

func (r *Resolver) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if r.opts.BackoffInitial > 0 {
		b.InitialInterval = r.opts.BackoffInitial
	}
	if r.opts.BackoffMax > 0 {
		b.MaxInterval = r.opts.BackoffMax
	}
	return b
}

func newArtifact(name string, kind domain.ArtifactKind, url, rel, sha1 string, size int64) domain.Artifact {
	a := domain.Artifact{
		Name:         name,
		Kind:         kind,
		SourceURL:    url,
		RelativePath: rel,
		Checksum:     domain.Checksum{Algorithm: domain.AlgorithmSHA1, Value: strings.ToLower(sha1)},
	}
	if size > 0 {
		a.Size = domain.Int64(size)
	}
	return a
}

// isNativesCoordinate reports whether a maven coordinate carries a natives classifier,
// e.g. org.lwjgl:lwjgl:3.3.1:natives-linux.
func isNativesCoordinate(coord string) bool {
	parts := strings.Split(coord, ":")
	return len(parts) >= 4 && strings.HasPrefix(parts[3], "natives-")
}
