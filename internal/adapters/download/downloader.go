// Package download implements the Fetcher port over HTTP(S) and file:// URLs.
package download

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.trai.ch/hearth/internal/adapters/fs"
	"go.trai.ch/hearth/internal/build"
	"go.trai.ch/hearth/internal/core/domain"
	"go.trai.ch/hearth/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Fetcher = (*Downloader)(nil)

// Options bounds how hard the downloader tries.
type Options struct {
	// Attempts is the maximum number of requests per fetch.
	Attempts int
	// RequestTimeout bounds one request including the body transfer.
	RequestTimeout time.Duration
	// BackoffInitial is the first retry delay.
	BackoffInitial time.Duration
	// BackoffMax caps the retry delay.
	BackoffMax time.Duration
}

// OptionsFromConfig derives downloader options from the engine configuration.
func OptionsFromConfig(cfg domain.Config) Options {
	return Options{
		Attempts:       cfg.NetworkRetries,
		RequestTimeout: cfg.RequestTimeout,
		BackoffInitial: cfg.BackoffInitial,
		BackoffMax:     cfg.BackoffMax,
	}
}

// Downloader streams remote content into place through a partial file.
type Downloader struct {
	client   *http.Client
	verifier ports.Verifier
	opts     Options
}

// New creates a Downloader with its own HTTP client.
func New(verifier ports.Verifier, opts Options) *Downloader {
	return NewWithClient(&http.Client{}, verifier, opts)
}

// NewWithClient creates a Downloader using client for HTTP requests.
func NewWithClient(client *http.Client, verifier ports.Verifier, opts Options) *Downloader {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	return &Downloader{client: client, verifier: verifier, opts: opts}
}

// Fetch places req.URL at req.Dest.
// When req.Expected is set and Dest already matches it, no request is made.
func (d *Downloader) Fetch(ctx context.Context, req domain.FetchRequest) (domain.FetchResult, error) {
	if req.Expected != nil {
		if info, err := os.Stat(req.Dest); err == nil && info.Mode().IsRegular() {
			if _, ok, verr := d.verifier.Verify(req.Dest, *req.Expected); verr == nil && ok {
				return domain.FetchResult{Downloaded: false, Bytes: info.Size()}, nil
			}
		}
	}

	dir := filepath.Dir(req.Dest)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return domain.FetchResult{}, zerr.With(zerr.Wrap(err, domain.ErrDownloadFailed.Error()), "path", dir)
	}

	part := req.Dest + domain.PartialSuffix
	attempts := 0
	operation := func() (int64, error) {
		attempts++
		return d.fetchOnce(ctx, req.URL, part)
	}

	n, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(d.newBackOff()),
		backoff.WithMaxTries(uint(d.opts.Attempts)), //nolint:gosec // Attempts is at least 1
		backoff.WithMaxElapsedTime(0),
	)
	if err != nil {
		_ = os.Remove(part)
		err = zerr.With(err, "url", req.URL)
		return domain.FetchResult{Attempts: attempts}, zerr.With(err, "attempts", attempts)
	}

	if req.Size != nil && n != *req.Size {
		_ = os.Remove(part)
		cause := zerr.With(zerr.With(domain.ErrSizeMismatch, "expected", *req.Size), "actual", n)
		return domain.FetchResult{Bytes: n, Attempts: attempts},
			domain.NewError(domain.KindDownloadIntegrityFailure, "downloaded size does not match declared size", cause)
	}

	if err := os.Rename(part, req.Dest); err != nil {
		_ = os.Remove(part)
		return domain.FetchResult{}, zerr.With(zerr.Wrap(err, domain.ErrDownloadFailed.Error()), "path", req.Dest)
	}
	if err := fs.SyncDir(dir); err != nil {
		return domain.FetchResult{}, zerr.With(zerr.Wrap(err, domain.ErrDownloadFailed.Error()), "path", dir)
	}

	return domain.FetchResult{Downloaded: true, Bytes: n, Attempts: attempts}, nil
}

func (d *Downloader) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if d.opts.BackoffInitial > 0 {
		b.InitialInterval = d.opts.BackoffInitial
	}
	if d.opts.BackoffMax > 0 {
		b.MaxInterval = d.opts.BackoffMax
	}
	return b
}

// fetchOnce performs one request and writes the body to part, replacing any previous partial bytes.
func (d *Downloader) fetchOnce(ctx context.Context, rawURL, part string) (int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, backoff.Permanent(zerr.With(zerr.Wrap(err, domain.ErrDownloadFailed.Error()), "url", rawURL))
	}

	if u.Scheme == "file" {
		src, err := os.Open(filepath.FromSlash(u.Path))
		if err != nil {
			return 0, backoff.Permanent(zerr.Wrap(err, domain.ErrDownloadFailed.Error()))
		}
		defer src.Close() //nolint:errcheck // Best effort close in defer
		return writePart(part, src)
	}

	if d.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return 0, backoff.Permanent(zerr.Wrap(err, domain.ErrDownloadFailed.Error()))
	}
	req.Header.Set("User-Agent", build.UserAgent())

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, zerr.Wrap(err, domain.ErrDownloadFailed.Error())
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		statusErr := zerr.With(domain.ErrDownloadStatus, "status_code", resp.StatusCode)
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			if secs, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && secs > 0 {
				return 0, backoff.RetryAfter(secs)
			}
			return 0, statusErr
		case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode >= http.StatusInternalServerError:
			return 0, statusErr
		default:
			return 0, backoff.Permanent(statusErr)
		}
	}

	return writePart(part, resp.Body)
}

// writePart truncates part and streams r into it, syncing before returning.
func writePart(part string, r io.Reader) (int64, error) {
	f, err := os.OpenFile(part, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, domain.FilePerm) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return 0, backoff.Permanent(zerr.With(zerr.Wrap(err, domain.ErrDownloadFailed.Error()), "path", part))
	}

	n, copyErr := io.Copy(f, r)
	syncErr := f.Sync()
	closeErr := f.Close()
	if err := errors.Join(copyErr, syncErr, closeErr); err != nil {
		return n, zerr.Wrap(err, domain.ErrDownloadFailed.Error())
	}
	return n, nil
}
