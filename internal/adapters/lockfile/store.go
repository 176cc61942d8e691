// Package lockfile persists the generated, authoritative artifact list of an instance.
package lockfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"
	hfs "go.trai.ch/hearth/internal/adapters/fs"
	"go.trai.ch/hearth/internal/core/domain"
	"go.trai.ch/hearth/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.LockfileStore = (*Store)(nil)

// Store implements ports.LockfileStore on <root>/pack/lock.
type Store struct {
	layout    *domain.Layout
	now       func() time.Time
	writeFile func(path string, data []byte, perm os.FileMode) error
	mu        sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the time source used for generatedAt and audit records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a lockfile store for the instance at layout.
func NewStore(layout *domain.Layout, opts ...Option) *Store {
	s := &Store{layout: layout, now: time.Now, writeFile: hfs.WriteFileAtomic}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AuditRecord is one line of pack/lock.audit.
type AuditRecord struct {
	Time            time.Time `json:"time"`
	Reason          string    `json:"reason"`
	PackID          string    `json:"packId"`
	PinnedVersionID string    `json:"pinnedVersionId"`
	PreviousDigest  string    `json:"previousDigest,omitempty"`
	PreviousPath    string    `json:"previousPath,omitempty"`
	NewDigest       string    `json:"newDigest"`
	PID             int       `json:"pid"`
}

// Exists reports whether a lockfile is present.
func (s *Store) Exists() (bool, error) {
	_, err := os.Stat(s.layout.LockPath())
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, configError("lockfile cannot be inspected", zerr.Wrap(err, domain.ErrLockfileReadFailed.Error()))
	}
}

// Load reads and validates the lockfile. It never regenerates one.
func (s *Store) Load() (*domain.Lockfile, error) {
	path := s.layout.LockPath()

	data, err := os.ReadFile(path) //nolint:gosec // Path is derived from the instance layout
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, configError("lockfile does not exist", zerr.With(domain.ErrLockfileMissing, "path", path))
		}
		return nil, configError("lockfile cannot be read", zerr.With(zerr.Wrap(err, domain.ErrLockfileReadFailed.Error()), "path", path))
	}

	var lock domain.Lockfile
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, configError("lockfile is corrupt", zerr.With(zerr.Wrap(err, domain.ErrLockfileParseFailed.Error()), "path", path))
	}
	if err := lock.Validate(); err != nil {
		return nil, configError("lockfile is invalid", zerr.With(err, "path", path))
	}
	return &lock, nil
}

// Generate resolves and persists a lockfile. It refuses to overwrite an existing one.
func (s *Store) Generate(ctx context.Context, desired domain.DesiredState, resolver ports.UpstreamResolver) (*domain.Lockfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.Exists()
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, configError("lockfile already exists; regeneration is an explicit operation",
			zerr.With(domain.ErrLockfileExists, "path", s.layout.LockPath()))
	}

	lock, data, err := s.build(ctx, desired, resolver)
	if err != nil {
		return nil, err
	}
	if err := s.writeFile(s.layout.LockPath(), data, domain.FilePerm); err != nil {
		return nil, configError("lockfile cannot be written", zerr.Wrap(err, domain.ErrLockfileWriteFailed.Error()))
	}
	return lock, nil
}

// Regenerate replaces the lockfile.
// The previous lockfile is copied aside and the audit record is appended before the new
// lockfile is swapped in, so pack/lock never goes missing and no replacement is unaudited.
// A crash after the audit and before the swap leaves a record whose NewDigest does not
// match the lockfile on disk.
func (s *Store) Regenerate(
	ctx context.Context,
	desired domain.DesiredState,
	resolver ports.UpstreamResolver,
	reason string,
) (*domain.Lockfile, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.NewError(domain.KindConfigError, "regeneration requires a reason", domain.ErrLockfileInvalid).
			WithRemediation("pass --reason describing why the lockfile is replaced")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lock, data, err := s.build(ctx, desired, resolver)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	record := AuditRecord{
		Time:            now,
		Reason:          reason,
		PackID:          lock.PackID,
		PinnedVersionID: lock.PinnedVersionID,
		NewDigest:       digest.FromBytes(data).String(),
		PID:             os.Getpid(),
	}

	path := s.layout.LockPath()
	if previous, readErr := os.ReadFile(path); readErr == nil { //nolint:gosec // Path is derived from the instance layout
		record.PreviousDigest = digest.FromBytes(previous).String()
		record.PreviousPath = path + "." + strconv.FormatInt(now.Unix(), 10) + ".prev"
		if err := s.writeFile(record.PreviousPath, previous, domain.FilePerm); err != nil {
			return nil, configError("previous lockfile cannot be preserved", zerr.Wrap(err, domain.ErrLockfileWriteFailed.Error()))
		}
	} else if !errors.Is(readErr, fs.ErrNotExist) {
		return nil, configError("previous lockfile cannot be read", zerr.Wrap(readErr, domain.ErrLockfileReadFailed.Error()))
	}

	if err := s.appendAudit(record); err != nil {
		return nil, configError("lockfile audit cannot be written", err)
	}
	if err := s.writeFile(path, data, domain.FilePerm); err != nil {
		return nil, configError("lockfile cannot be written", zerr.Wrap(err, domain.ErrLockfileWriteFailed.Error()))
	}
	return lock, nil
}

// Audit returns every recorded regeneration, oldest first.
func (s *Store) Audit() ([]AuditRecord, error) {
	data, err := os.ReadFile(s.layout.AuditPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.Wrap(err, domain.ErrLockfileReadFailed.Error())
	}

	var records []AuditRecord
	for line := range strings.SplitSeq(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var rec AuditRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, zerr.Wrap(err, domain.ErrLockfileParseFailed.Error())
		}
		records = append(records, rec)
	}
	return records, nil
}

// build resolves the artifact list and returns the lockfile with its canonical encoding.
func (s *Store) build(ctx context.Context, desired domain.DesiredState, resolver ports.UpstreamResolver) (*domain.Lockfile, []byte, error) {
	artifacts, err := resolver.Resolve(ctx, desired.PinnedVersionID)
	if err != nil {
		if _, classified := domain.KindOf(err); classified {
			return nil, nil, err
		}
		return nil, nil, configError("lockfile cannot be generated", err)
	}

	artifacts = append([]domain.Artifact(nil), artifacts...)
	domain.SortArtifacts(artifacts)

	lock := &domain.Lockfile{
		SchemaVersion:   domain.LockfileSchemaVersion,
		PackID:          desired.PackID,
		PackVersion:     desired.PackVersion,
		PinnedVersionID: desired.PinnedVersionID,
		GeneratedAt:     s.now().UTC().Truncate(time.Second),
		Artifacts:       artifacts,
	}
	if err := lock.Validate(); err != nil {
		return nil, nil, configError("upstream metadata produced an invalid lockfile", err)
	}

	data, err := Encode(lock)
	if err != nil {
		return nil, nil, configError("lockfile cannot be encoded", err)
	}
	return lock, data, nil
}

// Encode returns the canonical on-disk form of a lockfile.
func Encode(lock *domain.Lockfile) ([]byte, error) {
	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrLockfileWriteFailed.Error())
	}
	return append(data, '\n'), nil
}

func (s *Store) appendAudit(record AuditRecord) error {
	line, err := json.Marshal(record)
	if err != nil {
		return zerr.Wrap(err, domain.ErrLockfileWriteFailed.Error())
	}

	path := s.layout.AuditPath()
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return zerr.Wrap(err, domain.ErrLockfileWriteFailed.Error())
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, domain.FilePerm) //nolint:gosec // Path is derived from the instance layout
	if err != nil {
		return zerr.Wrap(err, domain.ErrLockfileWriteFailed.Error())
	}
	_, writeErr := f.Write(append(line, '\n'))
	syncErr := f.Sync()
	closeErr := f.Close()
	if err := errors.Join(writeErr, syncErr, closeErr); err != nil {
		return zerr.Wrap(err, domain.ErrLockfileWriteFailed.Error())
	}
	return nil
}

func configError(message string, cause error) error {
	return domain.NewError(domain.KindConfigError, message, cause).WithRemediation(domain.RemediationRegenerateLock)
}
