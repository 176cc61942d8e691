// Package snapshot records last-known-good copies of the live tree and restores them.
package snapshot

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	hfs "go.trai.ch/hearth/internal/adapters/fs"
	"go.trai.ch/hearth/internal/core/domain"
	"go.trai.ch/hearth/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	metadataName = "snapshot.json"
	filesDir     = "files"
	tmpPrefix    = ".tmp-"
)

var _ ports.SnapshotStore = (*Store)(nil)

// Store implements ports.SnapshotStore in <root>/.snapshots.
// Each snapshot holds its own copy of every file, so later corruption of the live tree
// cannot reach it.
type Store struct {
	dir      string
	verifier ports.Verifier
	now      func() time.Time
}

// NewStore creates a snapshot store rooted at dir.
func NewStore(dir string, verifier ports.Verifier) *Store {
	return &Store{dir: filepath.Clean(dir), verifier: verifier, now: time.Now}
}

// Create records the lockfile's artifacts as they are in liveDir. Every live file must verify.
func (s *Store) Create(ctx context.Context, lock *domain.Lockfile, liveDir string) (*domain.Snapshot, error) {
	entries, err := s.collect(ctx, lock, liveDir)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrSnapshotWriteFailed.Error())
	}
	snap := &domain.Snapshot{
		ID:          id.String(),
		CreatedAt:   s.now().UTC(),
		PackID:      lock.PackID,
		PackVersion: lock.PackVersion,
		Artifacts:   entries,
	}

	latest, err := s.Latest()
	if err != nil {
		return nil, err
	}
	if latest != nil && latest.SameContent(snap) && s.Verify(latest) == nil {
		return latest, nil
	}

	tmp := filepath.Join(s.dir, tmpPrefix+snap.ID)
	if err := s.write(ctx, tmp, snap, liveDir); err != nil {
		_ = os.RemoveAll(tmp)
		return nil, err
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, snap.ID)); err != nil {
		_ = os.RemoveAll(tmp)
		return nil, zerr.Wrap(err, domain.ErrSnapshotWriteFailed.Error())
	}
	if err := hfs.SyncDir(s.dir); err != nil {
		return nil, zerr.Wrap(err, domain.ErrSnapshotWriteFailed.Error())
	}
	return snap, nil
}

// collect verifies each distinct live path against the lockfile, in path order.
func (s *Store) collect(ctx context.Context, lock *domain.Lockfile, liveDir string) ([]domain.SnapshotEntry, error) {
	seen := make(map[string]struct{}, len(lock.Artifacts))
	entries := make([]domain.SnapshotEntry, 0, len(lock.Artifacts))

	for i := range lock.Artifacts {
		a := &lock.Artifacts[i]
		if _, dup := seen[a.RelativePath]; dup {
			continue
		}
		seen[a.RelativePath] = struct{}{}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		live, err := domain.ConfinedJoin(liveDir, a.RelativePath)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(live)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrSnapshotWriteFailed.Error()), "relative_path", a.RelativePath)
		}
		observed, ok, err := s.verifier.Verify(live, a.Checksum)
		if err != nil {
			return nil, zerr.Wrap(err, domain.ErrSnapshotWriteFailed.Error())
		}
		if !ok {
			err := zerr.With(domain.ErrChecksumMismatch, "relative_path", a.RelativePath)
			err = zerr.With(err, "observed", observed)
			return nil, zerr.Wrap(err, domain.ErrSnapshotWriteFailed.Error())
		}

		entries = append(entries, domain.SnapshotEntry{RelativePath: a.RelativePath, Checksum: a.Checksum, Size: info.Size()})
	}

	slices.SortFunc(entries, func(a, b domain.SnapshotEntry) int {
		return cmp.Compare(a.RelativePath, b.RelativePath)
	})
	return entries, nil
}

func (s *Store) write(ctx context.Context, dir string, snap *domain.Snapshot, liveDir string) error {
	for _, e := range snap.Artifacts {
		if err := ctx.Err(); err != nil {
			return err
		}
		src, err := domain.ConfinedJoin(liveDir, e.RelativePath)
		if err != nil {
			return err
		}
		dst, err := domain.ConfinedJoin(filepath.Join(dir, filesDir), e.RelativePath)
		if err != nil {
			return err
		}
		if err := hfs.CopyFileAtomic(src, dst, domain.FilePerm); err != nil {
			return zerr.Wrap(err, domain.ErrSnapshotWriteFailed.Error())
		}
		if _, ok, err := s.verifier.Verify(dst, e.Checksum); err != nil || !ok {
			cause := zerr.With(domain.ErrChecksumMismatch, "relative_path", e.RelativePath)
			if err != nil {
				cause = err
			}
			return zerr.Wrap(cause, domain.ErrSnapshotWriteFailed.Error())
		}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return zerr.Wrap(err, domain.ErrSnapshotWriteFailed.Error())
	}
	if err := hfs.WriteFileAtomic(filepath.Join(dir, metadataName), data, domain.FilePerm); err != nil {
		return zerr.Wrap(err, domain.ErrSnapshotWriteFailed.Error())
	}
	return nil
}

// List returns all complete snapshots, newest first. Unreadable snapshots are skipped.
func (s *Store) List() ([]domain.Snapshot, error) {
	ids, err := s.ids()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Snapshot, 0, len(ids))
	for _, id := range slices.Backward(ids) {
		snap, err := s.read(id)
		if err != nil {
			continue
		}
		out = append(out, *snap)
	}
	return out, nil
}

// Get returns one snapshot by id.
func (s *Store) Get(id string) (*domain.Snapshot, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, zerr.With(domain.ErrSnapshotNotFound, "id", id)
	}
	return s.read(id)
}

// Latest returns the newest readable snapshot, or nil.
func (s *Store) Latest() (*domain.Snapshot, error) {
	snaps, err := s.List()
	if err != nil || len(snaps) == 0 {
		return nil, err
	}
	return &snaps[0], nil
}

// Verify checks every stored file against its recorded checksum.
func (s *Store) Verify(snap *domain.Snapshot) error {
	for _, e := range snap.Artifacts {
		path, err := s.filePath(snap, e)
		if err != nil {
			return err
		}
		observed, ok, err := s.verifier.Verify(path, e.Checksum)
		if err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrSnapshotCorrupt.Error()), "relative_path", e.RelativePath)
		}
		if !ok {
			corrupt := zerr.With(domain.ErrSnapshotCorrupt, "relative_path", e.RelativePath)
			corrupt = zerr.With(corrupt, "expected", e.Checksum.String())
			return zerr.With(corrupt, "observed", observed)
		}
	}
	return nil
}

// Restore copies one stored file to dest through a temporary file next to it.
func (s *Store) Restore(snap *domain.Snapshot, entry domain.SnapshotEntry, dest string) error {
	src, err := s.filePath(snap, entry)
	if err != nil {
		return err
	}
	if err := hfs.CopyFileAtomic(src, dest, domain.FilePerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrRestoreFailed.Error()), "relative_path", entry.RelativePath)
	}
	return nil
}

// Prune keeps the newest keep snapshots and removes older ones and abandoned temporary directories.
func (s *Store) Prune(keep int) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, zerr.Wrap(err, domain.ErrSnapshotWriteFailed.Error())
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), tmpPrefix) {
			_ = os.RemoveAll(filepath.Join(s.dir, e.Name()))
		}
	}

	ids, err := s.ids()
	if err != nil {
		return 0, err
	}
	removed := 0
	for i := 0; i < len(ids)-max(keep, 0); i++ {
		if err := os.RemoveAll(filepath.Join(s.dir, ids[i])); err != nil {
			return removed, zerr.With(zerr.Wrap(err, domain.ErrSnapshotWriteFailed.Error()), "id", ids[i])
		}
		removed++
	}
	return removed, nil
}

func (s *Store) filePath(snap *domain.Snapshot, e domain.SnapshotEntry) (string, error) {
	return domain.ConfinedJoin(filepath.Join(s.dir, snap.ID, filesDir), e.RelativePath)
}

func (s *Store) read(id string) (*domain.Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, id, metadataName)) //nolint:gosec // id is a parsed UUID
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, zerr.With(domain.ErrSnapshotNotFound, "id", id)
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrSnapshotCorrupt.Error()), "id", id)
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrSnapshotCorrupt.Error()), "id", id)
	}
	if snap.ID != id {
		return nil, zerr.With(domain.ErrSnapshotCorrupt, "id", id)
	}
	return &snap, nil
}

// ids returns snapshot directory names oldest first; UUIDv7 names sort by creation time.
func (s *Store) ids() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.Wrap(err, domain.ErrSnapshotWriteFailed.Error())
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := uuid.Parse(e.Name()); err != nil {
			continue
		}
		ids = append(ids, e.Name())
	}
	slices.Sort(ids)
	return ids, nil
}
