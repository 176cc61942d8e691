// Package quarantine preserves live files that failed verification instead of deleting them.
package quarantine

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	hfs "go.trai.ch/hearth/internal/adapters/fs"
	"go.trai.ch/hearth/internal/core/domain"
	"go.trai.ch/hearth/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	payloadName  = "payload"
	metadataName = "entry.json"
)

var _ ports.QuarantineStore = (*Store)(nil)

// Store implements ports.QuarantineStore in <root>/.quarantine.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore creates a quarantine store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: filepath.Clean(dir), now: time.Now}
}

// Quarantine moves livePath into a new entry and records why.
// The bytes are moved first, so a crash never loses them; the metadata follows.
func (s *Store) Quarantine(livePath string, rec domain.QuarantineRecord) (domain.QuarantineEntry, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return domain.QuarantineEntry{}, zerr.Wrap(err, domain.ErrQuarantineFailed.Error())
	}

	entryDir := filepath.Join(s.dir, id.String())
	payload := filepath.Join(entryDir, payloadName)
	if err := hfs.MoveFile(livePath, payload); err != nil {
		return domain.QuarantineEntry{}, zerr.With(zerr.Wrap(err, domain.ErrQuarantineFailed.Error()), "path", livePath)
	}

	if rec.QuarantinedAt.IsZero() {
		rec.QuarantinedAt = s.now().UTC()
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return domain.QuarantineEntry{}, zerr.Wrap(err, domain.ErrQuarantineFailed.Error())
	}
	if err := hfs.WriteFileAtomic(filepath.Join(entryDir, metadataName), data, domain.FilePerm); err != nil {
		return domain.QuarantineEntry{}, zerr.Wrap(err, domain.ErrQuarantineFailed.Error())
	}

	return domain.QuarantineEntry{ID: id.String(), Record: rec, PayloadPath: payload}, nil
}

// List returns all entries, oldest first.
func (s *Store) List() ([]domain.QuarantineEntry, error) {
	ids, err := s.ids()
	if err != nil {
		return nil, err
	}

	out := make([]domain.QuarantineEntry, 0, len(ids))
	for _, id := range ids {
		entryDir := filepath.Join(s.dir, id)
		entry := domain.QuarantineEntry{ID: id, PayloadPath: filepath.Join(entryDir, payloadName)}

		data, err := os.ReadFile(filepath.Join(entryDir, metadataName)) //nolint:gosec // Path is inside the store
		switch {
		case err == nil:
			if err := json.Unmarshal(data, &entry.Record); err != nil {
				return nil, zerr.With(zerr.Wrap(err, domain.ErrQuarantineFailed.Error()), "entry", id)
			}
		case errors.Is(err, fs.ErrNotExist):
			entry.Record.Reason = "metadata missing"
		default:
			return nil, zerr.With(zerr.Wrap(err, domain.ErrQuarantineFailed.Error()), "entry", id)
		}
		out = append(out, entry)
	}
	return out, nil
}

// Purge deletes every entry.
func (s *Store) Purge() (int, error) {
	ids, err := s.ids()
	if err != nil {
		return 0, err
	}
	for i, id := range ids {
		if err := os.RemoveAll(filepath.Join(s.dir, id)); err != nil {
			return i, zerr.With(zerr.Wrap(err, domain.ErrQuarantineFailed.Error()), "entry", id)
		}
	}
	return len(ids), nil
}

// ids returns entry directory names sorted; UUIDv7 names sort by creation time.
func (s *Store) ids() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.Wrap(err, domain.ErrQuarantineFailed.Error())
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	slices.Sort(ids)
	return ids, nil
}
