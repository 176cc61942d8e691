// Package staging holds downloaded-but-unpromoted artifacts inside the instance root.
package staging

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/hearth/internal/core/domain"
	"go.trai.ch/hearth/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.StagingArea = (*Area)(nil)

// Area implements ports.StagingArea in <root>/.staging.
// Entries are flat files named by a hash of the artifact identity, so a restarted
// attempt finds the same entry for the same artifact.
type Area struct {
	dir string
}

// NewArea creates a staging area rooted at dir. The directory is created on first use.
func NewArea(dir string) *Area {
	return &Area{dir: filepath.Clean(dir)}
}

// Dir returns the staging directory.
func (a *Area) Dir() string {
	return a.dir
}

// Path returns where the artifact is staged.
func (a *Area) Path(artifact *domain.Artifact) string {
	return filepath.Join(a.dir, key(artifact))
}

// Lookup returns the staged path and whether a complete entry exists.
func (a *Area) Lookup(artifact *domain.Artifact) (string, bool, error) {
	path := a.Path(artifact)
	info, err := os.Stat(path)
	switch {
	case err == nil:
		return path, info.Mode().IsRegular(), nil
	case errors.Is(err, fs.ErrNotExist):
		return path, false, nil
	default:
		return path, false, zerr.With(zerr.Wrap(err, domain.ErrStagingFailed.Error()), "path", path)
	}
}

// Prepare creates the staging directory.
func (a *Area) Prepare() error {
	if err := os.MkdirAll(a.dir, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrStagingFailed.Error()), "path", a.dir)
	}
	return nil
}

// Discard removes the staged entry and any partial download of it.
func (a *Area) Discard(artifact *domain.Artifact) error {
	path := a.Path(artifact)
	for _, p := range []string{path, path + domain.PartialSuffix} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return zerr.With(zerr.Wrap(err, domain.ErrStagingFailed.Error()), "path", p)
		}
	}
	return nil
}

// List returns the keys of complete staged entries, sorted.
func (a *Area) List() ([]string, error) {
	entries, err := a.entries()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if !strings.HasSuffix(e, domain.PartialSuffix) && !strings.Contains(e, ".tmp.") {
			keys = append(keys, e)
		}
	}
	return keys, nil
}

// Clean removes every staged entry, partial download and leftover temporary file.
func (a *Area) Clean() (int, error) {
	entries, err := a.entries()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		path := filepath.Join(a.dir, e)
		if err := os.RemoveAll(path); err != nil {
			return removed, zerr.With(zerr.Wrap(err, domain.ErrStagingFailed.Error()), "path", path)
		}
		removed++
	}
	return removed, nil
}

func (a *Area) entries() ([]string, error) {
	dirEntries, err := os.ReadDir(a.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStagingFailed.Error()), "path", a.dir)
	}
	names := make([]string, 0, len(dirEntries))
	for _, e := range dirEntries {
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}

// key derives the entry name from the (kind, name) identity.
func key(artifact *domain.Artifact) string {
	sum := sha256.Sum256([]byte(string(artifact.Kind) + "\x00" + artifact.Name))
	return hex.EncodeToString(sum[:])
}
