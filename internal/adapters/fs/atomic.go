package fs

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"go.trai.ch/hearth/internal/core/domain"
	"go.trai.ch/zerr"
)

// WriteFileAtomic writes data to path so that readers only ever see the old or the new content.
// The temporary file is created next to path, synced, renamed over path, and the directory is synced.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return writeAtomic(path, bytes.NewReader(data), perm)
}

// CopyFileAtomic copies src to dst with the same guarantees as WriteFileAtomic.
func CopyFileAtomic(src, dst string, perm os.FileMode) error {
	f, err := os.Open(src) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrFileOpenFailed.Error()), "path", src)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	return writeAtomic(dst, f, perm)
}

// MoveFile renames src to dst, creating dst's parent directory first.
func MoveFile(src, dst string) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrAtomicWriteFailed.Error()), "path", dir)
	}
	if err := os.Rename(src, dst); err != nil {
		return err
	}
	return SyncDir(dir)
}

// SyncDir flushes directory metadata so a completed rename survives a crash.
func SyncDir(dir string) error {
	f, err := os.Open(dir) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer
	if err := f.Sync(); err != nil && !isUnsupportedSync(err) {
		return err
	}
	return nil
}

func writeAtomic(path string, r io.Reader, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, domain.DirPerm); mkErr != nil {
		return zerr.With(zerr.Wrap(mkErr, domain.ErrAtomicWriteFailed.Error()), "path", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrAtomicWriteFailed.Error()), "path", path)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	fail := func(cause error) error {
		return zerr.With(zerr.Wrap(cause, domain.ErrAtomicWriteFailed.Error()), "path", path)
	}

	if _, err := io.Copy(tmp, r); err != nil {
		return fail(err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fail(err)
	}
	committed = true

	if err := SyncDir(dir); err != nil {
		return fail(err)
	}
	return nil
}
