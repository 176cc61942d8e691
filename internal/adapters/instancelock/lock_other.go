//go:build !unix

package instancelock

import (
	"errors"
	"io/fs"
	"os"

	"go.trai.ch/hearth/internal/core/domain"
)

// lockFile creates path exclusively. A leftover file from a crashed process must be removed by hand.
func lockFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, domain.PrivateFilePerm) //nolint:gosec // Path is derived from the instance layout
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, errLocked
		}
		return nil, err
	}
	return f, nil
}

func unlockFile(f *os.File, path string) error {
	return errors.Join(f.Close(), os.Remove(path))
}
