//go:build unix

package instancelock

import (
	"errors"
	"os"

	"go.trai.ch/hearth/internal/core/domain"
	"golang.org/x/sys/unix"
)

// lockFile opens path and takes an exclusive non-blocking flock on it.
// The kernel drops the lock when the process exits, so a crashed holder never wedges the instance.
func lockFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, domain.PrivateFilePerm) //nolint:gosec // Path is derived from the instance layout
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil { //nolint:gosec // fd fits in int
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, errLocked
		}
		return nil, err
	}
	return f, nil
}

// unlockFile releases the flock. The file itself stays, since removing it would race a waiting opener.
func unlockFile(f *os.File, _ string) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_UN) //nolint:gosec // fd fits in int
	return errors.Join(err, f.Close())
}
