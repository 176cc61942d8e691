//go:build !windows

package fs

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isUnsupportedSync reports errors some file systems return for fsync on a directory.
func isUnsupportedSync(err error) bool {
	return errors.Is(err, unix.EINVAL) || errors.Is(err, unix.ENOTSUP)
}
