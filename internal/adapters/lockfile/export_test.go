package lockfile

import "os"

// SetWriteFile replaces the atomic writer so tests can fail individual steps.
func SetWriteFile(s *Store, fn func(path string, data []byte, perm os.FileMode) error) {
	s.writeFile = fn
}
