//go:build windows

package fs

// isUnsupportedSync treats every directory sync failure as unsupported; Windows cannot fsync directories.
func isUnsupportedSync(error) bool {
	return true
}
