package ports

import "iter"

// Walker enumerates files below a root.
type Walker interface {
	// WalkFiles yields slash-separated paths relative to root. Partial downloads are never yielded.
	WalkFiles(root string, ignores []string) iter.Seq[string]
}
