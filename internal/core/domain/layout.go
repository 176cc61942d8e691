package domain

import (
	"path/filepath"
	"strings"

	"go.trai.ch/zerr"
)

const (
	// PackDirName holds the desired-state descriptor and the lockfile.
	PackDirName = "pack"

	// ManifestFileName is the immutable desired-state descriptor.
	ManifestFileName = "manifest"

	// LockFileName is the generated, authoritative lockfile.
	LockFileName = "lock"

	// LockAuditFileName records every explicit lockfile regeneration.
	LockAuditFileName = "lock.audit"

	// LiveDirName is the promoted install tree.
	LiveDirName = "live"

	// StagingDirName holds downloaded-but-unpromoted bytes.
	StagingDirName = ".staging"

	// QuarantineDirName holds corrupted live artifacts removed before replacement.
	QuarantineDirName = ".quarantine"

	// SnapshotsDirName holds last-known-good artifact sets.
	SnapshotsDirName = ".snapshots"

	// InstanceLockFileName is the advisory lock guarding an instance root.
	InstanceLockFileName = ".hearth.lock"

	// ProgressJournalFileName is the progress journal of the last install or repair.
	ProgressJournalFileName = ".hearth.progress"

	// ConfigFileName is the optional per-instance engine configuration.
	ConfigFileName = "hearth.yaml"

	// PartialSuffix marks a download that has not finished.
	PartialSuffix = ".part"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600
)

// Layout resolves the on-disk locations of one instance root.
// The engine never writes outside these directories.
type Layout struct {
	root string
}

// NewLayout returns the layout of the instance rooted at root.
func NewLayout(root string) (*Layout, error) {
	if strings.TrimSpace(root) == "" {
		return nil, zerr.With(ErrInvalidInstanceRoot, "root", root)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, ErrInvalidInstanceRoot.Error()), "root", root)
	}
	return &Layout{root: abs}, nil
}

// Root returns the absolute instance root.
func (l *Layout) Root() string { return l.root }

// PackDir returns <root>/pack.
func (l *Layout) PackDir() string { return filepath.Join(l.root, PackDirName) }

// ManifestPath returns <root>/pack/manifest.
func (l *Layout) ManifestPath() string { return filepath.Join(l.PackDir(), ManifestFileName) }

// LockPath returns <root>/pack/lock.
func (l *Layout) LockPath() string { return filepath.Join(l.PackDir(), LockFileName) }

// AuditPath returns <root>/pack/lock.audit.
func (l *Layout) AuditPath() string { return filepath.Join(l.PackDir(), LockAuditFileName) }

// LiveDir returns <root>/live.
func (l *Layout) LiveDir() string { return filepath.Join(l.root, LiveDirName) }

// StagingDir returns <root>/.staging.
func (l *Layout) StagingDir() string { return filepath.Join(l.root, StagingDirName) }

// QuarantineDir returns <root>/.quarantine.
func (l *Layout) QuarantineDir() string { return filepath.Join(l.root, QuarantineDirName) }

// SnapshotsDir returns <root>/.snapshots.
func (l *Layout) SnapshotsDir() string { return filepath.Join(l.root, SnapshotsDirName) }

// InstanceLockPath returns <root>/.hearth.lock.
func (l *Layout) InstanceLockPath() string { return filepath.Join(l.root, InstanceLockFileName) }

// ProgressJournalPath returns <root>/.hearth.progress.
func (l *Layout) ProgressJournalPath() string { return filepath.Join(l.root, ProgressJournalFileName) }

// ConfigPath returns <root>/hearth.yaml.
func (l *Layout) ConfigPath() string { return filepath.Join(l.root, ConfigFileName) }

// LivePath resolves a lockfile relative path inside the live tree.
func (l *Layout) LivePath(rel string) (string, error) {
	return ConfinedJoin(l.LiveDir(), rel)
}

// ConfinedJoin joins rel onto base and fails when the result would leave base.
// Absolute paths, empty paths and any ".." that climbs out of base are rejected.
func ConfinedJoin(base, rel string) (string, error) {
	if !ValidRelativePath(rel) {
		return "", zerr.With(ErrPathEscapesRoot, "relative_path", rel)
	}
	joined := filepath.Join(base, filepath.FromSlash(rel))
	back, err := filepath.Rel(base, joined)
	if err != nil || back == "." || strings.HasPrefix(back, ".."+string(filepath.Separator)) || back == ".." {
		return "", zerr.With(ErrPathEscapesRoot, "relative_path", rel)
	}
	return joined, nil
}

// ValidRelativePath reports whether rel is a slash-separated path that stays inside its root.
func ValidRelativePath(rel string) bool {
	if rel == "" || strings.Contains(rel, "\\") || strings.HasPrefix(rel, "/") {
		return false
	}
	return filepath.IsLocal(filepath.FromSlash(rel))
}
