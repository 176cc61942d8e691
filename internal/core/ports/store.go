package ports

import (
	"context"

	"go.trai.ch/hearth/internal/core/domain"
)

// LockfileStore loads, generates (once) and persists the pinned artifact list.
type LockfileStore interface {
	// Exists reports whether a lockfile is present.
	Exists() (bool, error)

	// Load reads the existing lockfile. A corrupt lockfile is a ConfigError; it is never regenerated here.
	Load() (*domain.Lockfile, error)

	// Generate resolves and persists a lockfile. It fails if a lockfile already exists.
	Generate(ctx context.Context, desired domain.DesiredState, resolver UpstreamResolver) (*domain.Lockfile, error)

	// Regenerate replaces the lockfile as an explicit, audited operation.
	Regenerate(ctx context.Context, desired domain.DesiredState, resolver UpstreamResolver, reason string) (*domain.Lockfile, error)
}

// StagingArea holds downloaded-but-unpromoted bytes keyed by artifact identity.
type StagingArea interface {
	// Path returns where the artifact is staged.
	Path(a *domain.Artifact) string

	// Lookup returns the staged path and whether an entry exists.
	Lookup(a *domain.Artifact) (string, bool, error)

	// Discard removes the staged entry and any partial download.
	Discard(a *domain.Artifact) error

	// List returns the keys of all staged entries.
	List() ([]string, error)

	// Clean removes every staged entry and partial download.
	Clean() (int, error)
}

// QuarantineStore preserves live bytes removed because they failed verification.
type QuarantineStore interface {
	// Quarantine moves livePath into the store.
	Quarantine(livePath string, rec domain.QuarantineRecord) (domain.QuarantineEntry, error)

	// List returns all quarantine entries, oldest first.
	List() ([]domain.QuarantineEntry, error)

	// Purge deletes every entry. Only an explicit user command calls it.
	Purge() (int, error)
}

// SnapshotStore records and restores last-known-good artifact sets.
type SnapshotStore interface {
	// Create copies the lockfile's live artifacts into a new snapshot.
	// When the live content equals the latest snapshot, that snapshot is returned instead.
	Create(ctx context.Context, lock *domain.Lockfile, liveDir string) (*domain.Snapshot, error)

	// List returns all snapshots, newest first.
	List() ([]domain.Snapshot, error)

	// Get returns one snapshot by id.
	Get(id string) (*domain.Snapshot, error)

	// Latest returns the newest snapshot, or nil when none exists.
	Latest() (*domain.Snapshot, error)

	// Verify checks the snapshot's stored bytes against its recorded checksums.
	Verify(s *domain.Snapshot) error

	// Restore atomically copies one snapshot entry to dest.
	Restore(s *domain.Snapshot, entry domain.SnapshotEntry, dest string) error

	// Prune keeps the newest keep snapshots and deletes the rest.
	Prune(keep int) (int, error)
}
