package domain

// RecoveryState is the coordinator's verdict at the start of an attempt.
type RecoveryState string

const (
	// RecoveryClean means no interrupted work and no corruption was found.
	RecoveryClean RecoveryState = "Clean"
	// RecoveryResumableStaging means verified staging entries can be promoted without downloading.
	RecoveryResumableStaging RecoveryState = "ResumableStaging"
	// RecoveryCorruptLive means at least one live artifact fails verification.
	RecoveryCorruptLive RecoveryState = "CorruptLive"
	// RecoveryNoSnapshot means work is required and no valid snapshot could back a rollback.
	RecoveryNoSnapshot RecoveryState = "NoSnapshot"
)

// Authority names the only sources recovery decisions may be based on.
type Authority string

const (
	// AuthorityLockfile marks decisions checked against the lockfile.
	AuthorityLockfile Authority = "lockfile"
	// AuthoritySnapshot marks decisions checked against a recorded snapshot.
	AuthoritySnapshot Authority = "snapshot"
)

// EventKind classifies a structured engine event.
type EventKind string

const (
	// EventAssess is emitted for the recovery state of an attempt.
	EventAssess EventKind = "recovery.assess"
	// EventResume is emitted when a staged entry is promoted without downloading.
	EventResume EventKind = "recovery.resume"
	// EventDiscardStaged is emitted when a staged entry fails verification and is dropped.
	EventDiscardStaged EventKind = "recovery.discard_staged"
	// EventQuarantine is emitted when a live artifact is moved into quarantine.
	EventQuarantine EventKind = "recovery.quarantine"
	// EventRefetch is emitted when a corrupt artifact is re-planned for fetching.
	EventRefetch EventKind = "recovery.refetch"
	// EventRollback is emitted for each restored snapshot entry.
	EventRollback EventKind = "recovery.rollback"
	// EventSnapshotRejected is emitted when a snapshot fails its own verification.
	EventSnapshotRejected EventKind = "recovery.snapshot_rejected"
	// EventFail is emitted when no recovery path exists.
	EventFail EventKind = "recovery.fail"
	// EventPromote is emitted when a staged artifact becomes live.
	EventPromote EventKind = "install.promote"
	// EventIntegrityRetry is emitted when a download fails verification and is retried.
	EventIntegrityRetry EventKind = "install.integrity_retry"
	// EventLockfile is emitted when a lockfile is generated or regenerated.
	EventLockfile EventKind = "lockfile.generate"
)

// Decision is the outcome the coordinator chose for an event.
type Decision string

const (
	// DecisionResume promotes staged bytes.
	DecisionResume Decision = "resume"
	// DecisionFetch downloads the artifact.
	DecisionFetch Decision = "fetch"
	// DecisionQuarantine moves live bytes aside.
	DecisionQuarantine Decision = "quarantine"
	// DecisionDiscard drops staged bytes.
	DecisionDiscard Decision = "discard"
	// DecisionRollback restores from a snapshot.
	DecisionRollback Decision = "rollback"
	// DecisionSkip leaves an already matching file untouched.
	DecisionSkip Decision = "skip"
	// DecisionRetry tries the download again.
	DecisionRetry Decision = "retry"
	// DecisionFail gives up loudly.
	DecisionFail Decision = "fail"
	// DecisionProceed continues with the attempt.
	DecisionProceed Decision = "proceed"
	// DecisionGenerate creates a lockfile from upstream metadata.
	DecisionGenerate Decision = "generate"
)

// Event is a structured record of an engine decision, consumed by the logging sink.
type Event struct {
	Kind     EventKind
	Artifact string
	Decision Decision
	// Expected comes from the lockfile or snapshot.
	Expected string
	// Observed comes from the filesystem.
	Observed  string
	Authority Authority
	// RemoteConsulted is the number of remote metadata calls made since the authority was fixed.
	// It is zero for every recovery decision.
	RemoteConsulted int
	State           RecoveryState
	Detail          string
}
