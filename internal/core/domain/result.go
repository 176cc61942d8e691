package domain

// InstallResult summarises one install attempt.
type InstallResult struct {
	// SatisfiedCount is the number of artifacts matching the lockfile after the attempt.
	SatisfiedCount int `json:"satisfiedCount"`
	// FetchedCount is the number of artifacts downloaded over the network.
	FetchedCount int `json:"fetchedCount"`
	// ResumedCount is the number of artifacts promoted from staging without downloading.
	ResumedCount int `json:"resumedCount"`
	// QuarantinedCount is the number of live files moved into quarantine.
	QuarantinedCount int `json:"quarantinedCount"`
	// Recovery is the state assessed at the start of the attempt.
	Recovery RecoveryState `json:"recovery"`
	// LockfileGenerated is true when this attempt created the lockfile.
	LockfileGenerated bool `json:"lockfileGenerated"`
	// SnapshotID is the snapshot recorded after success, if any.
	SnapshotID string `json:"snapshotId,omitempty"`
	// RolledBackTo is the snapshot restored after a failed attempt, if any.
	RolledBackTo string `json:"rolledBackTo,omitempty"`
	// Progress summarises the recorded per-artifact progress, when a recording was taken.
	Progress *ProgressSummary `json:"progress,omitempty"`
}

// ProgressSummary counts the artifacts tracked during one install or repair.
type ProgressSummary struct {
	Tracked   int `json:"tracked"`
	Completed int `json:"completed"`
	Cached    int `json:"cached"`
	Failed    int `json:"failed"`
}

// RollbackResult summarises a rollback.
type RollbackResult struct {
	SnapshotID       string `json:"snapshotId"`
	RestoredCount    int    `json:"restoredCount"`
	UnchangedCount   int    `json:"unchangedCount"`
	QuarantinedCount int    `json:"quarantinedCount"`
}

// ExecutionReport is what the executor did with a plan.
type ExecutionReport struct {
	Fetched     int
	Resumed     int
	Quarantined int
	Unchanged   int
}
