package domain

// ArtifactState is the derived state of one artifact in the live tree. It is never persisted.
type ArtifactState string

const (
	// StateSatisfied means the live file matches its declared checksum.
	StateSatisfied ArtifactState = "Satisfied"
	// StateMissing means no live file exists at the artifact's path.
	StateMissing ArtifactState = "Missing"
	// StateChecksumMismatch means a live file exists with the wrong content.
	StateChecksumMismatch ArtifactState = "ChecksumMismatch"
	// StateUnsupportedKind means this engine version cannot interpret the artifact.
	StateUnsupportedKind ArtifactState = "UnsupportedKind"
)

// Action is what the executor must do for one artifact.
type Action string

const (
	// ActionNoop leaves a satisfied artifact alone: no network call, no filesystem write.
	ActionNoop Action = "noop"
	// ActionFetch stages, verifies and promotes a missing artifact.
	ActionFetch Action = "fetch"
	// ActionQuarantineThenFetch moves the corrupt live file to quarantine before promoting a fresh copy.
	ActionQuarantineThenFetch Action = "quarantineThenFetch"
)

// ActionFor maps an inspected state to the action that restores it.
func ActionFor(state ArtifactState) Action {
	switch state {
	case StateMissing:
		return ActionFetch
	case StateChecksumMismatch:
		return ActionQuarantineThenFetch
	default:
		return ActionNoop
	}
}

// PlanEntry is the inspection result and planned action for one artifact.
type PlanEntry struct {
	Artifact Artifact
	State    ArtifactState
	Action   Action
	// LivePath is the absolute destination inside the live tree.
	LivePath string
	// Observed is the checksum computed from the live file, empty when absent.
	Observed string
}

// Plan is the ordered action list for one lockfile against one live tree.
type Plan struct {
	Entries []PlanEntry
}

// Pending returns the entries that require work.
func (p *Plan) Pending() []PlanEntry {
	out := make([]PlanEntry, 0, len(p.Entries))
	for _, e := range p.Entries {
		if e.Action != ActionNoop {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many entries are in the given state.
func (p *Plan) Count(state ArtifactState) int {
	n := 0
	for _, e := range p.Entries {
		if e.State == state {
			n++
		}
	}
	return n
}

// Only returns a plan restricted to the named artifacts, keeping order.
func (p *Plan) Only(names map[string]struct{}) *Plan {
	out := &Plan{}
	for _, e := range p.Entries {
		if _, ok := names[e.Artifact.Name]; ok {
			out.Entries = append(out.Entries, e)
		}
	}
	return out
}

// ArtifactStatus is one row of a status report.
type ArtifactStatus struct {
	Name         string        `json:"name"`
	Kind         ArtifactKind  `json:"kind"`
	RelativePath string        `json:"relativePath"`
	State        ArtifactState `json:"state"`
	Expected     string        `json:"expected"`
	Observed     string        `json:"observed,omitempty"`
}

// DiffReport is the read-only comparison between a lockfile and the live tree.
type DiffReport struct {
	PackID          string           `json:"packId"`
	PackVersion     string           `json:"packVersion"`
	PinnedVersionID string           `json:"pinnedVersionId"`
	Artifacts       []ArtifactStatus `json:"artifacts"`
	Satisfied       int              `json:"satisfied"`
	Missing         int              `json:"missing"`
	Mismatched      int              `json:"mismatched"`
	Unsupported     int              `json:"unsupported"`
	// Untracked lists live files, relative to the live root, that no artifact declares.
	Untracked []string `json:"untracked,omitempty"`
	// Staged counts staging entries waiting for promotion.
	Staged int `json:"staged"`
	// LastRun summarises the progress journal of the last install or repair, if any.
	LastRun *ProgressSummary `json:"lastRun,omitempty"`
}

// Complete reports whether every artifact is satisfied.
func (r *DiffReport) Complete() bool {
	return r.Missing == 0 && r.Mismatched == 0 && r.Unsupported == 0
}
