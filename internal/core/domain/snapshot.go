package domain

import "time"

// SnapshotEntry records one verified-good live file.
type SnapshotEntry struct {
	RelativePath string   `json:"relativePath"`
	Checksum     Checksum `json:"checksum"`
	Size         int64    `json:"size"`
}

// Snapshot is a last-known-good artifact set sufficient to restore the live tree after a failed repair.
type Snapshot struct {
	ID          string          `json:"id"`
	CreatedAt   time.Time       `json:"createdAt"`
	PackID      string          `json:"packId,omitempty"`
	PackVersion string          `json:"packVersion,omitempty"`
	Artifacts   []SnapshotEntry `json:"artifacts"`
}

// SameContent reports whether two snapshots record identical files.
func (s *Snapshot) SameContent(other *Snapshot) bool {
	if other == nil || len(s.Artifacts) != len(other.Artifacts) {
		return false
	}
	for i := range s.Artifacts {
		a, b := s.Artifacts[i], other.Artifacts[i]
		if a.RelativePath != b.RelativePath || a.Size != b.Size || !a.Checksum.Equal(b.Checksum) {
			return false
		}
	}
	return true
}

// QuarantineRecord describes why live bytes were moved aside.
type QuarantineRecord struct {
	Artifact      string       `json:"artifact"`
	Kind          ArtifactKind `json:"kind"`
	RelativePath  string       `json:"relativePath"`
	Expected      Checksum     `json:"expected"`
	Observed      string       `json:"observed"`
	Reason        string       `json:"reason"`
	QuarantinedAt time.Time    `json:"quarantinedAt"`
}

// QuarantineEntry is a stored quarantine record and the location of its preserved bytes.
type QuarantineEntry struct {
	ID          string           `json:"id"`
	Record      QuarantineRecord `json:"record"`
	PayloadPath string           `json:"payloadPath"`
}
