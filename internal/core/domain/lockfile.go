package domain

import (
	"strings"
	"time"

	"go.trai.ch/zerr"
)

// LockfileSchemaVersion is the lockfile format this engine reads and writes.
const LockfileSchemaVersion = 1

// Lockfile is the generated, checksum-pinned artifact manifest.
// Once written it is the sole authority for what the live tree must contain.
type Lockfile struct {
	SchemaVersion   int        `json:"schemaVersion"`
	PackID          string     `json:"packId"`
	PackVersion     string     `json:"packVersion"`
	PinnedVersionID string     `json:"pinnedVersionId"`
	GeneratedAt     time.Time  `json:"generatedAt"`
	Artifacts       []Artifact `json:"artifacts"`
}

// Find returns the artifact with the given name, trying every kind.
// Names are unique per kind, so the first match in lockfile order wins.
func (l *Lockfile) Find(name string) (Artifact, bool) {
	for i := range l.Artifacts {
		if l.Artifacts[i].Name == name {
			return l.Artifacts[i], true
		}
	}
	return Artifact{}, false
}

// Validate checks the structural invariants of the lockfile.
// Artifacts of kinds this engine cannot interpret are only checked for identity;
// the planner rejects them by name.
func (l *Lockfile) Validate() error {
	if l.SchemaVersion != LockfileSchemaVersion {
		return zerr.With(zerr.With(ErrLockfileInvalid, "reason", "unsupported schema version"),
			"schema_version", l.SchemaVersion)
	}
	required := [...]struct{ field, value string }{
		{"packId", l.PackID},
		{"packVersion", l.PackVersion},
		{"pinnedVersionId", l.PinnedVersionID},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return zerr.With(zerr.With(ErrLockfileInvalid, "reason", "missing field"), "field", r.field)
		}
	}
	if l.GeneratedAt.IsZero() {
		return zerr.With(zerr.With(ErrLockfileInvalid, "reason", "missing field"), "field", "generatedAt")
	}

	seen := make(map[ArtifactKey]struct{}, len(l.Artifacts))
	paths := make(map[string]Checksum, len(l.Artifacts))
	for i := range l.Artifacts {
		a := &l.Artifacts[i]
		if err := a.validate(); err != nil {
			return zerr.With(err, "artifact", a.Name)
		}
		if _, dup := seen[a.Key()]; dup {
			err := zerr.With(ErrLockfileInvalid, "reason", "duplicate artifact")
			return zerr.With(err, "artifact", a.Key().String())
		}
		seen[a.Key()] = struct{}{}

		if !a.Kind.Supported() {
			continue
		}
		if prev, ok := paths[a.RelativePath]; ok && !prev.Equal(a.Checksum) {
			err := zerr.With(ErrLockfileInvalid, "reason", "conflicting checksums for one path")
			return zerr.With(err, "relative_path", a.RelativePath)
		}
		paths[a.RelativePath] = a.Checksum
	}
	return nil
}

func (a *Artifact) validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return zerr.With(ErrLockfileInvalid, "reason", "artifact without name")
	}
	if a.Kind == "" {
		return zerr.With(ErrLockfileInvalid, "reason", "artifact without kind")
	}
	if !a.Kind.Supported() {
		return nil
	}
	if strings.TrimSpace(a.SourceURL) == "" {
		return zerr.With(ErrLockfileInvalid, "reason", "artifact without source url")
	}
	if !ValidRelativePath(a.RelativePath) {
		err := zerr.With(ErrPathEscapesRoot, "reason", "relative path leaves the install root")
		return zerr.With(err, "relative_path", a.RelativePath)
	}
	if a.Size != nil && *a.Size < 0 {
		return zerr.With(ErrLockfileInvalid, "reason", "negative size")
	}
	if err := a.Checksum.Validate(); err != nil {
		return zerr.Wrap(err, ErrLockfileInvalid.Error())
	}
	return nil
}
