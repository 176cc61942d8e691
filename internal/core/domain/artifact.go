package domain

import (
	"cmp"
	"slices"
)

// ArtifactKind classifies an artifact declared in a lockfile.
type ArtifactKind string

const (
	// KindVersionDescriptor is the pinned version's metadata document.
	KindVersionDescriptor ArtifactKind = "versionDescriptor"
	// KindPrimaryPackage is the main game package (client jar).
	KindPrimaryPackage ArtifactKind = "primaryPackage"
	// KindIndexFile is a content index listing data objects.
	KindIndexFile ArtifactKind = "indexFile"
	// KindDataObject is a single content-addressed data object referenced by an index file.
	KindDataObject ArtifactKind = "dataObject"
	// KindDependency is a library the primary package depends on.
	KindDependency ArtifactKind = "dependency"
	// KindPlatformSpecificComponent is a dependency built for one platform (natives).
	KindPlatformSpecificComponent ArtifactKind = "platformSpecificComponent"
	// KindManagedRuntime is known to the schema but has no pinned source yet.
	// This engine never interprets it.
	KindManagedRuntime ArtifactKind = "managedRuntime"
)

// supportedKinds lists the kinds this engine version can install.
var supportedKinds = map[ArtifactKind]struct{}{
	KindVersionDescriptor:         {},
	KindPrimaryPackage:            {},
	KindIndexFile:                 {},
	KindDataObject:                {},
	KindDependency:                {},
	KindPlatformSpecificComponent: {},
}

// Supported reports whether this engine version knows how to install the kind.
func (k ArtifactKind) Supported() bool {
	_, ok := supportedKinds[k]
	return ok
}

// String returns the kind as written in the lockfile.
func (k ArtifactKind) String() string {
	return string(k)
}

// Artifact is one declared, individually checksum-verified file to be installed.
type Artifact struct {
	Name         string       `json:"name"`
	Kind         ArtifactKind `json:"kind"`
	SourceURL    string       `json:"sourceUrl"`
	RelativePath string       `json:"relativePath"`
	Checksum     Checksum     `json:"checksum"`
	Size         *int64       `json:"size,omitempty"`
}

// ArtifactKey uniquely identifies an artifact inside a lockfile.
type ArtifactKey struct {
	Kind ArtifactKind
	Name string
}

// String renders the key as kind/name.
func (k ArtifactKey) String() string {
	return string(k.Kind) + "/" + k.Name
}

// Key returns the (kind, name) identity of the artifact.
func (a *Artifact) Key() ArtifactKey {
	return ArtifactKey{Kind: a.Kind, Name: a.Name}
}

// HasSize reports whether a size was declared.
func (a *Artifact) HasSize() bool {
	return a.Size != nil
}

// SortArtifacts orders artifacts by kind, then name, then relative path.
// Lockfiles are always persisted in this order.
func SortArtifacts(artifacts []Artifact) {
	slices.SortStableFunc(artifacts, func(a, b Artifact) int {
		return cmp.Or(
			cmp.Compare(a.Kind, b.Kind),
			cmp.Compare(a.Name, b.Name),
			cmp.Compare(a.RelativePath, b.RelativePath),
		)
	})
}

// Int64 returns a pointer to v. It is used for optional artifact sizes.
func Int64(v int64) *int64 {
	return &v
}
