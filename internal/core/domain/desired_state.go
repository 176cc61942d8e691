package domain

import "time"

// DesiredState is the immutable descriptor naming which pack and pinned version to install.
// It is supplied by the instance manager and is read-only to the engine.
type DesiredState struct {
	PackID          string    `yaml:"packId"          json:"packId"          validate:"required"`
	PackVersion     string    `yaml:"packVersion"     json:"packVersion"     validate:"required"`
	PinnedVersionID string    `yaml:"pinnedVersionId" json:"pinnedVersionId" validate:"required,excludesall=/\\?#"`
	GeneratedAt     time.Time `yaml:"generatedAt"     json:"generatedAt"     validate:"required"`
}

// Matches reports whether a lockfile was generated for this descriptor.
func (d DesiredState) Matches(l *Lockfile) bool {
	return l != nil &&
		l.PackID == d.PackID &&
		l.PackVersion == d.PackVersion &&
		l.PinnedVersionID == d.PinnedVersionID
}
