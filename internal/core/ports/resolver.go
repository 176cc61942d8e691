package ports

import (
	"context"

	"go.trai.ch/hearth/internal/core/domain"
)

// UpstreamResolver returns the canonical artifact list of a pinned version.
// It is consulted only while generating a lockfile, never once a lockfile exists.
//
//go:generate go run go.uber.org/mock/mockgen -source=resolver.go -destination=mocks/mock_resolver.go -package=mocks
type UpstreamResolver interface {
	Resolve(ctx context.Context, pinnedVersionID string) ([]domain.Artifact, error)
}
