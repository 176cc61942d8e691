package recovery

import (
	"context"
	"sync/atomic"

	"go.trai.ch/hearth/internal/core/domain"
	"go.trai.ch/hearth/internal/core/ports"
	"go.trai.ch/zerr"
)

// guardedResolver wraps the upstream resolver for one attempt. Once sealed, the lockfile is the
// authority and every further call is refused and counted.
type guardedResolver struct {
	inner  ports.UpstreamResolver
	sealed atomic.Bool
	after  atomic.Int64
}

func guard(inner ports.UpstreamResolver) *guardedResolver {
	return &guardedResolver{inner: inner}
}

// Resolve forwards to the wrapped resolver until the guard is sealed.
func (g *guardedResolver) Resolve(ctx context.Context, pinnedVersionID string) ([]domain.Artifact, error) {
	if g.sealed.Load() {
		g.after.Add(1)
		return nil, zerr.With(domain.ErrRemoteConsulted, "pinned_version_id", pinnedVersionID)
	}
	if g.inner == nil {
		return nil, zerr.With(domain.ErrUpstreamRequestFailed, "reason", "no upstream resolver configured")
	}
	return g.inner.Resolve(ctx, pinnedVersionID)
}

func (g *guardedResolver) seal() {
	g.sealed.Store(true)
}

// consulted is the number of resolver calls attempted since the lockfile became authoritative.
func (g *guardedResolver) consulted() int {
	if g == nil {
		return 0
	}
	return int(g.after.Load())
}
