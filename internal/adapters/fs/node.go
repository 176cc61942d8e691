package fs

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/hearth/internal/core/ports"
)

// Node IDs of the filesystem adapters.
const (
	WalkerNodeID   graft.ID = "adapter.fs.walker"
	VerifierNodeID graft.ID = "adapter.fs.verifier"
)

func init() {
	graft.Register(graft.Node[ports.Walker]{
		ID:        WalkerNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Walker, error) {
			return NewWalker(), nil
		},
	})

	graft.Register(graft.Node[ports.Verifier]{
		ID:        VerifierNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Verifier, error) {
			return NewHasher(), nil
		},
	})
}
