package logger

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/hearth/internal/core/ports"
)

const (
	// ConsoleNodeID is the unique identifier for the concrete logger, which the CLI reconfigures.
	ConsoleNodeID graft.ID = "adapter.logger.console"
	// NodeID is the unique identifier for the logger Graft node.
	NodeID graft.ID = "adapter.logger"
)

func init() {
	graft.Register(graft.Node[*Logger]{
		ID:        ConsoleNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Logger, error) {
			return New(), nil
		},
	})

	graft.Register(graft.Node[ports.Logger]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{ConsoleNodeID},
		Run: func(ctx context.Context) (ports.Logger, error) {
			return graft.Dep[*Logger](ctx)
		},
	})
}
