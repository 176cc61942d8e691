package instancelock

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/hearth/internal/core/ports"
)

const NodeID graft.ID = "adapter.instance_lock"

func init() {
	graft.Register(graft.Node[ports.InstanceLocker]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (ports.InstanceLocker, error) {
			return NewLocker(), nil
		},
	})
}
