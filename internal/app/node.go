package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/hearth/internal/adapters/config"             //nolint:depguard // Wired in app layer
	"go.trai.ch/hearth/internal/adapters/fs"                 //nolint:depguard // Wired in app layer
	"go.trai.ch/hearth/internal/adapters/instancelock"       //nolint:depguard // Wired in app layer
	"go.trai.ch/hearth/internal/adapters/logger"             //nolint:depguard // Wired in app layer
	"go.trai.ch/hearth/internal/adapters/manifest"           //nolint:depguard // Wired in app layer
	"go.trai.ch/hearth/internal/adapters/telemetry"          //nolint:depguard // Wired in app layer
	"go.trai.ch/hearth/internal/adapters/telemetry/progrock" //nolint:depguard // Wired in app layer
	"go.trai.ch/hearth/internal/core/ports"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			logger.NodeID,
			config.NodeID,
			manifest.NodeID,
			fs.VerifierNodeID,
			fs.WalkerNodeID,
			instancelock.NodeID,
			telemetry.TracerNodeID,
			progrock.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.ConsoleNodeID,
			progrock.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			app, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}
			console, err := graft.Dep[*logger.Logger](ctx)
			if err != nil {
				return nil, err
			}
			progress, err := graft.Dep[ports.Progress](ctx)
			if err != nil {
				return nil, err
			}
			return NewComponents(app, console, progress), nil
		},
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}
	configs, err := graft.Dep[ports.ConfigLoader](ctx)
	if err != nil {
		return nil, err
	}
	manifests, err := graft.Dep[ports.DesiredStateLoader](ctx)
	if err != nil {
		return nil, err
	}
	verifier, err := graft.Dep[ports.Verifier](ctx)
	if err != nil {
		return nil, err
	}
	walker, err := graft.Dep[ports.Walker](ctx)
	if err != nil {
		return nil, err
	}
	locker, err := graft.Dep[ports.InstanceLocker](ctx)
	if err != nil {
		return nil, err
	}
	tracer, err := graft.Dep[ports.Tracer](ctx)
	if err != nil {
		return nil, err
	}
	progress, err := graft.Dep[ports.Progress](ctx)
	if err != nil {
		return nil, err
	}
	return New(log, configs, manifests, verifier, walker, locker, tracer, progress), nil
}
