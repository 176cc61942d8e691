package ports

import "go.trai.ch/hearth/internal/core/domain"

// ConfigLoader loads the engine configuration of an instance.
//
//go:generate go run go.uber.org/mock/mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	Load(layout *domain.Layout) (domain.Config, error)
}

// DesiredStateLoader reads the desired-state descriptor supplied by the instance manager.
type DesiredStateLoader interface {
	Load(path string) (domain.DesiredState, error)
}
