// Package config loads the engine configuration of an instance.
package config

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"go.trai.ch/hearth/internal/core/domain"
	"go.trai.ch/hearth/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// validate is shared; validator caches struct metadata.
var validate = validator.New()

// remediation is attached to every configuration error.
const remediation = "fix " + domain.ConfigFileName + " or the HEARTH_* environment variables"

var _ ports.ConfigLoader = (*Loader)(nil)

// Loader implements ports.ConfigLoader.
// Values are layered: built-in defaults, then <root>/hearth.yaml, then HEARTH_* variables.
type Loader struct {
	log     ports.Logger
	environ map[string]string
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvironment replaces the process environment as the source of HEARTH_* overrides.
func WithEnvironment(environ map[string]string) Option {
	return func(l *Loader) {
		l.environ = environ
	}
}

// NewLoader creates a new configuration loader.
func NewLoader(log ports.Logger, opts ...Option) *Loader {
	l := &Loader{log: log}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the configuration of the instance at layout.
func (l *Loader) Load(layout *domain.Layout) (domain.Config, error) {
	cfg := domain.DefaultConfig()
	path := layout.ConfigPath()

	data, err := os.ReadFile(path) //nolint:gosec // Path is derived from the instance layout
	switch {
	case err == nil:
		if err := decodeYAML(data, &cfg); err != nil {
			return domain.Config{}, configError("config file is malformed",
				zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "path", path))
		}
		l.log.Debug("loaded configuration from " + path)
	case errors.Is(err, fs.ErrNotExist):
	default:
		return domain.Config{}, configError("config file cannot be read",
			zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", path))
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Environment: l.environ}); err != nil {
		return domain.Config{}, configError("environment overrides are malformed",
			zerr.Wrap(err, domain.ErrConfigParseFailed.Error()))
	}

	if err := Validate(cfg); err != nil {
		return domain.Config{}, err
	}
	return cfg, nil
}

// Validate checks a configuration assembled from any source, including flags.
func Validate(cfg domain.Config) error {
	if err := validate.Struct(cfg); err != nil {
		return configError("configuration is invalid", zerr.Wrap(err, domain.ErrConfigInvalid.Error()))
	}
	return nil
}

// decodeYAML decodes data into cfg, rejecting unknown keys. An empty document leaves cfg unchanged.
func decodeYAML(data []byte, cfg *domain.Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func configError(message string, cause error) error {
	return domain.NewError(domain.KindConfigError, message, cause).WithRemediation(remediation)
}
