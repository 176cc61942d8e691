// Package manifest reads the desired-state descriptor an instance manager places in pack/manifest.
package manifest

import (
	"bytes"
	"errors"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"
	"go.trai.ch/hearth/internal/core/domain"
	"go.trai.ch/hearth/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

var _ ports.DesiredStateLoader = (*Loader)(nil)

// Loader implements ports.DesiredStateLoader for YAML descriptors.
type Loader struct{}

// NewLoader creates a new descriptor loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and validates the descriptor at path. The file is never written.
func (l *Loader) Load(path string) (domain.DesiredState, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is derived from the instance layout
	if err != nil {
		msg := "desired-state descriptor cannot be read"
		if errors.Is(err, fs.ErrNotExist) {
			msg = "desired-state descriptor does not exist"
		}
		return domain.DesiredState{}, configError(msg, zerr.With(zerr.Wrap(err, domain.ErrManifestReadFailed.Error()), "path", path))
	}

	var desired domain.DesiredState
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&desired); err != nil {
		return domain.DesiredState{}, configError("desired-state descriptor is malformed",
			zerr.With(zerr.Wrap(err, domain.ErrManifestParseFailed.Error()), "path", path))
	}

	if err := validate.Struct(desired); err != nil {
		return domain.DesiredState{}, configError("desired-state descriptor is invalid",
			zerr.With(zerr.Wrap(err, domain.ErrManifestInvalid.Error()), "path", path))
	}
	return desired, nil
}

func configError(message string, cause error) error {
	return domain.NewError(domain.KindConfigError, message, cause).WithRemediation(domain.RemediationFixManifest)
}
