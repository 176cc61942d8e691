package domain

import (
	"runtime"
	"time"
)

// Config tunes the engine. It is loaded from defaults, hearth.yaml, HEARTH_* variables and flags, in that order.
type Config struct {
	// Workers bounds concurrent downloads.
	Workers int `yaml:"workers" env:"HEARTH_WORKERS" validate:"gte=1,lte=64"`
	// VerifyWorkers bounds concurrent hashing and promotion.
	VerifyWorkers int `yaml:"verifyWorkers" env:"HEARTH_VERIFY_WORKERS" validate:"gte=1,lte=64"`
	// IntegrityRetries is how many times a download failing verification is retried.
	IntegrityRetries int `yaml:"integrityRetries" env:"HEARTH_INTEGRITY_RETRIES" validate:"gte=0,lte=10"`
	// NetworkRetries is the number of attempts for one request on transient failures.
	NetworkRetries int `yaml:"networkRetries" env:"HEARTH_NETWORK_RETRIES" validate:"gte=1,lte=20"`
	// RequestTimeout bounds each network request.
	RequestTimeout time.Duration `yaml:"requestTimeout" env:"HEARTH_REQUEST_TIMEOUT" validate:"gt=0"`
	// BackoffInitial is the first retry delay.
	BackoffInitial time.Duration `yaml:"backoffInitial" env:"HEARTH_BACKOFF_INITIAL" validate:"gt=0"`
	// BackoffMax caps the retry delay.
	BackoffMax time.Duration `yaml:"backoffMax" env:"HEARTH_BACKOFF_MAX" validate:"gtefield=BackoffInitial"`
	// Snapshots enables recording a snapshot after a fully satisfied install.
	Snapshots bool `yaml:"snapshots" env:"HEARTH_SNAPSHOTS"`
	// SnapshotRetain is how many snapshots to keep.
	SnapshotRetain int `yaml:"snapshotRetain" env:"HEARTH_SNAPSHOT_RETAIN" validate:"gte=1"`
	// AutoRollback restores the latest snapshot when an install fails past its retry budget.
	AutoRollback bool `yaml:"autoRollback" env:"HEARTH_AUTO_ROLLBACK"`
	// ManifestURL is the upstream version manifest consulted during lockfile generation.
	ManifestURL string `yaml:"manifestUrl" env:"HEARTH_MANIFEST_URL" validate:"required,url"`
	// ResourcesURL is the base URL of content-addressed data objects.
	ResourcesURL string `yaml:"resourcesUrl" env:"HEARTH_RESOURCES_URL" validate:"required,url"`
	// Platform selects platform-specific components (linux, osx, windows).
	Platform string `yaml:"platform" env:"HEARTH_PLATFORM" validate:"oneof=linux osx windows"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Workers:          8,
		VerifyWorkers:    max(2, runtime.NumCPU()),
		IntegrityRetries: 3,
		NetworkRetries:   5,
		RequestTimeout:   60 * time.Second,
		BackoffInitial:   250 * time.Millisecond,
		BackoffMax:       10 * time.Second,
		Snapshots:        true,
		SnapshotRetain:   2,
		AutoRollback:     true,
		ManifestURL:      "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json",
		ResourcesURL:     "https://resources.download.minecraft.net",
		Platform:         CurrentPlatform(),
	}
}

// CurrentPlatform maps GOOS to the platform names used by upstream library rules.
func CurrentPlatform() string {
	switch runtime.GOOS {
	case "darwin":
		return "osx"
	case "windows":
		return "windows"
	default:
		return "linux"
	}
}
