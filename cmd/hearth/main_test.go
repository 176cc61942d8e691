package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/grindlemire/graft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/hearth/internal/app"
	"go.trai.ch/hearth/internal/core/domain"
	"go.trai.ch/hearth/internal/engine/enginetest"
)

func graftProvider(ctx context.Context) (*app.Components, func(), error) {
	c, _, err := graft.ExecuteFor[*app.Components](ctx)
	return c, func() {}, err
}

func TestRun(t *testing.T) {
	artifacts := []domain.Artifact{
		enginetest.Artifact("client", domain.KindPrimaryPackage, "versions/1.21/1.21.jar", "client-bytes"),
	}
	fetcher := enginetest.NewFetcher(enginetest.Serve(artifacts, map[string]string{"client": "client-bytes"}))
	resolver := &enginetest.Resolver{Artifacts: artifacts}
	offline := func(a *app.App) {
		a.WithFetcher(fetcher).WithResolver(resolver)
	}

	tests := []struct {
		name         string
		args         func(root string) []string
		manifest     bool
		expectedExit int
		stderr       string
	}{
		{
			name:         "install succeeds",
			args:         func(root string) []string { return []string{"--instance", root, "install"} },
			manifest:     true,
			expectedExit: exitOK,
		},
		{
			name:         "status without lockfile is a config error",
			args:         func(root string) []string { return []string{"--instance", root, "status"} },
			manifest:     true,
			expectedExit: exitConfig,
			stderr:       "kind=ConfigError",
		},
		{
			name:         "install without descriptor is a config error",
			args:         func(root string) []string { return []string{"-C", root, "install"} },
			expectedExit: exitConfig,
			stderr:       "Remediation:",
		},
		{
			name:         "unknown command",
			args:         func(string) []string { return []string{"nope"} },
			expectedExit: exitFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := enginetest.Session(t, nil)
			if tt.manifest {
				enginetest.WriteManifest(t, s)
			}
			var stdout, stderr bytes.Buffer

			code := run(context.Background(), tt.args(s.Layout.Root()), &stdout, &stderr, graftProvider, offline)

			assert.Equal(t, tt.expectedExit, code, stderr.String())
			if tt.stderr != "" {
				assert.Contains(t, stderr.String(), tt.stderr)
			}
		})
	}
}

func TestRun_JSONInstall(t *testing.T) {
	artifacts := []domain.Artifact{
		enginetest.Artifact("client", domain.KindPrimaryPackage, "versions/1.21/1.21.jar", "client-bytes"),
	}
	s := enginetest.Session(t, nil)
	enginetest.WriteManifest(t, s)
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"--json", "--instance", s.Layout.Root(), "install"}, &stdout, &stderr,
		graftProvider, func(a *app.App) {
			a.WithFetcher(enginetest.NewFetcher(enginetest.Serve(artifacts, map[string]string{"client": "client-bytes"}))).
				WithResolver(&enginetest.Resolver{Artifacts: artifacts})
		})

	require.Equal(t, exitOK, code, stderr.String())
	var result domain.InstallResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
	assert.Equal(t, 1, result.SatisfiedCount)
	assert.True(t, result.LockfileGenerated)
}

func TestRun_ProviderFailure(t *testing.T) {
	var stdout, stderr bytes.Buffer
	failing := func(context.Context) (*app.Components, func(), error) {
		return nil, nil, errors.New("graph broken")
	}

	code := run(context.Background(), []string{"status"}, &stdout, &stderr, failing)

	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr.String(), "Error: graph broken")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitFailure, exitCode(errors.New("plain")))
	assert.Equal(t, exitLocked, exitCode(domain.NewError(domain.KindInstanceLocked, "busy", nil)))
	assert.Equal(t, exitNoRecovery, exitCode(domain.NewError(domain.KindNoRecoveryPathAvailable, "none", nil)))
	assert.Equal(t, exitTransient, exitCode(domain.NewError(domain.KindTransient, "flaky", nil)))
}
