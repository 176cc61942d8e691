// Package main is the entry point for hearth.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/grindlemire/graft"
	"go.trai.ch/hearth/cmd/hearth/commands"
	"go.trai.ch/hearth/internal/app"
	"go.trai.ch/hearth/internal/core/domain"
	_ "go.trai.ch/hearth/internal/wiring"
)

// ComponentProvider is a function that returns the application components.
type ComponentProvider func(context.Context) (*app.Components, func(), error)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, func(ctx context.Context) (*app.Components, func(), error) {
		c, _, err := graft.ExecuteFor[*app.Components](ctx)
		if err != nil {
			return nil, func() {}, err
		}
		return c, func() { _ = c.Progress.Close() }, nil
	}))
}

// Exit codes, one per error kind so instance managers can branch without parsing output.
const (
	exitOK = iota
	exitFailure
	exitConfig
	exitUnsupportedKind
	exitIntegrity
	exitPromotion
	exitNoRecovery
	exitLocked
	exitTransient
)

func run(
	ctx context.Context,
	args []string,
	stdout, stderr io.Writer,
	provider ComponentProvider,
	opts ...func(*app.App),
) int {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	components, cleanup, err := provider(ctx)
	if err != nil {
		// Logger is not available yet if initialization failed
		_, _ = fmt.Fprintln(stderr, "Error: "+err.Error())
		return exitFailure
	}
	defer cleanup()
	components.Console.SetOutput(stderr)

	for _, opt := range opts {
		opt(components.App)
	}

	cli := commands.New(components.App, components.Console)
	cli.SetArgs(args)
	cli.SetOutput(stdout, stderr)

	if err := cli.Execute(ctx); err != nil {
		components.Console.Error(err)
		kind, classified := domain.KindOf(err)
		if classified && !cli.JSON() {
			_, _ = fmt.Fprintln(stderr, "kind="+string(kind))
		}
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	if errors.Is(err, context.Canceled) {
		return exitFailure
	}
	kind, ok := domain.KindOf(err)
	if !ok {
		return exitFailure
	}
	switch kind {
	case domain.KindConfigError:
		return exitConfig
	case domain.KindUnsupportedArtifactKind:
		return exitUnsupportedKind
	case domain.KindDownloadIntegrityFailure:
		return exitIntegrity
	case domain.KindPromotionFailure:
		return exitPromotion
	case domain.KindNoRecoveryPathAvailable:
		return exitNoRecovery
	case domain.KindInstanceLocked:
		return exitLocked
	case domain.KindTransient:
		return exitTransient
	default:
		return exitFailure
	}
}
