// Package main implements relmapctl, the operator CLI for relationship maps.
// It loads a user's map through the same session layer as the API.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"relmap/application/session"
	"relmap/infrastructure/config"
	"relmap/infrastructure/di"

	"github.com/spf13/cobra"
)

// sessions opens the map of one owner
type sessions interface {
	Get(ctx context.Context, ownerID string) (*session.Session, error)
}

// opener builds the session source and its release function
type opener func(ctx context.Context) (sessions, func(), error)

type cli struct {
	open    opener
	owner   string
	timeout time.Duration
}

func containerOpener(ctx context.Context) (sessions, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize container: %w", err)
	}
	container.Start(ctx)

	release := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	}
	return container.Sessions, release, nil
}

func newRootCommand(open opener) *cobra.Command {
	c := &cli{open: open}

	root := &cobra.Command{
		Use:           "relmapctl",
		Short:         "Inspect and maintain relationship maps",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.owner, "owner", "", "user id owning the map")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", time.Minute, "time allowed for loading and syncing")

	root.AddCommand(
		c.exportCommand(),
		c.importCommand(),
		c.resetCommand(),
		c.statsCommand(),
		tokenCommand(),
		schemaCommand(),
	)
	return root
}

func main() {
	if err := newRootCommand(containerOpener).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
