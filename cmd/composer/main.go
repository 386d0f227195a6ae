// Package main provides the composer command line tool. It drives executions
// against the configured store without the HTTP server and runs database
// migrations.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:                  "composer",
		Usage:                 "Compose blog posts from a source page with human review gates",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a config file (defaults to the standard search paths)",
				Sources: cli.EnvVars("COMPOSER_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Override the execution store driver (memory, postgres, badger, redis)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("COMPOSER_LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			startCommand(),
			resumeCommand(),
			statusCommand(),
			pendingCommand(),
			migrateCommand(),
		},
	}
}
