package main

import (
	"fmt"
	"io"
	"os"

	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/di"
	"github.com/aristath/folio/pkg/logger"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
)

// commands lists every folioctl subcommand.
var commands = []subcommands.Command{
	&migrateCmd{},
	&createAdminCmd{},
	&resetPasswordCmd{},
	&backupCmd{},
	&snapshotCmd{},
}

// stdout and stderr are swapped in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// loadConfig is replaced in tests.
var loadConfig = config.LoadForTooling

func newLogger(cfg *config.Config) zerolog.Logger {
	return logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true, Output: stderr})
}

// withContainer loads configuration, wires the application, and runs fn.
// The scheduler is never started.
func withContainer(fn func(*di.Container, *config.Config) error) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}

	container, _, err := di.Wire(cfg, newLogger(cfg))
	if err != nil {
		fmt.Fprintf(stderr, "Error opening data directory: %v\n", err)
		return subcommands.ExitFailure
	}
	defer container.Close()

	if err := fn(container, cfg); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
