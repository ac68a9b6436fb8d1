package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/di"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/users"
	"github.com/google/subcommands"
)

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "create or update the database schemas" }
func (*migrateCmd) Usage() string {
	return `migrate

  Opens the databases in FOLIO_DATA_DIR and applies the embedded schemas.
  Safe to run repeatedly.
`
}

func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}

	container, err := di.InitializeDatabases(cfg, newLogger(cfg))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer container.Close()

	for _, db := range container.Databases() {
		fmt.Fprintf(stdout, "%s: %s\n", db.Name(), db.Path())
	}
	return subcommands.ExitSuccess
}

type createAdminCmd struct {
	email    string
	username string
	password string
}

func (*createAdminCmd) Name() string     { return "create-admin" }
func (*createAdminCmd) Synopsis() string { return "create an administrator account" }
func (*createAdminCmd) Usage() string {
	return `create-admin -email <email> -username <name> -password <password>

  Creates an active administrator. Fails if the email or username is taken.
`
}

func (c *createAdminCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "Administrator email (required)")
	f.StringVar(&c.username, "username", "", "Administrator username (required)")
	f.StringVar(&c.password, "password", "", "Administrator password (required)")
}

func (c *createAdminCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.email == "" || c.username == "" || c.password == "" {
		fmt.Fprintln(stderr, "Error: -email, -username and -password are required.")
		return subcommands.ExitUsageError
	}

	return withContainer(func(container *di.Container, _ *config.Config) error {
		u, err := container.UserService.CreateUser("", users.CreateUserInput{
			Email:    c.email,
			Username: c.username,
			Password: c.password,
			Role:     domain.RoleAdmin,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Created administrator %s (%s)\n", u.Username, u.ID)
		return nil
	})
}

type resetPasswordCmd struct {
	email    string
	password string
}

func (*resetPasswordCmd) Name() string     { return "reset-password" }
func (*resetPasswordCmd) Synopsis() string { return "set a new password for an account" }
func (*resetPasswordCmd) Usage() string {
	return `reset-password -email <email> -password <password>
`
}

func (c *resetPasswordCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "Account email (required)")
	f.StringVar(&c.password, "password", "", "New password (required)")
}

func (c *resetPasswordCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.email == "" || c.password == "" {
		fmt.Fprintln(stderr, "Error: -email and -password are required.")
		return subcommands.ExitUsageError
	}

	return withContainer(func(container *di.Container, _ *config.Config) error {
		u, err := container.UserRepo.GetByEmail(c.email)
		if err != nil {
			return fmt.Errorf("no account with email %s: %w", c.email, err)
		}
		if err := container.UserService.ResetPassword("", u.ID, c.password); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Password updated for %s\n", u.Email)
		return nil
	})
}

type backupCmd struct{}

func (*backupCmd) Name() string     { return "backup" }
func (*backupCmd) Synopsis() string { return "create a backup archive now" }
func (*backupCmd) Usage() string {
	return `backup

  Writes a backup archive to FOLIO_DATA_DIR/backups and uploads it when
  FOLIO_BACKUP_S3_BUCKET is set. Old archives beyond retention are removed.
`
}

func (*backupCmd) SetFlags(*flag.FlagSet) {}

func (*backupCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withContainer(func(container *di.Container, _ *config.Config) error {
		info, err := container.BackupService.Create(ctx)
		if err != nil {
			return err
		}
		where := "local only"
		if info.Uploaded {
			where = "uploaded"
		}
		fmt.Fprintf(stdout, "%s (%d bytes, %s)\n", info.Filename, info.SizeBytes, where)
		return nil
	})
}

type snapshotCmd struct{}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "record today's portfolio snapshots" }
func (*snapshotCmd) Usage() string {
	return `snapshot

  Records today's value for every non-archived portfolio, replacing any
  snapshot already taken today.
`
}

func (*snapshotCmd) SetFlags(*flag.FlagSet) {}

func (*snapshotCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withContainer(func(container *di.Container, _ *config.Config) error {
		result, err := container.SnapshotService.RecordAll()
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Recorded %d snapshots for %s (total value %.2f)\n",
			result.Portfolios, result.Date, result.TotalValue)
		return nil
	})
}
