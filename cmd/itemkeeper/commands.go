package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/itemkeeper/internal/auth"
	"github.com/nerrad567/itemkeeper/internal/infrastructure/config"
	"github.com/nerrad567/itemkeeper/internal/infrastructure/database"
	"github.com/nerrad567/itemkeeper/migrations"
)

// defaultConfigPath is read when present and no path was given explicitly.
const defaultConfigPath = "configs/config.yaml"

// configEnvVar names the config file when --config is not set.
const configEnvVar = "ITEMKEEPER_CONFIG"

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "itemkeeper",
		Short:         "Owner-scoped item API with bearer token authentication",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), resolveConfigPath(configPath))
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default $"+configEnvVar+" or "+defaultConfigPath+" when present)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API (default)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), resolveConfigPath(configPath))
			},
		},
		newMigrateCmd(&configPath),
		newHashPasswordCmd(),
	)
	return root
}

// resolveConfigPath picks the config file: flag, then environment, then the
// default path if it exists. An empty result means defaults plus environment.
func resolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	if config.Exists(defaultConfigPath) {
		return defaultConfigPath
	}
	return ""
}

func newMigrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply, roll back or list database migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}

			cfg, err := config.Load(resolveConfigPath(*configPath))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			ctx := cmd.Context()
			db, err := database.Open(ctx, database.Config{
				Path:        cfg.Database.Path,
				WALMode:     cfg.Database.WALMode,
				BusyTimeout: cfg.Database.BusyTimeout,
			})
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close() //nolint:errcheck // CLI exit

			out := cmd.OutOrStdout()
			switch direction {
			case "up":
				if err := db.Migrate(ctx, migrations.FS); err != nil {
					return fmt.Errorf("running migrations: %w", err)
				}
				fmt.Fprintln(out, "migrations applied")
			case "down":
				if err := db.MigrateDown(ctx, migrations.FS); err != nil {
					return fmt.Errorf("rolling back migration: %w", err)
				}
				fmt.Fprintln(out, "last migration rolled back")
			case "status":
				applied, pending, err := db.MigrationStatus(ctx, migrations.FS)
				if err != nil {
					return fmt.Errorf("reading migration status: %w", err)
				}
				for _, m := range applied {
					fmt.Fprintf(out, "applied  %s  %s\n", m.Version, m.AppliedAt.Format("2006-01-02 15:04:05"))
				}
				for _, m := range pending {
					fmt.Fprintf(out, "pending  %s  %s\n", m.Version, m.Name)
				}
			}
			return nil
		},
	}
	return cmd
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print an Argon2id hash for security.seed_users[].password_hash",
		Long: `Hash a password for use as a pre-hashed seed user.

The password is taken from the argument or, when omitted, from the first
line of standard input so it stays out of shell history.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := passwordFrom(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return fmt.Errorf("hashing password: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func passwordFrom(args []string, in io.Reader) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password is empty")
	}
	return password, nil
}
