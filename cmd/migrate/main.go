// Command migrate manages the ledger's database schema.
package main

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/migration"
	"github.com/erp/ledger/migrations"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	dir      string
	logLevel string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Apply and scaffold ledger schema migrations",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.dir, "path", "", "read migrations from this directory instead of the embedded set")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")

	root.AddCommand(
		withMigrator(opts, &cobra.Command{Use: "up", Short: "Apply all pending migrations", Args: cobra.NoArgs},
			func(m *migration.Migrator, _ *zap.Logger, _ []string) error { return m.Up() }),
		withMigrator(opts, &cobra.Command{Use: "down", Short: "Roll back every migration", Args: cobra.NoArgs},
			func(m *migration.Migrator, _ *zap.Logger, _ []string) error { return m.Down() }),
		withMigrator(opts, &cobra.Command{Use: "step <n>", Short: "Apply n migrations, negative rolls back", Args: cobra.ExactArgs(1)},
			func(m *migration.Migrator, _ *zap.Logger, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid step count %q", args[0])
				}
				return m.Steps(n)
			}),
		withMigrator(opts, &cobra.Command{Use: "version", Short: "Show the applied version", Args: cobra.NoArgs},
			func(m *migration.Migrator, log *zap.Logger, _ []string) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				if version == 0 {
					log.Info("No migrations applied")
					return nil
				}
				log.Info("Current schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
				return nil
			}),
		withMigrator(opts, &cobra.Command{Use: "force <version>", Short: "Mark a version as applied and clean", Args: cobra.ExactArgs(1)},
			func(m *migration.Migrator, _ *zap.Logger, args []string) error {
				version, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				return m.Force(version)
			}),
		newCreateCommand(opts),
		newListCommand(opts),
	)
	return root
}

func newCreateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Scaffold the next up/down migration pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(opts)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			dir := opts.dir
			if dir == "" {
				dir = "migrations"
			}
			pair, err := migration.Create(dir, args[0], time.Now())
			if err != nil {
				return err
			}
			log.Info("Migration created",
				zap.Uint("version", pair.Version),
				zap.String("up", pair.UpPath),
				zap.String("down", pair.DownPath),
			)
			return nil
		},
	}
}

func newListCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var source fs.FS = migrations.FS
			if opts.dir != "" {
				source = os.DirFS(opts.dir)
			}
			list, err := migration.List(source)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range list {
				down := ""
				if !m.HasDown {
					down = "  (no down)"
				}
				fmt.Fprintf(out, "%06d  %s%s\n", m.Version, m.Name, down)
			}
			return nil
		},
	}
}

// withMigrator wires a command that needs a database connection
func withMigrator(opts *options, cmd *cobra.Command, run func(*migration.Migrator, *zap.Logger, []string) error) *cobra.Command {
	cmd.RunE = func(_ *cobra.Command, args []string) error {
		log, err := newLogger(opts)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		db, err := sql.Open("postgres", cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}

		var m *migration.Migrator
		if opts.dir != "" {
			m, err = migration.NewFromDir(db, opts.dir, log)
		} else {
			m, err = migration.New(db, migrations.FS, log)
		}
		if err != nil {
			return err
		}
		defer func() {
			if cerr := m.Close(); cerr != nil {
				log.Warn("Closing migrator", zap.Error(cerr))
			}
		}()

		log.Debug("Running migration command", zap.String("command", cmd.Name()))
		return run(m, log, args)
	}
	return cmd
}

func newLogger(opts *options) (*zap.Logger, error) {
	return logger.New(config.LogConfig{Level: opts.logLevel, Format: "console", Output: "stderr"})
}
