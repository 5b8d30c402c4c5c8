package app

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/erp/catalogsync/internal/infrastructure/migration"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// migrateOptions are the flags shared by the migrate subcommands.
type migrateOptions struct {
	*globalOptions
	yes   bool
	steps uint
}

func newMigrateCmd(opts *globalOptions) *cobra.Command {
	mopts := &migrateOptions{globalOptions: opts}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tool",
		Long:  `Database migration tool for the staging schema. Use with 'up', 'down', 'version', 'force' or 'list'.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}
	cmd.PersistentFlags().BoolVarP(&mopts.yes, "yes", "y", false, "Answer yes to all questions")
	cmd.PersistentFlags().UintVarP(&mopts.steps, "num-steps", "n", 0, "Number of steps to migrate (0 = all)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return mopts.withMigrator(cmd, func(m *migration.Migrator) error {
				if mopts.steps > 0 {
					return m.Steps(int(mopts.steps))
				}
				return m.Up()
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := "all migrations"
			if mopts.steps > 0 {
				target = fmt.Sprintf("%d migration(s)", mopts.steps)
			}
			ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), mopts.yes, "About to roll back "+target+".")
			if err != nil || !ok {
				return err
			}
			return mopts.withMigrator(cmd, func(m *migration.Migrator) error {
				if mopts.steps > 0 {
					return m.Steps(-int(mopts.steps))
				}
				return m.Down()
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied migration version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return mopts.withMigrator(cmd, func(m *migration.Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
				return err
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the migration version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return mopts.withMigrator(cmd, func(m *migration.Migrator) error {
				return m.Force(version)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the embedded migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := migration.ListMigrations()
			if err != nil {
				return err
			}
			for _, name := range names {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	})
	return cmd
}

// withMigrator opens the configured database, runs fn and closes everything.
func (o *migrateOptions) withMigrator(cmd *cobra.Command, fn func(m *migration.Migrator) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := migration.OpenSQL(cfg.Database.DSN())
	if err != nil {
		return err
	}
	m, err := migration.New(db, log)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			log.Error("Error closing migrator", zap.Error(cerr))
		}
	}()

	log.Info("Migrating database",
		zap.String("command", cmd.Name()),
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.DBName),
	)
	return fn(m)
}

// confirm asks for a yes/no answer unless yes is already set.
func confirm(in io.Reader, out io.Writer, yes bool, prompt string) (bool, error) {
	if yes {
		return true, nil
	}
	if _, err := fmt.Fprintf(out, "%s Continue? (yes/no): ", prompt); err != nil {
		return false, err
	}
	response, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read user input: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(response)) {
	case "yes", "y":
		return true, nil
	default:
		_, err := fmt.Fprintln(out, "Migration cancelled")
		return false, err
	}
}
