package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/migration"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// defaultMigrationsDir is where new migration files are written
var defaultMigrationsDir = filepath.Join("internal", "infrastructure", "migration", migration.SourceDir)

// MigrationStatus is the printed schema version
type MigrationStatus struct {
	Version   uint                  `json:"version"`
	Dirty     bool                  `json:"dirty"`
	Available []migration.Migration `json:"available"`
}

func newMigrateCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres schema",
		Long: `Manage the postgres schema with the migrations embedded in the binary.
Ledger commands migrate up on their own; sqlite stores use AutoMigrate.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return o.runMigrator(cmd, func(m *migration.Migrator) error { return m.Up() })
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return o.runMigrator(cmd, func(m *migration.Migrator) error { return m.Down() })
			},
		},
		&cobra.Command{
			Use:   "steps N",
			Short: "Apply N migrations, or roll back when N is negative",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil || n == 0 {
					return usageErrorf("steps: want a non-zero integer, got %q", args[0])
				}
				return o.runMigrator(cmd, func(m *migration.Migrator) error { return m.Steps(n) })
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return o.runMigrator(cmd, func(*migration.Migrator) error { return nil })
			},
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Set the schema version without running migrations",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil || v < -1 {
					return usageErrorf("force: want a version >= -1, got %q", args[0])
				}
				return o.runMigrator(cmd, func(m *migration.Migrator) error { return m.Force(v) })
			},
		},
		newMigrateCreateCommand(),
	)
	return cmd
}

// runMigrator opens the postgres database, runs fn and prints the resulting version
func (o *rootOptions) runMigrator(cmd *cobra.Command, fn func(m *migration.Migrator) error) (err error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.Driver != StorePostgres {
		return usageErrorf("migrations target postgres, database.driver is %q", cfg.Database.Driver)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
		Fields: map[string]string{"app": cfg.App.Name, "env": cfg.App.Env},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync(log) }()

	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, db.Close()) }()

	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	m, err := migration.New(sqlDB, log)
	if err != nil {
		return err
	}
	// closes sqlDB as well; the deferred db.Close above is then a no-op
	defer func() { err = errors.Join(err, m.Close()) }()

	start := time.Now()
	if err := fn(m); err != nil {
		log.Error("Migration failed", zap.String("command", cmd.Name()), zap.Error(err))
		return err
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	available, err := migration.ListMigrations(migration.Files())
	if err != nil {
		return err
	}
	log.Info("Migration finished",
		zap.String("command", cmd.Name()),
		zap.Uint("version", version),
		zap.Duration("elapsed", time.Since(start)),
	)
	return writeJSON(cmd.OutOrStdout(), NewSuccessResponse(MigrationStatus{
		Version:   version,
		Dirty:     dirty,
		Available: available,
	}))
}

func newMigrateCreateCommand() *cobra.Command {
	var dir, description string

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Write an empty up/down migration pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := migration.CreateMigration(dir, args[0], description)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), NewSuccessResponse(file))
		},
	}

	cmd.Flags().StringVar(&dir, "dir", defaultMigrationsDir, "migrations directory")
	cmd.Flags().StringVar(&description, "description", "", "comment written into the files")
	return cmd
}
