package commands

import (
	"context"
	"fmt"
	"strconv"

	"monolith/internal/database"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run schema operations against the configured database.

Subcommands:
  up      - Apply pending SQL migrations
  auto    - Run GORM automigrate for every persistent model
  status  - Show applied and pending migrations
  down    - Roll back one migration by version`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending SQL migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, db, err := connect(false)
		if err != nil {
			return err
		}
		if err := database.RunMigrations(contextOf(cmd), db); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
		cmd.Println("sql migrations applied")
		return nil
	},
}

var migrateAutoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Run GORM automigrate",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, db, err := connect(false)
		if err != nil {
			return err
		}
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(contextOf(cmd), db, cfg); err != nil {
			return fmt.Errorf("auto schema apply failed: %w", err)
		}
		cmd.Println("automigrations applied")
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, db, err := connect(false)
		if err != nil {
			return err
		}
		status, err := database.GetSchemaStatus(contextOf(cmd), db, cfg)
		if err != nil {
			return fmt.Errorf("schema status failed: %w", err)
		}
		cmd.Printf("mode=%s env=%s run_sql=%t run_auto=%t applied=%d pending=%d\n",
			status.Mode, status.Environment, status.RunSQL, status.RunAuto,
			len(status.AppliedVersions), len(status.PendingMigrations))
		for _, m := range status.PendingMigrations {
			cmd.Printf("pending: %06d_%s\n", m.Version, m.Name)
		}
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down <version>",
	Short: "Roll back a migration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		_, db, err := connect(false)
		if err != nil {
			return err
		}
		if err := database.RollbackMigration(contextOf(cmd), db, version); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		cmd.Printf("rolled back migration %d\n", version)
		return nil
	},
}

// contextOf returns the command context, which is nil when a command runs
// outside ExecuteContext.
func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateAutoCmd, migrateStatusCmd, migrateDownCmd)
	rootCmd.AddCommand(migrateCmd)
}
