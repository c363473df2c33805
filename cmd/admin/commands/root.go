package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"monolith/internal/config"
	"monolith/internal/database"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	// Global flags
	applySchema bool
)

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "Monolith operator tooling",
	Long: `Operator commands for the Monolith backend.

Configuration is read the same way the server reads it: config.yml plus
environment variables such as DB_HOST and APP_ENV.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&applySchema, "apply-schema", false, "Apply the configured schema policy after connecting")
}

// connect loads configuration and opens the primary database. The schema
// policy runs only when schema is set.
func connect(schema bool) (*config.Config, *gorm.DB, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{
		ApplySchema:     schema,
		ApplicationName: "monolith-admin",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return cfg, db, nil
}
