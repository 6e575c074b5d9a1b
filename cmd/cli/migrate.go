package cli

import (
	"log"

	"tradegateway/internal/config"
	"tradegateway/internal/database"
	appfx "tradegateway/internal/fx"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	Run: func(cmd *cobra.Command, args []string) {
		runMigrate()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate() {
	cfg := config.Load()

	logger, err := appfx.NewLogger(cfg)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	db, err := appfx.NewDatabase(cfg, logger)
	if err != nil {
		logger.Sugar().Fatalf("failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(db, logger); err != nil {
		logger.Sugar().Fatalf("migration failed: %v", err)
	}
}
