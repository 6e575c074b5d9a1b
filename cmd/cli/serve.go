package cli

import (
	"log"

	"tradegateway/internal/config"
	appfx "tradegateway/internal/fx"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway API server",
	Long:  `Start the Trade Gateway API server with all broker integrations.`,
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() {
	log.Println("========================================")
	log.Println("  Trade Gateway API Server")
	log.Println("========================================")
	log.Println()

	log.Println("📋 Loading configuration...")
	cfg := config.Load()

	log.Println()
	log.Printf("   Server: http://%s:%s", cfg.Server.Host, cfg.Server.Port)
	if config.IsDevelopment() {
		log.Println("   Mode: DEVELOPMENT 🛠")
	} else {
		log.Println("   Mode: PRODUCTION 🏭")
	}

	log.Println()
	log.Println("📦 Initializing dependency injection (Uber FX)...")

	appfx.Application().Run()
}
