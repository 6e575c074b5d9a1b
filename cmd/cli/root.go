package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Trade Gateway - multi-broker trading integration gateway",
	Long: `Trade Gateway consolidates portfolio state across multiple brokerage
APIs and routes orders to the broker offering the best execution.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
