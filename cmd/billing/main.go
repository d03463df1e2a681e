package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	// Billing dates and invoice numbers are computed in UTC.
	time.Local = time.UTC
}

var rootCmd = &cobra.Command{
	Use:   "billing",
	Short: "Billing core: tax resolution, invoicing and billing cycles",
	Long: `billing runs the billing core service and its maintenance commands.

Configuration is read from config.yaml and BILLINGCORE_* environment variables.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
