package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/realtechee/platform/cmd/realtechee/commands"
	"github.com/realtechee/platform/logger"
)

var rootCmd = &cobra.Command{
	Use:   "realtechee",
	Short: "RealTechee - Renovation platform backend",
	Long: `RealTechee - Renovation platform backend.

Runs the lead-capture API, the admin dashboard API, and the background
job dispatcher (notifications, lead intake) behind a single binary.

Available commands:
  serve   - Start the API server and job workers
  am      - Manage platform configuration ("I am")
  db      - Manage the local job/delivery database
  jobs    - Inspect and cancel background jobs
  notify  - Inspect the notification template catalog
  version - Show version information

Examples:
  realtechee serve             # Start the server
  realtechee am show           # Show current configuration
  realtechee jobs ls           # List background jobs
  realtechee db stats          # Show database statistics`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize global logger before any command runs.
		// Skip for 'am show' so config output stays machine-parseable.
		if cmd.Name() != "show" {
			if err := logger.Initialize(false); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.JobsCmd)
	rootCmd.AddCommand(commands.NotifyCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
