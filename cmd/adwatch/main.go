package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adwatch/adwatch/cmd/adwatch/commands"
	"github.com/adwatch/adwatch/logger"
)

var rootCmd = &cobra.Command{
	Use:   "adwatch",
	Short: "adwatch - watch an ads library and push notifications for novel ads",
	Long: `adwatch watches a third-party ads library for new advertisements
matching saved searches and delivers web-push notifications to
subscribed browsers.

Available commands:
  serve - Run the full service: HTTP API, crawl scheduler, push dispatcher
  db    - Database operations (migrate, stats)

Examples:
  adwatch serve                # Start the service
  adwatch db migrate           # Apply pending schema migrations
  adwatch db stats             # Show table row counts`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("log-json")
		if err := logger.Initialize(jsonOutput); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit logs as JSON")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.DbCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
