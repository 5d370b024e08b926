package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adwatch/adwatch/config"
	"github.com/adwatch/adwatch/db"
	"github.com/adwatch/adwatch/errors"
	"github.com/adwatch/adwatch/logger"
)

// DbCmd groups database operations.
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the adwatch database",
	Long: `Database operations for adwatch.

Examples:
  adwatch db migrate   # Apply pending schema migrations
  adwatch db stats     # Show table row counts`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE:  runDbMigrate,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show table row counts",
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load configuration")
	}

	conn, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return errors.Wrap(err, "open database")
	}
	defer conn.Close()

	if err := db.Migrate(conn, logger.Logger); err != nil {
		return errors.Wrap(err, "migrate database")
	}

	fmt.Println("Migrations applied")
	return nil
}

func runDbStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load configuration")
	}

	conn, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return errors.Wrap(err, "open database")
	}
	defer conn.Close()

	fmt.Printf("Database: %s\n\n", cfg.Database.Path)

	tables := []string{"ad_queries", "clients", "client_subs", "push_queue", "ad_content", "ad_content_text"}
	for _, table := range tables {
		var n int
		if err := conn.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			return errors.Wrapf(err, "count %s", table)
		}
		fmt.Printf("%-18s %d\n", table, n)
	}
	return nil
}
