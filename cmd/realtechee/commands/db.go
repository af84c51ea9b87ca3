package commands

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/realtechee/platform/am"
	"github.com/realtechee/platform/db"
	"github.com/realtechee/platform/dispatch"
	"github.com/realtechee/platform/errors"
	"github.com/realtechee/platform/logger"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the local job/delivery database",
	Long: `db — Manage the local SQLite database.

The local database holds the background job queue and the notification
delivery log. Business records (contacts, requests, quotes, projects)
live in the managed data API, not here.

Examples:
  realtechee db migrate           # Apply schema migrations
  realtechee db stats             # Show database statistics
  realtechee db prune             # Delete old finished jobs`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations",
	Long:  "Apply any pending schema migrations to the local database. Safe to run repeatedly.",
	RunE:  runDbMigrate,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	Long:  "Display job counts by status and delivery log statistics",
	RunE:  runDbStats,
}

var dbPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old finished jobs",
	Long: `Delete completed, failed, and cancelled jobs older than the configured
retention window (dispatch.prune_after_days).`,
	RunE: runDbPrune,
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
	DbCmd.AddCommand(dbPruneCmd)
}

func openDatabase() (*sql.DB, string, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}

	database, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to open database")
	}
	return database, cfg.Database.Path, nil
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	database, path, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(database, logger.Logger); err != nil {
		return errors.Wrap(err, "migration failed")
	}

	pterm.Success.Printf("Database migrated: %s\n", path)
	return nil
}

func runDbStats(cmd *cobra.Command, args []string) error {
	database, path, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	store := dispatch.NewStore(database)

	fmt.Printf("Database Statistics\n")
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	fmt.Printf("Database Path: %s\n\n", path)

	fmt.Printf("Jobs by status:\n")
	statuses := []dispatch.JobStatus{
		dispatch.JobStatusQueued,
		dispatch.JobStatusRunning,
		dispatch.JobStatusCompleted,
		dispatch.JobStatusFailed,
		dispatch.JobStatusCancelled,
	}
	total := 0
	for _, status := range statuses {
		count, err := store.CountByStatus(status)
		if err != nil {
			return errors.Wrapf(err, "failed to count %s jobs", status)
		}
		total += count
		fmt.Printf("  %-12s %d\n", string(status)+":", count)
	}
	fmt.Printf("  %-12s %d\n\n", "total:", total)

	var sent, failed int
	err = database.QueryRow(`
		SELECT
			COUNT(CASE WHEN status = 'sent' THEN 1 END),
			COUNT(CASE WHEN status = 'failed' THEN 1 END)
		FROM delivery_log
	`).Scan(&sent, &failed)
	if err != nil && err != sql.ErrNoRows {
		return errors.Wrap(err, "failed to query delivery stats")
	}

	fmt.Printf("Deliveries:\n")
	fmt.Printf("  %-12s %d\n", "sent:", sent)
	fmt.Printf("  %-12s %d\n", "failed:", failed)
	return nil
}

func runDbPrune(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	database, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	days := cfg.Dispatch.PruneAfterDays
	if days <= 0 {
		return errors.NewValidation("dispatch.prune_after_days must be positive, got %d", days)
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	pruned, err := dispatch.NewStore(database).PruneBefore(cutoff)
	if err != nil {
		return errors.Wrap(err, "prune failed")
	}

	pterm.Success.Printf("Pruned %d job(s) finished before %s\n", pruned, cutoff.Format("2006-01-02"))
	return nil
}
