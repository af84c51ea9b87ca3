package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/realtechee/platform/dispatch"
	"github.com/realtechee/platform/errors"
	"github.com/realtechee/platform/notify"
)

// JobsCmd represents the jobs command - background job management
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and cancel background jobs",
	Long: `jobs — Background job management.

Notifications and lead intake run as background jobs in the dispatch
queue. These commands inspect and manage that queue.

Job management commands:
  realtechee jobs ls              # List all jobs
  realtechee jobs status <id>     # Show job details and deliveries
  realtechee jobs cancel <id>     # Cancel a queued or running job`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var jobsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List background jobs",
	Long: `List background jobs, optionally filtered by status.

Status filters:
  queued    - Jobs waiting to be processed
  running   - Jobs currently being processed
  completed - Successfully completed jobs
  failed    - Jobs that exhausted their retries
  cancelled - Jobs cancelled by an operator

Examples:
  realtechee jobs ls                    # List all jobs
  realtechee jobs ls --status failed    # List only failed jobs
  realtechee jobs ls --limit 50         # Show up to 50 jobs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		statusFilter, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		return runJobsLs(statusFilter, limit)
	},
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show status of a background job",
	Long: `Display detailed status information for a background job:
- Job ID, handler, and source
- Current status and retry count
- Timestamps (created, started, completed)
- Notification deliveries recorded for the job

Example:
  realtechee jobs status 4f8c1b2a`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobsStatus(args[0])
	},
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a queued or running job",
	Long: `Cancel a queued or running job. Running jobs stop at the next
cancellation checkpoint.

Example:
  realtechee jobs cancel 4f8c1b2a`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobsCancel(args[0])
	},
}

func init() {
	jobsLsCmd.Flags().String("status", "", "Filter by status (queued, running, completed, failed, cancelled)")
	jobsLsCmd.Flags().Int("limit", 20, "Maximum number of jobs to display")

	JobsCmd.AddCommand(jobsLsCmd)
	JobsCmd.AddCommand(jobsStatusCmd)
	JobsCmd.AddCommand(jobsCancelCmd)
}

func runJobsLs(statusFilter string, limit int) error {
	database, _, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	queue := dispatch.NewQueue(database)

	var status *dispatch.JobStatus
	if statusFilter != "" {
		if !dispatch.IsValidStatus(statusFilter) {
			return errors.NewValidation("invalid status %q", statusFilter)
		}
		s := dispatch.JobStatus(statusFilter)
		status = &s
	}

	jobs, err := queue.ListJobs(status, limit)
	if err != nil {
		return errors.Wrap(err, "failed to list jobs")
	}

	if len(jobs) == 0 {
		pterm.Info.Println("No jobs found")
		return nil
	}

	fmt.Printf("%-15s %-12s %-25s %-30s %s\n", "JOB ID", "STATUS", "HANDLER", "SOURCE", "CREATED")
	fmt.Printf("%-15s %-12s %-25s %-30s %s\n", "------", "------", "-------", "------", "-------")

	for _, job := range jobs {
		fmt.Printf("%-15s %-12s %-25s %-30s %s\n",
			truncate(job.ID, 15),
			job.Status,
			truncate(job.HandlerName, 25),
			truncate(job.Source, 30),
			job.CreatedAt.Format("2006-01-02 15:04"))
	}

	fmt.Printf("\nTotal: %d job(s)\n", len(jobs))
	return nil
}

func runJobsStatus(jobID string) error {
	database, _, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	queue := dispatch.NewQueue(database)
	job, err := queue.GetJob(jobID)
	if err != nil {
		return errors.Wrap(err, "failed to get job")
	}

	fmt.Printf("Job ID: %s\n", job.ID)
	fmt.Printf("  Handler: %s\n", job.HandlerName)
	fmt.Printf("  Source:  %s\n", job.Source)
	fmt.Printf("  Status:  %s\n", job.Status)
	if job.RetryCount > 0 {
		fmt.Printf("  Retries: %d\n", job.RetryCount)
	}
	if job.Error != "" {
		fmt.Printf("  Error:   %s\n", job.Error)
	}
	fmt.Printf("  Created: %s\n", job.CreatedAt.Format("2006-01-02 15:04:05"))
	if job.StartedAt != nil {
		fmt.Printf("  Started: %s\n", job.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if job.CompletedAt != nil {
		fmt.Printf("  Done:    %s\n", job.CompletedAt.Format("2006-01-02 15:04:05"))
	}

	deliveries, err := notify.NewDeliveryStore(database).ListByJob(jobID)
	if err != nil {
		return errors.Wrap(err, "failed to list deliveries")
	}
	if len(deliveries) > 0 {
		fmt.Printf("\n  Deliveries:\n")
		for _, d := range deliveries {
			fmt.Printf("    %-8s %-6s %-30s %s\n", d.Status, d.Channel, truncate(d.Recipient, 30), d.EventKey)
		}
	}

	return nil
}

func runJobsCancel(jobID string) error {
	database, _, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	queue := dispatch.NewQueue(database)
	if err := queue.CancelJob(jobID, "Cancelled via CLI"); err != nil {
		return errors.Wrap(err, "failed to cancel job")
	}

	pterm.Success.Printf("Job %s cancelled\n", jobID)
	return nil
}

// truncate truncates a string to maxLen characters
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
