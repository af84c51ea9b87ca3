package dispatch

import (
	"database/sql"
)

// JobScanArgs holds the nullable columns needed for scanning a job row.
type JobScanArgs struct {
	HandlerName sql.NullString
	Payload     sql.NullString
	ErrorMsg    sql.NullString
	StartedAt   sql.NullTime
	CompletedAt sql.NullTime
}

// StandardJobSelectColumns returns the column list every job SELECT uses,
// in the order GetJobScanTargets expects.
func StandardJobSelectColumns() string {
	return `id, handler_name, source, status,
		progress_current, progress_total,
		payload, error, retry_count,
		created_at, started_at, completed_at, updated_at`
}

// GetJobScanTargets returns scan destinations for the job and its nullable
// columns, matching StandardJobSelectColumns order.
func GetJobScanTargets(job *Job, args *JobScanArgs) []interface{} {
	return []interface{}{
		&job.ID,
		&args.HandlerName,
		&job.Source,
		&job.Status,
		&job.Progress.Current,
		&job.Progress.Total,
		&args.Payload,
		&args.ErrorMsg,
		&job.RetryCount,
		&job.CreatedAt,
		&args.StartedAt,
		&args.CompletedAt,
		&job.UpdatedAt,
	}
}

// ProcessJobScanArgs copies scanned nullable columns into the job struct.
func ProcessJobScanArgs(job *Job, args *JobScanArgs) {
	if args.HandlerName.Valid {
		job.HandlerName = args.HandlerName.String
	}
	if args.Payload.Valid {
		job.Payload = []byte(args.Payload.String)
	}
	if args.ErrorMsg.Valid {
		job.Error = args.ErrorMsg.String
	}
	if args.StartedAt.Valid {
		t := args.StartedAt.Time
		job.StartedAt = &t
	}
	if args.CompletedAt.Valid {
		t := args.CompletedAt.Time
		job.CompletedAt = &t
	}
}
