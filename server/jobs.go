package server

import (
	"net/http"
	"strconv"

	"github.com/realtechee/platform/dispatch"
)

const (
	defaultJobLimit = 50
	maxJobLimit     = 200
)

// HandleJobs handles GET /api/jobs: active jobs first, then recent
// completed and failed ones.
func (s *Server) HandleJobs(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if s.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "Job queue not available")
		return
	}

	limit := parseIntQueryParam(r, "limit", defaultJobLimit, 1, maxJobLimit)

	var allJobs []*dispatch.Job

	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		if !dispatch.IsValidStatus(statusParam) {
			writeError(w, http.StatusBadRequest, "Invalid job status")
			return
		}
		status := dispatch.JobStatus(statusParam)
		jobs, err := s.queue.ListJobs(&status, limit)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		allJobs = jobs
	} else {
		for _, status := range []dispatch.JobStatus{
			dispatch.JobStatusRunning,
			dispatch.JobStatusQueued,
			dispatch.JobStatusCompleted,
			dispatch.JobStatusFailed,
			dispatch.JobStatusCancelled,
		} {
			st := status
			jobs, err := s.queue.ListJobs(&st, limit)
			if err != nil {
				s.logger.Warnw("Failed to list jobs", "status", status, "error", err)
				continue
			}
			allJobs = append(allJobs, jobs...)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  allJobs,
		"count": len(allJobs),
	})
}

// HandleJob handles /api/jobs/{id} and its sub-resources:
// GET /api/jobs/{id}, POST /api/jobs/{id}/cancel, GET /api/jobs/{id}/deliveries.
func (s *Server) HandleJob(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "Job queue not available")
		return
	}

	parts := extractPathParts(r.URL.Path, "/api/jobs/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing job ID")
		return
	}
	jobID := parts[0]

	if len(parts) > 1 && parts[1] == "cancel" {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		s.handleCancelJob(w, jobID)
		return
	}

	if len(parts) > 1 && parts[1] == "deliveries" {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		s.handleJobDeliveries(w, jobID)
		return
	}

	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	job, err := s.queue.GetJob(jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, jobID string) {
	if err := s.queue.CancelJob(jobID, "Cancelled via admin API"); err != nil {
		writeDomainError(w, err)
		return
	}

	s.logger.Infow("Job cancelled", "job_id", shortID(jobID))

	job, err := s.queue.GetJob(jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobDeliveries(w http.ResponseWriter, jobID string) {
	if s.deliveries == nil {
		writeError(w, http.StatusServiceUnavailable, "Delivery log not available")
		return
	}
	deliveries, err := s.deliveries.ListByJob(jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deliveries": deliveries,
		"count":      len(deliveries),
	})
}

// HandleDeliveries handles GET /api/deliveries: the recent delivery log
// across all jobs, newest first.
func (s *Server) HandleDeliveries(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if s.deliveries == nil {
		writeError(w, http.StatusServiceUnavailable, "Delivery log not available")
		return
	}

	limit := parseIntQueryParam(r, "limit", defaultJobLimit, 1, maxJobLimit)
	deliveries, err := s.deliveries.ListRecent(limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deliveries": deliveries,
		"count":      len(deliveries),
	})
}

// parseIntQueryParam parses an integer query parameter with bounds.
func parseIntQueryParam(r *http.Request, name string, def, min, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if parsed < min {
		return min
	}
	if parsed > max {
		return max
	}
	return parsed
}
