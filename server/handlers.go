package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/realtechee/platform/leads"
	"github.com/realtechee/platform/notify"
	"github.com/realtechee/platform/version"
)

const dataAPIPingTimeout = 5 * time.Second

// HandleLeadSubmit accepts public form posts at /api/leads/{form}.
func (s *Server) HandleLeadSubmit(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	parts := extractPathParts(r.URL.Path, "/api/leads/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "unknown lead form")
		return
	}
	form := parts[0]

	var sub leads.Submission
	if readJSON(w, r, &sub) != nil {
		return
	}
	sub.Form = form

	requestID, err := s.leads.Submit(r.Context(), sub)
	if err != nil {
		s.logger.Warnw("Lead submission rejected",
			"form", form,
			"remote", r.RemoteAddr,
			"error", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"requestId": requestID,
		"status":    "received",
	})
}

// HandleNotifyTest queues a test notification at POST /api/notifications/test.
// Meant to be used with sandbox mode on; it goes through the full render,
// queue, and delivery path.
func (s *Server) HandleNotifyTest(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Event  string                 `json:"event"`
		Data   map[string]interface{} `json:"data"`
		Emails []string               `json:"emails"`
		Phones []string               `json:"phones"`
	}
	if readJSON(w, r, &req) != nil {
		return
	}
	if req.Event == "" {
		writeError(w, http.StatusBadRequest, "Missing event key")
		return
	}

	jobIDs, err := s.notifier.Send(r.Context(), req.Event, req.Data, notify.Recipients{
		Emails: req.Emails,
		Phones: req.Phones,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.logger.Infow("Test notification queued",
		"event", req.Event,
		"jobs", len(jobIDs))

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"jobIds":  jobIDs,
		"sandbox": s.cfg.Notify.Debug,
	})
}

// HandleHealth reports subsystem health: local store, data API, cache, queue.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	versionInfo := version.Get()

	health := map[string]interface{}{
		"status":  "ok",
		"version": versionInfo.Version,
		"commit":  versionInfo.CommitHash,
		"clients": s.clientCount(),
	}

	if err := s.db.Ping(); err != nil {
		health["status"] = "degraded"
		health["database"] = err.Error()
	} else {
		health["database"] = "ok"
	}

	pingCtx, cancel := context.WithTimeout(r.Context(), dataAPIPingTimeout)
	defer cancel()
	if err := s.store.Ping(pingCtx); err != nil {
		health["status"] = "degraded"
		health["data_api"] = err.Error()
	} else {
		health["data_api"] = "ok"
	}

	if s.enhancer != nil {
		stats := s.enhancer.Stats()
		health["cache"] = map[string]interface{}{
			"hits":    stats.Hits,
			"misses":  stats.Misses,
			"clears":  stats.Clears,
			"entries": stats.Entries,
		}
	}

	if s.queue != nil {
		queued, running, err := s.queue.GetJobCounts()
		if err != nil {
			s.logger.Warnw("Failed to read job counts for health check", "error", err)
		} else {
			health["jobs"] = map[string]int{
				"queued":  queued,
				"running": running,
			}
		}
	}

	status := http.StatusOK
	if health["status"] != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// HandleConfig returns the active configuration with secrets redacted.
func (s *Server) HandleConfig(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	cfg := s.cfg
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"server": map[string]interface{}{
			"port":            cfg.Server.Port,
			"allowed_origins": cfg.Server.AllowedOrigins,
			"admin_base_url":  cfg.Server.AdminBaseURL,
			"admin_api_key":   redact(cfg.Server.AdminAPIKey),
		},
		"database": map[string]interface{}{
			"path": cfg.Database.Path,
		},
		"data_api": map[string]interface{}{
			"endpoint":        cfg.DataAPI.Endpoint,
			"api_key":         redact(cfg.DataAPI.APIKey),
			"timeout_seconds": cfg.DataAPI.TimeoutSeconds,
		},
		"notify": map[string]interface{}{
			"debug":         cfg.Notify.Debug,
			"sandbox_email": cfg.Notify.SandboxEmail,
			"sandbox_phone": cfg.Notify.SandboxPhone,
			"email": map[string]interface{}{
				"base_url":   cfg.Notify.Email.BaseURL,
				"api_key":    redact(cfg.Notify.Email.APIKey),
				"from_email": cfg.Notify.Email.FromEmail,
				"from_name":  cfg.Notify.Email.FromName,
			},
			"sms": map[string]interface{}{
				"base_url":    cfg.Notify.SMS.BaseURL,
				"account_sid": redact(cfg.Notify.SMS.AccountSID),
				"auth_token":  redact(cfg.Notify.SMS.AuthToken),
				"from_number": cfg.Notify.SMS.FromNumber,
			},
		},
		"leads": map[string]interface{}{
			"rate_per_minute": cfg.Leads.RatePerMinute,
			"burst":           cfg.Leads.Burst,
		},
		"dispatch": map[string]interface{}{
			"workers":               cfg.Dispatch.Workers,
			"poll_interval_seconds": cfg.Dispatch.PollIntervalSeconds,
			"prune_after_days":      cfg.Dispatch.PruneAfterDays,
		},
		"enhance": map[string]interface{}{
			"cache_ttl_seconds": cfg.Enhance.CacheTTLSeconds,
			"max_cache_size":    cfg.Enhance.MaxCacheSize,
		},
	})
}

// redact masks a secret, keeping a short prefix so operators can tell
// which key is loaded.
func redact(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 6 {
		return "***"
	}
	return secret[:4] + strings.Repeat("*", 8)
}
