package server

import (
	"net/http"
	"net/url"
	"strings"
)

// setupRoutes registers all HTTP handlers on the mux.
func (s *Server) setupRoutes(mux *http.ServeMux) {
	// Public lead capture, rate limited per IP
	mux.HandleFunc("/api/leads/", s.corsMiddleware(s.rateLimitMiddleware(s.HandleLeadSubmit)))

	// Admin API
	mux.HandleFunc("/api/quotes", s.corsMiddleware(s.requireAdmin(s.HandleQuotes)))
	mux.HandleFunc("/api/quotes/", s.corsMiddleware(s.requireAdmin(s.HandleQuote)))
	mux.HandleFunc("/api/projects", s.corsMiddleware(s.requireAdmin(s.HandleProjects)))
	mux.HandleFunc("/api/projects/", s.corsMiddleware(s.requireAdmin(s.HandleProject)))
	mux.HandleFunc("/api/requests", s.corsMiddleware(s.requireAdmin(s.HandleRequests)))
	mux.HandleFunc("/api/requests/", s.corsMiddleware(s.requireAdmin(s.HandleRequest)))
	mux.HandleFunc("/api/contacts", s.corsMiddleware(s.requireAdmin(s.HandleContacts)))
	mux.HandleFunc("/api/properties", s.corsMiddleware(s.requireAdmin(s.HandleProperties)))
	mux.HandleFunc("/api/notifications/test", s.corsMiddleware(s.requireAdmin(s.HandleNotifyTest)))
	mux.HandleFunc("/api/jobs", s.corsMiddleware(s.requireAdmin(s.HandleJobs)))
	mux.HandleFunc("/api/jobs/", s.corsMiddleware(s.requireAdmin(s.HandleJob)))
	mux.HandleFunc("/api/deliveries", s.corsMiddleware(s.requireAdmin(s.HandleDeliveries)))
	mux.HandleFunc("/api/config", s.corsMiddleware(s.requireAdmin(s.HandleConfig)))

	// Dashboard WebSocket and health probe
	mux.HandleFunc("/ws", s.HandleWebSocket)
	mux.HandleFunc("/health", s.corsMiddleware(s.HandleHealth))
}

// corsMiddleware adds CORS headers using the configured allowed origins.
// The same origin list gates WebSocket upgrades.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// originAllowed checks an Origin header against server.allowed_origins.
// Scheme and host must match exactly; a configured entry without a port
// covers any port on that host, so "http://localhost" admits
// "http://localhost:5173" but never "http://localhost.evil.com".
func (s *Server) originAllowed(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return false
	}

	for _, entry := range s.cfg.Server.AllowedOrigins {
		allowed, err := url.Parse(entry)
		if err != nil || allowed.Hostname() == "" {
			continue
		}
		if !strings.EqualFold(allowed.Scheme, u.Scheme) {
			continue
		}
		if !strings.EqualFold(allowed.Hostname(), u.Hostname()) {
			continue
		}
		if allowed.Port() == "" || allowed.Port() == u.Port() {
			return true
		}
	}
	return false
}

// requireAdmin gates admin endpoints behind the configured API key.
// An empty key leaves the endpoints open for local development.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := s.cfg.Server.AdminAPIKey
		if key == "" {
			next(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth != "Bearer "+key {
			s.logger.Warnw("Rejected unauthorized admin request",
				"path", r.URL.Path,
				"remote", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// rateLimitMiddleware throttles public endpoints per client IP.
func (s *Server) rateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientIP(r)) {
			s.logger.Warnw("Rate limit exceeded",
				"path", r.URL.Path,
				"remote", r.RemoteAddr)
			writeError(w, http.StatusTooManyRequests, "too many requests, slow down")
			return
		}
		next(w, r)
	}
}
