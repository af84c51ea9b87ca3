package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/realtechee/platform/models"
	"github.com/realtechee/platform/notify"
)

// Enhanced entity endpoints. Reads serve the enriched views (related
// records resolved in-process); writes go through to the data API, clear
// the cache, and fire status-change notifications.

// HandleQuotes handles GET /api/quotes.
func (s *Server) HandleQuotes(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	quotes, err := s.enhancer.ListQuotes(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": quotes})
}

// HandleQuote handles GET and PATCH /api/quotes/{id}.
func (s *Server) HandleQuote(w http.ResponseWriter, r *http.Request) {
	if !requireMethods(w, r, http.MethodGet, http.MethodPatch) {
		return
	}
	parts := extractPathParts(r.URL.Path, "/api/quotes/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing quote ID")
		return
	}
	id := parts[0]

	switch r.Method {
	case http.MethodGet:
		quote, err := s.enhancer.GetQuote(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, quote)
	case http.MethodPatch:
		s.handleQuotePatch(w, r, id)
	}
}

func (s *Server) handleQuotePatch(w http.ResponseWriter, r *http.Request, id string) {
	var patch map[string]any
	if readJSON(w, r, &patch) != nil {
		return
	}
	if len(patch) == 0 {
		writeError(w, http.StatusBadRequest, "Empty patch")
		return
	}

	updated, err := s.store.Quotes.Update(r.Context(), id, patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.enhancer.Invalidate()

	s.logger.Infow("Quote updated",
		"quote_id", shortID(id),
		"fields", len(patch))

	if status, ok := patch["status"].(string); ok {
		s.notifyQuoteStatus(r.Context(), updated, status)
	}

	writeJSON(w, http.StatusOK, updated)
}

// notifyQuoteStatus fires the quote.sent / quote.signed notifications.
// Notification failures never fail the write; the update already landed.
func (s *Server) notifyQuoteStatus(ctx context.Context, quote *models.Quote, status string) {
	var event string
	switch status {
	case models.QuoteStatusSent:
		event = notify.EventQuoteSent
	case models.QuoteStatusSigned:
		event = notify.EventQuoteSigned
	default:
		return
	}

	agent := s.quoteContact(ctx, quote)
	data := map[string]interface{}{
		"Name":        contactName(agent),
		"QuoteNumber": quote.QuoteNumber,
		"Title":       quote.Title,
		"Total":       formatMoney(quote.TotalPrice),
		"QuoteURL":    s.cfg.Server.AdminBaseURL + "/quotes/" + quote.ID,
		"AdminURL":    s.cfg.Server.AdminBaseURL + "/admin/quotes/" + quote.ID,
	}

	var rcpt notify.Recipients
	if event == notify.EventQuoteSent && agent != nil {
		// Sent goes to the client; signed goes to the office (catalog defaults).
		if agent.Email != "" {
			rcpt.Emails = []string{agent.Email}
		}
		if agent.Phone != "" {
			rcpt.Phones = []string{agent.Phone}
		}
	}

	if _, err := s.notifier.Send(ctx, event, data, rcpt); err != nil {
		s.logger.Warnw("Failed to queue quote notification",
			"event", event,
			"quote_id", shortID(quote.ID),
			"error", err)
	}
}

func (s *Server) quoteContact(ctx context.Context, quote *models.Quote) *models.Contact {
	contactID := quote.AgentContactID
	if quote.HomeownerContactID != "" {
		contactID = quote.HomeownerContactID
	}
	if contactID == "" {
		return nil
	}
	contact, err := s.store.Contacts.Get(ctx, contactID)
	if err != nil {
		s.logger.Debugw("Contact lookup failed for quote notification",
			"quote_id", shortID(quote.ID),
			"contact_id", contactID,
			"error", err)
		return nil
	}
	return contact
}

// HandleProjects handles GET /api/projects.
func (s *Server) HandleProjects(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	projects, err := s.enhancer.ListProjects(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": projects})
}

// HandleProject handles GET and PATCH /api/projects/{id}.
func (s *Server) HandleProject(w http.ResponseWriter, r *http.Request) {
	if !requireMethods(w, r, http.MethodGet, http.MethodPatch) {
		return
	}
	parts := extractPathParts(r.URL.Path, "/api/projects/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing project ID")
		return
	}
	id := parts[0]

	switch r.Method {
	case http.MethodGet:
		project, err := s.enhancer.GetProject(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, project)
	case http.MethodPatch:
		s.handleProjectPatch(w, r, id)
	}
}

func (s *Server) handleProjectPatch(w http.ResponseWriter, r *http.Request, id string) {
	var patch map[string]any
	if readJSON(w, r, &patch) != nil {
		return
	}
	if len(patch) == 0 {
		writeError(w, http.StatusBadRequest, "Empty patch")
		return
	}

	updated, err := s.store.Projects.Update(r.Context(), id, patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.enhancer.Invalidate()

	s.logger.Infow("Project updated",
		"project_id", shortID(id),
		"fields", len(patch))

	if status, ok := patch["status"].(string); ok {
		s.notifyProjectStatus(r.Context(), updated, status)
	}

	writeJSON(w, http.StatusOK, updated)
}

// notifyProjectStatus tells the homeowner their project moved stages.
func (s *Server) notifyProjectStatus(ctx context.Context, project *models.Project, status string) {
	contactID := project.HomeownerContactID
	if contactID == "" {
		contactID = project.AgentContactID
	}
	if contactID == "" {
		s.logger.Debugw("No contact for project status notification",
			"project_id", shortID(project.ID))
		return
	}

	contact, err := s.store.Contacts.Get(ctx, contactID)
	if err != nil {
		s.logger.Warnw("Contact lookup failed for project notification",
			"project_id", shortID(project.ID),
			"contact_id", contactID,
			"error", err)
		return
	}

	data := map[string]interface{}{
		"Name":       contactName(contact),
		"Title":      project.Title,
		"Status":     status,
		"ProjectURL": s.cfg.Server.AdminBaseURL + "/projects/" + project.ID,
	}

	var rcpt notify.Recipients
	if contact.Email != "" {
		rcpt.Emails = []string{contact.Email}
	}
	if contact.Phone != "" {
		rcpt.Phones = []string{contact.Phone}
	}

	if _, err := s.notifier.Send(ctx, notify.EventProjectStatus, data, rcpt); err != nil {
		s.logger.Warnw("Failed to queue project notification",
			"project_id", shortID(project.ID),
			"error", err)
	}
}

// HandleRequests handles GET /api/requests.
func (s *Server) HandleRequests(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	requests, err := s.enhancer.ListRequests(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": requests})
}

// HandleRequest handles GET and PATCH /api/requests/{id}.
func (s *Server) HandleRequest(w http.ResponseWriter, r *http.Request) {
	if !requireMethods(w, r, http.MethodGet, http.MethodPatch) {
		return
	}
	parts := extractPathParts(r.URL.Path, "/api/requests/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing request ID")
		return
	}
	id := parts[0]

	switch r.Method {
	case http.MethodGet:
		request, err := s.enhancer.GetRequest(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, request)
	case http.MethodPatch:
		var patch map[string]any
		if readJSON(w, r, &patch) != nil {
			return
		}
		if len(patch) == 0 {
			writeError(w, http.StatusBadRequest, "Empty patch")
			return
		}

		updated, err := s.store.Requests.Update(r.Context(), id, patch)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		s.enhancer.Invalidate()

		s.logger.Infow("Request updated",
			"request_id", shortID(id),
			"fields", len(patch))
		writeJSON(w, http.StatusOK, updated)
	}
}

// HandleContacts handles GET /api/contacts. Contacts are served flat;
// nothing references out of them.
func (s *Server) HandleContacts(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	contacts, err := s.store.Contacts.List(r.Context(), nil)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": contacts})
}

// HandleProperties handles GET /api/properties.
func (s *Server) HandleProperties(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	properties, err := s.store.Properties.List(r.Context(), nil)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": properties})
}

func contactName(contact *models.Contact) string {
	if contact == nil {
		return "there"
	}
	if contact.FullName != "" {
		return contact.FullName
	}
	if contact.FirstName != "" {
		return contact.FirstName
	}
	return "there"
}

func formatMoney(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}
