// Package leads turns public form submissions into Requests in the data API
// and queues the intake work (notifications, assignment) as a dispatch job.
package leads

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/realtechee/platform/dataapi"
	"github.com/realtechee/platform/dispatch"
	"github.com/realtechee/platform/errors"
	"github.com/realtechee/platform/models"
)

// HandlerIntake is the dispatch handler name for lead intake jobs.
const HandlerIntake = "lead.intake"

// Form identifiers, one per public lead-capture page.
const (
	FormEstimate  = "estimate"
	FormContact   = "contact"
	FormQualify   = "qualify"
	FormAffiliate = "affiliate"
)

// Submission is a parsed lead form post.
type Submission struct {
	Form string `json:"form"`

	FullName  string `json:"fullName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Brokerage string `json:"brokerage,omitempty"`

	Product            string `json:"product,omitempty"`
	Message            string `json:"message,omitempty"`
	Budget             string `json:"budget,omitempty"`
	RelationToProperty string `json:"relationToProperty,omitempty"`

	StreetAddress string `json:"streetAddress,omitempty"`
	City          string `json:"city,omitempty"`
	State         string `json:"state,omitempty"`
	Zip           string `json:"zip,omitempty"`

	RequestedVisit *time.Time `json:"requestedVisitDateTime,omitempty"`
}

// Validate checks the submission before anything is written.
func (s *Submission) Validate() error {
	switch s.Form {
	case FormEstimate, FormContact, FormQualify, FormAffiliate:
	default:
		return errors.NewValidation("unknown form %q", s.Form)
	}
	if strings.TrimSpace(s.FullName) == "" {
		return errors.NewValidation("fullName is required")
	}
	email := strings.TrimSpace(s.Email)
	if email == "" || !strings.Contains(email, "@") {
		return errors.NewValidation("a valid email is required")
	}
	return nil
}

func (s *Submission) hasAddress() bool {
	return strings.TrimSpace(s.StreetAddress) != ""
}

// IntakePayload is the lead.intake job payload.
type IntakePayload struct {
	RequestID string `json:"request_id"`
	ContactID string `json:"contact_id"`
	Form      string `json:"form"`
}

// Service creates the data-API records for a submission and queues intake.
type Service struct {
	store *dataapi.Store
	queue *dispatch.Queue
	log   *zap.SugaredLogger
}

// NewService wires the data-API store and dispatch queue.
func NewService(store *dataapi.Store, queue *dispatch.Queue, log *zap.SugaredLogger) *Service {
	return &Service{
		store: store,
		queue: queue,
		log:   log.Named("leads"),
	}
}

// Submit validates the submission, finds or creates the Contact, creates the
// Property (when an address was given) and the Request, then enqueues the
// intake job. Returns the new request ID.
func (s *Service) Submit(ctx context.Context, sub Submission) (string, error) {
	if err := sub.Validate(); err != nil {
		return "", err
	}

	contact, err := s.findOrCreateContact(ctx, sub)
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve contact")
	}

	requestInput := map[string]any{
		"status":             models.RequestStatusNew,
		"product":            sub.Product,
		"message":            sub.Message,
		"budget":             sub.Budget,
		"relationToProperty": sub.RelationToProperty,
		"leadSource":         sub.Form,
		"agentContactId":     contact.ID,
	}
	if sub.RequestedVisit != nil {
		requestInput["requestedVisitDateTime"] = sub.RequestedVisit.Format(time.RFC3339)
	}

	if sub.hasAddress() {
		property, err := s.store.Properties.Create(ctx, map[string]any{
			"propertyFullAddress": fullAddress(sub),
			"houseAddress":        sub.StreetAddress,
			"city":                sub.City,
			"state":               sub.State,
			"zip":                 sub.Zip,
		})
		if err != nil {
			return "", errors.Wrap(err, "failed to create property")
		}
		requestInput["addressId"] = property.ID
	}

	request, err := s.store.Requests.Create(ctx, requestInput)
	if err != nil {
		return "", errors.Wrap(err, "failed to create request")
	}

	payload, err := json.Marshal(IntakePayload{
		RequestID: request.ID,
		ContactID: contact.ID,
		Form:      sub.Form,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal intake payload")
	}

	job, err := dispatch.NewJob(HandlerIntake, "lead:"+request.ID, payload, 1)
	if err != nil {
		return "", err
	}
	if err := s.queue.Enqueue(job); err != nil {
		// The request exists; intake just won't run. Surface the error so the
		// caller can decide, but log the orphaned request for operators.
		s.log.Errorw("Request created but intake job not queued",
			"request_id", request.ID, "error", err)
		return "", err
	}

	s.log.Infow("Lead captured",
		"request_id", request.ID,
		"contact_id", contact.ID,
		"form", sub.Form,
		"job_id", job.ID)
	return request.ID, nil
}

func (s *Service) findOrCreateContact(ctx context.Context, sub Submission) (*models.Contact, error) {
	email := strings.ToLower(strings.TrimSpace(sub.Email))

	contact, err := s.store.FindContactByEmail(ctx, email)
	if err == nil {
		return contact, nil
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}

	first, last := splitName(sub.FullName)
	return s.store.Contacts.Create(ctx, map[string]any{
		"firstName": first,
		"lastName":  last,
		"fullName":  strings.TrimSpace(sub.FullName),
		"email":     email,
		"phone":     sub.Phone,
		"brokerage": sub.Brokerage,
	})
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

func fullAddress(sub Submission) string {
	parts := []string{strings.TrimSpace(sub.StreetAddress)}
	if sub.City != "" {
		parts = append(parts, sub.City)
	}
	if sub.State != "" {
		parts = append(parts, sub.State)
	}
	joined := strings.Join(parts, ", ")
	if sub.Zip != "" {
		joined += " " + sub.Zip
	}
	return joined
}
