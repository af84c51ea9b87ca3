package notify

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/realtechee/platform/am"
	"github.com/realtechee/platform/dispatch"
	"github.com/realtechee/platform/errors"
)

// Handler names for the dispatch registry.
const (
	HandlerEmail = "notify.email"
	HandlerSMS   = "notify.sms"
)

// EmailPayload is the dispatch job payload for a rendered email.
type EmailPayload struct {
	Event   string   `json:"event"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// SMSPayload is the dispatch job payload for a rendered SMS.
type SMSPayload struct {
	Event string   `json:"event"`
	To    []string `json:"to"`
	Body  string   `json:"body"`
}

// Recipients overrides the catalog's default recipients for one send.
// Empty slices fall back to the template defaults.
type Recipients struct {
	Emails []string
	Phones []string
}

// Service renders notifications and queues them for delivery.
type Service struct {
	catalog *Catalog
	queue   *dispatch.Queue
	cfg     am.Notify
	log     *zap.SugaredLogger
}

// NewService loads the embedded catalog and wires the dispatch queue.
func NewService(cfg am.Notify, queue *dispatch.Queue, log *zap.SugaredLogger) (*Service, error) {
	catalog, err := LoadCatalog()
	if err != nil {
		return nil, err
	}
	return NewServiceWithCatalog(cfg, catalog, queue, log), nil
}

// NewServiceWithCatalog wires an explicit catalog (tests, CLI previews).
func NewServiceWithCatalog(cfg am.Notify, catalog *Catalog, queue *dispatch.Queue, log *zap.SugaredLogger) *Service {
	return &Service{
		catalog: catalog,
		queue:   queue,
		cfg:     cfg,
		log:     log.Named("notify"),
	}
}

// Catalog exposes the loaded template catalog.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// Send renders every channel of the event and enqueues one delivery job per
// channel. Channels that resolve zero recipients are skipped; it is an error
// only when no channel has anyone to send to. Rendering happens eagerly so a
// bad payload fails here, at the call site, instead of inside a worker;
// nothing is queued on error.
//
// Returns the IDs of the enqueued jobs.
func (s *Service) Send(ctx context.Context, event string, data map[string]interface{}, rcpt Recipients) ([]string, error) {
	tmpl, err := s.catalog.Event(event)
	if err != nil {
		return nil, err
	}

	var email *RenderedEmail
	var sms *RenderedSMS

	if tmpl.Email != nil {
		email, err = s.catalog.RenderEmail(event, data)
		if err != nil {
			return nil, err
		}
		if len(rcpt.Emails) > 0 {
			email.To = rcpt.Emails
		}
		if len(email.To) == 0 {
			// Channel defined but nobody to send to; skip it.
			s.log.Debugw("Skipping email channel, no recipients", "event", event)
			email = nil
		}
	}

	if tmpl.SMS != nil {
		sms, err = s.catalog.RenderSMS(event, data)
		if err != nil {
			return nil, err
		}
		if len(rcpt.Phones) > 0 {
			sms.To = rcpt.Phones
		}
		if len(sms.To) == 0 {
			s.log.Debugw("Skipping sms channel, no recipients", "event", event)
			sms = nil
		}
	}

	if email == nil && sms == nil {
		return nil, errors.NewValidation("event %s has no recipients on any channel", event)
	}

	s.applySandbox(event, email, sms)

	var jobIDs []string

	if email != nil {
		jobID, err := s.enqueue(HandlerEmail, event, EmailPayload{
			Event:   event,
			To:      email.To,
			Subject: email.Subject,
			Body:    email.Body,
		})
		if err != nil {
			return jobIDs, err
		}
		jobIDs = append(jobIDs, jobID)
	}

	if sms != nil {
		jobID, err := s.enqueue(HandlerSMS, event, SMSPayload{
			Event: event,
			To:    sms.To,
			Body:  sms.Body,
		})
		if err != nil {
			return jobIDs, err
		}
		jobIDs = append(jobIDs, jobID)
	}

	s.log.Infow("Notification queued", "event", event, "jobs", len(jobIDs), "debug", s.cfg.Debug)
	return jobIDs, nil
}

// applySandbox reroutes recipients to the sandbox inbox/number and tags
// email subjects when debug mode is on. Production sends are untouched.
func (s *Service) applySandbox(event string, email *RenderedEmail, sms *RenderedSMS) {
	if !s.cfg.Debug {
		return
	}

	if email != nil {
		s.log.Debugw("Debug mode: rerouting email to sandbox",
			"event", event,
			"original_recipients", len(email.To),
			"sandbox", s.cfg.SandboxEmail)
		email.To = []string{s.cfg.SandboxEmail}
		email.Subject = "[TEST] " + email.Subject
	}

	if sms != nil {
		s.log.Debugw("Debug mode: rerouting sms to sandbox",
			"event", event,
			"original_recipients", len(sms.To),
			"sandbox", s.cfg.SandboxPhone)
		sms.To = []string{s.cfg.SandboxPhone}
	}
}

func (s *Service) enqueue(handler, event string, payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal notification payload")
	}

	job, err := dispatch.NewJob(handler, "notify:"+event, data, 1)
	if err != nil {
		return "", err
	}
	if err := s.queue.Enqueue(job); err != nil {
		return "", err
	}
	return job.ID, nil
}
