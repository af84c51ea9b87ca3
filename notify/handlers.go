package notify

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/realtechee/platform/dispatch"
	"github.com/realtechee/platform/errors"
)

// EmailHandler executes notify.email jobs: one provider call for the whole
// recipient list, one delivery-log row per recipient.
type EmailHandler struct {
	provider   EmailSender
	deliveries *DeliveryStore
	log        *zap.SugaredLogger
}

// NewEmailHandler creates the notify.email job handler.
func NewEmailHandler(provider EmailSender, deliveries *DeliveryStore, log *zap.SugaredLogger) *EmailHandler {
	return &EmailHandler{
		provider:   provider,
		deliveries: deliveries,
		log:        log.Named("notify.email"),
	}
}

// Name implements dispatch.JobHandler.
func (h *EmailHandler) Name() string { return HandlerEmail }

// Execute implements dispatch.JobHandler.
func (h *EmailHandler) Execute(ctx context.Context, job *dispatch.Job) error {
	var payload EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return errors.Wrap(err, "failed to decode email payload")
	}

	messageID, err := h.provider.SendEmail(ctx, payload.To, payload.Subject, payload.Body)
	if err != nil {
		for _, recipient := range payload.To {
			if logErr := h.deliveries.RecordFailed(job.ID, payload.Event, "email", recipient, err); logErr != nil {
				h.log.Warnw("Failed to record delivery failure", "job_id", job.ID, "error", logErr)
			}
		}
		return err
	}

	for _, recipient := range payload.To {
		if logErr := h.deliveries.RecordSent(job.ID, payload.Event, "email", recipient, messageID); logErr != nil {
			h.log.Warnw("Failed to record delivery", "job_id", job.ID, "error", logErr)
		}
	}

	job.UpdateProgress(1)
	return nil
}

// SMSHandler executes notify.sms jobs: one provider call per recipient.
type SMSHandler struct {
	provider   SMSSender
	deliveries *DeliveryStore
	log        *zap.SugaredLogger
}

// NewSMSHandler creates the notify.sms job handler.
func NewSMSHandler(provider SMSSender, deliveries *DeliveryStore, log *zap.SugaredLogger) *SMSHandler {
	return &SMSHandler{
		provider:   provider,
		deliveries: deliveries,
		log:        log.Named("notify.sms"),
	}
}

// Name implements dispatch.JobHandler.
func (h *SMSHandler) Name() string { return HandlerSMS }

// Execute implements dispatch.JobHandler.
//
// Each number is its own provider call, so one bad number fails only its
// own delivery; the job fails (and retries) if any send failed.
func (h *SMSHandler) Execute(ctx context.Context, job *dispatch.Job) error {
	var payload SMSPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return errors.Wrap(err, "failed to decode sms payload")
	}

	var firstErr error
	sent := 0

	for _, recipient := range payload.To {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		messageID, err := h.provider.SendSMS(ctx, recipient, payload.Body)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if logErr := h.deliveries.RecordFailed(job.ID, payload.Event, "sms", recipient, err); logErr != nil {
				h.log.Warnw("Failed to record delivery failure", "job_id", job.ID, "error", logErr)
			}
			continue
		}

		if logErr := h.deliveries.RecordSent(job.ID, payload.Event, "sms", recipient, messageID); logErr != nil {
			h.log.Warnw("Failed to record delivery", "job_id", job.ID, "error", logErr)
		}
		sent++
		job.UpdateProgress(sent)
	}

	return firstErr
}

// RegisterHandlers wires both delivery handlers into a dispatch registry.
func RegisterHandlers(registry *dispatch.HandlerRegistry, email EmailSender, sms SMSSender, deliveries *DeliveryStore, log *zap.SugaredLogger) {
	registry.Register(NewEmailHandler(email, deliveries, log))
	registry.Register(NewSMSHandler(sms, deliveries, log))
}
