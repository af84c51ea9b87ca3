package leads

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/realtechee/platform/am"
	"github.com/realtechee/platform/dataapi"
	"github.com/realtechee/platform/dispatch"
	"github.com/realtechee/platform/errors"
	"github.com/realtechee/platform/models"
	"github.com/realtechee/platform/notify"
)

// Notifier queues notifications for a lead event.
type Notifier interface {
	Send(ctx context.Context, event string, data map[string]interface{}, rcpt notify.Recipients) ([]string, error)
}

// CacheInvalidator clears cached enhanced views after a write.
type CacheInvalidator interface {
	Invalidate()
}

// IntakeHandler processes lead.intake jobs: it alerts the office (the next
// assignee in rotation when one is configured, the catalog default inbox
// otherwise), acknowledges the lead, and marks the request Assigned when
// an assignee matched.
type IntakeHandler struct {
	store    *dataapi.Store
	notifier Notifier
	cache    CacheInvalidator
	cfg      am.Server
	log      *zap.SugaredLogger

	mu     sync.Mutex
	cursor int // round-robin position over the active assignee list
}

// NewIntakeHandler wires the intake handler. cache may be nil when no
// enhanced-view cache is running (CLI tools).
func NewIntakeHandler(store *dataapi.Store, notifier Notifier, cache CacheInvalidator, cfg am.Server, log *zap.SugaredLogger) *IntakeHandler {
	return &IntakeHandler{
		store:    store,
		notifier: notifier,
		cache:    cache,
		cfg:      cfg,
		log:      log.Named("intake"),
	}
}

// Name implements dispatch.JobHandler.
func (h *IntakeHandler) Name() string {
	return HandlerIntake
}

// Execute implements dispatch.JobHandler.
func (h *IntakeHandler) Execute(ctx context.Context, job *dispatch.Job) error {
	var payload IntakePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return errors.Wrap(err, "invalid intake payload")
	}
	if payload.RequestID == "" {
		return errors.NewValidation("intake payload missing request_id")
	}

	request, err := h.store.Requests.Get(ctx, payload.RequestID)
	if err != nil {
		return errors.Wrapf(err, "failed to load request %s", payload.RequestID)
	}

	contact, err := h.store.Contacts.Get(ctx, payload.ContactID)
	if err != nil {
		return errors.Wrapf(err, "failed to load contact %s", payload.ContactID)
	}

	assignee, err := h.nextAssignee(ctx)
	if err != nil {
		return err
	}

	data := map[string]interface{}{
		"Name":     contact.FullName,
		"Email":    contact.Email,
		"Phone":    contact.Phone,
		"Product":  request.Product,
		"Message":  request.Message,
		"Address":  h.requestAddress(ctx, request),
		"AdminURL": h.cfg.AdminBaseURL + "/admin/requests/" + request.ID,
	}

	// With no assignee the empty recipient list falls back to the
	// catalog's default office inbox; the lead is never silently dropped.
	var rcpt notify.Recipients
	if assignee != nil {
		rcpt = assigneeRecipients(assignee)
	}
	if _, err := h.notifier.Send(ctx, notify.EventLeadAdminAlert, data, rcpt); err != nil {
		return errors.Wrap(err, "failed to queue admin alert")
	}

	ackData := map[string]interface{}{
		"Name":      contact.FullName,
		"RequestID": request.ID,
	}
	ackRcpt := notify.Recipients{}
	if contact.Email != "" {
		ackRcpt.Emails = []string{contact.Email}
	}
	if contact.Phone != "" {
		ackRcpt.Phones = []string{contact.Phone}
	}
	if _, err := h.notifier.Send(ctx, notify.EventLeadAck, ackData, ackRcpt); err != nil {
		// The admin was alerted; don't fail the job over the courtesy ack.
		h.log.Warnw("Failed to queue lead acknowledgement",
			"request_id", request.ID, "error", err)
	}

	assignedTo := ""
	if assignee != nil {
		now := time.Now().UTC()
		if _, err := h.store.Requests.Update(ctx, request.ID, map[string]any{
			"status":       models.RequestStatusAssigned,
			"assignedTo":   assignee.Title,
			"assignedDate": now.Format(time.RFC3339),
		}); err != nil {
			return errors.Wrapf(err, "failed to assign request %s", request.ID)
		}
		assignedTo = assignee.Title
	} else {
		h.log.Warnw("No active assignees, request left unassigned",
			"request_id", request.ID)
	}

	if h.cache != nil {
		h.cache.Invalidate()
	}

	h.log.Infow("Lead intake complete",
		"request_id", request.ID,
		"assigned_to", assignedTo,
		"form", payload.Form)
	return nil
}

// nextAssignee returns the next active assignee in round-robin order, or
// nil when none are configured. The cursor survives across jobs but not
// restarts; after a restart the rotation simply begins again at the front
// of the list.
func (h *IntakeHandler) nextAssignee(ctx context.Context) (*models.StatusOption, error) {
	assignees, err := h.store.ActiveAssignees(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list assignees")
	}
	if len(assignees) == 0 {
		return nil, nil
	}

	h.mu.Lock()
	idx := h.cursor % len(assignees)
	h.cursor = (h.cursor + 1) % len(assignees)
	h.mu.Unlock()

	return &assignees[idx], nil
}

// requestAddress resolves the property address for the alert, best-effort.
func (h *IntakeHandler) requestAddress(ctx context.Context, request *models.Request) string {
	if request.AddressID == "" {
		return ""
	}
	property, err := h.store.Properties.Get(ctx, request.AddressID)
	if err != nil {
		h.log.Debugw("Property lookup failed for alert",
			"request_id", request.ID, "address_id", request.AddressID, "error", err)
		return ""
	}
	return property.PropertyFullAddress
}

// assigneeRecipients builds the alert recipient list from the assignee's
// notification preferences. Falls back to the template defaults when the
// assignee has no reachable channel enabled.
func assigneeRecipients(assignee *models.StatusOption) notify.Recipients {
	var rcpt notify.Recipients
	if assignee.NotifyEmail && assignee.Email != "" {
		rcpt.Emails = []string{assignee.Email}
	}
	if assignee.NotifySMS && assignee.Mobile != "" {
		rcpt.Phones = []string{assignee.Mobile}
	}
	return rcpt
}
