package notify

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/realtechee/platform/am"
	"github.com/realtechee/platform/dispatch"
	platformtest "github.com/realtechee/platform/internal/testing"
)

func newTestService(t *testing.T, cfg am.Notify) (*Service, *dispatch.Queue) {
	t.Helper()

	db := platformtest.CreateTestDB(t)
	queue := dispatch.NewQueue(db)
	svc, err := NewService(cfg, queue, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc, queue
}

func TestServiceSendEnqueuesPerChannel(t *testing.T) {
	svc, queue := newTestService(t, am.Notify{})

	jobIDs, err := svc.Send(context.Background(), EventLeadAdminAlert, leadPayload(), Recipients{})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	// lead.admin-alert fires on email and sms
	if len(jobIDs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobIDs))
	}

	handlers := map[string]bool{}
	for _, id := range jobIDs {
		job, err := queue.GetJob(id)
		if err != nil {
			t.Fatalf("GetJob failed: %v", err)
		}
		handlers[job.HandlerName] = true
		if job.Status != dispatch.JobStatusQueued {
			t.Errorf("expected queued job, got %s", job.Status)
		}
	}
	if !handlers[HandlerEmail] || !handlers[HandlerSMS] {
		t.Errorf("expected one email and one sms job, got %v", handlers)
	}
}

func TestServiceSendRenderFailureQueuesNothing(t *testing.T) {
	svc, queue := newTestService(t, am.Notify{})

	payload := leadPayload()
	delete(payload, "Product")

	if _, err := svc.Send(context.Background(), EventLeadAdminAlert, payload, Recipients{}); err == nil {
		t.Fatal("expected render error")
	}

	depth, err := queue.QueueDepth()
	if err != nil {
		t.Fatalf("QueueDepth failed: %v", err)
	}
	if depth != 0 {
		t.Errorf("render failure must not enqueue jobs, found %d", depth)
	}
}

func TestServiceSendRecipientOverride(t *testing.T) {
	svc, queue := newTestService(t, am.Notify{})

	jobIDs, err := svc.Send(context.Background(), EventQuoteSent, map[string]interface{}{
		"Name":        "Jordan Blake",
		"QuoteNumber": 42,
		"Title":       "Kitchen remodel",
		"Total":       "18,500",
		"QuoteURL":    "https://realtechee.com/quotes/q-42",
	}, Recipients{
		Emails: []string{"jordan@example.com"},
		Phones: []string{"+15555551234"},
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	for _, id := range jobIDs {
		job, _ := queue.GetJob(id)
		switch job.HandlerName {
		case HandlerEmail:
			var p EmailPayload
			json.Unmarshal(job.Payload, &p)
			if len(p.To) != 1 || p.To[0] != "jordan@example.com" {
				t.Errorf("expected overridden email recipient, got %v", p.To)
			}
		case HandlerSMS:
			var p SMSPayload
			json.Unmarshal(job.Payload, &p)
			if len(p.To) != 1 || p.To[0] != "+15555551234" {
				t.Errorf("expected overridden sms recipient, got %v", p.To)
			}
		}
	}
}

func TestServiceSendNoRecipients(t *testing.T) {
	// quote.sent has no default recipients; without overrides it must fail
	svc, queue := newTestService(t, am.Notify{})

	_, err := svc.Send(context.Background(), EventQuoteSent, map[string]interface{}{
		"Name":        "Jordan",
		"QuoteNumber": 1,
		"Title":       "t",
		"Total":       "1",
		"QuoteURL":    "u",
	}, Recipients{})
	if err == nil {
		t.Fatal("expected error for missing recipients")
	}

	depth, _ := queue.QueueDepth()
	if depth != 0 {
		t.Errorf("expected empty queue, found %d jobs", depth)
	}
}

func TestServiceDebugSandbox(t *testing.T) {
	svc, queue := newTestService(t, am.Notify{
		Debug:        true,
		SandboxEmail: "info@realtechee.com",
		SandboxPhone: "+15555550199",
	})

	jobIDs, err := svc.Send(context.Background(), EventLeadAck, map[string]interface{}{
		"Name":      "Jordan",
		"RequestID": "r-77",
	}, Recipients{
		Emails: []string{"jordan@example.com"},
		Phones: []string{"+15555551234"},
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	for _, id := range jobIDs {
		job, _ := queue.GetJob(id)
		switch job.HandlerName {
		case HandlerEmail:
			var p EmailPayload
			json.Unmarshal(job.Payload, &p)
			if len(p.To) != 1 || p.To[0] != "info@realtechee.com" {
				t.Errorf("debug mode should reroute email to sandbox, got %v", p.To)
			}
			if !strings.HasPrefix(p.Subject, "[TEST] ") {
				t.Errorf("debug mode should prefix subject, got %q", p.Subject)
			}
		case HandlerSMS:
			var p SMSPayload
			json.Unmarshal(job.Payload, &p)
			if len(p.To) != 1 || p.To[0] != "+15555550199" {
				t.Errorf("debug mode should reroute sms to sandbox, got %v", p.To)
			}
		}
	}
}

func TestServiceUnknownEvent(t *testing.T) {
	svc, _ := newTestService(t, am.Notify{})
	if _, err := svc.Send(context.Background(), "bogus.event", nil, Recipients{}); err == nil {
		t.Error("expected error for unknown event")
	}
}
