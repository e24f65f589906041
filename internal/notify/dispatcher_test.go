package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"finpulse/internal/core"
)

// fakeSender records sends and fails recipients without an "@".
type fakeSender struct {
	mu    sync.Mutex
	sends []string
}

func (f *fakeSender) Send(ctx context.Context, recipient, subject, body string) (string, error) {
	if !strings.Contains(recipient, "@") {
		return "", fmt.Errorf("bad address %q", recipient)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, recipient)
	return "prov-1", nil
}

type fakeAudit struct {
	mu      sync.Mutex
	records []core.NotificationRecord
	err     error
}

func (f *fakeAudit) AppendNotification(ctx context.Context, rec core.NotificationRecord) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func runwayDef() core.TriggerDefinition {
	return core.TriggerDefinition{
		TriggerID:  "low_cash_runway",
		OrgID:      "org-1",
		Name:       "Low cash runway",
		Severity:   core.SeverityHigh,
		Category:   core.CategoryFinancial,
		Enabled:    true,
		Threshold:  30,
		TemplateID: "runway_low",
	}
}

func runwayEvent() core.TriggerEvent {
	return core.TriggerEvent{
		TriggerID:        "low_cash_runway",
		OrgID:            "org-1",
		EvaluatedAt:      time.Date(2025, 6, 30, 9, 0, 0, 0, time.UTC),
		MeasuredValue:    20,
		ThresholdCrossed: 30,
	}
}

func TestDispatch_PartialFailure(t *testing.T) {
	sender := &fakeSender{}
	audit := &fakeAudit{}
	d := NewDispatcher(NewRegistry(), sender, audit, time.Second)

	recipients := []string{"a@example.com", "not-an-address", "b@example.com"}
	result, err := d.Dispatch(context.Background(), runwayEvent(), runwayDef(), recipients)
	if err != nil {
		t.Fatalf("partial failure must not be an error: %v", err)
	}

	if result.Sent() != 2 {
		t.Errorf("expected 2 sent, got %d", result.Sent())
	}
	if result.Failed() != 1 {
		t.Errorf("expected 1 failed, got %d", result.Failed())
	}
	if len(result.Records) != 3 {
		t.Fatalf("expected a record per recipient, got %d", len(result.Records))
	}

	// Every attempt lands in the audit log regardless of outcome.
	if len(audit.records) != 3 {
		t.Fatalf("expected 3 audit records, got %d", len(audit.records))
	}
	for _, rec := range result.Records {
		if rec.ID == "" {
			t.Error("record missing id")
		}
		if rec.Recipient == "not-an-address" {
			if rec.Status != core.StatusFailed || rec.ErrorText == "" {
				t.Errorf("bad recipient should be a failed record, got %+v", rec)
			}
		} else {
			if rec.Status != core.StatusSent || rec.ProviderID != "prov-1" {
				t.Errorf("good recipient should be sent, got %+v", rec)
			}
		}
	}
}

func TestDispatch_MissingTemplateIsAnError(t *testing.T) {
	d := NewDispatcher(NewRegistry(), &fakeSender{}, &fakeAudit{}, time.Second)

	def := runwayDef()
	def.TemplateID = "no_such_template"

	_, err := d.Dispatch(context.Background(), runwayEvent(), def, []string{"a@example.com"})
	if !errors.Is(err, core.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestDispatch_AuditFailureDoesNotFailSend(t *testing.T) {
	audit := &fakeAudit{err: errors.New("audit store down")}
	d := NewDispatcher(NewRegistry(), &fakeSender{}, audit, time.Second)

	result, err := d.Dispatch(context.Background(), runwayEvent(), runwayDef(), []string{"a@example.com"})
	if err != nil {
		t.Fatalf("audit failure must not fail the dispatch: %v", err)
	}
	if result.Sent() != 1 {
		t.Errorf("expected the send to succeed, got %+v", result)
	}
}

func TestSendTest_PrefixesSubject(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(NewRegistry(), sender, &fakeAudit{}, time.Second)

	result, err := d.SendTest(context.Background(), runwayDef(), []string{"a@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Sent() != 1 {
		t.Fatalf("expected 1 sent, got %+v", result)
	}
	if !strings.HasPrefix(sender.lastSubject, "[TEST] ") {
		t.Errorf("test alerts must carry the [TEST] prefix, got %q", sender.lastSubject)
	}
}

type recordingSender struct {
	mu          sync.Mutex
	lastSubject string
}

func (r *recordingSender) Send(ctx context.Context, recipient, subject, body string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSubject = subject
	return "prov-1", nil
}
