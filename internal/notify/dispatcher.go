// Package notify renders trigger events and drives deduplicated,
// per-recipient notification dispatch with audit logging.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"finpulse/internal/core"
)

// Sender is the outbound transport port. The concrete transport (Gmail,
// memory, whatever else) lives outside this package.
type Sender interface {
	Send(ctx context.Context, recipient, subject, body string) (providerID string, err error)
}

// AuditLog receives one record per send attempt, success or failure.
type AuditLog interface {
	AppendNotification(ctx context.Context, rec core.NotificationRecord) error
}

// Dispatcher fans an event out to its recipients. Each recipient is
// independent: one failure never blocks the others, and every attempt is
// logged before Dispatch returns.
type Dispatcher struct {
	registry    *Registry
	sender      Sender
	audit       AuditLog
	sendTimeout time.Duration
}

func NewDispatcher(registry *Registry, sender Sender, audit AuditLog, sendTimeout time.Duration) *Dispatcher {
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	return &Dispatcher{
		registry:    registry,
		sender:      sender,
		audit:       audit,
		sendTimeout: sendTimeout,
	}
}

// Dispatch renders the event's template and sends to each recipient
// concurrently. A missing template for an enabled trigger is a
// configuration error and the only way Dispatch fails outright; transport
// failures are recorded in the result instead.
func (d *Dispatcher) Dispatch(ctx context.Context, event core.TriggerEvent, def core.TriggerDefinition, recipients []string) (core.DispatchResult, error) {
	subject, body, err := d.registry.Render(def.TemplateID, def, event)
	if err != nil {
		return core.DispatchResult{}, fmt.Errorf("trigger %s: %w", def.TriggerID, err)
	}
	return d.fanOut(ctx, event.OrgID, def, recipients, subject, body), nil
}

// SendTest delivers a test alert for one trigger, bypassing evaluation.
// It reuses the render, send and audit paths, so a test exercises the same
// configuration a real event would.
func (d *Dispatcher) SendTest(ctx context.Context, def core.TriggerDefinition, recipients []string) (core.DispatchResult, error) {
	event := core.TriggerEvent{
		TriggerID:        def.TriggerID,
		OrgID:            def.OrgID,
		EvaluatedAt:      time.Now().UTC(),
		MeasuredValue:    def.Threshold,
		ThresholdCrossed: def.Threshold,
	}
	subject, body, err := d.registry.Render(def.TemplateID, def, event)
	if err != nil {
		return core.DispatchResult{}, fmt.Errorf("trigger %s: %w", def.TriggerID, err)
	}
	subject = "[TEST] " + subject
	return d.fanOut(ctx, def.OrgID, def, recipients, subject, body), nil
}

func (d *Dispatcher) fanOut(ctx context.Context, orgID string, def core.TriggerDefinition, recipients []string, subject, body string) core.DispatchResult {
	records := make([]core.NotificationRecord, len(recipients))

	var g errgroup.Group
	for i, recipient := range recipients {
		g.Go(func() error {
			records[i] = d.sendOne(ctx, orgID, def, recipient, subject, body)
			return nil
		})
	}
	// Workers never return errors; failures land in their records.
	_ = g.Wait()

	return core.DispatchResult{Records: records}
}

func (d *Dispatcher) sendOne(ctx context.Context, orgID string, def core.TriggerDefinition, recipient, subject, body string) core.NotificationRecord {
	rec := core.NotificationRecord{
		ID:         uuid.NewString(),
		OrgID:      orgID,
		TriggerID:  def.TriggerID,
		Recipient:  recipient,
		TemplateID: def.TemplateID,
		SentAt:     time.Now().UTC(),
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	providerID, err := d.sender.Send(sendCtx, recipient, subject, body)
	if err != nil {
		rec.Status = core.StatusFailed
		rec.ErrorText = err.Error()
		slog.WarnContext(ctx, "Notification send failed",
			"trigger_id", def.TriggerID, "recipient", recipient, "error", err)
	} else {
		rec.Status = core.StatusSent
		rec.ProviderID = providerID
	}

	// Each attempt is logged on its own so a partial failure cannot drop
	// the successful records.
	if err := d.audit.AppendNotification(ctx, rec); err != nil {
		slog.ErrorContext(ctx, "Failed to append notification audit record",
			"trigger_id", def.TriggerID, "recipient", recipient, "error", err)
	}

	return rec
}
