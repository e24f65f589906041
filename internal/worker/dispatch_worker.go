// Package worker consumes trigger events from the AMQP queue and drives
// notification dispatch.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finpulse/internal/amqp"
	"finpulse/internal/core"
	"finpulse/internal/notify"
	"finpulse/internal/services"
)

// DispatchWorker turns queued trigger events into notifications.
type DispatchWorker struct {
	triggers   services.TriggerStore
	dispatcher *notify.Dispatcher
	recipients []string
}

func NewDispatchWorker(triggers services.TriggerStore, dispatcher *notify.Dispatcher, recipients []string) *DispatchWorker {
	return &DispatchWorker{
		triggers:   triggers,
		dispatcher: dispatcher,
		recipients: recipients,
	}
}

// HandleTriggerEvent processes one queued event. Configuration errors
// (unknown trigger, missing template, trigger disabled since evaluation)
// return nil so the broker does not requeue a message that can never
// succeed; transient failures propagate for requeue.
func (w *DispatchWorker) HandleTriggerEvent(ctx context.Context, msg *amqp.TriggerEventMessage) error {
	def, err := w.triggers.GetDefinition(ctx, msg.OrgID, msg.TriggerID)
	if err != nil {
		if errors.Is(err, core.ErrTriggerNotFound) {
			slog.ErrorContext(ctx, "Dropping event for unknown trigger",
				"org_id", msg.OrgID, "trigger_id", msg.TriggerID)
			return nil
		}
		return fmt.Errorf("load trigger %s: %w", msg.TriggerID, err)
	}

	if !def.Enabled {
		slog.InfoContext(ctx, "Trigger disabled since evaluation, dropping event",
			"org_id", msg.OrgID, "trigger_id", msg.TriggerID)
		return nil
	}

	result, err := w.dispatcher.Dispatch(ctx, msg.Event(), def, w.recipients)
	if err != nil {
		if errors.Is(err, core.ErrTemplateNotFound) {
			slog.ErrorContext(ctx, "Dropping event with no registered template",
				"org_id", msg.OrgID, "trigger_id", msg.TriggerID,
				"template_id", def.TemplateID)
			return nil
		}
		return fmt.Errorf("dispatch %s: %w", msg.TriggerID, err)
	}

	slog.InfoContext(ctx, "Queued event dispatched",
		"org_id", msg.OrgID,
		"trigger_id", msg.TriggerID,
		"sent", result.Sent(),
		"failed", result.Failed())

	return nil
}

// Run consumes the queue until the context is cancelled.
func (w *DispatchWorker) Run(ctx context.Context, client *amqp.Client) error {
	return client.ConsumeTriggerEvents(ctx, func(msg *amqp.TriggerEventMessage) error {
		return w.HandleTriggerEvent(ctx, msg)
	})
}
