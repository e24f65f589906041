package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finpulse/internal/cache"
	"finpulse/internal/core"
	"finpulse/internal/notify"
)

// AlertService covers the configuration and inspection surface around
// dispatch: toggling triggers, manual test alerts, and the audit trail.
type AlertService struct {
	triggers      TriggerStore
	notifications NotificationReader
	dispatcher    *notify.Dispatcher
	recipients    []string
	defs          cache.Cache[[]core.TriggerDefinition]
}

// NewAlertService builds the service. defs caches per-organization trigger
// listings and may be nil to disable caching.
func NewAlertService(triggers TriggerStore, notifications NotificationReader, dispatcher *notify.Dispatcher, recipients []string, defs cache.Cache[[]core.TriggerDefinition]) *AlertService {
	return &AlertService{
		triggers:      triggers,
		notifications: notifications,
		dispatcher:    dispatcher,
		recipients:    recipients,
		defs:          defs,
	}
}

// Definitions returns the organization's trigger configuration, seeding the
// defaults on first access.
func (s *AlertService) Definitions(ctx context.Context, orgID string) ([]core.TriggerDefinition, error) {
	if s.defs != nil {
		if defs, ok := s.defs.Get(orgID); ok {
			return defs, nil
		}
	}

	defs, err := s.triggers.DefinitionsForOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if s.defs != nil {
		s.defs.Set(orgID, defs)
	}
	return defs, nil
}

// SetEnabled toggles one trigger on or off.
func (s *AlertService) SetEnabled(ctx context.Context, orgID, triggerID string, enabled bool) error {
	if err := s.triggers.SetTriggerEnabled(ctx, orgID, triggerID, enabled); err != nil {
		return err
	}
	if s.defs != nil {
		s.defs.Delete(orgID)
	}
	return nil
}

// SendTest delivers a test alert for one trigger, bypassing evaluation.
// When recipients is empty the configured default list is used.
func (s *AlertService) SendTest(ctx context.Context, orgID, triggerID string, recipients []string) (core.DispatchResult, error) {
	def, err := s.triggers.GetDefinition(ctx, orgID, triggerID)
	if err != nil {
		return core.DispatchResult{}, fmt.Errorf("load trigger %s: %w", triggerID, err)
	}

	if len(recipients) == 0 {
		recipients = s.recipients
	}
	if len(recipients) == 0 {
		return core.DispatchResult{}, fmt.Errorf("no recipients configured for test alert")
	}

	result, err := s.dispatcher.SendTest(ctx, def, recipients)
	if err != nil {
		return core.DispatchResult{}, err
	}

	slog.InfoContext(ctx, "Test alert dispatched",
		"org_id", orgID,
		"trigger_id", triggerID,
		"sent", result.Sent(),
		"failed", result.Failed())

	return result, nil
}

// AuditTrail returns the notification records for one organization in a
// time range; triggerID may be empty to match every trigger.
func (s *AlertService) AuditTrail(ctx context.Context, orgID, triggerID string, from, to time.Time) ([]core.NotificationRecord, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, -1, 0)
	}
	return s.notifications.ListNotifications(ctx, orgID, triggerID, from, to)
}
