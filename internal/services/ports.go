package services

import (
	"context"
	"time"

	"finpulse/internal/amqp"
	"finpulse/internal/core"
)

// Narrow store ports consumed by the services. The SQLite repository
// satisfies all of them; tests substitute in-memory fakes.
type (
	TransactionStore interface {
		InsertTransactions(ctx context.Context, txs []core.Transaction) error
		ListTransactions(ctx context.Context, orgID string) ([]core.Transaction, error)
	}

	SnapshotStore interface {
		SaveSnapshot(ctx context.Context, snap core.FinancialSnapshot) error
		LatestSnapshots(ctx context.Context, orgID string, limit int) ([]core.FinancialSnapshot, error)
	}

	TriggerStore interface {
		DefinitionsForOrg(ctx context.Context, orgID string) ([]core.TriggerDefinition, error)
		GetDefinition(ctx context.Context, orgID, triggerID string) (core.TriggerDefinition, error)
		SetTriggerEnabled(ctx context.Context, orgID, triggerID string, enabled bool) error
	}

	NotificationReader interface {
		ListNotifications(ctx context.Context, orgID, triggerID string, from, to time.Time) ([]core.NotificationRecord, error)
	}

	// EventPublisher hands fired events to the dispatch queue. A nil
	// publisher means dispatch happens inline.
	EventPublisher interface {
		PublishTriggerEvent(ctx context.Context, msg *amqp.TriggerEventMessage) error
	}
)
