package services

import (
	"context"
	"sync"
	"time"

	"finpulse/internal/amqp"
	"finpulse/internal/core"
	"finpulse/internal/rules"
)

// In-memory store fakes shared across the service tests. Each implements
// exactly the port its test needs; unused methods stay trivial.

type fakeTransactionStore struct {
	mu        sync.Mutex
	txs       []core.Transaction
	insertErr error
	listErr   error
}

func (f *fakeTransactionStore) InsertTransactions(ctx context.Context, txs []core.Transaction) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs = append(f.txs, txs...)
	return nil
}

func (f *fakeTransactionStore) ListTransactions(ctx context.Context, orgID string) ([]core.Transaction, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Transaction
	for _, tx := range f.txs {
		if tx.OrgID == orgID {
			out = append(out, tx)
		}
	}
	return out, nil
}

type fakeSnapshotStore struct {
	mu    sync.Mutex
	saved []core.FinancialSnapshot
}

func (f *fakeSnapshotStore) SaveSnapshot(ctx context.Context, snap core.FinancialSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, snap)
	return nil
}

func (f *fakeSnapshotStore) LatestSnapshots(ctx context.Context, orgID string, limit int) ([]core.FinancialSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.FinancialSnapshot
	for i := len(f.saved) - 1; i >= 0 && len(out) < limit; i-- {
		if f.saved[i].OrgID == orgID {
			out = append(out, f.saved[i])
		}
	}
	return out, nil
}

type fakeTriggerStore struct {
	mu    sync.Mutex
	defs  map[string]core.TriggerDefinition
	calls int
}

func newFakeTriggerStore(defs ...core.TriggerDefinition) *fakeTriggerStore {
	f := &fakeTriggerStore{defs: make(map[string]core.TriggerDefinition)}
	for _, def := range defs {
		f.defs[def.TriggerID] = def
	}
	return f
}

func (f *fakeTriggerStore) DefinitionsForOrg(ctx context.Context, orgID string) ([]core.TriggerDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make([]core.TriggerDefinition, 0, len(f.defs))
	for _, def := range f.defs {
		out = append(out, def)
	}
	return out, nil
}

func (f *fakeTriggerStore) GetDefinition(ctx context.Context, orgID, triggerID string) (core.TriggerDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	def, ok := f.defs[triggerID]
	if !ok {
		return core.TriggerDefinition{}, core.ErrTriggerNotFound
	}
	return def, nil
}

func (f *fakeTriggerStore) SetTriggerEnabled(ctx context.Context, orgID, triggerID string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	def, ok := f.defs[triggerID]
	if !ok {
		return core.ErrTriggerNotFound
	}
	def.Enabled = enabled
	f.defs[triggerID] = def
	return nil
}

type fakeNotificationStore struct {
	mu      sync.Mutex
	records []core.NotificationRecord
}

func (f *fakeNotificationStore) AppendNotification(ctx context.Context, rec core.NotificationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeNotificationStore) ListNotifications(ctx context.Context, orgID, triggerID string, from, to time.Time) ([]core.NotificationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.NotificationRecord
	for _, rec := range f.records {
		if rec.OrgID != orgID {
			continue
		}
		if triggerID != "" && rec.TriggerID != triggerID {
			continue
		}
		if rec.SentAt.Before(from) || rec.SentAt.After(to) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

type fakeMilestoneStore struct {
	mu    sync.Mutex
	rungs map[string]int64
}

func newFakeMilestoneStore() *fakeMilestoneStore {
	return &fakeMilestoneStore{rungs: make(map[string]int64)}
}

func (f *fakeMilestoneStore) LastRung(ctx context.Context, orgID, metric string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rungs[orgID+"/"+metric], nil
}

func (f *fakeMilestoneStore) AdvanceRung(ctx context.Context, orgID, metric string, rung, prev int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := orgID + "/" + metric
	if f.rungs[key] != prev {
		return false, nil
	}
	f.rungs[key] = rung
	return true, nil
}

var _ rules.MilestoneStore = (*fakeMilestoneStore)(nil)

type fakePublisher struct {
	mu       sync.Mutex
	messages []*amqp.TriggerEventMessage
	err      error
}

func (f *fakePublisher) PublishTriggerEvent(ctx context.Context, msg *amqp.TriggerEventMessage) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}
