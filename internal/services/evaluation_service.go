package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finpulse/internal/amqp"
	"finpulse/internal/core"
	"finpulse/internal/metrics"
	"finpulse/internal/notify"
	"finpulse/internal/rules"
)

// EvaluationService runs one evaluation cycle for an organization: compute
// the snapshot, persist it, evaluate the trigger rules and hand fired
// events to dispatch. It has no scheduler; callers decide when to invoke it.
type EvaluationService struct {
	transactions TransactionStore
	snapshots    SnapshotStore
	triggers     TriggerStore
	evaluator    *rules.Evaluator
	dispatcher   *notify.Dispatcher
	publisher    EventPublisher
	recipients   []string
}

func NewEvaluationService(
	transactions TransactionStore,
	snapshots SnapshotStore,
	triggers TriggerStore,
	evaluator *rules.Evaluator,
	dispatcher *notify.Dispatcher,
	publisher EventPublisher,
	recipients []string,
) *EvaluationService {
	return &EvaluationService{
		transactions: transactions,
		snapshots:    snapshots,
		triggers:     triggers,
		evaluator:    evaluator,
		dispatcher:   dispatcher,
		publisher:    publisher,
		recipients:   recipients,
	}
}

// EvaluationResult is one cycle's outcome. RuleErrors holds per-trigger
// failures that did not stop the rest of the evaluation.
type EvaluationResult struct {
	Snapshot   core.FinancialSnapshot
	Events     []core.TriggerEvent
	RuleErrors []error
	Dispatches []core.DispatchResult
}

// Run executes one evaluation cycle. cash is the externally maintained
// balance and asOf the evaluation instant; rerunning with identical inputs
// is idempotent except for the milestone ladder and the notification log.
func (s *EvaluationService) Run(ctx context.Context, orgID string, asOf time.Time, cash core.Money, signals rules.Signals) (EvaluationResult, error) {
	txs, err := s.transactions.ListTransactions(ctx, orgID)
	if err != nil {
		return EvaluationResult{}, fmt.Errorf("load transactions: %w", err)
	}

	snap := metrics.ComputeSnapshot(txs, asOf, cash)
	snap.OrgID = orgID

	if err := s.snapshots.SaveSnapshot(ctx, snap); err != nil {
		return EvaluationResult{}, fmt.Errorf("save snapshot: %w", err)
	}

	defs, err := s.triggers.DefinitionsForOrg(ctx, orgID)
	if err != nil {
		return EvaluationResult{}, fmt.Errorf("load trigger definitions: %w", err)
	}

	events, ruleErrs := s.evaluator.Evaluate(ctx, snap, defs, signals)

	result := EvaluationResult{
		Snapshot:   snap,
		Events:     events,
		RuleErrors: ruleErrs,
	}

	defsByID := make(map[string]core.TriggerDefinition, len(defs))
	for _, def := range defs {
		defsByID[def.TriggerID] = def
	}

	for _, event := range events {
		dispatch, err := s.deliver(ctx, event, defsByID)
		if err != nil {
			result.RuleErrors = append(result.RuleErrors, err)
			continue
		}
		if dispatch != nil {
			result.Dispatches = append(result.Dispatches, *dispatch)
		}
	}

	slog.InfoContext(ctx, "Evaluation cycle complete",
		"org_id", orgID,
		"events", len(events),
		"rule_errors", len(result.RuleErrors),
		"runway_days", snap.RunwayDays)

	return result, nil
}

// deliver routes one event to the dispatch queue, falling back to inline
// dispatch when the queue is unavailable. An alert being generated must not
// depend on the side channel being healthy.
func (s *EvaluationService) deliver(ctx context.Context, event core.TriggerEvent, defsByID map[string]core.TriggerDefinition) (*core.DispatchResult, error) {
	if s.publisher != nil {
		if err := s.publisher.PublishTriggerEvent(ctx, amqp.NewTriggerEventMessage(event)); err == nil {
			return nil, nil
		} else {
			slog.WarnContext(ctx, "Failed to publish trigger event, dispatching inline",
				"trigger_id", event.TriggerID, "error", err)
		}
	}

	if s.dispatcher == nil || len(s.recipients) == 0 {
		slog.WarnContext(ctx, "No dispatch path configured, dropping event",
			"trigger_id", event.TriggerID, "org_id", event.OrgID)
		return nil, nil
	}

	def, ok := defsByID[event.TriggerID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", event.TriggerID, core.ErrTriggerNotFound)
	}

	dispatch, err := s.dispatcher.Dispatch(ctx, event, def, s.recipients)
	if err != nil {
		return nil, err
	}
	return &dispatch, nil
}
