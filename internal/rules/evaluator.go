// Package rules evaluates a financial snapshot against configurable trigger
// definitions and produces trigger events.
//
// The evaluator is stateless apart from the milestone ladder, which lives
// behind the MilestoneStore port so a rung can fire at most once per
// (organization, metric) even under concurrent evaluation. One trigger's
// failure never aborts the remaining triggers; errors are collected and
// returned alongside the events that did evaluate.
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"finpulse/internal/core"
)

// MilestoneStore persists the last-achieved rung per (org, metric).
// AdvanceRung must be atomic: it succeeds only when the stored rung still
// equals prev, so concurrent evaluations cannot fire the same rung twice.
type MilestoneStore interface {
	LastRung(ctx context.Context, orgID, metric string) (int64, error)
	AdvanceRung(ctx context.Context, orgID, metric string, rung, prev int64) (bool, error)
}

// Signals are externally supplied measurements the snapshot cannot carry.
// Nil pointer or zero time means the signal is unavailable; the matching
// trigger is skipped without error.
type Signals struct {
	ChurnRatePct          *float64
	PaymentFailureRatePct *float64
	CancellationSpikePct  *float64
	LastGatewaySync       time.Time
	LastDataSync          time.Time
}

// Ladder rungs. Revenue rungs are dollars; customer rungs are counts.
var (
	revenueRungs  = []int64{1_000, 5_000, 10_000, 25_000, 50_000, 100_000, 250_000, 500_000, 1_000_000}
	customerRungs = []int64{10, 25, 50, 100, 250, 500, 1_000, 2_500, 5_000, 10_000}
)

type Evaluator struct {
	milestones MilestoneStore
}

func NewEvaluator(milestones MilestoneStore) *Evaluator {
	return &Evaluator{milestones: milestones}
}

// Evaluate checks every enabled definition against the snapshot and returns
// the events that fired. The error slice holds per-trigger failures; a
// non-empty slice does not invalidate the returned events.
func (e *Evaluator) Evaluate(ctx context.Context, snap core.FinancialSnapshot, defs []core.TriggerDefinition, signals Signals) ([]core.TriggerEvent, []error) {
	var (
		events  []core.TriggerEvent
		errs    []error
		enabled = make(map[string]core.TriggerDefinition, len(defs))
	)
	for _, def := range defs {
		if def.Enabled {
			enabled[def.TriggerID] = def
		}
	}

	if ev := evaluateRunwayBands(snap, enabled); ev != nil {
		events = append(events, *ev)
	}

	for _, check := range []struct {
		id  string
		fn  func(core.TriggerDefinition) *core.TriggerEvent
		err func(core.TriggerDefinition) (*core.TriggerEvent, error)
	}{
		{id: TriggerRevenueMilestone, err: func(def core.TriggerDefinition) (*core.TriggerEvent, error) {
			return e.evaluateMilestone(ctx, snap, def, MetricTotalRevenue, snap.TotalRevenue.Cents/100, revenueRungs)
		}},
		{id: TriggerCustomerMilestone, err: func(def core.TriggerDefinition) (*core.TriggerEvent, error) {
			return e.evaluateMilestone(ctx, snap, def, MetricCustomerCount, int64(snap.ActiveSubscriptionCount), customerRungs)
		}},
		{id: TriggerMRRGrowthNegative, fn: func(def core.TriggerDefinition) *core.TriggerEvent {
			if snap.MRRGrowthRate >= def.Threshold {
				return nil
			}
			return newEvent(snap, def, snap.MRRGrowthRate, nil)
		}},
		{id: TriggerChurnSpike, fn: func(def core.TriggerDefinition) *core.TriggerEvent {
			return aboveThreshold(snap, def, signals.ChurnRatePct)
		}},
		{id: TriggerPaymentFailureRate, fn: func(def core.TriggerDefinition) *core.TriggerEvent {
			return aboveThreshold(snap, def, signals.PaymentFailureRatePct)
		}},
		{id: TriggerCancellationSpike, fn: func(def core.TriggerDefinition) *core.TriggerEvent {
			return aboveThreshold(snap, def, signals.CancellationSpikePct)
		}},
		{id: TriggerIntegrationStale, fn: func(def core.TriggerDefinition) *core.TriggerEvent {
			return staleSince(snap, def, signals.LastGatewaySync)
		}},
		{id: TriggerDataSyncStale, fn: func(def core.TriggerDefinition) *core.TriggerEvent {
			return staleSince(snap, def, signals.LastDataSync)
		}},
	} {
		def, ok := enabled[check.id]
		if !ok {
			continue
		}
		var (
			ev  *core.TriggerEvent
			err error
		)
		if check.err != nil {
			ev, err = check.err(def)
		} else {
			ev = check.fn(def)
		}
		if err != nil {
			slog.WarnContext(ctx, "Trigger evaluation failed",
				"trigger_id", check.id, "org_id", snap.OrgID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", check.id, err))
			continue
		}
		if ev != nil {
			events = append(events, *ev)
		}
	}

	return events, errs
}

// evaluateRunwayBands partitions the runway axis into disjoint bands built
// from the enabled runway triggers, sorted by threshold ascending. The
// first band whose upper edge covers the measured runway wins, so at most
// one runway trigger fires per evaluation by construction.
func evaluateRunwayBands(snap core.FinancialSnapshot, enabled map[string]core.TriggerDefinition) *core.TriggerEvent {
	type band struct {
		def core.TriggerDefinition
		max float64
	}
	var bands []band
	for _, id := range []string{TriggerCriticalCashRunway, TriggerLowCashRunway} {
		if def, ok := enabled[id]; ok {
			bands = append(bands, band{def: def, max: def.Threshold})
		}
	}
	sort.Slice(bands, func(i, j int) bool { return bands[i].max < bands[j].max })

	days := float64(snap.RunwayDays)
	for _, b := range bands {
		if days <= b.max {
			return newEvent(snap, b.def, days, nil)
		}
	}
	return nil
}

// evaluateMilestone fires when the metric sits on or above a rung that has
// not been recorded yet, then advances the stored rung so repeated
// evaluation at the same level stays silent.
func (e *Evaluator) evaluateMilestone(ctx context.Context, snap core.FinancialSnapshot, def core.TriggerDefinition, metric string, value int64, rungs []int64) (*core.TriggerEvent, error) {
	last, err := e.milestones.LastRung(ctx, snap.OrgID, metric)
	if err != nil {
		return nil, fmt.Errorf("last rung: %w", err)
	}

	var crossed int64
	for _, rung := range rungs {
		if rung <= last || rung > value {
			continue
		}
		crossed = rung
	}
	if crossed == 0 {
		return nil, nil
	}

	advanced, err := e.milestones.AdvanceRung(ctx, snap.OrgID, metric, crossed, last)
	if err != nil {
		return nil, fmt.Errorf("advance rung: %w", err)
	}
	if !advanced {
		// Lost the race to a concurrent evaluation; that one fired.
		return nil, nil
	}

	prev := float64(last)
	ev := newEvent(snap, def, float64(value), &prev)
	ev.ThresholdCrossed = float64(crossed)
	return ev, nil
}

func aboveThreshold(snap core.FinancialSnapshot, def core.TriggerDefinition, measured *float64) *core.TriggerEvent {
	if measured == nil || *measured <= def.Threshold {
		return nil
	}
	return newEvent(snap, def, *measured, nil)
}

// staleSince fires when the last sync is older than the definition's
// threshold, expressed in hours.
func staleSince(snap core.FinancialSnapshot, def core.TriggerDefinition, last time.Time) *core.TriggerEvent {
	if last.IsZero() {
		return nil
	}
	ageHours := snap.CalculatedAt.Sub(last).Hours()
	if ageHours <= def.Threshold {
		return nil
	}
	return newEvent(snap, def, ageHours, nil)
}

func newEvent(snap core.FinancialSnapshot, def core.TriggerDefinition, measured float64, previous *float64) *core.TriggerEvent {
	return &core.TriggerEvent{
		TriggerID:        def.TriggerID,
		OrgID:            snap.OrgID,
		EvaluatedAt:      snap.CalculatedAt,
		MeasuredValue:    measured,
		PreviousValue:    previous,
		ThresholdCrossed: def.Threshold,
	}
}
