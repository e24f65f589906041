// Package metrics derives a point-in-time financial snapshot from a
// transaction history.
//
// ComputeSnapshot is a pure function: identical inputs always yield an
// identical snapshot. Every division is guarded, so growth rates and runway
// are always defined numbers.
package metrics

import (
	"math"
	"strings"
	"time"

	"finpulse/internal/core"
)

// daysPerMonth approximates a calendar month with a fixed 30-day window.
// Alert thresholds were tuned against this approximation; do not replace it
// with calendar-accurate month lengths.
const daysPerMonth = 30

// Runway is capped at a finite sentinel when net burn is zero or negative,
// keeping downstream math and serialization well-defined.
const (
	RunwayDaysCap   = 3650
	RunwayMonthsCap = 120
)

// recurringKeywords classify a transaction category as recurring revenue.
// Matching is a case-insensitive substring test.
var recurringKeywords = []string{"subscription", "recurring", "monthly", "saas"}

// ComputeSnapshot aggregates the full transaction history as of the given
// instant. cash is the externally maintained current balance; it is not
// derived from the transaction set.
func ComputeSnapshot(txs []core.Transaction, asOf time.Time, cash core.Money) core.FinancialSnapshot {
	currentStart := asOf.AddDate(0, 0, -daysPerMonth)
	previousStart := asOf.AddDate(0, 0, -2*daysPerMonth)

	var (
		totalRevenue, totalExpenses int64

		curRevenue, curExpenses, curMRR int64
		curSubscriptions                int

		prevRevenue, prevMRR int64
		prevSubscriptions    int
	)
	customers := make(map[string]struct{})

	for _, tx := range txs {
		switch tx.Kind {
		case core.Revenue:
			totalRevenue += tx.Amount.Cents
		case core.Expense:
			totalExpenses += tx.Amount.Cents
		}

		inCurrent := inWindow(tx.Date, currentStart, asOf)
		inPrevious := inWindow(tx.Date, previousStart, currentStart)
		if !inCurrent && !inPrevious {
			continue
		}

		recurring := isRecurring(tx.Category)
		switch tx.Kind {
		case core.Revenue:
			if inCurrent {
				curRevenue += tx.Amount.Cents
				if recurring {
					curMRR += tx.Amount.Cents
					curSubscriptions++
				}
				if key := customerKey(tx.Description); key != "" {
					customers[key] = struct{}{}
				}
			} else {
				prevRevenue += tx.Amount.Cents
				if recurring {
					prevMRR += tx.Amount.Cents
					prevSubscriptions++
				}
			}
		case core.Expense:
			if inCurrent {
				curExpenses += tx.Amount.Cents
			}
		}
	}

	oneTime := curRevenue - curMRR
	if oneTime < 0 {
		oneTime = 0
	}

	var arpu int64
	if len(customers) > 0 {
		arpu = curRevenue / int64(len(customers))
	}

	dailyBurn := curExpenses / daysPerMonth
	dailyRevenue := curRevenue / daysPerMonth
	netDailyBurn := dailyBurn - dailyRevenue

	runwayDays := RunwayDaysCap
	runwayMonths := float64(RunwayMonthsCap)
	if netDailyBurn > 0 {
		runwayDays = int(math.Floor(float64(cash.Cents) / float64(netDailyBurn)))
		if runwayDays > RunwayDaysCap {
			runwayDays = RunwayDaysCap
		}
		if runwayDays < 0 {
			runwayDays = 0
		}
		runwayMonths = float64(runwayDays) / daysPerMonth
	}

	return core.FinancialSnapshot{
		CalculatedAt: asOf,

		TotalRevenue:  core.Money{Cents: totalRevenue},
		TotalExpenses: core.Money{Cents: totalExpenses},

		MonthlyRecurringRevenue: core.Money{Cents: curMRR},
		OneTimeRevenue:          core.Money{Cents: oneTime},
		ActiveSubscriptionCount: curSubscriptions,
		AverageRevenuePerUser:   core.Money{Cents: arpu},

		RevenueGrowthRate:      growthRate(float64(curRevenue), float64(prevRevenue)),
		MRRGrowthRate:          growthRate(float64(curMRR), float64(prevMRR)),
		SubscriptionGrowthRate: growthRate(float64(curSubscriptions), float64(prevSubscriptions)),

		MonthlyBurnRate: core.Money{Cents: curExpenses},
		DailyBurnRate:   core.Money{Cents: dailyBurn},
		DailyRevenue:    core.Money{Cents: dailyRevenue},
		NetDailyBurn:    core.Money{Cents: netDailyBurn},

		RunwayDays:             runwayDays,
		RunwayMonths:           runwayMonths,
		ProjectedDepletionDate: asOf.AddDate(0, 0, runwayDays),

		TransactionCount: len(txs),
	}
}

// growthRate returns the percentage change from prev to cur. A missing or
// zero prior period yields 0, never NaN or an infinity.
func growthRate(cur, prev float64) float64 {
	if prev == 0 {
		return 0
	}
	return (cur - prev) / prev * 100
}

// inWindow reports start < t <= end.
func inWindow(t, start, end time.Time) bool {
	return t.After(start) && !t.After(end)
}

func isRecurring(category string) bool {
	c := strings.ToLower(category)
	for _, kw := range recurringKeywords {
		if strings.Contains(c, kw) {
			return true
		}
	}
	return false
}

// customerKey is the distinct-customer proxy used for ARPU: the normalized
// description field. Transaction descriptions stand in for customer
// identity; this approximation is deliberate.
func customerKey(description string) string {
	return strings.ToLower(strings.TrimSpace(description))
}
