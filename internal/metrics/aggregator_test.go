package metrics

import (
	"testing"
	"time"

	"finpulse/internal/core"
)

var asOf = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

func tx(daysAgo int, cents int64, kind core.TransactionKind, description, category string) core.Transaction {
	return core.Transaction{
		Date:        asOf.AddDate(0, 0, -daysAgo),
		Amount:      core.Money{Cents: cents},
		Kind:        kind,
		Description: description,
		Category:    category,
	}
}

func TestComputeSnapshot_Totals(t *testing.T) {
	txs := []core.Transaction{
		tx(5, 10000, core.Revenue, "acme", "subscription"),
		tx(10, 5000, core.Revenue, "globex", "one-time"),
		tx(3, 7000, core.Expense, "aws", "infra"),
		tx(90, 2000, core.Expense, "old expense", "infra"), // outside both windows
	}

	snap := ComputeSnapshot(txs, asOf, core.Money{Cents: 100000})

	if snap.TotalRevenue.Cents != 15000 {
		t.Errorf("expected total revenue 15000, got %d", snap.TotalRevenue.Cents)
	}
	if snap.TotalExpenses.Cents != 9000 {
		t.Errorf("expected total expenses 9000, got %d", snap.TotalExpenses.Cents)
	}
	if snap.TransactionCount != 4 {
		t.Errorf("expected 4 transactions counted, got %d", snap.TransactionCount)
	}
	// Only the trailing 30 days feed the burn rate.
	if snap.MonthlyBurnRate.Cents != 7000 {
		t.Errorf("expected monthly burn 7000, got %d", snap.MonthlyBurnRate.Cents)
	}
}

func TestComputeSnapshot_MRRClassification(t *testing.T) {
	txs := []core.Transaction{
		tx(1, 10000, core.Revenue, "acme", "subscription"),
		tx(2, 4000, core.Revenue, "globex", "Monthly plan"),
		tx(3, 6000, core.Revenue, "initech", "setup fee"),
	}

	snap := ComputeSnapshot(txs, asOf, core.Money{})

	if snap.MonthlyRecurringRevenue.Cents != 14000 {
		t.Errorf("expected MRR 14000, got %d", snap.MonthlyRecurringRevenue.Cents)
	}
	if snap.OneTimeRevenue.Cents != 6000 {
		t.Errorf("expected one-time 6000, got %d", snap.OneTimeRevenue.Cents)
	}
	if snap.ActiveSubscriptionCount != 2 {
		t.Errorf("expected 2 subscriptions, got %d", snap.ActiveSubscriptionCount)
	}
}

func TestComputeSnapshot_ARPU(t *testing.T) {
	txs := []core.Transaction{
		tx(1, 10000, core.Revenue, "Acme ", "subscription"),
		tx(2, 2000, core.Revenue, "acme", "subscription"), // same customer, normalized
		tx(3, 6000, core.Revenue, "globex", "subscription"),
	}

	snap := ComputeSnapshot(txs, asOf, core.Money{})

	// Two distinct customers by normalized description, 18000 cents revenue.
	if snap.AverageRevenuePerUser.Cents != 9000 {
		t.Errorf("expected ARPU 9000, got %d", snap.AverageRevenuePerUser.Cents)
	}
}

func TestComputeSnapshot_ARPUWithNoCustomers(t *testing.T) {
	txs := []core.Transaction{
		tx(1, 5000, core.Expense, "aws", "infra"),
	}
	snap := ComputeSnapshot(txs, asOf, core.Money{})
	if snap.AverageRevenuePerUser.Cents != 0 {
		t.Errorf("expected ARPU 0 with no revenue, got %d", snap.AverageRevenuePerUser.Cents)
	}
}

func TestComputeSnapshot_GrowthRates(t *testing.T) {
	txs := []core.Transaction{
		tx(40, 10000, core.Revenue, "acme", "subscription"), // prior window
		tx(5, 15000, core.Revenue, "acme", "subscription"),  // current window
	}

	snap := ComputeSnapshot(txs, asOf, core.Money{})

	if snap.RevenueGrowthRate != 50 {
		t.Errorf("expected 50%% revenue growth, got %v", snap.RevenueGrowthRate)
	}
	if snap.MRRGrowthRate != 50 {
		t.Errorf("expected 50%% MRR growth, got %v", snap.MRRGrowthRate)
	}
}

func TestComputeSnapshot_ZeroPriorPeriodGrowthIsZero(t *testing.T) {
	txs := []core.Transaction{
		tx(5, 15000, core.Revenue, "acme", "subscription"),
	}

	snap := ComputeSnapshot(txs, asOf, core.Money{})

	if snap.RevenueGrowthRate != 0 {
		t.Errorf("growth with empty prior period must be 0, got %v", snap.RevenueGrowthRate)
	}
	if snap.MRRGrowthRate != 0 {
		t.Errorf("MRR growth with empty prior period must be 0, got %v", snap.MRRGrowthRate)
	}
	if snap.SubscriptionGrowthRate != 0 {
		t.Errorf("subscription growth with empty prior period must be 0, got %v", snap.SubscriptionGrowthRate)
	}
}

func TestComputeSnapshot_Runway(t *testing.T) {
	t.Run("positive net burn", func(t *testing.T) {
		txs := []core.Transaction{
			tx(5, 30000, core.Expense, "aws", "infra"), // daily burn 1000
		}
		snap := ComputeSnapshot(txs, asOf, core.Money{Cents: 100000})

		if snap.NetDailyBurn.Cents != 1000 {
			t.Fatalf("expected net daily burn 1000, got %d", snap.NetDailyBurn.Cents)
		}
		if snap.RunwayDays != 100 {
			t.Errorf("expected 100 runway days, got %d", snap.RunwayDays)
		}
		wantDate := asOf.AddDate(0, 0, 100)
		if !snap.ProjectedDepletionDate.Equal(wantDate) {
			t.Errorf("expected depletion %v, got %v", wantDate, snap.ProjectedDepletionDate)
		}
	})

	t.Run("profitable org gets the sentinel", func(t *testing.T) {
		txs := []core.Transaction{
			tx(5, 30000, core.Revenue, "acme", "subscription"),
			tx(6, 10000, core.Expense, "aws", "infra"),
		}
		snap := ComputeSnapshot(txs, asOf, core.Money{Cents: 100000})

		if snap.RunwayDays != RunwayDaysCap {
			t.Errorf("expected runway cap %d, got %d", RunwayDaysCap, snap.RunwayDays)
		}
		if snap.RunwayMonths != RunwayMonthsCap {
			t.Errorf("expected runway months cap %v, got %v", float64(RunwayMonthsCap), snap.RunwayMonths)
		}
	})

	t.Run("long runway is capped", func(t *testing.T) {
		txs := []core.Transaction{
			tx(5, 30, core.Expense, "tiny", "infra"), // daily burn 1 cent
		}
		snap := ComputeSnapshot(txs, asOf, core.Money{Cents: 1000000})
		if snap.RunwayDays != RunwayDaysCap {
			t.Errorf("expected capped runway, got %d", snap.RunwayDays)
		}
	})
}

func TestComputeSnapshot_Deterministic(t *testing.T) {
	txs := []core.Transaction{
		tx(1, 10000, core.Revenue, "acme", "subscription"),
		tx(40, 8000, core.Revenue, "acme", "subscription"),
		tx(3, 7000, core.Expense, "aws", "infra"),
	}
	cash := core.Money{Cents: 50000}

	first := ComputeSnapshot(txs, asOf, cash)
	second := ComputeSnapshot(txs, asOf, cash)

	if first != second {
		t.Error("identical inputs must produce identical snapshots")
	}
}

func TestComputeSnapshot_EmptyHistory(t *testing.T) {
	snap := ComputeSnapshot(nil, asOf, core.Money{Cents: 100000})

	if snap.TransactionCount != 0 {
		t.Errorf("expected 0 transactions, got %d", snap.TransactionCount)
	}
	if snap.RunwayDays != RunwayDaysCap {
		t.Errorf("no burn means capped runway, got %d", snap.RunwayDays)
	}
	if snap.RevenueGrowthRate != 0 || snap.MRRGrowthRate != 0 {
		t.Error("growth rates must be zero on empty history")
	}
}
