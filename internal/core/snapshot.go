package core

import "time"

// FinancialSnapshot is the point-in-time aggregate of financial metrics for
// one organization. Created by the metrics aggregator; never mutated after
// creation. Growth rates are percentages and always defined (0 when the
// prior period is absent or zero). Runway fields are always finite.
type FinancialSnapshot struct {
	OrgID        string
	CalculatedAt time.Time

	TotalRevenue  Money
	TotalExpenses Money

	MonthlyRecurringRevenue Money
	OneTimeRevenue          Money
	ActiveSubscriptionCount int
	AverageRevenuePerUser   Money

	RevenueGrowthRate      float64
	MRRGrowthRate          float64
	SubscriptionGrowthRate float64

	MonthlyBurnRate Money
	DailyBurnRate   Money
	DailyRevenue    Money
	NetDailyBurn    Money

	RunwayDays             int
	RunwayMonths           float64
	ProjectedDepletionDate time.Time

	TransactionCount int
}
