package rules

import "finpulse/internal/core"

// Trigger ids are stable keys; renaming one orphans its per-org
// configuration rows.
const (
	TriggerCriticalCashRunway = "critical_cash_runway"
	TriggerLowCashRunway      = "low_cash_runway"
	TriggerRevenueMilestone   = "revenue_milestone"
	TriggerMRRGrowthNegative  = "mrr_growth_negative"
	TriggerCustomerMilestone  = "customer_milestone"
	TriggerChurnSpike         = "churn_spike"
	TriggerCancellationSpike  = "cancellation_spike"
	TriggerPaymentFailureRate = "payment_failure_rate"
	TriggerIntegrationStale   = "integration_stale"
	TriggerDataSyncStale      = "data_sync_stale"
)

// Milestone metric names used as the milestone_state key.
const (
	MetricTotalRevenue  = "total_revenue"
	MetricCustomerCount = "customer_count"
)

// DefaultDefinitions returns the fixed ten-trigger set seeded per
// organization on first access. Thresholds are starting configuration, not
// behavior: runway bands and rate limits are read back from the stored rows
// at evaluation time.
//
// The runway defaults use the 15-day critical / 30-day low framing. The
// reference configuration also circulated a 30/7 framing for the same pair;
// the two were never reconciled, so whichever an organization wants is a
// threshold edit, not a code change.
func DefaultDefinitions(orgID string) []core.TriggerDefinition {
	return []core.TriggerDefinition{
		{
			TriggerID:   TriggerCriticalCashRunway,
			OrgID:       orgID,
			Name:        "Critical cash runway",
			Description: "Projected cash runway has dropped below the critical band.",
			Category:    core.CategoryFinancial,
			Severity:    core.SeverityCritical,
			Enabled:     true,
			Threshold:   15, // days
			TemplateID:  "runway_critical",
		},
		{
			TriggerID:   TriggerLowCashRunway,
			OrgID:       orgID,
			Name:        "Low cash runway",
			Description: "Projected cash runway has dropped below the warning band.",
			Category:    core.CategoryFinancial,
			Severity:    core.SeverityHigh,
			Enabled:     true,
			Threshold:   30, // days
			TemplateID:  "runway_low",
		},
		{
			TriggerID:   TriggerRevenueMilestone,
			OrgID:       orgID,
			Name:        "Revenue milestone",
			Description: "Total revenue crossed a milestone rung.",
			Category:    core.CategoryFinancial,
			Severity:    core.SeverityLow,
			Enabled:     true,
			TemplateID:  "revenue_milestone",
		},
		{
			TriggerID:   TriggerMRRGrowthNegative,
			OrgID:       orgID,
			Name:        "Negative MRR growth",
			Description: "Monthly recurring revenue shrank versus the prior period.",
			Category:    core.CategoryFinancial,
			Severity:    core.SeverityMedium,
			Enabled:     true,
			Threshold:   0, // percent; fires below this
			TemplateID:  "mrr_negative",
		},
		{
			TriggerID:   TriggerCustomerMilestone,
			OrgID:       orgID,
			Name:        "Customer milestone",
			Description: "Active subscription count crossed a milestone rung.",
			Category:    core.CategoryUser,
			Severity:    core.SeverityLow,
			Enabled:     true,
			TemplateID:  "customer_milestone",
		},
		{
			TriggerID:   TriggerChurnSpike,
			OrgID:       orgID,
			Name:        "Churn rate spike",
			Description: "Customer churn rate exceeded its limit.",
			Category:    core.CategoryUser,
			Severity:    core.SeverityHigh,
			Enabled:     true,
			Threshold:   5, // percent
			TemplateID:  "churn_spike",
		},
		{
			TriggerID:   TriggerCancellationSpike,
			OrgID:       orgID,
			Name:        "Cancellation spike",
			Description: "Week-over-week cancellations exceeded the spike limit.",
			Category:    core.CategoryUser,
			Severity:    core.SeverityMedium,
			Enabled:     false,
			Threshold:   50, // percent week-over-week
			TemplateID:  "cancellation_spike",
		},
		{
			TriggerID:   TriggerPaymentFailureRate,
			OrgID:       orgID,
			Name:        "Payment failure rate",
			Description: "Share of failed payment attempts exceeded its limit.",
			Category:    core.CategorySystem,
			Severity:    core.SeverityHigh,
			Enabled:     true,
			Threshold:   10, // percent
			TemplateID:  "payment_failures",
		},
		{
			TriggerID:   TriggerIntegrationStale,
			OrgID:       orgID,
			Name:        "Integration stale",
			Description: "A payment gateway integration has not synced recently.",
			Category:    core.CategorySystem,
			Severity:    core.SeverityMedium,
			Enabled:     false,
			Threshold:   2, // hours since last gateway sync
			TemplateID:  "integration_stale",
		},
		{
			TriggerID:   TriggerDataSyncStale,
			OrgID:       orgID,
			Name:        "Data sync stale",
			Description: "No transaction data has arrived within the expected window.",
			Category:    core.CategorySystem,
			Severity:    core.SeverityLow,
			Enabled:     false,
			Threshold:   24, // hours since last data sync
			TemplateID:  "data_sync_stale",
		},
	}
}
