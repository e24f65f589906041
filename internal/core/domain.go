package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Revenue TransactionKind = "revenue"
	Expense TransactionKind = "expense"
)

const (
	CategoryFinancial TriggerCategory = "financial"
	CategoryUser      TriggerCategory = "user"
	CategorySystem    TriggerCategory = "system"
)

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type (
	TransactionKind string
	TriggerCategory string
	Severity        string

	// Transaction is a single normalized financial record. Immutable once
	// created; the ingestor is the only producer.
	Transaction struct {
		ID          string
		OrgID       string
		Date        time.Time
		Amount      Money
		Kind        TransactionKind
		Description string
		Category    string
		Gateway     string
	}

	// TriggerDefinition is the per-organization configuration row for one
	// alert rule. Threshold is strictly configuration; evaluation never
	// hard-codes a band edge.
	TriggerDefinition struct {
		TriggerID   string
		OrgID       string
		Name        string
		Description string
		Category    TriggerCategory
		Severity    Severity
		Enabled     bool
		Threshold   float64
		TemplateID  string
	}

	// TriggerEvent is the ephemeral output of one rule firing during an
	// evaluation cycle.
	TriggerEvent struct {
		TriggerID        string
		OrgID            string
		EvaluatedAt      time.Time
		MeasuredValue    float64
		PreviousValue    *float64
		ThresholdCrossed float64
	}

	// MilestoneState records the last-achieved rung for one (org, metric)
	// ladder. LastRung only ever advances.
	MilestoneState struct {
		OrgID    string
		Metric   string
		LastRung int64
	}

	// NotificationRecord is one append-only audit row for one send attempt.
	NotificationRecord struct {
		ID         string
		OrgID      string
		TriggerID  string
		Recipient  string
		TemplateID string
		Status     NotificationStatus
		SentAt     time.Time
		ProviderID string
		ErrorText  string
	}

	NotificationStatus string

	// DispatchResult collects the per-recipient outcome of one dispatch.
	// Partial failure is reported here, never raised as an error.
	DispatchResult struct {
		Records []NotificationRecord
	}
)

const (
	StatusSent   NotificationStatus = "sent"
	StatusFailed NotificationStatus = "failed"
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidKind      = errors.New("invalid transaction kind")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyOrg         = errors.New("empty organization reference")
	ErrOrgNotFound      = errors.New("organization not found")
	ErrTriggerNotFound  = errors.New("trigger definition not found")
	ErrTemplateNotFound = errors.New("template not found")
)

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.OrgID) == "" {
		return ErrEmptyOrg
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if t.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if t.Kind != Revenue && t.Kind != Expense {
		return ErrInvalidKind
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	return nil
}

func (d TriggerDefinition) Validate() error {
	if strings.TrimSpace(d.TriggerID) == "" {
		return errors.New("empty trigger id")
	}
	switch d.Category {
	case CategoryFinancial, CategoryUser, CategorySystem:
	default:
		return errors.New("invalid trigger category")
	}
	switch d.Severity {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
	default:
		return errors.New("invalid severity")
	}
	return nil
}

// Sent returns the number of successful attempts in the result.
func (r DispatchResult) Sent() int {
	n := 0
	for _, rec := range r.Records {
		if rec.Status == StatusSent {
			n++
		}
	}
	return n
}

// Failed returns the number of failed attempts in the result.
func (r DispatchResult) Failed() int {
	return len(r.Records) - r.Sent()
}
