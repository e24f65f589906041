// Package storage persists transactions, snapshots, trigger configuration,
// milestone state and the notification audit log in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"finpulse/internal/core"
	"finpulse/internal/rules"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// InsertTransactions stores a parsed batch inside one database transaction
// so a mid-batch failure does not leave a partial import behind.
func (r *SQLiteRepository) InsertTransactions(ctx context.Context, txs []core.Transaction) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx, `
		INSERT INTO transactions (id, org_id, date, amount_cents, kind, description, category, gateway)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, tx := range txs {
		if _, err := stmt.ExecContext(ctx,
			tx.ID, tx.OrgID, tx.Date, tx.Amount.Cents, string(tx.Kind),
			tx.Description, tx.Category, tx.Gateway); err != nil {
			return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	slog.InfoContext(ctx, "Transactions saved", "count", len(txs))
	return nil
}

// ListTransactions returns the full history for one organization, oldest
// first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, orgID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, org_id, date, amount_cents, kind, description, category, gateway
		FROM transactions WHERE org_id = ? ORDER BY date ASC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		var (
			tx   core.Transaction
			kind string
		)
		if err := rows.Scan(&tx.ID, &tx.OrgID, &tx.Date, &tx.Amount.Cents, &kind,
			&tx.Description, &tx.Category, &tx.Gateway); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Kind = core.TransactionKind(kind)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// SaveSnapshot stores a snapshot and prunes the organization's history down
// to the two most recent rows, which is all growth comparison needs.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, snap core.FinancialSnapshot) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, `
		INSERT INTO snapshots (
			org_id, calculated_at, total_revenue_cents, total_expenses_cents,
			mrr_cents, one_time_revenue_cents, active_subscription_count, arpu_cents,
			revenue_growth_rate, mrr_growth_rate, subscription_growth_rate,
			monthly_burn_cents, daily_burn_cents, daily_revenue_cents, net_daily_burn_cents,
			runway_days, runway_months, projected_depletion_date, transaction_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.OrgID, snap.CalculatedAt,
		snap.TotalRevenue.Cents, snap.TotalExpenses.Cents,
		snap.MonthlyRecurringRevenue.Cents, snap.OneTimeRevenue.Cents,
		snap.ActiveSubscriptionCount, snap.AverageRevenuePerUser.Cents,
		snap.RevenueGrowthRate, snap.MRRGrowthRate, snap.SubscriptionGrowthRate,
		snap.MonthlyBurnRate.Cents, snap.DailyBurnRate.Cents,
		snap.DailyRevenue.Cents, snap.NetDailyBurn.Cents,
		snap.RunwayDays, snap.RunwayMonths, snap.ProjectedDepletionDate,
		snap.TransactionCount); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	if _, err := dbTx.ExecContext(ctx, `
		DELETE FROM snapshots WHERE org_id = ? AND id NOT IN (
			SELECT id FROM snapshots WHERE org_id = ?
			ORDER BY calculated_at DESC, id DESC LIMIT 2
		)`, snap.OrgID, snap.OrgID); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}

	return dbTx.Commit()
}

// LatestSnapshots returns up to limit snapshots, most recent first.
func (r *SQLiteRepository) LatestSnapshots(ctx context.Context, orgID string, limit int) ([]core.FinancialSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT org_id, calculated_at, total_revenue_cents, total_expenses_cents,
			mrr_cents, one_time_revenue_cents, active_subscription_count, arpu_cents,
			revenue_growth_rate, mrr_growth_rate, subscription_growth_rate,
			monthly_burn_cents, daily_burn_cents, daily_revenue_cents, net_daily_burn_cents,
			runway_days, runway_months, projected_depletion_date, transaction_count
		FROM snapshots WHERE org_id = ?
		ORDER BY calculated_at DESC, id DESC LIMIT ?`, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []core.FinancialSnapshot
	for rows.Next() {
		var s core.FinancialSnapshot
		if err := rows.Scan(&s.OrgID, &s.CalculatedAt,
			&s.TotalRevenue.Cents, &s.TotalExpenses.Cents,
			&s.MonthlyRecurringRevenue.Cents, &s.OneTimeRevenue.Cents,
			&s.ActiveSubscriptionCount, &s.AverageRevenuePerUser.Cents,
			&s.RevenueGrowthRate, &s.MRRGrowthRate, &s.SubscriptionGrowthRate,
			&s.MonthlyBurnRate.Cents, &s.DailyBurnRate.Cents,
			&s.DailyRevenue.Cents, &s.NetDailyBurn.Cents,
			&s.RunwayDays, &s.RunwayMonths, &s.ProjectedDepletionDate,
			&s.TransactionCount); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

// DefinitionsForOrg returns the organization's trigger configuration,
// seeding the default set on first access.
func (r *SQLiteRepository) DefinitionsForOrg(ctx context.Context, orgID string) ([]core.TriggerDefinition, error) {
	defs, err := r.queryDefinitions(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if len(defs) > 0 {
		return defs, nil
	}

	if err := r.seedDefinitions(ctx, orgID); err != nil {
		return nil, err
	}
	return r.queryDefinitions(ctx, orgID)
}

func (r *SQLiteRepository) seedDefinitions(ctx context.Context, orgID string) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback()

	for _, def := range rules.DefaultDefinitions(orgID) {
		// INSERT OR IGNORE keeps a concurrent first access idempotent.
		if _, err := dbTx.ExecContext(ctx, `
			INSERT OR IGNORE INTO trigger_definitions
				(org_id, trigger_id, name, description, category, severity, enabled, threshold, template_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			def.OrgID, def.TriggerID, def.Name, def.Description,
			string(def.Category), string(def.Severity), def.Enabled,
			def.Threshold, def.TemplateID); err != nil {
			return fmt.Errorf("seed trigger %s: %w", def.TriggerID, err)
		}
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}

	slog.InfoContext(ctx, "Seeded default trigger definitions", "org_id", orgID)
	return nil
}

func (r *SQLiteRepository) queryDefinitions(ctx context.Context, orgID string) ([]core.TriggerDefinition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT org_id, trigger_id, name, description, category, severity, enabled, threshold, template_id
		FROM trigger_definitions WHERE org_id = ? ORDER BY trigger_id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("query trigger definitions: %w", err)
	}
	defer rows.Close()

	var defs []core.TriggerDefinition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// GetDefinition returns one trigger row or core.ErrTriggerNotFound.
func (r *SQLiteRepository) GetDefinition(ctx context.Context, orgID, triggerID string) (core.TriggerDefinition, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT org_id, trigger_id, name, description, category, severity, enabled, threshold, template_id
		FROM trigger_definitions WHERE org_id = ? AND trigger_id = ?`, orgID, triggerID)

	def, err := scanDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.TriggerDefinition{}, core.ErrTriggerNotFound
	}
	return def, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (core.TriggerDefinition, error) {
	var (
		def      core.TriggerDefinition
		category string
		severity string
	)
	if err := row.Scan(&def.OrgID, &def.TriggerID, &def.Name, &def.Description,
		&category, &severity, &def.Enabled, &def.Threshold, &def.TemplateID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.TriggerDefinition{}, err
		}
		return core.TriggerDefinition{}, fmt.Errorf("scan trigger definition: %w", err)
	}
	def.Category = core.TriggerCategory(category)
	def.Severity = core.Severity(severity)
	return def, nil
}

// SetTriggerEnabled toggles one trigger. Returns core.ErrTriggerNotFound if
// the row does not exist.
func (r *SQLiteRepository) SetTriggerEnabled(ctx context.Context, orgID, triggerID string, enabled bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE trigger_definitions SET enabled = ? WHERE org_id = ? AND trigger_id = ?`,
		enabled, orgID, triggerID)
	if err != nil {
		return fmt.Errorf("update trigger enabled: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrTriggerNotFound
	}

	slog.InfoContext(ctx, "Trigger toggled",
		"org_id", orgID, "trigger_id", triggerID, "enabled", enabled)
	return nil
}

// LastRung implements rules.MilestoneStore.
func (r *SQLiteRepository) LastRung(ctx context.Context, orgID, metric string) (int64, error) {
	var rung int64
	err := r.db.QueryRowContext(ctx, `
		SELECT last_rung FROM milestone_state WHERE org_id = ? AND metric = ?`,
		orgID, metric).Scan(&rung)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query milestone state: %w", err)
	}
	return rung, nil
}

// AdvanceRung implements rules.MilestoneStore. The update is a
// compare-and-swap on the previous rung: under concurrent evaluation only
// one caller observes an affected row, so a rung fires at most once.
// Rungs never move backwards.
func (r *SQLiteRepository) AdvanceRung(ctx context.Context, orgID, metric string, rung, prev int64) (bool, error) {
	if rung <= prev {
		return false, nil
	}

	if prev == 0 {
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO milestone_state (org_id, metric, last_rung, updated_at)
			VALUES (?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT (org_id, metric) DO UPDATE
				SET last_rung = excluded.last_rung, updated_at = CURRENT_TIMESTAMP
				WHERE milestone_state.last_rung = 0`,
			orgID, metric, rung)
		if err != nil {
			return false, fmt.Errorf("insert milestone state: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("rows affected: %w", err)
		}
		return affected > 0, nil
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE milestone_state SET last_rung = ?, updated_at = CURRENT_TIMESTAMP
		WHERE org_id = ? AND metric = ? AND last_rung = ?`,
		rung, orgID, metric, prev)
	if err != nil {
		return false, fmt.Errorf("advance milestone state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// AppendNotification writes one audit row. Each attempt is written
// independently so a partial dispatch failure never loses the successes.
func (r *SQLiteRepository) AppendNotification(ctx context.Context, rec core.NotificationRecord) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO notification_log
			(id, org_id, trigger_id, recipient, template_id, status, sent_at, provider_id, error_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OrgID, rec.TriggerID, rec.Recipient, rec.TemplateID,
		string(rec.Status), rec.SentAt, rec.ProviderID, rec.ErrorText); err != nil {
		return fmt.Errorf("append notification record: %w", err)
	}
	return nil
}

// ListNotifications returns audit rows for one (org, trigger) in a time
// range, newest first. An empty triggerID matches all triggers.
func (r *SQLiteRepository) ListNotifications(ctx context.Context, orgID, triggerID string, from, to time.Time) ([]core.NotificationRecord, error) {
	query := `
		SELECT id, org_id, trigger_id, recipient, template_id, status, sent_at, provider_id, error_text
		FROM notification_log
		WHERE org_id = ? AND sent_at >= ? AND sent_at <= ?`
	args := []any{orgID, from, to}
	if triggerID != "" {
		query += " AND trigger_id = ?"
		args = append(args, triggerID)
	}
	query += " ORDER BY sent_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notification log: %w", err)
	}
	defer rows.Close()

	var recs []core.NotificationRecord
	for rows.Next() {
		var (
			rec    core.NotificationRecord
			status string
		)
		if err := rows.Scan(&rec.ID, &rec.OrgID, &rec.TriggerID, &rec.Recipient,
			&rec.TemplateID, &status, &rec.SentAt, &rec.ProviderID, &rec.ErrorText); err != nil {
			return nil, fmt.Errorf("scan notification record: %w", err)
		}
		rec.Status = core.NotificationStatus(status)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
