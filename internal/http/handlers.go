package http

import (
	"net/http"
	"time"

	"finpulse/internal/core"
	"finpulse/internal/rules"
)

type uploadRequest struct {
	OrgID      string `json:"org_id"`
	UploadType string `json:"upload_type"`
	Content    string `json:"content"`
}

type rowErrorView struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type uploadResponse struct {
	Accepted  int            `json:"accepted"`
	RowErrors []rowErrorView `json:"row_errors"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if !readJSON(w, r, &req) {
		return
	}

	result, err := s.ingest.Upload(r.Context(), req.OrgID, req.Content, req.UploadType)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := uploadResponse{Accepted: result.Accepted, RowErrors: []rowErrorView{}}
	for _, re := range result.RowErrors {
		resp.RowErrors = append(resp.RowErrors, rowErrorView{Line: re.Line, Reason: re.Reason})
	}
	writeJSON(w, http.StatusOK, resp)
}

type evaluateRequest struct {
	OrgID            string   `json:"org_id"`
	AsOf             string   `json:"as_of,omitempty"`
	CashBalanceCents int64    `json:"cash_balance_cents"`
	ChurnRatePct     *float64 `json:"churn_rate_pct,omitempty"`
	PaymentFailPct   *float64 `json:"payment_failure_rate_pct,omitempty"`
	CancellationPct  *float64 `json:"cancellation_spike_pct,omitempty"`
	LastGatewaySync  string   `json:"last_gateway_sync,omitempty"`
	LastDataSync     string   `json:"last_data_sync,omitempty"`
}

type eventView struct {
	TriggerID        string   `json:"trigger_id"`
	MeasuredValue    float64  `json:"measured_value"`
	PreviousValue    *float64 `json:"previous_value,omitempty"`
	ThresholdCrossed float64  `json:"threshold_crossed"`
	EvaluatedAt      string   `json:"evaluated_at"`
}

type snapshotView struct {
	CalculatedAt            string  `json:"calculated_at"`
	TotalRevenueCents       int64   `json:"total_revenue_cents"`
	TotalExpensesCents      int64   `json:"total_expenses_cents"`
	MRRCents                int64   `json:"mrr_cents"`
	OneTimeRevenueCents     int64   `json:"one_time_revenue_cents"`
	ActiveSubscriptionCount int     `json:"active_subscription_count"`
	ARPUCents               int64   `json:"arpu_cents"`
	RevenueGrowthRate       float64 `json:"revenue_growth_rate"`
	MRRGrowthRate           float64 `json:"mrr_growth_rate"`
	SubscriptionGrowthRate  float64 `json:"subscription_growth_rate"`
	MonthlyBurnCents        int64   `json:"monthly_burn_cents"`
	NetDailyBurnCents       int64   `json:"net_daily_burn_cents"`
	RunwayDays              int     `json:"runway_days"`
	RunwayMonths            float64 `json:"runway_months"`
	ProjectedDepletionDate  string  `json:"projected_depletion_date"`
	TransactionCount        int     `json:"transaction_count"`
}

type evaluateResponse struct {
	Snapshot   snapshotView `json:"snapshot"`
	Events     []eventView  `json:"events"`
	RuleErrors []string     `json:"rule_errors"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !readJSON(w, r, &req) {
		return
	}

	asOf := time.Now().UTC()
	if req.AsOf != "" {
		parsed, err := time.Parse(time.RFC3339, req.AsOf)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid as_of timestamp"})
			return
		}
		asOf = parsed
	}

	signals := rules.Signals{
		ChurnRatePct:          req.ChurnRatePct,
		PaymentFailureRatePct: req.PaymentFailPct,
		CancellationSpikePct:  req.CancellationPct,
	}
	if req.LastGatewaySync != "" {
		if t, err := time.Parse(time.RFC3339, req.LastGatewaySync); err == nil {
			signals.LastGatewaySync = t
		}
	}
	if req.LastDataSync != "" {
		if t, err := time.Parse(time.RFC3339, req.LastDataSync); err == nil {
			signals.LastDataSync = t
		}
	}

	result, err := s.eval.Run(r.Context(), req.OrgID, asOf, core.Money{Cents: req.CashBalanceCents}, signals)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := evaluateResponse{
		Snapshot:   snapshotToView(result.Snapshot),
		Events:     []eventView{},
		RuleErrors: []string{},
	}
	for _, ev := range result.Events {
		resp.Events = append(resp.Events, eventView{
			TriggerID:        ev.TriggerID,
			MeasuredValue:    ev.MeasuredValue,
			PreviousValue:    ev.PreviousValue,
			ThresholdCrossed: ev.ThresholdCrossed,
			EvaluatedAt:      ev.EvaluatedAt.Format(time.RFC3339),
		})
	}
	for _, re := range result.RuleErrors {
		resp.RuleErrors = append(resp.RuleErrors, re.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

func snapshotToView(s core.FinancialSnapshot) snapshotView {
	return snapshotView{
		CalculatedAt:            s.CalculatedAt.Format(time.RFC3339),
		TotalRevenueCents:       s.TotalRevenue.Cents,
		TotalExpensesCents:      s.TotalExpenses.Cents,
		MRRCents:                s.MonthlyRecurringRevenue.Cents,
		OneTimeRevenueCents:     s.OneTimeRevenue.Cents,
		ActiveSubscriptionCount: s.ActiveSubscriptionCount,
		ARPUCents:               s.AverageRevenuePerUser.Cents,
		RevenueGrowthRate:       s.RevenueGrowthRate,
		MRRGrowthRate:           s.MRRGrowthRate,
		SubscriptionGrowthRate:  s.SubscriptionGrowthRate,
		MonthlyBurnCents:        s.MonthlyBurnRate.Cents,
		NetDailyBurnCents:       s.NetDailyBurn.Cents,
		RunwayDays:              s.RunwayDays,
		RunwayMonths:            s.RunwayMonths,
		ProjectedDepletionDate:  s.ProjectedDepletionDate.Format("2006-01-02"),
		TransactionCount:        s.TransactionCount,
	}
}

type triggerView struct {
	TriggerID   string  `json:"trigger_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Severity    string  `json:"severity"`
	Enabled     bool    `json:"enabled"`
	Threshold   float64 `json:"threshold"`
}

func (s *Server) handleListTriggers(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("org_id")
	if orgID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing org_id"})
		return
	}

	defs, err := s.alerts.Definitions(r.Context(), orgID)
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]triggerView, 0, len(defs))
	for _, def := range defs {
		views = append(views, triggerView{
			TriggerID:   def.TriggerID,
			Name:        def.Name,
			Description: def.Description,
			Category:    string(def.Category),
			Severity:    string(def.Severity),
			Enabled:     def.Enabled,
			Threshold:   def.Threshold,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

type toggleRequest struct {
	OrgID     string `json:"org_id"`
	TriggerID string `json:"trigger_id"`
	Enabled   bool   `json:"enabled"`
}

func (s *Server) handleToggleTrigger(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if !readJSON(w, r, &req) {
		return
	}

	if err := s.alerts.SetEnabled(r.Context(), req.OrgID, req.TriggerID, req.Enabled); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

type testAlertRequest struct {
	OrgID      string   `json:"org_id"`
	TriggerID  string   `json:"trigger_id"`
	Recipients []string `json:"recipients,omitempty"`
}

type dispatchView struct {
	Sent    int                      `json:"sent"`
	Failed  int                      `json:"failed"`
	Records []notificationRecordView `json:"records"`
}

type notificationRecordView struct {
	Recipient  string `json:"recipient"`
	Status     string `json:"status"`
	SentAt     string `json:"sent_at"`
	ProviderID string `json:"provider_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (s *Server) handleTestAlert(w http.ResponseWriter, r *http.Request) {
	var req testAlertRequest
	if !readJSON(w, r, &req) {
		return
	}

	result, err := s.alerts.SendTest(r.Context(), req.OrgID, req.TriggerID, req.Recipients)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dispatchToView(result))
}

func dispatchToView(result core.DispatchResult) dispatchView {
	view := dispatchView{
		Sent:    result.Sent(),
		Failed:  result.Failed(),
		Records: []notificationRecordView{},
	}
	for _, rec := range result.Records {
		view.Records = append(view.Records, notificationRecordView{
			Recipient:  rec.Recipient,
			Status:     string(rec.Status),
			SentAt:     rec.SentAt.Format(time.RFC3339),
			ProviderID: rec.ProviderID,
			Error:      rec.ErrorText,
		})
	}
	return view
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("org_id")
	if orgID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing org_id"})
		return
	}

	records, err := s.alerts.AuditTrail(r.Context(), orgID,
		r.URL.Query().Get("trigger_id"),
		parseTimeParam(r, "from"),
		parseTimeParam(r, "to"))
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]notificationRecordView, 0, len(records))
	for _, rec := range records {
		views = append(views, notificationRecordView{
			Recipient:  rec.Recipient,
			Status:     string(rec.Status),
			SentAt:     rec.SentAt.Format(time.RFC3339),
			ProviderID: rec.ProviderID,
			Error:      rec.ErrorText,
		})
	}
	writeJSON(w, http.StatusOK, views)
}
