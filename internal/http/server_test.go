package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"finpulse/internal/notify"
	"finpulse/internal/rules"
	"finpulse/internal/services"
	"finpulse/internal/storage"

	memmail "finpulse/internal/mail/memory"
)

// newTestServer wires the full stack on a throwaway SQLite file and an
// in-memory mail sender, mirroring the production wiring minus AMQP.
func newTestServer(t *testing.T) (*http.Server, *memmail.Sender) {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	sender := memmail.New()
	dispatcher := notify.NewDispatcher(notify.NewRegistry(), sender, repo, 5*time.Second)
	recipients := []string{"founder@example.com"}

	ingestSvc := services.NewIngestService(repo)
	evalSvc := services.NewEvaluationService(repo, repo, repo, rules.NewEvaluator(repo), dispatcher, nil, recipients)
	alertSvc := services.NewAlertService(repo, repo, dispatcher, recipients, nil)

	return NewServer(":0", ingestSvc, evalSvc, alertSvc, nil), sender
}

func doJSON(t *testing.T, srv *http.Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthAndSecurityHeaders(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doJSON(t, srv, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options=%q", got)
	}
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options=%q", got)
	}
}

func TestUploadEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	csv := "date,amount,description,category\n" +
		"2025-06-01,1200.00,Acme subscription,subscription\n" +
		"not-a-date,50.00,broken row,misc\n" +
		"2025-06-02,99.00,Beta subscription,subscription\n"
	body, _ := json.Marshal(map[string]string{
		"org_id":      "org-1",
		"upload_type": "stripe",
		"content":     csv,
	})

	rr := doJSON(t, srv, http.MethodPost, "/api/upload", string(body))
	if rr.Code != http.StatusOK {
		t.Fatalf("upload status=%d body=%s", rr.Code, rr.Body.String())
	}

	var resp uploadResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Accepted != 2 {
		t.Errorf("accepted=%d", resp.Accepted)
	}
	if len(resp.RowErrors) != 1 || resp.RowErrors[0].Line != 3 {
		t.Errorf("row errors: %+v", resp.RowErrors)
	}
}

func TestUploadEndpoint_Rejections(t *testing.T) {
	srv, _ := newTestServer(t)

	t.Run("missing org", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/api/upload",
			`{"org_id":"","upload_type":"","content":"date,amount,description\n2025-06-01,10,x"}`)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status=%d", rr.Code)
		}
	})

	t.Run("unusable file", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/api/upload",
			`{"org_id":"org-1","upload_type":"","content":"just,some,columns\n1,2,3"}`)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/api/upload", `{"org_id":`)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status=%d", rr.Code)
		}
	})
}

func TestEvaluateEndpoint(t *testing.T) {
	srv, sender := newTestServer(t)

	// A month of heavy burn so the runway triggers have something to chew on.
	csv := "date,amount,description,kind\n" +
		"2025-06-10,3000.00,contractor invoice,expense\n" +
		"2025-06-20,500.00,Acme subscription,revenue\n"
	upload, _ := json.Marshal(map[string]string{"org_id": "org-1", "content": csv})
	if rr := doJSON(t, srv, http.MethodPost, "/api/upload", string(upload)); rr.Code != http.StatusOK {
		t.Fatalf("upload status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr := doJSON(t, srv, http.MethodPost, "/api/evaluate",
		`{"org_id":"org-1","as_of":"2025-06-30T12:00:00Z","cash_balance_cents":100000}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("evaluate status=%d body=%s", rr.Code, rr.Body.String())
	}

	var resp evaluateResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Snapshot.TransactionCount != 2 {
		t.Errorf("transaction count=%d", resp.Snapshot.TransactionCount)
	}
	if resp.Snapshot.TotalExpensesCents != 300000 {
		t.Errorf("expenses=%d", resp.Snapshot.TotalExpensesCents)
	}
	if resp.Snapshot.RunwayDays >= 30 {
		t.Errorf("expected short runway, got %d days", resp.Snapshot.RunwayDays)
	}

	var runwayEvent *eventView
	for i := range resp.Events {
		if resp.Events[i].TriggerID == rules.TriggerCriticalCashRunway {
			runwayEvent = &resp.Events[i]
		}
	}
	if runwayEvent == nil {
		t.Fatalf("expected a critical runway event, got %+v", resp.Events)
	}
	if len(sender.Messages()) == 0 {
		t.Error("expected an alert mail to be sent inline")
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/notifications?org_id=org-1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("notifications status=%d", rr.Code)
	}
	var records []notificationRecordView
	if err := json.Unmarshal(rr.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) == 0 {
		t.Error("expected audit records after dispatch")
	}
}

func TestEvaluateEndpoint_BadAsOf(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/evaluate",
		`{"org_id":"org-1","as_of":"yesterday","cash_balance_cents":0}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestTriggerEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doJSON(t, srv, http.MethodGet, "/api/triggers?org_id=org-1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	var defs []triggerView
	if err := json.Unmarshal(rr.Body.Bytes(), &defs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(defs) != 10 {
		t.Fatalf("expected the seeded ten-trigger set, got %d", len(defs))
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/triggers/toggle",
		`{"org_id":"org-1","trigger_id":"low_cash_runway","enabled":false}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("toggle status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/triggers?org_id=org-1", "")
	if err := json.Unmarshal(rr.Body.Bytes(), &defs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, def := range defs {
		if def.TriggerID == "low_cash_runway" && def.Enabled {
			t.Error("toggle did not persist")
		}
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/triggers/toggle",
		`{"org_id":"org-1","trigger_id":"no_such_trigger","enabled":true}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown trigger status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/triggers", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing org_id status=%d", rr.Code)
	}
}

func TestTestAlertEndpoint(t *testing.T) {
	srv, sender := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/alerts/test",
		`{"org_id":"org-1","trigger_id":"low_cash_runway","recipients":["ops@example.com"]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	var resp dispatchView
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Sent != 1 || resp.Failed != 0 {
		t.Errorf("sent=%d failed=%d", resp.Sent, resp.Failed)
	}
	msgs := sender.Messages()
	if len(msgs) != 1 || !strings.HasPrefix(msgs[0].Subject, "[TEST] ") {
		t.Errorf("expected one [TEST] message, got %+v", msgs)
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/alerts/test",
		`{"org_id":"org-1","trigger_id":"no_such_trigger"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown trigger status=%d", rr.Code)
	}
}
