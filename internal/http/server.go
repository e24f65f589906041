// Package http exposes the JSON API surface: upload, evaluate, trigger
// configuration, test alerts and the notification audit trail.
// Authentication and session handling live in front of this server.
package http

import (
	"net/http"
	"time"

	applog "finpulse/internal/log"
	"finpulse/internal/middleware/ratelimit"
	"finpulse/internal/middleware/security"
	"finpulse/internal/services"
)

type Server struct {
	ingest *services.IngestService
	eval   *services.EvaluationService
	alerts *services.AlertService
}

// NewServer wires the API handlers and returns a configured http.Server.
// limiter may be nil to disable rate limiting.
func NewServer(addr string, ingest *services.IngestService, eval *services.EvaluationService, alerts *services.AlertService, limiter *ratelimit.Limiter) *http.Server {
	s := &Server{ingest: ingest, eval: eval, alerts: alerts}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("POST /api/evaluate", s.handleEvaluate)
	mux.HandleFunc("GET /api/triggers", s.handleListTriggers)
	mux.HandleFunc("POST /api/triggers/toggle", s.handleToggleTrigger)
	mux.HandleFunc("POST /api/alerts/test", s.handleTestAlert)
	mux.HandleFunc("GET /api/notifications", s.handleListNotifications)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	logger := applog.New(applog.Config{Component: applog.ComponentHTTP})
	handler := applog.Middleware(logger)(requestLogger(mux))

	if limiter != nil {
		skipHealth := func(r *http.Request) bool { return r.URL.Path == "/healthz" }
		handler = limiter.Middleware(clientIP, skipHealth)(handler)
	}

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	handler = headers.Middleware(handler)

	return &http.Server{
		Addr:           addr,
		Handler:        handler,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16, // 64KB
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
