package main

import (
	"context"
	"net/http"
	"time"

	"finpulse/internal/amqp"
	"finpulse/internal/cache"
	"finpulse/internal/cli"
	"finpulse/internal/core"
	apphttp "finpulse/internal/http"
	"finpulse/internal/middleware/ratelimit"
	"finpulse/internal/notify"
	"finpulse/internal/rules"
	"finpulse/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	logger.Info("Starting finpulse")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	mail := cli.InitMailSender(context.Background(), logger, cfg.MailBackend)
	if mail.Cleanup != nil {
		defer mail.Cleanup()
	}

	dispatcher := notify.NewDispatcher(notify.NewRegistry(), mail.Sender, repo, cfg.SendTimeout)

	// AMQP is optional: with no URL configured, fired events dispatch inline.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			return
		}
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("AMQP dispatch queue enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - events dispatch inline")
	}

	cacheManager := cache.NewManager()
	cacheManager.StartCleanup(time.Minute)
	defer cacheManager.Stop()

	var defsCache cache.Cache[[]core.TriggerDefinition]
	if cfg.TriggerCacheTTL > 0 {
		lru := cache.NewLRUCache[[]core.TriggerDefinition](256, cfg.TriggerCacheTTL)
		cacheManager.Register(lru)
		defsCache = lru
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})
		defer limiter.Stop()
	}

	evaluator := rules.NewEvaluator(repo)
	ingestSvc := services.NewIngestService(repo)
	evalSvc := services.NewEvaluationService(repo, repo, repo, evaluator, dispatcher, publisher, cfg.AlertRecipients)
	alertSvc := services.NewAlertService(repo, repo, dispatcher, cfg.AlertRecipients, defsCache)

	srv := apphttp.NewServer(":"+cfg.Port, ingestSvc, evalSvc, alertSvc, limiter)

	ctx, cancel := cli.SignalContext()
	defer cancel()

	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("HTTP server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("HTTP server error", "error", err)
		return
	}

	logger.Info("finpulse stopped")
}
