package main

import (
	"context"
	"errors"
	"os"

	"finpulse/internal/amqp"
	"finpulse/internal/cli"
	"finpulse/internal/notify"
	"finpulse/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	logger.Info("Starting finpulse-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the dispatch worker")
		os.Exit(1)
	}
	if len(cfg.AlertRecipients) == 0 {
		logger.Error("ALERT_RECIPIENTS is required for the dispatch worker")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	mail := cli.InitMailSender(context.Background(), logger, cfg.MailBackend)
	if mail.Cleanup != nil {
		defer mail.Cleanup()
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	dispatcher := notify.NewDispatcher(notify.NewRegistry(), mail.Sender, repo, cfg.SendTimeout)
	dispatchWorker := worker.NewDispatchWorker(repo, dispatcher, cfg.AlertRecipients)

	ctx, cancel := cli.SignalContext()
	defer cancel()

	logger.Info("Consuming trigger events", "queue", cfg.AMQPQueue)
	if err := dispatchWorker.Run(ctx, amqpClient); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("finpulse-worker stopped")
}
