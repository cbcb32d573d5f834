package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"whatsapp-bulk-worker/internal/adapters/provider/wasender"
	"whatsapp-bulk-worker/internal/adapters/queue/rabbitmq"
	"whatsapp-bulk-worker/internal/adapters/status"
	"whatsapp-bulk-worker/internal/app"
	cfg "whatsapp-bulk-worker/internal/config"
	"whatsapp-bulk-worker/internal/domain"
	"whatsapp-bulk-worker/pkg/logger"
)

func main() {
	conf, err := cfg.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	log := logger.Setup(conf.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Adapters ─────────────────────────────────────────────────────────────
	store, closeStore, err := status.Open(ctx, conf, log)
	if err != nil {
		log.Error("open status store", "err", err)
		os.Exit(1)
	}
	defer closeStore()
	if conf.StatusStore == "memory" {
		log.Warn("memory status store is private to this process; bulk-api cannot report queued dispatches")
	}

	consumer, err := rabbitmq.NewConsumer(conf.AMQPURL, log)
	if err != nil {
		log.Error("connect rabbitmq consumer", "err", err)
		os.Exit(1)
	}
	defer consumer.Close()

	provider := wasender.New(wasender.Config{
		BaseURL:             conf.Wasender.BaseURL,
		APIKey:              conf.Wasender.APIKey,
		PersonalAccessToken: conf.Wasender.PersonalAccessToken,
		Timeout:             conf.Wasender.Timeout,
		MaxRetries:          conf.Wasender.MaxRetries,
	})

	// ── Application service ──────────────────────────────────────────────────
	dispatcher := app.NewDispatcher(provider, app.DispatchConfig{
		BatchSize: conf.BatchSize,
		Interval:  conf.BatchInterval,
	}, log)
	svc := app.NewBulkService(dispatcher, store, nil, app.ModeQueue, log)

	log.Info("bulk-worker started", "batch_size", dispatcher.Config().BatchSize, "batch_interval", dispatcher.Config().Interval)

	if err := consumer.Consume(ctx, func(ctx context.Context, job domain.BulkJob) error {
		_, err := svc.Run(ctx, job)
		return err
	}); err != nil && ctx.Err() == nil {
		log.Error("consumer error", "err", err)
		os.Exit(1)
	}

	log.Info("shutting down bulk-worker")
}
