package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whatsapp-bulk-worker/internal/adapters/provider/wasender"
	"whatsapp-bulk-worker/internal/adapters/queue/rabbitmq"
	"whatsapp-bulk-worker/internal/adapters/status"
	"whatsapp-bulk-worker/internal/app"
	cfg "whatsapp-bulk-worker/internal/config"
	"whatsapp-bulk-worker/internal/middleware"
	"whatsapp-bulk-worker/internal/ports"
	"whatsapp-bulk-worker/internal/transport"
	"whatsapp-bulk-worker/pkg/logger"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	conf, err := cfg.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	log := logger.Setup(conf.Env)
	if err := run(conf, log); err != nil {
		log.Error("application failed", "err", err)
		os.Exit(1)
	}
}

func run(conf cfg.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := status.Open(ctx, conf, log)
	if err != nil {
		return err
	}
	defer closeStore()

	mode, err := app.ParseMode(conf.DispatchMode)
	if err != nil {
		return err
	}

	var publisher ports.JobPublisher
	if mode == app.ModeQueue {
		p, err := rabbitmq.NewPublisher(conf.AMQPURL)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		defer p.Close()
		publisher = p
	}

	provider := wasender.New(wasender.Config{
		BaseURL:             conf.Wasender.BaseURL,
		APIKey:              conf.Wasender.APIKey,
		PersonalAccessToken: conf.Wasender.PersonalAccessToken,
		Timeout:             conf.Wasender.Timeout,
		MaxRetries:          conf.Wasender.MaxRetries,
	})
	if !provider.Configured() {
		log.Warn("whatsapp provider not configured; bulk sends will fail until WASENDER_API_KEY or WASENDER_PERSONAL_ACCESS_TOKEN is set")
	}

	dispatcher := app.NewDispatcher(provider, app.DispatchConfig{
		BatchSize: conf.BatchSize,
		Interval:  conf.BatchInterval,
	}, log)
	svc := app.NewBulkService(dispatcher, store, publisher, mode, log)

	fiberApp := fiber.New(fiber.Config{
		AppName:               conf.ServiceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// Sync mode holds the connection for the whole paced dispatch.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
		ServerHeader: "",
		BodyLimit:    1 * 1024 * 1024, // 1MB
	})

	fiberApp.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	fiberApp.Use(fiberlogger.New(fiberlogger.Config{
		Format:     "[${time}] ${status} - ${method} ${path} ${latency}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	fiberApp.Use(middleware.RequestIDMiddleware())
	fiberApp.Use(middleware.SecurityHeaders())
	fiberApp.Use(middleware.CORSConfig(conf.AllowedOrigins))

	rateLimiter := middleware.NewRateLimiter(conf.RateLimitPerMinute, time.Minute)
	defer rateLimiter.Close()
	fiberApp.Use(rateLimiter.Middleware())

	if conf.WorkerSecret == "" {
		log.Warn("WORKER_SECRET not set; /send-bulk is open to anyone who can reach it")
	}
	handler := transport.NewHandler(svc, conf.ServiceName, log)
	handler.Register(fiberApp, middleware.RequireSecret(conf.WorkerSecret))

	errChan := make(chan error, 1)
	go func() {
		log.Info("bulk-api started",
			"addr", conf.Addr(),
			"mode", mode,
			"batch_size", dispatcher.Config().BatchSize,
			"batch_interval", dispatcher.Config().Interval,
		)
		if err := fiberApp.Listen(conf.Addr()); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := fiberApp.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}

	// Background dispatches still running are abandoned here.
	log.Info("bulk-api stopped")
	return nil
}
