package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"whatsapp-bulk-worker/internal/domain"
	"whatsapp-bulk-worker/internal/ports"
)

const (
	// DefaultBatchSize sends one message at a time; the provider allows roughly
	// one message every five seconds per account.
	DefaultBatchSize = 1
	// DefaultBatchInterval leaves a one-second margin over the provider limit.
	DefaultBatchInterval = 6 * time.Second
)

// DispatchConfig tunes batching and pacing independently.
type DispatchConfig struct {
	BatchSize int
	Interval  time.Duration
}

// DefaultDispatchConfig returns the reference batching configuration.
func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{BatchSize: DefaultBatchSize, Interval: DefaultBatchInterval}
}

// Sleeper suspends the caller for d. Tests substitute a fake clock.
type Sleeper func(d time.Duration)

// Dispatcher sends one text to many recipients in paced batches.
type Dispatcher struct {
	provider ports.TextSender
	cfg      DispatchConfig
	sleep    Sleeper
	log      *slog.Logger
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSleeper replaces time.Sleep for inter-batch pacing.
func WithSleeper(s Sleeper) DispatcherOption {
	return func(d *Dispatcher) { d.sleep = s }
}

// NewDispatcher wires the dispatcher with its provider and batching config.
func NewDispatcher(provider ports.TextSender, cfg DispatchConfig, log *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Interval < 0 {
		cfg.Interval = 0
	}
	d := &Dispatcher{
		provider: provider,
		cfg:      cfg,
		sleep:    time.Sleep,
		log:      log,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Config returns the effective batching configuration.
func (d *Dispatcher) Config() DispatchConfig {
	return d.cfg
}

// Dispatch normalizes identifiers and sends text to each of them, batch by
// batch. Individual send failures are counted, never returned; the only error
// is domain.ErrProviderNotConfigured, raised before any work is done.
//
// Once started, a dispatch runs to completion. ctx is passed to provider
// calls only; pacing does not observe it.
func (d *Dispatcher) Dispatch(ctx context.Context, identifiers []string, text string) (domain.BulkSendResult, error) {
	if d.provider == nil || !d.provider.Configured() {
		return domain.BulkSendResult{}, fmt.Errorf("dispatch: %w", domain.ErrProviderNotConfigured)
	}

	normalized := domain.NormalizePhones(identifiers)
	d.log.Info("bulk send starting", "input_count", len(identifiers), "normalized_count", len(normalized))

	if len(normalized) == 0 {
		d.log.Info("bulk send skipped: no valid phone numbers")
		return domain.BulkSendResult{}, nil
	}

	var sent, failed atomic.Int64
	batches := domain.Batches(normalized, d.cfg.BatchSize)
	processed := 0

	for i, batch := range batches {
		d.log.Info("bulk send batch",
			"batch_number", i+1,
			"size", len(batch),
			"total_processed", processed,
			"total", len(normalized),
		)

		var wg sync.WaitGroup
		for _, to := range batch {
			wg.Add(1)
			go func(to string) {
				defer wg.Done()
				if err := d.sendOne(ctx, to, text); err != nil {
					failed.Add(1)
					d.log.Error("send failed", "to", to, "reason", domain.FailureReason(err))
					return
				}
				sent.Add(1)
				d.log.Info("message sent", "to", to)
			}(to)
		}
		wg.Wait()
		processed += len(batch)

		if i < len(batches)-1 {
			d.log.Debug("waiting before next batch", "interval", d.cfg.Interval)
			d.sleep(d.cfg.Interval)
		}
	}

	res := domain.BulkSendResult{
		TotalAttempted: len(normalized),
		Sent:           int(sent.Load()),
		Failed:         int(failed.Load()),
	}
	d.log.Info("bulk send completed", "total_attempted", res.TotalAttempted, "sent", res.Sent, "failed", res.Failed)
	return res, nil
}

// sendOne isolates a single provider call so a panic only costs that recipient.
func (d *Dispatcher) sendOne(ctx context.Context, to, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in provider send: %v", r)
		}
	}()
	_, err = d.provider.SendText(ctx, to, text)
	return err
}
