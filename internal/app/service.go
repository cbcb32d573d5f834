package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"whatsapp-bulk-worker/internal/domain"
	"whatsapp-bulk-worker/internal/ports"

	"github.com/google/uuid"
)

// Mode selects how an intake request relates to the dispatch it triggers.
type Mode string

const (
	ModeSync       Mode = "sync"       // Caller waits for the full result
	ModeBackground Mode = "background" // 202 now, dispatch in a detached goroutine
	ModeQueue      Mode = "queue"      // 202 now, dispatch by bulk-worker via the job queue
)

// ParseMode validates a configured mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeSync, ModeBackground, ModeQueue:
		return m, nil
	}
	return "", fmt.Errorf("unknown dispatch mode %q", s)
}

var errNoPublisher = errors.New("queue mode without a job publisher")

// MaxPreDispatchDelay caps the optional stagger applied before a dispatch.
const MaxPreDispatchDelay = 24 * time.Hour

// BulkService is the application service between intake and the Dispatcher.
// It applies the pre-dispatch delay, picks the execution mode and keeps the
// dispatch status record current.
type BulkService struct {
	dispatcher *Dispatcher
	store      ports.DispatchStore
	publisher  ports.JobPublisher
	mode       Mode
	sleep      Sleeper
	now        func() time.Time
	log        *slog.Logger
}

// ServiceOption customises a BulkService.
type ServiceOption func(*BulkService)

// WithDelaySleeper replaces time.Sleep for the pre-dispatch delay.
func WithDelaySleeper(s Sleeper) ServiceOption {
	return func(b *BulkService) { b.sleep = s }
}

// NewBulkService wires the service with its dependencies. store is required;
// publisher is only used in ModeQueue.
func NewBulkService(
	dispatcher *Dispatcher,
	store ports.DispatchStore,
	publisher ports.JobPublisher,
	mode Mode,
	log *slog.Logger,
	opts ...ServiceOption,
) *BulkService {
	s := &BulkService{
		dispatcher: dispatcher,
		store:      store,
		publisher:  publisher,
		mode:       mode,
		sleep:      time.Sleep,
		now:        time.Now,
		log:        log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode reports the configured intake mode.
func (s *BulkService) Mode() Mode {
	return s.mode
}

// BulkRequest is the validated input of one bulk send.
type BulkRequest struct {
	PhoneNumbers []string
	Text         string
	GroupID      string
	Delay        time.Duration
}

// Send runs the delay and the dispatch inline and returns the finished record.
func (s *BulkService) Send(ctx context.Context, req BulkRequest) (domain.Dispatch, error) {
	d, job := s.accept(ctx, req, ModeSync)
	return s.run(ctx, d, job)
}

// Accept records the request and hands it off without waiting for the result.
// In ModeQueue the job is published to the queue; otherwise it runs in a
// goroutine that nothing waits on, so it is lost if the process exits first.
func (s *BulkService) Accept(ctx context.Context, req BulkRequest) (domain.Dispatch, error) {
	mode := s.mode
	if mode == ModeSync {
		mode = ModeBackground
	}
	d, job := s.accept(ctx, req, mode)

	if mode == ModeQueue {
		if s.publisher == nil {
			d.Fail(errNoPublisher, s.now())
			s.save(ctx, d)
			return d, errNoPublisher
		}
		if err := s.publisher.Publish(ctx, job); err != nil {
			d.Fail(err, s.now())
			s.save(ctx, d)
			return d, fmt.Errorf("publish bulk job: %w", err)
		}
		s.log.Info("bulk job queued", "dispatch_id", d.ID, "count", len(job.PhoneNumbers))
		return d, nil
	}

	// The request context is recycled once the handler returns.
	go s.runDetached(d, job)
	return d, nil
}

// Run executes a job received from the queue. The dispatch record written by
// the intake process is reused when this process shares its store.
func (s *BulkService) Run(ctx context.Context, job domain.BulkJob) (domain.Dispatch, error) {
	d, err := s.store.Get(ctx, job.DispatchID)
	if err != nil {
		d = domain.NewDispatch(job.GroupID, string(ModeQueue), len(job.PhoneNumbers))
		d.ID = job.DispatchID
	}
	return s.run(ctx, d, job)
}

// Status returns the current record for a dispatch.
func (s *BulkService) Status(ctx context.Context, id uuid.UUID) (domain.Dispatch, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.Dispatch{}, fmt.Errorf("get dispatch %s: %w", id, err)
	}
	return d, nil
}

func (s *BulkService) accept(ctx context.Context, req BulkRequest, mode Mode) (domain.Dispatch, domain.BulkJob) {
	d := domain.NewDispatch(req.GroupID, string(mode), len(req.PhoneNumbers))
	s.save(ctx, d)

	delay := req.Delay
	if delay > MaxPreDispatchDelay {
		delay = MaxPreDispatchDelay
	}
	job := domain.BulkJob{
		DispatchID:   d.ID,
		GroupID:      req.GroupID,
		PhoneNumbers: req.PhoneNumbers,
		Text:         req.Text,
		Delay:        delay,
	}
	return d, job
}

// run applies the delay, dispatches and records the outcome. A dispatch has no
// cancellation, so ctx is detached from its parent's deadline.
func (s *BulkService) run(ctx context.Context, d domain.Dispatch, job domain.BulkJob) (domain.Dispatch, error) {
	ctx = context.WithoutCancel(ctx)
	log := s.log.With("dispatch_id", d.ID, "group_id", job.GroupID)

	if job.Delay > 0 {
		log.Info("staggering dispatch", "delay", job.Delay)
		s.sleep(job.Delay)
	}

	d.Start(s.now())
	s.save(ctx, d)

	res, err := s.dispatcher.Dispatch(ctx, job.PhoneNumbers, job.Text)
	if err != nil {
		d.Fail(err, s.now())
		s.save(ctx, d)
		log.Error("bulk dispatch failed", "err", err)
		return d, err
	}

	d.Complete(res, s.now())
	s.save(ctx, d)
	log.Info("bulk dispatch completed", "total_attempted", res.TotalAttempted, "sent", res.Sent, "failed", res.Failed)
	return d, nil
}

func (s *BulkService) runDetached(d domain.Dispatch, job domain.BulkJob) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic recovered in detached dispatch", "dispatch_id", d.ID, "panic", r)
		}
	}()
	// Errors are already logged and recorded; nobody is left to return them to.
	_, _ = s.run(context.Background(), d, job)
}

func (s *BulkService) save(ctx context.Context, d domain.Dispatch) {
	if err := s.store.Save(ctx, d); err != nil {
		s.log.Error("save dispatch status failed", "dispatch_id", d.ID, "status", d.Status, "err", err)
	}
}
