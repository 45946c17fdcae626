package alerts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// QueueConfig tunes the asynchronous dispatcher.
type QueueConfig struct {
	Size        int
	MaxAttempts int
	Backoff     time.Duration
	SendTimeout time.Duration

	Clock    clockwork.Clock
	OnResult ResultHook
	OnDrop   func(Alert)
	OnDepth  func(int)
}

type job struct {
	ctx   context.Context
	alert Alert
}

// Queue decouples alert delivery from the caller. A single worker delivers
// queued alerts to each notifier in order, retrying failed sends up to
// MaxAttempts times with linear backoff.
type Queue struct {
	notifiers []Notifier
	cfg       QueueConfig
	logger    *slog.Logger

	mu     sync.Mutex
	closed bool
	jobs   chan job
	done   chan struct{}
}

// NewQueue creates the queue and starts its worker.
func NewQueue(notifiers []Notifier, cfg QueueConfig, logger *slog.Logger) *Queue {
	if cfg.Size <= 0 {
		cfg.Size = 64
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	q := &Queue{
		notifiers: notifiers,
		cfg:       cfg,
		logger:    logger,
		jobs:      make(chan job, cfg.Size),
		done:      make(chan struct{}),
	}
	go q.run()
	return q
}

// Dispatch enqueues alert without blocking. When the queue is full or closed
// the alert is dropped and logged.
func (q *Queue) Dispatch(ctx context.Context, alert Alert) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.drop(alert, "queue closed")
		return
	}

	select {
	case q.jobs <- job{ctx: context.WithoutCancel(ctx), alert: alert}:
		q.depth()
	default:
		q.drop(alert, "queue full")
	}
}

// Close stops accepting alerts and waits for queued ones to be delivered,
// or for ctx to end.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len reports the number of alerts waiting for delivery.
func (q *Queue) Len() int {
	return len(q.jobs)
}

func (q *Queue) run() {
	defer close(q.done)
	for j := range q.jobs {
		q.depth()
		for _, n := range q.notifiers {
			q.deliver(j.ctx, n, j.alert)
		}
	}
}

func (q *Queue) deliver(parent context.Context, n Notifier, alert Alert) {
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(parent, q.cfg.SendTimeout)
		err := safeSend(ctx, n, alert)
		cancel()

		if q.cfg.OnResult != nil {
			q.cfg.OnResult(n.Name(), err)
		}
		if err == nil {
			return
		}

		if attempt >= q.cfg.MaxAttempts {
			q.logger.Error("send alert failed",
				"notifier", n.Name(),
				"station", alert.StationID,
				"attempts", attempt,
				"error", err,
			)
			return
		}

		wait := q.cfg.Backoff * time.Duration(attempt)
		q.logger.Warn("send alert retry",
			"notifier", n.Name(),
			"station", alert.StationID,
			"attempt", attempt,
			"backoff", wait,
			"error", err,
		)
		if wait > 0 {
			<-q.cfg.Clock.After(wait)
		}
	}
}

func (q *Queue) drop(alert Alert, reason string) {
	q.logger.Error("alert dropped",
		"station", alert.StationID,
		"state", alert.State,
		"reason", reason,
	)
	if q.cfg.OnDrop != nil {
		q.cfg.OnDrop(alert)
	}
}

func (q *Queue) depth() {
	if q.cfg.OnDepth != nil {
		q.cfg.OnDepth(len(q.jobs))
	}
}
