package alerts

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSendTimeout bounds a single notifier call when none is configured.
const DefaultSendTimeout = 10 * time.Second

// Fanout delivers each alert to every notifier in order, synchronously.
// A failing notifier is logged and does not stop the remaining ones.
type Fanout struct {
	notifiers   []Notifier
	sendTimeout time.Duration
	logger      *slog.Logger
	hook        ResultHook
}

// NewFanout creates a synchronous dispatcher. Each notifier call gets its own
// sendTimeout budget. hook may be nil.
func NewFanout(notifiers []Notifier, sendTimeout time.Duration, logger *slog.Logger, hook ResultHook) *Fanout {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	return &Fanout{
		notifiers:   notifiers,
		sendTimeout: sendTimeout,
		logger:      logger,
		hook:        hook,
	}
}

// Dispatch sends alert to each notifier exactly once. Cancelling ctx does not
// cut later notifiers short; each one is bounded by the send timeout alone.
func (f *Fanout) Dispatch(ctx context.Context, alert Alert) {
	parent := context.WithoutCancel(ctx)
	for _, n := range f.notifiers {
		sendCtx, cancel := context.WithTimeout(parent, f.sendTimeout)
		err := safeSend(sendCtx, n, alert)
		cancel()

		if f.hook != nil {
			f.hook(n.Name(), err)
		}
		if err != nil {
			f.logger.Error("send alert failed",
				"notifier", n.Name(),
				"station", alert.StationID,
				"error", err,
			)
		}
	}
}
