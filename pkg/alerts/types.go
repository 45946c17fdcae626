package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/ogulcanaydogan/dwlr-guardian/pkg/model"
)

// Alert is a water level notification for a single station.
type Alert struct {
	ID            string           `json:"id"`
	StationID     string           `json:"station_id"`
	State         model.AlertState `json:"state"`
	WaterLevel    float64          `json:"water_level"`
	LowThreshold  float64          `json:"low_threshold"`
	HighThreshold float64          `json:"high_threshold"`
	Message       string           `json:"message"`
	ObservedAt    time.Time        `json:"observed_at"`
	RaisedAt      time.Time        `json:"raised_at"`
}

// Notifier sends alerts to external systems.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Send delivers an alert. Implementations must be safe for concurrent use.
	Send(ctx context.Context, alert Alert) error
}

// Dispatcher hands an alert to every configured notifier. Delivery failures
// are handled inside the dispatcher and never reach the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert Alert)
}

// ResultHook observes the outcome of each delivery attempt.
type ResultHook func(channel string, err error)

// DeliveryError is returned by a notifier that could not deliver an alert.
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery failed: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func deliveryErr(channel string, format string, args ...any) error {
	return &DeliveryError{Channel: channel, Err: fmt.Errorf(format, args...)}
}

// safeSend calls n.Send, turning a panic into a DeliveryError.
func safeSend(ctx context.Context, n Notifier, alert Alert) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &DeliveryError{Channel: n.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return n.Send(ctx, alert)
}
