package alerting

import (
	"context"
	"errors"
	"log/slog"
)

// FanoutDispatcher sends every alert to all configured dispatchers. A
// failing channel does not stop the others; delivery counts as success when
// at least one channel accepted the alert.
type FanoutDispatcher struct {
	dispatchers []Dispatcher
	logger      *slog.Logger
}

// NewFanoutDispatcher creates a fanout over the given dispatchers.
func NewFanoutDispatcher(logger *slog.Logger, dispatchers ...Dispatcher) *FanoutDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &FanoutDispatcher{dispatchers: dispatchers, logger: logger}
}

func (f *FanoutDispatcher) Name() string {
	return "fanout"
}

func (f *FanoutDispatcher) Send(ctx context.Context, alert *Alert) (DeliveryResult, error) {
	result := DeliveryResult{Channel: f.Name()}
	var errs []error

	for _, d := range f.dispatchers {
		res, err := d.Send(ctx, alert)
		if err != nil {
			f.logger.Error("alert channel failed",
				"channel", d.Name(),
				"alert_id", alert.ID,
				"error", err,
			)
			errs = append(errs, err)
			continue
		}
		if res.Delivered {
			result.Delivered = true
		}
	}

	if !result.Delivered && len(errs) > 0 {
		return result, errors.Join(errs...)
	}
	return result, nil
}
