package alerting

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimitConfig bounds how often alerts of the same type are delivered.
// Threshold alerts re-fire on every qualifying event during a sustained
// burst; the limiter caps what actually reaches the transport.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	PerMin  float64 `yaml:"per_minute"` // sustained deliveries per minute per alert type
	Burst   int     `yaml:"burst"`
}

// DefaultRateLimitConfig returns the default rate limit configuration.
// Limiting is off by default; re-firing is the documented behavior.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled: false,
		PerMin:  6,
		Burst:   3,
	}
}

// RateLimitedDispatcher wraps a Dispatcher with a per-alert-type token
// bucket. Suppressed alerts are logged, not errors.
type RateLimitedDispatcher struct {
	inner    Dispatcher
	config   RateLimitConfig
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	logger   *slog.Logger
}

// NewRateLimitedDispatcher wraps inner with rate limiting.
func NewRateLimitedDispatcher(inner Dispatcher, cfg RateLimitConfig, logger *slog.Logger) *RateLimitedDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimitedDispatcher{
		inner:    inner,
		config:   cfg,
		limiters: make(map[string]*rate.Limiter),
		logger:   logger,
	}
}

func (d *RateLimitedDispatcher) Name() string {
	return d.inner.Name()
}

func (d *RateLimitedDispatcher) limiter(alertType string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	lim, ok := d.limiters[alertType]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(d.config.PerMin/60), d.config.Burst)
		d.limiters[alertType] = lim
	}
	return lim
}

func (d *RateLimitedDispatcher) Send(ctx context.Context, alert *Alert) (DeliveryResult, error) {
	if d.config.Enabled && !d.limiter(alert.AlertType).Allow() {
		d.logger.Warn("alert suppressed by rate limit",
			"alert_type", alert.AlertType,
			"alert_id", alert.ID,
		)
		return DeliveryResult{Channel: d.Name(), Suppressed: true}, nil
	}
	return d.inner.Send(ctx, alert)
}
