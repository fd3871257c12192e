// Package monitor implements the security-event monitoring and alerting
// engine: event ingestion, sliding-window threshold detection, critical
// escalation, behavioral pattern scanning, resolution tracking and metrics
// rollups. The primary write path and the reactive alerting path are
// deliberately isolated from each other.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cad-sentinel/internal/alerting"
	"cad-sentinel/internal/fingerprint"
	"cad-sentinel/internal/roster"
	"cad-sentinel/internal/schema"
	"cad-sentinel/internal/storage"
	"cad-sentinel/internal/telemetry"

	"github.com/google/uuid"
)

// Store is the slice of the event store the engine depends on.
type Store interface {
	Insert(ctx context.Context, event *schema.SecurityEvent) (uuid.UUID, error)
	Query(ctx context.Context, filter storage.EventFilter, page storage.Page) (*storage.EventPage, error)
	CountSince(ctx context.Context, eventType string, windowStart time.Time) (uint64, error)
	CountGroupedSince(ctx context.Context, eventType string, group storage.GroupColumn, windowStart time.Time, minCount uint64) ([]storage.GroupCount, error)
	Aggregate(ctx context.Context, from, to time.Time) (*storage.AggregateReport, error)
	Resolve(ctx context.Context, id uuid.UUID, resolvedBy, note string) error
	UnresolvedCriticalCount(ctx context.Context) (uint64, error)
	MeanResolutionMinutes(ctx context.Context, from, to time.Time) (float64, error)
}

// Config holds the engine's detection configuration. Rules live here rather
// than in globals so they can be swapped per instance and unit-tested in
// isolation.
type Config struct {
	ThresholdRules     map[string]ThresholdRule `yaml:"threshold_rules"`
	CriticalEventTypes []string                 `yaml:"critical_event_types"`

	// PatternScanInterval drives the periodic background scan; zero
	// disables it (on-demand scans still work).
	PatternScanInterval time.Duration `yaml:"pattern_scan_interval"`
}

// DefaultConfig returns the platform's required detection configuration.
func DefaultConfig() Config {
	return Config{
		ThresholdRules:      DefaultThresholdRules(),
		CriticalEventTypes:  DefaultCriticalEventTypes(),
		PatternScanInterval: 5 * time.Minute,
	}
}

// Service is the injectable monitoring engine instance.
type Service struct {
	store      Store
	dispatcher alerting.Dispatcher
	directory  roster.Directory
	suppressor fingerprint.Suppressor
	validator  *schema.Validator
	rules      map[string]ThresholdRule
	critical   map[string]struct{}
	config     Config
	logger     *slog.Logger
}

// NewService constructs the engine with its collaborators passed explicitly.
func NewService(cfg Config, store Store, dispatcher alerting.Dispatcher, directory roster.Directory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ThresholdRules == nil {
		cfg.ThresholdRules = DefaultThresholdRules()
	}
	if cfg.CriticalEventTypes == nil {
		cfg.CriticalEventTypes = DefaultCriticalEventTypes()
	}

	critical := make(map[string]struct{}, len(cfg.CriticalEventTypes))
	for _, t := range cfg.CriticalEventTypes {
		critical[t] = struct{}{}
	}

	return &Service{
		store:      store,
		dispatcher: dispatcher,
		directory:  directory,
		validator:  schema.NewValidator(),
		rules:      cfg.ThresholdRules,
		critical:   critical,
		config:     cfg,
		logger:     logger,
	}
}

// SetPatternSuppressor installs an idempotency suppressor for pattern
// alerts. Without one the detector re-alerts a burst on every scan inside
// its window.
func (s *Service) SetPatternSuppressor(sup fingerprint.Suppressor) {
	s.suppressor = sup
}

// LogEvent validates and persists a security event, then runs the threshold
// and escalation checks as best-effort side effects. A failure in either
// check is logged and suppressed; only the primary persist failure is
// surfaced to the caller.
func (s *Service) LogEvent(ctx context.Context, event *schema.SecurityEvent) (uuid.UUID, error) {
	if event == nil {
		return uuid.Nil, fmt.Errorf("%w: nil event", ErrValidation)
	}
	if err := s.validator.Validate(event); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	start := time.Now()
	id, err := s.store.Insert(ctx, event)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	telemetry.IngestLatency.Observe(time.Since(start).Seconds())
	telemetry.EventsIngested.WithLabelValues(string(event.Severity)).Inc()

	s.react(ctx, event)

	return id, nil
}

// react runs the ingestion-triggered checks. The event is already durable;
// nothing in here may propagate an error back to the caller.
func (s *Service) react(ctx context.Context, event *schema.SecurityEvent) {
	if err := s.checkThreshold(ctx, event); err != nil {
		telemetry.SideEffectFailures.WithLabelValues("threshold").Inc()
		s.logger.Error("threshold evaluation failed",
			"event_id", event.ID,
			"event_type", event.EventType,
			"error", err,
		)
	}

	if err := s.escalateCritical(ctx, event); err != nil {
		telemetry.SideEffectFailures.WithLabelValues("escalation").Inc()
		s.logger.Error("critical escalation failed",
			"event_id", event.ID,
			"event_type", event.EventType,
			"error", err,
		)
	}
}

// GetEvents returns events matching the filter, newest first.
func (s *Service) GetEvents(ctx context.Context, filter storage.EventFilter, page storage.Page) (*storage.EventPage, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	result, err := s.store.Query(ctx, filter, page)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return result, nil
}

// dispatch hands an alert to the configured dispatcher.
func (s *Service) dispatch(ctx context.Context, alert *alerting.Alert) error {
	result, err := s.dispatcher.Send(ctx, alert)
	if err != nil {
		return fmt.Errorf("dispatch %s: %w", alert.AlertType, err)
	}
	telemetry.AlertsDispatched.WithLabelValues(alert.AlertType).Inc()
	if result.Suppressed {
		s.logger.Debug("alert suppressed by dispatcher",
			"alert_type", alert.AlertType,
			"channel", result.Channel,
		)
	}
	return nil
}
