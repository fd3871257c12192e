package monitor

import (
	"context"
	"fmt"
	"time"

	"cad-sentinel/internal/schema"
	"cad-sentinel/internal/storage"
)

// Range selects the rollup window for security metrics.
type Range string

const (
	RangeDay   Range = "day"
	RangeWeek  Range = "week"
	RangeMonth Range = "month"
)

// Duration returns the trailing window length for the range.
func (r Range) Duration() (time.Duration, error) {
	switch r {
	case RangeDay:
		return 24 * time.Hour, nil
	case RangeWeek:
		return 7 * 24 * time.Hour, nil
	case RangeMonth:
		return 30 * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unknown range %q", r)
}

// SecurityMetrics is the aggregate rollup for the operations dashboard.
type SecurityMetrics struct {
	Range Range     `json:"range"`
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`

	TotalEvents      uint64                     `json:"total_events"`
	EventsBySeverity map[schema.Severity]uint64 `json:"events_by_severity"`
	TopEventTypes    []storage.TypeCount        `json:"top_event_types"`
	RecentEvents     []*schema.SecurityEvent    `json:"recent_events"`

	// UnresolvedCritical is global, not range-scoped: an open critical
	// event stays visible however old it is.
	UnresolvedCritical uint64 `json:"unresolved_critical"`

	// MeanResolutionMinutes covers only events both created and resolved
	// within the range.
	MeanResolutionMinutes float64 `json:"mean_resolution_minutes"`
}

// GetSecurityMetrics computes totals, severity and type breakdowns, recent
// events, the global unresolved-critical count and mean time-to-resolution
// over the requested trailing range.
func (s *Service) GetSecurityMetrics(ctx context.Context, r Range) (*SecurityMetrics, error) {
	window, err := r.Duration()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	to := time.Now().UTC()
	from := to.Add(-window)

	report, err := s.store.Aggregate(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	var total uint64
	for _, count := range report.BySeverity {
		total += count
	}

	unresolved, err := s.store.UnresolvedCriticalCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	mean, err := s.store.MeanResolutionMinutes(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	return &SecurityMetrics{
		Range:                 r,
		From:                  from,
		To:                    to,
		TotalEvents:           total,
		EventsBySeverity:      report.BySeverity,
		TopEventTypes:         report.ByType,
		RecentEvents:          report.Recent,
		UnresolvedCritical:    unresolved,
		MeanResolutionMinutes: mean,
	}, nil
}
