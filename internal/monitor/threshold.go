package monitor

import (
	"context"
	"fmt"
	"time"

	"cad-sentinel/internal/alerting"
	"cad-sentinel/internal/schema"
)

// ThresholdRule is a count ceiling over a trailing window for one event type.
type ThresholdRule struct {
	MaxCount uint64        `yaml:"max_count"`
	Window   time.Duration `yaml:"window"`
}

// DefaultThresholdRules returns the four rules the platform requires.
func DefaultThresholdRules() map[string]ThresholdRule {
	return map[string]ThresholdRule{
		"suspicious_activity":   {MaxCount: 5, Window: 5 * time.Minute},
		"unauthorized_access":   {MaxCount: 3, Window: 5 * time.Minute},
		"failed_login":          {MaxCount: 10, Window: 15 * time.Minute},
		"file_access_violation": {MaxCount: 5, Window: 10 * time.Minute},
	}
}

// checkThreshold counts same-type events inside the rule's trailing window
// and raises an alert when the ceiling is crossed. The count is re-derived
// from the store on every matching event; a sustained burst above threshold
// re-fires on each subsequent qualifying event.
func (s *Service) checkThreshold(ctx context.Context, event *schema.SecurityEvent) error {
	rule, ok := s.rules[event.EventType]
	if !ok {
		return nil
	}

	windowStart := time.Now().UTC().Add(-rule.Window)
	count, err := s.store.CountSince(ctx, event.EventType, windowStart)
	if err != nil {
		return fmt.Errorf("count %s since %s: %w", event.EventType, windowStart.Format(time.RFC3339), err)
	}
	if count < rule.MaxCount {
		return nil
	}

	recipients, err := s.directory.SecurityTeam(ctx)
	if err != nil {
		return fmt.Errorf("security-team roster: %w", err)
	}

	alert := alerting.New(
		event.ID,
		alerting.TypeThresholdPrefix+event.EventType,
		event.Severity,
		fmt.Sprintf("threshold exceeded for %s: %d events in the last %s (limit %d)",
			event.EventType, count, rule.Window, rule.MaxCount),
		recipients,
	)

	s.logger.Warn("event threshold exceeded",
		"event_type", event.EventType,
		"count", count,
		"limit", rule.MaxCount,
		"window", rule.Window,
	)

	return s.dispatch(ctx, alert)
}
