package monitor

import (
	"context"
	"errors"
	"fmt"

	"cad-sentinel/internal/alerting"
	"cad-sentinel/internal/schema"
)

// DefaultCriticalEventTypes returns the event types that always escalate
// regardless of threshold rules.
func DefaultCriticalEventTypes() []string {
	return []string{
		"data_breach",
		"unauthorized_admin_access",
		"system_compromise",
		"malware_detected",
		"encryption_key_compromise",
	}
}

// isCritical reports whether an event must escalate: type in the critical
// set, or logged with critical severity.
func (s *Service) isCritical(event *schema.SecurityEvent) bool {
	if event.Severity == schema.SeverityCritical {
		return true
	}
	_, ok := s.critical[event.EventType]
	return ok
}

// escalateCritical raises a critical alert to the full active-admin roster,
// fetched fresh per call, and records an escalation meta-event referencing
// the original event. Runs independently of the threshold path; both may
// fire for the same event.
func (s *Service) escalateCritical(ctx context.Context, event *schema.SecurityEvent) error {
	if !s.isCritical(event) {
		return nil
	}

	admins, err := s.directory.ActiveAdmins(ctx)
	if err != nil {
		return fmt.Errorf("active-admin roster: %w", err)
	}

	alert := alerting.New(
		event.ID,
		alerting.TypeCriticalEvent,
		schema.SeverityCritical,
		fmt.Sprintf("critical security event: %s (severity %s)", event.EventType, event.Severity),
		admins,
	)

	s.logger.Warn("escalating critical security event",
		"event_id", event.ID,
		"event_type", event.EventType,
		"severity", event.Severity,
		"recipients", len(admins),
	)

	var errs []error
	if err := s.dispatch(ctx, alert); err != nil {
		errs = append(errs, err)
	}

	// The escalation itself is auditable, even when dispatch failed.
	meta := &schema.SecurityEvent{
		EventType: schema.EventTypeEscalated,
		Severity:  schema.SeverityLow,
		Details: map[string]any{
			"event_id":   event.ID.String(),
			"event_type": event.EventType,
			"alert_id":   alert.ID.String(),
		},
	}
	if _, err := s.store.Insert(ctx, meta); err != nil {
		errs = append(errs, fmt.Errorf("record escalation meta-event: %w", err))
	}

	return errors.Join(errs...)
}
