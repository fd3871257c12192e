// Package schema defines the security event model for CAD-Sentinel.
// Every security-relevant occurrence on the platform is recorded as a
// SecurityEvent before any detection logic runs against it.
package schema

import (
	"time"

	"github.com/google/uuid"
)

// Severity orders the urgency of an event or alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsValid checks if the severity is a valid value.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Rank returns a numeric rank for ordering severities, low first.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// Severities lists all valid severity values, low first.
func Severities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

// SecurityEvent is the unit of record. Events are created once and the only
// subsequent mutation is resolution; there is no reopen.
type SecurityEvent struct {
	// Server-assigned fields, immutable after insert.
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// Producer-supplied fields.
	EventType string         `json:"event_type" validate:"required,event_type_format,max=256"`
	Severity  Severity       `json:"severity" validate:"required,oneof=low medium high critical"`
	Details   map[string]any `json:"details"`

	// Optional context, each independently nullable.
	UserID       *string `json:"user_id,omitempty" validate:"omitempty,max=128"`
	ResourceType *string `json:"resource_type,omitempty" validate:"omitempty,max=128"`
	ResourceID   *string `json:"resource_id,omitempty" validate:"omitempty,max=256"`
	IPAddress    *string `json:"ip_address,omitempty" validate:"omitempty,ip"`
	UserAgent    *string `json:"user_agent,omitempty" validate:"omitempty,max=1024"`

	// Resolution fields, both null until resolved, then never cleared.
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy *string    `json:"resolved_by,omitempty"`
}

// IsResolved reports whether the event has been closed.
func (e *SecurityEvent) IsResolved() bool {
	return e.ResolvedAt != nil
}

// Meta-event types emitted by the engine itself. Alert creation, escalation
// and resolution are all recorded back into the event log for auditability.
const (
	EventTypeAlertCreated = "security_alert_created"
	EventTypeEscalated    = "security_event_escalated"
	EventTypeResolved     = "security_event_resolved"
)
