// Package alerting defines the alert artifact and the delivery boundary.
// The engine produces alerts; how they reach humans is a pluggable concern
// behind the Dispatcher interface.
package alerting

import (
	"context"
	"time"

	"cad-sentinel/internal/schema"

	"github.com/google/uuid"
)

// Alert types produced by the engine.
const (
	// TypeCriticalEvent is raised by the escalation path for critical
	// events, independent of any threshold rule.
	TypeCriticalEvent = "critical_security_event"

	// TypeThresholdPrefix prefixes threshold alerts; the triggering event
	// type is appended, e.g. "threshold_exceeded_failed_login".
	TypeThresholdPrefix = "threshold_exceeded_"

	// Pattern detection alert types.
	TypeRepeatedFailedLogins = "repeated_failed_logins"
	TypeUnusualFileAccess    = "unusual_file_access"
)

// Alert is a notification artifact produced in reaction to one or more
// events. Alerts are created by the engine, never by external callers.
type Alert struct {
	ID         uuid.UUID       `json:"id"`
	EventID    uuid.UUID       `json:"event_id"`
	AlertType  string          `json:"alert_type"`
	Severity   schema.Severity `json:"severity"`
	Message    string          `json:"message"`
	Recipients []string        `json:"recipients"`
	SentAt     time.Time       `json:"sent_at"`

	// Acknowledgement fields are carried on the wire for downstream
	// notification systems; the engine itself never populates them.
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy *string    `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

// New builds an alert stamped with a fresh id and send time.
func New(eventID uuid.UUID, alertType string, severity schema.Severity, message string, recipients []string) *Alert {
	return &Alert{
		ID:         uuid.New(),
		EventID:    eventID,
		AlertType:  alertType,
		Severity:   severity,
		Message:    message,
		Recipients: recipients,
		SentAt:     time.Now().UTC(),
	}
}

// DeliveryResult reports the outcome of a single dispatch attempt. The
// engine never assumes delivery succeeded.
type DeliveryResult struct {
	Channel    string `json:"channel"`
	Delivered  bool   `json:"delivered"`
	Suppressed bool   `json:"suppressed,omitempty"`
}

// Dispatcher delivers an alert. Production deployments inject real
// notification transport (email, paging, chat) behind this interface.
type Dispatcher interface {
	Name() string
	Send(ctx context.Context, alert *Alert) (DeliveryResult, error)
}
