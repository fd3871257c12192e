package alerting

import (
	"context"
	"log/slog"

	"cad-sentinel/internal/schema"

	"github.com/google/uuid"
)

// EventInserter is the slice of the event store the audit dispatcher needs.
type EventInserter interface {
	Insert(ctx context.Context, event *schema.SecurityEvent) (uuid.UUID, error)
}

// AuditDispatcher is the reference delivery behavior: the alert's content is
// persisted as a low-severity security_alert_created event and written to the
// local log. This decouples alerting from any real transport while keeping a
// durable audit trail of every alert the engine produced.
type AuditDispatcher struct {
	store  EventInserter
	logger *slog.Logger
}

// NewAuditDispatcher creates an AuditDispatcher. A nil logger falls back to
// the default slog logger.
func NewAuditDispatcher(store EventInserter, logger *slog.Logger) *AuditDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditDispatcher{store: store, logger: logger}
}

// Name returns the channel name.
func (d *AuditDispatcher) Name() string {
	return "audit"
}

// Send persists the alert as a meta-event and logs it.
func (d *AuditDispatcher) Send(ctx context.Context, alert *Alert) (DeliveryResult, error) {
	meta := &schema.SecurityEvent{
		EventType: schema.EventTypeAlertCreated,
		Severity:  schema.SeverityLow,
		Details: map[string]any{
			"alert_id":   alert.ID.String(),
			"event_id":   alert.EventID.String(),
			"alert_type": alert.AlertType,
			"severity":   string(alert.Severity),
			"message":    alert.Message,
			"recipients": alert.Recipients,
			"sent_at":    alert.SentAt,
		},
	}

	if _, err := d.store.Insert(ctx, meta); err != nil {
		return DeliveryResult{Channel: d.Name()}, err
	}

	d.logger.Info("security alert",
		"alert_id", alert.ID,
		"alert_type", alert.AlertType,
		"severity", alert.Severity,
		"event_id", alert.EventID,
		"recipients", len(alert.Recipients),
	)

	return DeliveryResult{Channel: d.Name(), Delivered: true}, nil
}
