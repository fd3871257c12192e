package monitor

import (
	"context"
	"fmt"

	"cad-sentinel/internal/schema"
	"cad-sentinel/internal/storage"

	"github.com/google/uuid"
)

// defaultResolutionNote is merged into details when no note is supplied.
const defaultResolutionNote = "Resolved by administrator"

// ResolveEvent closes an open event, recording who resolved it and why, and
// logs a low-severity audit meta-event for the closure. Resolution is the
// event's only state transition; there is no reopen. Re-resolving an
// already-resolved event overwrites the previous resolution (last write
// wins).
func (s *Service) ResolveEvent(ctx context.Context, id uuid.UUID, resolvedBy, note string) error {
	if resolvedBy == "" {
		return fmt.Errorf("%w: resolved_by is required", ErrValidation)
	}
	if note == "" {
		note = defaultResolutionNote
	}

	if err := s.store.Resolve(ctx, id, resolvedBy, note); err != nil {
		if storage.IsNotFound(err) {
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return fmt.Errorf("%w: %w", ErrStore, err)
	}

	meta := &schema.SecurityEvent{
		EventType: schema.EventTypeResolved,
		Severity:  schema.SeverityLow,
		Details: map[string]any{
			"event_id":    id.String(),
			"resolved_by": resolvedBy,
			"resolution":  note,
		},
	}
	if _, err := s.store.Insert(ctx, meta); err != nil {
		// The resolution itself is committed; the audit record is
		// best-effort.
		s.logger.Error("failed to record resolution meta-event",
			"event_id", id,
			"error", err,
		)
	}

	s.logger.Info("security event resolved",
		"event_id", id,
		"resolved_by", resolvedBy,
	)
	return nil
}
