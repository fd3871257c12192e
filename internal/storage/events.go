package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cad-sentinel/internal/schema"

	"github.com/google/uuid"
)

// eventsTable is the ClickHouse table holding the security event log.
const eventsTable = "security_events"

// eventColumns is the column list shared by all event SELECTs.
const eventColumns = `id, event_type, severity, user_id, resource_type, resource_id,
	ip_address, user_agent, details, created_at, resolved_at, resolved_by`

// EventFilter selects events by any subset of its fields. Zero values mean
// "no constraint".
type EventFilter struct {
	Severities []schema.Severity
	EventTypes []string
	UserID     *string
	From       *time.Time
	To         *time.Time
	Resolved   *bool
}

// Validate checks filter arguments before they reach the database.
func (f EventFilter) Validate() error {
	for _, s := range f.Severities {
		if !s.IsValid() {
			return fmt.Errorf("%w: unknown severity %q", ErrInvalidData, s)
		}
	}
	for _, t := range f.EventTypes {
		if !schema.ValidateEventType(t) {
			return fmt.Errorf("%w: malformed event type %q", ErrInvalidData, t)
		}
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return fmt.Errorf("%w: date range start after end", ErrInvalidData)
	}
	return nil
}

// Page controls result pagination.
type Page struct {
	Limit  int
	Offset int
}

const (
	defaultPageLimit = 50
	maxPageLimit     = 1000
)

func (p Page) normalized() Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// EventPage is one page of query results. Total reflects the full match
// count regardless of pagination.
type EventPage struct {
	Events []*schema.SecurityEvent `json:"events"`
	Total  uint64                  `json:"total"`
}

// TypeCount is an event count for a single event type.
type TypeCount struct {
	EventType string `json:"event_type"`
	Count     uint64 `json:"count"`
}

// GroupCount is an event count for a single grouping key (IP or user).
type GroupCount struct {
	Key   string `json:"key"`
	Count uint64 `json:"count"`
}

// GroupColumn names a column events may be grouped by. Restricting the set
// keeps grouping keys out of SQL string interpolation.
type GroupColumn string

const (
	GroupByIPAddress GroupColumn = "ip_address"
	GroupByUserID    GroupColumn = "user_id"
)

func (g GroupColumn) valid() bool {
	return g == GroupByIPAddress || g == GroupByUserID
}

// AggregateReport is a time-bounded rollup over the event log.
type AggregateReport struct {
	BySeverity map[schema.Severity]uint64 `json:"by_severity"`
	ByType     []TypeCount                `json:"by_type"`
	Recent     []*schema.SecurityEvent    `json:"recent"`
}

// EventStore provides durable append-mostly persistence for security events.
type EventStore struct {
	client *ClickHouseClient
}

// NewEventStore creates an EventStore backed by the given client.
func NewEventStore(client *ClickHouseClient) *EventStore {
	return &EventStore{client: client}
}

// Insert assigns an identifier and creation timestamp and writes a new row.
// The assigned values are written back onto the event on success.
func (s *EventStore) Insert(ctx context.Context, event *schema.SecurityEvent) (uuid.UUID, error) {
	id := uuid.New()
	createdAt := time.Now().UTC()

	details := event.Details
	if details == nil {
		details = map[string]any{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return uuid.Nil, &StoreError{Op: "Insert", Table: eventsTable,
			Err: fmt.Errorf("%w: encode details: %w", ErrInvalidData, err)}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, event_type, severity, user_id, resource_type, resource_id,
			ip_address, user_agent, details, created_at, resolved_at, resolved_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, eventsTable)

	err = s.client.Exec(ctx, query,
		id,
		event.EventType,
		string(event.Severity),
		event.UserID,
		event.ResourceType,
		event.ResourceID,
		event.IPAddress,
		event.UserAgent,
		string(detailsJSON),
		createdAt,
		event.ResolvedAt,
		event.ResolvedBy,
	)
	if err != nil {
		return uuid.Nil, WrapInsertError("Insert", eventsTable, err)
	}

	event.ID = id
	event.CreatedAt = createdAt
	event.Details = details
	return id, nil
}

// buildWhere turns a filter into a WHERE clause with positional args.
func buildWhere(f EventFilter) (string, []any) {
	var clauses []string
	var args []any

	if len(f.Severities) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(f.Severities)), ", ")
		clauses = append(clauses, fmt.Sprintf("severity IN (%s)", placeholders))
		for _, s := range f.Severities {
			args = append(args, string(s))
		}
	}
	if len(f.EventTypes) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(f.EventTypes)), ", ")
		clauses = append(clauses, fmt.Sprintf("event_type IN (%s)", placeholders))
		for _, t := range f.EventTypes {
			args = append(args, t)
		}
	}
	if f.UserID != nil {
		clauses = append(clauses, "user_id = ?")
		args = append(args, *f.UserID)
	}
	if f.From != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, *f.From)
	}
	if f.To != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, *f.To)
	}
	if f.Resolved != nil {
		if *f.Resolved {
			clauses = append(clauses, "resolved_at IS NOT NULL")
		} else {
			clauses = append(clauses, "resolved_at IS NULL")
		}
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Query returns events matching the filter, newest first, with the total
// match count independent of pagination.
func (s *EventStore) Query(ctx context.Context, filter EventFilter, page Page) (*EventPage, error) {
	if err := filter.Validate(); err != nil {
		return nil, &StoreError{Op: "Query", Table: eventsTable, Err: err}
	}
	page = page.normalized()

	where, args := buildWhere(filter)

	var total uint64
	countQuery := fmt.Sprintf("SELECT count() FROM %s%s", eventsTable, where)
	if err := s.client.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, WrapQueryError("Query", eventsTable, err)
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s%s ORDER BY created_at DESC, id LIMIT ? OFFSET ?",
		eventColumns, eventsTable, where,
	)
	rows, err := s.client.Query(ctx, query, append(args, page.Limit, page.Offset)...)
	if err != nil {
		return nil, WrapQueryError("Query", eventsTable, err)
	}
	defer rows.Close()

	events := make([]*schema.SecurityEvent, 0, page.Limit)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, WrapQueryError("Query", eventsTable, err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapQueryError("Query", eventsTable, err)
	}

	return &EventPage{Events: events, Total: total}, nil
}

// Get returns a single event by id.
func (s *EventStore) Get(ctx context.Context, id uuid.UUID) (*schema.SecurityEvent, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? LIMIT 1", eventColumns, eventsTable)
	rows, err := s.client.Query(ctx, query, id)
	if err != nil {
		return nil, WrapQueryError("Get", eventsTable, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, WrapQueryError("Get", eventsTable, err)
		}
		return nil, WrapNotFoundError("Get", eventsTable, id.String())
	}
	event, err := scanEvent(rows)
	if err != nil {
		return nil, WrapQueryError("Get", eventsTable, err)
	}
	return event, nil
}

// CountSince counts events of the given type created at or after the window start.
func (s *EventStore) CountSince(ctx context.Context, eventType string, windowStart time.Time) (uint64, error) {
	var count uint64
	query := fmt.Sprintf("SELECT count() FROM %s WHERE event_type = ? AND created_at >= ?", eventsTable)
	if err := s.client.QueryRow(ctx, query, eventType, windowStart).Scan(&count); err != nil {
		return 0, WrapQueryError("CountSince", eventsTable, err)
	}
	return count, nil
}

// CountGroupedSince counts events of the given type per grouping key inside
// the trailing window, returning only groups at or above minCount, largest
// first. Rows with a null grouping key are excluded.
func (s *EventStore) CountGroupedSince(ctx context.Context, eventType string, group GroupColumn, windowStart time.Time, minCount uint64) ([]GroupCount, error) {
	if !group.valid() {
		return nil, &StoreError{Op: "CountGroupedSince", Table: eventsTable,
			Err: fmt.Errorf("%w: unsupported group column %q", ErrInvalidData, group)}
	}

	query := fmt.Sprintf(`
		SELECT %[1]s, count() AS c
		FROM %[2]s
		WHERE event_type = ? AND created_at >= ? AND %[1]s IS NOT NULL
		GROUP BY %[1]s
		HAVING c >= ?
		ORDER BY c DESC
	`, string(group), eventsTable)

	rows, err := s.client.Query(ctx, query, eventType, windowStart, minCount)
	if err != nil {
		return nil, WrapQueryError("CountGroupedSince", eventsTable, err)
	}
	defer rows.Close()

	var groups []GroupCount
	for rows.Next() {
		var key *string
		var count uint64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, WrapQueryError("CountGroupedSince", eventsTable, err)
		}
		if key == nil {
			continue
		}
		groups = append(groups, GroupCount{Key: *key, Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, WrapQueryError("CountGroupedSince", eventsTable, err)
	}
	return groups, nil
}

// Aggregate computes severity and type rollups over [from, to], plus the 20
// most recent events in the log.
func (s *EventStore) Aggregate(ctx context.Context, from, to time.Time) (*AggregateReport, error) {
	report := &AggregateReport{
		BySeverity: make(map[schema.Severity]uint64, 4),
	}
	for _, sev := range schema.Severities() {
		report.BySeverity[sev] = 0
	}

	sevQuery := fmt.Sprintf(`
		SELECT severity, count()
		FROM %s
		WHERE created_at >= ? AND created_at <= ?
		GROUP BY severity
	`, eventsTable)
	rows, err := s.client.Query(ctx, sevQuery, from, to)
	if err != nil {
		return nil, WrapQueryError("Aggregate", eventsTable, err)
	}
	for rows.Next() {
		var sev string
		var count uint64
		if err := rows.Scan(&sev, &count); err != nil {
			rows.Close()
			return nil, WrapQueryError("Aggregate", eventsTable, err)
		}
		report.BySeverity[schema.Severity(sev)] = count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, WrapQueryError("Aggregate", eventsTable, err)
	}
	rows.Close()

	typeQuery := fmt.Sprintf(`
		SELECT event_type, count() AS c
		FROM %s
		WHERE created_at >= ? AND created_at <= ?
		GROUP BY event_type
		ORDER BY c DESC
		LIMIT 10
	`, eventsTable)
	rows, err = s.client.Query(ctx, typeQuery, from, to)
	if err != nil {
		return nil, WrapQueryError("Aggregate", eventsTable, err)
	}
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.EventType, &tc.Count); err != nil {
			rows.Close()
			return nil, WrapQueryError("Aggregate", eventsTable, err)
		}
		report.ByType = append(report.ByType, tc)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, WrapQueryError("Aggregate", eventsTable, err)
	}
	rows.Close()

	recent, err := s.Query(ctx, EventFilter{}, Page{Limit: 20})
	if err != nil {
		return nil, err
	}
	report.Recent = recent.Events

	return report, nil
}

// UnresolvedCriticalCount counts currently-open critical events across the
// whole log, not scoped to any range.
func (s *EventStore) UnresolvedCriticalCount(ctx context.Context) (uint64, error) {
	var count uint64
	query := fmt.Sprintf(
		"SELECT count() FROM %s WHERE severity = ? AND resolved_at IS NULL", eventsTable)
	if err := s.client.QueryRow(ctx, query, string(schema.SeverityCritical)).Scan(&count); err != nil {
		return 0, WrapQueryError("UnresolvedCriticalCount", eventsTable, err)
	}
	return count, nil
}

// MeanResolutionMinutes computes mean time-to-resolution in minutes over
// events both created and resolved within [from, to]. Returns 0 when no
// event qualifies.
func (s *EventStore) MeanResolutionMinutes(ctx context.Context, from, to time.Time) (float64, error) {
	var count uint64
	var avgSeconds float64
	query := fmt.Sprintf(`
		SELECT count(), avg(dateDiff('second', created_at, resolved_at))
		FROM %s
		WHERE resolved_at IS NOT NULL
		  AND created_at >= ? AND created_at <= ?
		  AND resolved_at >= ? AND resolved_at <= ?
	`, eventsTable)
	if err := s.client.QueryRow(ctx, query, from, to, from, to).Scan(&count, &avgSeconds); err != nil {
		return 0, WrapQueryError("MeanResolutionMinutes", eventsTable, err)
	}
	if count == 0 {
		return 0, nil
	}
	return avgSeconds / 60, nil
}

// Resolve closes an event, recording who resolved it and why. The resolution
// note is merged into details under the "resolution" key. Re-resolving an
// already-resolved event overwrites the previous resolution (last write wins).
func (s *EventStore) Resolve(ctx context.Context, id uuid.UUID, resolvedBy, note string) error {
	event, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	details := event.Details
	if details == nil {
		details = map[string]any{}
	}
	details["resolution"] = note
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return &StoreError{Op: "Resolve", Table: eventsTable,
			Err: fmt.Errorf("%w: encode details: %w", ErrInvalidData, err)}
	}

	// mutations_sync keeps read-after-write behavior for the metrics and
	// resolution audit paths.
	query := fmt.Sprintf(`
		ALTER TABLE %s
		UPDATE resolved_at = ?, resolved_by = ?, details = ?
		WHERE id = ?
		SETTINGS mutations_sync = 1
	`, eventsTable)

	resolvedAt := time.Now().UTC()
	if err := s.client.Exec(ctx, query, resolvedAt, resolvedBy, string(detailsJSON), id); err != nil {
		return WrapQueryError("Resolve", eventsTable, err)
	}
	return nil
}

// eventScanner is the subset of driver rows used by scanEvent.
type eventScanner interface {
	Scan(dest ...any) error
}

// scanEvent reads one event row in eventColumns order.
func scanEvent(rows eventScanner) (*schema.SecurityEvent, error) {
	var (
		event       schema.SecurityEvent
		severity    string
		detailsJSON string
	)
	err := rows.Scan(
		&event.ID,
		&event.EventType,
		&severity,
		&event.UserID,
		&event.ResourceType,
		&event.ResourceID,
		&event.IPAddress,
		&event.UserAgent,
		&detailsJSON,
		&event.CreatedAt,
		&event.ResolvedAt,
		&event.ResolvedBy,
	)
	if err != nil {
		return nil, err
	}

	event.Severity = schema.Severity(severity)
	if detailsJSON != "" {
		if err := json.Unmarshal([]byte(detailsJSON), &event.Details); err != nil {
			return nil, fmt.Errorf("decode details for %s: %w", event.ID, err)
		}
	}
	if event.Details == nil {
		event.Details = map[string]any{}
	}
	return &event, nil
}
