package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"cad-sentinel/internal/schema"

	"github.com/google/uuid"
)

func TestBuildWhere(t *testing.T) {
	userID := "user-42"
	resolved := false
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	tests := []struct {
		name       string
		filter     EventFilter
		wantClause string
		wantArgs   int
	}{
		{
			name:       "empty filter",
			filter:     EventFilter{},
			wantClause: "",
			wantArgs:   0,
		},
		{
			name:       "severities",
			filter:     EventFilter{Severities: []schema.Severity{schema.SeverityHigh, schema.SeverityCritical}},
			wantClause: "severity IN (?, ?)",
			wantArgs:   2,
		},
		{
			name:       "event types",
			filter:     EventFilter{EventTypes: []string{"failed_login"}},
			wantClause: "event_type IN (?)",
			wantArgs:   1,
		},
		{
			name:       "user",
			filter:     EventFilter{UserID: &userID},
			wantClause: "user_id = ?",
			wantArgs:   1,
		},
		{
			name:       "date range",
			filter:     EventFilter{From: &from, To: &to},
			wantClause: "created_at >= ? AND created_at <= ?",
			wantArgs:   2,
		},
		{
			name:       "unresolved only",
			filter:     EventFilter{Resolved: &resolved},
			wantClause: "resolved_at IS NULL",
			wantArgs:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := buildWhere(tt.filter)
			if tt.wantClause == "" {
				if where != "" {
					t.Errorf("buildWhere() = %q, want empty", where)
				}
				return
			}
			if !strings.Contains(where, tt.wantClause) {
				t.Errorf("buildWhere() = %q, want clause %q", where, tt.wantClause)
			}
			if !strings.HasPrefix(where, " WHERE ") {
				t.Errorf("buildWhere() = %q, missing WHERE prefix", where)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("buildWhere() returned %d args, want %d", len(args), tt.wantArgs)
			}
		})
	}
}

func TestBuildWhereCombined(t *testing.T) {
	resolved := true
	where, args := buildWhere(EventFilter{
		Severities: []schema.Severity{schema.SeverityLow},
		EventTypes: []string{"failed_login", "login_success"},
		Resolved:   &resolved,
	})

	if strings.Count(where, " AND ") != 2 {
		t.Errorf("buildWhere() = %q, want three clauses joined by AND", where)
	}
	if len(args) != 3 {
		t.Errorf("buildWhere() returned %d args, want 3", len(args))
	}
	if !strings.Contains(where, "resolved_at IS NOT NULL") {
		t.Errorf("buildWhere() = %q, missing resolved clause", where)
	}
}

func TestEventFilterValidate(t *testing.T) {
	from := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)

	tests := []struct {
		name    string
		filter  EventFilter
		wantErr bool
	}{
		{"empty", EventFilter{}, false},
		{"valid", EventFilter{Severities: []schema.Severity{schema.SeverityLow}, EventTypes: []string{"failed_login"}}, false},
		{"bad severity", EventFilter{Severities: []schema.Severity{"urgent"}}, true},
		{"bad event type", EventFilter{EventTypes: []string{"Bad Type"}}, true},
		{"inverted range", EventFilter{From: &from, To: &to}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidData) {
				t.Errorf("Validate() error = %v, want ErrInvalidData kind", err)
			}
		})
	}
}

func TestPageNormalized(t *testing.T) {
	tests := []struct {
		name string
		in   Page
		want Page
	}{
		{"zero value", Page{}, Page{Limit: defaultPageLimit, Offset: 0}},
		{"negative", Page{Limit: -1, Offset: -5}, Page{Limit: defaultPageLimit, Offset: 0}},
		{"over cap", Page{Limit: 5000, Offset: 10}, Page{Limit: maxPageLimit, Offset: 10}},
		{"in range", Page{Limit: 25, Offset: 50}, Page{Limit: 25, Offset: 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.normalized(); got != tt.want {
				t.Errorf("normalized() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// rowStub feeds fixed column values through the scanEvent seam.
type rowStub struct {
	vals []any
}

func (r rowStub) Scan(dest ...any) error {
	if len(dest) != len(r.vals) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(r.vals))
	}
	for i, v := range r.vals {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

func eventRow(detailsJSON string) rowStub {
	return rowStub{vals: []any{
		uuid.New(),            // id
		"failed_login",        // event_type
		"medium",              // severity
		(*string)(nil),        // user_id
		(*string)(nil),        // resource_type
		(*string)(nil),        // resource_id
		(*string)(nil),        // ip_address
		(*string)(nil),        // user_agent
		detailsJSON,           // details
		time.Now().UTC(),      // created_at
		(*time.Time)(nil),     // resolved_at
		(*string)(nil),        // resolved_by
	}}
}

func TestDetailsRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		details map[string]any
	}{
		{"explicit empty object", map[string]any{}},
		{"flat payload", map[string]any{
			"reason":  "bad password",
			"attempt": float64(3),
		}},
		{"nested structures", map[string]any{
			"request": map[string]any{
				"path":    "/models/42",
				"headers": map[string]any{"x-forwarded-for": "203.0.113.5"},
			},
			"tags":      []any{"auth", "cad"},
			"count":     float64(2),
			"truncated": true,
			"parent":    nil,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Encode the way Insert writes the column.
			detailsJSON, err := json.Marshal(tt.details)
			if err != nil {
				t.Fatal(err)
			}

			event, err := scanEvent(eventRow(string(detailsJSON)))
			if err != nil {
				t.Fatalf("scanEvent() error = %v", err)
			}
			if !reflect.DeepEqual(event.Details, tt.details) {
				t.Errorf("details round trip = %#v, want %#v", event.Details, tt.details)
			}
		})
	}
}

func TestScanEventDetailsNeverNil(t *testing.T) {
	// Rows written before the DEFAULT '{}' column existed read back empty.
	for _, raw := range []string{"", "{}"} {
		event, err := scanEvent(eventRow(raw))
		if err != nil {
			t.Fatalf("scanEvent(%q) error = %v", raw, err)
		}
		if event.Details == nil || len(event.Details) != 0 {
			t.Errorf("scanEvent(%q) details = %#v, want empty map", raw, event.Details)
		}
	}
}

func TestScanEventRejectsCorruptDetails(t *testing.T) {
	if _, err := scanEvent(eventRow("{broken")); err == nil {
		t.Error("scanEvent() accepted corrupt details JSON")
	}
}

func TestGroupColumnValid(t *testing.T) {
	if !GroupByIPAddress.valid() || !GroupByUserID.valid() {
		t.Error("known group columns rejected")
	}
	if GroupColumn("details").valid() {
		t.Error("arbitrary column accepted as group key")
	}
}
