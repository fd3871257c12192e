package consumer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"cad-sentinel/internal/monitor"
	"cad-sentinel/internal/schema"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

func TestDecodeEvent(t *testing.T) {
	payload := []byte(`{
		"event_type": "failed_login",
		"severity": "medium",
		"ip_address": "203.0.113.5",
		"details": {"attempt": 3}
	}`)

	event, err := decodeEvent(payload)
	if err != nil {
		t.Fatalf("decodeEvent() error = %v", err)
	}
	if event.EventType != "failed_login" {
		t.Errorf("event type = %q", event.EventType)
	}
	if event.Severity != schema.SeverityMedium {
		t.Errorf("severity = %q", event.Severity)
	}
	if event.IPAddress == nil || *event.IPAddress != "203.0.113.5" {
		t.Errorf("ip address = %v", event.IPAddress)
	}
	if event.Details["attempt"] != float64(3) {
		t.Errorf("details = %v", event.Details)
	}
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"not json", []byte("not json at all")},
		{"empty payload", []byte("")},
		{"missing event type", []byte(`{"severity":"low"}`)},
		{"wrong shape", []byte(`[1,2,3]`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeEvent(tt.payload); err == nil {
				t.Error("decodeEvent() accepted malformed payload")
			}
		})
	}
}

// fakeEngine returns a scripted LogEvent error.
type fakeEngine struct {
	err    error
	logged int
}

func (f *fakeEngine) LogEvent(_ context.Context, _ *schema.SecurityEvent) (uuid.UUID, error) {
	if f.err != nil {
		return uuid.Nil, f.err
	}
	f.logged++
	return uuid.New(), nil
}

func TestProcessMessageCommitPolicy(t *testing.T) {
	valid := []byte(`{"event_type":"failed_login","severity":"low"}`)

	tests := []struct {
		name       string
		payload    []byte
		engineErr  error
		wantCommit bool
	}{
		{"valid event", valid, nil, true},
		{"malformed payload", []byte("not json"), nil, true},
		{"engine rejects as invalid", valid, fmt.Errorf("%w: bad event type", monitor.ErrValidation), true},
		{"store failure is retried", valid, fmt.Errorf("%w: connection refused", monitor.ErrStore), false},
		{"unclassified failure is retried", valid, errors.New("timeout"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Consumer{
				engine: &fakeEngine{err: tt.engineErr},
				logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
			}

			commit := c.processMessage(context.Background(), kafka.Message{Value: tt.payload})
			if commit != tt.wantCommit {
				t.Errorf("processMessage() commit = %v, want %v", commit, tt.wantCommit)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := DefaultConfig()
	if err := valid.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no brokers", func(c *Config) { c.Brokers = nil }},
		{"no topic", func(c *Config) { c.Topic = "" }},
		{"no group id", func(c *Config) { c.GroupID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() accepted invalid config")
			}
		})
	}
}
