package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"cad-sentinel/internal/schema"
	"cad-sentinel/internal/storage"
)

func TestRangeDuration(t *testing.T) {
	tests := []struct {
		rng  Range
		want time.Duration
	}{
		{RangeDay, 24 * time.Hour},
		{RangeWeek, 7 * 24 * time.Hour},
		{RangeMonth, 30 * 24 * time.Hour},
	}
	for _, tt := range tests {
		got, err := tt.rng.Duration()
		if err != nil {
			t.Errorf("Duration(%q) error = %v", tt.rng, err)
		}
		if got != tt.want {
			t.Errorf("Duration(%q) = %v, want %v", tt.rng, got, tt.want)
		}
	}

	if _, err := Range("fortnight").Duration(); err == nil {
		t.Error("Duration() accepted an unknown range")
	}
}

func TestGetSecurityMetrics(t *testing.T) {
	store := &fakeStore{
		report: &storage.AggregateReport{
			BySeverity: map[schema.Severity]uint64{
				schema.SeverityLow:      10,
				schema.SeverityMedium:   5,
				schema.SeverityHigh:     3,
				schema.SeverityCritical: 2,
			},
			ByType: []storage.TypeCount{
				{EventType: "failed_login", Count: 12},
				{EventType: "file_accessed", Count: 8},
			},
			Recent: []*schema.SecurityEvent{},
		},
		unresolvedCritical: 4,
		meanMinutes:        37.5,
	}
	service := newTestService(store, &recordingDispatcher{}, &fakeDirectory{})

	metrics, err := service.GetSecurityMetrics(context.Background(), RangeDay)
	if err != nil {
		t.Fatalf("GetSecurityMetrics() error = %v", err)
	}

	if metrics.TotalEvents != 20 {
		t.Errorf("TotalEvents = %d, want the severity counts summed to 20", metrics.TotalEvents)
	}
	if metrics.EventsBySeverity[schema.SeverityHigh] != 3 {
		t.Errorf("EventsBySeverity = %v", metrics.EventsBySeverity)
	}
	if len(metrics.TopEventTypes) != 2 || metrics.TopEventTypes[0].EventType != "failed_login" {
		t.Errorf("TopEventTypes = %v", metrics.TopEventTypes)
	}
	if metrics.UnresolvedCritical != 4 {
		t.Errorf("UnresolvedCritical = %d, want 4", metrics.UnresolvedCritical)
	}
	if metrics.MeanResolutionMinutes != 37.5 {
		t.Errorf("MeanResolutionMinutes = %v, want 37.5", metrics.MeanResolutionMinutes)
	}

	if window := metrics.To.Sub(metrics.From); window != 24*time.Hour {
		t.Errorf("range window = %v, want 24h", window)
	}
	if metrics.Range != RangeDay {
		t.Errorf("Range = %q", metrics.Range)
	}
}

func TestGetSecurityMetricsInvalidRange(t *testing.T) {
	service := newTestService(&fakeStore{}, &recordingDispatcher{}, &fakeDirectory{})

	_, err := service.GetSecurityMetrics(context.Background(), Range("quarter"))
	if !errors.Is(err, ErrValidation) {
		t.Errorf("GetSecurityMetrics() error = %v, want ErrValidation", err)
	}
}

func TestGetSecurityMetricsStoreFailure(t *testing.T) {
	store := &fakeStore{aggregateErr: errors.New("store down")}
	service := newTestService(store, &recordingDispatcher{}, &fakeDirectory{})

	_, err := service.GetSecurityMetrics(context.Background(), RangeWeek)
	if !errors.Is(err, ErrStore) {
		t.Errorf("GetSecurityMetrics() error = %v, want ErrStore", err)
	}
}
