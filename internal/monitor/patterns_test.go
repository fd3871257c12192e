package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"cad-sentinel/internal/alerting"
	"cad-sentinel/internal/cache"
	"cad-sentinel/internal/fingerprint"
	"cad-sentinel/internal/schema"
	"cad-sentinel/internal/storage"
)

func TestDetectFailedLoginBurst(t *testing.T) {
	store := &fakeStore{
		grouped: map[string][]storage.GroupCount{
			"failed_login": {{Key: "203.0.113.5", Count: 8}},
		},
	}
	dispatcher := &recordingDispatcher{}
	service := newTestService(store, dispatcher, &fakeDirectory{security: []string{"sec@x"}})

	scan, err := service.DetectSuspiciousPatterns(context.Background())
	if err != nil {
		t.Fatalf("DetectSuspiciousPatterns() error = %v", err)
	}
	if scan.Partial {
		t.Error("scan marked partial with no heuristic failure")
	}

	if len(scan.Patterns) != 1 {
		t.Fatalf("detected %d patterns, want 1", len(scan.Patterns))
	}
	p := scan.Patterns[0]
	if p.Type != alerting.TypeRepeatedFailedLogins {
		t.Errorf("pattern type = %q", p.Type)
	}
	if p.IPAddress != "203.0.113.5" || p.Count != 8 {
		t.Errorf("pattern = %+v", p)
	}
	if p.Severity != schema.SeverityHigh {
		t.Errorf("pattern severity = %q, want high", p.Severity)
	}

	if len(scan.Alerts) != 1 {
		t.Fatalf("raised %d alerts, want 1", len(scan.Alerts))
	}
	if len(dispatcher.sent) != 1 {
		t.Errorf("dispatched %d alerts, want 1", len(dispatcher.sent))
	}
}

func TestDetectUnusualFileAccess(t *testing.T) {
	store := &fakeStore{
		grouped: map[string][]storage.GroupCount{
			"file_accessed": {{Key: "user-42", Count: 150}},
		},
	}
	dispatcher := &recordingDispatcher{}
	service := newTestService(store, dispatcher, &fakeDirectory{security: []string{"sec@x"}})

	scan, err := service.DetectSuspiciousPatterns(context.Background())
	if err != nil {
		t.Fatalf("DetectSuspiciousPatterns() error = %v", err)
	}
	if len(scan.Patterns) != 1 {
		t.Fatalf("detected %d patterns, want 1", len(scan.Patterns))
	}
	p := scan.Patterns[0]
	if p.Type != alerting.TypeUnusualFileAccess || p.UserID != "user-42" {
		t.Errorf("pattern = %+v", p)
	}
	if p.Severity != schema.SeverityMedium {
		t.Errorf("pattern severity = %q, want medium", p.Severity)
	}
}

func TestDetectNoActivity(t *testing.T) {
	service := newTestService(&fakeStore{}, &recordingDispatcher{}, &fakeDirectory{security: []string{"sec@x"}})

	scan, err := service.DetectSuspiciousPatterns(context.Background())
	if err != nil {
		t.Fatalf("DetectSuspiciousPatterns() error = %v", err)
	}
	if len(scan.Patterns) != 0 || len(scan.Alerts) != 0 {
		t.Errorf("scan = %+v, want empty", scan)
	}
	if scan.Patterns == nil || scan.Alerts == nil {
		t.Error("empty scan must serialize as [], not null")
	}
}

func TestPatternScanPartialFailure(t *testing.T) {
	// The failed-login heuristic fails; file-access results still land.
	store := &fakeStore{
		groupedErr: map[string]error{"failed_login": errors.New("store down")},
		grouped: map[string][]storage.GroupCount{
			"file_accessed": {{Key: "user-42", Count: 200}},
		},
	}
	service := newTestService(store, &recordingDispatcher{}, &fakeDirectory{security: []string{"sec@x"}})

	scan, err := service.DetectSuspiciousPatterns(context.Background())
	if err != nil {
		t.Fatalf("DetectSuspiciousPatterns() error = %v, one surviving heuristic must not fail the scan", err)
	}
	if !scan.Partial {
		t.Error("scan.Partial = false after a heuristic failure")
	}
	if len(scan.Patterns) != 1 {
		t.Errorf("detected %d patterns, want the surviving heuristic's 1", len(scan.Patterns))
	}
}

func TestPatternScanTotalFailure(t *testing.T) {
	store := &fakeStore{
		groupedErr: map[string]error{
			"failed_login":  errors.New("store down"),
			"file_accessed": errors.New("store down"),
		},
	}
	service := newTestService(store, &recordingDispatcher{}, &fakeDirectory{security: []string{"sec@x"}})

	_, err := service.DetectSuspiciousPatterns(context.Background())
	if !errors.Is(err, ErrStore) {
		t.Errorf("DetectSuspiciousPatterns() error = %v, want ErrStore", err)
	}
}

func TestPatternAlertDeduplication(t *testing.T) {
	store := &fakeStore{
		grouped: map[string][]storage.GroupCount{
			"failed_login": {{Key: "203.0.113.5", Count: 8}},
		},
	}
	dispatcher := &recordingDispatcher{}
	service := newTestService(store, dispatcher, &fakeDirectory{security: []string{"sec@x"}})
	service.SetPatternSuppressor(fingerprint.NewCacheSuppressor(cache.NewMemory()))

	first, err := service.DetectSuspiciousPatterns(context.Background())
	if err != nil {
		t.Fatalf("first scan error = %v", err)
	}
	if len(first.Alerts) != 1 {
		t.Fatalf("first scan raised %d alerts, want 1", len(first.Alerts))
	}

	second, err := service.DetectSuspiciousPatterns(context.Background())
	if err != nil {
		t.Fatalf("second scan error = %v", err)
	}
	if len(second.Patterns) != 1 {
		t.Errorf("second scan reported %d patterns, the pattern itself is never deduplicated", len(second.Patterns))
	}
	if len(second.Alerts) != 0 {
		t.Errorf("second scan raised %d alerts inside the same window, want 0", len(second.Alerts))
	}
	if len(dispatcher.sent) != 1 {
		t.Errorf("dispatched %d alerts total, want 1", len(dispatcher.sent))
	}
}

// failingSuppressor always errors.
type failingSuppressor struct{}

func (failingSuppressor) Seen(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func (failingSuppressor) Release(context.Context, string) error {
	return errors.New("redis down")
}

func TestPatternSuppressorFailureDegradesToAlerting(t *testing.T) {
	store := &fakeStore{
		grouped: map[string][]storage.GroupCount{
			"failed_login": {{Key: "203.0.113.5", Count: 8}},
		},
	}
	dispatcher := &recordingDispatcher{}
	service := newTestService(store, dispatcher, &fakeDirectory{security: []string{"sec@x"}})
	service.SetPatternSuppressor(failingSuppressor{})

	scan, err := service.DetectSuspiciousPatterns(context.Background())
	if err != nil {
		t.Fatalf("DetectSuspiciousPatterns() error = %v", err)
	}
	if len(scan.Alerts) != 1 {
		t.Errorf("raised %d alerts with a broken suppressor, want 1 (degrade to re-alerting)", len(scan.Alerts))
	}
}

func TestPatternAlertRetriesAfterDeliveryFailure(t *testing.T) {
	store := &fakeStore{
		grouped: map[string][]storage.GroupCount{
			"failed_login": {{Key: "203.0.113.5", Count: 8}},
		},
	}
	dispatcher := &recordingDispatcher{sendErr: errors.New("webhook down")}
	service := newTestService(store, dispatcher, &fakeDirectory{security: []string{"sec@x"}})
	service.SetPatternSuppressor(fingerprint.NewCacheSuppressor(cache.NewMemory()))

	first, err := service.DetectSuspiciousPatterns(context.Background())
	if err != nil {
		t.Fatalf("first scan error = %v", err)
	}
	if len(first.Alerts) != 0 {
		t.Fatalf("first scan raised %d alerts with transport down, want 0", len(first.Alerts))
	}

	// Transport recovers; the same burst inside the same window must alert.
	dispatcher.sendErr = nil
	second, err := service.DetectSuspiciousPatterns(context.Background())
	if err != nil {
		t.Fatalf("second scan error = %v", err)
	}
	if len(second.Alerts) != 1 {
		t.Errorf("second scan raised %d alerts after transport recovered, want 1", len(second.Alerts))
	}
	if len(dispatcher.sent) != 1 {
		t.Errorf("dispatched %d alerts total, want 1", len(dispatcher.sent))
	}
}

func TestPatternAlertRetriesAfterRosterFailure(t *testing.T) {
	store := &fakeStore{
		grouped: map[string][]storage.GroupCount{
			"failed_login": {{Key: "203.0.113.5", Count: 8}},
		},
	}
	dispatcher := &recordingDispatcher{}
	directory := &fakeDirectory{securityErr: errors.New("directory down")}
	service := newTestService(store, dispatcher, directory)
	service.SetPatternSuppressor(fingerprint.NewCacheSuppressor(cache.NewMemory()))

	if _, err := service.DetectSuspiciousPatterns(context.Background()); err != nil {
		t.Fatalf("first scan error = %v", err)
	}

	directory.securityErr = nil
	directory.security = []string{"sec@x"}
	second, err := service.DetectSuspiciousPatterns(context.Background())
	if err != nil {
		t.Fatalf("second scan error = %v", err)
	}
	if len(second.Alerts) != 1 {
		t.Errorf("second scan raised %d alerts after roster recovered, want 1", len(second.Alerts))
	}
}

func TestPatternRosterFailureKeepsPattern(t *testing.T) {
	store := &fakeStore{
		grouped: map[string][]storage.GroupCount{
			"failed_login": {{Key: "203.0.113.5", Count: 8}},
		},
	}
	service := newTestService(store, &recordingDispatcher{}, &fakeDirectory{securityErr: errors.New("directory down")})

	scan, err := service.DetectSuspiciousPatterns(context.Background())
	if err != nil {
		t.Fatalf("DetectSuspiciousPatterns() error = %v", err)
	}
	if len(scan.Patterns) != 1 {
		t.Errorf("detected %d patterns, want 1 even when alerting is impossible", len(scan.Patterns))
	}
	if len(scan.Alerts) != 0 {
		t.Errorf("raised %d alerts with no roster, want 0", len(scan.Alerts))
	}
}
