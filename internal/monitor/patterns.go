package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cad-sentinel/internal/alerting"
	"cad-sentinel/internal/fingerprint"
	"cad-sentinel/internal/schema"
	"cad-sentinel/internal/storage"
	"cad-sentinel/internal/telemetry"

	"github.com/google/uuid"
)

// Behavioral heuristic parameters.
const (
	failedLoginEventType = "failed_login"
	failedLoginWindow    = 15 * time.Minute
	failedLoginMinCount  = 5

	fileAccessEventType = "file_accessed"
	fileAccessWindow    = time.Hour
	fileAccessMinCount  = 100
)

// Pattern is one behavioral match from a scan.
type Pattern struct {
	Type       string          `json:"type"`
	IPAddress  string          `json:"ip_address,omitempty"`
	UserID     string          `json:"user_id,omitempty"`
	Count      uint64          `json:"count"`
	Severity   schema.Severity `json:"severity"`
	DetectedAt time.Time       `json:"detected_at"`
}

// PatternScan is the result of one detector invocation. Partial is set when
// one heuristic failed while the other's results are still included.
type PatternScan struct {
	Alerts   []*alerting.Alert `json:"alerts"`
	Patterns []Pattern         `json:"patterns"`
	Partial  bool              `json:"partial,omitempty"`
}

// DetectSuspiciousPatterns scans the event log for login-failure bursts and
// abnormal file-access volume. The two heuristics are isolated from each
// other: a store failure in one does not discard the other's results. Only
// when both fail does the call return an error.
func (s *Service) DetectSuspiciousPatterns(ctx context.Context) (*PatternScan, error) {
	telemetry.PatternScans.Inc()

	scan := &PatternScan{
		Alerts:   []*alerting.Alert{},
		Patterns: []Pattern{},
	}
	var errs []error

	if err := s.detectFailedLoginBursts(ctx, scan); err != nil {
		scan.Partial = true
		errs = append(errs, fmt.Errorf("repeated_failed_logins: %w", err))
		s.logger.Error("pattern heuristic failed",
			"heuristic", alerting.TypeRepeatedFailedLogins,
			"error", err,
		)
	}

	if err := s.detectUnusualFileAccess(ctx, scan); err != nil {
		scan.Partial = true
		errs = append(errs, fmt.Errorf("unusual_file_access: %w", err))
		s.logger.Error("pattern heuristic failed",
			"heuristic", alerting.TypeUnusualFileAccess,
			"error", err,
		)
	}

	if len(errs) == 2 {
		return nil, fmt.Errorf("%w: %w", ErrStore, errors.Join(errs...))
	}
	return scan, nil
}

// detectFailedLoginBursts groups failed_login events by source IP over the
// trailing 15 minutes and flags IPs with 5 or more failures.
func (s *Service) detectFailedLoginBursts(ctx context.Context, scan *PatternScan) error {
	now := time.Now().UTC()
	groups, err := s.store.CountGroupedSince(ctx,
		failedLoginEventType, storage.GroupByIPAddress, now.Add(-failedLoginWindow), failedLoginMinCount)
	if err != nil {
		return err
	}

	for _, g := range groups {
		pattern := Pattern{
			Type:       alerting.TypeRepeatedFailedLogins,
			IPAddress:  g.Key,
			Count:      g.Count,
			Severity:   schema.SeverityHigh,
			DetectedAt: now,
		}
		scan.Patterns = append(scan.Patterns, pattern)
		telemetry.PatternMatches.WithLabelValues(pattern.Type).Inc()

		message := fmt.Sprintf("repeated failed logins from %s: %d attempts in the last %s",
			g.Key, g.Count, failedLoginWindow)
		s.alertPattern(ctx, scan, pattern, g.Key, failedLoginWindow, message)
	}
	return nil
}

// detectUnusualFileAccess groups file_accessed events by user over the
// trailing hour and flags users with 100 or more accesses.
func (s *Service) detectUnusualFileAccess(ctx context.Context, scan *PatternScan) error {
	now := time.Now().UTC()
	groups, err := s.store.CountGroupedSince(ctx,
		fileAccessEventType, storage.GroupByUserID, now.Add(-fileAccessWindow), fileAccessMinCount)
	if err != nil {
		return err
	}

	for _, g := range groups {
		pattern := Pattern{
			Type:       alerting.TypeUnusualFileAccess,
			UserID:     g.Key,
			Count:      g.Count,
			Severity:   schema.SeverityMedium,
			DetectedAt: now,
		}
		scan.Patterns = append(scan.Patterns, pattern)
		telemetry.PatternMatches.WithLabelValues(pattern.Type).Inc()

		message := fmt.Sprintf("unusual file access by user %s: %d accesses in the last %s",
			g.Key, g.Count, fileAccessWindow)
		s.alertPattern(ctx, scan, pattern, g.Key, fileAccessWindow, message)
	}
	return nil
}

// alertPattern raises the alert for a detected pattern unless the same burst
// was already alerted inside its window. The pattern itself is always
// reported; only the alert is deduplicated. Alerting failures never fail
// the scan, and they give back the window claim so a later scan can retry.
func (s *Service) alertPattern(ctx context.Context, scan *PatternScan, pattern Pattern, groupKey string, window time.Duration, message string) {
	var fp string
	claimed := false
	if s.suppressor != nil {
		fp = fingerprint.Key(pattern.Type, groupKey, pattern.DetectedAt, window)
		seen, err := s.suppressor.Seen(ctx, fp, window)
		if err != nil {
			// Degrade to re-alerting rather than staying silent.
			s.logger.Warn("pattern suppressor unavailable", "error", err)
		} else if seen {
			s.logger.Debug("pattern already alerted in this window",
				"pattern_type", pattern.Type,
				"group_key", groupKey,
			)
			return
		} else {
			claimed = true
		}
	}

	release := func() {
		if !claimed {
			return
		}
		if err := s.suppressor.Release(ctx, fp); err != nil {
			s.logger.Warn("failed to release pattern fingerprint",
				"pattern_type", pattern.Type,
				"error", err,
			)
		}
	}

	recipients, err := s.directory.SecurityTeam(ctx)
	if err != nil {
		release()
		telemetry.SideEffectFailures.WithLabelValues("pattern_alert").Inc()
		s.logger.Error("security-team roster lookup failed", "error", err)
		return
	}

	// Pattern alerts have no single triggering event; the event id is
	// synthetic.
	alert := alerting.New(uuid.New(), pattern.Type, pattern.Severity, message, recipients)
	if err := s.dispatch(ctx, alert); err != nil {
		release()
		telemetry.SideEffectFailures.WithLabelValues("pattern_alert").Inc()
		s.logger.Error("pattern alert dispatch failed",
			"pattern_type", pattern.Type,
			"error", err,
		)
		return
	}
	scan.Alerts = append(scan.Alerts, alert)
}

// RunScanLoop invokes the detector on the configured interval until the
// context is cancelled. Scans never block ingestion; they are pure reads
// against the store.
func (s *Service) RunScanLoop(ctx context.Context) {
	interval := s.config.PatternScanInterval
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("pattern scan loop started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("pattern scan loop stopped")
			return
		case <-ticker.C:
			scan, err := s.DetectSuspiciousPatterns(ctx)
			if err != nil {
				s.logger.Error("scheduled pattern scan failed", "error", err)
				continue
			}
			if len(scan.Patterns) > 0 {
				s.logger.Info("scheduled pattern scan flagged activity",
					"patterns", len(scan.Patterns),
					"alerts", len(scan.Alerts),
					slog.Bool("partial", scan.Partial),
				)
			}
		}
	}
}
