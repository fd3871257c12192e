package roster

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"cad-sentinel/internal/cache"
)

const (
	adminsKey   = "sentinel:roster:admins"
	securityKey = "sentinel:roster:security"
)

// CachedDirectory decorates a Directory with a short-TTL cache, saving a
// directory round trip per critical-event escalation. Invalidate must be
// called when the roster changes upstream. Cache failures fall through to
// the inner directory.
type CachedDirectory struct {
	inner  Directory
	cache  cache.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedDirectory wraps inner with caching. A non-positive ttl defaults
// to 30 seconds.
func NewCachedDirectory(inner Directory, c cache.Client, ttl time.Duration, logger *slog.Logger) *CachedDirectory {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedDirectory{inner: inner, cache: c, ttl: ttl, logger: logger}
}

func (d *CachedDirectory) ActiveAdmins(ctx context.Context) ([]string, error) {
	return d.lookup(ctx, adminsKey, d.inner.ActiveAdmins)
}

func (d *CachedDirectory) SecurityTeam(ctx context.Context) ([]string, error) {
	return d.lookup(ctx, securityKey, d.inner.SecurityTeam)
}

// Invalidate drops both cached rosters.
func (d *CachedDirectory) Invalidate(ctx context.Context) error {
	return d.cache.Delete(ctx, adminsKey, securityKey)
}

func (d *CachedDirectory) lookup(ctx context.Context, key string, fetch func(context.Context) ([]string, error)) ([]string, error) {
	data, err := d.cache.Get(ctx, key)
	if err == nil {
		var roster []string
		if err := json.Unmarshal(data, &roster); err == nil {
			return roster, nil
		}
		d.logger.Warn("corrupt roster cache entry, refetching", "key", key)
	} else if !errors.Is(err, cache.ErrMiss) {
		d.logger.Warn("roster cache unavailable", "key", key, "error", err)
	}

	roster, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(roster); err == nil {
		if err := d.cache.Set(ctx, key, data, d.ttl); err != nil {
			d.logger.Warn("roster cache write failed", "key", key, "error", err)
		}
	}
	return roster, nil
}
