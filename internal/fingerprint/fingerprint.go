// Package fingerprint derives idempotency keys for pattern alerts so that
// repeated scans inside a detection window do not re-alert the same burst.
package fingerprint

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"cad-sentinel/internal/cache"

	"golang.org/x/crypto/blake2b"
)

// Key derives a stable fingerprint from a pattern type, its grouping key and
// the time bucket the burst falls into. The bucket is the window start
// truncated to the window length, so a burst keeps the same fingerprint for
// the whole window it was detected in.
func Key(patternType, groupKey string, at time.Time, window time.Duration) string {
	bucket := at.UTC().Truncate(window).Unix()
	sum := blake2b.Sum256(fmt.Appendf(nil, "%s|%s|%d", patternType, groupKey, bucket))
	return hex.EncodeToString(sum[:16])
}

// Suppressor answers whether a fingerprint was already alerted recently.
type Suppressor interface {
	// Seen marks the fingerprint and reports whether it had been marked
	// before within its TTL.
	Seen(ctx context.Context, fp string, ttl time.Duration) (bool, error)

	// Release drops the mark so the fingerprint can fire again. Callers use
	// it to give back a claim when delivery failed after Seen.
	Release(ctx context.Context, fp string) error
}

// CacheSuppressor tracks fingerprints in a cache with per-entry TTL. SetNX
// makes the mark-and-check atomic across service replicas.
type CacheSuppressor struct {
	cache  cache.Client
	prefix string
}

// NewCacheSuppressor creates a Suppressor on top of a cache client.
func NewCacheSuppressor(c cache.Client) *CacheSuppressor {
	return &CacheSuppressor{cache: c, prefix: "sentinel:pattern:"}
}

// Seen implements Suppressor.
func (s *CacheSuppressor) Seen(ctx context.Context, fp string, ttl time.Duration) (bool, error) {
	set, err := s.cache.SetNX(ctx, s.prefix+fp, []byte("1"), ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Release implements Suppressor.
func (s *CacheSuppressor) Release(ctx context.Context, fp string) error {
	return s.cache.Delete(ctx, s.prefix+fp)
}
