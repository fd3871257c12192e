package roster

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"cad-sentinel/internal/cache"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStaticDirectory(t *testing.T) {
	d, err := NewStaticDirectory([]string{"admin@x"}, []string{"sec1@x", "sec2@x"})
	if err != nil {
		t.Fatalf("NewStaticDirectory() error = %v", err)
	}

	admins, err := d.ActiveAdmins(context.Background())
	if err != nil || len(admins) != 1 {
		t.Errorf("ActiveAdmins() = %v, %v", admins, err)
	}
	security, err := d.SecurityTeam(context.Background())
	if err != nil || len(security) != 2 {
		t.Errorf("SecurityTeam() = %v, %v", security, err)
	}

	// Callers must not be able to mutate the stored roster.
	admins[0] = "mutated"
	again, _ := d.ActiveAdmins(context.Background())
	if again[0] != "admin@x" {
		t.Error("returned roster slice aliases internal state")
	}
}

func TestStaticDirectoryRejectsEmptyRosters(t *testing.T) {
	if _, err := NewStaticDirectory(nil, []string{"sec@x"}); err == nil {
		t.Error("empty admin roster accepted")
	}
	if _, err := NewStaticDirectory([]string{"admin@x"}, nil); err == nil {
		t.Error("empty security roster accepted")
	}
}

// countingDirectory counts upstream fetches.
type countingDirectory struct {
	inner   Directory
	fetches int
	err     error
}

func (c *countingDirectory) ActiveAdmins(ctx context.Context) ([]string, error) {
	c.fetches++
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.ActiveAdmins(ctx)
}

func (c *countingDirectory) SecurityTeam(ctx context.Context) ([]string, error) {
	c.fetches++
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.SecurityTeam(ctx)
}

func TestCachedDirectoryServesFromCache(t *testing.T) {
	static, _ := NewStaticDirectory([]string{"admin@x"}, []string{"sec@x"})
	counting := &countingDirectory{inner: static}
	d := NewCachedDirectory(counting, cache.NewMemory(), time.Minute, quietLogger())

	for i := 0; i < 3; i++ {
		admins, err := d.ActiveAdmins(context.Background())
		if err != nil {
			t.Fatalf("ActiveAdmins() error = %v", err)
		}
		if len(admins) != 1 || admins[0] != "admin@x" {
			t.Errorf("ActiveAdmins() = %v", admins)
		}
	}
	if counting.fetches != 1 {
		t.Errorf("upstream fetched %d times, want 1", counting.fetches)
	}
}

func TestCachedDirectoryInvalidate(t *testing.T) {
	static, _ := NewStaticDirectory([]string{"admin@x"}, []string{"sec@x"})
	counting := &countingDirectory{inner: static}
	d := NewCachedDirectory(counting, cache.NewMemory(), time.Minute, quietLogger())

	if _, err := d.SecurityTeam(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := d.Invalidate(context.Background()); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if _, err := d.SecurityTeam(context.Background()); err != nil {
		t.Fatal(err)
	}
	if counting.fetches != 2 {
		t.Errorf("upstream fetched %d times after invalidation, want 2", counting.fetches)
	}
}

// brokenCache fails every operation.
type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("cache down")
}
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache down")
}
func (brokenCache) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return false, errors.New("cache down")
}
func (brokenCache) Delete(context.Context, ...string) error { return errors.New("cache down") }
func (brokenCache) Close() error                            { return nil }

func TestCachedDirectoryFallsThroughOnCacheFailure(t *testing.T) {
	static, _ := NewStaticDirectory([]string{"admin@x"}, []string{"sec@x"})
	d := NewCachedDirectory(static, brokenCache{}, time.Minute, quietLogger())

	admins, err := d.ActiveAdmins(context.Background())
	if err != nil {
		t.Fatalf("ActiveAdmins() error = %v, cache failure must fall through", err)
	}
	if len(admins) != 1 {
		t.Errorf("ActiveAdmins() = %v", admins)
	}
}

func TestCachedDirectorySurfacesUpstreamError(t *testing.T) {
	counting := &countingDirectory{err: errors.New("directory down")}
	d := NewCachedDirectory(counting, cache.NewMemory(), time.Minute, quietLogger())

	if _, err := d.ActiveAdmins(context.Background()); err == nil {
		t.Error("upstream failure swallowed")
	}
}
