package roots

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRefreshReplacesCache(t *testing.T) {
	cache := NewCache()
	scan := func(ctx context.Context) (map[string]struct{}, error) {
		return map[string]struct{}{"abc": {}}, nil
	}
	r := NewRefresher(cache, scan, RefresherConfig{Interval: time.Hour}, nil)

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !cache.Contains("abc") {
		t.Error("cache not replaced by refresh")
	}
	if cache.RefreshedAt().IsZero() {
		t.Error("refresh time not stamped")
	}
}

func TestRefreshFailurePropagates(t *testing.T) {
	cache := NewCache()
	scan := func(ctx context.Context) (map[string]struct{}, error) {
		return nil, errors.New("cloudformation down")
	}
	r := NewRefresher(cache, scan, RefresherConfig{Interval: time.Hour}, nil)

	if err := r.Refresh(context.Background()); err == nil {
		t.Fatal("forced refresh failure must propagate")
	}
	if cache.Size() != 0 || !cache.RefreshedAt().IsZero() {
		t.Error("failed refresh must not touch the cache")
	}
}

func TestNoOlderThanFreshCacheSkipsRefresh(t *testing.T) {
	cache := NewCache()
	var scans atomic.Int32
	scan := func(ctx context.Context) (map[string]struct{}, error) {
		scans.Add(1)
		return map[string]struct{}{}, nil
	}
	r := NewRefresher(cache, scan, RefresherConfig{Interval: time.Hour}, nil)

	cache.Replace(map[string]struct{}{"abc": {}}, time.Now())

	if err := r.NoOlderThan(context.Background(), 10*time.Minute); err != nil {
		t.Fatalf("NoOlderThan: %v", err)
	}
	if scans.Load() != 0 {
		t.Errorf("fresh cache should not trigger a scan, got %d", scans.Load())
	}
}

func TestNoOlderThanStaleCacheForcesRefresh(t *testing.T) {
	cache := NewCache()
	var scans atomic.Int32
	scan := func(ctx context.Context) (map[string]struct{}, error) {
		scans.Add(1)
		return map[string]struct{}{"new": {}}, nil
	}
	r := NewRefresher(cache, scan, RefresherConfig{Interval: time.Hour}, nil)

	cache.Replace(map[string]struct{}{"old": {}}, time.Now().Add(-time.Hour))

	if err := r.NoOlderThan(context.Background(), 10*time.Minute); err != nil {
		t.Fatalf("NoOlderThan: %v", err)
	}
	if scans.Load() != 1 {
		t.Errorf("stale cache should force exactly one scan, got %d", scans.Load())
	}
	if !cache.Contains("new") {
		t.Error("forced refresh should replace the cache")
	}
}

func TestNoOlderThanForcedFailurePropagates(t *testing.T) {
	cache := NewCache()
	scan := func(ctx context.Context) (map[string]struct{}, error) {
		return nil, errors.New("throttled")
	}
	r := NewRefresher(cache, scan, RefresherConfig{Interval: time.Hour}, nil)

	cache.Replace(map[string]struct{}{}, time.Now().Add(-time.Hour))

	if err := r.NoOlderThan(context.Background(), 10*time.Minute); err == nil {
		t.Fatal("forced refresh failure must reach the caller")
	}
}

func TestScheduledRefreshRetriesAfterFailure(t *testing.T) {
	cache := NewCache()
	var scans atomic.Int32
	scan := func(ctx context.Context) (map[string]struct{}, error) {
		n := scans.Add(1)
		if n == 1 {
			return nil, errors.New("transient")
		}
		return map[string]struct{}{"ok": {}}, nil
	}
	r := NewRefresher(cache, scan, RefresherConfig{Interval: 10 * time.Millisecond}, nil)

	r.Start()
	defer r.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cache.Contains("ok") {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("refresh never succeeded after a transient failure (%d scans)", scans.Load())
}

func TestStopIsIdempotent(t *testing.T) {
	cache := NewCache()
	scan := func(ctx context.Context) (map[string]struct{}, error) {
		return map[string]struct{}{}, nil
	}
	r := NewRefresher(cache, scan, RefresherConfig{Interval: time.Hour}, nil)

	// Stop without Start is a no-op.
	r.Stop()

	r.Start()
	r.Stop()
	r.Stop()

	// Start again after a full stop works.
	r.Start()
	r.Stop()
}
