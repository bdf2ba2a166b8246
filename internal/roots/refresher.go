package roots

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/assetgc-io/assetgc/internal/logging"
)

// ScanFunc produces a fresh root set. Implemented by (*Scanner).Scan.
type ScanFunc func(ctx context.Context) (map[string]struct{}, error)

// RefresherConfig configures the background refresher.
type RefresherConfig struct {
	// Interval between scheduled refreshes. Default: 5 minutes.
	Interval time.Duration
}

// Refresher keeps a root cache fresh for the duration of a collection run.
// A scheduled refresh failure is logged and retried on the next tick; a
// forced refresh failure (from NoOlderThan or Refresh) propagates to the
// caller, because classifying against stale roots is how live assets get
// deleted.
type Refresher struct {
	cache    *Cache
	scan     ScanFunc
	interval time.Duration
	log      *logging.Logger
	now      func() time.Time

	// refreshMu serializes scans so a forced refresh and a scheduled one
	// never run concurrently.
	refreshMu sync.Mutex

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRefresher creates a refresher over the cache.
func NewRefresher(cache *Cache, scan ScanFunc, cfg RefresherConfig, log *logging.Logger) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if log == nil {
		log = logging.Global()
	}
	return &Refresher{
		cache:    cache,
		scan:     scan,
		interval: cfg.Interval,
		log:      log,
		now:      time.Now,
	}
}

// Start begins the background refresh loop. It does not perform an initial
// refresh; callers build the first root set with Refresh before sweeping.
func (r *Refresher) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	go r.run()
}

// Stop cancels the refresh loop and waits for it to exit. Safe to call
// when no refresh is in flight, and safe to call more than once.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	close(r.stopCh)
	r.mu.Unlock()

	<-r.doneCh

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

// Refresh forces a synchronous rebuild of the root set. Its failure
// propagates to the caller.
func (r *Refresher) Refresh(ctx context.Context) error {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()
	return r.refreshLocked(ctx)
}

func (r *Refresher) refreshLocked(ctx context.Context) error {
	hashes, err := r.scan(ctx)
	if err != nil {
		return fmt.Errorf("refresh roots: %w", err)
	}
	r.cache.Replace(hashes, r.now())
	return nil
}

// NoOlderThan returns once the cache's last successful refresh is within
// maxAge of now. A fresh cache returns immediately; a stale one forces a
// synchronous refresh, whose failure aborts the caller's scan. This bounds
// the window between a deploy making an asset live and the collector
// deciding the asset is garbage.
func (r *Refresher) NoOlderThan(ctx context.Context, maxAge time.Duration) error {
	if r.fresh(maxAge) {
		return nil
	}

	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	// A scheduled refresh may have finished while waiting for the lock.
	if r.fresh(maxAge) {
		return nil
	}
	return r.refreshLocked(ctx)
}

func (r *Refresher) fresh(maxAge time.Duration) bool {
	return r.now().Sub(r.cache.RefreshedAt()) <= maxAge
}

func (r *Refresher) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.interval)
			if err := r.Refresh(ctx); err != nil {
				// Retried on the next tick.
				r.log.Warnf("scheduled root refresh failed", map[string]any{
					"error": err.Error(),
				})
			}
			cancel()
		}
	}
}
