package gc

import (
	"context"
	"time"

	"github.com/assetgc-io/assetgc/internal/objectstore"
	"github.com/assetgc-io/assetgc/internal/registry"
)

// fetchPage fetches one page of assets from the underlying store. A nil
// token fetches the first page; a nil next token means the listing is
// exhausted.
type fetchPage func(ctx context.Context, token *string) ([]Asset, *string, error)

// EnumeratorConfig controls batching and the created-buffer age floor.
type EnumeratorConfig struct {
	// BatchSize is the number of assets returned per Next call.
	BatchSize int
	// CreatedBuffer excludes assets newer than this from enumeration.
	CreatedBuffer time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Enumerator streams a store's assets in fixed-size batches, filtering out
// assets younger than the created buffer. It accumulates across store pages
// so that short pages do not produce short batches mid-listing.
type Enumerator struct {
	fetch fetchPage
	cfg   EnumeratorConfig
	buf   []Asset
	token *string
	done  bool
}

func newEnumerator(fetch fetchPage, cfg EnumeratorConfig) *Enumerator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Enumerator{fetch: fetch, cfg: cfg}
}

// NewObjectEnumerator enumerates file assets from the bucket.
func NewObjectEnumerator(store objectstore.Store, cfg EnumeratorConfig) *Enumerator {
	fetch := func(ctx context.Context, token *string) ([]Asset, *string, error) {
		page, err := store.ListPage(ctx, token, int32(cfg.BatchSize))
		if err != nil {
			return nil, nil, err
		}
		assets := make([]Asset, 0, len(page.Objects))
		for _, o := range page.Objects {
			assets = append(assets, &ObjectAsset{Object: o})
		}
		return assets, page.NextToken, nil
	}
	return newEnumerator(fetch, cfg)
}

// NewImageEnumerator enumerates image assets from the repository.
func NewImageEnumerator(store registry.Store, cfg EnumeratorConfig) *Enumerator {
	fetch := func(ctx context.Context, token *string) ([]Asset, *string, error) {
		page, err := store.ListPage(ctx, token, int32(cfg.BatchSize))
		if err != nil {
			return nil, nil, err
		}
		assets := make([]Asset, 0, len(page.Images))
		for _, img := range page.Images {
			assets = append(assets, &ImageAsset{Image: img})
		}
		return assets, page.NextToken, nil
	}
	return newEnumerator(fetch, cfg)
}

// Next returns the next batch, or nil once the store is exhausted. Listing
// errors end the enumeration.
func (e *Enumerator) Next(ctx context.Context) ([]Asset, error) {
	for !e.done && len(e.buf) < e.cfg.BatchSize {
		assets, next, err := e.fetch(ctx, e.token)
		if err != nil {
			e.done = true
			e.buf = nil
			return nil, err
		}
		cutoff := e.cfg.Now().Add(-e.cfg.CreatedBuffer)
		for _, a := range assets {
			if !a.CreatedAt().After(cutoff) {
				e.buf = append(e.buf, a)
			}
		}
		if next == nil || len(assets) == 0 {
			e.done = true
		}
		e.token = next
	}
	if len(e.buf) == 0 {
		return nil, nil
	}
	n := len(e.buf)
	if n > e.cfg.BatchSize {
		n = e.cfg.BatchSize
	}
	batch := make([]Asset, n)
	copy(batch, e.buf[:n])
	e.buf = e.buf[n:]
	return batch, nil
}
