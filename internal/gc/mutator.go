package gc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/assetgc-io/assetgc/internal/logging"
	"github.com/assetgc-io/assetgc/internal/objectstore"
	"github.com/assetgc-io/assetgc/internal/registry"
)

// StoreActions adapts one asset store to the mutations the collector
// performs. Implementations exist for the object bucket and the image
// repository.
type StoreActions interface {
	// Name identifies the store in logs and metrics ("s3" or "ecr").
	Name() string
	// DeleteChunk is the store's maximum batch-delete size.
	DeleteChunk() int
	// LoadTags hydrates tag state for the batch and returns the assets
	// whose state is known. Assets whose tags could not be fetched are
	// dropped from the batch.
	LoadTags(ctx context.Context, assets []Asset) []Asset
	// Tag attaches an isolation marker to the asset.
	Tag(ctx context.Context, a Asset, index int64, at time.Time) error
	// Untag removes the asset's isolation marker.
	Untag(ctx context.Context, a Asset) error
	// Delete removes one chunk of assets.
	Delete(ctx context.Context, assets []Asset) error
}

// Mutator applies tag, untag and delete mutations with bounded concurrency.
// Per-item failures are logged at debug level and the item is skipped; the
// next run re-observes whatever state was left behind.
type Mutator struct {
	width int
	log   *logging.Logger

	tagIndex atomic.Int64
}

func NewMutator(width int, log *logging.Logger) *Mutator {
	if width <= 0 {
		width = 1
	}
	if log == nil {
		log = logging.Global()
	}
	return &Mutator{width: width, log: log}
}

// TagAll isolates every asset in the batch, stamping each with a unique
// index and the given timestamp. Returns the assets that were tagged.
func (m *Mutator) TagAll(ctx context.Context, acts StoreActions, assets []Asset, at time.Time) []Asset {
	return m.forEach(ctx, assets, func(a Asset) error {
		idx := m.tagIndex.Add(1)
		if err := acts.Tag(ctx, a, idx, at); err != nil {
			if errors.Is(err, registry.ErrTagExists) {
				// Another writer raced us to this tag. The asset stays
				// untagged this run and is retried on the next.
				m.log.Debugf("isolation tag collision", map[string]any{
					"store": acts.Name(),
					"asset": a.Ref(),
				})
				return err
			}
			return err
		}
		return nil
	})
}

// UntagAll removes isolation markers from every asset in the batch and
// returns the assets whose marker was removed.
func (m *Mutator) UntagAll(ctx context.Context, acts StoreActions, assets []Asset) []Asset {
	return m.forEach(ctx, assets, func(a Asset) error {
		return acts.Untag(ctx, a)
	})
}

// DeleteAll deletes the batch in store-sized chunks and returns the assets
// that were deleted. A failed chunk is skipped, not retried.
func (m *Mutator) DeleteAll(ctx context.Context, acts StoreActions, assets []Asset) []Asset {
	chunkSize := acts.DeleteChunk()
	if chunkSize <= 0 {
		chunkSize = 1
	}
	var chunks [][]Asset
	for start := 0; start < len(assets); start += chunkSize {
		end := start + chunkSize
		if end > len(assets) {
			end = len(assets)
		}
		chunks = append(chunks, assets[start:end])
	}

	var (
		mu      sync.Mutex
		deleted []Asset
		wg      sync.WaitGroup
		sem     = make(chan struct{}, m.width)
	)
	for _, chunk := range chunks {
		wg.Add(1)
		sem <- struct{}{}
		go func(chunk []Asset) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := acts.Delete(ctx, chunk); err != nil {
				m.log.Debugf("delete chunk failed", map[string]any{
					"store": acts.Name(),
					"count": len(chunk),
					"error": err.Error(),
				})
				return
			}
			mu.Lock()
			deleted = append(deleted, chunk...)
			mu.Unlock()
		}(chunk)
	}
	wg.Wait()
	return deleted
}

// forEach runs fn per asset across the worker pool, returning the assets
// for which fn succeeded. Failures are logged at debug level.
func (m *Mutator) forEach(ctx context.Context, assets []Asset, fn func(Asset) error) []Asset {
	var (
		mu   sync.Mutex
		done []Asset
		wg   sync.WaitGroup
		sem  = make(chan struct{}, m.width)
	)
	for _, a := range assets {
		wg.Add(1)
		sem <- struct{}{}
		go func(a Asset) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := fn(a); err != nil {
				m.log.Debugf("asset mutation failed", map[string]any{
					"asset": a.Ref(),
					"error": err.Error(),
				})
				return
			}
			mu.Lock()
			done = append(done, a)
			mu.Unlock()
		}(a)
	}
	wg.Wait()
	return done
}

// objectActions mutates file assets in the bucket.
type objectActions struct {
	store objectstore.Store
	width int
	log   *logging.Logger
}

// NewObjectActions wires the object bucket into the mutator. width bounds
// the tag-hydration fan-out.
func NewObjectActions(store objectstore.Store, width int, log *logging.Logger) StoreActions {
	if width <= 0 {
		width = 1
	}
	if log == nil {
		log = logging.Global()
	}
	return &objectActions{store: store, width: width, log: log}
}

func (o *objectActions) Name() string     { return "s3" }
func (o *objectActions) DeleteChunk() int { return objectstore.MaxDeleteBatch }

// LoadTags fetches each object's tag set concurrently. GetObjectTagging is
// one call per key, so this is the hottest path of an object sweep.
func (o *objectActions) LoadTags(ctx context.Context, assets []Asset) []Asset {
	var (
		mu    sync.Mutex
		known []Asset
		wg    sync.WaitGroup
		sem   = make(chan struct{}, o.width)
	)
	for _, a := range assets {
		obj, ok := a.(*ObjectAsset)
		if !ok {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(obj *ObjectAsset) {
			defer wg.Done()
			defer func() { <-sem }()
			tags, err := o.store.GetTagging(ctx, obj.Object.Key)
			if err != nil {
				o.log.Debugf("fetch object tags failed", map[string]any{
					"key":   obj.Object.Key,
					"error": err.Error(),
				})
				return
			}
			obj.SetTags(tags)
			mu.Lock()
			known = append(known, obj)
			mu.Unlock()
		}(obj)
	}
	wg.Wait()
	return known
}

func (o *objectActions) Tag(ctx context.Context, a Asset, index int64, at time.Time) error {
	obj, ok := a.(*ObjectAsset)
	if !ok {
		return fmt.Errorf("object actions: unexpected asset %T", a)
	}
	// PutObjectTagging replaces the whole tag set, so carry the existing
	// tags along.
	tags := append([]objectstore.Tag{}, obj.Tags()...)
	tags = append(tags, objectstore.Tag{Key: ObjectTagKey, Value: FormatObjectValue(index, at)})
	return o.store.PutTagging(ctx, obj.Object.Key, tags)
}

func (o *objectActions) Untag(ctx context.Context, a Asset) error {
	obj, ok := a.(*ObjectAsset)
	if !ok {
		return fmt.Errorf("object actions: unexpected asset %T", a)
	}
	// Re-read rather than trust the hydrated copy: other tags may have
	// changed since enumeration and the rewrite must not clobber them.
	tags, err := o.store.GetTagging(ctx, obj.Object.Key)
	if err != nil {
		return err
	}
	kept := make([]objectstore.Tag, 0, len(tags))
	for _, t := range tags {
		if t.Key != ObjectTagKey {
			kept = append(kept, t)
		}
	}
	return o.store.PutTagging(ctx, obj.Object.Key, kept)
}

func (o *objectActions) Delete(ctx context.Context, assets []Asset) error {
	keys := make([]string, 0, len(assets))
	for _, a := range assets {
		if obj, ok := a.(*ObjectAsset); ok {
			keys = append(keys, obj.Object.Key)
		}
	}
	return o.store.DeleteBatch(ctx, keys)
}

// imageActions mutates image assets in the repository.
type imageActions struct {
	store registry.Store
}

// NewImageActions wires the image repository into the mutator.
func NewImageActions(store registry.Store) StoreActions {
	return &imageActions{store: store}
}

func (i *imageActions) Name() string     { return "ecr" }
func (i *imageActions) DeleteChunk() int { return registry.MaxDeleteBatch }

// LoadTags is a no-op for images: tags arrive with the manifest listing.
func (i *imageActions) LoadTags(_ context.Context, assets []Asset) []Asset {
	return assets
}

func (i *imageActions) Tag(ctx context.Context, a Asset, index int64, at time.Time) error {
	img, ok := a.(*ImageAsset)
	if !ok {
		return fmt.Errorf("image actions: unexpected asset %T", a)
	}
	return i.store.PutTag(ctx, img.Image.Manifest, FormatImageTag(index, at))
}

func (i *imageActions) Untag(ctx context.Context, a Asset) error {
	img, ok := a.(*ImageAsset)
	if !ok {
		return fmt.Errorf("image actions: unexpected asset %T", a)
	}
	tag, ok := img.isolationString()
	if !ok {
		return nil
	}
	// Deleting the tag alias leaves the manifest as long as other tags
	// remain, which is always the case for a referenced image.
	return i.store.BatchDelete(ctx, []registry.ImageID{{Tag: tag}})
}

func (i *imageActions) Delete(ctx context.Context, assets []Asset) error {
	ids := make([]registry.ImageID, 0, len(assets))
	for _, a := range assets {
		if img, ok := a.(*ImageAsset); ok {
			ids = append(ids, registry.ImageID{Digest: img.Image.Digest})
		}
	}
	return i.store.BatchDelete(ctx, ids)
}
