package gc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/assetgc-io/assetgc/internal/config"
	"github.com/assetgc-io/assetgc/internal/logging"
	"github.com/assetgc-io/assetgc/internal/metrics"
	"github.com/assetgc-io/assetgc/internal/objectstore"
	"github.com/assetgc-io/assetgc/internal/registry"
	"github.com/assetgc-io/assetgc/internal/roots"
)

// ErrAborted is returned when the operator declines a deletion prompt. The
// run ends immediately; isolation tags written earlier in the run stand.
var ErrAborted = errors.New("garbage collection aborted by user")

// Options configures one collector run.
type Options struct {
	// Action selects which mutations run: config.ActionPrint reports only,
	// config.ActionTag isolates, config.ActionDeleteTagged deletes
	// previously isolated assets, config.ActionFull does everything
	// including untag housekeeping.
	Action string
	// Target selects the stores to sweep.
	Target string
	// RollbackBufferDays is how long an asset stays isolated before it
	// becomes deletable. Zero deletes unreferenced assets immediately.
	RollbackBufferDays int
	// CreatedBufferDays excludes recently created assets from the sweep.
	CreatedBufferDays int
	// Confirm gates deletions behind an interactive prompt.
	Confirm bool
	// BatchSize is the enumeration batch size.
	BatchSize int
	// Concurrency bounds parallel store mutations.
	Concurrency int
	// MaxRootAge is how stale the root set may be when a batch is
	// classified. Older roots force a refresh before classification.
	MaxRootAge time.Duration
}

// Deps are the collector's collaborators. Objects and Images may each be
// nil when the target excludes that store.
type Deps struct {
	Objects   objectstore.Store
	Images    registry.Store
	Cache     *roots.Cache
	Refresher *roots.Refresher
	Progress  ProgressReporter
	Confirm   Confirmer
	Metrics   *metrics.GCMetrics
	Logger    *logging.Logger
	Now       func() time.Time
}

// Collector runs the mark-and-sweep pass over the configured stores.
type Collector struct {
	opts    Options
	deps    Deps
	mutator *Mutator
	log     *logging.Logger
	now     func() time.Time

	// deleteAll is set when the operator answers delete-all; later
	// deletions in the same run skip the prompt.
	deleteAll bool
}

func NewCollector(opts Options, deps Deps) *Collector {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 50
	}
	if opts.MaxRootAge <= 0 {
		opts.MaxRootAge = 10 * time.Minute
	}
	if deps.Logger == nil {
		deps.Logger = logging.Global()
	}
	if deps.Progress == nil {
		deps.Progress = NopReporter{}
	}
	if deps.Confirm == nil {
		deps.Confirm = AutoConfirmer{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Collector{
		opts:    opts,
		deps:    deps,
		mutator: NewMutator(opts.Concurrency, deps.Logger),
		log:     deps.Logger,
		now:     deps.Now,
	}
}

type storeSweep struct {
	name string
	enum *Enumerator
	acts StoreActions
}

func (c *Collector) sweeps() []storeSweep {
	ecfg := EnumeratorConfig{
		BatchSize:     c.opts.BatchSize,
		CreatedBuffer: time.Duration(c.opts.CreatedBufferDays) * 24 * time.Hour,
		Now:           c.now,
	}
	var sweeps []storeSweep
	if c.deps.Objects != nil && (c.opts.Target == config.TargetS3 || c.opts.Target == config.TargetAll) {
		sweeps = append(sweeps, storeSweep{
			name: "s3",
			enum: NewObjectEnumerator(c.deps.Objects, ecfg),
			acts: NewObjectActions(c.deps.Objects, c.opts.Concurrency, c.log),
		})
	}
	if c.deps.Images != nil && (c.opts.Target == config.TargetECR || c.opts.Target == config.TargetAll) {
		sweeps = append(sweeps, storeSweep{
			name: "ecr",
			enum: NewImageEnumerator(c.deps.Images, ecfg),
			acts: NewImageActions(c.deps.Images),
		})
	}
	return sweeps
}

// Run executes one mark-and-sweep pass. An unusable root set and an
// operator decline are fatal; a store whose listing fails ends that
// store's sweep and the error is reported after the remaining stores
// finish.
func (c *Collector) Run(ctx context.Context) error {
	runLog := c.log.WithRunID(uuid.NewString())
	c.log = runLog
	c.mutator.log = runLog

	if err := c.deps.Refresher.Refresh(ctx); err != nil {
		return fmt.Errorf("build root set: %w", err)
	}
	c.deps.Refresher.Start()
	defer c.deps.Refresher.Stop()

	runLog.Infof("root set built", map[string]any{
		"hashes": c.deps.Cache.Size(),
		"action": c.opts.Action,
		"target": c.opts.Target,
	})
	if c.deps.Metrics != nil {
		age := c.now().Sub(c.deps.Cache.RefreshedAt()).Seconds()
		c.deps.Metrics.RecordRoots(c.deps.Cache.Size(), age)
	}

	c.deps.Progress.Start()
	defer c.deps.Progress.Stop()

	var errs []error
	for _, sw := range c.sweeps() {
		started := c.now()
		err := c.sweep(ctx, sw)
		if c.deps.Metrics != nil {
			c.deps.Metrics.ObserveSweep(sw.name, c.now().Sub(started).Seconds())
		}
		if err != nil {
			if errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled) {
				return err
			}
			runLog.Errorf("store sweep failed", map[string]any{
				"store": sw.name,
				"error": err.Error(),
			})
			errs = append(errs, fmt.Errorf("%s sweep: %w", sw.name, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Collector) sweep(ctx context.Context, sw storeSweep) error {
	grace := time.Duration(c.opts.RollbackBufferDays) * 24 * time.Hour
	for {
		batch, err := sw.enum.Next(ctx)
		if err != nil {
			return fmt.Errorf("enumerate: %w", err)
		}
		if batch == nil {
			return nil
		}
		c.deps.Progress.ReportScanned(sw.name, len(batch))
		if c.deps.Metrics != nil {
			c.deps.Metrics.RecordScanned(sw.name, len(batch))
		}

		// Classify against roots no staler than MaxRootAge, so a deploy
		// that landed mid-sweep cannot get its assets isolated.
		if err := c.deps.Refresher.NoOlderThan(ctx, c.opts.MaxRootAge); err != nil {
			return fmt.Errorf("refresh root set: %w", err)
		}

		batch = sw.acts.LoadTags(ctx, batch)
		cls := ClassifyBatch(batch, c.deps.Cache, c.now(), grace)
		c.log.Debugf("batch classified", map[string]any{
			"store":      sw.name,
			"referenced": len(cls.Referenced),
			"taggable":   len(cls.Taggable),
			"pending":    len(cls.Pending),
			"deletable":  len(cls.Deletable),
			"untaggable": len(cls.Untaggable),
		})

		if err := c.apply(ctx, sw, cls); err != nil {
			return err
		}
	}
}

func (c *Collector) apply(ctx context.Context, sw storeSweep, cls Classification) error {
	tagging := c.opts.Action == config.ActionTag || c.opts.Action == config.ActionFull
	deleting := c.opts.Action == config.ActionDeleteTagged || c.opts.Action == config.ActionFull
	untagging := c.opts.Action == config.ActionFull

	if tagging && len(cls.Taggable) > 0 {
		tagged := c.mutator.TagAll(ctx, sw.acts, cls.Taggable, c.now())
		c.deps.Progress.ReportTagged(sw.name, tagged)
		if c.deps.Metrics != nil {
			c.deps.Metrics.RecordTagged(sw.name, len(tagged))
		}
	}

	// Untagging is housekeeping: it is logged and counted in metrics but
	// never surfaced through the progress reporter.
	if untagging && len(cls.Untaggable) > 0 {
		untagged := c.mutator.UntagAll(ctx, sw.acts, cls.Untaggable)
		if c.deps.Metrics != nil {
			c.deps.Metrics.RecordUntagged(sw.name, len(untagged))
		}
	}

	if deleting && len(cls.Deletable) > 0 {
		ok, err := c.confirmDelete(ctx, sw.name, cls.Deletable)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAborted
		}
		deleted := c.mutator.DeleteAll(ctx, sw.acts, cls.Deletable)
		c.deps.Progress.ReportDeleted(sw.name, deleted)
		if c.deps.Metrics != nil {
			var bytes int64
			for _, a := range deleted {
				bytes += a.SizeBytes()
			}
			c.deps.Metrics.RecordDeleted(sw.name, len(deleted), bytes)
		}
	}

	if c.opts.Action == config.ActionPrint {
		c.printPlan(sw.name, cls)
	}
	return nil
}

func (c *Collector) confirmDelete(ctx context.Context, store string, assets []Asset) (bool, error) {
	if !c.opts.Confirm || c.deleteAll {
		return true, nil
	}
	var bytes int64
	for _, a := range assets {
		bytes += a.SizeBytes()
	}
	prompt := fmt.Sprintf("delete %d unreferenced %s assets isolated over %d days ago (%s)?",
		len(assets), store, c.opts.RollbackBufferDays, humanBytes(bytes))

	c.deps.Progress.Pause()
	defer c.deps.Progress.Resume()
	answer, err := c.deps.Confirm.Ask(ctx, prompt)
	if err != nil {
		return false, fmt.Errorf("confirm deletion: %w", err)
	}
	switch answer {
	case AnswerDeleteAll:
		c.deleteAll = true
		return true, nil
	case AnswerYes:
		return true, nil
	default:
		return false, nil
	}
}

// printPlan reports what a mutating run would do, without touching the
// store.
func (c *Collector) printPlan(store string, cls Classification) {
	var bytes int64
	for _, a := range cls.Deletable {
		bytes += a.SizeBytes()
	}
	c.log.Infof("sweep plan", map[string]any{
		"store":           store,
		"would_tag":       len(cls.Taggable),
		"would_untag":     len(cls.Untaggable),
		"would_delete":    len(cls.Deletable),
		"reclaimed_bytes": bytes,
	})
}
