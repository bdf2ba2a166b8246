// Package gc implements mark-and-sweep garbage collection for deployment
// assets.
//
// # Mark Phase
//
// The root set is the set of asset hashes referenced by deployed stack
// templates, maintained by [roots.Refresher] and queried through
// [roots.Cache]. Any asset whose hash appears in the root set is in use
// and is never touched.
//
// # Sweep Phase
//
// The [Collector] enumerates assets from each configured store in batches,
// classifies every asset against the root set, and acts on it:
//
//   - unreferenced and untagged assets receive an isolation tag
//   - unreferenced assets isolated longer than the rollback buffer are
//     deleted
//   - referenced assets that still carry an isolation tag have it removed
//
// Isolation tags carry the timestamp at which the asset was first observed
// unreferenced, so an asset survives at least the rollback buffer between
// isolation and deletion. Assets newer than the created buffer are skipped
// entirely during enumeration.
//
// # Usage
//
//	c := gc.NewCollector(gc.Options{
//	    Action:             config.ActionFull,
//	    Target:             config.TargetAll,
//	    RollbackBufferDays: 30,
//	}, deps)
//	err := c.Run(ctx)
package gc
