// Package sync replicates unsynced local survey rows to the remote store.
//
// A pass walks the tables parent-first (households, members, meal patterns,
// member health info, immunizations). Each row whose parents already exist
// remotely is upserted by id and then marked synced locally, but only if the
// row has not been edited since it was read. Rows whose parents are missing
// remotely are skipped and picked up by a later pass. Per-row remote failures
// are logged and recorded; they never abort the pass.
//
// Overlapping calls to SyncAll share a single in-flight pass.
//
// Example:
//
//	engine := sync.New(local, store, sync.WithLogger(logger))
//	summary, err := engine.SyncAll(ctx)
//	if err != nil {
//	    return err
//	}
//	c := summary.Counts()
//	fmt.Printf("synced=%d skipped=%d failed=%d\n", c.Synced, c.Skipped, c.Failed)
package sync
