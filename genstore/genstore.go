// Package genstore keeps per-key generation counters.
//
// A generation is bumped every time a rendered entry is invalidated. Writers
// snapshot the generation before the slow path (fetch + render) and only
// store their result if it is unchanged, so an invalidation that lands while
// a render is in flight is never overwritten by the stale render.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where generations live.
// Use Local (default) for a single process, or Redis when several replicas
// share one ephemeral provider.
type GenStore interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, storageKey string) (uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, storageKey string) (uint64, error)
	// Cleanup prunes old metadata if applicable (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
