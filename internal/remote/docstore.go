// Package remote is the remote document channel: per-path live
// subscriptions to a schemaless document store plus debounced, coalesced
// publishes. The Store interface is the minimal contract the sync engine
// needs from any document backend (get-with-live-updates, overwrite,
// delete); Client speaks it over HTTP and WebSocket, MemStore implements
// it in memory for tests and offline use.
package remote

import (
	"context"
	"strings"
)

// UserIDPlaceholder is the reserved path segment substituted with the
// authenticated user's ID at subscribe/publish time.
const UserIDPlaceholder = "USER_ID_PENDING"

// WatchFunc receives document snapshots: once immediately with current
// state, then on every subsequent change. data is nil when the document
// does not exist or was deleted.
type WatchFunc func(id string, data map[string]any)

// CancelFunc tears down one subscription. After it returns, the watch
// callback is never invoked again.
type CancelFunc func()

// Store is the document-store contract. Paths are slash-joined
// collection/document segment sequences.
type Store interface {
	// Subscribe opens a live feed on the document at path. The callback
	// fires once immediately with the current state and again on every
	// subsequent change. A failed subscribe returns an error and does not
	// auto-retry.
	Subscribe(ctx context.Context, path string, fn WatchFunc) (CancelFunc, error)

	// Set writes data to path, fully overwriting any existing document.
	// Overwrite (not merge) is deliberate: the engine always publishes the
	// complete bundle, and a merge could resurrect fields a newer bundle
	// removed.
	Set(ctx context.Context, path string, data map[string]any) error

	// Delete removes the document at path. Deleting an absent document is
	// not an error.
	Delete(ctx context.Context, path string) error
}

// JoinPath joins path segments into a Store path.
func JoinPath(segments []string) string {
	return strings.Join(segments, "/")
}

// DocID returns the final path segment, the document's ID.
func DocID(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}

	return path
}
