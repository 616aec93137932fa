// Package store adapts a hierarchical key-value store to the operations the
// reservation core needs: plain reads and writes on slash separated paths,
// set-if-absent, child listing, optimistic read-modify-write transactions and
// an on-write change feed that drives the trigger handlers.
package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by Get when nothing is stored at the path.
var ErrNotFound = errors.New("store: not found")

// ErrAborted is returned by Update when the transaction could not be
// committed within the retry budget because of concurrent writers.
var ErrAborted = errors.New("store: transaction aborted")

// Store is the storage port used by every handler.  Paths look like
// "sessions/s1/seats"; values are JSON encoded.
type Store interface {
	// Get decodes the value at path into v.
	Get(ctx context.Context, path string, v any) error
	// GetMany returns the raw values for paths, nil where absent.
	GetMany(ctx context.Context, paths []string) ([][]byte, error)
	// Set overwrites the value at path and publishes the change.
	Set(ctx context.Context, path string, v any) error
	// Create stores v only if the path is empty.  A positive ttl makes the
	// node expire; expiring nodes are not listed by Children.
	Create(ctx context.Context, path string, v any, ttl time.Duration) (bool, error)
	// Delete removes the value at path.  Deleting an absent path is not an error.
	Delete(ctx context.Context, path string) error
	// Children lists the direct child names of path in a stable order.
	Children(ctx context.Context, path string) ([]string, error)
	// Update runs fn as an optimistic transaction.  fn may run more than
	// once and must not keep state between runs.
	Update(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the view of the store inside Update.  Reads register the path for
// conflict detection; writes are buffered until commit.
type Tx interface {
	Get(path string, v any) error
	Children(path string) ([]string, error)
	Set(path string, v any) error
	Delete(path string)
}

// ChangeFeed receives committed writes.  It is how on-write triggers are
// delivered to handlers.
type ChangeFeed interface {
	// Accepts reports whether writes to path should be published.
	Accepts(path string) bool
	// Publish delivers one committed write.
	Publish(ctx context.Context, path string, data []byte) error
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Clean strips leading and trailing slashes.
func Clean(path string) string {
	return strings.Trim(path, "/")
}

// split returns the parent path and the last segment.
func split(path string) (parent, name string) {
	path = Clean(path)
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}
