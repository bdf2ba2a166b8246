// Package objectstore defines the object-store interface the collector
// sweeps for file assets.
//
// The interface covers exactly the operations garbage collection needs:
// paginated listing, object tag reads and writes (the isolation marker is
// persisted as an object tag), and batched deletion. Implementations exist
// for AWS S3 ([github.com/assetgc-io/assetgc/internal/objectstore/s3]) and
// in-memory for tests ([MockStore]).
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Common errors returned by Store implementations.
var (
	// ErrNotFound is returned when the requested object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrBucketNotFound is returned when the configured bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrAccessDenied is returned when the credentials lack permission for the operation.
	ErrAccessDenied = errors.New("access denied")
)

// ObjectError wraps an error with the object key for context.
type ObjectError struct {
	Op  string // Operation that failed (e.g., "ListPage", "DeleteBatch")
	Key string // Object key, empty for bucket-level operations
	Err error  // Underlying error
}

func (e *ObjectError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("objectstore: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("objectstore: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *ObjectError) Unwrap() error {
	return e.Err
}

// Object describes one object in the bucket.
type Object struct {
	// Key is the object's key (path) in the bucket.
	Key string

	// Size is the object's size in bytes.
	Size int64

	// LastModified is when the object was last written.
	LastModified time.Time
}

// Tag is one object tag.
type Tag struct {
	Key   string
	Value string
}

// Page is one page of a bucket listing.
type Page struct {
	// Objects are the entries on this page, in lexicographic key order.
	Objects []Object

	// NextToken continues the listing. Nil when the listing is exhausted.
	NextToken *string
}

// MaxDeleteBatch is the largest number of keys one DeleteBatch call accepts.
// This matches the S3 DeleteObjects limit.
const MaxDeleteBatch = 1000

// Store is the interface for object storage operations used by the collector.
//
// All methods accept a context for cancellation and deadline propagation.
// Implementations should return wrapped errors using [ObjectError] where
// appropriate.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	// Bucket returns the name of the bucket this store operates on.
	Bucket() string

	// ListPage returns one page of the bucket listing, at most max entries.
	// Pass a nil token for the first page and the previous page's NextToken
	// afterwards. A page with a nil NextToken is the last one.
	ListPage(ctx context.Context, token *string, max int32) (Page, error)

	// GetTagging returns the tag set of an object.
	//
	// Returns ErrNotFound if the object no longer exists.
	GetTagging(ctx context.Context, key string) ([]Tag, error)

	// PutTagging replaces the entire tag set of an object.
	// Object tags have no partial update; callers rewrite the full set.
	PutTagging(ctx context.Context, key string, tags []Tag) error

	// DeleteBatch removes up to MaxDeleteBatch objects in one call.
	// Deleting a non-existent key succeeds silently, matching S3 semantics.
	DeleteBatch(ctx context.Context, keys []string) error
}
