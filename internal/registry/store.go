// Package registry defines the image-registry interface the collector
// sweeps for container image assets.
//
// The interface covers exactly the operations garbage collection needs:
// paginated listing of images with their tag aliases and manifests, adding
// a tag to an existing manifest (the isolation marker is persisted as a
// registry tag), and batched deletion by digest or by tag. Implementations
// exist for AWS ECR ([github.com/assetgc-io/assetgc/internal/registry/ecr])
// and in-memory for tests ([MockStore]).
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Common errors returned by Store implementations.
var (
	// ErrRepositoryNotFound is returned when the configured repository does not exist.
	ErrRepositoryNotFound = errors.New("repository not found")

	// ErrImageNotFound is returned when the referenced image does not exist.
	ErrImageNotFound = errors.New("image not found")

	// ErrTagExists is returned when a tag write collides with an existing tag.
	// Registry tags are unique per repository; a collision means another
	// process claimed the tag first.
	ErrTagExists = errors.New("tag already exists")
)

// RegistryError wraps an error with the image reference for context.
type RegistryError struct {
	Op  string // Operation that failed (e.g., "ListPage", "PutTag")
	Ref string // Image digest or tag, empty for repository-level operations
	Err error  // Underlying error
}

func (e *RegistryError) Error() string {
	if e.Ref == "" {
		return fmt.Sprintf("registry: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("registry: %s %q: %v", e.Op, e.Ref, e.Err)
}

func (e *RegistryError) Unwrap() error {
	return e.Err
}

// Image describes one image manifest in the repository. A single digest may
// carry many mutable tag aliases; the store coalesces them into one Image.
type Image struct {
	// Digest is the immutable manifest digest ("sha256:...").
	Digest string

	// SizeBytes is the image size in bytes.
	SizeBytes int64

	// Tags are all tag aliases currently pointing at this digest.
	Tags []string

	// PushedAt is when the image was pushed.
	PushedAt time.Time

	// Manifest is the raw manifest document. Tagging an existing image
	// requires re-putting its manifest under the new tag.
	Manifest string
}

// ImageID identifies an image for deletion: by digest (removes the manifest
// and all its tags) or by tag (removes only that tag alias).
type ImageID struct {
	Digest string
	Tag    string
}

// Page is one page of a repository listing.
type Page struct {
	// Images are the entries on this page, one per digest.
	Images []Image

	// NextToken continues the listing. Nil when the listing is exhausted.
	NextToken *string
}

// MaxDeleteBatch is the largest number of image IDs one BatchDelete call
// accepts. This matches the ECR BatchDeleteImage limit.
const MaxDeleteBatch = 100

// Store is the interface for image registry operations used by the collector.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	// Repository returns the name of the repository this store operates on.
	Repository() string

	// ListPage returns one page of the repository listing with at most max
	// underlying image references. Multiple tags on one digest are
	// coalesced, so a page may hold fewer Images than max. Pass a nil token
	// for the first page. A page with a nil NextToken is the last one.
	ListPage(ctx context.Context, token *string, max int32) (Page, error)

	// PutTag adds a tag alias pointing at the manifest.
	//
	// Returns ErrTagExists if the tag is already taken in the repository.
	PutTag(ctx context.Context, manifest, tag string) error

	// BatchDelete removes up to MaxDeleteBatch image references in one
	// call. Deleting by tag removes only that alias; deleting by digest
	// removes the manifest and every alias.
	BatchDelete(ctx context.Context, ids []ImageID) error
}
