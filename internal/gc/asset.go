package gc

import (
	"path"
	"strings"
	"time"

	"github.com/assetgc-io/assetgc/internal/objectstore"
	"github.com/assetgc-io/assetgc/internal/registry"
)

// Asset is a single candidate for collection, either a container image or
// a file object. Classification only needs the identifiers to match against
// the root set and the isolation state.
type Asset interface {
	// Ref is a human-readable reference for logs and progress output.
	Ref() string
	// Hashes returns the identifiers under which deployed templates may
	// reference this asset.
	Hashes() []string
	// CreatedAt is when the asset was pushed or uploaded.
	CreatedAt() time.Time
	// SizeBytes is the stored size, used for reclaimed-space reporting.
	SizeBytes() int64
	// Isolation returns the parsed isolation marker, if present.
	Isolation() (IsolationTag, bool)
}

// ImageAsset is a container image in the asset repository. All tags on the
// manifest are known at enumeration time.
type ImageAsset struct {
	Image registry.Image
}

func (a *ImageAsset) Ref() string          { return a.Image.Digest }
func (a *ImageAsset) CreatedAt() time.Time { return a.Image.PushedAt }
func (a *ImageAsset) SizeBytes() int64     { return a.Image.SizeBytes }

// Hashes returns the image's tags. Deployed templates reference images by
// the asset-hash tag they were pushed under.
func (a *ImageAsset) Hashes() []string { return a.Image.Tags }

func (a *ImageAsset) Isolation() (IsolationTag, bool) {
	tag, ok := a.isolationString()
	if !ok {
		return IsolationTag{}, false
	}
	return ParseImageTag(tag)
}

// isolationString returns the raw isolation tag, needed to untag.
func (a *ImageAsset) isolationString() (string, bool) {
	for _, t := range a.Image.Tags {
		if _, ok := ParseImageTag(t); ok {
			return t, true
		}
	}
	return "", false
}

// ObjectAsset is a file object in the asset bucket. Object tags live in a
// separate API and are hydrated after enumeration; Isolation must not be
// consulted before SetTags has been called.
type ObjectAsset struct {
	Object objectstore.Object

	tags       []objectstore.Tag
	tagsLoaded bool
}

func (a *ObjectAsset) Ref() string          { return a.Object.Key }
func (a *ObjectAsset) CreatedAt() time.Time { return a.Object.LastModified }
func (a *ObjectAsset) SizeBytes() int64     { return a.Object.Size }

// Hashes returns the key's file stem: templates reference file assets as
// <hash>.<ext> under the asset prefix.
func (a *ObjectAsset) Hashes() []string {
	base := path.Base(a.Object.Key)
	return []string{strings.TrimSuffix(base, path.Ext(base))}
}

// SetTags records the object's tag set fetched from the store.
func (a *ObjectAsset) SetTags(tags []objectstore.Tag) {
	a.tags = tags
	a.tagsLoaded = true
}

// TagsLoaded reports whether SetTags has been called.
func (a *ObjectAsset) TagsLoaded() bool { return a.tagsLoaded }

// Tags returns the hydrated tag set.
func (a *ObjectAsset) Tags() []objectstore.Tag { return a.tags }

func (a *ObjectAsset) Isolation() (IsolationTag, bool) {
	for _, t := range a.tags {
		if t.Key == ObjectTagKey {
			return ParseObjectValue(t.Value)
		}
	}
	return IsolationTag{}, false
}
