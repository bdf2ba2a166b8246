package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory implementation of the Store interface for testing.
type MockStore struct {
	mu         sync.Mutex
	repository string
	images     map[string]*mockImage // by digest

	// ListErr, TagErr and DeleteErr, when set, are returned by the
	// corresponding operations.
	ListErr   error
	TagErr    error
	DeleteErr error

	// DeleteCalls records the ID batches passed to BatchDelete.
	DeleteCalls [][]ImageID
}

type mockImage struct {
	size     int64
	pushedAt time.Time
	tags     map[string]struct{}
	manifest string
}

// NewMockStore creates a new MockStore for the named repository.
func NewMockStore(repository string) *MockStore {
	return &MockStore{
		repository: repository,
		images:     make(map[string]*mockImage),
	}
}

// AddImage seeds the store with an image. The manifest defaults to a
// placeholder document derived from the digest.
func (s *MockStore) AddImage(digest string, size int64, pushedAt time.Time, tags ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	img := &mockImage{
		size:     size,
		pushedAt: pushedAt,
		tags:     make(map[string]struct{}, len(tags)),
		manifest: fmt.Sprintf(`{"config":{"digest":%q}}`, digest),
	}
	for _, t := range tags {
		img.tags[t] = struct{}{}
	}
	s.images[digest] = img
}

// Has reports whether a digest exists.
func (s *MockStore) Has(digest string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.images[digest]
	return ok
}

// TagsOf returns the sorted tag aliases of a digest.
func (s *MockStore) TagsOf(digest string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images[digest]
	if !ok {
		return nil
	}
	tags := make([]string, 0, len(img.tags))
	for t := range img.tags {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// Len returns the number of image manifests in the store.
func (s *MockStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.images)
}

func (s *MockStore) Repository() string {
	return s.repository
}

func (s *MockStore) ListPage(_ context.Context, token *string, max int32) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ListErr != nil {
		return Page{}, s.ListErr
	}

	digests := make([]string, 0, len(s.images))
	for d := range s.images {
		digests = append(digests, d)
	}
	sort.Strings(digests)

	start := 0
	if token != nil {
		for i, d := range digests {
			if d > *token {
				start = i
				break
			}
			start = i + 1
		}
	}

	end := start + int(max)
	if end > len(digests) {
		end = len(digests)
	}

	page := Page{}
	for _, d := range digests[start:end] {
		img := s.images[d]
		tags := make([]string, 0, len(img.tags))
		for t := range img.tags {
			tags = append(tags, t)
		}
		sort.Strings(tags)
		page.Images = append(page.Images, Image{
			Digest:    d,
			SizeBytes: img.size,
			Tags:      tags,
			PushedAt:  img.pushedAt,
			Manifest:  img.manifest,
		})
	}
	if end < len(digests) {
		next := digests[end-1]
		page.NextToken = &next
	}
	return page, nil
}

func (s *MockStore) PutTag(_ context.Context, manifest, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.TagErr != nil {
		return s.TagErr
	}

	for _, img := range s.images {
		if _, taken := img.tags[tag]; taken {
			return ErrTagExists
		}
	}
	for _, img := range s.images {
		if img.manifest == manifest {
			img.tags[tag] = struct{}{}
			return nil
		}
	}
	return ErrImageNotFound
}

func (s *MockStore) BatchDelete(_ context.Context, ids []ImageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.DeleteCalls = append(s.DeleteCalls, append([]ImageID(nil), ids...))

	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	if len(ids) > MaxDeleteBatch {
		return fmt.Errorf("delete batch of %d exceeds limit %d", len(ids), MaxDeleteBatch)
	}

	for _, id := range ids {
		if id.Digest != "" {
			delete(s.images, id.Digest)
			continue
		}
		for digest, img := range s.images {
			if _, ok := img.tags[id.Tag]; ok {
				delete(img.tags, id.Tag)
				// ECR removes the manifest when its last tag is deleted.
				if len(img.tags) == 0 {
					delete(s.images, digest)
				}
				break
			}
		}
	}
	return nil
}

var _ Store = (*MockStore)(nil)
