package objectstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory implementation of the Store interface for testing.
type MockStore struct {
	mu      sync.Mutex
	bucket  string
	objects map[string]*mockObject

	// ListErr, TagErr and DeleteErr, when set, are returned by the
	// corresponding operations. Used to exercise failure paths.
	ListErr   error
	TagErr    error
	DeleteErr error

	// DeleteCalls records the key batches passed to DeleteBatch.
	DeleteCalls [][]string
}

type mockObject struct {
	size         int64
	lastModified time.Time
	tags         []Tag
}

// NewMockStore creates a new MockStore for the named bucket.
func NewMockStore(bucket string) *MockStore {
	return &MockStore{
		bucket:  bucket,
		objects: make(map[string]*mockObject),
	}
}

// AddObject seeds the store with an object.
func (s *MockStore) AddObject(key string, size int64, lastModified time.Time, tags ...Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = &mockObject{
		size:         size,
		lastModified: lastModified,
		tags:         append([]Tag(nil), tags...),
	}
}

// Has reports whether an object exists.
func (s *MockStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

// Tags returns a copy of an object's tag set, or nil if it does not exist.
func (s *MockStore) Tags(key string) []Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil
	}
	return append([]Tag(nil), obj.tags...)
}

// Len returns the number of objects in the store.
func (s *MockStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func (s *MockStore) Bucket() string {
	return s.bucket
}

func (s *MockStore) ListPage(_ context.Context, token *string, max int32) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ListErr != nil {
		return Page{}, s.ListErr
	}

	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if token != nil {
		for i, k := range keys {
			if k > *token {
				start = i
				break
			}
			start = i + 1
		}
	}

	end := start + int(max)
	if end > len(keys) {
		end = len(keys)
	}

	page := Page{}
	for _, k := range keys[start:end] {
		obj := s.objects[k]
		page.Objects = append(page.Objects, Object{
			Key:          k,
			Size:         obj.size,
			LastModified: obj.lastModified,
		})
	}
	if end < len(keys) {
		next := keys[end-1]
		page.NextToken = &next
	}
	return page, nil
}

func (s *MockStore) GetTagging(_ context.Context, key string) ([]Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.TagErr != nil {
		return nil, s.TagErr
	}
	obj, ok := s.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]Tag(nil), obj.tags...), nil
}

func (s *MockStore) PutTagging(_ context.Context, key string, tags []Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.TagErr != nil {
		return s.TagErr
	}
	obj, ok := s.objects[key]
	if !ok {
		return ErrNotFound
	}
	obj.tags = append([]Tag(nil), tags...)
	return nil
}

func (s *MockStore) DeleteBatch(_ context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.DeleteCalls = append(s.DeleteCalls, append([]string(nil), keys...))

	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	if len(keys) > MaxDeleteBatch {
		return fmt.Errorf("delete batch of %d exceeds limit %d", len(keys), MaxDeleteBatch)
	}
	for _, k := range keys {
		delete(s.objects, k)
	}
	return nil
}

var _ Store = (*MockStore)(nil)
