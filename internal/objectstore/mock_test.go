package objectstore

import (
	"context"
	"testing"
	"time"
)

func TestMockStorePagination(t *testing.T) {
	s := NewMockStore("b")
	now := time.Now()
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		s.AddObject("assets/"+k, 1, now)
	}

	ctx := context.Background()
	var keys []string
	var token *string
	for {
		page, err := s.ListPage(ctx, token, 2)
		if err != nil {
			t.Fatalf("ListPage: %v", err)
		}
		for _, o := range page.Objects {
			keys = append(keys, o.Key)
		}
		if page.NextToken == nil {
			break
		}
		token = page.NextToken
	}

	if len(keys) != 5 {
		t.Fatalf("paged %d keys, want 5", len(keys))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Fatalf("keys not in order: %v", keys)
		}
	}
}

func TestMockStoreTagging(t *testing.T) {
	s := NewMockStore("b")
	s.AddObject("k", 1, time.Now())

	ctx := context.Background()
	if err := s.PutTagging(ctx, "k", []Tag{{Key: "x", Value: "1"}}); err != nil {
		t.Fatalf("PutTagging: %v", err)
	}
	tags, err := s.GetTagging(ctx, "k")
	if err != nil {
		t.Fatalf("GetTagging: %v", err)
	}
	if len(tags) != 1 || tags[0].Key != "x" {
		t.Errorf("tags = %+v", tags)
	}

	if _, err := s.GetTagging(ctx, "missing"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
