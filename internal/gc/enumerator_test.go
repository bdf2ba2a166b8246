package gc

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/assetgc-io/assetgc/internal/objectstore"
	"github.com/assetgc-io/assetgc/internal/registry"
)

func TestObjectEnumeratorBatches(t *testing.T) {
	now := time.Now()
	store := objectstore.NewMockStore("assets")
	for i := 0; i < 7; i++ {
		store.AddObject(fmt.Sprintf("asset-%02d.zip", i), 100, now.Add(-48*time.Hour))
	}

	enum := NewObjectEnumerator(store, EnumeratorConfig{
		BatchSize:     3,
		CreatedBuffer: 24 * time.Hour,
		Now:           func() time.Time { return now },
	})

	var sizes []int
	for {
		batch, err := enum.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if batch == nil {
			break
		}
		sizes = append(sizes, len(batch))
	}
	want := []int{3, 3, 1}
	if len(sizes) != len(want) {
		t.Fatalf("batch sizes = %v, want %v", sizes, want)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Fatalf("batch sizes = %v, want %v", sizes, want)
		}
	}
}

func TestObjectEnumeratorSkipsYoungAssets(t *testing.T) {
	now := time.Now()
	store := objectstore.NewMockStore("assets")
	store.AddObject("old.zip", 10, now.Add(-48*time.Hour))
	store.AddObject("young.zip", 10, now.Add(-time.Hour))

	enum := NewObjectEnumerator(store, EnumeratorConfig{
		BatchSize:     10,
		CreatedBuffer: 24 * time.Hour,
		Now:           func() time.Time { return now },
	})
	batch, err := enum.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(batch) != 1 || batch[0].Ref() != "old.zip" {
		t.Fatalf("batch = %v, want only old.zip", refs(batch))
	}
}

func TestEnumeratorEmptyStore(t *testing.T) {
	store := objectstore.NewMockStore("assets")
	enum := NewObjectEnumerator(store, EnumeratorConfig{BatchSize: 10})
	batch, err := enum.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if batch != nil {
		t.Fatalf("batch = %v, want nil", refs(batch))
	}
}

func TestEnumeratorListErrorEndsEnumeration(t *testing.T) {
	store := objectstore.NewMockStore("assets")
	store.AddObject("a.zip", 10, time.Now().Add(-48*time.Hour))
	listErr := errors.New("throttled")
	store.ListErr = listErr

	enum := NewObjectEnumerator(store, EnumeratorConfig{BatchSize: 10})
	if _, err := enum.Next(context.Background()); !errors.Is(err, listErr) {
		t.Fatalf("Next err = %v, want %v", err, listErr)
	}
	// The enumeration is over; later calls report exhaustion, not retry.
	batch, err := enum.Next(context.Background())
	if err != nil || batch != nil {
		t.Fatalf("Next after error = (%v, %v), want (nil, nil)", refs(batch), err)
	}
}

func TestImageEnumeratorYieldsImageAssets(t *testing.T) {
	now := time.Now()
	store := registry.NewMockStore("container-assets")
	store.AddImage("sha256:aaa", 2048, now.Add(-72*time.Hour), testHash('a'))

	enum := NewImageEnumerator(store, EnumeratorConfig{
		BatchSize:     10,
		CreatedBuffer: 24 * time.Hour,
		Now:           func() time.Time { return now },
	})
	batch, err := enum.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(batch) != 1 {
		t.Fatalf("batch = %v, want one image", refs(batch))
	}
	img, ok := batch[0].(*ImageAsset)
	if !ok {
		t.Fatalf("asset type = %T, want *ImageAsset", batch[0])
	}
	if img.Image.Digest != "sha256:aaa" || img.SizeBytes() != 2048 {
		t.Errorf("unexpected image %+v", img.Image)
	}
}
