package gc

import (
	"strings"
	"testing"
	"time"
)

// fakeAsset gives classifier tests direct control over the inputs.
type fakeAsset struct {
	ref      string
	hashes   []string
	created  time.Time
	size     int64
	iso      IsolationTag
	isolated bool
}

func (a *fakeAsset) Ref() string                     { return a.ref }
func (a *fakeAsset) Hashes() []string                { return a.hashes }
func (a *fakeAsset) CreatedAt() time.Time            { return a.created }
func (a *fakeAsset) SizeBytes() int64                { return a.size }
func (a *fakeAsset) Isolation() (IsolationTag, bool) { return a.iso, a.isolated }

type hashSet map[string]struct{}

func (s hashSet) Contains(h string) bool {
	_, ok := s[h]
	return ok
}

func testHash(c byte) string { return strings.Repeat(string(c), 64) }

func TestClassify(t *testing.T) {
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	grace := 30 * 24 * time.Hour
	roots := hashSet{testHash('a'): {}}

	old := IsolationTag{Index: 1, IsolatedAt: now.Add(-31 * 24 * time.Hour)}
	recent := IsolationTag{Index: 2, IsolatedAt: now.Add(-2 * 24 * time.Hour)}
	exact := IsolationTag{Index: 3, IsolatedAt: now.Add(-grace)}

	tests := []struct {
		name  string
		asset *fakeAsset
		want  Class
	}{
		{
			name:  "referenced untagged",
			asset: &fakeAsset{hashes: []string{testHash('a')}},
			want:  ClassReferenced,
		},
		{
			name:  "referenced by any hash",
			asset: &fakeAsset{hashes: []string{testHash('b'), testHash('a')}},
			want:  ClassReferenced,
		},
		{
			name:  "unreferenced untagged",
			asset: &fakeAsset{hashes: []string{testHash('b')}},
			want:  ClassTaggable,
		},
		{
			name:  "unreferenced tagged recently",
			asset: &fakeAsset{hashes: []string{testHash('b')}, iso: recent, isolated: true},
			want:  ClassPending,
		},
		{
			name:  "unreferenced tagged past buffer",
			asset: &fakeAsset{hashes: []string{testHash('b')}, iso: old, isolated: true},
			want:  ClassDeletable,
		},
		{
			name:  "unreferenced tagged exactly at buffer",
			asset: &fakeAsset{hashes: []string{testHash('b')}, iso: exact, isolated: true},
			want:  ClassDeletable,
		},
		{
			name:  "referenced but tagged",
			asset: &fakeAsset{hashes: []string{testHash('a')}, iso: recent, isolated: true},
			want:  ClassUntaggable,
		},
		{
			name:  "no hashes",
			asset: &fakeAsset{},
			want:  ClassTaggable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.asset, roots, now, grace); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyZeroGraceDeletesImmediately(t *testing.T) {
	now := time.Now()
	roots := hashSet{testHash('a'): {}}

	// Unreferenced assets are deletable right away, isolated or not.
	untagged := &fakeAsset{hashes: []string{testHash('b')}}
	if got := Classify(untagged, roots, now, 0); got != ClassDeletable {
		t.Errorf("untagged = %v, want ClassDeletable", got)
	}
	tagged := &fakeAsset{
		hashes:   []string{testHash('b')},
		iso:      IsolationTag{IsolatedAt: now},
		isolated: true,
	}
	if got := Classify(tagged, roots, now, 0); got != ClassDeletable {
		t.Errorf("tagged = %v, want ClassDeletable", got)
	}

	// Referenced assets are still protected.
	live := &fakeAsset{hashes: []string{testHash('a')}}
	if got := Classify(live, roots, now, 0); got != ClassReferenced {
		t.Errorf("referenced = %v, want ClassReferenced", got)
	}
}

func TestClassifyBatchPartitions(t *testing.T) {
	now := time.Now()
	grace := 24 * time.Hour
	roots := hashSet{testHash('a'): {}}
	batch := []Asset{
		&fakeAsset{ref: "live", hashes: []string{testHash('a')}},
		&fakeAsset{ref: "new-garbage", hashes: []string{testHash('b')}},
		&fakeAsset{ref: "old-garbage", hashes: []string{testHash('c')},
			iso: IsolationTag{IsolatedAt: now.Add(-48 * time.Hour)}, isolated: true},
		&fakeAsset{ref: "rolled-back", hashes: []string{testHash('a')},
			iso: IsolationTag{IsolatedAt: now.Add(-time.Hour)}, isolated: true},
	}

	cls := ClassifyBatch(batch, roots, now, grace)
	if len(cls.Referenced) != 1 || cls.Referenced[0].Ref() != "live" {
		t.Errorf("referenced = %v", refs(cls.Referenced))
	}
	if len(cls.Taggable) != 1 || cls.Taggable[0].Ref() != "new-garbage" {
		t.Errorf("taggable = %v", refs(cls.Taggable))
	}
	if len(cls.Deletable) != 1 || cls.Deletable[0].Ref() != "old-garbage" {
		t.Errorf("deletable = %v", refs(cls.Deletable))
	}
	if len(cls.Untaggable) != 1 || cls.Untaggable[0].Ref() != "rolled-back" {
		t.Errorf("untaggable = %v", refs(cls.Untaggable))
	}
	if len(cls.Pending) != 0 {
		t.Errorf("pending = %v", refs(cls.Pending))
	}
}

func refs(assets []Asset) []string {
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = a.Ref()
	}
	return out
}
