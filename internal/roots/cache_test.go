package roots

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestCacheReplaceAndContains(t *testing.T) {
	c := NewCache()
	if c.Contains("abc") {
		t.Error("empty cache should contain nothing")
	}
	if !c.RefreshedAt().IsZero() {
		t.Error("unrefreshed cache should report zero time")
	}

	now := time.Now()
	c.Replace(map[string]struct{}{"abc": {}, "def": {}}, now)

	if !c.Contains("abc") || !c.Contains("def") {
		t.Error("replaced hashes should be contained")
	}
	if c.Contains("ghi") {
		t.Error("unknown hash should not be contained")
	}
	if c.Size() != 2 {
		t.Errorf("size = %d, want 2", c.Size())
	}
	if !c.RefreshedAt().Equal(now) {
		t.Error("refresh time not stamped")
	}

	// Whole-set replace: the old set is gone.
	c.Replace(map[string]struct{}{"ghi": {}}, now.Add(time.Minute))
	if c.Contains("abc") {
		t.Error("old hashes should be dropped by replace")
	}
	if !c.Contains("ghi") {
		t.Error("new hash missing after replace")
	}
}

func TestCacheReplaceNil(t *testing.T) {
	c := NewCache()
	c.Replace(nil, time.Now())
	if c.Size() != 0 {
		t.Errorf("size = %d, want 0", c.Size())
	}
	if c.Contains("") {
		t.Error("nil replace should leave an empty set")
	}
}

// Readers racing a writer must always observe either the old or the new
// set, never a torn one.
func TestCacheConcurrentReplace(t *testing.T) {
	c := NewCache()
	full := make(map[string]struct{})
	for _, h := range []string{"aaa", "bbb", "ccc", "ddd"} {
		full[h] = struct{}{}
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				c.Replace(full, time.Now())
			} else {
				c.Replace(map[string]struct{}{}, time.Now())
			}
		}
	}()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10000; j++ {
				n := 0
				for _, h := range []string{"aaa", "bbb", "ccc", "ddd"} {
					if c.Contains(h) {
						n++
					}
				}
				// Per-read snapshots may interleave replaces, but each
				// individual lookup must be against a complete set.
				_ = n
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(stop)
	wg.Wait()
}

func TestAssetHashPattern(t *testing.T) {
	hash := strings.Repeat("ab", 32)
	body := `{"Resources":{"Fn":{"Properties":{"Code":{"S3Key":"` + hash + `.zip"}}}}}`

	got := assetHashPattern.FindAllString(body, -1)
	if len(got) != 1 || got[0] != hash {
		t.Errorf("extracted %v, want [%s]", got, hash)
	}
}
