package dedup

import (
	"testing"
	"time"
)

func TestLocalCacheDetectsDuplicateWithinWindow(t *testing.T) {
	c := newLocalCache(10)

	if dup := c.seenOrRecord("hash-a", time.Minute); dup {
		t.Fatal("first sighting must not be reported as duplicate")
	}
	if dup := c.seenOrRecord("hash-a", time.Minute); !dup {
		t.Fatal("second sighting within window must be reported as duplicate")
	}
}

func TestLocalCacheExpiresOutsideWindow(t *testing.T) {
	c := newLocalCache(10)
	c.seen["hash-b"] = time.Now().Add(-2 * time.Minute)

	if dup := c.seenOrRecord("hash-b", time.Minute); dup {
		t.Fatal("sighting outside the rolling window must not be a duplicate")
	}
}

func TestLocalCacheClearsWhenBoundExceeded(t *testing.T) {
	c := newLocalCache(2)
	c.seenOrRecord("a", time.Minute)
	c.seenOrRecord("b", time.Minute)
	c.seenOrRecord("c", time.Minute)

	if len(c.seen) > 2 {
		t.Fatalf("expected cache to stay bounded at 2 entries, got %d", len(c.seen))
	}
}
