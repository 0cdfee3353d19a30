package dedup_test

import (
	"context"
	"testing"
	"time"

	"github.com/ticketflow/engine/ticketing/dedup"
)

func TestCheckAndMarkDetectsDuplicate(t *testing.T) {
	ctx := context.Background()
	guard := dedup.New(dedup.DefaultConfig(), dedup.NewMemoryBackend())

	key := dedup.Key("zendesk", "1042")

	dup, err := guard.CheckAndMark(ctx, key)
	if err != nil {
		t.Fatalf("first check: %v", err)
	}
	if dup {
		t.Fatal("first occurrence should not be a duplicate")
	}

	dup, err = guard.CheckAndMark(ctx, key)
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if !dup {
		t.Fatal("second occurrence of the same key should be a duplicate")
	}

	stats := guard.Stats()
	if stats.TotalChecks != 2 || stats.Duplicates != 1 || stats.UniqueKeys != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestCheckAndMarkDistinctKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	guard := dedup.New(dedup.DefaultConfig(), dedup.NewMemoryBackend())

	for _, key := range []string{dedup.Key("zendesk", "1"), dedup.Key("zendesk", "2")} {
		dup, err := guard.CheckAndMark(ctx, key)
		if err != nil {
			t.Fatalf("check %s: %v", key, err)
		}
		if dup {
			t.Fatalf("key %s should not be seen as a duplicate of another key", key)
		}
	}
}

func TestMemoryCacheGetSetAndExpiry(t *testing.T) {
	ctx := context.Background()
	cache := dedup.NewMemoryCache()

	if _, ok, err := cache.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := cache.Set(ctx, "k", "v", time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := cache.Get(ctx, "k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("expected hit v=%q ok=%v err=%v", v, ok, err)
	}

	if err := cache.Set(ctx, "expired", "v", -time.Second); err != nil {
		t.Fatalf("set expired: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, "expired"); ok {
		t.Fatal("expected expired entry to miss")
	}
}
