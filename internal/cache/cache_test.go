package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/walldriyan/mypos-sub001/internal/domain"
)

func TestLRUCacheBasicOperations(t *testing.T) {
	c := NewLRUCache(10)
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.Set(ctx, "t1", "key1", []byte("value1"), time.Minute); err != nil {
			t.Fatalf("set failed: %v", err)
		}

		val, err := c.Get(ctx, "t1", "key1")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if string(val) != "value1" {
			t.Errorf("expected value1, got %s", val)
		}
	})

	t.Run("MissReturnsNil", func(t *testing.T) {
		val, err := c.Get(ctx, "t1", "missing")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for missing key, got %s", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		c.Set(ctx, "t1", "key2", []byte("value2"), time.Minute)
		if err := c.Delete(ctx, "t1", "key2"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		val, _ := c.Get(ctx, "t1", "key2")
		if val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("TTLExpiry", func(t *testing.T) {
		c.Set(ctx, "t1", "short", []byte("v"), time.Millisecond)
		time.Sleep(5 * time.Millisecond)
		val, _ := c.Get(ctx, "t1", "short")
		if val != nil {
			t.Error("expected expired entry to be gone")
		}
	})

	t.Run("MissingTenantID", func(t *testing.T) {
		if _, err := c.Get(ctx, "", "key1"); err == nil {
			t.Error("expected error for missing tenantID")
		}
		if err := c.Set(ctx, "", "key1", []byte("v"), time.Minute); err == nil {
			t.Error("expected error for missing tenantID")
		}
	})
}

func TestLRUCacheTenantIsolation(t *testing.T) {
	c := NewLRUCache(10)
	ctx := context.Background()

	c.Set(ctx, "t1", "key", []byte("tenant1"), time.Minute)
	c.Set(ctx, "t2", "key", []byte("tenant2"), time.Minute)

	val, _ := c.Get(ctx, "t1", "key")
	if string(val) != "tenant1" {
		t.Errorf("expected tenant1, got %s", val)
	}
	val, _ = c.Get(ctx, "t2", "key")
	if string(val) != "tenant2" {
		t.Errorf("expected tenant2, got %s", val)
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("key%d", i)
		c.Set(ctx, "t1", key, []byte(key), time.Minute)
	}

	size, capacity := c.Stats()
	if size != 3 {
		t.Errorf("expected size 3 after eviction, got %d", size)
	}
	if capacity != 3 {
		t.Errorf("expected capacity 3, got %d", capacity)
	}

	// Oldest entries were evicted
	if val, _ := c.Get(ctx, "t1", "key0"); val != nil {
		t.Error("expected key0 to be evicted")
	}
	if val, _ := c.Get(ctx, "t1", "key4"); val == nil {
		t.Error("expected key4 to survive")
	}
}

func TestLRUCacheCampaigns(t *testing.T) {
	c := NewLRUCache(10)
	ctx := context.Background()

	campaigns := []*domain.DiscountSet{
		{ID: "c1", Name: "Promo", IsActive: true},
		{ID: "c2", Name: "Default", IsActive: true, IsDefault: true},
	}

	if err := c.SetCampaigns(ctx, "t1", campaigns, time.Minute); err != nil {
		t.Fatalf("set campaigns failed: %v", err)
	}

	got, err := c.GetCampaigns(ctx, "t1")
	if err != nil {
		t.Fatalf("get campaigns failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 campaigns, got %d", len(got))
	}
	if got[0].ID != "c1" || got[1].Name != "Default" {
		t.Error("campaign list did not survive the roundtrip")
	}

	// Other tenants see nothing
	got, err = c.GetCampaigns(ctx, "t2")
	if err != nil {
		t.Fatalf("get campaigns failed: %v", err)
	}
	if got != nil {
		t.Error("foreign tenant must see no cached campaigns")
	}
}

func TestLRUCacheIncrementCounter(t *testing.T) {
	c := NewLRUCache(10)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := c.IncrementCounter(ctx, "t1", "redemptions:c1", time.Minute)
		if err != nil {
			t.Fatalf("increment failed: %v", err)
		}
		if got != want {
			t.Errorf("expected count %d, got %d", want, got)
		}
	}

	// Separate keys count independently
	got, err := c.IncrementCounter(ctx, "t1", "redemptions:c2", time.Minute)
	if err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if got != 1 {
		t.Errorf("expected fresh counter to be 1, got %d", got)
	}

	// Window expiry resets the counter
	c.IncrementCounter(ctx, "t1", "short", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	got, err = c.IncrementCounter(ctx, "t1", "short", time.Minute)
	if err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if got != 1 {
		t.Errorf("expected counter reset after window, got %d", got)
	}
}

func TestNewCacheFactory(t *testing.T) {
	t.Run("Memory", func(t *testing.T) {
		c, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 100})
		if err != nil {
			t.Fatalf("failed to create memory cache: %v", err)
		}
		defer c.Close()

		if _, ok := c.(*LRUCache); !ok {
			t.Errorf("expected *LRUCache, got %T", c)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		if _, err := New(domain.CacheConfig{Type: "memcached"}); err == nil {
			t.Error("expected error for unsupported cache type")
		}
	})
}
