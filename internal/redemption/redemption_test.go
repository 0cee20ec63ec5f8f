package redemption

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/walldriyan/mypos-sub001/internal/cache"
	"github.com/walldriyan/mypos-sub001/internal/domain"
	"github.com/walldriyan/mypos-sub001/internal/repository"
)

func TestRedemptionTracker(t *testing.T) {
	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "redemption-test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	lruCache := cache.NewLRUCache(100)
	defer lruCache.Close()

	tracker := NewTracker(repo, lruCache)

	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("EmptyDatabase", func(t *testing.T) {
		count, err := tracker.QuoteCount(ctx, tenantID, "camp-001", time.Now().Add(-time.Hour))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 0 {
			t.Errorf("expected count 0 for empty database, got %d", count)
		}
	})

	t.Run("WithQuotes", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			quote := &domain.Quote{
				ID:         fmt.Sprintf("quote-%d", i),
				TenantID:   tenantID,
				CampaignID: "camp-001",
				Cart: domain.Cart{Items: []domain.SaleItem{
					{LineID: "l1", ProductID: "prod-a", Quantity: 1, UnitPrice: 100},
				}},
				Status:    domain.QuotePending,
				CreatedAt: time.Now().UTC(),
			}
			if err := repo.SaveQuote(ctx, tenantID, quote); err != nil {
				t.Fatalf("failed to save quote: %v", err)
			}
		}

		count, err := tracker.QuoteCount(ctx, tenantID, "camp-001", time.Now().Add(-time.Hour))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 5 {
			t.Errorf("expected count 5, got %d", count)
		}

		// Unknown campaign
		count, err = tracker.QuoteCount(ctx, tenantID, "camp-unknown", time.Now().Add(-time.Hour))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 0 {
			t.Errorf("expected count 0 for unknown campaign, got %d", count)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		count, err := tracker.QuoteCount(ctx, "other-tenant", "camp-001", time.Now().Add(-time.Hour))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 0 {
			t.Errorf("expected count 0 for different tenant, got %d", count)
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		_, err := tracker.QuoteCount(ctx, "", "camp-001", time.Now())
		if err == nil {
			t.Error("expected error for empty tenantID")
		}
	})

	t.Run("RequiresCampaignID", func(t *testing.T) {
		_, err := tracker.QuoteCount(ctx, tenantID, "", time.Now())
		if err == nil {
			t.Error("expected error for empty campaignID")
		}
	})

	t.Run("RecordCountsInWindow", func(t *testing.T) {
		for i := 1; i <= 3; i++ {
			n, err := tracker.Record(ctx, tenantID, "camp-001")
			if err != nil {
				t.Fatalf("Record failed: %v", err)
			}
			if n != int64(i) {
				t.Errorf("expected counter %d, got %d", i, n)
			}
		}

		// Independent campaign counter
		n, err := tracker.Record(ctx, tenantID, "camp-002")
		if err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		if n != 1 {
			t.Errorf("expected counter 1 for camp-002, got %d", n)
		}
	})

	t.Run("RecordWithoutCache", func(t *testing.T) {
		bare := NewTracker(repo, nil)
		n, err := bare.Record(ctx, tenantID, "camp-001")
		if err != nil {
			t.Fatalf("Record without cache failed: %v", err)
		}
		if n != 0 {
			t.Errorf("expected 0 without cache, got %d", n)
		}
	})
}

func TestNoDataSource(t *testing.T) {
	tracker := &Tracker{} // No repo or cache

	ctx := context.Background()
	_, err := tracker.QuoteCount(ctx, "tenant", "camp", time.Now())
	if err == nil {
		t.Error("expected error with no data source")
	}
}
