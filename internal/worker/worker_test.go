package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/walldriyan/mypos-sub001/internal/bus"
	"github.com/walldriyan/mypos-sub001/internal/campaign"
	"github.com/walldriyan/mypos-sub001/internal/discount"
	"github.com/walldriyan/mypos-sub001/internal/domain"
)

// memRepo is an in-memory Repository for worker tests.
type memRepo struct {
	mu        sync.Mutex
	campaigns map[string]*domain.DiscountSet
	quotes    map[string]*domain.Quote
}

func newMemRepo() *memRepo {
	return &memRepo{
		campaigns: make(map[string]*domain.DiscountSet),
		quotes:    make(map[string]*domain.Quote),
	}
}

func (r *memRepo) key(tenantID, id string) string { return tenantID + "/" + id }

func (r *memRepo) SaveCampaign(_ context.Context, tenantID string, c *domain.DiscountSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaigns[r.key(tenantID, c.ID)] = c
	return nil
}

func (r *memRepo) GetCampaign(_ context.Context, tenantID, campaignID string) (*domain.DiscountSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[r.key(tenantID, campaignID)]
	if !ok {
		return nil, fmt.Errorf("campaign %s not found", campaignID)
	}
	return c, nil
}

func (r *memRepo) ListCampaigns(_ context.Context, tenantID string) ([]*domain.DiscountSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.DiscountSet
	for k, c := range r.campaigns {
		if k == r.key(tenantID, c.ID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memRepo) DeleteCampaign(_ context.Context, tenantID, campaignID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.campaigns, r.key(tenantID, campaignID))
	return nil
}

func (r *memRepo) SaveQuote(_ context.Context, tenantID string, q *domain.Quote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quotes[r.key(tenantID, q.ID)] = q
	return nil
}

func (r *memRepo) GetQuote(_ context.Context, tenantID, quoteID string) (*domain.Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotes[r.key(tenantID, quoteID)]
	if !ok {
		return nil, fmt.Errorf("quote %s not found", quoteID)
	}
	return q, nil
}

func (r *memRepo) MarkQuoteCommitted(_ context.Context, tenantID, quoteID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotes[r.key(tenantID, quoteID)]
	if !ok {
		return fmt.Errorf("quote %s not found", quoteID)
	}
	q.Status = domain.QuoteCommitted
	return nil
}

func (r *memRepo) CountQuotesByCampaign(_ context.Context, tenantID, campaignID string, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, q := range r.quotes {
		if q.TenantID == tenantID && q.CampaignID == campaignID && !q.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) Ping(_ context.Context) error { return nil }
func (r *memRepo) Close() error                 { return nil }

func seedCampaign(t *testing.T, repo *memRepo, tenantID string) *domain.DiscountSet {
	t.Helper()
	camp := &domain.DiscountSet{
		ID:        "camp-worker",
		TenantID:  tenantID,
		Name:      "Ten Percent",
		IsActive:  true,
		IsDefault: true,
		DefaultLineItemValueRule: &domain.RuleConfig{
			IsEnabled: true,
			Name:      "10% off",
			Type:      domain.DiscountPercentage,
			Value:     10,
		},
	}
	if err := repo.SaveCampaign(context.Background(), tenantID, camp); err != nil {
		t.Fatalf("SaveCampaign failed: %v", err)
	}
	return camp
}

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	repo := newMemRepo()
	selector, err := campaign.NewSelector(repo, nil, nil)
	if err != nil {
		t.Fatalf("NewSelector failed: %v", err)
	}
	engine := discount.New()

	t.Run("StartAndStop", func(t *testing.T) {
		w := NewWorker(eventBus, repo, selector, engine)

		cfg := Config{
			TenantIDs:   []string{"tenant-001"},
			WorkerCount: 1,
		}

		if err := w.Start(cfg); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := w.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}

		if err := w.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		stats = w.GetStats()
		if stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("ProcessQuote", func(t *testing.T) {
		seedCampaign(t, repo, "tenant-test")

		w := NewWorker(eventBus, repo, selector, engine)

		cfg := Config{
			TenantIDs: []string{"tenant-test"},
		}
		w.Start(cfg)
		defer w.Stop()

		var computedReceived atomic.Bool
		var computedPayload []byte

		eventBus.Subscribe(context.Background(), "tenant-test", domain.TopicQuoteComputed, func(ctx context.Context, msg *domain.Message) error {
			computedPayload = msg.Payload
			computedReceived.Store(true)
			return nil
		})

		// Allow subscriptions to be active
		time.Sleep(50 * time.Millisecond)

		qm := QuoteMessage{
			QuoteID:  "quote-001",
			TenantID: "tenant-test",
			TraceID:  "trace-001",
			Items: []domain.SaleItem{
				{LineID: "l1", ProductID: "prod-a", Quantity: 2, UnitPrice: 500},
			},
		}

		payload, _ := json.Marshal(qm)
		if err := eventBus.Publish(context.Background(), "tenant-test", domain.TopicQuoteRequested, payload); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		// Wait for processing
		time.Sleep(100 * time.Millisecond)

		if !computedReceived.Load() {
			t.Fatal("expected computed quote to be published")
		}

		var quote domain.Quote
		if err := json.Unmarshal(computedPayload, &quote); err != nil {
			t.Fatalf("failed to parse computed quote: %v", err)
		}

		if quote.ID != "quote-001" {
			t.Errorf("expected quote ID 'quote-001', got '%s'", quote.ID)
		}
		if quote.CampaignID != "camp-worker" {
			t.Errorf("expected campaign 'camp-worker', got '%s'", quote.CampaignID)
		}
		if quote.Status != domain.QuotePending {
			t.Errorf("expected pending status, got '%s'", quote.Status)
		}
		if quote.Result == nil {
			t.Fatal("expected result on computed quote")
		}
		if quote.Result.FinalTotal != 900 {
			t.Errorf("expected final total 900, got %.2f", quote.Result.FinalTotal)
		}

		// The quote is also persisted
		saved, err := repo.GetQuote(context.Background(), "tenant-test", "quote-001")
		if err != nil {
			t.Fatalf("expected quote to be saved: %v", err)
		}
		if saved.Result.TotalDiscount != 100 {
			t.Errorf("expected saved total discount 100, got %.2f", saved.Result.TotalDiscount)
		}
	})

	t.Run("GeneratesQuoteID", func(t *testing.T) {
		seedCampaign(t, repo, "tenant-gen")

		w := NewWorker(eventBus, repo, selector, engine)
		w.Start(Config{TenantIDs: []string{"tenant-gen"}})
		defer w.Stop()

		var gotID atomic.Value

		eventBus.Subscribe(context.Background(), "tenant-gen", domain.TopicQuoteComputed, func(ctx context.Context, msg *domain.Message) error {
			var quote domain.Quote
			if err := json.Unmarshal(msg.Payload, &quote); err == nil {
				gotID.Store(quote.ID)
			}
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		payload, _ := json.Marshal(QuoteMessage{
			TenantID: "tenant-gen",
			Items: []domain.SaleItem{
				{LineID: "l1", ProductID: "prod-a", Quantity: 1, UnitPrice: 50},
			},
		})
		eventBus.Publish(context.Background(), "tenant-gen", domain.TopicQuoteRequested, payload)

		time.Sleep(100 * time.Millisecond)

		id, _ := gotID.Load().(string)
		if id == "" {
			t.Error("expected a generated quote ID on the computed event")
		}
	})

	t.Run("InvalidCartDropped", func(t *testing.T) {
		seedCampaign(t, repo, "tenant-bad")

		w := NewWorker(eventBus, repo, selector, engine)
		w.Start(Config{TenantIDs: []string{"tenant-bad"}})
		defer w.Stop()

		var computedReceived atomic.Bool
		eventBus.Subscribe(context.Background(), "tenant-bad", domain.TopicQuoteComputed, func(ctx context.Context, msg *domain.Message) error {
			computedReceived.Store(true)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		payload, _ := json.Marshal(QuoteMessage{
			QuoteID:  "quote-bad",
			TenantID: "tenant-bad",
			Items:    nil,
		})
		eventBus.Publish(context.Background(), "tenant-bad", domain.TopicQuoteRequested, payload)

		time.Sleep(100 * time.Millisecond)

		if computedReceived.Load() {
			t.Error("expected no computed event for an empty cart")
		}
		if _, err := repo.GetQuote(context.Background(), "tenant-bad", "quote-bad"); err == nil {
			t.Error("expected no quote to be saved for an empty cart")
		}
	})

	t.Run("MultiTenant", func(t *testing.T) {
		w := NewWorker(eventBus, repo, selector, engine)

		cfg := Config{
			TenantIDs: []string{"tenant-a", "tenant-b"},
		}
		w.Start(cfg)
		defer w.Stop()

		stats := w.GetStats()
		if stats.SubscriptionCount != 2 {
			t.Errorf("expected 2 subscriptions for 2 tenants, got %d", stats.SubscriptionCount)
		}
	})
}

func TestQuoteMessageParsing(t *testing.T) {
	msg := QuoteMessage{
		QuoteID:    "quote-123",
		TenantID:   "tenant-001",
		TraceID:    "trace-456",
		CampaignID: "camp-001",
		Items: []domain.SaleItem{
			{LineID: "l1", ProductID: "prod-a", Quantity: 3, UnitPrice: 19.99},
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var parsed QuoteMessage
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if parsed.QuoteID != msg.QuoteID {
		t.Errorf("expected QuoteID '%s', got '%s'", msg.QuoteID, parsed.QuoteID)
	}
	if len(parsed.Items) != 1 || parsed.Items[0].UnitPrice != 19.99 {
		t.Errorf("expected items to survive the roundtrip, got %+v", parsed.Items)
	}
}
