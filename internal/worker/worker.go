// Package worker provides async quote processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/walldriyan/mypos-sub001/internal/campaign"
	"github.com/walldriyan/mypos-sub001/internal/discount"
	"github.com/walldriyan/mypos-sub001/internal/domain"
)

// Worker processes quote requests asynchronously from the EventBus.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	selector *campaign.Selector
	engine   *discount.Engine

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string

	// WorkerCount is the number of concurrent workers per tenant
	WorkerCount int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, selector *campaign.Selector, engine *discount.Engine) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		repo:     repo,
		selector: selector,
		engine:   engine,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicQuoteRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicQuoteRequested, func(ctx context.Context, msg *domain.Message) error {
		return w.processQuote(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicQuoteRequested,
	)

	return nil
}

// handleMessage handles messages from the global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processQuote(ctx, msg.TenantID, msg)
}

// QuoteMessage is the message payload for async quote processing.
type QuoteMessage struct {
	QuoteID    string            `json:"quoteId,omitempty"`
	TenantID   string            `json:"tenantId"`
	TraceID    string            `json:"traceId,omitempty"`
	CampaignID string            `json:"campaignId,omitempty"`
	Items      []domain.SaleItem `json:"items"`
}

// processQuote runs a quote request through the selection and calculation pipeline.
func (w *Worker) processQuote(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var qm QuoteMessage
	if err := json.Unmarshal(msg.Payload, &qm); err != nil {
		slog.Error("failed to parse quote message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if qm.TenantID != "" {
		tenantID = qm.TenantID
	}

	traceID := qm.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing quote request",
		"quote_id", qm.QuoteID,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	cart := &domain.Cart{Items: qm.Items}
	if err := cart.Validate(); err != nil {
		slog.Error("invalid cart in quote message",
			"quote_id", qm.QuoteID,
			"error", err,
		)
		return err
	}

	now := time.Now()

	// 1. Pick the governing campaign
	camp, err := w.selector.Select(ctx, tenantID, qm.CampaignID, cart, now)
	if err != nil {
		slog.Error("campaign selection failed",
			"quote_id", qm.QuoteID,
			"campaign_id", qm.CampaignID,
			"error", err,
		)
		return err
	}

	// 2. Calculate discounts
	result, err := w.engine.Calculate(camp, cart, now)
	if err != nil {
		slog.Error("discount calculation failed",
			"quote_id", qm.QuoteID,
			"error", err,
		)
		return err
	}

	for _, skipped := range result.SkippedRules {
		slog.Warn("malformed rule skipped",
			"quote_id", qm.QuoteID,
			"tenant_id", tenantID,
			"detail", skipped,
		)
	}

	quote := &domain.Quote{
		ID:        qm.QuoteID,
		TenantID:  tenantID,
		Cart:      *cart,
		Result:    result,
		Status:    domain.QuotePending,
		CreatedAt: now,
	}
	if quote.ID == "" {
		quote.ID = uuid.New().String()
	}
	if camp != nil {
		quote.CampaignID = camp.ID
		quote.CampaignName = camp.Name
	}

	// 3. Save quote
	if w.repo != nil {
		if err := w.repo.SaveQuote(ctx, tenantID, quote); err != nil {
			slog.Error("failed to save quote",
				"quote_id", quote.ID,
				"error", err,
			)
		}
	}

	// 4. Publish computed result
	resultPayload, _ := json.Marshal(quote)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicQuoteComputed, resultPayload); err != nil {
		slog.Error("failed to publish computed quote",
			"quote_id", quote.ID,
			"error", err,
		)
	}

	slog.Info("quote processed",
		"quote_id", quote.ID,
		"tenant_id", tenantID,
		"final_total", result.FinalTotal,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
