package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/walldriyan/mypos-sub001/internal/campaign"
	"github.com/walldriyan/mypos-sub001/internal/discount"
	"github.com/walldriyan/mypos-sub001/internal/domain"
	"github.com/walldriyan/mypos-sub001/internal/redemption"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo        domain.Repository
	cache       domain.Cache
	bus         domain.EventBus
	selector    *campaign.Selector
	engine      *discount.Engine
	redemptions *redemption.Tracker
	version     string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, selector *campaign.Selector, engine *discount.Engine, version string) *Handler {
	return &Handler{
		repo:        repo,
		cache:       cache,
		bus:         bus,
		selector:    selector,
		engine:      engine,
		redemptions: redemption.NewTracker(repo, cache),
		version:     version,
	}
}

// QuoteRequest is the request body for POST /quote.
type QuoteRequest struct {
	// CampaignID pins the quote to a specific campaign. Empty means the
	// selector picks one.
	CampaignID string            `json:"campaignId,omitempty"`
	Items      []domain.SaleItem `json:"items"`
}

// QuoteResponse is the response for POST /quote and GET /quotes/{id}.
type QuoteResponse struct {
	QuoteID             string                   `json:"quoteId"`
	CampaignID          string                   `json:"campaignId,omitempty"`
	CampaignName        string                   `json:"campaignName,omitempty"`
	Status              domain.QuoteStatus       `json:"status"`
	Result              *domain.DiscountResult   `json:"result"`
	AppliedRulesSummary []domain.AppliedRuleInfo `json:"appliedRulesSummary"`
	Metadata            struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Quote handles POST /quote requests: select a campaign, run the
// discount calculation, persist the quote, respond with the result.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	cart := &domain.Cart{Items: req.Items}
	if err := cart.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	now := time.Now().UTC()

	var selected *domain.DiscountSet
	if h.selector != nil {
		var err error
		selected, err = h.selector.Select(ctx, tenantID, req.CampaignID, cart, now)
		if err != nil {
			slog.Error("campaign selection failed",
				"tenant_id", tenantID, "campaign_id", req.CampaignID, "error", err)
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "campaign not found",
			})
			return
		}
	}

	result, err := h.engine.Calculate(selected, cart, now)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCart) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("discount calculation failed", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "discount calculation failed",
		})
		return
	}

	for _, skipped := range result.SkippedRules {
		slog.Warn("malformed rule skipped",
			"tenant_id", tenantID, "rule", skipped, "trace_id", traceID)
	}

	quote := &domain.Quote{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Cart:      *cart,
		Result:    result,
		Status:    domain.QuotePending,
		CreatedAt: now,
	}
	if selected != nil {
		quote.CampaignID = selected.ID
		quote.CampaignName = selected.Name
	}

	if h.repo != nil {
		if err := h.repo.SaveQuote(ctx, tenantID, quote); err != nil {
			slog.Error("failed to save quote", "quote_id", quote.ID, "error", err)
			// The computed result is still valid; keep serving it.
		}
	}

	h.publish(ctx, tenantID, domain.TopicQuoteComputed, quote)

	writeJSON(w, http.StatusOK, h.quoteResponse(quote, traceID, time.Since(start).Milliseconds()))
}

// GetQuote retrieves a stored quote by ID.
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	quoteID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	quote, err := h.repo.GetQuote(ctx, tenantID, quoteID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "quote not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, h.quoteResponse(quote, GetTraceID(ctx), 0))
}

// CommitQuote marks a quote as committed and counts the redemption
// against its campaign.
func (h *Handler) CommitQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	quoteID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	quote, err := h.repo.GetQuote(ctx, tenantID, quoteID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "quote not found",
		})
		return
	}
	if quote.Status == domain.QuoteCommitted {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "quote already committed",
		})
		return
	}

	if err := h.repo.MarkQuoteCommitted(ctx, tenantID, quoteID); err != nil {
		slog.Error("failed to commit quote", "quote_id", quoteID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to commit quote",
		})
		return
	}
	quote.Status = domain.QuoteCommitted

	if quote.CampaignID != "" {
		if _, err := h.redemptions.Record(ctx, tenantID, quote.CampaignID); err != nil {
			slog.Warn("failed to count redemption",
				"campaign_id", quote.CampaignID, "error", err)
		}
	}

	h.publish(ctx, tenantID, domain.TopicQuoteCommitted, quote)

	writeJSON(w, http.StatusOK, map[string]string{
		"quoteId": quoteID,
		"status":  string(domain.QuoteCommitted),
	})
}

// CampaignRequest is the request body for creating or updating a campaign.
type CampaignRequest struct {
	domain.DiscountSet
}

// validateCampaign rejects rule configurations the engine would have
// to skip at evaluation time. The engine tolerates malformed rules to
// keep checkout moving, but writes should never store them.
func validateCampaign(c *domain.DiscountSet) error {
	check := func(name string, r *domain.RuleConfig) error {
		if r != nil && r.Malformed() {
			return fmt.Errorf("rule %q is malformed: percentage must be <= 100 and conditionMin <= conditionMax", name)
		}
		return nil
	}

	slots := []struct {
		name string
		rule *domain.RuleConfig
	}{
		{"defaultLineItemValueRuleJson", c.DefaultLineItemValueRule},
		{"defaultLineItemQuantityRuleJson", c.DefaultLineItemQuantityRule},
		{"defaultSpecificQtyThresholdRuleJson", c.DefaultSpecificQtyThresholdRule},
		{"defaultSpecificUnitPriceThresholdRuleJson", c.DefaultSpecificUnitPriceThresholdRule},
		{"globalCartPriceRuleJson", c.GlobalCartPriceRule},
		{"globalCartQuantityRuleJson", c.GlobalCartQuantityRule},
	}
	for _, s := range slots {
		if err := check(s.name, s.rule); err != nil {
			return err
		}
	}

	for _, pc := range c.ProductConfigurations {
		for _, s := range []struct {
			name string
			rule *domain.RuleConfig
		}{
			{"lineItemValueRuleJson", pc.LineItemValueRule},
			{"lineItemQuantityRuleJson", pc.LineItemQuantityRule},
			{"specificQtyThresholdRuleJson", pc.SpecificQtyThresholdRule},
			{"specificUnitPriceThresholdRuleJson", pc.SpecificUnitPriceThresholdRule},
		} {
			if err := check(pc.ProductID+"/"+s.name, s.rule); err != nil {
				return err
			}
		}
	}

	for i := range c.BuyGetRules {
		r := &c.BuyGetRules[i]
		if r.Malformed() {
			return fmt.Errorf("buy-get rule %q is malformed: quantities must be positive and percentage <= 100", r.Name)
		}
	}

	return nil
}

// ListCampaigns returns all campaigns for the tenant.
func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	campaigns, err := h.repo.ListCampaigns(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list campaigns", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list campaigns",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"campaigns": campaigns,
		"count":     len(campaigns),
	})
}

// GetCampaign retrieves a campaign by ID.
func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	campaignID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	c, err := h.repo.GetCampaign(ctx, tenantID, campaignID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "campaign not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// CreateCampaign creates a new campaign.
func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req CampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	c := req.DiscountSet
	if c.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name is required",
		})
		return
	}
	if h.selector != nil {
		if err := h.selector.ValidateExpression(c.EligibilityExpression); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid eligibility expression: " + err.Error(),
			})
			return
		}
	}
	if err := validateCampaign(&c); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.TenantID = tenantID
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt

	if h.repo != nil {
		if err := h.repo.SaveCampaign(ctx, tenantID, &c); err != nil {
			slog.Error("failed to save campaign", "campaign_id", c.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save campaign",
			})
			return
		}
	}

	h.invalidateCampaigns(ctx, tenantID, &c)

	slog.Info("campaign created", "campaign_id", c.ID, "name", c.Name, "tenant_id", tenantID)
	writeJSON(w, http.StatusCreated, &c)
}

// UpdateCampaign replaces an existing campaign.
func (h *Handler) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	campaignID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	existing, err := h.repo.GetCampaign(ctx, tenantID, campaignID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "campaign not found",
		})
		return
	}

	var req CampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	c := req.DiscountSet
	if c.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name is required",
		})
		return
	}
	if h.selector != nil {
		if err := h.selector.ValidateExpression(c.EligibilityExpression); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid eligibility expression: " + err.Error(),
			})
			return
		}
	}
	if err := validateCampaign(&c); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	c.ID = campaignID
	c.TenantID = tenantID
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()

	if err := h.repo.SaveCampaign(ctx, tenantID, &c); err != nil {
		slog.Error("failed to update campaign", "campaign_id", campaignID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to update campaign",
		})
		return
	}

	h.invalidateCampaigns(ctx, tenantID, &c)

	slog.Info("campaign updated", "campaign_id", campaignID, "tenant_id", tenantID)
	writeJSON(w, http.StatusOK, &c)
}

// DeleteCampaign removes a campaign.
func (h *Handler) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	campaignID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.DeleteCampaign(ctx, tenantID, campaignID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "campaign not found",
		})
		return
	}

	h.invalidateCampaigns(ctx, tenantID, &domain.DiscountSet{ID: campaignID, TenantID: tenantID})

	slog.Info("campaign deleted", "campaign_id", campaignID, "tenant_id", tenantID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "campaign deleted",
	})
}

// CampaignStats reports redemption counts for a campaign.
func (h *Handler) CampaignStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	campaignID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if _, err := h.repo.GetCampaign(ctx, tenantID, campaignID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "campaign not found",
		})
		return
	}

	since := time.Now().UTC().Add(-redemption.Window)
	quotes, err := h.redemptions.QuoteCount(ctx, tenantID, campaignID, since)
	if err != nil {
		slog.Error("failed to count quotes", "campaign_id", campaignID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to compute stats",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"campaignId":  campaignID,
		"quotes24h":   quotes,
		"windowStart": since,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func (h *Handler) quoteResponse(quote *domain.Quote, traceID string, totalMs int64) *QuoteResponse {
	resp := &QuoteResponse{
		QuoteID:      quote.ID,
		CampaignID:   quote.CampaignID,
		CampaignName: quote.CampaignName,
		Status:       quote.Status,
		Result:       quote.Result,
	}
	if quote.Result != nil {
		resp.AppliedRulesSummary = quote.Result.AppliedRulesSummary()
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = totalMs
	resp.Metadata.Version = h.version
	return resp
}

// invalidateCampaigns drops the selector's cached campaign list and
// notifies other nodes of the change.
func (h *Handler) invalidateCampaigns(ctx context.Context, tenantID string, c *domain.DiscountSet) {
	if h.selector != nil {
		h.selector.Invalidate(ctx, tenantID)
	}
	h.publish(ctx, tenantID, domain.TopicCampaignUpdated, c)
}

func (h *Handler) publish(ctx context.Context, tenantID, topic string, payload interface{}) {
	if h.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal event payload", "topic", topic, "error", err)
		return
	}
	if err := h.bus.Publish(ctx, tenantID, topic, data); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
