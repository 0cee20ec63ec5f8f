// Package campaign selects the discount campaign to apply to a cart.
package campaign

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/walldriyan/mypos-sub001/internal/domain"
)

// campaignListTTL bounds staleness of the cached campaign list. Campaign
// writes also invalidate the cache, so this is a backstop for cross-node
// updates in the community tier.
const campaignListTTL = 30 * time.Second

// Selector picks the active campaign for a cart. Campaigns may carry an
// optional CEL eligibility expression evaluated against cart facts;
// programs are compiled once and cached.
type Selector struct {
	mu        sync.RWMutex
	env       *cel.Env
	programs  map[string]compiledEligibility
	repo      domain.Repository
	cache     domain.Cache
	logger    *slog.Logger
}

type compiledEligibility struct {
	expression string
	program    cel.Program
}

// NewSelector creates a campaign selector backed by the given repository
// and cache.
func NewSelector(repo domain.Repository, cache domain.Cache, logger *slog.Logger) (*Selector, error) {
	env, err := cel.NewEnv(
		cel.Variable("subtotal", cel.DoubleType),
		cel.Variable("totalQuantity", cel.DoubleType),
		cel.Variable("itemCount", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Selector{
		env:      env,
		programs: make(map[string]compiledEligibility),
		repo:     repo,
		cache:    cache,
		logger:   logger,
	}, nil
}

// ValidateExpression compiles an eligibility expression without loading it.
// Used by the API layer to reject bad campaigns at write time.
func (s *Selector) ValidateExpression(expr string) error {
	if expr == "" {
		return nil
	}
	_, err := s.compile(expr)
	return err
}

// Select returns the campaign to apply to the cart, or nil when no
// campaign is eligible. Explicitly targeted campaigns (campaignID != "")
// bypass eligibility selection but still honor active/window checks.
func (s *Selector) Select(ctx context.Context, tenantID, campaignID string, cart *domain.Cart, at time.Time) (*domain.DiscountSet, error) {
	if campaignID != "" {
		campaign, err := s.repo.GetCampaign(ctx, tenantID, campaignID)
		if err != nil {
			return nil, err
		}
		if !campaign.IsActive || !campaign.InWindow(at) {
			return nil, nil
		}
		return campaign, nil
	}

	campaigns, err := s.listCampaigns(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	activation := cartFacts(cart)

	// Non-default campaigns take precedence; the default set is the
	// fallback when nothing else is eligible.
	var fallback *domain.DiscountSet
	for _, campaign := range campaigns {
		if !campaign.IsActive || !campaign.InWindow(at) {
			continue
		}
		eligible, err := s.eligible(campaign, activation)
		if err != nil {
			s.logger.Warn("skipping campaign with bad eligibility expression",
				"tenant_id", tenantID,
				"campaign_id", campaign.ID,
				"error", err)
			continue
		}
		if !eligible {
			continue
		}
		if campaign.IsDefault {
			if fallback == nil {
				fallback = campaign
			}
			continue
		}
		return campaign, nil
	}

	return fallback, nil
}

// Invalidate drops the cached campaign list for a tenant. Called after
// campaign writes.
func (s *Selector) Invalidate(ctx context.Context, tenantID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, tenantID, domain.CampaignCacheKey); err != nil {
		s.logger.Warn("failed to invalidate campaign cache",
			"tenant_id", tenantID, "error", err)
	}
}

func (s *Selector) listCampaigns(ctx context.Context, tenantID string) ([]*domain.DiscountSet, error) {
	if s.cache != nil {
		cached, err := s.cache.GetCampaigns(ctx, tenantID)
		if err == nil && cached != nil {
			return cached, nil
		}
	}

	campaigns, err := s.repo.ListCampaigns(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetCampaigns(ctx, tenantID, campaigns, campaignListTTL); err != nil {
			s.logger.Warn("failed to cache campaign list",
				"tenant_id", tenantID, "error", err)
		}
	}

	return campaigns, nil
}

// eligible evaluates a campaign's eligibility expression against the cart
// facts. Campaigns without an expression are always eligible.
func (s *Selector) eligible(campaign *domain.DiscountSet, activation map[string]any) (bool, error) {
	if campaign.EligibilityExpression == "" {
		return true, nil
	}

	program, err := s.programFor(campaign)
	if err != nil {
		return false, err
	}

	out, _, err := program.Eval(activation)
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %w", err)
	}

	result, ok := out.(types.Bool)
	if !ok {
		return false, fmt.Errorf("expression returned %s, want bool", out.Type())
	}
	return bool(result), nil
}

// programFor returns the compiled program for a campaign, recompiling when
// the expression has changed since it was cached.
func (s *Selector) programFor(campaign *domain.DiscountSet) (cel.Program, error) {
	s.mu.RLock()
	entry, ok := s.programs[campaign.ID]
	s.mu.RUnlock()

	if ok && entry.expression == campaign.EligibilityExpression {
		return entry.program, nil
	}

	program, err := s.compile(campaign.EligibilityExpression)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.programs[campaign.ID] = compiledEligibility{
		expression: campaign.EligibilityExpression,
		program:    program,
	}
	s.mu.Unlock()

	return program, nil
}

func (s *Selector) compile(expr string) (cel.Program, error) {
	ast, issues := s.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("expression must return bool, got %s", ast.OutputType())
	}

	program, err := s.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}
	return program, nil
}

func cartFacts(cart *domain.Cart) map[string]any {
	var subtotal float64
	for _, item := range cart.Items {
		subtotal += item.LineTotal()
	}
	return map[string]any{
		"subtotal":      subtotal,
		"totalQuantity": cart.TotalQuantity(),
		"itemCount":     int64(len(cart.Items)),
	}
}
