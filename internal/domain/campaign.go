package domain

import "time"

// ProductDiscountConfig binds up to four line-rule slots to a product
// within one campaign.
type ProductDiscountConfig struct {
	ProductID                    string `json:"productId"`
	IsActiveForProductInCampaign bool   `json:"isActiveForProductInCampaign"`

	LineItemValueRule              *RuleConfig `json:"lineItemValueRuleJson,omitempty"`
	LineItemQuantityRule           *RuleConfig `json:"lineItemQuantityRuleJson,omitempty"`
	SpecificQtyThresholdRule       *RuleConfig `json:"specificQtyThresholdRuleJson,omitempty"`
	SpecificUnitPriceThresholdRule *RuleConfig `json:"specificUnitPriceThresholdRuleJson,omitempty"`
}

// LineRules returns the configured slots as a tagged-variant slice in
// evaluation order.
func (c *ProductDiscountConfig) LineRules() []LineRule {
	return buildLineRules(c.LineItemValueRule, c.LineItemQuantityRule,
		c.SpecificQtyThresholdRule, c.SpecificUnitPriceThresholdRule)
}

// DiscountSet is a campaign: the aggregate root of all discount rules
// evaluated for one transaction. The engine only ever reads an
// immutable snapshot; authoring happens elsewhere.
type DiscountSet struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId,omitempty"`
	Name     string `json:"name"`

	IsActive  bool `json:"isActive"`
	IsDefault bool `json:"isDefault"`

	// A rule that would otherwise fire once per qualifying line fires
	// at most once across the whole transaction.
	IsOneTimePerTransaction bool `json:"isOneTimePerTransaction"`

	ValidFrom  *time.Time `json:"validFrom,omitempty"`
	ValidUntil *time.Time `json:"validUntil,omitempty"`

	// Optional CEL expression over cart facts, evaluated by the
	// campaign selector. Empty means always eligible.
	EligibilityExpression string `json:"eligibilityExpression,omitempty"`

	ProductConfigurations []ProductDiscountConfig `json:"productConfigurations"`
	BuyGetRules           []BuyGetRule            `json:"buyGetRules"`

	// Campaign-wide cart rules.
	GlobalCartPriceRule    *RuleConfig `json:"globalCartPriceRuleJson,omitempty"`
	GlobalCartQuantityRule *RuleConfig `json:"globalCartQuantityRuleJson,omitempty"`

	// Campaign-wide per-line defaults mirroring the product slots.
	DefaultLineItemValueRule              *RuleConfig `json:"defaultLineItemValueRuleJson,omitempty"`
	DefaultLineItemQuantityRule           *RuleConfig `json:"defaultLineItemQuantityRuleJson,omitempty"`
	DefaultSpecificQtyThresholdRule       *RuleConfig `json:"defaultSpecificQtyThresholdRuleJson,omitempty"`
	DefaultSpecificUnitPriceThresholdRule *RuleConfig `json:"defaultSpecificUnitPriceThresholdRuleJson,omitempty"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// ProductConfig returns the active product configuration for a
// product, or nil when none applies.
func (s *DiscountSet) ProductConfig(productID string) *ProductDiscountConfig {
	for i := range s.ProductConfigurations {
		cfg := &s.ProductConfigurations[i]
		if cfg.ProductID == productID && cfg.IsActiveForProductInCampaign {
			return cfg
		}
	}
	return nil
}

// DefaultLineRules returns the campaign's per-line default slots as a
// tagged-variant slice in evaluation order.
func (s *DiscountSet) DefaultLineRules() []LineRule {
	return buildLineRules(s.DefaultLineItemValueRule, s.DefaultLineItemQuantityRule,
		s.DefaultSpecificQtyThresholdRule, s.DefaultSpecificUnitPriceThresholdRule)
}

// HasDefaultLineRules reports whether any default slot is configured.
func (s *DiscountSet) HasDefaultLineRules() bool {
	return len(s.DefaultLineRules()) > 0
}

// InWindow reports whether the campaign is valid at the given time.
func (s *DiscountSet) InWindow(at time.Time) bool {
	if s.ValidFrom != nil && at.Before(*s.ValidFrom) {
		return false
	}
	if s.ValidUntil != nil && at.After(*s.ValidUntil) {
		return false
	}
	return true
}

func buildLineRules(value, quantity, specificQty, specificUnitPrice *RuleConfig) []LineRule {
	rules := make([]LineRule, 0, 4)
	if value != nil {
		rules = append(rules, LineRule{Kind: KindLineItemValue, Config: value})
	}
	if quantity != nil {
		rules = append(rules, LineRule{Kind: KindLineItemQuantity, Config: quantity})
	}
	if specificQty != nil {
		rules = append(rules, LineRule{Kind: KindSpecificQtyThreshold, Config: specificQty})
	}
	if specificUnitPrice != nil {
		rules = append(rules, LineRule{Kind: KindSpecificUnitPriceThreshold, Config: specificUnitPrice})
	}
	return rules
}
