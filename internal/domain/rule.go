package domain

import "time"

// RuleConfig is one configured discount rule. A nil RuleConfig slot on
// a campaign or product configuration means "no rule of this kind".
type RuleConfig struct {
	IsEnabled bool         `json:"isEnabled"`
	Name      string       `json:"name"`
	Type      DiscountType `json:"type"`
	Value     float64      `json:"value"`

	// Inclusive applicability bounds on the rule's measure. A nil
	// bound is unbounded on that side.
	ConditionMin *float64 `json:"conditionMin,omitempty"`
	ConditionMax *float64 `json:"conditionMax,omitempty"`

	// Only meaningful for fixed rules: true applies the value once per
	// line, false multiplies it by the line quantity.
	ApplyFixedOnce bool `json:"applyFixedOnce,omitempty"`

	// MaxApplications caps how many lines the rule may fire on within
	// a single transaction.
	MaxApplications *int `json:"maxApplications,omitempty"`

	ValidFrom  *time.Time `json:"validFrom,omitempty"`
	ValidUntil *time.Time `json:"validUntil,omitempty"`
}

// Matches reports whether a measure falls inside the rule's inclusive
// condition bounds.
func (r *RuleConfig) Matches(measure float64) bool {
	if r.ConditionMin != nil && measure < *r.ConditionMin {
		return false
	}
	if r.ConditionMax != nil && measure > *r.ConditionMax {
		return false
	}
	return true
}

// InWindow reports whether the rule is valid at the given time. Rules
// without a window are always valid.
func (r *RuleConfig) InWindow(at time.Time) bool {
	if r.ValidFrom != nil && at.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidUntil != nil && at.After(*r.ValidUntil) {
		return false
	}
	return true
}

// Malformed reports whether the rule carries an impossible
// configuration. Malformed rules are skipped, never fatal: one bad
// campaign rule must not block checkout.
func (r *RuleConfig) Malformed() bool {
	if r.Value < 0 {
		return true
	}
	if r.Type == DiscountPercentage && r.Value > 100 {
		return true
	}
	if r.ConditionMin != nil && r.ConditionMax != nil && *r.ConditionMin > *r.ConditionMax {
		return true
	}
	return false
}

// RuleKind identifies one of the four orthogonal per-line rule kinds.
type RuleKind string

const (
	KindLineItemValue              RuleKind = "line_item_value"
	KindLineItemQuantity           RuleKind = "line_item_quantity"
	KindSpecificQtyThreshold       RuleKind = "specific_qty_threshold"
	KindSpecificUnitPriceThreshold RuleKind = "specific_unit_price_threshold"
)

// LineRule is the closed tagged variant pairing a rule kind with its
// configuration. The evaluator works over LineRule slices built from
// the four optional config slots, so nil-checking stays at the edge.
type LineRule struct {
	Kind   RuleKind
	Config *RuleConfig
}

// BuyGetDiscountType is the reward form of a buy-get rule.
type BuyGetDiscountType string

const (
	BuyGetPercentage BuyGetDiscountType = "percentage"
	BuyGetFixed      BuyGetDiscountType = "fixed"
	BuyGetFree       BuyGetDiscountType = "free"
)

// BuyGetRule is a cross-item promotion: buying buyQuantity units of
// one product rewards a discount on units of another.
type BuyGetRule struct {
	Name            string             `json:"name"`
	IsEnabled       bool               `json:"isEnabled"`
	BuyProductID    string             `json:"buyProductId"`
	BuyQuantity     float64            `json:"buyQuantity"`
	GetProductID    string             `json:"getProductId"`
	GetQuantity     float64            `json:"getQuantity"`
	DiscountType    BuyGetDiscountType `json:"discountType"`
	DiscountValue   float64            `json:"discountValue"`
	IsRepeatable    bool               `json:"isRepeatable"`
	MaxApplications *int               `json:"maxApplications,omitempty"`
}

// Malformed reports whether the buy-get rule cannot be applied.
func (r *BuyGetRule) Malformed() bool {
	if r.BuyQuantity <= 0 || r.GetQuantity <= 0 {
		return true
	}
	if r.BuyProductID == "" || r.GetProductID == "" {
		return true
	}
	if r.DiscountType == BuyGetPercentage && r.DiscountValue > 100 {
		return true
	}
	return r.DiscountValue < 0
}
