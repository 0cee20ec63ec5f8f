package domain

import (
	"time"
)

// Rule type tags carried on audit records.
const (
	RuleTypeCustom             = "custom_line_discount"
	RuleTypeBuyGet             = "buy_get"
	RuleTypeGlobalCartPrice    = "campaign_global_cart_price"
	RuleTypeGlobalCartQuantity = "campaign_global_cart_quantity"
)

// RuleTypeFor returns the audit tag for a source/kind pair.
func RuleTypeFor(source SourceKind, kind RuleKind) string {
	switch source {
	case SourceProduct:
		return "product_config_" + string(kind)
	case SourceDefault:
		return "campaign_default_" + string(kind)
	default:
		return string(kind)
	}
}

// SourceKind is the priority tier chosen to govern a line's item-level
// discount. Priority is strictly Custom > Product > Default.
type SourceKind int

const (
	SourceNone SourceKind = iota
	SourceCustom
	SourceProduct
	// SourceBatch is a deprecated tier kept for compatibility with the
	// stored type model. It is never selected.
	SourceBatch
	SourceDefault
)

// String returns the wire name of the source kind.
func (s SourceKind) String() string {
	switch s {
	case SourceCustom:
		return "custom"
	case SourceProduct:
		return "product"
	case SourceBatch:
		return "batch"
	case SourceDefault:
		return "default"
	default:
		return "none"
	}
}

// AppliedRuleInfo is one audit record: which rule fired, on what, and
// for how much. Produced once per firing, never mutated afterwards.
type AppliedRuleInfo struct {
	DiscountCampaignName    string  `json:"discountCampaignName"`
	SourceRuleName          string  `json:"sourceRuleName"`
	RuleType                string  `json:"ruleType"`
	TotalCalculatedDiscount float64 `json:"totalCalculatedDiscount"`
	ProductIDAffected       string  `json:"productIdAffected,omitempty"`
	BatchIDAffected         string  `json:"batchIdAffected,omitempty"`
	AppliedOnce             bool    `json:"appliedOnce"`
	ApplicationCount        int     `json:"applicationCount"`
}

// LineItemResult is one original line plus its computed discount and
// the audit trail that produced it.
type LineItemResult struct {
	SaleItem
	AppliedRules []AppliedRuleInfo `json:"appliedRules"`
	LineDiscount float64           `json:"lineDiscount"`
	NetPrice     float64           `json:"netPrice"`
}

// DiscountResult is the engine's complete output for one transaction.
// All monetary fields are rounded to 2 decimals; totalDiscount and
// finalTotal are derived from the rounded components so the wire
// invariants hold exactly.
type DiscountResult struct {
	LineItems         []LineItemResult  `json:"lineItems"`
	AppliedCartRules  []AppliedRuleInfo `json:"appliedCartRules"`
	OriginalSubtotal  float64           `json:"originalSubtotal"`
	TotalItemDiscount float64           `json:"totalItemDiscount"`
	TotalCartDiscount float64           `json:"totalCartDiscount"`
	TotalDiscount     float64           `json:"totalDiscount"`
	FinalTotal        float64           `json:"finalTotal"`

	// SkippedRules names malformed rules that were treated as disabled
	// during this evaluation. Logged by the caller, not serialized.
	SkippedRules []string `json:"-"`
}

// AppliedRulesSummary returns the flattened, order-preserving audit
// trail: every line's records in cart order, then the cart rules.
func (r *DiscountResult) AppliedRulesSummary() []AppliedRuleInfo {
	summary := make([]AppliedRuleInfo, 0, len(r.AppliedCartRules))
	for _, line := range r.LineItems {
		summary = append(summary, line.AppliedRules...)
	}
	summary = append(summary, r.AppliedCartRules...)
	return summary
}

// QuoteStatus is the lifecycle state of a stored quote.
type QuoteStatus string

const (
	QuotePending   QuoteStatus = "pending"
	QuoteCommitted QuoteStatus = "committed"
)

// Quote is a persisted discount computation: the cart snapshot, the
// campaign that governed it, and the result.
type Quote struct {
	ID           string          `json:"id"`
	TenantID     string          `json:"tenantId"`
	CampaignID   string          `json:"campaignId,omitempty"`
	CampaignName string          `json:"campaignName,omitempty"`
	Cart         Cart            `json:"cart"`
	Result       *DiscountResult `json:"result"`
	Status       QuoteStatus     `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
}
