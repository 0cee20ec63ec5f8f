package discount

import (
	"github.com/shopspring/decimal"

	"github.com/walldriyan/mypos-sub001/internal/domain"
)

// applyCartRules runs stage four: the two campaign-wide rules, each
// evaluated once against the post-line-discount subtotal. The price
// rule gates on that subtotal, the quantity rule on total cart
// quantity; both may fire independently and stack. The combined cart
// discount is clamped so the final total never goes negative.
func (ev *evaluator) applyCartRules() ([]domain.AppliedRuleInfo, decimal.Decimal) {
	if ev.campaign == nil {
		return nil, zero
	}

	subtotal := zero
	var totalQty float64
	for _, ls := range ev.lines {
		subtotal = subtotal.Add(ls.headroom())
		totalQty += ls.item.Quantity
	}

	var records []domain.AppliedRuleInfo
	cartDiscount := zero

	apply := func(cfg *domain.RuleConfig, measure float64, ruleType string) {
		if cfg == nil || !cfg.IsEnabled {
			return
		}
		if cfg.Malformed() {
			ev.markSkipped(cfg.Name)
			return
		}
		if !cfg.InWindow(ev.at) || !cfg.Matches(measure) {
			return
		}

		var amount decimal.Decimal
		if cfg.Type == domain.DiscountPercentage {
			amount = subtotal.Mul(dec(cfg.Value)).Div(hundred)
		} else {
			amount = dec(cfg.Value)
		}

		contribution := minDec(amount, subtotal.Sub(cartDiscount))
		if contribution.Sign() <= 0 {
			return
		}
		cartDiscount = cartDiscount.Add(contribution)
		records = append(records, domain.AppliedRuleInfo{
			DiscountCampaignName:    ev.campaign.Name,
			SourceRuleName:          cfg.Name,
			RuleType:                ruleType,
			TotalCalculatedDiscount: round2(contribution),
			AppliedOnce:             true,
			ApplicationCount:        1,
		})
	}

	sub, _ := subtotal.Float64()
	apply(ev.campaign.GlobalCartPriceRule, sub, domain.RuleTypeGlobalCartPrice)
	apply(ev.campaign.GlobalCartQuantityRule, totalQty, domain.RuleTypeGlobalCartQuantity)

	return records, cartDiscount
}
