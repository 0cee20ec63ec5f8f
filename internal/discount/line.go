package discount

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/walldriyan/mypos-sub001/internal/domain"
)

// evaluateLine runs stage one and two for a single line: resolve the
// governing source, then evaluate its rules.
func (ev *evaluator) evaluateLine(ls *lineState) {
	switch ResolveSource(ls.item, ev.campaign) {
	case domain.SourceCustom:
		ev.applyCustom(ls)
	case domain.SourceProduct:
		cfg := ev.campaign.ProductConfig(ls.item.ProductID)
		ev.applySubRules(ls, cfg.LineRules(), domain.SourceProduct, "product:"+ls.item.ProductID)
	case domain.SourceDefault:
		ev.applySubRules(ls, ev.campaign.DefaultLineRules(), domain.SourceDefault, "default")
	}
}

// applyCustom applies a cashier-entered override. The override fully
// replaces product and default evaluation; a value of exactly zero is
// "remove override" and produces neither discount nor audit record.
func (ev *evaluator) applyCustom(ls *lineState) {
	item := ls.item
	value := *item.CustomDiscountValue
	if value == 0 {
		return
	}

	var amount decimal.Decimal
	appliedOnce := true
	applications := 1
	switch item.CustomDiscountType {
	case domain.DiscountPercentage:
		amount = ls.gross.Mul(dec(value)).Div(hundred)
	case domain.DiscountFixed:
		if item.CustomApplyFixedOnce {
			amount = dec(value)
		} else {
			amount = dec(value).Mul(dec(item.Quantity))
			appliedOnce = false
			applications = unitCount(item.Quantity)
		}
	default:
		return
	}

	contribution := minDec(amount, ls.headroom())
	if contribution.Sign() <= 0 {
		return
	}

	ls.add(contribution, domain.AppliedRuleInfo{
		DiscountCampaignName:    ev.campaignName(),
		SourceRuleName:          "Custom Discount",
		RuleType:                domain.RuleTypeCustom,
		TotalCalculatedDiscount: round2(contribution),
		ProductIDAffected:       item.ProductID,
		BatchIDAffected:         item.BatchID,
		AppliedOnce:             appliedOnce,
		ApplicationCount:        applications,
	})
}

// applySubRules evaluates the enabled sub-rules of the selected source
// against the line. All independently satisfied sub-rules stack: they
// are orthogonal triggers, not alternatives. keyPrefix scopes the
// per-transaction firing counters used by isOneTimePerTransaction and
// maxApplications.
func (ev *evaluator) applySubRules(ls *lineState, rules []domain.LineRule, source domain.SourceKind, keyPrefix string) {
	for _, rule := range rules {
		cfg := rule.Config
		if !cfg.IsEnabled {
			continue
		}
		if cfg.Malformed() {
			ev.markSkipped(ruleDisplayName(cfg, rule.Kind))
			continue
		}
		if !cfg.InWindow(ev.at) {
			continue
		}

		key := keyPrefix + ":" + string(rule.Kind)
		if ev.campaign.IsOneTimePerTransaction && ev.fired[key] > 0 {
			continue
		}
		if cfg.MaxApplications != nil && ev.fired[key] >= *cfg.MaxApplications {
			continue
		}
		if !cfg.Matches(measureFor(rule.Kind, ls.item)) {
			continue
		}

		amount, appliedOnce, applications := ruleAmount(cfg, ls)
		contribution := minDec(amount, ls.headroom())
		if contribution.Sign() <= 0 {
			continue
		}

		ev.fired[key]++
		ls.add(contribution, domain.AppliedRuleInfo{
			DiscountCampaignName:    ev.campaignName(),
			SourceRuleName:          ruleDisplayName(cfg, rule.Kind),
			RuleType:                domain.RuleTypeFor(source, rule.Kind),
			TotalCalculatedDiscount: round2(contribution),
			ProductIDAffected:       ls.item.ProductID,
			BatchIDAffected:         ls.item.BatchID,
			AppliedOnce:             appliedOnce,
			ApplicationCount:        applications,
		})
	}
}

// measureFor returns the value a sub-rule's condition bounds gate on.
// Value rules gate on line value, quantity rules on line quantity, and
// the unit-price threshold on the unit price.
func measureFor(kind domain.RuleKind, item domain.SaleItem) float64 {
	switch kind {
	case domain.KindLineItemValue:
		return item.LineTotal()
	case domain.KindLineItemQuantity, domain.KindSpecificQtyThreshold:
		return item.Quantity
	case domain.KindSpecificUnitPriceThreshold:
		return item.UnitPrice
	default:
		return 0
	}
}

// ruleAmount computes a sub-rule's raw contribution before clamping.
// Percentage rules always compute against line value, never against a
// quantity count.
func ruleAmount(cfg *domain.RuleConfig, ls *lineState) (amount decimal.Decimal, appliedOnce bool, applications int) {
	if cfg.Type == domain.DiscountPercentage {
		return ls.gross.Mul(dec(cfg.Value)).Div(hundred), true, 1
	}
	if cfg.ApplyFixedOnce {
		return dec(cfg.Value), true, 1
	}
	return dec(cfg.Value).Mul(dec(ls.item.Quantity)), false, unitCount(ls.item.Quantity)
}

func ruleDisplayName(cfg *domain.RuleConfig, kind domain.RuleKind) string {
	if cfg.Name != "" {
		return cfg.Name
	}
	return string(kind)
}

// unitCount reports how many whole units a per-unit discount covered.
// Fractional quantities (weighed goods) count as at least one.
func unitCount(quantity float64) int {
	n := int(math.Floor(quantity))
	if n < 1 {
		n = 1
	}
	return n
}

func (ev *evaluator) campaignName() string {
	if ev.campaign == nil {
		return ""
	}
	return ev.campaign.Name
}

func (ev *evaluator) markSkipped(name string) {
	ev.skipped = append(ev.skipped, fmt.Sprintf("malformed rule skipped: %s", name))
}
