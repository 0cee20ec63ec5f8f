package discount

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/walldriyan/mypos-sub001/internal/domain"
)

// applyBuyGetRules runs stage three: cross-item reward rules. Rewards
// are modeled as line-level effects anchored to the rewarded units, so
// their discounts count into totalItemDiscount.
func (ev *evaluator) applyBuyGetRules() {
	if ev.campaign == nil {
		return
	}
	for i := range ev.campaign.BuyGetRules {
		rule := &ev.campaign.BuyGetRules[i]
		if !rule.IsEnabled {
			continue
		}
		if rule.Malformed() {
			ev.markSkipped(buyGetName(rule))
			continue
		}
		ev.applyBuyGet(rule)
	}
}

func (ev *evaluator) applyBuyGet(rule *domain.BuyGetRule) {
	var totalBuy float64
	for _, ls := range ev.lines {
		if ls.item.ProductID == rule.BuyProductID {
			totalBuy += ls.item.Quantity
		}
	}

	triggers := int(math.Floor(totalBuy / rule.BuyQuantity))
	if !rule.IsRepeatable && triggers > 1 {
		triggers = 1
	}
	if rule.MaxApplications != nil && triggers > *rule.MaxApplications {
		triggers = *rule.MaxApplications
	}
	if triggers <= 0 {
		return
	}

	// Reward units consume the cheapest matching lines first,
	// deterministic tie-break on ascending lineId.
	targets := make([]*lineState, 0, len(ev.lines))
	for _, ls := range ev.lines {
		if ls.item.ProductID == rule.GetProductID {
			targets = append(targets, ls)
		}
	}
	sort.SliceStable(targets, func(i, j int) bool {
		if targets[i].item.UnitPrice != targets[j].item.UnitPrice {
			return targets[i].item.UnitPrice < targets[j].item.UnitPrice
		}
		return targets[i].item.LineID < targets[j].item.LineID
	})

	reward := decimal.NewFromInt(int64(triggers)).Mul(dec(rule.GetQuantity))
	for _, ls := range targets {
		if reward.Sign() <= 0 {
			break
		}
		take := minDec(reward, dec(ls.item.Quantity))
		reward = reward.Sub(take)

		amount := perUnitDiscount(rule, ls.item.UnitPrice).Mul(take)
		contribution := minDec(amount, ls.headroom())
		if contribution.Sign() <= 0 {
			continue
		}

		units, _ := take.Float64()
		ls.add(contribution, domain.AppliedRuleInfo{
			DiscountCampaignName:    ev.campaignName(),
			SourceRuleName:          buyGetName(rule),
			RuleType:                domain.RuleTypeBuyGet,
			TotalCalculatedDiscount: round2(contribution),
			ProductIDAffected:       ls.item.ProductID,
			BatchIDAffected:         ls.item.BatchID,
			AppliedOnce:             false,
			ApplicationCount:        unitCount(units),
		})
	}
}

// perUnitDiscount returns the discount granted per rewarded unit.
// "free" is 100% of the unit's price; fixed rewards never exceed it.
func perUnitDiscount(rule *domain.BuyGetRule, unitPrice float64) decimal.Decimal {
	price := dec(unitPrice)
	switch rule.DiscountType {
	case domain.BuyGetFree:
		return price
	case domain.BuyGetPercentage:
		return price.Mul(dec(rule.DiscountValue)).Div(hundred)
	case domain.BuyGetFixed:
		return minDec(dec(rule.DiscountValue), price)
	default:
		return zero
	}
}

func buyGetName(rule *domain.BuyGetRule) string {
	if rule.Name != "" {
		return rule.Name
	}
	return "buy " + rule.BuyProductID + " get " + rule.GetProductID
}
