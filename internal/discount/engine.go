// Package discount implements the deterministic discount calculation
// engine: a single forward pass of line resolution, line rules,
// buy-get rules, cart rules, and aggregation over an immutable cart
// and campaign snapshot.
package discount

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/walldriyan/mypos-sub001/internal/domain"
)

// Engine computes discounts. It is stateless and safe for concurrent
// use: every call builds a fresh evaluation over its own inputs.
type Engine struct{}

// New creates a discount engine.
func New() *Engine {
	return &Engine{}
}

// Calculate evaluates the campaign against the cart and returns the
// complete, audited result. A nil campaign is valid and yields a
// result with zero discounts. at is the evaluation timestamp used for
// rule validity windows; zero means now.
//
// Lines are processed strictly in cart order so that
// isOneTimePerTransaction "first line wins" semantics and buy-get
// tie-breaks are reproducible given identical input.
func (e *Engine) Calculate(campaign *domain.DiscountSet, cart *domain.Cart, at time.Time) (*domain.DiscountResult, error) {
	if err := cart.Validate(); err != nil {
		return nil, err
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	ev := newEvaluator(campaign, cart, at)

	for _, ls := range ev.lines {
		ev.evaluateLine(ls)
	}
	ev.applyBuyGetRules()
	cartRecords, cartDiscount := ev.applyCartRules()

	return ev.buildResult(cartRecords, cartDiscount), nil
}

// evaluator holds the working state of one evaluation pass.
type evaluator struct {
	campaign *domain.DiscountSet
	at       time.Time
	lines    []*lineState

	// fired counts sub-rule firings across the transaction, keyed by
	// source-scoped rule identity. Drives isOneTimePerTransaction and
	// maxApplications.
	fired   map[string]int
	skipped []string
}

func newEvaluator(campaign *domain.DiscountSet, cart *domain.Cart, at time.Time) *evaluator {
	ev := &evaluator{
		campaign: campaign,
		at:       at,
		lines:    make([]*lineState, len(cart.Items)),
		fired:    make(map[string]int),
	}
	for i, item := range cart.Items {
		ev.lines[i] = &lineState{
			item:  item,
			gross: dec(item.UnitPrice).Mul(dec(item.Quantity)),
		}
	}
	return ev
}

// lineState accumulates one line's unrounded discount and audit trail.
type lineState struct {
	item     domain.SaleItem
	gross    decimal.Decimal
	discount decimal.Decimal
	applied  []domain.AppliedRuleInfo
}

// headroom is how much discount the line can still absorb. Every
// contribution is clamped to it, so netPrice never goes negative.
func (ls *lineState) headroom() decimal.Decimal {
	return ls.gross.Sub(ls.discount)
}

func (ls *lineState) add(contribution decimal.Decimal, record domain.AppliedRuleInfo) {
	ls.discount = ls.discount.Add(contribution)
	ls.applied = append(ls.applied, record)
}

// buildResult runs stage five: aggregation. totalDiscount and
// finalTotal derive from the already-rounded components so that the
// wire invariants hold exactly.
func (ev *evaluator) buildResult(cartRecords []domain.AppliedRuleInfo, cartDiscount decimal.Decimal) *domain.DiscountResult {
	result := &domain.DiscountResult{
		LineItems:        make([]domain.LineItemResult, len(ev.lines)),
		AppliedCartRules: cartRecords,
		SkippedRules:     ev.skipped,
	}
	if result.AppliedCartRules == nil {
		result.AppliedCartRules = []domain.AppliedRuleInfo{}
	}

	grossTotal := zero
	itemDiscount := zero
	for i, ls := range ev.lines {
		grossTotal = grossTotal.Add(ls.gross)
		itemDiscount = itemDiscount.Add(ls.discount)

		applied := ls.applied
		if applied == nil {
			applied = []domain.AppliedRuleInfo{}
		}
		result.LineItems[i] = domain.LineItemResult{
			SaleItem:     ls.item,
			AppliedRules: applied,
			LineDiscount: round2(ls.discount),
			NetPrice:     round2(ls.headroom()),
		}
	}

	result.OriginalSubtotal = round2(grossTotal)
	result.TotalItemDiscount = round2(itemDiscount)
	result.TotalCartDiscount = round2(cartDiscount)
	result.TotalDiscount = round2(dec(result.TotalItemDiscount).Add(dec(result.TotalCartDiscount)))
	result.FinalTotal = round2(dec(result.OriginalSubtotal).Sub(dec(result.TotalDiscount)))
	if result.FinalTotal < 0 {
		result.FinalTotal = 0
	}
	return result
}
