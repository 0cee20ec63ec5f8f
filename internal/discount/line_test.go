package discount

import (
	"testing"
	"time"

	"github.com/walldriyan/mypos-sub001/internal/domain"
)

func TestSubRulesStack(t *testing.T) {
	campaign := &domain.DiscountSet{
		Name:     "Stack",
		IsActive: true,
		ProductConfigurations: []domain.ProductDiscountConfig{{
			ProductID:                    "P1",
			IsActiveForProductInCampaign: true,
			LineItemValueRule: &domain.RuleConfig{
				IsEnabled: true, Name: "value 10%", Type: domain.DiscountPercentage, Value: 10,
			},
			LineItemQuantityRule: &domain.RuleConfig{
				IsEnabled: true, Name: "bulk 20", Type: domain.DiscountFixed, Value: 20,
				ApplyFixedOnce: true, ConditionMin: fptr(3),
			},
		}},
	}
	cart := cartOf(line("l1", "P1", 5, 100)) // gross 500

	result, err := New().Calculate(campaign, cart, evalTime)
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}

	// Both sub-rules are satisfied and stack: 50 + 20.
	if result.LineItems[0].LineDiscount != 70 {
		t.Errorf("expected stacked discount 70, got %.2f", result.LineItems[0].LineDiscount)
	}
	if len(result.LineItems[0].AppliedRules) != 2 {
		t.Errorf("expected 2 audit records, got %d", len(result.LineItems[0].AppliedRules))
	}
}

func TestFixedPerUnitMultipliesByQuantity(t *testing.T) {
	campaign := &domain.DiscountSet{
		Name:     "PerUnit",
		IsActive: true,
		DefaultLineItemValueRule: &domain.RuleConfig{
			IsEnabled: true, Name: "2 off each", Type: domain.DiscountFixed, Value: 2,
		},
	}
	cart := cartOf(line("l1", "P1", 4, 25))

	result, err := New().Calculate(campaign, cart, evalTime)
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}

	if result.LineItems[0].LineDiscount != 8 {
		t.Errorf("expected 8 (2 x 4), got %.2f", result.LineItems[0].LineDiscount)
	}
	rec := result.LineItems[0].AppliedRules[0]
	if rec.AppliedOnce {
		t.Error("per-unit fixed rule must not be appliedOnce")
	}
	if rec.ApplicationCount != 4 {
		t.Errorf("expected 4 applications, got %d", rec.ApplicationCount)
	}
}

func TestConditionBoundsInclusive(t *testing.T) {
	campaign := &domain.DiscountSet{
		Name:     "Bounds",
		IsActive: true,
		DefaultLineItemQuantityRule: &domain.RuleConfig{
			IsEnabled: true, Name: "qty band", Type: domain.DiscountFixed, Value: 5,
			ApplyFixedOnce: true, ConditionMin: fptr(2), ConditionMax: fptr(4),
		},
	}

	cases := []struct {
		qty    float64
		expect float64
	}{
		{1, 0},
		{2, 5}, // min is inclusive
		{3, 5},
		{4, 5}, // max is inclusive
		{5, 0},
	}
	engine := New()
	for _, tc := range cases {
		result, err := engine.Calculate(campaign, cartOf(line("l1", "P1", tc.qty, 100)), evalTime)
		if err != nil {
			t.Fatalf("calculate failed: %v", err)
		}
		if result.LineItems[0].LineDiscount != tc.expect {
			t.Errorf("qty %.0f: expected %.2f, got %.2f", tc.qty, tc.expect, result.LineItems[0].LineDiscount)
		}
	}
}

func TestMalformedRuleSkipped(t *testing.T) {
	campaign := &domain.DiscountSet{
		Name:     "Broken",
		IsActive: true,
		DefaultLineItemValueRule: &domain.RuleConfig{
			IsEnabled: true, Name: "over 100pct", Type: domain.DiscountPercentage, Value: 150,
		},
		DefaultLineItemQuantityRule: &domain.RuleConfig{
			IsEnabled: true, Name: "inverted band", Type: domain.DiscountFixed, Value: 5,
			ConditionMin: fptr(10), ConditionMax: fptr(2),
		},
		DefaultSpecificQtyThresholdRule: &domain.RuleConfig{
			IsEnabled: true, Name: "good", Type: domain.DiscountFixed, Value: 3,
			ApplyFixedOnce: true, ConditionMin: fptr(1),
		},
	}
	cart := cartOf(line("l1", "P1", 5, 100))

	result, err := New().Calculate(campaign, cart, evalTime)
	if err != nil {
		t.Fatalf("one bad rule must not block checkout: %v", err)
	}

	if result.LineItems[0].LineDiscount != 3 {
		t.Errorf("only the well-formed rule should fire, got %.2f", result.LineItems[0].LineDiscount)
	}
	if len(result.SkippedRules) != 2 {
		t.Errorf("expected 2 skipped rules flagged, got %d: %v", len(result.SkippedRules), result.SkippedRules)
	}
}

func TestCustomZeroRemovesOverride(t *testing.T) {
	item := line("l1", "P1", 2, 50)
	item.CustomDiscountValue = fptr(0)
	item.CustomDiscountType = domain.DiscountFixed

	result, err := New().Calculate(&domain.DiscountSet{Name: "x"}, cartOf(item), evalTime)
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}

	if result.LineItems[0].LineDiscount != 0 {
		t.Errorf("zero override must yield zero discount")
	}
	if len(result.LineItems[0].AppliedRules) != 0 {
		t.Error("zero override must produce no audit record")
	}
}

func TestCustomDiscountClampedToLineTotal(t *testing.T) {
	item := line("l1", "P1", 2, 10)
	item.CustomDiscountValue = fptr(1000)
	item.CustomDiscountType = domain.DiscountFixed
	// per-unit: 1000 x 2 = 2000, clamped to gross 20

	result, err := New().Calculate(nil, cartOf(item), evalTime)
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}

	if result.LineItems[0].LineDiscount != 20 {
		t.Errorf("expected clamp to 20, got %.2f", result.LineItems[0].LineDiscount)
	}
	if result.LineItems[0].NetPrice != 0 {
		t.Errorf("expected net 0, got %.2f", result.LineItems[0].NetPrice)
	}
}

func TestCustomPercentage(t *testing.T) {
	item := line("l1", "P1", 3, 40) // gross 120
	item.CustomDiscountValue = fptr(25)
	item.CustomDiscountType = domain.DiscountPercentage

	result, err := New().Calculate(nil, cartOf(item), evalTime)
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}

	if result.LineItems[0].LineDiscount != 30 {
		t.Errorf("expected 30, got %.2f", result.LineItems[0].LineDiscount)
	}
}

func TestMaxApplicationsCapsFirings(t *testing.T) {
	campaign := &domain.DiscountSet{
		Name:     "Capped",
		IsActive: true,
		DefaultLineItemValueRule: &domain.RuleConfig{
			IsEnabled: true, Name: "cap", Type: domain.DiscountPercentage, Value: 10,
			MaxApplications: iptr(1),
		},
	}
	cart := cartOf(
		line("l1", "P1", 1, 100),
		line("l2", "P2", 1, 100),
	)

	result, err := New().Calculate(campaign, cart, evalTime)
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}

	if len(result.LineItems[0].AppliedRules) != 1 {
		t.Error("first line should fire")
	}
	if len(result.LineItems[1].AppliedRules) != 0 {
		t.Error("second line must be capped by maxApplications")
	}
}

func TestRuleValidityWindow(t *testing.T) {
	expired := evalTime.Add(-time.Hour)
	campaign := &domain.DiscountSet{
		Name:     "Windowed",
		IsActive: true,
		DefaultLineItemValueRule: &domain.RuleConfig{
			IsEnabled: true, Name: "past", Type: domain.DiscountPercentage, Value: 10,
			ValidUntil: &expired,
		},
	}
	cart := cartOf(line("l1", "P1", 1, 100))

	result, err := New().Calculate(campaign, cart, evalTime)
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}

	if result.LineItems[0].LineDiscount != 0 {
		t.Error("rule outside its validity window must not fire")
	}
}

func TestSpecificUnitPriceThresholdGatesOnUnitPrice(t *testing.T) {
	campaign := &domain.DiscountSet{
		Name:     "Premium",
		IsActive: true,
		DefaultSpecificUnitPriceThresholdRule: &domain.RuleConfig{
			IsEnabled: true, Name: "premium items", Type: domain.DiscountPercentage, Value: 5,
			ConditionMin: fptr(500),
		},
	}
	cart := cartOf(
		line("l1", "P1", 10, 100), // line value 1000 but unit price below threshold
		line("l2", "P2", 1, 600),
	)

	result, err := New().Calculate(campaign, cart, evalTime)
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}

	if result.LineItems[0].LineDiscount != 0 {
		t.Error("unit-price rule must gate on unit price, not line value")
	}
	if result.LineItems[1].LineDiscount != 30 {
		t.Errorf("expected 30 on the premium line, got %.2f", result.LineItems[1].LineDiscount)
	}
}
