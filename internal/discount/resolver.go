package discount

import "github.com/walldriyan/mypos-sub001/internal/domain"

// ResolveSource selects the single rule source governing a line's
// item-level discount, following strict priority Custom > Product >
// Default. The deprecated Batch tier exists in the type model but is
// never selected. SourceNone is a valid, silent outcome: the line gets
// no item-level discount but still participates in buy-get and cart
// evaluation.
func ResolveSource(item domain.SaleItem, campaign *domain.DiscountSet) domain.SourceKind {
	if item.CustomDiscountValue != nil {
		return domain.SourceCustom
	}
	if campaign == nil {
		return domain.SourceNone
	}
	if campaign.ProductConfig(item.ProductID) != nil {
		return domain.SourceProduct
	}
	if campaign.HasDefaultLineRules() {
		return domain.SourceDefault
	}
	return domain.SourceNone
}
