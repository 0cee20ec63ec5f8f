// Package domain defines the core interfaces and types for the POS
// discount engine.
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCart is returned when a cart fails input validation.
	ErrInvalidCart = errors.New("invalid cart")
)

// DiscountType is the monetary form a discount takes.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// SaleItem is one immutable cart line. Quantity is already converted
// to the product's base unit and may be fractional (e.g. weight).
type SaleItem struct {
	LineID    string  `json:"lineId"`
	ProductID string  `json:"productId"`
	BatchID   string  `json:"batchId"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`

	// Cashier-entered override. A non-nil value fully replaces any
	// product or campaign-default evaluation for this line; a value of
	// exactly zero is the idiom for "remove override".
	CustomDiscountValue  *float64     `json:"customDiscountValue,omitempty"`
	CustomDiscountType   DiscountType `json:"customDiscountType,omitempty"`
	CustomApplyFixedOnce bool         `json:"customApplyFixedOnce,omitempty"`
}

// LineTotal returns the gross value of the line before any discount.
func (s SaleItem) LineTotal() float64 {
	return s.UnitPrice * s.Quantity
}

// Cart is the snapshot of line items submitted for discounting.
type Cart struct {
	Items []SaleItem `json:"items"`
}

// Validate checks the cart against the engine's input contract.
// Validation fails fast: no partial evaluation ever happens for an
// invalid cart.
func (c *Cart) Validate() error {
	if c == nil || len(c.Items) == 0 {
		return fmt.Errorf("%w: cart has no items", ErrInvalidCart)
	}
	seen := make(map[string]bool, len(c.Items))
	for i, item := range c.Items {
		if item.LineID == "" {
			return fmt.Errorf("%w: item %d has no lineId", ErrInvalidCart, i)
		}
		if seen[item.LineID] {
			return fmt.Errorf("%w: duplicate lineId %q", ErrInvalidCart, item.LineID)
		}
		seen[item.LineID] = true
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: line %s has non-positive quantity", ErrInvalidCart, item.LineID)
		}
		if item.UnitPrice < 0 {
			return fmt.Errorf("%w: line %s has negative unit price", ErrInvalidCart, item.LineID)
		}
		if item.CustomDiscountValue != nil {
			switch item.CustomDiscountType {
			case DiscountPercentage, DiscountFixed:
			default:
				return fmt.Errorf("%w: line %s has custom discount without a type", ErrInvalidCart, item.LineID)
			}
			if *item.CustomDiscountValue < 0 {
				return fmt.Errorf("%w: line %s has negative custom discount", ErrInvalidCart, item.LineID)
			}
		}
	}
	return nil
}

// TotalQuantity returns the summed quantity across all lines.
func (c *Cart) TotalQuantity() float64 {
	var total float64
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// QuantityOf returns the summed quantity of a product across lines.
func (c *Cart) QuantityOf(productID string) float64 {
	var total float64
	for _, item := range c.Items {
		if item.ProductID == productID {
			total += item.Quantity
		}
	}
	return total
}
