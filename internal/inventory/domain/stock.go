package domain

import (
	"fmt"
	"strings"
)

// UnitRef identifies a sellable unit: a variant when VariantID is set,
// otherwise the product itself.
type UnitRef struct {
	ProductID string
	VariantID string
}

func (u UnitRef) IsVariant() bool { return u.VariantID != "" }

func (u UnitRef) String() string {
	if u.IsVariant() {
		return u.ProductID + "/" + u.VariantID
	}
	return u.ProductID
}

// LineQty is the quantity an order line holds against one unit.
type LineQty struct {
	Unit UnitRef
	Qty  int
}

// Shortage reports one unit that could not cover the requested quantity.
type Shortage struct {
	Unit      UnitRef
	Requested int
	Available int
}

// InsufficientStockError is returned by a single-unit adjustment that would
// drive on-hand below zero.
type InsufficientStockError struct {
	Unit      UnitRef
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.Unit, e.Requested, e.Available)
}

// ShortageError rejects a whole reservation, listing every short line so the
// caller can present actionable quantities. No adjustment was applied.
type ShortageError struct {
	OrderID   string
	Shortages []Shortage
}

func (e *ShortageError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("%s requested %d available %d", s.Unit, s.Requested, s.Available))
	}
	return fmt.Sprintf("reservation rejected for order %s: %s", e.OrderID, strings.Join(parts, "; "))
}
