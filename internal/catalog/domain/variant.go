package domain

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoMatchingVariant is returned when a selected attribute combination
// resolves to no active variant of the product.
var ErrNoMatchingVariant = errors.New("no variant matches the selected attributes")

// Variant is a concrete purchasable option of a product
// (e.g. Length/Line/Connector for a rod).
type Variant struct {
	ID             string
	ProductID      string
	WooVariationID int64
	SKU            string
	Attributes     map[string]string
	RetailPrice    decimal.Decimal
	WholesalePrice decimal.Decimal
	StockQty       int
	IsActive       bool
	WeightGrams    int
	UpdatedAt      time.Time
}

// EffectiveWeightGrams falls back to the parent product's weight when the
// variant carries none.
func (v Variant) EffectiveWeightGrams(parentWeight int) int {
	if v.WeightGrams > 0 {
		return v.WeightGrams
	}
	return parentWeight
}

// VariantIndex resolves attribute selections to variants via a precomputed
// canonical key per variant, instead of ad hoc map comparison per request.
type VariantIndex struct {
	byKey map[string]Variant
}

// BuildVariantIndex indexes the given variants; retired options are kept
// out by handing it Product.ActiveVariants.
func BuildVariantIndex(variants []Variant) *VariantIndex {
	ix := &VariantIndex{byKey: make(map[string]Variant, len(variants))}
	for _, v := range variants {
		ix.byKey[AttrKey(v.Attributes)] = v
	}
	return ix
}

// Match returns the variant whose attribute set equals the selection.
func (ix *VariantIndex) Match(selected map[string]string) (Variant, error) {
	v, ok := ix.byKey[AttrKey(selected)]
	if !ok {
		return Variant{}, ErrNoMatchingVariant
	}
	return v, nil
}

func (ix *VariantIndex) Len() int { return len(ix.byKey) }

// AttrKey builds an order-independent canonical form of an attribute set.
func AttrKey(attrs map[string]string) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strings.TrimSpace(k))
		b.WriteByte('=')
		b.WriteString(strings.TrimSpace(attrs[k]))
	}
	return b.String()
}
