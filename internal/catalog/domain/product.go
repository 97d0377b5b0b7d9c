package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product mirrors a sellable product from the external catalog. The
// wholesale price is maintained locally and is never overwritten by a pull.
type Product struct {
	ID             string
	SKU            string
	Name           string
	WholesalePrice decimal.Decimal
	RetailPrice    decimal.Decimal
	StockQty       int
	IsActive       bool
	WooID          int64 // 0 when not linked to the external catalog
	WeightGrams    int
	Attributes     map[string]string
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Variants []Variant
}

func (p Product) HasVariants() bool {
	return len(p.Variants) > 0
}

// ActiveVariants filters the loaded variant set.
func (p Product) ActiveVariants() []Variant {
	out := make([]Variant, 0, len(p.Variants))
	for _, v := range p.Variants {
		if v.IsActive {
			out = append(out, v)
		}
	}
	return out
}

// NameWithWeight appends a human-readable weight suffix when known,
// e.g. "Carp Mix, 2.5 кг".
func (p Product) NameWithWeight() string {
	if p.WeightGrams == 0 {
		return p.Name
	}
	return p.Name + ", " + FormatWeightGrams(p.WeightGrams)
}

// FormatWeightGrams renders grams as a localized label, switching to
// kilograms from 1000 g up and trimming trailing zeros.
func FormatWeightGrams(grams int) string {
	if grams <= 0 {
		return ""
	}
	if grams >= 1000 {
		kg := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", float64(grams)/1000), "0"), ".")
		return kg + " кг"
	}
	return fmt.Sprintf("%d г", grams)
}
