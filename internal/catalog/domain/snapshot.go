package domain

import "github.com/shopspring/decimal"

// ProductSnapshot is a product as the external catalog reports it.
type ProductSnapshot struct {
	WooID       int64
	SKU         string
	Name        string
	RetailPrice decimal.Decimal
	StockQty    int
	Active      bool
	WeightGrams int
	Attributes  map[string]string
	HasVariants bool
}

// VariantSnapshot is one variation of a variable product.
type VariantSnapshot struct {
	WooVariationID int64
	SKU            string
	Attributes     map[string]string
	RetailPrice    decimal.Decimal
	StockQty       int
	Active         bool
	WeightGrams    int
}
