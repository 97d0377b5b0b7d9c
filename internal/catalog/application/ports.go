package application

import (
	"context"

	"github.com/HurmakR/herabuna-b2b/internal/catalog/domain"
)

// CatalogClient talks to the external catalog (WooCommerce REST).
type CatalogClient interface {
	FetchProducts(ctx context.Context) ([]domain.ProductSnapshot, error)
	FetchVariations(ctx context.Context, wooID int64) ([]domain.VariantSnapshot, error)
	PushStock(ctx context.Context, wooID int64, qty int) error
	PushVariationStock(ctx context.Context, wooID, variationID int64, qty int) error
}

// Repository persists the local catalog. Upserts match by SKU and never
// touch the wholesale price or the local stock counters of existing rows;
// the local side owns both. The authoritative local quantity comes back so
// the caller can detect drift against the pulled snapshot.
type Repository interface {
	UpsertProduct(ctx context.Context, snap domain.ProductSnapshot) (productID string, localQty int, err error)
	UpsertVariant(ctx context.Context, productID string, snap domain.VariantSnapshot) (variantID string, localQty int, err error)
	DeactivateMissingVariants(ctx context.Context, productID string, keep []int64) (int, error)
	DeactivateMissingProducts(ctx context.Context, seen []int64) (int, error)
	RefreshAggregate(ctx context.Context, productID string) error
	EnqueueStockPush(ctx context.Context, push domain.StockPush) error

	ProductWithVariants(ctx context.Context, productID string) (domain.Product, error)
}
