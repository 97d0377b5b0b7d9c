package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HurmakR/herabuna-b2b/internal/catalog/domain"
	storagepg "github.com/HurmakR/herabuna-b2b/internal/storage/postgres"
	"github.com/HurmakR/herabuna-b2b/pkg/outbox"
)

var ErrProductNotFound = errors.New("product not found")

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// UpsertProduct matches by SKU. Wholesale price and stock belong to the
// local side, so the update never touches them; they are only seeded on
// first insert. The stored stock quantity comes back for drift detection.
func (r *Repository) UpsertProduct(ctx context.Context, snap domain.ProductSnapshot) (string, int, error) {
	attrs := snap.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	var id string
	var localQty int
	err := r.pool.QueryRow(ctx, `
		INSERT INTO products (id, sku, name, retail_price, stock_qty, is_active, woo_id, weight_g, attributes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (sku) DO UPDATE SET
			name = $3,
			retail_price = $4,
			is_active = $6,
			woo_id = $7,
			weight_g = $8,
			attributes = $9,
			updated_at = now()
		RETURNING id, stock_qty`,
		uuid.NewString(), snap.SKU, snap.Name, snap.RetailPrice,
		snap.StockQty, snap.Active, snap.WooID, snap.WeightGrams, attrs).Scan(&id, &localQty)
	return id, localQty, err
}

// UpsertVariant matches by the catalog's variation id.
func (r *Repository) UpsertVariant(ctx context.Context, productID string, snap domain.VariantSnapshot) (string, int, error) {
	attrs := snap.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	var id string
	var localQty int
	err := r.pool.QueryRow(ctx, `
		INSERT INTO variants (id, product_id, woo_variation_id, sku, attributes, retail_price, stock_qty, is_active, weight_g)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (woo_variation_id) DO UPDATE SET
			product_id = $2,
			sku = $4,
			attributes = $5,
			retail_price = $6,
			is_active = $8,
			weight_g = $9,
			updated_at = now()
		RETURNING id, stock_qty`,
		uuid.NewString(), productID, snap.WooVariationID, snap.SKU, attrs,
		snap.RetailPrice, snap.StockQty, snap.Active, snap.WeightGrams).Scan(&id, &localQty)
	return id, localQty, err
}

// EnqueueStockPush queues an outbound correction when a pull finds the
// external quantity drifted from the local one.
func (r *Repository) EnqueueStockPush(ctx context.Context, push domain.StockPush) error {
	payload, err := json.Marshal(push)
	if err != nil {
		return err
	}
	aggregateID := fmt.Sprintf("woo:%d", push.WooID)
	if push.WooVariationID != 0 {
		aggregateID = fmt.Sprintf("woo:%d/%d", push.WooID, push.WooVariationID)
	}
	return storagepg.InsertTask(ctx, r.pool, outbox.KindStockPush,
		"catalog", aggregateID, domain.StockPushTypeName, payload, nil, "")
}

// DeactivateMissingVariants marks variants the catalog no longer reports.
func (r *Repository) DeactivateMissingVariants(ctx context.Context, productID string, keep []int64) (int, error) {
	if keep == nil {
		keep = []int64{}
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE variants SET is_active = FALSE, updated_at = now()
		WHERE product_id = $1 AND is_active AND NOT (woo_variation_id = ANY($2))`,
		productID, keep)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

// DeactivateMissingProducts marks linked products absent from the feed.
// Unlinked products (woo_id IS NULL) are local-only and never touched.
func (r *Repository) DeactivateMissingProducts(ctx context.Context, seen []int64) (int, error) {
	if seen == nil {
		seen = []int64{}
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE products SET is_active = FALSE, updated_at = now()
		WHERE woo_id IS NOT NULL AND is_active AND NOT (woo_id = ANY($1))`, seen)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

// RefreshAggregate recomputes a variable product's stock from its active
// variants.
func (r *Repository) RefreshAggregate(ctx context.Context, productID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE products SET stock_qty = (
			SELECT COALESCE(SUM(stock_qty), 0) FROM variants
			WHERE product_id = $1 AND is_active
		), updated_at = now()
		WHERE id = $1 AND EXISTS (SELECT 1 FROM variants WHERE product_id = $1)`, productID)
	return err
}

func (r *Repository) ProductWithVariants(ctx context.Context, productID string) (domain.Product, error) {
	var p domain.Product
	err := r.pool.QueryRow(ctx, `
		SELECT id, sku, name, wholesale_price, retail_price, stock_qty, is_active,
			COALESCE(woo_id, 0), weight_g, attributes, created_at, updated_at
		FROM products WHERE id = $1`, productID).Scan(
		&p.ID, &p.SKU, &p.Name, &p.WholesalePrice, &p.RetailPrice, &p.StockQty,
		&p.IsActive, &p.WooID, &p.WeightGrams, &p.Attributes, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, COALESCE(woo_variation_id, 0), sku, attributes,
			retail_price, wholesale_price, stock_qty, is_active, weight_g, updated_at
		FROM variants WHERE product_id = $1 ORDER BY id`, productID)
	if err != nil {
		return domain.Product{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.WooVariationID, &v.SKU, &v.Attributes,
			&v.RetailPrice, &v.WholesalePrice, &v.StockQty, &v.IsActive, &v.WeightGrams, &v.UpdatedAt); err != nil {
			return domain.Product{}, err
		}
		p.Variants = append(p.Variants, v)
	}
	if err := rows.Err(); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}
