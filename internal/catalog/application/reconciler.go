package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/HurmakR/herabuna-b2b/internal/catalog/domain"
)

// Reconciler pulls the external catalog into the local database. The pull
// direction owns names, retail prices, weights, attributes and active flags;
// wholesale prices and stock stay local. When the pulled external quantity
// drifted from the local one (a lost or parked push), a corrective stock
// push is queued so the external side converges again.
type Reconciler struct {
	log    *slog.Logger
	client CatalogClient
	repo   Repository
}

func NewReconciler(log *slog.Logger, client CatalogClient, repo Repository) *Reconciler {
	return &Reconciler{log: log, client: client, repo: repo}
}

// SyncOnce runs a full pull. Per-product failures are logged and skipped so
// one broken product does not abort the whole sync.
func (r *Reconciler) SyncOnce(ctx context.Context) error {
	start := time.Now()
	products, err := r.client.FetchProducts(ctx)
	if err != nil {
		return fmt.Errorf("fetch products: %w", err)
	}

	seen := make([]int64, 0, len(products))
	synced, failed := 0, 0
	for _, snap := range products {
		seen = append(seen, snap.WooID)
		if err := r.syncProduct(ctx, snap); err != nil {
			failed++
			r.log.Error("product sync failed", "sku", snap.SKU, "woo_id", snap.WooID, "error", err)
			continue
		}
		synced++
	}

	deactivated, err := r.repo.DeactivateMissingProducts(ctx, seen)
	if err != nil {
		return fmt.Errorf("deactivate missing products: %w", err)
	}

	r.log.Info("catalog sync finished",
		"synced", synced, "failed", failed, "deactivated", deactivated,
		"took", time.Since(start))
	return nil
}

// Run keeps syncing on a fixed interval until the context ends.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := r.SyncOnce(ctx); err != nil {
			r.log.Error("catalog sync failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Reconciler) syncProduct(ctx context.Context, snap domain.ProductSnapshot) error {
	productID, localQty, err := r.repo.UpsertProduct(ctx, snap)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}

	if !snap.HasVariants {
		if localQty != snap.StockQty {
			if err := r.pushDrift(ctx, domain.StockPush{WooID: snap.WooID, StockQty: localQty}, snap.StockQty); err != nil {
				return err
			}
		}
		return nil
	}

	variations, err := r.client.FetchVariations(ctx, snap.WooID)
	if err != nil {
		return fmt.Errorf("fetch variations: %w", err)
	}
	keep := make([]int64, 0, len(variations))
	for _, v := range variations {
		keep = append(keep, v.WooVariationID)
		_, localQty, err := r.repo.UpsertVariant(ctx, productID, v)
		if err != nil {
			return fmt.Errorf("upsert variant %s: %w", v.SKU, err)
		}
		if localQty != v.StockQty {
			push := domain.StockPush{WooID: snap.WooID, WooVariationID: v.WooVariationID, StockQty: localQty}
			if err := r.pushDrift(ctx, push, v.StockQty); err != nil {
				return err
			}
		}
	}
	if _, err := r.repo.DeactivateMissingVariants(ctx, productID, keep); err != nil {
		return fmt.Errorf("deactivate missing variants: %w", err)
	}
	if err := r.repo.RefreshAggregate(ctx, productID); err != nil {
		return fmt.Errorf("refresh aggregate: %w", err)
	}
	return nil
}

func (r *Reconciler) pushDrift(ctx context.Context, push domain.StockPush, externalQty int) error {
	if err := r.repo.EnqueueStockPush(ctx, push); err != nil {
		return fmt.Errorf("enqueue stock push: %w", err)
	}
	r.log.Info("stock drift detected",
		"woo_id", push.WooID, "variation_id", push.WooVariationID,
		"local", push.StockQty, "external", externalQty)
	return nil
}
