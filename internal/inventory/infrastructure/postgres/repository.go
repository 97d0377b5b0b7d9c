package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	catalogdom "github.com/HurmakR/herabuna-b2b/internal/catalog/domain"
	"github.com/HurmakR/herabuna-b2b/internal/inventory/domain"
	storagepg "github.com/HurmakR/herabuna-b2b/internal/storage/postgres"
	"github.com/HurmakR/herabuna-b2b/pkg/outbox"
)

// Repository is the postgres inventory store. Stock rows are locked with
// FOR UPDATE in a stable order, so concurrent reservations against the same
// units serialize instead of deadlocking.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Available(ctx context.Context, unit domain.UnitRef) (int, error) {
	var qty int
	var err error
	if unit.IsVariant() {
		err = r.pool.QueryRow(ctx, `SELECT stock_qty FROM variants WHERE id=$1`, unit.VariantID).Scan(&qty)
	} else {
		err = r.pool.QueryRow(ctx, `SELECT stock_qty FROM products WHERE id=$1`, unit.ProductID).Scan(&qty)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return qty, err
}

func (r *Repository) Adjust(ctx context.Context, unit domain.UnitRef, delta int) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	have, err := lockStock(ctx, tx, unit)
	if err != nil {
		return err
	}
	if have+delta < 0 {
		return &domain.InsufficientStockError{Unit: unit, Requested: -delta, Available: have}
	}
	newQty, err := applyDelta(ctx, tx, unit, delta)
	if err != nil {
		return err
	}
	if unit.IsVariant() {
		if err := refreshAggregates(ctx, tx, []string{unit.ProductID}); err != nil {
			return err
		}
	}
	if err := enqueueStockPush(ctx, tx, unit, newQty); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) ReserveAll(ctx context.Context, orderID string, lines []domain.LineQty) ([]domain.Shortage, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Stable lock order across competing reservations.
	sorted := make([]domain.LineQty, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i].Unit, sorted[j].Unit
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		return a.VariantID < b.VariantID
	})

	var shortages []domain.Shortage
	parents := map[string]bool{}

	for _, l := range sorted {
		// Ledger first: a RESERVED row means this line is already held for
		// the order, so skip it (idempotent re-entry). A RELEASED row is
		// re-armed and the unit decremented again, matching a reserve that
		// follows a cancel of the same order.
		ct, err := tx.Exec(ctx, `
			INSERT INTO reservations (order_id, product_id, variant_id, qty, status)
			VALUES ($1,$2,$3,$4,'RESERVED')
			ON CONFLICT (order_id, product_id, variant_id) DO UPDATE
				SET qty = EXCLUDED.qty, status = 'RESERVED'
				WHERE reservations.status = 'RELEASED'`,
			orderID, l.Unit.ProductID, l.Unit.VariantID, l.Qty)
		if err != nil {
			return nil, err
		}
		if ct.RowsAffected() == 0 {
			continue
		}

		have, err := lockStock(ctx, tx, l.Unit)
		if err != nil {
			return nil, err
		}
		if have < l.Qty {
			shortages = append(shortages, domain.Shortage{Unit: l.Unit, Requested: l.Qty, Available: have})
			continue
		}

		newQty, err := applyDelta(ctx, tx, l.Unit, -l.Qty)
		if err != nil {
			return nil, err
		}
		if l.Unit.IsVariant() {
			parents[l.Unit.ProductID] = true
		}
		if err := enqueueStockPush(ctx, tx, l.Unit, newQty); err != nil {
			return nil, err
		}
	}

	if len(shortages) > 0 {
		// Rollback via defer: no decrement and no ledger row survives.
		return shortages, nil
	}
	if err := refreshAggregates(ctx, tx, keys(parents)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return nil, nil
}

func (r *Repository) ReleaseAll(ctx context.Context, orderID string) (int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		UPDATE reservations SET status='RELEASED'
		WHERE order_id=$1 AND status='RESERVED'
		RETURNING product_id, variant_id, qty`, orderID)
	if err != nil {
		return 0, err
	}
	var held []domain.LineQty
	for rows.Next() {
		var l domain.LineQty
		if err := rows.Scan(&l.Unit.ProductID, &l.Unit.VariantID, &l.Qty); err != nil {
			rows.Close()
			return 0, err
		}
		held = append(held, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(held) == 0 {
		return 0, tx.Commit(ctx)
	}

	parents := map[string]bool{}
	for _, l := range held {
		newQty, err := applyDelta(ctx, tx, l.Unit, l.Qty)
		if err != nil {
			return 0, err
		}
		if l.Unit.IsVariant() {
			parents[l.Unit.ProductID] = true
		}
		if err := enqueueStockPush(ctx, tx, l.Unit, newQty); err != nil {
			return 0, err
		}
	}
	if err := refreshAggregates(ctx, tx, keys(parents)); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(held), nil
}

func lockStock(ctx context.Context, tx pgx.Tx, unit domain.UnitRef) (int, error) {
	var qty int
	var err error
	if unit.IsVariant() {
		err = tx.QueryRow(ctx, `SELECT stock_qty FROM variants WHERE id=$1 FOR UPDATE`, unit.VariantID).Scan(&qty)
	} else {
		err = tx.QueryRow(ctx, `SELECT stock_qty FROM products WHERE id=$1 FOR UPDATE`, unit.ProductID).Scan(&qty)
	}
	return qty, err
}

func applyDelta(ctx context.Context, tx pgx.Tx, unit domain.UnitRef, delta int) (int, error) {
	var newQty int
	var err error
	if unit.IsVariant() {
		err = tx.QueryRow(ctx, `
			UPDATE variants SET stock_qty = stock_qty + $2, updated_at = now()
			WHERE id=$1 RETURNING stock_qty`, unit.VariantID, delta).Scan(&newQty)
	} else {
		err = tx.QueryRow(ctx, `
			UPDATE products SET stock_qty = stock_qty + $2, updated_at = now()
			WHERE id=$1 RETURNING stock_qty`, unit.ProductID, delta).Scan(&newQty)
	}
	return newQty, err
}

// refreshAggregates recomputes the cached parent sum after variant changes.
// Authoritative checks always lock the variant row, never this sum.
func refreshAggregates(ctx context.Context, tx pgx.Tx, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE products p
		SET stock_qty = COALESCE((
			SELECT SUM(v.stock_qty) FROM variants v
			WHERE v.product_id = p.id AND v.is_active
		), 0), updated_at = now()
		WHERE p.id = ANY($1)`, productIDs)
	return err
}

// enqueueStockPush records the new absolute quantity for the catalog push
// relay. Units without an external id are skipped.
func enqueueStockPush(ctx context.Context, tx pgx.Tx, unit domain.UnitRef, newQty int) error {
	var wooID, variationID *int64
	var err error
	if unit.IsVariant() {
		err = tx.QueryRow(ctx, `
			SELECT p.woo_id, v.woo_variation_id FROM variants v
			JOIN products p ON p.id = v.product_id
			WHERE v.id=$1`, unit.VariantID).Scan(&wooID, &variationID)
	} else {
		err = tx.QueryRow(ctx, `SELECT woo_id FROM products WHERE id=$1`, unit.ProductID).Scan(&wooID)
	}
	if err != nil {
		return err
	}
	if wooID == nil || *wooID == 0 {
		return nil
	}

	push := catalogdom.StockPush{WooID: *wooID, StockQty: newQty}
	if variationID != nil {
		push.WooVariationID = *variationID
	}
	payload, err := json.Marshal(push)
	if err != nil {
		return err
	}
	return storagepg.InsertTask(ctx, tx, outbox.KindStockPush,
		"inventory", unit.String(), catalogdom.StockPushTypeName, payload, nil, "")
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
