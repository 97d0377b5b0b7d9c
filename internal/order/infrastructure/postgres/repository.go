package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HurmakR/herabuna-b2b/internal/order/application"
	"github.com/HurmakR/herabuna-b2b/internal/order/domain"
	storagepg "github.com/HurmakR/herabuna-b2b/internal/storage/postgres"
	"github.com/HurmakR/herabuna-b2b/pkg/outbox"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

const orderColumns = `id, dealer_id, status, subtotal, total, note,
	city_ref, city_name, warehouse_ref, warehouse_name,
	shipping_provider, tracking_number, shipping_doc_ref, shipped_at,
	created_at, updated_at`

func (r *Repository) Get(ctx context.Context, orderID string) (domain.Order, error) {
	o, err := r.scanOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if err := r.loadLines(ctx, &o); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) GetDraft(ctx context.Context, dealerID string) (domain.Order, error) {
	o, err := r.scanOrder(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE dealer_id=$1 AND status='draft'`, dealerID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return domain.Order{}, domain.ErrNoDraft
	}
	if err != nil {
		return domain.Order{}, err
	}
	if err := r.loadLines(ctx, &o); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) EnsureDraft(ctx context.Context, dealerID string) (domain.Order, error) {
	o, err := r.GetDraft(ctx, dealerID)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, domain.ErrNoDraft) {
		return domain.Order{}, err
	}

	draft := domain.NewDraft(dealerID)
	// The partial unique index keeps this race-safe: a concurrent insert
	// wins and we fall back to reading it.
	_, err = r.pool.Exec(ctx, `
		INSERT INTO orders (id, dealer_id, status, subtotal, total, shipping_provider, created_at, updated_at)
		VALUES ($1,$2,'draft',0,0,$3,$4,$4)
		ON CONFLICT DO NOTHING`,
		draft.ID, dealerID, draft.ShippingProvider, draft.CreatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	return r.GetDraft(ctx, dealerID)
}

func (r *Repository) ListByDealer(ctx context.Context, dealerID string) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE dealer_id=$1 AND status <> 'draft' ORDER BY created_at DESC`, dealerID)
}

func (r *Repository) ListByStatus(ctx context.Context, status domain.Status) ([]domain.Order, error) {
	if status == "" {
		return r.list(ctx, `SELECT `+orderColumns+` FROM orders
			WHERE status <> 'draft' ORDER BY created_at DESC`)
	}
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE status=$1 ORDER BY created_at DESC`, status)
}

func (r *Repository) SaveLine(ctx context.Context, o domain.Order, line domain.Line) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	attrs := line.Attrs
	if attrs == nil {
		attrs = map[string]string{}
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO order_lines (id, order_id, product_id, variant_id, qty, price, attrs)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (order_id, product_id, variant_id)
		DO UPDATE SET qty=$5, price=$6`,
		line.ID, o.ID, line.ProductID, line.VariantID, line.Qty, line.Price, attrs)
	if err != nil {
		return err
	}
	if err := updateTotals(ctx, tx, o); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) DeleteLine(ctx context.Context, o domain.Order, lineID string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM order_lines WHERE id=$1 AND order_id=$2`, lineID, o.ID); err != nil {
		return err
	}
	if err := updateTotals(ctx, tx, o); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) SetDestination(ctx context.Context, orderID string, d domain.Destination) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE orders SET city_ref=$2, city_name=$3, warehouse_ref=$4, warehouse_name=$5, updated_at=now()
		WHERE id=$1`, orderID, d.CityRef, d.CityName, d.WarehouseRef, d.WarehouseName)
	return err
}

func (r *Repository) Delete(ctx context.Context, orderID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id=$1`, orderID)
	return err
}

// Transition compare-and-sets the status and appends the lifecycle event to
// the outbox in the same transaction, so a committed transition always has
// its event and a lost race leaves neither.
func (r *Repository) Transition(ctx context.Context, orderID string, from, to domain.Status,
	eventType string, payload []byte, traceparent string, update application.StatusUpdate) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE orders SET status=$3,
			subtotal = COALESCE($4, subtotal),
			total = COALESCE($5, total),
			tracking_number = COALESCE($6, tracking_number),
			shipping_doc_ref = COALESCE($7, shipping_doc_ref),
			shipped_at = COALESCE($8, shipped_at),
			updated_at = now()
		WHERE id=$1 AND status=$2`,
		orderID, from, to,
		update.Subtotal, update.Total,
		update.TrackingNumber, update.ShippingDocRef, update.ShippedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return application.ErrStatusConflict
	}

	err = storagepg.InsertTask(ctx, tx, outbox.KindEvent, "order", orderID, eventType, payload, nil, traceparent)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func updateTotals(ctx context.Context, tx pgx.Tx, o domain.Order) error {
	ct, err := tx.Exec(ctx, `
		UPDATE orders SET subtotal=$2, total=$3, updated_at=now()
		WHERE id=$1 AND status='draft'`, o.ID, o.Subtotal, o.Total)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return application.ErrStatusConflict
	}
	return nil
}

func (r *Repository) scanOrder(ctx context.Context, sql string, args ...any) (domain.Order, error) {
	var o domain.Order
	err := r.pool.QueryRow(ctx, sql, args...).Scan(
		&o.ID, &o.DealerID, &o.Status, &o.Subtotal, &o.Total, &o.Note,
		&o.Destination.CityRef, &o.Destination.CityName,
		&o.Destination.WarehouseRef, &o.Destination.WarehouseName,
		&o.ShippingProvider, &o.TrackingNumber, &o.ShippingDocRef, &o.ShippedAt,
		&o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) loadLines(ctx context.Context, o *domain.Order) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, variant_id, qty, price, attrs
		FROM order_lines WHERE order_id=$1 ORDER BY id`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		l := domain.Line{OrderID: o.ID}
		if err := rows.Scan(&l.ID, &l.ProductID, &l.VariantID, &l.Qty, &l.Price, &l.Attrs); err != nil {
			return err
		}
		o.Lines = append(o.Lines, l)
	}
	return rows.Err()
}

func (r *Repository) list(ctx context.Context, sql string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(
			&o.ID, &o.DealerID, &o.Status, &o.Subtotal, &o.Total, &o.Note,
			&o.Destination.CityRef, &o.Destination.CityName,
			&o.Destination.WarehouseRef, &o.Destination.WarehouseName,
			&o.ShippingProvider, &o.TrackingNumber, &o.ShippingDocRef, &o.ShippedAt,
			&o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
