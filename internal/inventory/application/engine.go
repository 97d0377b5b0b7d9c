package application

import (
	"context"
	"log/slog"

	"github.com/HurmakR/herabuna-b2b/internal/inventory/domain"
)

// Engine is the reservation engine: it turns order line sets into
// all-or-nothing stock movements against the inventory store.
type Engine struct {
	log  *slog.Logger
	repo StockRepository
}

func NewEngine(log *slog.Logger, repo StockRepository) *Engine {
	return &Engine{log: log, repo: repo}
}

// Reserve subtracts every line quantity from its unit, or nothing at all.
// A shortage on any line rejects the whole set with *domain.ShortageError
// listing every short line.
func (e *Engine) Reserve(ctx context.Context, orderID string, lines []domain.LineQty) error {
	shortages, err := e.repo.ReserveAll(ctx, orderID, lines)
	if err != nil {
		return err
	}
	if len(shortages) > 0 {
		e.log.Info("reservation rejected", "order_id", orderID, "short_lines", len(shortages))
		return &domain.ShortageError{OrderID: orderID, Shortages: shortages}
	}
	e.log.Info("stock reserved", "order_id", orderID, "lines", len(lines))
	return nil
}

// Release credits back whatever is still reserved for the order. Safe to
// call again: the ledger guarantees each line is credited once.
func (e *Engine) Release(ctx context.Context, orderID string) error {
	n, err := e.repo.ReleaseAll(ctx, orderID)
	if err != nil {
		return err
	}
	e.log.Info("stock released", "order_id", orderID, "lines", n)
	return nil
}

// Available reads the on-hand quantity of one unit.
func (e *Engine) Available(ctx context.Context, unit domain.UnitRef) (int, error) {
	return e.repo.Available(ctx, unit)
}

// Adjust applies a manual stock correction (staff restock or write-off).
func (e *Engine) Adjust(ctx context.Context, unit domain.UnitRef, delta int) error {
	if err := e.repo.Adjust(ctx, unit, delta); err != nil {
		return err
	}
	e.log.Info("stock adjusted", "unit", unit.String(), "delta", delta)
	return nil
}
