package application

import (
	"context"

	"github.com/HurmakR/herabuna-b2b/internal/inventory/domain"
)

// StockRepository is the inventory store. Implementations must perform each
// call as a single atomic unit: ReserveAll either applies every decrement or
// none, and ReleaseAll credits each reserved line back exactly once.
type StockRepository interface {
	Available(ctx context.Context, unit domain.UnitRef) (int, error)

	// Adjust applies a delta to one unit; negative deltas failing the
	// non-negativity check return *domain.InsufficientStockError.
	Adjust(ctx context.Context, unit domain.UnitRef, delta int) error

	// ReserveAll validates every line against a consistent snapshot and
	// applies all decrements only when all pass, recording ledger rows.
	// Lines already reserved for the order are skipped, making the call
	// idempotent per (order, unit). Returned shortages mean nothing was
	// applied.
	ReserveAll(ctx context.Context, orderID string, lines []domain.LineQty) ([]domain.Shortage, error)

	// ReleaseAll restocks every line still reserved for the order and
	// flips its ledger row, so a second call finds nothing to credit.
	ReleaseAll(ctx context.Context, orderID string) (int, error)
}
