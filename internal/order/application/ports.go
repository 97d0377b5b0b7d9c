package application

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	catalogdom "github.com/HurmakR/herabuna-b2b/internal/catalog/domain"
	invdom "github.com/HurmakR/herabuna-b2b/internal/inventory/domain"
	"github.com/HurmakR/herabuna-b2b/internal/order/domain"
	shipdom "github.com/HurmakR/herabuna-b2b/internal/shipping/domain"
)

// ErrStatusConflict is returned by Transition when the compare-and-set on
// the stored status finds a different value: another actor won the race.
var ErrStatusConflict = errors.New("order status changed concurrently")

// StatusUpdate carries optional fields written together with a transition.
type StatusUpdate struct {
	Subtotal       *decimal.Decimal
	Total          *decimal.Decimal
	TrackingNumber *string
	ShippingDocRef *string
	ShippedAt      *time.Time
}

// OrderRepository persists orders and their lines. Line mutations and
// transitions are each a single transaction; Transition additionally
// appends the event outbox row atomically with the status change.
type OrderRepository interface {
	Get(ctx context.Context, orderID string) (domain.Order, error)
	GetDraft(ctx context.Context, dealerID string) (domain.Order, error)
	EnsureDraft(ctx context.Context, dealerID string) (domain.Order, error)
	ListByDealer(ctx context.Context, dealerID string) ([]domain.Order, error)
	ListByStatus(ctx context.Context, status domain.Status) ([]domain.Order, error)

	SaveLine(ctx context.Context, o domain.Order, line domain.Line) error
	DeleteLine(ctx context.Context, o domain.Order, lineID string) error
	SetDestination(ctx context.Context, orderID string, d domain.Destination) error
	Delete(ctx context.Context, orderID string) error

	Transition(ctx context.Context, orderID string, from, to domain.Status,
		eventType string, payload []byte, traceparent string, update StatusUpdate) error
}

// ReservationEngine is the inventory side consumed by lifecycle events.
type ReservationEngine interface {
	Reserve(ctx context.Context, orderID string, lines []invdom.LineQty) error
	Release(ctx context.Context, orderID string) error
	Available(ctx context.Context, unit invdom.UnitRef) (int, error)
}

// CatalogReader resolves products, their variants and attribute selections.
type CatalogReader interface {
	ProductWithVariants(ctx context.Context, productID string) (catalogdom.Product, error)
	MatchVariant(ctx context.Context, p catalogdom.Product, attrs map[string]string) (catalogdom.Variant, error)
}

// ShippingClient obtains tracking documents; its failure aborts the ship
// transition.
type ShippingClient interface {
	CreateDocument(ctx context.Context, req shipdom.DocumentRequest) (shipdom.Document, error)
	FetchLabel(ctx context.Context, docRef string) ([]byte, error)
}

// Locations resolves human-entered destinations into provider references.
type Locations interface {
	SearchCities(ctx context.Context, query string) ([]shipdom.Place, error)
	Warehouses(ctx context.Context, cityRef, query string) ([]shipdom.Place, error)
}

// StatusCache is a best-effort read-through cache for status polling;
// implementations swallow errors. The dealer id travels with the status so
// a cache hit can still be authorized.
type StatusCache interface {
	Set(ctx context.Context, orderID, dealerID string, status domain.Status)
	Get(ctx context.Context, orderID string) (dealerID string, status domain.Status, ok bool)
	Invalidate(ctx context.Context, orderID string)
}
