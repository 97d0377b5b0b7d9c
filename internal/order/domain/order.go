package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	invdom "github.com/HurmakR/herabuna-b2b/internal/inventory/domain"
)

// Order is a dealer order. A draft doubles as the dealer's cart; there is at
// most one draft per dealer at any time.
type Order struct {
	ID          string
	DealerID    string
	Status      Status
	Subtotal    decimal.Decimal
	Total       decimal.Decimal
	Note        string
	Destination Destination

	ShippingProvider string
	TrackingNumber   string
	ShippingDocRef   string
	ShippedAt        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	Lines []Line
}

// Destination is the resolved shipping target (city + warehouse references
// from the location-resolution service).
type Destination struct {
	CityRef       string `json:"city_ref"`
	CityName      string `json:"city_name"`
	WarehouseRef  string `json:"warehouse_ref"`
	WarehouseName string `json:"warehouse_name"`
}

func (d Destination) IsZero() bool { return d.CityRef == "" && d.WarehouseRef == "" }

// Line is one (order, unit) entry. Price is snapshotted at add time and
// never changes afterwards.
type Line struct {
	ID        string
	OrderID   string
	ProductID string
	VariantID string // empty for simple products
	Qty       int
	Price     decimal.Decimal
	Attrs     map[string]string // selected variant attributes at add time
}

func (l Line) Unit() invdom.UnitRef {
	return invdom.UnitRef{ProductID: l.ProductID, VariantID: l.VariantID}
}

func (l Line) Total() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Qty)))
}

// NewDraft creates the dealer's cart order.
func NewDraft(dealerID string) Order {
	now := time.Now().UTC()
	return Order{
		ID:               uuid.NewString(),
		DealerID:         dealerID,
		Status:           StatusDraft,
		Subtotal:         decimal.Zero,
		Total:            decimal.Zero,
		ShippingProvider: "Nova Poshta",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Recalc recomputes the derived totals from the line set. Called after
// every line mutation and on submit.
func (o *Order) Recalc() {
	sum := decimal.Zero
	for _, l := range o.Lines {
		sum = sum.Add(l.Total())
	}
	o.Subtotal = sum
	o.Total = sum
}

// LineFor finds the line holding the given unit, if any.
func (o *Order) LineFor(productID, variantID string) *Line {
	for i := range o.Lines {
		if o.Lines[i].ProductID == productID && o.Lines[i].VariantID == variantID {
			return &o.Lines[i]
		}
	}
	return nil
}

// FindLine looks a line up by id.
func (o *Order) FindLine(lineID string) *Line {
	for i := range o.Lines {
		if o.Lines[i].ID == lineID {
			return &o.Lines[i]
		}
	}
	return nil
}

// LineQtys projects the line set into reservation quantities.
func (o *Order) LineQtys() []invdom.LineQty {
	out := make([]invdom.LineQty, 0, len(o.Lines))
	for _, l := range o.Lines {
		out = append(out, invdom.LineQty{Unit: l.Unit(), Qty: l.Qty})
	}
	return out
}
