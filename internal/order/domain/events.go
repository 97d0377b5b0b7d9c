package domain

import "github.com/shopspring/decimal"

// Event types carried through the outbox to the notification pipeline.
const (
	EventTypeOrderSubmitted = "OrderSubmitted"
	EventTypeOrderConfirmed = "OrderConfirmed"
	EventTypeOrderCancelled = "OrderCancelled"
	EventTypeOrderShipped   = "OrderShipped"
)

type EventLine struct {
	ProductID string            `json:"product_id"`
	VariantID string            `json:"variant_id,omitempty"`
	Label     string            `json:"label,omitempty"`
	Qty       int               `json:"qty"`
	Price     decimal.Decimal   `json:"price"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

type OrderSubmittedEvent struct {
	OrderID  string          `json:"order_id"`
	DealerID string          `json:"dealer_id"`
	Total    decimal.Decimal `json:"total"`
	Lines    []EventLine     `json:"lines"`
}

type OrderConfirmedEvent struct {
	OrderID  string          `json:"order_id"`
	DealerID string          `json:"dealer_id"`
	Total    decimal.Decimal `json:"total"`
}

type OrderCancelledEvent struct {
	OrderID  string `json:"order_id"`
	DealerID string `json:"dealer_id"`
}

type OrderShippedEvent struct {
	OrderID        string `json:"order_id"`
	DealerID       string `json:"dealer_id"`
	TrackingNumber string `json:"tracking_number"`
}

// EventLines projects the order's lines into event payload form.
func (o *Order) EventLines() []EventLine {
	out := make([]EventLine, 0, len(o.Lines))
	for _, l := range o.Lines {
		out = append(out, EventLine{
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			Qty:       l.Qty,
			Price:     l.Price,
			Attrs:     l.Attrs,
		})
	}
	return out
}
