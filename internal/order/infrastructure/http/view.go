package http

import (
	"time"

	"github.com/HurmakR/herabuna-b2b/internal/order/domain"
)

type orderJSON struct {
	ID       string     `json:"id"`
	DealerID string     `json:"dealer_id"`
	Status   string     `json:"status"`
	Subtotal string     `json:"subtotal"`
	Total    string     `json:"total"`
	Note     string     `json:"note,omitempty"`
	Lines    []lineJSON `json:"lines"`

	Destination      *domain.Destination `json:"destination,omitempty"`
	ShippingProvider string              `json:"shipping_provider"`
	TrackingNumber   string              `json:"tracking_number,omitempty"`
	ShippedAt        *time.Time          `json:"shipped_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type lineJSON struct {
	ID        string            `json:"id"`
	ProductID string            `json:"product_id"`
	VariantID string            `json:"variant_id,omitempty"`
	Qty       int               `json:"qty"`
	Price     string            `json:"price"`
	Total     string            `json:"total"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

func orderView(o domain.Order) orderJSON {
	v := orderJSON{
		ID:               o.ID,
		DealerID:         o.DealerID,
		Status:           string(o.Status),
		Subtotal:         o.Subtotal.StringFixed(2),
		Total:            o.Total.StringFixed(2),
		Note:             o.Note,
		Lines:            make([]lineJSON, 0, len(o.Lines)),
		ShippingProvider: o.ShippingProvider,
		TrackingNumber:   o.TrackingNumber,
		ShippedAt:        o.ShippedAt,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	if !o.Destination.IsZero() {
		d := o.Destination
		v.Destination = &d
	}
	for _, l := range o.Lines {
		v.Lines = append(v.Lines, lineJSON{
			ID:        l.ID,
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			Qty:       l.Qty,
			Price:     l.Price.StringFixed(2),
			Total:     l.Total().StringFixed(2),
			Attrs:     l.Attrs,
		})
	}
	return v
}
