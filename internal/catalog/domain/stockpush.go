package domain

// StockPushTypeName tags outbox tasks carrying outbound stock figures.
const StockPushTypeName = "StockPush"

// StockPush is the payload of one outbound stock update: the absolute
// on-hand quantity of a unit after a local reservation or release. Pushing
// an absolute quantity makes retries idempotent on the external side.
type StockPush struct {
	WooID          int64 `json:"woo_id"`
	WooVariationID int64 `json:"woo_variation_id,omitempty"`
	StockQty       int   `json:"stock_qty"`
}
