package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/HurmakR/herabuna-b2b/internal/catalog/domain"
	"github.com/HurmakR/herabuna-b2b/pkg/outbox"
)

// StockPushDispatcher delivers queued stock pushes to the external catalog.
// Each payload carries the absolute quantity at enqueue time, so replays and
// reordering converge on the latest committed value.
type StockPushDispatcher struct {
	log    *slog.Logger
	client CatalogClient
}

func NewStockPushDispatcher(log *slog.Logger, client CatalogClient) *StockPushDispatcher {
	return &StockPushDispatcher{log: log, client: client}
}

func (d *StockPushDispatcher) Dispatch(ctx context.Context, task outbox.Task) error {
	if task.Type != domain.StockPushTypeName {
		return fmt.Errorf("unexpected task type %q", task.Type)
	}
	var push domain.StockPush
	if err := json.Unmarshal(task.Payload, &push); err != nil {
		return fmt.Errorf("decode stock push: %w", err)
	}

	var err error
	if push.WooVariationID != 0 {
		err = d.client.PushVariationStock(ctx, push.WooID, push.WooVariationID, push.StockQty)
	} else {
		err = d.client.PushStock(ctx, push.WooID, push.StockQty)
	}
	if err != nil {
		return err
	}

	d.log.Debug("stock pushed",
		"woo_id", push.WooID, "woo_variation_id", push.WooVariationID, "qty", push.StockQty)
	return nil
}
