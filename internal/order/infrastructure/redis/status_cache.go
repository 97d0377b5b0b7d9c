package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HurmakR/herabuna-b2b/internal/order/domain"
)

const (
	statusTTL = 5 * time.Minute
	// Terminal statuses never change, so they may live much longer.
	terminalTTL = 24 * time.Hour
)

// StatusCache keeps recent order statuses for cheap polling. It is strictly
// best effort: failures are logged and the caller never sees them.
type StatusCache struct {
	log *slog.Logger
	rdb *redis.Client
}

func NewStatusCache(log *slog.Logger, rdb *redis.Client) *StatusCache {
	return &StatusCache{log: log, rdb: rdb}
}

func statusKey(orderID string) string {
	return fmt.Sprintf("order_status:%s", orderID)
}

type cachedStatus struct {
	DealerID string        `json:"dealer_id"`
	Status   domain.Status `json:"status"`
}

func (c *StatusCache) Set(ctx context.Context, orderID, dealerID string, status domain.Status) {
	payload, err := json.Marshal(cachedStatus{DealerID: dealerID, Status: status})
	if err != nil {
		return
	}
	ttl := statusTTL
	if domain.Terminal(status) {
		ttl = terminalTTL
	}
	if err := c.rdb.Set(ctx, statusKey(orderID), payload, ttl).Err(); err != nil {
		c.log.Warn("status cache set failed", "order_id", orderID, "error", err)
	}
}

func (c *StatusCache) Get(ctx context.Context, orderID string) (string, domain.Status, bool) {
	val, err := c.rdb.Get(ctx, statusKey(orderID)).Bytes()
	if err != nil {
		return "", "", false
	}
	var cs cachedStatus
	if err := json.Unmarshal(val, &cs); err != nil {
		return "", "", false
	}
	return cs.DealerID, cs.Status, true
}

func (c *StatusCache) Invalidate(ctx context.Context, orderID string) {
	if err := c.rdb.Del(ctx, statusKey(orderID)).Err(); err != nil {
		c.log.Warn("status cache invalidate failed", "order_id", orderID, "error", err)
	}
}
