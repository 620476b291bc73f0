package repo

import (
	"context"
	"errors"
	"time"

	"gawulo-platform/shared/pkg/cache"
)

// OrdersStatusCache keeps the hot order-status lookups off Postgres.
type OrdersStatusCache struct {
	PG    *OrdersPG
	Redis *cache.Redis
	TTL   time.Duration
}

func statusKey(orderID string) string { return "order:" + orderID + ":status" }

func (r *OrdersStatusCache) GetStatus(ctx context.Context, orderID string) (string, error) {
	if s, err := r.Redis.GetString(ctx, statusKey(orderID)); err == nil {
		return s, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		// Redis down is not fatal, fall through to Postgres.
		_ = err
	}
	o, err := r.PG.ByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	_ = r.Redis.SetString(ctx, statusKey(orderID), o.Status, r.TTL)
	return o.Status, nil
}

func (r *OrdersStatusCache) SetStatus(ctx context.Context, orderID, status string) {
	_ = r.Redis.SetString(ctx, statusKey(orderID), status, r.TTL)
}
