// Package cache хранит статусы заказов в redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linemk/storefront-orders/internal/domain/models"
	"github.com/redis/go-redis/v9"
)

// order_status:{user_id}:{order_id} -> status
const keyOrderStatus = "order_status:%d:%d"

func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

type StatusCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStatusCache(rdb *redis.Client, ttl time.Duration) *StatusCache {
	return &StatusCache{rdb: rdb, ttl: ttl}
}

// StatusKey содержит id владельца, поэтому закэшированный статус не отдаётся чужому пользователю.
func StatusKey(userID, orderID int64) string {
	return fmt.Sprintf(keyOrderStatus, userID, orderID)
}

// Get возвращает ok=false при промахе.
func (c *StatusCache) Get(ctx context.Context, userID, orderID int64) (models.OrderStatus, bool, error) {
	v, err := c.rdb.Get(ctx, StatusKey(userID, orderID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	st, ok := models.ParseOrderStatus(v)
	if !ok {
		return "", false, nil
	}
	return st, true, nil
}

// Set перезаписывает статус, им пользуется только обработчик закоммиченных переходов.
func (c *StatusCache) Set(ctx context.Context, userID, orderID int64, status models.OrderStatus) error {
	return c.rdb.Set(ctx, StatusKey(userID, orderID), string(status), c.ttl).Err()
}

// Fill кладёт прочитанный из БД статус через SETNX и не трогает уже записанное значение.
func (c *StatusCache) Fill(ctx context.Context, userID, orderID int64, status models.OrderStatus) error {
	return c.rdb.SetNX(ctx, StatusKey(userID, orderID), string(status), c.ttl).Err()
}

// OrderStatusChanged обновляет статус в кэше после закоммиченного перехода.
func (c *StatusCache) OrderStatusChanged(ctx context.Context, change models.StatusChange) error {
	return c.Set(ctx, change.UserID, change.OrderID, change.Status)
}
