package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/linemk/storefront-orders/internal/cache"
	"github.com/linemk/storefront-orders/internal/domain/models"
	"github.com/stretchr/testify/assert"
)

func TestStatusKey(t *testing.T) {
	assert.Equal(t, "order_status:7:42", cache.StatusKey(7, 42))
}

func TestStatusCache_Unreachable(t *testing.T) {
	rdb := cache.NewRedisClient("127.0.0.1:1")
	defer rdb.Close()
	c := cache.NewStatusCache(rdb, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, ok, err := c.Get(ctx, 1, 1)
	assert.Error(t, err)
	assert.False(t, ok)

	err = c.Fill(ctx, 1, 1, models.StatusPending)
	assert.Error(t, err)

	err = c.OrderStatusChanged(ctx, models.StatusChange{OrderID: 1, UserID: 1, Status: models.StatusProcessing})
	assert.Error(t, err)
}
