//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenrow/lot-auction/pkg/testhelpers"
	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/lots"
)

func TestLotCache_Redis(t *testing.T) {
	addr := testhelpers.NewTestRedis(t)
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	ctx := context.Background()

	lot := &lots.Lot{
		ID:             uuid.New(),
		Name:           "Walnut stand",
		MinimumPrice:   80000,
		BiddingEndDate: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
		Status:         lots.StatusActive,
	}
	reg := &countingRegistry{lot: lot}
	c := NewLotCache(reg, rdb, time.Minute, discardLogger())

	first, err := c.GetLot(ctx, lot.ID)
	require.NoError(t, err)
	second, err := c.GetLot(ctx, lot.ID)
	require.NoError(t, err)

	assert.Equal(t, int32(1), reg.calls.Load(), "second read is served from redis")
	assert.Equal(t, first.MinimumPrice, second.MinimumPrice)
	assert.True(t, lot.BiddingEndDate.Equal(second.BiddingEndDate))

	ttl, err := rdb.TTL(ctx, lotKey(lot.ID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, c.Invalidate(ctx, lot.ID))
	_, err = c.GetLot(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(2), reg.calls.Load())

	missing := uuid.New()
	_, err = c.GetLot(ctx, missing)
	assert.ErrorIs(t, err, lots.ErrLotNotFound)
	exists, err := rdb.Exists(ctx, lotKey(missing)).Result()
	require.NoError(t, err)
	assert.Zero(t, exists, "unknown lots are not cached")
}
