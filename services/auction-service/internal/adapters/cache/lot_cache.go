// Package cache holds Redis read-through caches in front of collaborator reads.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/lots"
)

const lotKeyPrefix = "auction:lot:"

// LotCache is a lots.Registry that serves lots from Redis and falls back to
// the wrapped registry. Redis failures degrade to a direct read. Unknown lots
// are not cached.
type LotCache struct {
	next   lots.Registry
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

func NewLotCache(next lots.Registry, rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) *LotCache {
	return &LotCache{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.With("component", "lot_cache"),
	}
}

type cachedLot struct {
	ID             uuid.UUID   `json:"id"`
	Name           string      `json:"name"`
	MinimumPrice   int64       `json:"minimum_price"`
	BiddingEndDate time.Time   `json:"bidding_end_date"`
	Status         lots.Status `json:"status"`
}

func lotKey(lotID uuid.UUID) string {
	return lotKeyPrefix + lotID.String()
}

func (c *LotCache) GetLot(ctx context.Context, lotID uuid.UUID) (*lots.Lot, error) {
	key := lotKey(lotID)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cl cachedLot
		if jsonErr := json.Unmarshal(raw, &cl); jsonErr == nil {
			return &lots.Lot{
				ID:             cl.ID,
				Name:           cl.Name,
				MinimumPrice:   cl.MinimumPrice,
				BiddingEndDate: cl.BiddingEndDate,
				Status:         cl.Status,
			}, nil
		}
		c.logger.Warn("Discarding unreadable cached lot", "lot_id", lotID)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("Lot cache read failed", "lot_id", lotID, "error", err)
	}

	lot, err := c.next.GetLot(ctx, lotID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(cachedLot{
		ID:             lot.ID,
		Name:           lot.Name,
		MinimumPrice:   lot.MinimumPrice,
		BiddingEndDate: lot.BiddingEndDate,
		Status:         lot.Status,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode lot: %w", err)
	}
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("Lot cache write failed", "lot_id", lotID, "error", err)
	}
	return lot, nil
}

// Invalidate drops a cached lot, e.g. after the registry reports a change.
func (c *LotCache) Invalidate(ctx context.Context, lotID uuid.UUID) error {
	if err := c.rdb.Del(ctx, lotKey(lotID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate lot %s: %w", lotID, err)
	}
	return nil
}
