package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

// quoteTTL expires stale quotes; a market window only lasts 15 minutes.
const quoteTTL = 20 * time.Minute

// QuoteCache implements domain.QuoteCache using Redis hashes. Each
// asset's quote lives at "quote:{assetID}" with fields "bid", "ask"
// and "ts" (Unix millisecond timestamp).
type QuoteCache struct {
	rdb *redis.Client
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying()}
}

func quoteKey(assetID string) string {
	return "quote:" + assetID
}

// SetQuote stores the latest best bid and ask for an asset.
func (qc *QuoteCache) SetQuote(ctx context.Context, assetID string, q domain.Quote) error {
	key := quoteKey(assetID)
	fields := map[string]interface{}{
		"bid": strconv.FormatFloat(q.BestBid, 'f', -1, 64),
		"ask": strconv.FormatFloat(q.BestAsk, 'f', -1, 64),
		"ts":  strconv.FormatInt(q.Seen.UnixMilli(), 10),
	}

	pipe := qc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, quoteTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", assetID, err)
	}
	return nil
}

// GetQuote retrieves the latest quote for an asset. It returns
// domain.ErrNotFound when the key does not exist or has expired.
func (qc *QuoteCache) GetQuote(ctx context.Context, assetID string) (domain.Quote, error) {
	vals, err := qc.rdb.HGetAll(ctx, quoteKey(assetID)).Result()
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: get quote %s: %w", assetID, err)
	}
	if len(vals) == 0 {
		return domain.Quote{}, domain.ErrNotFound
	}

	bid, err := strconv.ParseFloat(vals["bid"], 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse bid %s: %w", assetID, err)
	}
	ask, err := strconv.ParseFloat(vals["ask"], 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse ask %s: %w", assetID, err)
	}
	tsMilli, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse ts %s: %w", assetID, err)
	}

	return domain.Quote{
		BestBid: bid,
		BestAsk: ask,
		Seen:    time.UnixMilli(tsMilli),
	}, nil
}
