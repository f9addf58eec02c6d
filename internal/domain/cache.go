package domain

import (
	"context"
	"time"
)

// Quote is the latest best-bid/offer observed for an asset.
type Quote struct {
	BestBid float64
	BestAsk float64
	Seen    time.Time
}

// QuoteCache provides fast access to the latest quotes.
type QuoteCache interface {
	SetQuote(ctx context.Context, assetID string, q Quote) error
	GetQuote(ctx context.Context, assetID string) (Quote, error)
}
