package domain

// PriceChange is a single best-bid/offer update for one asset.
type PriceChange struct {
	AssetID string
	Side    OrderSide
	Price   float64
	Size    float64
	BestBid float64
	BestAsk float64
}

// FeedMessage is a decoded market-channel frame. Timestamp is epoch
// milliseconds as reported by the exchange, not local receive time.
type FeedMessage struct {
	EventType    string
	Timestamp    int64
	PriceChanges []PriceChange
}

// Second returns the integer epoch second this message belongs to. All
// per-second de-duplication keys off this value.
func (m FeedMessage) Second() int64 {
	return m.Timestamp / 1000
}
