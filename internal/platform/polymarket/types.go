package polymarket

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

// --------------------------------------------------------------------------
// JSON helper types
// --------------------------------------------------------------------------

// flexInt64 decodes an int64 whether the API sends it as a number or a
// string. Feed timestamps in particular arrive as decimal strings.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexInt64(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("flexInt64: %s", string(data))
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("flexInt64: %q: %w", s, err)
	}
	*f = flexInt64(v)
	return nil
}

// stringList decodes a field the Gamma API double-encodes: a JSON string
// whose contents are themselves a JSON array of strings, e.g.
// "[\"Up\",\"Down\"]".
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		// Some endpoints send a plain array instead.
		var list []string
		if err2 := json.Unmarshal(data, &list); err2 != nil {
			return fmt.Errorf("stringList: %s", string(data))
		}
		*s = list
		return nil
	}
	if raw == "" {
		*s = nil
		return nil
	}

	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return fmt.Errorf("stringList: inner %q: %w", raw, err)
	}
	*s = list
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIEvent mirrors the Gamma /events/slug/{slug} response shape.
type APIEvent struct {
	ID      string      `json:"id"`
	Slug    string      `json:"slug"`
	Title   string      `json:"title"`
	Markets []APIMarket `json:"markets"`
}

// APIMarket mirrors the Gamma market object. Only the fields the bot
// reads are mapped.
type APIMarket struct {
	ID            string     `json:"id"`
	Question      string     `json:"question"`
	Slug          string     `json:"slug"`
	ConditionID   string     `json:"conditionId"`
	ClobTokenIDs  stringList `json:"clobTokenIds"`
	Outcomes      stringList `json:"outcomes"`
	OutcomePrices stringList `json:"outcomePrices"`
	EndDate       string     `json:"endDate"`
	Closed        bool       `json:"closed"`
	Active        bool       `json:"active"`
}

// --------------------------------------------------------------------------
// Websocket DTOs
// --------------------------------------------------------------------------

// MarketSubscription is the subscribe frame for the public market channel.
type MarketSubscription struct {
	AssetIDs  []string `json:"assets_ids"`
	Type      string   `json:"type"`
	Operation string   `json:"operation"`
}

// WSAuth carries L2 API credentials inside a user-channel subscribe frame.
type WSAuth struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// UserSubscription is the subscribe frame for the authenticated user
// channel, keyed by condition IDs rather than asset IDs.
type UserSubscription struct {
	Markets []string `json:"markets"`
	Type    string   `json:"type"`
	Auth    *WSAuth  `json:"auth,omitempty"`
}

// WSPriceChange is one entry of a market-channel price_change frame.
type WSPriceChange struct {
	AssetID string `json:"asset_id"`
	Price   string `json:"price"`
	Size    string `json:"size"`
	Side    string `json:"side"`
	BestBid string `json:"best_bid"`
	BestAsk string `json:"best_ask"`
}

// FeedFrame is a decoded market-channel message.
type FeedFrame struct {
	EventType    string          `json:"event_type"`
	AssetID      string          `json:"asset_id"`
	Market       string          `json:"market"`
	Timestamp    flexInt64       `json:"timestamp"`
	PriceChanges []WSPriceChange `json:"price_changes"`
}

// ParseFeedFrame decodes a raw market-channel frame. Callers should
// treat an error as a frame to skip, not a transport failure.
func ParseFeedFrame(raw []byte) (FeedFrame, error) {
	var f FeedFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return FeedFrame{}, fmt.Errorf("polymarket: decode feed frame: %w", err)
	}
	return f, nil
}

// ToDomain converts the wire frame into domain terms. Unparseable
// numeric fields fall back to zero rather than dropping the entry.
func (f FeedFrame) ToDomain() domain.FeedMessage {
	msg := domain.FeedMessage{
		EventType: f.EventType,
		Timestamp: int64(f.Timestamp),
	}
	for _, pc := range f.PriceChanges {
		msg.PriceChanges = append(msg.PriceChanges, domain.PriceChange{
			AssetID: pc.AssetID,
			Side:    domain.OrderSide(pc.Side),
			Price:   parseFloat(pc.Price),
			Size:    parseFloat(pc.Size),
			BestBid: parseFloat(pc.BestBid),
			BestAsk: parseFloat(pc.BestAsk),
		})
	}
	return msg
}

// APIOrderResult mirrors the CLOB order placement response.
type APIOrderResult struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"`
}

// ToDomainOrderResult converts the API response into domain terms.
// Rate-limit style rejections are flagged as retryable.
func (r APIOrderResult) ToDomainOrderResult() domain.OrderResult {
	return domain.OrderResult{
		Success:     r.Success,
		OrderID:     r.OrderID,
		Status:      r.Status,
		Message:     r.ErrorMsg,
		ShouldRetry: !r.Success && strings.Contains(strings.ToLower(r.ErrorMsg), "rate limit"),
	}
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
