package domain

// Outcome identifies one side of an up/down market.
type Outcome string

const (
	OutcomeUp   Outcome = "UP"
	OutcomeDown Outcome = "DOWN"
)

// Market is a resolved 15-minute up/down market: a slug plus the two
// CLOB token IDs that back its outcomes.
type Market struct {
	ID          string
	Slug        string
	Title       string
	ConditionID string
	UpTokenID   string // ERC-1155 token ID (76-digit string)
	DownTokenID string
}

// OutcomeFor maps an asset ID from the feed back to the market side it
// represents. The second return is false for asset IDs that belong to a
// different market.
func (m Market) OutcomeFor(assetID string) (Outcome, bool) {
	switch assetID {
	case m.UpTokenID:
		return OutcomeUp, true
	case m.DownTokenID:
		return OutcomeDown, true
	default:
		return "", false
	}
}

// TokenIDs returns both asset IDs, up first. The order matters for
// subscription frames, which list every asset the session watches.
func (m Market) TokenIDs() []string {
	return []string{m.UpTokenID, m.DownTokenID}
}
