package domain

import (
	"context"
	"time"
)

// Trade outcome statuses as recorded in the ledger.
const (
	TradeStatusSuccess = "SUCCESS"
	TradeStatusFailed  = "FAILED"
)

// TradeRecord is one ledger row: a single order attempt, successful or not.
type TradeRecord struct {
	ID        string
	Timestamp time.Time // exchange timestamp of the triggering message
	Event     string    // market title, e.g. "Bitcoin Up or Down"
	Action    OrderSide
	Status    string
	TimeLeft  int // seconds to window close at decision time
	Pick      Outcome
	Size      float64
	Price     float64
	Detail    string // raw submission response or error text
}

// TradeLedger is an append-only record of every order attempt.
type TradeLedger interface {
	Append(ctx context.Context, rec TradeRecord) error
}
