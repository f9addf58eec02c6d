package domain

import (
	"context"
	"fmt"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType indicates the time-in-force policy.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // Good-Till-Cancelled
	OrderTypeGTD OrderType = "GTD" // Good-Till-Date
	OrderTypeFOK OrderType = "FOK" // Fill-Or-Kill
	OrderTypeFAK OrderType = "FAK" // Fill-And-Kill
)

// OrderIntent is a limit order as the strategy expresses it, before
// signing and amount fixed-pointing happen at the gateway.
type OrderIntent struct {
	TokenID string
	Side    OrderSide
	Price   float64
	Size    float64
	Type    OrderType
}

// Validate checks the intent locally so obviously broken orders are
// rejected before any signature or network round trip.
func (o OrderIntent) Validate() error {
	if o.TokenID == "" {
		return fmt.Errorf("%w: empty token ID", ErrInvalidOrder)
	}
	if o.Side != OrderSideBuy && o.Side != OrderSideSell {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, o.Side)
	}
	if o.Price <= 0 || o.Price > 1 {
		return fmt.Errorf("%w: price %f outside (0,1]", ErrInvalidOrder, o.Price)
	}
	if o.Size <= 0 {
		return fmt.Errorf("%w: size %f must be positive", ErrInvalidOrder, o.Size)
	}
	return nil
}

// OrderResult wraps the API response after order submission.
type OrderResult struct {
	Success     bool
	OrderID     string
	Status      string
	Message     string
	ShouldRetry bool
}

// OrderGateway submits orders to the exchange. Implementations handle
// signing and authentication.
type OrderGateway interface {
	PlaceOrder(ctx context.Context, intent OrderIntent) (OrderResult, error)
}
