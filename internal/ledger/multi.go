package ledger

import (
	"context"
	"errors"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

// multi fans appends out to several ledgers. Every backend gets the
// row even when an earlier one failed.
type multi struct {
	ledgers []domain.TradeLedger
}

// Multi combines ledgers into one. With a single backend it is returned
// as is.
func Multi(ledgers ...domain.TradeLedger) domain.TradeLedger {
	if len(ledgers) == 1 {
		return ledgers[0]
	}
	return &multi{ledgers: ledgers}
}

func (m *multi) Append(ctx context.Context, rec domain.TradeRecord) error {
	var errs []error
	for _, l := range m.ledgers {
		if err := l.Append(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
