package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

// Ledger implements domain.TradeLedger on a trade_records table.
type Ledger struct {
	pool *pgxpool.Pool
}

// NewLedger creates a Ledger backed by the given connection pool.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Append inserts one record. Replayed IDs are skipped via ON CONFLICT
// so a retried append cannot double-book.
func (l *Ledger) Append(ctx context.Context, rec domain.TradeRecord) error {
	const query = `
		INSERT INTO trade_records (
			id, bought_at, event, action, status,
			time_left, pick, size, price, detail
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`

	_, err := l.pool.Exec(ctx, query,
		rec.ID, rec.Timestamp, rec.Event, string(rec.Action), rec.Status,
		rec.TimeLeft, string(rec.Pick), rec.Size, rec.Price, rec.Detail,
	)
	if err != nil {
		return fmt.Errorf("postgres: append trade record: %w", err)
	}
	return nil
}
