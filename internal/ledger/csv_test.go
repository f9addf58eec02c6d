package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

func testRecord() domain.TradeRecord {
	return domain.TradeRecord{
		ID:        "rec-1",
		Timestamp: time.Date(2026, 1, 16, 10, 12, 0, 0, time.UTC),
		Event:     "Bitcoin Up or Down",
		Action:    domain.OrderSideBuy,
		Status:    domain.TradeStatusSuccess,
		TimeLeft:  180,
		Pick:      domain.OutcomeUp,
		Size:      1.145833,
		Price:     0.96,
		Detail:    "order_id=ord-1 status=live",
	}
}

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return rows
}

func TestCSVAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trade_record.csv")

	l, err := NewCSV(path)
	if err != nil {
		t.Fatalf("NewCSV: %v", err)
	}
	if err := l.Append(context.Background(), testRecord()); err != nil {
		t.Fatalf("Append: %v", err)
	}

	rows := readAll(t, path)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}

	wantHeader := "bought_timestamp"
	if rows[0][0] != wantHeader || rows[0][8] != "full_message" {
		t.Fatalf("header = %v", rows[0])
	}

	got := rows[1]
	if got[0] != "2026-01-16 10:12:00" || got[1] != "Bitcoin Up or Down" {
		t.Fatalf("row = %v", got)
	}
	if got[2] != "BUY" || got[3] != "SUCCESS" || got[4] != "180" || got[5] != "UP" {
		t.Fatalf("row = %v", got)
	}
	if got[7] != "0.96" {
		t.Fatalf("price cell = %q", got[7])
	}
}

func TestCSVReopenDoesNotDuplicateHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trade_record.csv")

	l, err := NewCSV(path)
	if err != nil {
		t.Fatalf("NewCSV: %v", err)
	}
	if err := l.Append(context.Background(), testRecord()); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Reopen as a restart would.
	l2, err := NewCSV(path)
	if err != nil {
		t.Fatalf("NewCSV reopen: %v", err)
	}
	if err := l2.Append(context.Background(), testRecord()); err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}

	rows := readAll(t, path)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[1][0] == "bought_timestamp" || rows[2][0] == "bought_timestamp" {
		t.Fatal("duplicate header written on reopen")
	}
}

type failingLedger struct{ err error }

func (f failingLedger) Append(context.Context, domain.TradeRecord) error { return f.err }

type countingLedger struct{ n int }

func (c *countingLedger) Append(context.Context, domain.TradeRecord) error {
	c.n++
	return nil
}

func TestMultiDeliversToAllBackends(t *testing.T) {
	sink := &countingLedger{}
	boom := errors.New("boom")

	m := Multi(failingLedger{err: boom}, sink)
	err := m.Append(context.Background(), testRecord())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if sink.n != 1 {
		t.Fatal("second backend skipped after first failed")
	}
}
