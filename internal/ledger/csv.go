// Package ledger records every order attempt. The canonical form is a
// CSV file that survives restarts and can be archived after each cycle;
// optional backends mirror rows elsewhere.
package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

// header is the fixed column order of the trade ledger.
var header = []string{
	"bought_timestamp", "event", "action", "status",
	"time_left", "side", "size", "price", "full_message",
}

// CSV is a file-backed TradeLedger. Rows are flushed per append so a
// crash loses at most the row being written.
type CSV struct {
	path string
	mu   sync.Mutex
}

// NewCSV opens or creates the ledger file, writing the header only when
// the file is new or empty.
func NewCSV(path string) (*CSV, error) {
	l := &CSV{path: path}

	info, err := os.Stat(path)
	if err == nil && info.Size() > 0 {
		return l, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ledger: stat %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ledger: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("ledger: write header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("ledger: flush header: %w", err)
	}

	return l, nil
}

// Path returns the ledger file location, used by the archiver.
func (l *CSV) Path() string {
	return l.path
}

// Append writes one record. The context is accepted for interface
// symmetry; file appends are not cancellable midway.
func (l *CSV) Append(_ context.Context, rec domain.TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("ledger: open %s: %w", l.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(row(rec)); err != nil {
		return fmt.Errorf("ledger: write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("ledger: flush row: %w", err)
	}

	return nil
}

func row(rec domain.TradeRecord) []string {
	return []string{
		rec.Timestamp.UTC().Format("2006-01-02 15:04:05"),
		rec.Event,
		string(rec.Action),
		rec.Status,
		strconv.Itoa(rec.TimeLeft),
		string(rec.Pick),
		strconv.FormatFloat(rec.Size, 'f', 6, 64),
		strconv.FormatFloat(rec.Price, 'f', 2, 64),
		rec.Detail,
	}
}
