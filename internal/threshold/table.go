// Package threshold loads the per-instant buy thresholds the strategy
// evaluates against. The table maps seconds-to-close to a minimum best
// ask price and is read once at startup from a CSV file.
package threshold

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Column headers the CSV file must carry. Extra columns are ignored.
const (
	colSecondIdx = "second_idx"
	colThreshold = "buy_price_threshold"
)

// Table maps a seconds-to-close instant to its buy price threshold.
type Table struct {
	prices map[int]float64
}

// New builds a Table directly from a map. Mostly useful in tests.
func New(prices map[int]float64) *Table {
	t := &Table{prices: make(map[int]float64, len(prices))}
	for k, v := range prices {
		t.prices[k] = v
	}
	return t
}

// Load reads the threshold table from a CSV file.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("threshold: opening %s: %w", path, err)
	}
	defer f.Close()

	t, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("threshold: parsing %s: %w", path, err)
	}
	return t, nil
}

// Price returns the threshold for the given seconds-to-close. The second
// return is false when the table has no entry for that instant.
func (t *Table) Price(secondsToClose int) (float64, bool) {
	p, ok := t.prices[secondsToClose]
	return p, ok
}

// Len returns the number of instants the table covers.
func (t *Table) Len() int {
	return len(t.prices)
}

func parse(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	secCol, thrCol := -1, -1
	for i, name := range header {
		switch name {
		case colSecondIdx:
			secCol = i
		case colThreshold:
			thrCol = i
		}
	}
	if secCol < 0 || thrCol < 0 {
		return nil, fmt.Errorf("header missing %s or %s columns", colSecondIdx, colThreshold)
	}

	prices := make(map[int]float64)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		sec, err := strconv.Atoi(row[secCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad %s %q: %w", line, colSecondIdx, row[secCol], err)
		}
		thr, err := strconv.ParseFloat(row[thrCol], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad %s %q: %w", line, colThreshold, row[thrCol], err)
		}

		prices[sec] = thr
	}

	if len(prices) == 0 {
		return nil, fmt.Errorf("no rows")
	}

	return &Table{prices: prices}, nil
}
