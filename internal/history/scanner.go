// Package history walks closed up/down windows backwards from a base
// suffix and records each market's resolved outcome, building the
// dataset the threshold table is tuned against.
package history

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/alanyoungcy/updownbot/internal/platform/polymarket"
	"github.com/alanyoungcy/updownbot/internal/schedule"
)

// Outcome labels written to the results file.
const (
	OutcomeUp          = "UP"
	OutcomeDown        = "DOWN"
	OutcomeNotResolved = "NOT_RESOLVED"
	OutcomeAmbiguous   = "AMBIGUOUS"
)

// maxConsecutiveFailures stops the walk: several misses in a row means
// we have scanned past the oldest listed window.
const maxConsecutiveFailures = 3

var resultsHeader = []string{"event", "suffix", "outcome"}

// Result is one resolved window.
type Result struct {
	Event   string
	Suffix  int64
	Outcome string
}

// Scanner queries closed markets one window at a time.
type Scanner struct {
	gamma  *polymarket.GammaClient
	stem   string
	path   string
	logger *slog.Logger

	now func() time.Time
}

// NewScanner creates a scanner for one slug stem, e.g. "btc-updown-15m".
// Results accumulate in the CSV at path across runs.
func NewScanner(gamma *polymarket.GammaClient, stem, path string, logger *slog.Logger) *Scanner {
	return &Scanner{
		gamma:  gamma,
		stem:   stem,
		path:   path,
		logger: logger.With(slog.String("component", "history")),
		now:    time.Now,
	}
}

// Run walks backwards from base until several windows in a row fail to
// resolve, then rewrites the results file sorted by suffix. Windows
// already present in the file are not refetched.
func (s *Scanner) Run(ctx context.Context, base int64) error {
	results, err := loadResults(s.path)
	if err != nil {
		return err
	}
	seen := make(map[int64]bool, len(results))
	for _, r := range results {
		seen[r.Suffix] = true
	}

	failures := 0
	for cycle := 1; ; cycle++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		suffix := schedule.PrevSuffix(cycle, base)
		if seen[suffix] {
			continue
		}

		slug := fmt.Sprintf("%s-%d", s.stem, suffix)
		res, err := s.resolve(ctx, slug, suffix)
		if err != nil {
			failures++
			s.logger.Warn("window not resolvable",
				slog.String("slug", slug),
				slog.Int("consecutive_failures", failures),
				slog.String("error", err.Error()),
			)
			if failures >= maxConsecutiveFailures {
				s.logger.Info("reached end of listed history", slog.Int64("last_suffix", suffix))
				break
			}
			continue
		}

		failures = 0
		results = append(results, res)
		s.logger.Info("window resolved",
			slog.Int64("suffix", suffix),
			slog.String("outcome", res.Outcome),
		)
	}

	return writeResults(s.path, results)
}

// resolve fetches one window's markets and derives its outcome.
func (s *Scanner) resolve(ctx context.Context, slug string, suffix int64) (Result, error) {
	event, err := s.gamma.GetEventBySlug(ctx, slug)
	if err != nil {
		return Result{}, err
	}
	if len(event.Markets) == 0 {
		return Result{}, fmt.Errorf("history: event %s has no markets", slug)
	}

	for _, m := range event.Markets {
		market, err := s.gamma.GetMarket(ctx, m.ID)
		if err != nil {
			return Result{}, err
		}

		outcome := s.outcomeOf(market)
		if outcome == "" {
			continue
		}
		return Result{Event: event.Title, Suffix: suffix, Outcome: outcome}, nil
	}

	return Result{}, fmt.Errorf("history: event %s has no up/down market", slug)
}

// outcomeOf derives the settled outcome from the outcome price vector.
// A settled market carries exactly one 1.0 and one 0.0; anything else
// is ambiguous. Returns "" for markets without a two-way price vector.
func (s *Scanner) outcomeOf(market polymarket.APIMarket) string {
	if len(market.Outcomes) != 2 || len(market.OutcomePrices) != 2 {
		return ""
	}

	if !s.ended(market) {
		return OutcomeNotResolved
	}

	winner := -1
	ones, zeros := 0, 0
	for i, raw := range market.OutcomePrices {
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return OutcomeAmbiguous
		}
		switch p {
		case 1:
			ones++
			winner = i
		case 0:
			zeros++
		}
	}
	if ones != 1 || zeros != 1 {
		return OutcomeAmbiguous
	}

	switch market.Outcomes[winner] {
	case "Up", "UP", "up":
		return OutcomeUp
	case "Down", "DOWN", "down":
		return OutcomeDown
	default:
		return OutcomeAmbiguous
	}
}

// ended reports whether the market's window has closed.
func (s *Scanner) ended(market polymarket.APIMarket) bool {
	if market.Closed {
		return true
	}
	if market.EndDate == "" {
		return false
	}
	end, err := time.Parse(time.RFC3339, market.EndDate)
	if err != nil {
		return false
	}
	return !s.now().Before(end)
}

// --------------------------------------------------------------------------
// Results file
// --------------------------------------------------------------------------

func loadResults(path string) ([]Result, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	if _, err := r.Read(); err == io.EOF {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("history: read header: %w", err)
	}

	var results []Result
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("history: read %s: %w", path, err)
		}
		if len(row) < 3 {
			continue
		}
		suffix, err := strconv.ParseInt(row[1], 10, 64)
		if err != nil {
			continue
		}
		results = append(results, Result{Event: row[0], Suffix: suffix, Outcome: row[2]})
	}

	return results, nil
}

func writeResults(path string, results []Result) error {
	sort.Slice(results, func(i, j int) bool {
		return results[i].Suffix < results[j].Suffix
	})

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("history: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(resultsHeader); err != nil {
		return fmt.Errorf("history: write header: %w", err)
	}
	for _, r := range results {
		row := []string{r.Event, strconv.FormatInt(r.Suffix, 10), r.Outcome}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("history: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("history: flush %s: %w", path, err)
	}

	return nil
}
