package history

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alanyoungcy/updownbot/internal/platform/polymarket"
)

const testBase = 1768539600

type fakeWindow struct {
	outcomes []string
	prices   []string
	closed   bool
	endDate  string
}

// gammaServer serves events keyed by slug suffix. Slugs without an
// entry return 404, which the scanner counts as a resolution failure.
func gammaServer(t *testing.T, stem string, windows map[int64]fakeWindow) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/events/slug/", func(w http.ResponseWriter, r *http.Request) {
		slug := r.URL.Path[len("/events/slug/"):]
		var suffix int64
		if _, err := fmt.Sscanf(slug, stem+"-%d", &suffix); err != nil {
			http.NotFound(w, r)
			return
		}
		if _, ok := windows[suffix]; !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":    fmt.Sprintf("evt-%d", suffix),
			"slug":  slug,
			"title": fmt.Sprintf("Bitcoin Up or Down %d", suffix),
			"markets": []map[string]any{
				{"id": fmt.Sprintf("mkt-%d", suffix)},
			},
		})
	})
	mux.HandleFunc("/markets/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/markets/"):]
		var suffix int64
		if _, err := fmt.Sscanf(id, "mkt-%d", &suffix); err != nil {
			http.NotFound(w, r)
			return
		}
		win, ok := windows[suffix]
		if !ok {
			http.NotFound(w, r)
			return
		}
		outcomes, _ := json.Marshal(win.outcomes)
		prices, _ := json.Marshal(win.prices)
		json.NewEncoder(w).Encode(map[string]any{
			"id":            id,
			"question":      "Bitcoin Up or Down?",
			"closed":        win.closed,
			"endDate":       win.endDate,
			"outcomes":      string(outcomes),
			"outcomePrices": string(prices),
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func readResults(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open results: %v", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read results: %v", err)
		}
		rows = append(rows, row)
	}
	return rows
}

func TestScannerWalksBackwardsAndSortsBySuffix(t *testing.T) {
	windows := map[int64]fakeWindow{
		testBase:       {outcomes: []string{"Up", "Down"}, prices: []string{"1", "0"}, closed: true},
		testBase - 900: {outcomes: []string{"Up", "Down"}, prices: []string{"0", "1"}, closed: true},
		testBase - 1800: {
			outcomes: []string{"Up", "Down"},
			prices:   []string{"1", "0"},
			closed:   true,
		},
	}
	srv := gammaServer(t, "btc-updown-15m", windows)

	path := filepath.Join(t.TempDir(), "results.csv")
	s := NewScanner(polymarket.NewGammaClient(srv.URL), "btc-updown-15m", path, slog.New(slog.DiscardHandler))

	if err := s.Run(context.Background(), testBase); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rows := readResults(t, path)
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want header + 3", len(rows))
	}
	if rows[0][0] != "event" || rows[0][1] != "suffix" || rows[0][2] != "outcome" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	wantSuffixes := []string{"1768537800", "1768538700", "1768539600"}
	wantOutcomes := []string{OutcomeUp, OutcomeDown, OutcomeUp}
	for i, row := range rows[1:] {
		if row[1] != wantSuffixes[i] {
			t.Errorf("row %d suffix = %s, want %s", i, row[1], wantSuffixes[i])
		}
		if row[2] != wantOutcomes[i] {
			t.Errorf("row %d outcome = %s, want %s", i, row[2], wantOutcomes[i])
		}
	}
}

func TestScannerStopsAfterConsecutiveFailures(t *testing.T) {
	// Only the newest window exists. The walk should record it, then
	// hit three straight 404s and stop instead of scanning forever.
	windows := map[int64]fakeWindow{
		testBase: {outcomes: []string{"Up", "Down"}, prices: []string{"0", "1"}, closed: true},
	}
	srv := gammaServer(t, "btc-updown-15m", windows)

	path := filepath.Join(t.TempDir(), "results.csv")
	s := NewScanner(polymarket.NewGammaClient(srv.URL), "btc-updown-15m", path, slog.New(slog.DiscardHandler))

	if err := s.Run(context.Background(), testBase); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rows := readResults(t, path)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want header + 1", len(rows))
	}
	if rows[1][2] != OutcomeDown {
		t.Errorf("outcome = %s, want %s", rows[1][2], OutcomeDown)
	}
}

func TestScannerSkipsWindowsAlreadyRecorded(t *testing.T) {
	var marketHits int
	windows := map[int64]fakeWindow{
		testBase: {outcomes: []string{"Up", "Down"}, prices: []string{"1", "0"}, closed: true},
	}
	srv := gammaServer(t, "btc-updown-15m", windows)
	counting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		marketHits++
		resp, err := http.Get(srv.URL + r.URL.Path)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()
		w.WriteHeader(resp.StatusCode)
		io.Copy(w, resp.Body)
	}))
	defer counting.Close()

	path := filepath.Join(t.TempDir(), "results.csv")
	seed := fmt.Sprintf("event,suffix,outcome\nBitcoin Up or Down %d,%d,UP\n", testBase, testBase)
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatalf("seed results: %v", err)
	}

	s := NewScanner(polymarket.NewGammaClient(counting.URL), "btc-updown-15m", path, slog.New(slog.DiscardHandler))
	if err := s.Run(context.Background(), testBase); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The recorded window must not be refetched. Only the failing
	// probes behind it hit the server.
	if marketHits != maxConsecutiveFailures {
		t.Errorf("server hits = %d, want %d", marketHits, maxConsecutiveFailures)
	}

	rows := readResults(t, path)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want header + 1", len(rows))
	}
}

func TestOutcomeOfClassification(t *testing.T) {
	s := &Scanner{now: time.Now}

	tests := []struct {
		name string
		win  fakeWindow
		want string
	}{
		{
			name: "up wins",
			win:  fakeWindow{outcomes: []string{"Up", "Down"}, prices: []string{"1", "0"}, closed: true},
			want: OutcomeUp,
		},
		{
			name: "down wins",
			win:  fakeWindow{outcomes: []string{"Up", "Down"}, prices: []string{"0", "1"}, closed: true},
			want: OutcomeDown,
		},
		{
			name: "still trading",
			win:  fakeWindow{outcomes: []string{"Up", "Down"}, prices: []string{"0.55", "0.45"}},
			want: OutcomeNotResolved,
		},
		{
			name: "closed without settlement prices",
			win:  fakeWindow{outcomes: []string{"Up", "Down"}, prices: []string{"0.55", "0.45"}, closed: true},
			want: OutcomeAmbiguous,
		},
		{
			name: "ended by end date",
			win: fakeWindow{
				outcomes: []string{"Up", "Down"},
				prices:   []string{"1", "0"},
				endDate:  time.Now().Add(-time.Hour).Format(time.RFC3339),
			},
			want: OutcomeUp,
		},
		{
			name: "not a two way market",
			win:  fakeWindow{outcomes: []string{"Yes"}, prices: []string{"1"}, closed: true},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcomes, _ := json.Marshal(tt.win.outcomes)
			prices, _ := json.Marshal(tt.win.prices)
			raw := fmt.Sprintf(`{"id":"m","outcomes":%q,"outcomePrices":%q,"closed":%v,"endDate":%q}`,
				string(outcomes), string(prices), tt.win.closed, tt.win.endDate)

			var market polymarket.APIMarket
			if err := json.Unmarshal([]byte(raw), &market); err != nil {
				t.Fatalf("unmarshal market: %v", err)
			}
			if got := s.outcomeOf(market); got != tt.want {
				t.Errorf("outcomeOf = %q, want %q", got, tt.want)
			}
		})
	}
}
