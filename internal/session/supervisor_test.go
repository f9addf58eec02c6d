package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

// fakeResolver resolves every slug except those listed in fail.
type fakeResolver struct {
	mu    sync.Mutex
	slugs []string
	fail  map[string]bool
}

func (r *fakeResolver) ResolveUpDown(_ context.Context, slug string) (domain.Market, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slugs = append(r.slugs, slug)

	stem := slug[:strings.LastIndex(slug, "-")]
	if r.fail[stem] {
		return domain.Market{}, fmt.Errorf("%w: %s", domain.ErrResolution, slug)
	}
	return domain.Market{
		Slug:        slug,
		Title:       stem,
		UpTokenID:   "up-" + slug,
		DownTokenID: "down-" + slug,
	}, nil
}

// closedStream delivers nothing; its channel is already closed, so each
// session ends immediately with a transport stop.
type closedStream struct{ msgs chan []byte }

func newClosedStream() *closedStream {
	s := &closedStream{msgs: make(chan []byte)}
	close(s.msgs)
	return s
}

func (s *closedStream) Messages() <-chan []byte { return s.msgs }
func (s *closedStream) Err() error              { return nil }
func (s *closedStream) Close() error            { return nil }

func TestSupervisorCyclesAdvanceSuffix(t *testing.T) {
	const base int64 = 1768539600

	resolver := &fakeResolver{fail: map[string]bool{}}
	var openedMu sync.Mutex
	var opened []string

	open := func(_ context.Context, market domain.Market) (MessageStream, error) {
		openedMu.Lock()
		opened = append(opened, market.Slug)
		openedMu.Unlock()
		return newClosedStream(), nil
	}

	sup := NewSupervisor(SupervisorConfig{
		Symbols: map[string]string{
			"BTC": "btc-updown-15m",
			"ETH": "eth-updown-15m",
		},
		BaseSuffix: base,
		MaxCycles:  2,
	}, resolver, open, &fakeGateway{}, &memLedger{}, testTable(), slog.New(slog.DiscardHandler)).
		WithClock(newFakeClock(sessionStart))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sup.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	sort.Strings(opened)
	want := []string{
		fmt.Sprintf("btc-updown-15m-%d", base),
		fmt.Sprintf("btc-updown-15m-%d", base+900),
		fmt.Sprintf("eth-updown-15m-%d", base),
		fmt.Sprintf("eth-updown-15m-%d", base+900),
	}
	if len(opened) != len(want) {
		t.Fatalf("opened = %v, want %v", opened, want)
	}
	for i := range want {
		if opened[i] != want[i] {
			t.Fatalf("opened = %v, want %v", opened, want)
		}
	}
}

func TestSupervisorSkipsUnresolvedSymbol(t *testing.T) {
	const base int64 = 1768539600

	resolver := &fakeResolver{fail: map[string]bool{"eth-updown-15m": true}}
	var openedMu sync.Mutex
	var opened []string

	open := func(_ context.Context, market domain.Market) (MessageStream, error) {
		openedMu.Lock()
		opened = append(opened, market.Slug)
		openedMu.Unlock()
		return newClosedStream(), nil
	}

	sup := NewSupervisor(SupervisorConfig{
		Symbols: map[string]string{
			"BTC": "btc-updown-15m",
			"ETH": "eth-updown-15m",
		},
		BaseSuffix: base,
		MaxCycles:  1,
	}, resolver, open, &fakeGateway{}, &memLedger{}, testTable(), slog.New(slog.DiscardHandler)).
		WithClock(newFakeClock(sessionStart))

	if err := sup.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(opened) != 1 || !strings.HasPrefix(opened[0], "btc-") {
		t.Fatalf("opened = %v, want only the BTC session", opened)
	}
}

func TestSupervisorCycleHook(t *testing.T) {
	const base int64 = 1768539600

	resolver := &fakeResolver{fail: map[string]bool{}}
	open := func(_ context.Context, _ domain.Market) (MessageStream, error) {
		return newClosedStream(), nil
	}

	var hooks []int64
	sup := NewSupervisor(SupervisorConfig{
		Symbols:    map[string]string{"BTC": "btc-updown-15m"},
		BaseSuffix: base,
		MaxCycles:  3,
	}, resolver, open, &fakeGateway{}, &memLedger{}, testTable(), slog.New(slog.DiscardHandler)).
		WithClock(newFakeClock(sessionStart)).
		WithCycleHook(func(_ context.Context, _ int, suffix int64) {
			hooks = append(hooks, suffix)
		})

	if err := sup.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(hooks) != 3 || hooks[0] != base || hooks[2] != base+1800 {
		t.Fatalf("hooks = %v", hooks)
	}
}

func TestSupervisorStopsOnCancel(t *testing.T) {
	resolver := &fakeResolver{fail: map[string]bool{"btc-updown-15m": true}}
	open := func(_ context.Context, _ domain.Market) (MessageStream, error) {
		return newClosedStream(), nil
	}

	sup := NewSupervisor(SupervisorConfig{
		Symbols:    map[string]string{"BTC": "btc-updown-15m"},
		BaseSuffix: 1768539600,
	}, resolver, open, &fakeGateway{}, &memLedger{}, testTable(), slog.New(slog.DiscardHandler)).
		WithClock(newFakeClock(sessionStart))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Run should surface the cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}
