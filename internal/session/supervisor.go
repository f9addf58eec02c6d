package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/updownbot/internal/domain"
	"github.com/alanyoungcy/updownbot/internal/schedule"
	"github.com/alanyoungcy/updownbot/internal/threshold"
)

// MessageStream is a live feed subscription as the supervisor sees it.
type MessageStream interface {
	Messages() <-chan []byte
	Err() error
	Close() error
}

// StreamOpener dials a feed subscription for one resolved market.
type StreamOpener func(ctx context.Context, market domain.Market) (MessageStream, error)

// Resolver turns a slug into a tradeable market.
type Resolver interface {
	ResolveUpDown(ctx context.Context, slug string) (domain.Market, error)
}

// SupervisorConfig shapes the cycle loop.
type SupervisorConfig struct {
	// Symbols maps a display name to its slug stem; the suffix is
	// appended per cycle, e.g. "btc-updown-15m" + "-1768539600".
	Symbols map[string]string

	// BaseSuffix is the window-open epoch second of the first cycle.
	BaseSuffix int64

	// MaxCycles stops the loop after that many cycles; zero runs until
	// the context is cancelled.
	MaxCycles int

	Session Config
}

// Supervisor runs one session per symbol per window, forever. Each
// cycle advances the slug suffix by one window; a symbol that fails to
// resolve is skipped for that cycle and retried on the next one.
type Supervisor struct {
	cfg        SupervisorConfig
	resolver   Resolver
	open       StreamOpener
	gateway    domain.OrderGateway
	ledger     domain.TradeLedger
	thresholds *threshold.Table
	quotes     domain.QuoteCache
	notifier   Notifier
	clock      Clock
	logger     *slog.Logger

	onCycleEnd func(ctx context.Context, cycle int, suffix int64)
}

// NewSupervisor builds a supervisor. Optional collaborators are
// attached with the With methods before Run.
func NewSupervisor(cfg SupervisorConfig, resolver Resolver, open StreamOpener, gateway domain.OrderGateway, ledger domain.TradeLedger, tbl *threshold.Table, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		cfg:        cfg,
		resolver:   resolver,
		open:       open,
		gateway:    gateway,
		ledger:     ledger,
		thresholds: tbl,
		clock:      SystemClock(),
		logger:     logger.With(slog.String("component", "supervisor")),
	}
}

// WithQuoteCache mirrors observed quotes into the cache.
func (s *Supervisor) WithQuoteCache(q domain.QuoteCache) *Supervisor {
	s.quotes = q
	return s
}

// WithNotifier enables trade and cycle notifications.
func (s *Supervisor) WithNotifier(n Notifier) *Supervisor {
	s.notifier = n
	return s
}

// WithClock replaces the wall clock, for tests.
func (s *Supervisor) WithClock(c Clock) *Supervisor {
	s.clock = c
	return s
}

// WithCycleHook registers a callback invoked after every cycle, once
// all of its sessions have ended. Used for ledger archival.
func (s *Supervisor) WithCycleHook(fn func(ctx context.Context, cycle int, suffix int64)) *Supervisor {
	s.onCycleEnd = fn
	return s
}

// Run loops over cycles until ctx is cancelled or MaxCycles is reached.
func (s *Supervisor) Run(ctx context.Context) error {
	for cycle := 1; ; cycle++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.cfg.MaxCycles > 0 && cycle > s.cfg.MaxCycles {
			return nil
		}

		suffix := schedule.NextSuffix(cycle, s.cfg.BaseSuffix)
		s.logger.Info("cycle starting",
			slog.Int("cycle", cycle),
			slog.Int64("suffix", suffix),
		)

		started := s.runCycle(ctx, suffix)
		if err := ctx.Err(); err != nil {
			return err
		}

		if s.notifier != nil {
			title := fmt.Sprintf("cycle %d complete", cycle)
			body := fmt.Sprintf("suffix=%d sessions=%d", suffix, started)
			_ = s.notifier.Notify(ctx, "cycle", title, body)
		}

		if started == 0 {
			// Nothing resolved this window. Wait it out instead of
			// hammering the API with the same failing lookups.
			s.logger.Warn("no sessions this cycle, waiting for next window")
			wait := schedule.NextQuarter(s.clock.Now()).Sub(s.clock.Now())
			if err := s.clock.Sleep(ctx, wait); err != nil {
				return err
			}
		}

		if s.onCycleEnd != nil {
			s.onCycleEnd(ctx, cycle, suffix)
		}
	}
}

// runCycle resolves every symbol and fans out one session per resolved
// market, returning once all of them have ended.
func (s *Supervisor) runCycle(ctx context.Context, suffix int64) int {
	g, gctx := errgroup.WithContext(ctx)
	started := 0

	for name, stem := range s.cfg.Symbols {
		slug := fmt.Sprintf("%s-%d", stem, suffix)

		market, err := s.resolver.ResolveUpDown(ctx, slug)
		if err != nil {
			s.logger.Warn("symbol skipped this cycle",
				slog.String("symbol", name),
				slog.String("slug", slug),
				slog.String("error", err.Error()),
			)
			continue
		}

		started++
		g.Go(func() error {
			s.runSession(gctx, market)
			return nil
		})
	}

	_ = g.Wait()
	return started
}

func (s *Supervisor) runSession(ctx context.Context, market domain.Market) {
	stream, err := s.open(ctx, market)
	if err != nil {
		s.logger.Warn("stream open failed",
			slog.String("market", market.Slug),
			slog.String("error", err.Error()),
		)
		return
	}
	defer stream.Close()

	sess := New(s.cfg.Session, market, s.thresholds, s.gateway, s.ledger, s.logger).
		WithClock(s.clock)
	if s.quotes != nil {
		sess.WithQuoteCache(s.quotes)
	}
	if s.notifier != nil {
		sess.WithNotifier(s.notifier)
	}

	err = sess.Run(ctx, stream.Messages())
	switch {
	case err == nil || ctx.Err() != nil:
	case errors.Is(err, domain.ErrWindowEnded):
		s.logger.Info("window complete", slog.String("market", market.Slug))
	case errors.Is(err, domain.ErrStalledFeed):
		s.logger.Warn("feed stalled, session abandoned",
			slog.String("market", market.Slug),
			slog.String("error", err.Error()),
		)
	default:
		s.logger.Warn("session error",
			slog.String("market", market.Slug),
			slog.String("error", err.Error()),
		)
	}
	if serr := stream.Err(); serr != nil {
		s.logger.Debug("stream closed",
			slog.String("market", market.Slug),
			slog.String("error", serr.Error()),
		)
	}
}
