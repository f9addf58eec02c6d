// Package session runs the per-market trading loop: it consumes raw
// feed frames for one 15-minute up/down market, watches liveness,
// de-duplicates updates per second, and fires at most one buy (plus its
// sell ladder) when the threshold rule triggers.
package session

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/updownbot/internal/domain"
	"github.com/alanyoungcy/updownbot/internal/platform/polymarket"
	"github.com/alanyoungcy/updownbot/internal/schedule"
	"github.com/alanyoungcy/updownbot/internal/threshold"
)

// State is the session lifecycle phase.
type State int

const (
	StateConnecting State = iota
	StateStreaming
	StateWindowEnding
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateWindowEnding:
		return "window_ending"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// StopReason records why a session terminated.
type StopReason string

const (
	StopWindowEnded StopReason = "window_ended"
	StopStalledFeed StopReason = "stalled_feed"
	StopTransport   StopReason = "transport"
	StopCancelled   StopReason = "cancelled"
)

// pongToken marks keep-alive replies. The server answers our literal
// "PING" frames with text containing this token.
var pongToken = []byte("PONG")

// stalledPongLimit is how many consecutive keep-alive replies, with no
// structured traffic in between, mark the feed as dead.
const stalledPongLimit = 5

// SellPolicy shapes the unconditional sell ladder that follows a buy.
type SellPolicy struct {
	Attempts int
	Spacing  time.Duration
}

// Config tunes the decision rule.
type Config struct {
	// TargetSellPrice is the limit price of every sell order and the
	// ceiling of the buy rule: a buy needs bestAsk at least GuardBand
	// below it to leave room for profit.
	TargetSellPrice float64
	GuardBand       float64

	// Notional is the collateral per buy; size is Notional / bestAsk.
	Notional float64

	// Evaluation instants: seconds-to-close values at which the rule
	// fires, from EvalFrom to EvalTo every EvalStep seconds.
	EvalFrom int
	EvalTo   int
	EvalStep int

	Sell SellPolicy
}

func (c *Config) withDefaults() {
	if c.TargetSellPrice == 0 {
		c.TargetSellPrice = 0.99
	}
	if c.GuardBand == 0 {
		c.GuardBand = 0.01
	}
	if c.Notional == 0 {
		c.Notional = 1.1
	}
	if c.EvalFrom == 0 {
		c.EvalFrom = 120
	}
	if c.EvalTo == 0 {
		c.EvalTo = 780
	}
	if c.EvalStep == 0 {
		c.EvalStep = 60
	}
	if c.Sell.Attempts == 0 {
		c.Sell.Attempts = 3
	}
	if c.Sell.Spacing == 0 {
		c.Sell.Spacing = 30 * time.Second
	}
}

// Notifier is the slice of the notification system sessions use.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Session drives one market for one window. Sessions are single-use:
// build one per cycle and discard it once Run returns.
type Session struct {
	cfg        Config
	market     domain.Market
	thresholds *threshold.Table
	gateway    domain.OrderGateway
	ledger     domain.TradeLedger
	quotes     domain.QuoteCache
	notifier   Notifier
	clock      Clock
	logger     *slog.Logger

	state    State
	reason   StopReason
	deadline time.Time

	windowEnded bool
	pongStreak  int
	traded      bool

	// Per-second de-dup bucket: one evaluation per outcome per second.
	bucketSec  int64
	bucketSeen map[domain.Outcome]bool
}

// New builds a session. Optional collaborators are attached with the
// With methods before Run.
func New(cfg Config, market domain.Market, tbl *threshold.Table, gateway domain.OrderGateway, ledger domain.TradeLedger, logger *slog.Logger) *Session {
	cfg.withDefaults()
	return &Session{
		cfg:        cfg,
		market:     market,
		thresholds: tbl,
		gateway:    gateway,
		ledger:     ledger,
		clock:      SystemClock(),
		logger: logger.With(
			slog.String("component", "session"),
			slog.String("market", market.Slug),
		),
		state:      StateConnecting,
		bucketSec:  -1,
		bucketSeen: make(map[domain.Outcome]bool, 2),
	}
}

// WithClock replaces the wall clock, for tests.
func (s *Session) WithClock(c Clock) *Session {
	s.clock = c
	return s
}

// WithQuoteCache mirrors every observed quote into the cache.
func (s *Session) WithQuoteCache(q domain.QuoteCache) *Session {
	s.quotes = q
	return s
}

// WithNotifier enables trade notifications.
func (s *Session) WithNotifier(n Notifier) *Session {
	s.notifier = n
	return s
}

// State returns the current lifecycle phase.
func (s *Session) State() State { return s.state }

// StopReason returns why the session ended. Meaningful once Run returns.
func (s *Session) StopReason() StopReason { return s.reason }

// Traded reports whether the buy fired this window. It stays true even
// when the submission failed; one attempt is all a window gets.
func (s *Session) Traded() bool { return s.traded }

// Run consumes frames until the window closes, the feed stalls or
// drops, or ctx is cancelled. A normally closed window reports
// domain.ErrWindowEnded the way a drained reader reports io.EOF; a dead
// feed reports domain.ErrStalledFeed. A closed message channel returns
// nil since the stream itself carries the transport error. Trading
// failures are never errors; those are ledger entries, not reasons to
// stop other markets.
func (s *Session) Run(ctx context.Context, msgs <-chan []byte) error {
	// The window close is pinned at start so a session that straddles
	// a boundary counts down against its own deadline.
	s.deadline = schedule.NextQuarter(s.clock.Now())
	s.state = StateStreaming
	s.logger.Info("session started",
		slog.Time("deadline", s.deadline),
		slog.String("up_token", s.market.UpTokenID),
		slog.String("down_token", s.market.DownTokenID),
	)

	for {
		select {
		case <-ctx.Done():
			s.terminate(StopCancelled)
			return ctx.Err()
		case raw, ok := <-msgs:
			if !ok {
				s.terminate(StopTransport)
				return nil
			}
			if stop := s.handleFrame(ctx, raw); stop {
				return s.stopErr()
			}
		}
	}
}

// --------------------------------------------------------------------------
// Frame handling
// --------------------------------------------------------------------------

// handleFrame processes one raw frame and reports whether the session
// should stop.
func (s *Session) handleFrame(ctx context.Context, raw []byte) bool {
	// A message arriving after the window already ended is the cue to
	// shut down; the closing message itself was still processed.
	if s.windowEnded {
		s.terminate(StopWindowEnded)
		return true
	}

	if remaining := schedule.SecondsUntil(s.clock.Now(), s.deadline); remaining <= 0 {
		s.windowEnded = true
		s.state = StateWindowEnding
		s.logger.Info("window ended, draining")
	}

	if bytes.Contains(raw, pongToken) {
		s.pongStreak++
		if s.pongStreak >= stalledPongLimit {
			s.logger.Warn("feed stalled", slog.Int("consecutive_pongs", s.pongStreak))
			s.terminate(StopStalledFeed)
			return true
		}
		return false
	}
	s.pongStreak = 0

	frame, err := polymarket.ParseFeedFrame(raw)
	if err != nil {
		s.logger.Debug("discarding frame", slog.String("error", err.Error()))
		return false
	}
	msg := frame.ToDomain()
	if msg.Timestamp == 0 || len(msg.PriceChanges) == 0 {
		return false
	}

	// Reset the de-dup bucket only when the exchange clock moves
	// forward. A replayed older second must not reopen spent slots, so
	// out-of-order messages dedup against the current flags.
	if sec := msg.Second(); sec > s.bucketSec {
		s.bucketSec = sec
		for k := range s.bucketSeen {
			delete(s.bucketSeen, k)
		}
	}

	msgTime := time.UnixMilli(msg.Timestamp)
	timeLeft := schedule.SecondsUntil(msgTime, s.deadline)

	for _, pc := range msg.PriceChanges {
		if pc.Side != domain.OrderSideBuy {
			continue
		}
		pick, ok := s.market.OutcomeFor(pc.AssetID)
		if !ok {
			s.logger.Warn("unmapped asset in frame", slog.String("asset_id", pc.AssetID))
			continue
		}
		if s.bucketSeen[pick] {
			continue
		}
		s.bucketSeen[pick] = true

		if s.quotes != nil {
			if err := s.quotes.SetQuote(ctx, pc.AssetID, domain.Quote{
				BestBid: pc.BestBid,
				BestAsk: pc.BestAsk,
				Seen:    msgTime,
			}); err != nil {
				s.logger.Debug("quote cache write failed", slog.String("error", err.Error()))
			}
		}

		s.evaluate(ctx, pick, pc, timeLeft, msgTime)
	}

	return false
}

// evaluate applies the decision rule for one de-duplicated update.
func (s *Session) evaluate(ctx context.Context, pick domain.Outcome, pc domain.PriceChange, timeLeft int, msgTime time.Time) {
	if s.traded || !s.evalInstant(timeLeft) || pc.BestAsk <= 0 {
		return
	}

	thr, ok := s.thresholds.Price(timeLeft)
	if !ok {
		return
	}
	if pc.BestAsk <= thr {
		return
	}
	if s.cfg.TargetSellPrice-s.cfg.GuardBand < pc.BestAsk {
		s.logger.Debug("no room below sell target",
			slog.Float64("best_ask", pc.BestAsk),
			slog.Int("time_left", timeLeft),
		)
		return
	}

	s.logger.Info("buy triggered",
		slog.String("pick", string(pick)),
		slog.Int("time_left", timeLeft),
		slog.Float64("best_ask", pc.BestAsk),
		slog.Float64("threshold", thr),
	)
	s.executeBuy(ctx, pick, pc, timeLeft, msgTime)
}

// evalInstant reports whether timeLeft is one of the configured
// evaluation instants.
func (s *Session) evalInstant(timeLeft int) bool {
	if timeLeft < s.cfg.EvalFrom || timeLeft > s.cfg.EvalTo {
		return false
	}
	return (timeLeft-s.cfg.EvalFrom)%s.cfg.EvalStep == 0
}

// --------------------------------------------------------------------------
// Order execution
// --------------------------------------------------------------------------

// executeBuy submits the buy and, when it lands, walks the sell ladder.
// traded flips regardless of the submission outcome: a failed buy still
// burns the window's single attempt.
func (s *Session) executeBuy(ctx context.Context, pick domain.Outcome, pc domain.PriceChange, timeLeft int, msgTime time.Time) {
	s.traded = true

	size := s.cfg.Notional / pc.BestAsk
	intent := domain.OrderIntent{
		TokenID: pc.AssetID,
		Side:    domain.OrderSideBuy,
		Price:   pc.BestAsk,
		Size:    size,
		Type:    domain.OrderTypeGTC,
	}

	result, err := s.gateway.PlaceOrder(ctx, intent)
	s.record(ctx, domain.TradeRecord{
		Timestamp: msgTime,
		Action:    domain.OrderSideBuy,
		TimeLeft:  timeLeft,
		Pick:      pick,
		Size:      size,
		Price:     pc.BestAsk,
	}, result, err)

	if err != nil {
		s.logger.Error("buy failed", slog.String("error", err.Error()))
		return
	}

	s.sellLadder(ctx, pick, pc.AssetID, size, timeLeft)
}

// sellLadder places the fixed number of sell orders at the target
// price, evenly spaced. Every attempt runs and is recorded even when an
// earlier one failed; duplicate fills are not possible because each
// order sells the same position and the book rejects oversells.
func (s *Session) sellLadder(ctx context.Context, pick domain.Outcome, assetID string, size float64, timeLeft int) {
	for attempt := 1; attempt <= s.cfg.Sell.Attempts; attempt++ {
		if err := s.clock.Sleep(ctx, s.cfg.Sell.Spacing); err != nil {
			s.logger.Warn("sell ladder interrupted", slog.Int("attempt", attempt))
			return
		}

		intent := domain.OrderIntent{
			TokenID: assetID,
			Side:    domain.OrderSideSell,
			Price:   s.cfg.TargetSellPrice,
			Size:    size,
			Type:    domain.OrderTypeGTC,
		}

		result, err := s.gateway.PlaceOrder(ctx, intent)
		s.record(ctx, domain.TradeRecord{
			Timestamp: s.clock.Now(),
			Action:    domain.OrderSideSell,
			TimeLeft:  timeLeft,
			Pick:      pick,
			Size:      size,
			Price:     s.cfg.TargetSellPrice,
		}, result, err)
		if err != nil {
			s.logger.Warn("sell attempt failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		}
	}
}

// record finalizes and appends a ledger row, then notifies.
func (s *Session) record(ctx context.Context, rec domain.TradeRecord, result domain.OrderResult, err error) {
	rec.ID = uuid.New().String()
	rec.Event = s.market.Title
	if err != nil {
		rec.Status = domain.TradeStatusFailed
		rec.Detail = err.Error()
	} else {
		rec.Status = domain.TradeStatusSuccess
		rec.Detail = fmt.Sprintf("order_id=%s status=%s", result.OrderID, result.Status)
	}

	if lerr := s.ledger.Append(ctx, rec); lerr != nil {
		s.logger.Error("ledger append failed", slog.String("error", lerr.Error()))
	}

	if s.notifier != nil {
		title := fmt.Sprintf("%s %s %s", rec.Status, rec.Action, s.market.Slug)
		body := fmt.Sprintf("pick=%s size=%.4f price=%.2f time_left=%d", rec.Pick, rec.Size, rec.Price, rec.TimeLeft)
		_ = s.notifier.Notify(ctx, "trade", title, body)
	}
}

func (s *Session) terminate(reason StopReason) {
	s.state = StateTerminated
	s.reason = reason
	s.logger.Info("session terminated", slog.String("reason", string(reason)))
}

// stopErr maps the stop reason onto the matching sentinel so callers
// can distinguish a closed window from a dead feed with errors.Is.
func (s *Session) stopErr() error {
	switch s.reason {
	case StopWindowEnded:
		return fmt.Errorf("session: %s: %w", s.market.Slug, domain.ErrWindowEnded)
	case StopStalledFeed:
		return fmt.Errorf("session: %d keep-alives without traffic: %w", s.pongStreak, domain.ErrStalledFeed)
	default:
		return nil
	}
}
