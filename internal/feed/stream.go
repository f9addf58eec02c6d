// Package feed owns the websocket transport for the CLOB real-time
// feed. It delivers raw frames over a channel and leaves interpretation
// to the session layer, which also watches the keep-alive replies. A
// dropped connection closes the channel; there is no reconnect here
// because a market window is short enough that the supervisor simply
// moves on to the next cycle.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/updownbot/internal/domain"
	"github.com/alanyoungcy/updownbot/internal/platform/polymarket"
)

// Channel names understood by the subscriptions endpoint.
const (
	MarketChannel = "market"
	UserChannel   = "user"
)

const (
	handshakeTimeout = 15 * time.Second

	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pingInterval spaces the literal "PING" keep-alive frames. The
	// server answers each with a "PONG" text frame.
	pingInterval = 5 * time.Second
)

// Config describes one subscription.
type Config struct {
	// URL is the subscriptions root, e.g.
	// "wss://ws-subscriptions-clob.polymarket.com/ws".
	URL     string
	Channel string

	// AssetIDs subscribes the market channel.
	AssetIDs []string

	// Markets (condition IDs) and Auth subscribe the user channel.
	Markets []string
	Auth    *polymarket.WSAuth
}

// Stream is a live subscription. Frames arrive on Messages until the
// connection drops or Close is called, after which Err reports why.
type Stream struct {
	conn   *websocket.Conn
	logger *slog.Logger

	msgs chan []byte
	done chan struct{}

	closeOnce sync.Once

	errMu sync.Mutex
	err   error
}

// Dial connects, sends the subscribe frame, and starts pumping frames.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Stream, error) {
	sub, err := subscribeFrame(cfg)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, cfg.URL+"/"+cfg.Channel, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: connect %s: %w", cfg.Channel, err)
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("feed: subscribe %s: %w", cfg.Channel, err)
	}

	s := &Stream{
		conn:   conn,
		logger: logger.With(slog.String("component", "feed"), slog.String("channel", cfg.Channel)),
		msgs:   make(chan []byte, 64),
		done:   make(chan struct{}),
	}

	go s.readLoop()
	go s.pingLoop()

	return s, nil
}

// Messages returns the frame channel. It is closed when the stream dies.
func (s *Stream) Messages() <-chan []byte {
	return s.msgs
}

// Err reports why the stream stopped. It is meaningful once Messages is
// closed; a clean Close returns nil.
func (s *Stream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close tears the connection down. Safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = s.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		s.conn.Close()
	})
	return nil
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

func (s *Stream) readLoop() {
	defer close(s.msgs)

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				// Deliberate close, not a transport failure.
			default:
				s.setErr(fmt.Errorf("feed: %w: %w", domain.ErrWSDisconnect, err))
				s.logger.Warn("connection dropped", slog.String("error", err.Error()))
			}
			return
		}

		select {
		case s.msgs <- raw:
		case <-s.done:
			return
		}
	}
}

// pingLoop writes the literal text "PING" on a fixed cadence. The reply
// frames flow through the normal message channel so the consumer can
// count them against real traffic.
func (s *Stream) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, []byte("PING")); err != nil {
				s.setErr(fmt.Errorf("feed: %w: keep-alive write: %w", domain.ErrWSDisconnect, err))
				s.conn.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Stream) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func subscribeFrame(cfg Config) (any, error) {
	switch cfg.Channel {
	case MarketChannel:
		if len(cfg.AssetIDs) == 0 {
			return nil, fmt.Errorf("feed: market channel needs asset IDs")
		}
		return polymarket.MarketSubscription{
			AssetIDs:  cfg.AssetIDs,
			Type:      MarketChannel,
			Operation: "subscribe",
		}, nil
	case UserChannel:
		if cfg.Auth == nil {
			return nil, fmt.Errorf("feed: %w: user channel needs credentials", domain.ErrUnauthorized)
		}
		return polymarket.UserSubscription{
			Markets: cfg.Markets,
			Type:    UserChannel,
			Auth:    cfg.Auth,
		}, nil
	default:
		return nil, fmt.Errorf("feed: unknown channel %q", cfg.Channel)
	}
}
