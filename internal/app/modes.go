package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/updownbot/internal/crypto"
	"github.com/alanyoungcy/updownbot/internal/domain"
	"github.com/alanyoungcy/updownbot/internal/feed"
	"github.com/alanyoungcy/updownbot/internal/history"
	"github.com/alanyoungcy/updownbot/internal/ledger"
	"github.com/alanyoungcy/updownbot/internal/platform/polymarket"
	"github.com/alanyoungcy/updownbot/internal/session"
	"github.com/alanyoungcy/updownbot/internal/threshold"
)

// TradeMode runs the session supervisor: one feed-driven trading session per
// symbol per 15-minute window, forever.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode",
		slog.Int("symbols", len(a.cfg.Trading.Symbols)),
		slog.Int64("base_suffix", a.cfg.Trading.BaseSuffix),
	)

	thresholds, err := threshold.Load(a.cfg.Trading.ThresholdFile)
	if err != nil {
		return fmt.Errorf("app: load thresholds: %w", err)
	}

	clob, err := a.buildClobClient(ctx)
	if err != nil {
		return err
	}

	csvLedger, err := ledger.NewCSV(a.cfg.Trading.LedgerFile)
	if err != nil {
		return fmt.Errorf("app: open ledger: %w", err)
	}

	tradeLedger := domain.TradeLedger(csvLedger)
	if deps.DBLedger != nil {
		tradeLedger = ledger.Multi(csvLedger, deps.DBLedger)
	}

	opener := func(ctx context.Context, market domain.Market) (session.MessageStream, error) {
		stream, err := feed.Dial(ctx, feed.Config{
			URL:      a.cfg.Polymarket.WsHost,
			Channel:  feed.MarketChannel,
			AssetIDs: market.TokenIDs(),
		}, a.logger)
		if err != nil {
			return nil, err
		}
		return stream, nil
	}

	sup := session.NewSupervisor(session.SupervisorConfig{
		Symbols:    a.cfg.Trading.Symbols,
		BaseSuffix: a.cfg.Trading.BaseSuffix,
		MaxCycles:  a.cfg.Trading.MaxCycles,
		Session: session.Config{
			TargetSellPrice: a.cfg.Trading.TargetSellPrice,
			GuardBand:       a.cfg.Trading.GuardBand,
			Notional:        a.cfg.Trading.Notional,
			EvalFrom:        a.cfg.Trading.EvalFrom,
			EvalTo:          a.cfg.Trading.EvalTo,
			EvalStep:        a.cfg.Trading.EvalStep,
			Sell: session.SellPolicy{
				Attempts: a.cfg.Trading.SellAttempts,
				Spacing:  a.cfg.Trading.SellSpacing.Duration,
			},
		},
	}, deps.Gamma, opener, clob, tradeLedger, thresholds, a.logger)

	if deps.Quotes != nil {
		sup.WithQuoteCache(deps.Quotes)
	}
	sup.WithNotifier(deps.Notifier)

	if deps.Archiver != nil {
		sup.WithCycleHook(func(ctx context.Context, cycle int, suffix int64) {
			if err := deps.Archiver.ArchiveFile(ctx, csvLedger.Path(), suffix); err != nil {
				a.logger.Warn("ledger archive failed",
					slog.Int("cycle", cycle),
					slog.String("error", err.Error()),
				)
			}
		})
	}

	return sup.Run(ctx)
}

// HistoryMode runs the backward outcome scan for the configured symbol and
// exits when the walk reaches the end of listed history.
func (a *App) HistoryMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting history mode",
		slog.String("symbol", a.cfg.History.Symbol),
		slog.Int64("base_suffix", a.cfg.Trading.BaseSuffix),
	)

	scanner := history.NewScanner(deps.Gamma, a.cfg.History.Symbol, a.cfg.History.ResultsFile, a.logger)
	if err := scanner.Run(ctx, a.cfg.Trading.BaseSuffix); err != nil {
		return err
	}

	// History runs are one-shot, so the results file is archived under a
	// timestamped key rather than a cycle suffix.
	if deps.Archiver != nil {
		if err := deps.Archiver.ArchiveSnapshot(ctx, a.cfg.History.ResultsFile, time.Now()); err != nil {
			a.logger.Warn("results archive failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// buildClobClient loads the wallet key, constructs the signing CLOB client,
// and derives API credentials when none are configured.
func (a *App) buildClobClient(ctx context.Context) (*polymarket.ClobClient, error) {
	key, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    a.cfg.Wallet.PrivateKey,
		EncryptedKeyPath: a.cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      a.cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("app: load wallet key: %w", err)
	}

	signer, err := crypto.NewSigner(key, a.cfg.Polymarket.ChainID)
	if err != nil {
		return nil, fmt.Errorf("app: signer: %w", err)
	}

	var hmacAuth *crypto.HMACAuth
	if a.cfg.Auth.ApiKey != "" {
		hmacAuth = &crypto.HMACAuth{
			Key:        a.cfg.Auth.ApiKey,
			Secret:     a.cfg.Auth.ApiSecret,
			Passphrase: a.cfg.Auth.ApiPassphrase,
		}
	}

	clob := polymarket.NewClobClient(a.cfg.Polymarket.ClobHost, signer, hmacAuth)
	if hmacAuth == nil {
		a.logger.Info("no API credentials configured, deriving from wallet")
		if err := clob.DeriveAPIKey(ctx); err != nil {
			return nil, fmt.Errorf("app: derive api key: %w", err)
		}
	}

	return clob, nil
}
