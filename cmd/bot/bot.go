package main

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ermakus/freqtrade/internal/api"
	"github.com/ermakus/freqtrade/internal/config"
	"github.com/ermakus/freqtrade/internal/domain"
	"github.com/ermakus/freqtrade/internal/exchange"
	"github.com/ermakus/freqtrade/internal/exchange/binance"
	"github.com/ermakus/freqtrade/internal/exchange/paper"
	"github.com/ermakus/freqtrade/internal/notify"
	"github.com/ermakus/freqtrade/internal/orchestrator"
	"github.com/ermakus/freqtrade/internal/performance"
	"github.com/ermakus/freqtrade/internal/reconcile"
	"github.com/ermakus/freqtrade/internal/signal"
	"github.com/ermakus/freqtrade/internal/strategy"
	"github.com/ermakus/freqtrade/internal/trading"
	"github.com/ermakus/freqtrade/internal/watchdog"
	"github.com/ermakus/freqtrade/internal/whitelist"
)

// Bot holds the wired components of one process.
type Bot struct {
	cfg      *config.Config
	logger   *zap.Logger
	stores   *stores
	loop     *orchestrator.Loop
	notifier *notify.Dispatcher
	hub      *notify.Hub
	watchdog *watchdog.Watchdog
	reporter *performance.Reporter
	api      *api.Server
}

// newBot builds every component from cfg.
func newBot(cfg *config.Config, st *stores, logger *zap.Logger) (*Bot, error) {
	ex := buildExchange(cfg, logger)

	strat, err := strategy.FromConfig(cfg.StrategyConfig())
	if err != nil {
		return nil, fmt.Errorf("strategy: %w", err)
	}
	logger.Info("strategy loaded",
		zap.String("strategy", strat.ID()),
		zap.Int("ticker_interval", strat.TickerInterval()),
		zap.String("stoploss", strat.Stoploss().String()),
	)

	hub := notify.NewHub(logger, allowOrigin(cfg.API.AllowedOrigins))
	sinks := []notify.Sink{notify.NewLogSink(logger), hub}
	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegram(notify.TelegramOptions{
			Token:     cfg.Telegram.Token,
			ChatID:    cfg.Telegram.ChatID,
			APIServer: cfg.Telegram.APIServer,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, tg)
	}
	dispatcher := notify.NewDispatcher(logger, sinks...)

	state := orchestrator.NewState(cfg.Run(), domain.NewBlacklist())
	journal := trading.NewJournal(st.events, logger)

	wl, err := whitelist.New(whitelist.Options{
		Exchange:      ex,
		StakeCurrency: cfg.StakeCurrency,
		VolumeKey:     cfg.WhitelistVolumeKey,
		TTL:           cfg.WhitelistTTL,
		Blacklist:     cfg.Exchange.PairBlacklist,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("whitelist: %w", err)
	}

	analyzer := signal.New(signal.Options{
		Exchange: ex,
		Strategy: strat,
		MaxAge:   cfg.SignalMaxAge,
		Logger:   logger,
	})

	trades := trading.New(trading.Options{
		Exchange:      ex,
		Signals:       analyzer,
		Store:         st.trades,
		Journal:       journal,
		Notifier:      dispatcher,
		Blacklist:     state.Blacklist(),
		StakeCurrency: cfg.StakeCurrency,
		ROI:           strat.MinimalROI(),
		Stoploss:      strat.Stoploss(),
		Policy: trading.Policy{
			BidBalance:           decimal.NewFromFloat(cfg.BidStrategy.AskLastBalance),
			UseSellSignal:        cfg.Experimental.UseSellSignal,
			SellProfitOnly:       cfg.Experimental.SellProfitOnly,
			IgnoreROIIfBuySignal: cfg.Experimental.IgnoreROIIfBuySignal,
		},
		Logger: logger,
	})

	partial, err := reconcile.ParsePartialSellPolicy(cfg.PartialSellPolicy)
	if err != nil {
		return nil, err
	}
	reconciler := reconcile.New(reconcile.Options{
		Exchange:    ex,
		Store:       st.trades,
		Journal:     journal,
		Notifier:    dispatcher,
		PartialSell: partial,
		Logger:      logger,
	})

	wd := watchdog.New(cfg.HeartbeatTimeout(), nil)

	loop := orchestrator.New(orchestrator.Options{
		Whitelist:  wl,
		Trades:     trades,
		Reconciler: reconciler,
		Store:      st.trades,
		Notifier:   dispatcher,
		Heartbeat:  wd,
		State:      state,
		Config: orchestrator.CycleConfig{
			StaticWhitelist:  cfg.Exchange.PairWhitelist,
			DynamicWhitelist: cfg.DynamicWhitelist,
			StakeAmount:      cfg.Stake(),
			MaxOpenTrades:    cfg.MaxOpenTrades,
			UnfilledTimeout:  cfg.UnfilledTimeoutDuration(),
			ThrottleInterval: cfg.ThrottleInterval(),
			IdleInterval:     cfg.IdleInterval(),
			RetryBackoff:     cfg.RetryBackoff(),
		},
		Logger: logger,
	})

	reporter := performance.NewReporter(performance.ReporterOptions{
		Store:         st.trades,
		Notifier:      dispatcher,
		StakeCurrency: cfg.StakeCurrency,
		Logger:        logger,
	})

	b := &Bot{
		cfg:      cfg,
		logger:   logger,
		stores:   st,
		loop:     loop,
		notifier: dispatcher,
		hub:      hub,
		watchdog: wd,
		reporter: reporter,
	}
	if cfg.API.Enabled {
		b.api = api.New(api.Options{
			Controller:     loop,
			Status:         state,
			Trades:         st.trades,
			Profit:         reporter,
			Health:         wd,
			Stream:         hub,
			JWTSecret:      cfg.API.JWTSecret,
			AllowedOrigins: cfg.API.AllowedOrigins,
			Logger:         logger,
		})
	}
	return b, nil
}

// buildExchange returns the instrumented live adapter, or a paper account
// over live market data in dry-run mode.
func buildExchange(cfg *config.Config, logger *zap.Logger) exchange.Exchange {
	live := binance.New(binance.Options{
		APIKey:    cfg.Exchange.Key,
		SecretKey: cfg.Exchange.Secret,
		BaseURL:   cfg.Exchange.BaseURL,
		Logger:    logger,
	})
	ex := exchange.Exchange(exchange.Instrument(live))
	if cfg.DryRun {
		logger.Info("dry run enabled", zap.Float64("wallet", cfg.DryRunWallet))
		return paper.New(paper.Options{
			Market:        ex,
			StakeCurrency: cfg.StakeCurrency,
			Wallet:        decimal.NewFromFloat(cfg.DryRunWallet),
			Fee:           decimal.RequireFromString("0.001"),
			Logger:        logger,
		})
	}
	return ex
}

// allowOrigin accepts same-host requests and the configured CORS origins.
func allowOrigin(origins []string) func(string) bool {
	if len(origins) == 0 {
		return nil
	}
	return func(origin string) bool {
		return slices.Contains(origins, origin) || slices.Contains(origins, "*")
	}
}

// Run starts the background services and the control loop. It returns the
// loop's error, nil on a clean stop.
func (b *Bot) Run(ctx context.Context) error {
	scheduler := cron.New(cron.WithSeconds())
	if b.cfg.ReportCron != "" {
		if _, err := scheduler.AddFunc(b.cfg.ReportCron, func() { b.reporter.Send(ctx) }); err != nil {
			return fmt.Errorf("report schedule %q: %w", b.cfg.ReportCron, err)
		}
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	go b.watchdog.Monitor(ctx, time.Minute, func(since time.Time) {
		b.logger.Error("control loop stalled", zap.Time("last_heartbeat", since))
		b.notifier.Send(ctx, fmt.Sprintf("*Status:* control loop silent since `%s`", since.Format(time.RFC3339)))
	})

	if b.api != nil {
		go func() {
			if err := b.api.ListenAndServe(ctx, b.cfg.API.ListenAddr); err != nil {
				b.logger.Error("api server stopped", zap.Error(err))
			}
		}()
	}

	return b.loop.Run(ctx)
}

// Shutdown flushes state and sends the final notification.
func (b *Bot) Shutdown(cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.loop.Shutdown(ctx, cause); err != nil {
		b.logger.Error("shutdown flush failed", zap.Error(err))
	}
	b.hub.Close()
}
