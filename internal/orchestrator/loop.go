// Package orchestrator runs the trading control loop: the run/stop state
// machine, the throttled orchestration cycle and error containment.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ermakus/freqtrade/internal/domain"
	"github.com/ermakus/freqtrade/internal/exchange"
	"github.com/ermakus/freqtrade/internal/notify"
	"github.com/ermakus/freqtrade/internal/observability"
	"github.com/ermakus/freqtrade/internal/reconcile"
	"github.com/ermakus/freqtrade/internal/storage"
	"github.com/ermakus/freqtrade/internal/trading"
)

// Defaults for CycleConfig.
const (
	DefaultThrottleInterval = 10 * time.Second
	DefaultIdleInterval     = time.Second
	DefaultRetryBackoff     = 30 * time.Second
	commandQueueSize        = 16
)

// ErrCommandQueueFull is returned by Submit when commands arrive faster than
// the loop applies them.
var ErrCommandQueueFull = errors.New("command queue full")

// WhitelistSource produces the tradable pairs for a cycle.
type WhitelistSource interface {
	Refresh(ctx context.Context, static []string, dynamicCount int) ([]string, error)
}

// TradeManager runs the entry and exit algorithms.
type TradeManager interface {
	TryCreateTrade(ctx context.Context, whitelist []string, stake decimal.Decimal) (trading.CreateResult, error)
	HandleOpenTrade(ctx context.Context, trade *domain.TradeRecord) (bool, error)
}

// OrderReconciler synchronises fills and expires stale orders.
type OrderReconciler interface {
	Sync(ctx context.Context, trade *domain.TradeRecord) (reconcile.SyncOutcome, error)
	Sweep(ctx context.Context, timeout time.Duration) (reconcile.SweepResult, error)
}

// Heartbeater receives one liveness signal per iteration.
type Heartbeater interface {
	Beat(t time.Time)
}

// CycleConfig holds the per-cycle trading parameters.
type CycleConfig struct {
	StaticWhitelist  []string
	DynamicWhitelist int
	StakeAmount      decimal.Decimal
	MaxOpenTrades    int
	UnfilledTimeout  time.Duration // zero disables the sweep
	ThrottleInterval time.Duration
	IdleInterval     time.Duration
	RetryBackoff     time.Duration
}

// Options configures the Loop.
type Options struct {
	Whitelist  WhitelistSource
	Trades     TradeManager
	Reconciler OrderReconciler
	Store      storage.TradeStore
	Notifier   trading.Notifier
	Heartbeat  Heartbeater
	State      *State
	Config     CycleConfig
	Clock      Clock
	Logger     *zap.Logger
}

// FatalError is returned by Run when the loop cannot continue.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "fatal: " + e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

// Loop is the top-level scheduler.
type Loop struct {
	whitelist  WhitelistSource
	trades     TradeManager
	reconciler OrderReconciler
	store      storage.TradeStore
	notifier   trading.Notifier
	heartbeat  Heartbeater
	state      *State
	cfg        CycleConfig
	clock      Clock
	throttle   *Throttle
	commands   chan domain.Event
	logger     *zap.Logger
}

// New creates a Loop.
func New(opts Options) *Loop {
	cfg := opts.Config
	if cfg.ThrottleInterval <= 0 {
		cfg.ThrottleInterval = DefaultThrottleInterval
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = DefaultIdleInterval
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	state := opts.State
	if state == nil {
		state = NewState(domain.StateStopped, nil)
	}
	return &Loop{
		whitelist:  opts.Whitelist,
		trades:     opts.Trades,
		reconciler: opts.Reconciler,
		store:      opts.Store,
		notifier:   opts.Notifier,
		heartbeat:  opts.Heartbeat,
		state:      state,
		cfg:        cfg,
		clock:      clock,
		throttle:   NewThrottle(clock, cfg.ThrottleInterval),
		commands:   make(chan domain.Event, commandQueueSize),
		logger:     logger.Named("loop"),
	}
}

// State returns the shared bot state.
func (l *Loop) State() *State { return l.state }

// Submit queues a run state event. It is applied at the next iteration.
func (l *Loop) Submit(e domain.Event) error {
	select {
	case l.commands <- e:
		return nil
	default:
		return ErrCommandQueueFull
	}
}

// Start queues EventStart.
func (l *Loop) Start() error { return l.Submit(domain.EventStart) }

// Stop queues EventStop.
func (l *Loop) Stop() error { return l.Submit(domain.EventStop) }

// Run iterates until ctx is cancelled (nil) or a fatal fault occurs
// (*FatalError). A panic inside a cycle is converted to a FatalError.
func (l *Loop) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			observability.RecordCycle("fatal", 0)
			err = &FatalError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	var prev domain.RunState
	first := true
	for {
		if ctx.Err() != nil {
			return nil
		}
		l.drainCommands()

		cur := l.state.Run()
		if first || cur != prev {
			l.logger.Info("state changed", zap.String("state", cur.String()))
			l.notify(ctx, notify.StateChanged(cur.String()))
			observability.SetRunning(cur == domain.StateRunning)
		}
		first, prev = false, cur

		if l.heartbeat != nil {
			l.heartbeat.Beat(l.clock.Now())
		}

		if cur == domain.StateStopped {
			if l.clock.Sleep(ctx, l.cfg.IdleInterval) != nil {
				return nil
			}
			continue
		}

		cycleErr := l.throttle.Run(ctx, l.cycle)
		if cycleErr == nil || ctx.Err() != nil {
			continue
		}
		if fatal := l.handle(ctx, cycleErr); fatal != nil {
			return fatal
		}
	}
}

func (l *Loop) drainCommands() {
	for {
		select {
		case e := <-l.commands:
			from := l.state.Run()
			to := l.state.apply(e)
			l.logger.Debug("command applied",
				zap.String("event", e.String()),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		default:
			return
		}
	}
}

// handle applies the failure policy to a cycle error. It returns a
// FatalError when the loop must terminate.
func (l *Loop) handle(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, exchange.ErrTransient):
		l.logger.Warn("cycle aborted, backing off",
			zap.Error(err), zap.Duration("backoff", l.cfg.RetryBackoff))
		_ = l.clock.Sleep(ctx, l.cfg.RetryBackoff)
		return nil
	case errors.Is(err, exchange.ErrOperational):
		l.logger.Error("operational fault, stopping", zap.Error(err))
		l.notify(ctx, notify.OperationalFault(err))
		l.state.apply(domain.EventFault)
		return nil
	default:
		l.logger.Error("fatal cycle error", zap.Error(err))
		return &FatalError{Err: err}
	}
}

// cycle runs one orchestration pass and records its outcome.
func (l *Loop) cycle(ctx context.Context) error {
	start := l.clock.Now()
	whitelist, err := l.runCycle(ctx)
	l.state.recordCycle(start, whitelist, err)
	observability.RecordCycle(outcome(err), l.clock.Now().Sub(start).Seconds())
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, exchange.ErrTransient):
		return "transient"
	case errors.Is(err, exchange.ErrOperational):
		return "operational"
	default:
		return "fatal"
	}
}

func (l *Loop) runCycle(ctx context.Context) ([]string, error) {
	whitelist, err := l.whitelist.Refresh(ctx, l.cfg.StaticWhitelist, l.cfg.DynamicWhitelist)
	if err != nil {
		return nil, fmt.Errorf("refresh whitelist: %w", err)
	}
	observability.SetWhitelistSize(len(whitelist))

	open, err := l.store.GetOpen(ctx)
	if err != nil {
		return whitelist, fmt.Errorf("query open trades: %w", err)
	}

	stillOpen := 0
	for _, trade := range open {
		if err := l.processOpen(ctx, trade); err != nil {
			return whitelist, err
		}
		if trade.IsOpen {
			stillOpen++
		}
	}

	if stillOpen < l.cfg.MaxOpenTrades {
		res, err := l.trades.TryCreateTrade(ctx, whitelist, l.cfg.StakeAmount)
		switch {
		case trading.IsDependency(err):
			l.logger.Warn("no trade created", zap.Error(err))
		case err != nil:
			return whitelist, fmt.Errorf("create trade: %w", err)
		case res.Outcome != trading.OutcomeNoSignal:
			l.logger.Info("entry attempt", zap.String("outcome", res.Outcome.String()), zap.String("pair", res.Pair))
		}
	}

	if l.cfg.UnfilledTimeout > 0 {
		res, err := l.reconciler.Sweep(ctx, l.cfg.UnfilledTimeout)
		if err != nil {
			return whitelist, fmt.Errorf("sweep orders: %w", err)
		}
		if res.Checked > 0 {
			l.logger.Debug("sweep done",
				zap.Int("checked", res.Checked),
				zap.Int("deleted", res.Deleted),
				zap.Int("settled", res.Settled),
				zap.Int("reopened", res.Reopened),
				zap.Int("reduced", res.Reduced),
				zap.Int("filled", res.Filled),
				zap.Int("dropped", res.Dropped),
				zap.Int("failed", res.Failed),
			)
		}
	}

	if err := l.store.Flush(ctx); err != nil {
		return whitelist, fmt.Errorf("flush trades: %w", err)
	}

	if open, err := l.store.GetOpen(ctx); err == nil {
		observability.SetOpenTrades(len(open))
	}
	return whitelist, nil
}

// processOpen syncs a pending order, then evaluates an idle trade for exit.
func (l *Loop) processOpen(ctx context.Context, trade *domain.TradeRecord) error {
	if trade.HasPendingOrder() {
		if _, err := l.reconciler.Sync(ctx, trade); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// One unreadable order must not stall every other trade.
			l.logger.Warn("order sync failed, skipping trade",
				zap.String("trade_id", trade.ID),
				zap.String("pair", trade.Pair),
				zap.String("class", exchange.Class(err)),
				zap.Error(err),
			)
			return nil
		}
	}
	if !trade.IsOpen || trade.HasPendingOrder() {
		return nil
	}
	_, err := l.trades.HandleOpenTrade(ctx, trade)
	if errors.Is(err, exchange.ErrTradeRejected) {
		l.logger.Warn("sell rejected", zap.String("pair", trade.Pair), zap.Error(err))
		return nil
	}
	if err != nil {
		return fmt.Errorf("handle %s: %w", trade.Pair, err)
	}
	return nil
}

// Shutdown stops the bot, flushes the store and sends the final
// notification. cause is the error returned by Run, if any.
func (l *Loop) Shutdown(ctx context.Context, cause error) error {
	l.state.apply(domain.EventStop)
	observability.SetRunning(false)

	var flushErr error
	if l.store != nil {
		if flushErr = l.store.Flush(ctx); flushErr != nil {
			l.logger.Error("flush on shutdown failed", zap.Error(flushErr))
		}
	}

	if cause != nil {
		l.notify(ctx, notify.Fatal(cause))
	} else {
		l.notify(ctx, notify.Stopping())
	}
	return flushErr
}

func (l *Loop) notify(ctx context.Context, msg string) {
	if l.notifier != nil {
		l.notifier.Send(ctx, msg)
	}
}
