// Package trading opens and closes positions based on strategy signals.
package trading

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
	"github.com/ermakus/freqtrade/internal/storage"
)

// SignalPort evaluates the strategy for a pair. It never fails; missing,
// stale or malformed data yields domain.NoSignal.
type SignalPort interface {
	Evaluate(ctx context.Context, pair string) domain.Signal
}

// Policy holds the exit and entry toggles.
type Policy struct {
	// BidBalance weights the entry price between ask (0) and last (1).
	BidBalance decimal.Decimal

	// UseSellSignal evaluates the strategy for open trades.
	UseSellSignal bool

	// SellProfitOnly suppresses signal sells while the trade is not profitable.
	SellProfitOnly bool

	// IgnoreROIIfBuySignal skips ROI and stoploss exits while the buy signal
	// is still active.
	IgnoreROIIfBuySignal bool
}

// DefaultPolicy returns the stock policy.
func DefaultPolicy() Policy {
	return Policy{IgnoreROIIfBuySignal: true}
}

// Options configures the Manager.
type Options struct {
	Exchange      exchange.Exchange
	Signals       SignalPort
	Store         storage.TradeStore
	Journal       *Journal
	Notifier      Notifier
	Blacklist     *domain.Blacklist
	StakeCurrency string
	ROI           domain.ROITable
	Stoploss      decimal.Decimal // zero disables
	Policy        Policy
	Now           func() time.Time
	Logger        *zap.Logger
}

// Outcome tags the result of TryCreateTrade.
type Outcome int

const (
	OutcomeNoSignal Outcome = iota
	OutcomeCreated
	OutcomeBlacklisted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeBlacklisted:
		return "blacklisted"
	default:
		return "no_signal"
	}
}

// CreateResult is the outcome of an entry attempt.
type CreateResult struct {
	Outcome Outcome
	Pair    string
	Trade   *domain.TradeRecord // set when Outcome == OutcomeCreated
}

// Manager runs the entry and exit algorithms.
type Manager struct {
	exchange  exchange.Exchange
	signals   SignalPort
	store     storage.TradeStore
	journal   *Journal
	notifier  Notifier
	blacklist *domain.Blacklist
	stake     string
	roi       domain.ROITable
	stoploss  decimal.Decimal
	policy    Policy
	now       func() time.Time
	logger    *zap.Logger
}

// New creates a Manager.
func New(opts Options) *Manager {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	bl := opts.Blacklist
	if bl == nil {
		bl = domain.NewBlacklist()
	}
	return &Manager{
		exchange:  opts.Exchange,
		signals:   opts.Signals,
		store:     opts.Store,
		journal:   opts.Journal,
		notifier:  opts.Notifier,
		blacklist: bl,
		stake:     opts.StakeCurrency,
		roi:       opts.ROI,
		stoploss:  opts.Stoploss,
		policy:    opts.Policy,
		now:       now,
		logger:    logger.Named("trading"),
	}
}

// TryCreateTrade opens a trade on the first whitelisted pair with a buy
// signal. Unmet preconditions return a *DependencyError.
func (m *Manager) TryCreateTrade(ctx context.Context, whitelist []string, stake decimal.Decimal) (CreateResult, error) {
	balance, err := m.exchange.GetBalance(ctx, m.stake)
	if err != nil {
		return CreateResult{}, fmt.Errorf("get balance: %w", err)
	}
	if balance.LessThan(stake) {
		return CreateResult{}, &DependencyError{
			Err:    ErrInsufficientBalance,
			Detail: fmt.Sprintf("currency=%s balance=%s stake=%s", m.stake, balance, stake),
		}
	}

	candidates, err := m.candidates(ctx, whitelist)
	if err != nil {
		return CreateResult{}, err
	}
	if len(candidates) == 0 {
		return CreateResult{}, &DependencyError{Err: ErrNoCandidates}
	}

	pair := ""
	for _, p := range candidates {
		if sig := m.signals.Evaluate(ctx, p); sig.IsEntry() {
			pair = p
			break
		}
	}
	if pair == "" {
		return CreateResult{Outcome: OutcomeNoSignal}, nil
	}

	ticker, err := m.exchange.GetTicker(ctx, pair)
	if err != nil {
		return CreateResult{}, fmt.Errorf("get ticker %s: %w", pair, err)
	}
	limit := TargetBid(ticker, m.policy.BidBalance)
	if !limit.IsPositive() {
		return CreateResult{}, exchange.Transient("target bid", fmt.Errorf("non-positive price %s for %s", limit, pair))
	}
	amount := stake.Div(limit)

	fee, err := m.exchange.GetFee(ctx)
	if err != nil {
		return CreateResult{}, fmt.Errorf("get fee: %w", err)
	}

	orderID, err := m.exchange.Buy(ctx, pair, limit, amount)
	if errors.Is(err, exchange.ErrTradeRejected) {
		m.blacklistPair(ctx, pair, err)
		return CreateResult{Outcome: OutcomeBlacklisted, Pair: pair}, nil
	}
	if err != nil {
		return CreateResult{}, fmt.Errorf("buy %s: %w", pair, err)
	}

	now := m.now()
	trade := domain.NewTradeRecord(pair, m.exchange.Name(), stake, amount, limit, fee, orderID, now)
	if err := m.store.Insert(ctx, trade); err != nil {
		return CreateResult{}, fmt.Errorf("insert trade: %w", err)
	}

	m.logger.Info("trade opened",
		zap.String("trade_id", trade.ID),
		zap.String("pair", pair),
		zap.String("limit", limit.String()),
		zap.String("amount", amount.String()),
		zap.String("order_id", orderID),
	)
	m.notify(ctx, notify.BuyPlaced(m.exchange.Name(), pair, limit, stake, m.stake))
	m.journal.Record(ctx, &domain.TradeEvent{
		TradeID:   trade.ID,
		Pair:      pair,
		Kind:      domain.EventKindBuyPlaced,
		Rate:      limit,
		Amount:    amount,
		Timestamp: now,
	})
	observability.RecordTradeOpened()

	return CreateResult{Outcome: OutcomeCreated, Pair: pair, Trade: trade}, nil
}

// candidates removes pairs with an open trade and runtime-blacklisted pairs.
func (m *Manager) candidates(ctx context.Context, whitelist []string) ([]string, error) {
	open, err := m.store.GetOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("get open trades: %w", err)
	}
	busy := make(map[string]struct{}, len(open))
	for _, t := range open {
		busy[t.Pair] = struct{}{}
	}

	out := make([]string, 0, len(whitelist))
	for _, p := range whitelist {
		if _, ok := busy[p]; ok {
			m.logger.Debug("ignoring pair with open trade", zap.String("pair", p))
			continue
		}
		if m.blacklist.Contains(p) {
			m.logger.Debug("ignoring blacklisted pair", zap.String("pair", p))
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *Manager) blacklistPair(ctx context.Context, pair string, cause error) {
	m.blacklist.Add(pair)
	m.logger.Warn("pair blacklisted", zap.String("pair", pair), zap.Error(cause))
	m.notify(ctx, notify.Blacklisted(pair, cause))
	m.journal.Record(ctx, &domain.TradeEvent{
		Pair:      pair,
		Kind:      domain.EventKindPairBlacklisted,
		Reason:    cause.Error(),
		Timestamp: m.now(),
	})
	observability.RecordPairBlacklisted()
}

// HandleOpenTrade sells trade when an exit condition holds. Trades that are
// closed or have a pending order are left alone. Reports whether a sell
// order was placed.
func (m *Manager) HandleOpenTrade(ctx context.Context, trade *domain.TradeRecord) (bool, error) {
	if !trade.IsOpen || trade.HasPendingOrder() {
		return false, nil
	}

	ticker, err := m.exchange.GetTicker(ctx, trade.Pair)
	if err != nil {
		return false, fmt.Errorf("get ticker %s: %w", trade.Pair, err)
	}
	rate := ticker.Bid

	sig := domain.NoSignal
	if m.policy.UseSellSignal {
		sig = m.signals.Evaluate(ctx, trade.Pair)
	}

	reason, ok := m.shouldSell(trade, rate, sig)
	if !ok {
		return false, nil
	}
	return true, m.executeSell(ctx, trade, rate, reason)
}

func (m *Manager) shouldSell(trade *domain.TradeRecord, rate decimal.Decimal, sig domain.Signal) (string, bool) {
	if !(sig.Buy && m.policy.IgnoreROIIfBuySignal) {
		if reason, ok := MinROIReached(trade, rate, m.now(), m.roi, m.stoploss); ok {
			return reason, true
		}
	}

	if m.policy.SellProfitOnly && !sig.Buy && !trade.CalcProfit(rate).IsPositive() {
		return "", false
	}

	if sig.IsExit() {
		return domain.ExitReasonSellSignal, true
	}
	return "", false
}

// executeSell places a limit sell at rate. The trade stays open until the
// order fills.
func (m *Manager) executeSell(ctx context.Context, trade *domain.TradeRecord, rate decimal.Decimal, reason string) error {
	orderID, err := m.exchange.Sell(ctx, trade.Pair, rate, trade.Amount)
	if err != nil {
		return fmt.Errorf("sell %s: %w", trade.Pair, err)
	}
	trade.SetPendingOrder(orderID)
	if err := m.store.Update(ctx, trade); err != nil {
		return fmt.Errorf("update trade %s: %w", trade.ID, err)
	}

	profitPct := trade.CalcProfitPercent(rate)
	profit := trade.CalcProfit(rate)

	m.logger.Info("sell placed",
		zap.String("trade_id", trade.ID),
		zap.String("pair", trade.Pair),
		zap.String("reason", reason),
		zap.String("limit", rate.String()),
		zap.String("expected_profit_pct", profitPct.Mul(decimal.NewFromInt(100)).StringFixed(2)),
		zap.String("expected_profit", profit.String()),
	)
	m.notify(ctx, notify.SellPlaced(trade.Exchange, trade.Pair, rate, profitPct, profit, m.stake, reason))
	m.journal.Record(ctx, &domain.TradeEvent{
		TradeID:   trade.ID,
		Pair:      trade.Pair,
		Kind:      domain.EventKindSellPlaced,
		Rate:      rate,
		Amount:    trade.Amount,
		Profit:    profitPct,
		Reason:    reason,
		Timestamp: m.now(),
	})
	return nil
}

func (m *Manager) notify(ctx context.Context, msg string) {
	if m.notifier != nil {
		m.notifier.Send(ctx, msg)
	}
}
