// Package reconcile keeps trades in step with their exchange orders and
// cancels orders that stayed unfilled for too long.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ermakus/freqtrade/internal/domain"
	"github.com/ermakus/freqtrade/internal/exchange"
	"github.com/ermakus/freqtrade/internal/notify"
	"github.com/ermakus/freqtrade/internal/observability"
	"github.com/ermakus/freqtrade/internal/storage"
	"github.com/ermakus/freqtrade/internal/trading"
)

// PartialSellPolicy decides what happens to an expired, partially filled sell.
type PartialSellPolicy string

const (
	// PartialSellLeave keeps the order working and only logs.
	PartialSellLeave PartialSellPolicy = "leave"
	// PartialSellCancel cancels the remainder and keeps it as an open position.
	PartialSellCancel PartialSellPolicy = "cancel"
)

// ParsePartialSellPolicy validates a policy name. Empty selects PartialSellLeave.
func ParsePartialSellPolicy(s string) (PartialSellPolicy, error) {
	switch PartialSellPolicy(s) {
	case "", PartialSellLeave:
		return PartialSellLeave, nil
	case PartialSellCancel:
		return PartialSellCancel, nil
	default:
		return "", fmt.Errorf("unknown partial sell policy %q", s)
	}
}

// Options configures the Reconciler.
type Options struct {
	Exchange    exchange.Exchange
	Store       storage.TradeStore
	Journal     *trading.Journal
	Notifier    trading.Notifier
	PartialSell PartialSellPolicy
	Now         func() time.Time
	Logger      *zap.Logger
}

// SweepResult counts what one sweep did.
type SweepResult struct {
	Checked   int
	Deleted   int // unfilled buys cancelled
	Settled   int // partial buys kept at filled amount
	Filled    int // orders found fully filled on expiry
	Reopened  int // unfilled sells cancelled
	Reduced   int // partial sells cancelled
	Untouched int // partial sells left working
	Dropped   int // closed orders of unknown side forgotten
	Failed    int // lookup or cancel failures
}

// SyncOutcome tags the result of Sync.
type SyncOutcome int

const (
	SyncNone SyncOutcome = iota
	SyncPending
	SyncBuyFilled
	SyncSellFilled
)

// Reconciler sweeps pending orders.
type Reconciler struct {
	exchange    exchange.Exchange
	store       storage.TradeStore
	journal     *trading.Journal
	notifier    trading.Notifier
	partialSell PartialSellPolicy
	now         func() time.Time
	logger      *zap.Logger
}

// New creates a Reconciler.
func New(opts Options) *Reconciler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := opts.PartialSell
	if policy == "" {
		policy = PartialSellLeave
	}
	return &Reconciler{
		exchange:    opts.Exchange,
		store:       opts.Store,
		journal:     opts.Journal,
		notifier:    opts.Notifier,
		partialSell: policy,
		now:         now,
		logger:      logger.Named("reconcile"),
	}
}

// Sync applies a completed order to trade. Orders that are still working
// or were closed without a full fill leave the trade untouched.
func (r *Reconciler) Sync(ctx context.Context, trade *domain.TradeRecord) (SyncOutcome, error) {
	if !trade.IsOpen || !trade.HasPendingOrder() {
		return SyncNone, nil
	}

	order, err := r.exchange.GetOrder(ctx, trade.Pair, trade.PendingOrderID())
	if err != nil {
		return SyncNone, fmt.Errorf("get order %s: %w", trade.PendingOrderID(), err)
	}
	if !order.Closed || !order.FullyFilled() {
		return SyncPending, nil
	}
	return r.applyFill(ctx, trade, order)
}

// applyFill confirms a filled buy or closes the trade on a filled sell.
func (r *Reconciler) applyFill(ctx context.Context, trade *domain.TradeRecord, order *domain.Order) (SyncOutcome, error) {
	now := r.now()
	switch order.Type {
	case domain.OrderTypeLimitBuy:
		trade.Amount = order.Amount
		trade.ConfirmBuy(order.Price)
		if err := r.store.Update(ctx, trade); err != nil {
			return SyncNone, fmt.Errorf("update trade %s: %w", trade.ID, err)
		}
		r.logger.Info("buy filled",
			zap.String("trade_id", trade.ID),
			zap.String("pair", trade.Pair),
			zap.String("rate", trade.OpenRate.String()),
		)
		r.journal.Record(ctx, &domain.TradeEvent{
			TradeID:   trade.ID,
			Pair:      trade.Pair,
			Kind:      domain.EventKindBuyFilled,
			Rate:      trade.OpenRate,
			Amount:    trade.Amount,
			Timestamp: now,
		})
		return SyncBuyFilled, nil

	case domain.OrderTypeLimitSell:
		if err := trade.Close(order.Price, now); err != nil {
			return SyncNone, err
		}
		if err := r.store.Update(ctx, trade); err != nil {
			return SyncNone, fmt.Errorf("update trade %s: %w", trade.ID, err)
		}
		profit := trade.CloseProfit.Decimal
		r.logger.Info("trade closed",
			zap.String("trade_id", trade.ID),
			zap.String("pair", trade.Pair),
			zap.String("rate", order.Price.String()),
			zap.String("profit", profit.String()),
		)
		r.notify(ctx, notify.SellFilled(trade.Pair, order.Price, profit))
		r.journal.Record(ctx, &domain.TradeEvent{
			TradeID:   trade.ID,
			Pair:      trade.Pair,
			Kind:      domain.EventKindSellFilled,
			Rate:      order.Price,
			Amount:    trade.Amount,
			Profit:    profit,
			Timestamp: now,
		})
		observability.RecordTradeClosed(profit.IsPositive())
		return SyncSellFilled, nil
	}
	return SyncPending, nil
}

// Sweep handles every pending order older than timeout. A failure on one
// order is logged and does not stop the sweep.
func (r *Reconciler) Sweep(ctx context.Context, timeout time.Duration) (SweepResult, error) {
	var res SweepResult

	trades, err := r.store.GetPendingOrders(ctx)
	if err != nil {
		return res, fmt.Errorf("get pending orders: %w", err)
	}

	for _, trade := range trades {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Checked++

		order, err := r.exchange.GetOrder(ctx, trade.Pair, trade.PendingOrderID())
		if err != nil {
			r.logger.Warn("order timeout check failed",
				zap.String("trade_id", trade.ID),
				zap.String("order_id", trade.PendingOrderID()),
				zap.Error(err),
			)
			res.Failed++
			continue
		}

		age := r.now().Sub(order.OpenedAt)
		if age <= timeout {
			continue
		}
		r.logger.Debug("order expired",
			zap.String("order_id", order.ID),
			zap.String("type", string(order.Type)),
			zap.Duration("age", age),
		)

		if err := r.expire(ctx, trade, order, &res); err != nil {
			if errors.Is(err, context.Canceled) {
				return res, err
			}
			r.logger.Warn("expired order not handled",
				zap.String("trade_id", trade.ID),
				zap.String("order_id", order.ID),
				zap.Error(err),
			)
			res.Failed++
		}
	}
	return res, nil
}

func (r *Reconciler) expire(ctx context.Context, trade *domain.TradeRecord, order *domain.Order, res *SweepResult) error {
	if order.FullyFilled() {
		outcome, err := r.applyFill(ctx, trade, order)
		if err != nil {
			return err
		}
		if outcome != SyncPending {
			res.Filled++
		}
		return nil
	}
	switch order.Type {
	case domain.OrderTypeLimitBuy:
		if order.Unfilled() {
			return r.deleteUnfilledBuy(ctx, trade, order, res)
		}
		return r.settlePartialBuy(ctx, trade, order, res)
	case domain.OrderTypeLimitSell:
		if order.Unfilled() {
			return r.reopenUnfilledSell(ctx, trade, order, res)
		}
		return r.expirePartialSell(ctx, trade, order, res)
	}
	if !order.Closed {
		r.logger.Warn("expired order has unknown side",
			zap.String("trade_id", trade.ID),
			zap.String("order_id", order.ID),
		)
		return nil
	}
	// The exchange no longer knows the order and nothing filled.
	trade.ClearPendingOrder()
	if err := r.store.Update(ctx, trade); err != nil {
		return fmt.Errorf("update trade %s: %w", trade.ID, err)
	}
	res.Dropped++
	r.logger.Warn("dropped closed order of unknown side",
		zap.String("trade_id", trade.ID),
		zap.String("order_id", order.ID),
	)
	return nil
}

func (r *Reconciler) cancel(ctx context.Context, order *domain.Order) error {
	if order.Closed {
		return nil
	}
	if err := r.exchange.CancelOrder(ctx, order.Pair, order.ID); err != nil {
		return fmt.Errorf("cancel order %s: %w", order.ID, err)
	}
	return nil
}

func (r *Reconciler) deleteUnfilledBuy(ctx context.Context, trade *domain.TradeRecord, order *domain.Order, res *SweepResult) error {
	if err := r.cancel(ctx, order); err != nil {
		return err
	}
	if err := r.store.Delete(ctx, trade.ID); err != nil {
		return fmt.Errorf("delete trade %s: %w", trade.ID, err)
	}
	res.Deleted++

	r.logger.Info("buy order timeout", zap.String("trade_id", trade.ID), zap.String("pair", trade.Pair))
	r.notify(ctx, notify.BuyTimedOut(trade.Pair))
	r.journal.Record(ctx, &domain.TradeEvent{
		TradeID:   trade.ID,
		Pair:      trade.Pair,
		Kind:      domain.EventKindBuyCancelled,
		Rate:      order.Price,
		Amount:    order.Amount,
		Reason:    "timeout",
		Timestamp: r.now(),
	})
	observability.RecordOrderCancelled("buy")
	return nil
}

// settlePartialBuy keeps the filled part as the position. The remainder is
// not cancelled.
func (r *Reconciler) settlePartialBuy(ctx context.Context, trade *domain.TradeRecord, order *domain.Order, res *SweepResult) error {
	filled := order.Filled()
	trade.SettlePartialBuy(filled)
	if err := r.store.Update(ctx, trade); err != nil {
		return fmt.Errorf("update trade %s: %w", trade.ID, err)
	}
	res.Settled++

	r.logger.Info("partial buy order timeout",
		zap.String("trade_id", trade.ID),
		zap.String("pair", trade.Pair),
		zap.String("filled", filled.String()),
	)
	r.notify(ctx, notify.BuySettled(trade.Pair, filled))
	r.journal.Record(ctx, &domain.TradeEvent{
		TradeID:   trade.ID,
		Pair:      trade.Pair,
		Kind:      domain.EventKindBuySettledPartial,
		Rate:      trade.OpenRate,
		Amount:    filled,
		Reason:    "timeout",
		Timestamp: r.now(),
	})
	return nil
}

func (r *Reconciler) reopenUnfilledSell(ctx context.Context, trade *domain.TradeRecord, order *domain.Order, res *SweepResult) error {
	if err := r.cancel(ctx, order); err != nil {
		return err
	}
	trade.ReopenAfterCancelledSell()
	if err := r.store.Update(ctx, trade); err != nil {
		return fmt.Errorf("update trade %s: %w", trade.ID, err)
	}
	res.Reopened++

	r.logger.Info("sell order timeout", zap.String("trade_id", trade.ID), zap.String("pair", trade.Pair))
	r.notify(ctx, notify.SellTimedOut(trade.Pair))
	r.journal.Record(ctx, &domain.TradeEvent{
		TradeID:   trade.ID,
		Pair:      trade.Pair,
		Kind:      domain.EventKindSellCancelled,
		Rate:      order.Price,
		Amount:    order.Amount,
		Reason:    "timeout",
		Timestamp: r.now(),
	})
	observability.RecordOrderCancelled("sell")
	return nil
}

func (r *Reconciler) expirePartialSell(ctx context.Context, trade *domain.TradeRecord, order *domain.Order, res *SweepResult) error {
	if r.partialSell != PartialSellCancel {
		r.logger.Info("partially filled sell order expired, leaving it working",
			zap.String("trade_id", trade.ID),
			zap.String("order_id", order.ID),
			zap.String("remaining", order.Remaining.String()),
		)
		res.Untouched++
		return nil
	}

	if err := r.cancel(ctx, order); err != nil {
		return err
	}
	filled := order.Filled()
	realized := trade.CalcProfitPercent(order.Price)
	trade.ReduceAfterPartialSell(order.Remaining)
	if err := r.store.Update(ctx, trade); err != nil {
		return fmt.Errorf("update trade %s: %w", trade.ID, err)
	}
	res.Reduced++

	r.logger.Info("partial sell order timeout",
		zap.String("trade_id", trade.ID),
		zap.String("sold", filled.String()),
		zap.String("remaining", order.Remaining.String()),
	)
	r.notify(ctx, notify.SellRemainderCancelled(trade.Pair, order.Remaining))
	r.journal.Record(ctx, &domain.TradeEvent{
		TradeID:   trade.ID,
		Pair:      trade.Pair,
		Kind:      domain.EventKindSellPartialSettled,
		Rate:      order.Price,
		Amount:    filled,
		Profit:    realized,
		Reason:    "timeout",
		Timestamp: r.now(),
	})
	observability.RecordOrderCancelled("sell")
	return nil
}

func (r *Reconciler) notify(ctx context.Context, msg string) {
	if r.notifier != nil {
		r.notifier.Send(ctx, msg)
	}
}
