// Package binance adapts the Binance spot REST API to exchange.Exchange.
package binance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ermakus/freqtrade/internal/domain"
	"github.com/ermakus/freqtrade/internal/exchange"
)

const symbolInfoTTL = time.Hour

// Options configures the Binance adapter.
type Options struct {
	APIKey    string
	SecretKey string
	BaseURL   string // overrides the REST endpoint (testnet, tests)
	Logger    *zap.Logger
}

// Exchange is a Binance spot account.
type Exchange struct {
	client *gobinance.Client
	logger *zap.Logger

	mu        sync.Mutex
	symbols   map[string]symbolInfo
	fetchedAt time.Time
}

type symbolInfo struct {
	base, quote string
	status      string
	stepSize    decimal.Decimal
	tickSize    decimal.Decimal
}

// New creates the adapter. Empty keys allow public endpoints only.
func New(opts Options) *Exchange {
	client := gobinance.NewClient(opts.APIKey, opts.SecretKey)
	if opts.BaseURL != "" {
		client.BaseURL = opts.BaseURL
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exchange{
		client: client,
		logger: logger.Named("binance"),
	}
}

var _ exchange.Exchange = (*Exchange)(nil)

// Name returns "binance".
func (e *Exchange) Name() string { return "binance" }

// GetTicker returns best bid/ask and the last trade price.
func (e *Exchange) GetTicker(ctx context.Context, pair string) (domain.Ticker, error) {
	books, err := e.client.NewListBookTickersService().Symbol(pair).Do(ctx)
	if err != nil {
		return domain.Ticker{}, classify("book ticker", pair, err)
	}
	if len(books) == 0 {
		return domain.Ticker{}, exchange.Transient("book ticker", fmt.Errorf("empty response for %s", pair))
	}

	prices, err := e.client.NewListPricesService().Symbol(pair).Do(ctx)
	if err != nil {
		return domain.Ticker{}, classify("last price", pair, err)
	}
	if len(prices) == 0 {
		return domain.Ticker{}, exchange.Transient("last price", fmt.Errorf("empty response for %s", pair))
	}

	var t domain.Ticker
	if t.Bid, err = decimal.NewFromString(books[0].BidPrice); err != nil {
		return domain.Ticker{}, exchange.Transient("parse bid", err)
	}
	if t.Ask, err = decimal.NewFromString(books[0].AskPrice); err != nil {
		return domain.Ticker{}, exchange.Transient("parse ask", err)
	}
	if t.Last, err = decimal.NewFromString(prices[0].Price); err != nil {
		return domain.Ticker{}, exchange.Transient("parse last", err)
	}
	return t, nil
}

// GetTickerHistory returns up to 500 candles, oldest first.
func (e *Exchange) GetTickerHistory(ctx context.Context, pair string, intervalMinutes int) ([]domain.Candle, error) {
	interval, err := klineInterval(intervalMinutes)
	if err != nil {
		return nil, err
	}

	klines, err := e.client.NewKlinesService().Symbol(pair).Interval(interval).Limit(500).Do(ctx)
	if err != nil {
		return nil, classify("klines", pair, err)
	}
	if len(klines) == 0 {
		return nil, nil
	}

	candles := make([]domain.Candle, 0, len(klines))
	for _, k := range klines {
		c, err := toCandle(k)
		if err != nil {
			return nil, exchange.Transient("parse kline", err)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

// GetMarketSummaries returns 24h volume for every listed symbol.
func (e *Exchange) GetMarketSummaries(ctx context.Context) ([]domain.MarketSummary, error) {
	symbols, err := e.symbolInfo(ctx)
	if err != nil {
		return nil, err
	}

	stats, err := e.client.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, classify("24h stats", "", err)
	}

	out := make([]domain.MarketSummary, 0, len(stats))
	for _, s := range stats {
		info, ok := symbols[s.Symbol]
		if !ok {
			continue
		}
		baseVol, err := decimal.NewFromString(s.Volume)
		if err != nil {
			e.logger.Debug("skipping summary with bad volume", zap.String("pair", s.Symbol), zap.Error(err))
			continue
		}
		quoteVol, err := decimal.NewFromString(s.QuoteVolume)
		if err != nil {
			e.logger.Debug("skipping summary with bad quote volume", zap.String("pair", s.Symbol), zap.Error(err))
			continue
		}
		out = append(out, domain.MarketSummary{
			Pair:        s.Symbol,
			Base:        info.base,
			Quote:       info.quote,
			BaseVolume:  baseVol,
			QuoteVolume: quoteVol,
		})
	}
	return out, nil
}

// GetWalletHealth maps symbol trading status to pair health.
func (e *Exchange) GetWalletHealth(ctx context.Context) ([]domain.PairHealth, error) {
	symbols, err := e.symbolInfo(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.PairHealth, 0, len(symbols))
	for pair, info := range symbols {
		h := domain.PairHealth{Pair: pair, Active: info.status == string(gobinance.SymbolStatusTypeTrading)}
		if !h.Active {
			h.Notice = "symbol status " + info.status
		}
		out = append(out, h)
	}
	return out, nil
}

// Buy places a GTC limit buy.
func (e *Exchange) Buy(ctx context.Context, pair string, rate, amount decimal.Decimal) (string, error) {
	return e.placeLimit(ctx, gobinance.SideTypeBuy, pair, rate, amount)
}

// Sell places a GTC limit sell. The quantity is capped at the free base
// balance: Binance charges the buy commission in the base asset, so the
// wallet holds slightly less than the bought amount.
func (e *Exchange) Sell(ctx context.Context, pair string, rate, amount decimal.Decimal) (string, error) {
	return e.placeLimit(ctx, gobinance.SideTypeSell, pair, rate, amount)
}

func (e *Exchange) placeLimit(ctx context.Context, side gobinance.SideType, pair string, rate, amount decimal.Decimal) (string, error) {
	symbols, err := e.symbolInfo(ctx)
	if err != nil {
		return "", err
	}
	info, ok := symbols[pair]
	if !ok {
		return "", exchange.Rejected(pair, errors.New("unknown symbol"))
	}

	if side == gobinance.SideTypeSell {
		free, err := e.GetBalance(ctx, info.base)
		if err != nil {
			return "", err
		}
		if free.LessThan(amount) {
			e.logger.Info("sell capped to free balance",
				zap.String("pair", pair),
				zap.String("asset", info.base),
				zap.String("requested", amount.String()),
				zap.String("free", free.String()),
			)
			amount = free
		}
	}

	qty := roundDown(amount, info.stepSize)
	price := roundDown(rate, info.tickSize)
	if !qty.IsPositive() || !price.IsPositive() {
		return "", exchange.Rejected(pair, fmt.Errorf("order rounds to zero (qty=%s price=%s)", qty, price))
	}

	resp, err := e.client.NewCreateOrderService().
		Symbol(pair).
		Side(side).
		Type(gobinance.OrderTypeLimit).
		TimeInForce(gobinance.TimeInForceTypeGTC).
		Quantity(qty.String()).
		Price(price.String()).
		Do(ctx)
	if err != nil {
		return "", classify("create order", pair, err)
	}

	e.logger.Info("order placed",
		zap.String("pair", pair),
		zap.String("side", string(side)),
		zap.String("price", price.String()),
		zap.String("qty", qty.String()),
		zap.Int64("order_id", resp.OrderID),
	)
	return strconv.FormatInt(resp.OrderID, 10), nil
}

// GetOrder fetches an order by id.
func (e *Exchange) GetOrder(ctx context.Context, pair, orderID string) (*domain.Order, error) {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return nil, exchange.Operational("get order", fmt.Errorf("bad order id %q: %w", orderID, err))
	}

	o, err := e.client.NewGetOrderService().Symbol(pair).OrderID(id).Do(ctx)
	if err != nil {
		return nil, classify("get order", pair, err)
	}
	return toOrder(o)
}

// CancelOrder cancels an open order.
func (e *Exchange) CancelOrder(ctx context.Context, pair, orderID string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return exchange.Operational("cancel order", fmt.Errorf("bad order id %q: %w", orderID, err))
	}

	if _, err := e.client.NewCancelOrderService().Symbol(pair).OrderID(id).Do(ctx); err != nil {
		return classify("cancel order", pair, err)
	}
	return nil
}

// GetBalance returns the free balance of currency.
func (e *Exchange) GetBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	acct, err := e.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return decimal.Zero, classify("account", "", err)
	}
	for _, b := range acct.Balances {
		if b.Asset == currency {
			free, err := decimal.NewFromString(b.Free)
			if err != nil {
				return decimal.Zero, exchange.Transient("parse balance", err)
			}
			return free, nil
		}
	}
	return decimal.Zero, nil
}

// GetFee returns the maker commission as a fraction.
// Binance reports commissions in basis points of a percent (10 = 0.1%).
func (e *Exchange) GetFee(ctx context.Context) (decimal.Decimal, error) {
	acct, err := e.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return decimal.Zero, classify("account", "", err)
	}
	return decimal.NewFromInt(acct.MakerCommission).Div(decimal.NewFromInt(10000)), nil
}

// symbolInfo returns cached exchange info, refreshed hourly.
func (e *Exchange) symbolInfo(ctx context.Context) (map[string]symbolInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.symbols != nil && time.Since(e.fetchedAt) < symbolInfoTTL {
		return e.symbols, nil
	}

	info, err := e.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		if e.symbols != nil {
			e.logger.Warn("exchange info refresh failed, using cached symbols", zap.Error(err))
			return e.symbols, nil
		}
		return nil, classify("exchange info", "", err)
	}

	symbols := make(map[string]symbolInfo, len(info.Symbols))
	for _, s := range info.Symbols {
		si := symbolInfo{base: s.BaseAsset, quote: s.QuoteAsset, status: s.Status}
		if lot := s.LotSizeFilter(); lot != nil {
			si.stepSize, _ = decimal.NewFromString(lot.StepSize)
		}
		if pf := s.PriceFilter(); pf != nil {
			si.tickSize, _ = decimal.NewFromString(pf.TickSize)
		}
		symbols[s.Symbol] = si
	}

	e.symbols = symbols
	e.fetchedAt = time.Now()
	return symbols, nil
}

// API error codes that reject an order for pair-specific reasons.
var rejectCodes = map[int64]bool{
	-1013: true, // filter failure
	-1100: true, // illegal characters in parameter
	-1111: true, // precision over maximum
	-1121: true, // invalid symbol
	-2010: true, // new order rejected
}

// API error codes that need operator attention.
var operationalCodes = map[int64]bool{
	-1002: true, // unauthorized
	-2014: true, // bad API key format
	-2015: true, // invalid API key, IP or permissions
}

// classify maps a client error onto the exchange error classes.
func classify(op, pair string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch {
		case rejectCodes[apiErr.Code]:
			return exchange.Rejected(pair, err)
		case operationalCodes[apiErr.Code]:
			return exchange.Operational(op, err)
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return exchange.Transient(op, err)
}

// roundDown truncates v to a multiple of step. A zero step leaves v unchanged.
func roundDown(v, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return v
	}
	return v.Div(step).Floor().Mul(step)
}

func klineInterval(minutes int) (string, error) {
	switch minutes {
	case 1, 3, 5, 15, 30:
		return fmt.Sprintf("%dm", minutes), nil
	case 60, 120, 240, 360, 480, 720:
		return fmt.Sprintf("%dh", minutes/60), nil
	case 1440:
		return "1d", nil
	default:
		return "", exchange.Operational("klines", fmt.Errorf("unsupported interval %d minutes", minutes))
	}
}

func toCandle(k *gobinance.Kline) (domain.Candle, error) {
	var (
		c   = domain.Candle{OpenTime: time.UnixMilli(k.OpenTime).UTC()}
		err error
	)
	if c.Open, err = strconv.ParseFloat(k.Open, 64); err != nil {
		return c, err
	}
	if c.High, err = strconv.ParseFloat(k.High, 64); err != nil {
		return c, err
	}
	if c.Low, err = strconv.ParseFloat(k.Low, 64); err != nil {
		return c, err
	}
	if c.Close, err = strconv.ParseFloat(k.Close, 64); err != nil {
		return c, err
	}
	if c.Volume, err = strconv.ParseFloat(k.Volume, 64); err != nil {
		return c, err
	}
	return c, nil
}

func toOrder(o *gobinance.Order) (*domain.Order, error) {
	amount, err := decimal.NewFromString(o.OrigQuantity)
	if err != nil {
		return nil, exchange.Transient("parse order qty", err)
	}
	executed, err := decimal.NewFromString(o.ExecutedQuantity)
	if err != nil {
		return nil, exchange.Transient("parse executed qty", err)
	}
	price, err := decimal.NewFromString(o.Price)
	if err != nil {
		return nil, exchange.Transient("parse order price", err)
	}
	// Prefer the average fill price when something executed.
	if executed.IsPositive() {
		if quote, err := decimal.NewFromString(o.CummulativeQuoteQuantity); err == nil && quote.IsPositive() {
			price = quote.Div(executed)
		}
	}

	orderType := domain.OrderTypeLimitBuy
	if o.Side == gobinance.SideTypeSell {
		orderType = domain.OrderTypeLimitSell
	}

	closed := true
	switch o.Status {
	case gobinance.OrderStatusTypeNew, gobinance.OrderStatusTypePartiallyFilled, gobinance.OrderStatusTypePendingCancel:
		closed = false
	}

	return &domain.Order{
		ID:        strconv.FormatInt(o.OrderID, 10),
		Pair:      o.Symbol,
		Type:      orderType,
		OpenedAt:  time.UnixMilli(o.Time).UTC(),
		Price:     price,
		Amount:    amount,
		Remaining: amount.Sub(executed),
		Closed:    closed,
	}, nil
}
