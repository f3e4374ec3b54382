// Package whitelist produces the ordered list of pairs eligible for new trades.
package whitelist

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ermakus/freqtrade/internal/domain"
	"github.com/ermakus/freqtrade/internal/exchange"
)

// Volume keys for dynamic ranking.
const (
	VolumeKeyQuote = "quote_volume"
	VolumeKeyBase  = "base_volume"
)

// DefaultTTL bounds how often market summaries are fetched.
const DefaultTTL = 1800 * time.Second

// Options configures the Manager.
type Options struct {
	Exchange      exchange.Exchange
	StakeCurrency string
	VolumeKey     string        // "" = VolumeKeyQuote
	TTL           time.Duration // 0 = DefaultTTL
	Blacklist     []string      // configured pair blacklist
	Now           func() time.Time
	Logger        *zap.Logger
}

// Manager refreshes the whitelist.
type Manager struct {
	exchange  exchange.Exchange
	stake     string
	volumeKey string
	blacklist map[string]struct{}
	now       func() time.Time
	logger    *zap.Logger

	mu    sync.Mutex
	cache pairCache
}

// New creates a Manager. It fails on an unknown volume key.
func New(opts Options) (*Manager, error) {
	key := opts.VolumeKey
	if key == "" {
		key = VolumeKeyQuote
	}
	if key != VolumeKeyQuote && key != VolumeKeyBase {
		return nil, fmt.Errorf("unknown volume key %q", key)
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bl := make(map[string]struct{}, len(opts.Blacklist))
	for _, p := range opts.Blacklist {
		bl[p] = struct{}{}
	}

	return &Manager{
		exchange:  opts.Exchange,
		stake:     opts.StakeCurrency,
		volumeKey: key,
		blacklist: bl,
		now:       now,
		logger:    logger.Named("whitelist"),
		cache:     pairCache{ttl: ttl},
	}, nil
}

// Refresh returns the pairs eligible for trading, in priority order.
// With dynamicCount > 0 the static list is replaced by the top pairs by volume.
// Inactive, unknown and blacklisted pairs are removed.
func (m *Manager) Refresh(ctx context.Context, static []string, dynamicCount int) ([]string, error) {
	candidates := static
	if dynamicCount > 0 {
		pairs, err := m.dynamic(ctx, dynamicCount)
		if err != nil {
			return nil, err
		}
		candidates = pairs
	}

	health, err := m.exchange.GetWalletHealth(ctx)
	if err != nil {
		return nil, fmt.Errorf("wallet health: %w", err)
	}
	byPair := make(map[string]domain.PairHealth, len(health))
	for _, h := range health {
		byPair[h.Pair] = h
	}

	out := make([]string, 0, len(candidates))
	for _, pair := range candidates {
		h, ok := byPair[pair]
		if !ok {
			m.logger.Info("dropping pair without health status", zap.String("pair", pair))
			continue
		}
		if !h.Active {
			m.logger.Info("dropping inactive pair",
				zap.String("pair", pair),
				zap.String("reason", h.Notice),
			)
			continue
		}
		if _, banned := m.blacklist[pair]; banned {
			m.logger.Debug("dropping blacklisted pair", zap.String("pair", pair))
			continue
		}
		out = append(out, pair)
	}

	if dynamicCount > 0 && len(out) > dynamicCount {
		out = out[:dynamicCount]
	}
	return out, nil
}

// dynamic returns the top count pairs quoted in the stake currency, served
// from cache while fresh.
func (m *Manager) dynamic(ctx context.Context, count int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if pairs, ok := m.cache.get(count, now); ok {
		return pairs, nil
	}

	summaries, err := m.exchange.GetMarketSummaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("market summaries: %w", err)
	}

	quoted := make([]domain.MarketSummary, 0, len(summaries))
	for _, s := range summaries {
		if s.Quote == m.stake {
			quoted = append(quoted, s)
		}
	}
	sort.SliceStable(quoted, func(i, j int) bool {
		return m.volume(quoted[i]).GreaterThan(m.volume(quoted[j]))
	})
	if len(quoted) > count {
		quoted = quoted[:count]
	}

	pairs := make([]string, len(quoted))
	for i, s := range quoted {
		pairs[i] = s.Pair
	}
	m.cache.put(count, pairs, now)

	m.logger.Info("dynamic whitelist computed",
		zap.Int("pairs", len(pairs)),
		zap.String("volume_key", m.volumeKey),
	)
	return pairs, nil
}

func (m *Manager) volume(s domain.MarketSummary) decimal.Decimal {
	if m.volumeKey == VolumeKeyBase {
		return s.BaseVolume
	}
	return s.QuoteVolume
}
