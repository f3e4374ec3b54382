package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ermakus/freqtrade/internal/domain"
	"github.com/ermakus/freqtrade/internal/observability"
	"github.com/ermakus/freqtrade/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
// Decimals travel as text to keep NUMERIC precision intact.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	id, pair, exchange, is_open,
	amount::text, stake_amount::text, fee::text,
	open_rate::text, open_date,
	close_rate::text, close_date, close_profit::text,
	open_order_id
`

// Insert adds a new trade. Returns ErrDuplicateKey if the id exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.TradeRecord) (err error) {
	defer observe("insert_trade")(&err)

	if t == nil || t.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trades (
			id, pair, exchange, is_open,
			amount, stake_amount, fee,
			open_rate, open_date,
			close_rate, close_date, close_profit,
			open_order_id
		) VALUES (
			$1, $2, $3, $4,
			$5::numeric, $6::numeric, $7::numeric,
			$8::numeric, $9,
			$10::numeric, $11, $12::numeric,
			$13
		)
	`

	_, err = s.pool.Exec(ctx, query,
		t.ID, t.Pair, t.Exchange, t.IsOpen,
		t.Amount.String(), t.StakeAmount.String(), t.Fee.String(),
		t.OpenRate.String(), t.OpenDate,
		nullDecimalArg(t.CloseRate), t.CloseDate, nullDecimalArg(t.CloseProfit),
		t.OpenOrderID,
	)
	return translate("insert trade", err)
}

// Update replaces a trade. Returns ErrNotFound if the id does not exist.
func (s *TradeStore) Update(ctx context.Context, t *domain.TradeRecord) (err error) {
	defer observe("update_trade")(&err)

	if t == nil || t.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE trades SET
			pair = $2, exchange = $3, is_open = $4,
			amount = $5::numeric, stake_amount = $6::numeric, fee = $7::numeric,
			open_rate = $8::numeric, open_date = $9,
			close_rate = $10::numeric, close_date = $11, close_profit = $12::numeric,
			open_order_id = $13,
			updated_at = now()
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		t.ID, t.Pair, t.Exchange, t.IsOpen,
		t.Amount.String(), t.StakeAmount.String(), t.Fee.String(),
		t.OpenRate.String(), t.OpenDate,
		nullDecimalArg(t.CloseRate), t.CloseDate, nullDecimalArg(t.CloseProfit),
		t.OpenOrderID,
	)
	if err != nil {
		return fmt.Errorf("update trade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Delete removes a trade. Returns ErrNotFound if the id does not exist.
func (s *TradeStore) Delete(ctx context.Context, id string) (err error) {
	defer observe("delete_trade")(&err)

	tag, err := s.pool.Exec(ctx, `DELETE FROM trades WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete trade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a trade by id. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, id string) (_ *domain.TradeRecord, err error) {
	defer observe("get_trade")(&err)

	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	t, err := scanTrade(row)
	if err != nil {
		return nil, translate("get trade by id", err)
	}
	return t, nil
}

// GetOpen returns all open trades ordered by open date ASC.
func (s *TradeStore) GetOpen(ctx context.Context) (_ []*domain.TradeRecord, err error) {
	defer observe("get_open_trades")(&err)

	query := `SELECT ` + tradeColumns + `
		FROM trades
		WHERE is_open
		ORDER BY open_date ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get open trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetPendingOrders returns all trades with an outstanding order.
func (s *TradeStore) GetPendingOrders(ctx context.Context) (_ []*domain.TradeRecord, err error) {
	defer observe("get_pending_trades")(&err)

	query := `SELECT ` + tradeColumns + `
		FROM trades
		WHERE open_order_id IS NOT NULL AND open_order_id <> ''
		ORDER BY open_date ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get trades with pending orders: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetClosed returns trades closed at or after since, ordered by close date ASC.
func (s *TradeStore) GetClosed(ctx context.Context, since time.Time) (_ []*domain.TradeRecord, err error) {
	defer observe("get_closed_trades")(&err)

	query := `SELECT ` + tradeColumns + `
		FROM trades
		WHERE NOT is_open AND close_date >= $1
		ORDER BY close_date ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("get closed trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// Flush is a no-op: every statement autocommits.
func (s *TradeStore) Flush(_ context.Context) error {
	return nil
}

func nullDecimalArg(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func parseNullDecimal(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

// scanTrade scans a single row into a TradeRecord.
func scanTrade(row pgx.Row) (*domain.TradeRecord, error) {
	var (
		t                            domain.TradeRecord
		amount, stake, fee, openRate string
		closeRate, closeProfit       *string
		openDate                     time.Time
		closeDate                    *time.Time
	)

	err := row.Scan(
		&t.ID, &t.Pair, &t.Exchange, &t.IsOpen,
		&amount, &stake, &fee,
		&openRate, &openDate,
		&closeRate, &closeDate, &closeProfit,
		&t.OpenOrderID,
	)
	if err != nil {
		return nil, err
	}

	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	if t.StakeAmount, err = decimal.NewFromString(stake); err != nil {
		return nil, fmt.Errorf("parse stake_amount: %w", err)
	}
	if t.Fee, err = decimal.NewFromString(fee); err != nil {
		return nil, fmt.Errorf("parse fee: %w", err)
	}
	if t.OpenRate, err = decimal.NewFromString(openRate); err != nil {
		return nil, fmt.Errorf("parse open_rate: %w", err)
	}
	if t.CloseRate, err = parseNullDecimal(closeRate); err != nil {
		return nil, fmt.Errorf("parse close_rate: %w", err)
	}
	if t.CloseProfit, err = parseNullDecimal(closeProfit); err != nil {
		return nil, fmt.Errorf("parse close_profit: %w", err)
	}

	t.OpenDate = openDate.UTC()
	if closeDate != nil {
		cd := closeDate.UTC()
		t.CloseDate = &cd
	}

	return &t, nil
}

// scanTrades scans multiple rows into a slice of TradeRecord.
func scanTrades(rows pgx.Rows) ([]*domain.TradeRecord, error) {
	var trades []*domain.TradeRecord

	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}

// observe records the duration of one store call. Missing rows are not
// counted as query errors.
func observe(operation string) func(*error) {
	start := time.Now()
	return func(errp *error) {
		err := *errp
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrDuplicateKey) {
			err = nil
		}
		observability.RecordDBQuery("postgres", operation, time.Since(start).Seconds(), err)
	}
}
