package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ermakus/freqtrade/internal/config"
	"github.com/ermakus/freqtrade/internal/storage"
	chstore "github.com/ermakus/freqtrade/internal/storage/clickhouse"
	"github.com/ermakus/freqtrade/internal/storage/memory"
	"github.com/ermakus/freqtrade/internal/storage/migrations"
	pgstore "github.com/ermakus/freqtrade/internal/storage/postgres"
)

// stores holds the trade store and the lifecycle event log.
type stores struct {
	trades storage.TradeStore
	events storage.TradeEventStore
}

// createStores connects the configured databases. Without a Postgres DSN
// trades live in memory; without a ClickHouse DSN events do.
func createStores(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*stores, func(), error) {
	s := &stores{
		trades: memory.NewTradeStore(),
		events: memory.NewTradeEventStore(),
	}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, pool.Close)

		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		logger.Info("postgres ready", zap.Strings("applied", applied))
		s.trades = pgstore.NewTradeStore(pool)
	} else {
		logger.Warn("no postgres dsn, trades are kept in memory")
	}

	if cfg.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		closers = append(closers, func() { _ = conn.Close() })
		logger.Info("clickhouse ready")
		s.events = chstore.NewTradeEventStore(conn)
	}

	return s, cleanup, nil
}
