// Package main runs the trading bot: the control loop, order reconciliation,
// notifications, scheduled reports and the optional HTTP control API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ermakus/freqtrade/internal/api"
	"github.com/ermakus/freqtrade/internal/config"
	"github.com/ermakus/freqtrade/internal/logging"
	"github.com/ermakus/freqtrade/internal/orchestrator"
)

func main() {
	configPath := flag.String("config", os.Getenv("FREQTRADE_CONFIG"), "Path to config file (json/yaml/toml)")
	issueToken := flag.String("issue-token", "", "Print an API token for the given subject and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of tokens printed by -issue-token")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	if *issueToken != "" {
		token, err := api.IssueToken(cfg.API.JWTSecret, *issueToken, *tokenTTL, time.Now())
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	os.Exit(run(cfg))
}

func run(cfg *config.Config) int {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, cleanup, err := createStores(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to create stores", zap.Error(err))
		return 1
	}
	defer cleanup()

	bot, err := newBot(cfg, st, logger)
	if err != nil {
		logger.Error("failed to build bot", zap.Error(err))
		return 1
	}

	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
			cancel()
		case <-done:
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing exit", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Error("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	logger.Info("starting bot",
		zap.String("exchange", cfg.Exchange.Name),
		zap.String("stake_currency", cfg.StakeCurrency),
		zap.Bool("dry_run", cfg.DryRun),
		zap.String("initial_state", cfg.InitialState),
	)

	runErr := bot.Run(ctx)
	cancel()
	bot.Shutdown(runErr)
	close(done)

	var fatal *orchestrator.FatalError
	if errors.As(runErr, &fatal) {
		logger.Error("bot terminated", zap.Error(runErr))
		return 1
	}
	if runErr != nil {
		logger.Error("bot failed", zap.Error(runErr))
		return 1
	}
	logger.Info("shutdown complete")
	return 0
}
