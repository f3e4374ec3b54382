// Package config loads the bot configuration from a JSON or YAML file,
// the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/ermakus/freqtrade/internal/domain"
)

// EnvPrefix prefixes environment overrides: FREQTRADE_EXCHANGE_KEY sets
// exchange.key.
const EnvPrefix = "FREQTRADE"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	StakeCurrency      string             `mapstructure:"stake_currency" validate:"required"`
	StakeAmount        float64            `mapstructure:"stake_amount" validate:"gt=0"`
	MaxOpenTrades      int                `mapstructure:"max_open_trades" validate:"gte=0"`
	DynamicWhitelist   int                `mapstructure:"dynamic_whitelist" validate:"gte=0"`
	WhitelistVolumeKey string             `mapstructure:"whitelist_volume_key" validate:"oneof=quote_volume base_volume"`
	WhitelistTTL       time.Duration      `mapstructure:"whitelist_ttl" validate:"gte=0"`
	UnfilledTimeout    int                `mapstructure:"unfilledtimeout" validate:"gte=0"` // minutes, 0 disables
	PartialSellPolicy  string             `mapstructure:"partial_sell_policy" validate:"oneof=leave cancel"`
	InitialState       string             `mapstructure:"initial_state" validate:"oneof=running stopped"`
	Strategy           string             `mapstructure:"strategy" validate:"oneof=default base stochastic rohit baudbox"`
	TickerInterval     int                `mapstructure:"ticker_interval" validate:"gte=0"`
	MinimalROI         map[string]float64 `mapstructure:"minimal_roi"`
	Stoploss           *float64           `mapstructure:"stoploss" validate:"omitempty,lt=0"`
	SignalMaxAge       time.Duration      `mapstructure:"signal_max_age" validate:"gt=0"`
	DryRun             bool               `mapstructure:"dry_run"`
	DryRunWallet       float64            `mapstructure:"dry_run_wallet" validate:"gte=0"`
	ReportCron         string             `mapstructure:"report_cron"`

	Exchange     ExchangeConfig     `mapstructure:"exchange"`
	BidStrategy  BidStrategyConfig  `mapstructure:"bid_strategy"`
	Internals    InternalsConfig    `mapstructure:"internals"`
	Experimental ExperimentalConfig `mapstructure:"experimental"`
	Telegram     TelegramConfig     `mapstructure:"telegram"`
	Database     DatabaseConfig     `mapstructure:"database"`
	API          APIConfig          `mapstructure:"api"`
	Log          LogConfig          `mapstructure:"log"`
}

type ExchangeConfig struct {
	Name          string   `mapstructure:"name" validate:"oneof=binance"`
	Key           string   `mapstructure:"key"`
	Secret        string   `mapstructure:"secret"`
	BaseURL       string   `mapstructure:"base_url" validate:"omitempty,url"`
	PairWhitelist []string `mapstructure:"pair_whitelist"`
	PairBlacklist []string `mapstructure:"pair_blacklist"`
}

type BidStrategyConfig struct {
	AskLastBalance float64 `mapstructure:"ask_last_balance" validate:"gte=0,lte=1"`
}

type InternalsConfig struct {
	ProcessThrottleSecs  int `mapstructure:"process_throttle_secs" validate:"gt=0"`
	IdleSecs             int `mapstructure:"idle_secs" validate:"gt=0"`
	RetryBackoffSecs     int `mapstructure:"retry_backoff_secs" validate:"gt=0"`
	HeartbeatTimeoutSecs int `mapstructure:"heartbeat_timeout_secs" validate:"gt=0"`
}

type ExperimentalConfig struct {
	UseSellSignal        bool `mapstructure:"use_sell_signal"`
	SellProfitOnly       bool `mapstructure:"sell_profit_only"`
	IgnoreROIIfBuySignal bool `mapstructure:"ignore_roi_if_buy_signal"`
}

type TelegramConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Token     string `mapstructure:"token" validate:"required_if=Enabled true"`
	ChatID    int64  `mapstructure:"chat_id" validate:"required_if=Enabled true"`
	APIServer string `mapstructure:"api_server" validate:"omitempty,url"`
}

type DatabaseConfig struct {
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickHouseDSN string `mapstructure:"clickhouse_dsn"`
}

type APIConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	ListenAddr     string   `mapstructure:"listen_addr" validate:"required_if=Enabled true"`
	JWTSecret      string   `mapstructure:"jwt_secret" validate:"required_if=Enabled true"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Encoding    string `mapstructure:"encoding" validate:"oneof=json console"`
	Development bool   `mapstructure:"development"`
}

// Load reads .env (if present), then path (if non-empty), then environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("stake_currency", "BTC")
	v.SetDefault("stake_amount", 0.05)
	v.SetDefault("max_open_trades", 3)
	v.SetDefault("dynamic_whitelist", 0)
	v.SetDefault("whitelist_volume_key", "quote_volume")
	v.SetDefault("whitelist_ttl", "30m")
	v.SetDefault("unfilledtimeout", 10)
	v.SetDefault("partial_sell_policy", "leave")
	v.SetDefault("initial_state", "stopped")
	v.SetDefault("strategy", domain.StrategyDefault)
	v.SetDefault("ticker_interval", 0)
	v.SetDefault("signal_max_age", "10m")
	v.SetDefault("dry_run", true)
	v.SetDefault("dry_run_wallet", 1.0)
	v.SetDefault("report_cron", "0 0 0 * * *")

	v.SetDefault("exchange.name", "binance")
	v.SetDefault("exchange.key", "")
	v.SetDefault("exchange.secret", "")
	v.SetDefault("exchange.base_url", "")
	v.SetDefault("exchange.pair_whitelist", []string{})
	v.SetDefault("exchange.pair_blacklist", []string{})

	v.SetDefault("bid_strategy.ask_last_balance", 0.0)

	v.SetDefault("internals.process_throttle_secs", 10)
	v.SetDefault("internals.idle_secs", 1)
	v.SetDefault("internals.retry_backoff_secs", 30)
	v.SetDefault("internals.heartbeat_timeout_secs", 300)

	v.SetDefault("experimental.use_sell_signal", false)
	v.SetDefault("experimental.sell_profit_only", false)
	v.SetDefault("experimental.ignore_roi_if_buy_signal", true)

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)
	v.SetDefault("telegram.api_server", "")

	v.SetDefault("database.postgres_dsn", "")
	v.SetDefault("database.clickhouse_dsn", "")

	v.SetDefault("api.enabled", false)
	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.jwt_secret", "")
	v.SetDefault("api.allowed_origins", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", false)
}

var validate = validator.New()

// Validate checks field constraints and the rules spanning several fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !c.DryRun && (c.Exchange.Key == "" || c.Exchange.Secret == "") {
		return fmt.Errorf("%w: exchange.key and exchange.secret are required when dry_run is off", ErrInvalid)
	}
	if c.DynamicWhitelist == 0 && len(c.Exchange.PairWhitelist) == 0 {
		return fmt.Errorf("%w: exchange.pair_whitelist is empty and dynamic_whitelist is 0", ErrInvalid)
	}
	return nil
}

// Stake returns the stake amount as a decimal.
func (c *Config) Stake() decimal.Decimal { return decimal.NewFromFloat(c.StakeAmount) }

// Run returns the configured initial run state.
func (c *Config) Run() domain.RunState {
	s, _ := domain.ParseRunState(c.InitialState)
	return s
}

// StrategyConfig returns the strategy selection with its overrides.
func (c *Config) StrategyConfig() domain.StrategyConfig {
	return domain.StrategyConfig{
		Name:           c.Strategy,
		TickerInterval: c.TickerInterval,
		MinimalROI:     c.MinimalROI,
		Stoploss:       c.Stoploss,
	}
}

// ThrottleInterval is the minimum time between cycle starts.
func (c *Config) ThrottleInterval() time.Duration {
	return time.Duration(c.Internals.ProcessThrottleSecs) * time.Second
}

// IdleInterval is the sleep between iterations while stopped.
func (c *Config) IdleInterval() time.Duration {
	return time.Duration(c.Internals.IdleSecs) * time.Second
}

// RetryBackoff is the sleep after a transient cycle failure.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Internals.RetryBackoffSecs) * time.Second
}

// HeartbeatTimeout is how long the loop may stay silent before it is
// reported unhealthy.
func (c *Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.Internals.HeartbeatTimeoutSecs) * time.Second
}

// UnfilledTimeoutDuration converts unfilledtimeout minutes.
func (c *Config) UnfilledTimeoutDuration() time.Duration {
	return time.Duration(c.UnfilledTimeout) * time.Minute
}
