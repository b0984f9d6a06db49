package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"reversal-trading-bot/internal/bot"
	"reversal-trading-bot/internal/chart"
	"reversal-trading-bot/internal/database"
	"reversal-trading-bot/internal/logging"
	"reversal-trading-bot/internal/patterns"

	"github.com/joho/godotenv"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	AppConfig          AppConfig          `json:"app"`
	BinanceConfig      BinanceConfig      `json:"binance"`
	MarketConfig       MarketConfig       `json:"market"`
	AccountConfig      AccountConfig      `json:"account"`
	TraderConfig       TraderConfig       `json:"trader"`
	PatternsConfig     patterns.Config    `json:"patterns"`
	ChartConfig        ChartConfig        `json:"chart"`
	NetworkConfig      NetworkConfig      `json:"network"`
	LoggingConfig      LoggingConfig      `json:"logging"`
	StorageConfig      StorageConfig      `json:"storage"`
	RedisConfig        RedisConfig        `json:"redis"`
	DatabaseConfig     DatabaseConfig     `json:"database"`
	NotificationConfig NotificationConfig `json:"notification"`
	ServerConfig       ServerConfig       `json:"server"`
	VaultConfig        VaultConfig        `json:"vault"`
}

type AppConfig struct {
	Debug   bool `json:"debug"`   // persist a snapshot after every observation
	Sandbox bool `json:"sandbox"` // simulated exchange, balances tracked locally
}

type BinanceConfig struct {
	APIKey          string `json:"api_key"`
	SecretKey       string `json:"secret_key"`
	BaseURL         string `json:"base_url"`
	StreamURL       string `json:"stream_url"`
	TestNet         bool   `json:"testnet"`
	MockMode        bool   `json:"mock_mode"`         // simulated client even outside sandbox
	UseTickerStream bool   `json:"use_ticker_stream"` // websocket price feed with REST fallback
}

type MarketConfig struct {
	Symbol           string  `json:"symbol"`
	FeeRate          float64 `json:"fee_rate"`           // per order, 0.001 is 0.1%
	InstantOrderFees bool    `json:"instant_order_fees"` // use the commissions reported by the exchange
	MockVolatility   float64 `json:"mock_volatility"`    // relative step of the simulated price
	MockStartPrice   float64 `json:"mock_start_price"`
}

type AccountConfig struct {
	BaseCurrency    string             `json:"base_currency"`
	QuoteCurrency   string             `json:"quote_currency"`
	SandboxBalances map[string]float64 `json:"sandbox_balances"`
}

// TraderConfig mirrors bot.Config. Rates are percentages.
type TraderConfig struct {
	QuantityOfBaseCurrencyToUse   float64 `json:"quantity_of_base_currency_to_use"`
	QuantityOfQuoteCurrencyToUse  float64 `json:"quantity_of_quote_currency_to_use"`
	MaxQuantityQuoteCurrencyToUse float64 `json:"max_quantity_quote_currency_to_use"`
	MinQuantityQuoteCurrencyToUse float64 `json:"min_quantity_quote_currency_to_use"`

	MinProfitableRateWhenSelling float64 `json:"min_profitable_rate_when_selling"`
	MaxProfitableRateWhenSelling float64 `json:"max_profitable_rate_when_selling"`

	SellWhenPriceExceedsThresholdOfProfitability bool    `json:"sell_when_price_exceeds_threshold_of_profitability"`
	PercentageToSellOnThresholdOfProfitability   float64 `json:"percentage_to_sell_on_threshold_of_profitability"`

	UseExitStrategyInCaseOfLosses bool    `json:"use_exit_strategy_in_case_of_losses"`
	SellWhenLossRateReaches       float64 `json:"sell_when_loss_rate_reaches"`

	MinDropFromLastSellRate float64 `json:"min_drop_from_last_sell_rate"`
}

type ChartConfig struct {
	TickerIntervalMs                    int             `json:"ticker_interval_ms"`
	FastModeReduction                   float64         `json:"fast_mode_reduction"` // fraction of the interval removed in fast mode
	Smoothing                           chart.Smoothing `json:"smoothing"`
	MinPriceDifferenceToApproveNewPoint float64         `json:"min_price_difference_to_approve_new_point"` // %
}

type NetworkConfig struct {
	RetryIntervalMs int `json:"retry_interval_ms"`
}

type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	IncludeFile bool   `json:"include_file"` // Include file and line number
}

type StorageConfig struct {
	SnapshotDir string `json:"snapshot_dir"`
}

// RedisConfig holds the optional snapshot mirror
type RedisConfig struct {
	Enabled     bool   `json:"enabled"`
	Address     string `json:"address"`
	Password    string `json:"password"`
	DB          int    `json:"db"`
	PoolSize    int    `json:"pool_size"`
	SnapshotTTL int    `json:"snapshot_ttl"` // Seconds, 0 keeps forever
}

// DatabaseConfig holds the optional PostgreSQL trade ledger
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Enabled         bool   `json:"enabled"`
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"`  // CORS allowed origins
	ReadTimeout     int    `json:"read_timeout"`     // Seconds
	WriteTimeout    int    `json:"write_timeout"`    // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
}

// VaultConfig holds HashiCorp Vault configuration
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`  // KV secrets engine mount path
	SecretPath string `json:"secret_path"` // Path of the Binance keys
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// Load reads .env, then the JSON file named by CONFIG_FILE (config.json by
// default), then applies environment overrides and validates the result.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()
	if err := loadFromFile(getEnvOrDefault("CONFIG_FILE", "config.json"), cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the settings used when neither file nor environment set a value.
func Default() *Config {
	return &Config{
		AppConfig: AppConfig{Sandbox: true},
		BinanceConfig: BinanceConfig{
			BaseURL: "https://api.binance.com",
		},
		MarketConfig: MarketConfig{
			Symbol:         "BTCUSDT",
			FeeRate:        0.001,
			MockVolatility: 0.002,
			MockStartPrice: 30000,
		},
		AccountConfig: AccountConfig{
			BaseCurrency:    "BTC",
			QuoteCurrency:   "USDT",
			SandboxBalances: map[string]float64{"USDT": 1000, "BTC": 0},
		},
		TraderConfig: TraderConfig{
			QuantityOfBaseCurrencyToUse:                100,
			QuantityOfQuoteCurrencyToUse:               100,
			MinQuantityQuoteCurrencyToUse:              10,
			MinProfitableRateWhenSelling:               0.5,
			PercentageToSellOnThresholdOfProfitability: 50,
			SellWhenLossRateReaches:                    5,
		},
		PatternsConfig: patterns.Config{
			ThresholdRateToApproveInversion:    1,
			ThresholdMaxRateToApproveInversion: 3,
			NumberOfUpPointsToValidatePump:     3,
			NumberOfDownPointsToValidateDump:   3,
		},
		ChartConfig: ChartConfig{
			TickerIntervalMs:                    15000,
			FastModeReduction:                   0.5,
			Smoothing:                           chart.SmoothingSampling,
			MinPriceDifferenceToApproveNewPoint: 0.1,
		},
		NetworkConfig: NetworkConfig{RetryIntervalMs: 5000},
		LoggingConfig: LoggingConfig{
			Level:  "INFO",
			Output: "stdout",
		},
		StorageConfig: StorageConfig{SnapshotDir: "data"},
		RedisConfig: RedisConfig{
			Address:  "localhost:6379",
			PoolSize: 10,
		},
		DatabaseConfig: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "trader",
			Database: "reversal_bot",
			SSLMode:  "disable",
		},
		ServerConfig: ServerConfig{
			Enabled:         true,
			Port:            8080,
			Host:            "127.0.0.1",
			AllowedOrigins:  "*",
			ReadTimeout:     30,
			WriteTimeout:    30,
			ShutdownTimeout: 10,
		},
		VaultConfig: VaultConfig{
			Address:    "http://localhost:8200",
			MountPath:  "secret",
			SecretPath: "reversal-bot/binance",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	cfg.AppConfig.Debug = getEnvBoolOrDefault("APP_DEBUG", cfg.AppConfig.Debug)
	cfg.AppConfig.Sandbox = getEnvBoolOrDefault("APP_SANDBOX", cfg.AppConfig.Sandbox)

	// Binance config
	cfg.BinanceConfig.APIKey = getEnvOrDefault("BINANCE_API_KEY", cfg.BinanceConfig.APIKey)
	cfg.BinanceConfig.SecretKey = getEnvOrDefault("BINANCE_SECRET_KEY", cfg.BinanceConfig.SecretKey)
	cfg.BinanceConfig.BaseURL = getEnvOrDefault("BINANCE_BASE_URL", cfg.BinanceConfig.BaseURL)
	cfg.BinanceConfig.StreamURL = getEnvOrDefault("BINANCE_STREAM_URL", cfg.BinanceConfig.StreamURL)
	cfg.BinanceConfig.TestNet = getEnvBoolOrDefault("BINANCE_TESTNET", cfg.BinanceConfig.TestNet)
	cfg.BinanceConfig.MockMode = getEnvBoolOrDefault("MOCK_MODE", cfg.BinanceConfig.MockMode)
	cfg.BinanceConfig.UseTickerStream = getEnvBoolOrDefault("BINANCE_USE_TICKER_STREAM", cfg.BinanceConfig.UseTickerStream)

	// Market and account
	cfg.MarketConfig.Symbol = strings.ToUpper(getEnvOrDefault("MARKET_SYMBOL", cfg.MarketConfig.Symbol))
	cfg.MarketConfig.FeeRate = getEnvFloatOrDefault("MARKET_FEE_RATE", cfg.MarketConfig.FeeRate)
	cfg.MarketConfig.InstantOrderFees = getEnvBoolOrDefault("MARKET_INSTANT_ORDER_FEES", cfg.MarketConfig.InstantOrderFees)
	cfg.AccountConfig.BaseCurrency = strings.ToUpper(getEnvOrDefault("ACCOUNT_BASE_CURRENCY", cfg.AccountConfig.BaseCurrency))
	cfg.AccountConfig.QuoteCurrency = strings.ToUpper(getEnvOrDefault("ACCOUNT_QUOTE_CURRENCY", cfg.AccountConfig.QuoteCurrency))

	// Trader config
	t := &cfg.TraderConfig
	t.QuantityOfQuoteCurrencyToUse = getEnvFloatOrDefault("TRADER_QUOTE_TO_USE", t.QuantityOfQuoteCurrencyToUse)
	t.QuantityOfBaseCurrencyToUse = getEnvFloatOrDefault("TRADER_BASE_TO_USE", t.QuantityOfBaseCurrencyToUse)
	t.MaxQuantityQuoteCurrencyToUse = getEnvFloatOrDefault("TRADER_MAX_QUOTE", t.MaxQuantityQuoteCurrencyToUse)
	t.MinQuantityQuoteCurrencyToUse = getEnvFloatOrDefault("TRADER_MIN_QUOTE", t.MinQuantityQuoteCurrencyToUse)
	t.MinProfitableRateWhenSelling = getEnvFloatOrDefault("TRADER_MIN_PROFIT_RATE", t.MinProfitableRateWhenSelling)
	t.MaxProfitableRateWhenSelling = getEnvFloatOrDefault("TRADER_MAX_PROFIT_RATE", t.MaxProfitableRateWhenSelling)
	t.UseExitStrategyInCaseOfLosses = getEnvBoolOrDefault("TRADER_STOP_LOSS_ENABLED", t.UseExitStrategyInCaseOfLosses)
	t.SellWhenLossRateReaches = getEnvFloatOrDefault("TRADER_STOP_LOSS_RATE", t.SellWhenLossRateReaches)

	// Chart and network
	cfg.ChartConfig.TickerIntervalMs = getEnvIntOrDefault("CHART_TICKER_INTERVAL_MS", cfg.ChartConfig.TickerIntervalMs)
	cfg.ChartConfig.FastModeReduction = getEnvFloatOrDefault("CHART_FAST_MODE_REDUCTION", cfg.ChartConfig.FastModeReduction)
	cfg.ChartConfig.Smoothing = chart.Smoothing(getEnvOrDefault("CHART_SMOOTHING", string(cfg.ChartConfig.Smoothing)))
	cfg.NetworkConfig.RetryIntervalMs = getEnvIntOrDefault("NETWORK_RETRY_INTERVAL_MS", cfg.NetworkConfig.RetryIntervalMs)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
	cfg.LoggingConfig.JSONFormat = getEnvBoolOrDefault("LOG_JSON", cfg.LoggingConfig.JSONFormat)
	cfg.LoggingConfig.IncludeFile = getEnvBoolOrDefault("LOG_INCLUDE_FILE", cfg.LoggingConfig.IncludeFile)

	cfg.StorageConfig.SnapshotDir = getEnvOrDefault("STORAGE_SNAPSHOT_DIR", cfg.StorageConfig.SnapshotDir)

	// Redis config
	cfg.RedisConfig.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.RedisConfig.Enabled)
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	// Database config
	cfg.DatabaseConfig.Enabled = getEnvBoolOrDefault("DB_ENABLED", cfg.DatabaseConfig.Enabled)
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)

	// Notification config
	cfg.NotificationConfig.Enabled = getEnvBoolOrDefault("NOTIFICATIONS_ENABLED", cfg.NotificationConfig.Enabled)
	cfg.NotificationConfig.Telegram.Enabled = getEnvBoolOrDefault("TELEGRAM_ENABLED", cfg.NotificationConfig.Telegram.Enabled)
	cfg.NotificationConfig.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatID)
	cfg.NotificationConfig.Discord.Enabled = getEnvBoolOrDefault("DISCORD_ENABLED", cfg.NotificationConfig.Discord.Enabled)
	cfg.NotificationConfig.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.NotificationConfig.Discord.WebhookURL)

	// Server config
	cfg.ServerConfig.Enabled = getEnvBoolOrDefault("WEB_ENABLED", cfg.ServerConfig.Enabled)
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)

	// Vault config
	cfg.VaultConfig.Enabled = getEnvBoolOrDefault("VAULT_ENABLED", cfg.VaultConfig.Enabled)
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", cfg.VaultConfig.Address)
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", cfg.VaultConfig.MountPath)
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", cfg.VaultConfig.SecretPath)
	cfg.VaultConfig.TLSEnabled = getEnvBoolOrDefault("VAULT_TLS_ENABLED", cfg.VaultConfig.TLSEnabled)
	cfg.VaultConfig.CACert = getEnvOrDefault("VAULT_CACERT", cfg.VaultConfig.CACert)
}

// Validate rejects settings the trader cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.MarketConfig.Symbol == "":
		return fmt.Errorf("%w: market.symbol is empty", ErrInvalidConfig)
	case c.AccountConfig.BaseCurrency == "" || c.AccountConfig.QuoteCurrency == "":
		return fmt.Errorf("%w: account currencies are required", ErrInvalidConfig)
	case c.MarketConfig.FeeRate < 0 || c.MarketConfig.FeeRate >= 1:
		return fmt.Errorf("%w: market.fee_rate must be in [0,1), got %v", ErrInvalidConfig, c.MarketConfig.FeeRate)
	case c.ChartConfig.TickerIntervalMs <= 0:
		return fmt.Errorf("%w: chart.ticker_interval_ms must be positive", ErrInvalidConfig)
	case c.NetworkConfig.RetryIntervalMs <= 0:
		return fmt.Errorf("%w: network.retry_interval_ms must be positive", ErrInvalidConfig)
	case c.ChartConfig.FastModeReduction < 0 || c.ChartConfig.FastModeReduction >= 1:
		return fmt.Errorf("%w: chart.fast_mode_reduction must be in [0,1), got %v", ErrInvalidConfig, c.ChartConfig.FastModeReduction)
	}

	switch c.ChartConfig.Smoothing {
	case chart.SmoothingSampling, chart.SmoothingMovingAverage, chart.SmoothingNone:
	default:
		return fmt.Errorf("%w: unknown chart.smoothing %q", ErrInvalidConfig, c.ChartConfig.Smoothing)
	}

	t := c.TraderConfig
	if t.QuantityOfQuoteCurrencyToUse <= 0 || t.QuantityOfQuoteCurrencyToUse > 100 {
		return fmt.Errorf("%w: trader.quantity_of_quote_currency_to_use must be in (0,100]", ErrInvalidConfig)
	}
	if t.QuantityOfBaseCurrencyToUse <= 0 || t.QuantityOfBaseCurrencyToUse > 100 {
		return fmt.Errorf("%w: trader.quantity_of_base_currency_to_use must be in (0,100]", ErrInvalidConfig)
	}
	if t.MaxQuantityQuoteCurrencyToUse > 0 && t.MaxQuantityQuoteCurrencyToUse < t.MinQuantityQuoteCurrencyToUse {
		return fmt.Errorf("%w: trader max quote amount is below the min", ErrInvalidConfig)
	}
	if t.SellWhenPriceExceedsThresholdOfProfitability &&
		(t.PercentageToSellOnThresholdOfProfitability <= 0 || t.PercentageToSellOnThresholdOfProfitability > 100) {
		return fmt.Errorf("%w: trader.percentage_to_sell_on_threshold_of_profitability must be in (0,100]", ErrInvalidConfig)
	}
	if !c.AppConfig.Sandbox && !c.BinanceConfig.MockMode && !c.VaultConfig.Enabled &&
		(c.BinanceConfig.APIKey == "" || c.BinanceConfig.SecretKey == "") {
		return fmt.Errorf("%w: binance keys are required outside sandbox", ErrInvalidConfig)
	}
	return nil
}

// UseMockClient reports whether orders go to the simulated exchange.
func (c *Config) UseMockClient() bool {
	return c.AppConfig.Sandbox || c.BinanceConfig.MockMode
}

// Bot returns the trader settings.
func (c *Config) Bot() bot.Config {
	t := c.TraderConfig
	return bot.Config{
		Symbol:        c.MarketConfig.Symbol,
		BaseCurrency:  c.AccountConfig.BaseCurrency,
		QuoteCurrency: c.AccountConfig.QuoteCurrency,
		FeeRate:       c.MarketConfig.FeeRate,

		QuantityOfBaseCurrencyToUse:   t.QuantityOfBaseCurrencyToUse,
		QuantityOfQuoteCurrencyToUse:  t.QuantityOfQuoteCurrencyToUse,
		MaxQuantityQuoteCurrencyToUse: t.MaxQuantityQuoteCurrencyToUse,
		MinQuantityQuoteCurrencyToUse: t.MinQuantityQuoteCurrencyToUse,

		MinProfitableRateWhenSelling: t.MinProfitableRateWhenSelling,
		MaxProfitableRateWhenSelling: t.MaxProfitableRateWhenSelling,

		SellWhenPriceExceedsThresholdOfProfitability: t.SellWhenPriceExceedsThresholdOfProfitability,
		PercentageToSellOnThresholdOfProfitability:   t.PercentageToSellOnThresholdOfProfitability,

		UseExitStrategyInCaseOfLosses: t.UseExitStrategyInCaseOfLosses,
		SellWhenLossRateReaches:       t.SellWhenLossRateReaches,

		MinDropFromLastSellRate: t.MinDropFromLastSellRate,

		Sandbox:              c.AppConfig.Sandbox,
		Debug:                c.AppConfig.Debug,
		BalanceRetryInterval: c.RetryInterval(),
	}
}

// Chart returns the observation worker settings.
func (c *Config) Chart() chart.Config {
	return chart.Config{
		TickerInterval:        time.Duration(c.ChartConfig.TickerIntervalMs) * time.Millisecond,
		FastModeReduction:     c.ChartConfig.FastModeReduction,
		RetryInterval:         c.RetryInterval(),
		Smoothing:             c.ChartConfig.Smoothing,
		MinPriceDifferencePct: c.ChartConfig.MinPriceDifferenceToApproveNewPoint,
	}
}

// RetryInterval is the delay between retries of failed network calls.
func (c *Config) RetryInterval() time.Duration {
	return time.Duration(c.NetworkConfig.RetryIntervalMs) * time.Millisecond
}

// Logging returns the logger settings.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:       c.LoggingConfig.Level,
		Output:      c.LoggingConfig.Output,
		JSONFormat:  c.LoggingConfig.JSONFormat,
		IncludeFile: c.LoggingConfig.IncludeFile,
	}
}

// Database returns the PostgreSQL connection settings.
func (c *Config) Database() database.Config {
	return database.Config{
		Host:     c.DatabaseConfig.Host,
		Port:     c.DatabaseConfig.Port,
		User:     c.DatabaseConfig.User,
		Password: c.DatabaseConfig.Password,
		Database: c.DatabaseConfig.Database,
		SSLMode:  c.DatabaseConfig.SSLMode,
	}
}

func loadFromFile(filename string, cfg *Config) error {
	file, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	if err := json.Unmarshal(file, cfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// GenerateSampleConfig writes a sample configuration file
func GenerateSampleConfig(filename string) error {
	config := Default()
	config.BinanceConfig.APIKey = "your_api_key_here"
	config.BinanceConfig.SecretKey = "your_secret_key_here"
	config.BinanceConfig.TestNet = true
	config.NotificationConfig.Telegram.BotToken = "your_bot_token_here"
	config.NotificationConfig.Telegram.ChatID = "your_chat_id_here"

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
