package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reversal-trading-bot/config"
	"reversal-trading-bot/internal/api"
	"reversal-trading-bot/internal/binance"
	"reversal-trading-bot/internal/bot"
	"reversal-trading-bot/internal/chart"
	"reversal-trading-bot/internal/database"
	"reversal-trading-bot/internal/events"
	"reversal-trading-bot/internal/logging"
	"reversal-trading-bot/internal/notification"
	"reversal-trading-bot/internal/patterns"
	"reversal-trading-bot/internal/vault"

	"github.com/rs/zerolog"
)

func main() {
	var sampleConfig string
	flag.StringVar(&sampleConfig, "generate-config", "", "Write a sample configuration file to this path and exit")
	flag.Parse()

	if sampleConfig != "" {
		if err := config.GenerateSampleConfig(sampleConfig); err != nil {
			log.Fatalf("Failed to write sample configuration: %v", err)
		}
		fmt.Printf("Sample configuration written to %s\n", sampleConfig)
		return
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger, closer := logging.New(cfg.Logging())
	logger = logger.With().Str("symbol", cfg.MarketConfig.Symbol).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()

	switch {
	case err == nil:
		logger.Info().Msg("Shutdown complete")
	case errors.Is(err, bot.ErrHalted):
		logger.Error().Err(err).Msg("Trader halted, operator intervention required")
	default:
		logger.Error().Err(err).Msg("Trader failed")
	}
	closer.Close()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	eventBus := events.NewEventBus()

	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		return err
	}

	client, err := newSpotClient(ctx, cfg, vaultClient, logger)
	if err != nil {
		return err
	}

	market, err := binance.NewSpotMarket(ctx, client, cfg.MarketConfig.Symbol, binance.MarketOptions{
		Sandbox:         cfg.AppConfig.Sandbox,
		UseReportedFees: cfg.MarketConfig.InstantOrderFees,
	}, logger)
	if err != nil {
		return err
	}

	// Price feed: websocket ticker with REST fallback, or REST only
	var source chart.PriceSource = market
	if cfg.BinanceConfig.UseTickerStream && !cfg.UseMockClient() {
		streamURL := cfg.BinanceConfig.StreamURL
		if streamURL == "" && cfg.BinanceConfig.TestNet {
			streamURL = binance.TestnetStreamURL
		}
		stream := binance.NewTickerStream(streamURL, market.Symbol(), market, 2*cfg.Chart().TickerInterval, logger)
		stream.Start(ctx)
		source = stream
	}

	worker := chart.NewWorker(source, cfg.Chart(), logger)
	worker.SetEventBus(eventBus)

	// Storage: local file always, Redis and PostgreSQL when enabled
	store := database.NewMultiStore().WithSnapshots(database.NewFileSnapshotStore(cfg.StorageConfig.SnapshotDir))
	var history api.TradeHistory
	healthChecks := map[string]api.HealthCheck{}

	if cfg.RedisConfig.Enabled {
		redisClient := database.NewRedisClient(cfg.RedisConfig.Address, cfg.RedisConfig.Password, cfg.RedisConfig.DB, cfg.RedisConfig.PoolSize)
		defer redisClient.Close()

		redisStore := database.NewRedisSnapshotStore(ctx, redisClient, time.Duration(cfg.RedisConfig.SnapshotTTL)*time.Second, logger)
		store.WithSnapshots(redisStore).WithLedgers(redisStore)
		history = redisStore
		healthChecks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	if cfg.DatabaseConfig.Enabled {
		db, err := database.NewDB(ctx, cfg.Database(), logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if err := db.RunMigrations(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		repo := database.NewRepository(db)
		store.WithSnapshots(repo).WithLedgers(repo)
		history = repo
		healthChecks["postgres"] = repo.HealthCheck
	}

	if vaultClient.IsEnabled() {
		healthChecks["vault"] = vaultClient.Health
	}

	notifier := newNotifier(cfg, logger)

	trader := bot.NewTrader(bot.Dependencies{
		Worker:   worker,
		Analyzer: patterns.NewAnalyzer(cfg.PatternsConfig),
		Market:   market,
		Accounts: market,
		Store:    store,
		Ledger:   store,
		Notifier: notifier,
		Bus:      eventBus,
	}, cfg.Bot(), logger)
	// flushes pending writes before the stores above are closed
	defer trader.Close()

	if err := trader.Restore(ctx); err != nil {
		return err
	}

	if cfg.ServerConfig.Enabled {
		server := api.NewServer(api.ServerConfig{
			Port:           cfg.ServerConfig.Port,
			Host:           cfg.ServerConfig.Host,
			AllowedOrigins: cfg.ServerConfig.AllowedOrigins,
			ReadTimeout:    time.Duration(cfg.ServerConfig.ReadTimeout) * time.Second,
			WriteTimeout:   time.Duration(cfg.ServerConfig.WriteTimeout) * time.Second,
			ProductionMode: !cfg.AppConfig.Debug,
		}, trader, worker, eventBus, logger)
		if history != nil {
			server.SetTradeHistory(history)
		}
		for name, check := range healthChecks {
			server.AddHealthCheck(name, check)
		}

		serverCtx, cancelServer := context.WithCancel(context.Background())
		go func() {
			if err := server.Start(serverCtx); err != nil {
				logger.Error().Err(err).Msg("HTTP server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("Error shutting down web server")
			}
			cancelServer()
		}()
	}

	logger.Info().
		Bool("sandbox", cfg.AppConfig.Sandbox).
		Bool("mock_client", cfg.UseMockClient()).
		Bool("testnet", cfg.BinanceConfig.TestNet).
		Str("smoothing", string(cfg.ChartConfig.Smoothing)).
		Msg("Starting reversal trader")

	// The API keeps serving a halted trader so the operator can inspect it
	// until the process is stopped.
	err = trader.Start(ctx)
	if errors.Is(err, bot.ErrHalted) && cfg.ServerConfig.Enabled {
		logger.Error().Err(err).Msg("Trader halted, status API still available until shutdown")
		<-ctx.Done()
	}
	return err
}

func newSpotClient(ctx context.Context, cfg *config.Config, vaultClient *vault.Client, logger zerolog.Logger) (binance.SpotClient, error) {
	if cfg.UseMockClient() {
		logger.Info().Msg("Using simulated exchange")
		return binance.NewMockClient(binance.MockConfig{
			Symbol:     cfg.MarketConfig.Symbol,
			BaseAsset:  cfg.AccountConfig.BaseCurrency,
			QuoteAsset: cfg.AccountConfig.QuoteCurrency,
			StartPrice: cfg.MarketConfig.MockStartPrice,
			Volatility: cfg.MarketConfig.MockVolatility,
			FeeRate:    cfg.MarketConfig.FeeRate,
			Balances:   cfg.AccountConfig.SandboxBalances,
		}), nil
	}

	apiKey, secretKey := cfg.BinanceConfig.APIKey, cfg.BinanceConfig.SecretKey
	if vaultClient.IsEnabled() {
		keys, err := vaultClient.GetBinanceKeys(ctx, cfg.BinanceConfig.TestNet)
		if err != nil {
			return nil, fmt.Errorf("failed to load Binance keys from vault: %w", err)
		}
		apiKey, secretKey = keys.APIKey, keys.SecretKey
	}

	baseURL := cfg.BinanceConfig.BaseURL
	if cfg.BinanceConfig.TestNet {
		baseURL = binance.TestnetBaseURL
	}
	return binance.NewClient(apiKey, secretKey, baseURL, logger), nil
}

func newNotifier(cfg *config.Config, logger zerolog.Logger) *notification.Manager {
	nc := cfg.NotificationConfig
	manager := notification.NewManager(nc.Enabled, logger)

	if nc.Telegram.Enabled {
		manager.AddSender(notification.NewTelegramNotifier(notification.TelegramConfig{
			BotToken: nc.Telegram.BotToken,
			ChatID:   nc.Telegram.ChatID,
			Enabled:  nc.Telegram.Enabled,
		}))
		logger.Info().Msg("Telegram notifications enabled")
	}

	if nc.Discord.Enabled {
		manager.AddSender(notification.NewDiscordNotifier(notification.DiscordConfig{
			WebhookURL: nc.Discord.WebhookURL,
			Enabled:    nc.Discord.Enabled,
		}))
		logger.Info().Msg("Discord notifications enabled")
	}

	return manager
}
