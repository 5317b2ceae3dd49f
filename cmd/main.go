package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/algofinserve/stock-alerts/internal/config"
	"github.com/algofinserve/stock-alerts/internal/database"
	"github.com/algofinserve/stock-alerts/internal/handlers"
	"github.com/algofinserve/stock-alerts/internal/logging"
	"github.com/algofinserve/stock-alerts/internal/marketdata"
	"github.com/algofinserve/stock-alerts/internal/messaging"
	"github.com/algofinserve/stock-alerts/internal/models"
	"github.com/algofinserve/stock-alerts/internal/routes"
	"github.com/algofinserve/stock-alerts/internal/services"
	"github.com/algofinserve/stock-alerts/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Parse command line flags
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// .env is optional; environment variables override config file values.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config from %s: %v", *configFile, err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database
	if err := database.InitDatabase(cfg.Database.DSN); err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Set up the pipeline
	st := store.NewGormStore(database.GetDB())
	market := newMarketDataProvider(cfg)
	index := services.NewAlertIndex()

	pool, err := messaging.NewSenderPool("", cfg.Telegram.Tokens, cfg.Telegram.PoolSize, logger)
	if err != nil {
		logger.Fatal("failed to build sender pool", zap.Error(err))
	}
	dispatcher := messaging.NewDispatcher(pool, map[messaging.Channel]string{
		messaging.ChannelBuy:     cfg.Telegram.BuyChat,
		messaging.ChannelSell:    cfg.Telegram.SellChat,
		messaging.ChannelBuyEOD:  cfg.Telegram.BuyEODChat,
		messaging.ChannelSellEOD: cfg.Telegram.SellEODChat,
	}, cfg.Queues.Message, cfg.Queues.MessageEOD, logger)
	dispatcher.Start(ctx)

	dbQueue := make(chan models.AlertEvent, cfg.Queues.Persistence)
	engine := services.NewRecommendationEngine(st, market, logger)
	consumer := services.NewBatchConsumer(dbQueue, st, engine,
		cfg.Queues.BatchSize, time.Duration(cfg.Queues.DrainWaitMS)*time.Millisecond, logger)
	go consumer.Run(ctx)

	monitor, err := services.NewStoplossMonitor(st, market, engine, services.StoplossMonitorConfig{
		Interval:      time.Duration(cfg.Monitor.IntervalSeconds) * time.Second,
		ForceRun:      cfg.Monitor.ForceRun,
		MarketOpen:    cfg.Monitor.MarketOpen,
		MarketClose:   cfg.Monitor.MarketClose,
		SymbolTimeout: time.Duration(cfg.Monitor.SymbolTimeoutMS) * time.Millisecond,
	}, logger)
	if err != nil {
		logger.Fatal("failed to build stoploss monitor", zap.Error(err))
	}
	go monitor.Run(ctx)

	processor := services.NewProcessor(index, dbQueue, dispatcher, logger)
	report := services.NewReportGenerator(index, cfg.Report.Dir, logger)
	go runDailyReport(ctx, report, cfg.Report.At, logger)

	// Store the configured handler globally so routes can access it
	handlers.SetGlobalHandler(handlers.NewAlertHandler(
		processor, consumer, engine, monitor, report, index, st, logger))

	// Set up Gin
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Info("starting server",
		zap.String("addr", addr),
		zap.String("webhook", "/BuyAlert /SellAlert /BuyAlertEOD /SellAlertEOD"))

	if err := r.Run(addr); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}

func newMarketDataProvider(cfg *config.Config) marketdata.Provider {
	if cfg.MarketData.Provider == "binance" {
		return marketdata.NewBinanceProvider(
			cfg.MarketData.Binance.APIKey, cfg.MarketData.Binance.SecretKey)
	}
	return marketdata.NewRESTProvider(cfg.MarketData.BaseURL)
}

// runDailyReport fires the end-of-day report at the configured local time.
func runDailyReport(ctx context.Context, report *services.ReportGenerator, at string, logger *zap.Logger) {
	clock, err := time.Parse("15:04", at)
	if err != nil {
		logger.Error("invalid report time, daily report disabled", zap.String("at", at))
		return
	}

	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(),
			clock.Hour(), clock.Minute(), 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
			if _, err := report.Generate(); err != nil {
				logger.Error("daily report failed", zap.Error(err))
			}
		}
	}
}
