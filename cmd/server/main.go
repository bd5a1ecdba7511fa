package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/shelfwatch/shelfwatch/config"
	"github.com/shelfwatch/shelfwatch/internal/antidetect"
	"github.com/shelfwatch/shelfwatch/internal/api"
	"github.com/shelfwatch/shelfwatch/internal/database"
	"github.com/shelfwatch/shelfwatch/internal/dispatch"
	"github.com/shelfwatch/shelfwatch/internal/engine"
	"github.com/shelfwatch/shelfwatch/internal/fetch"
	"github.com/shelfwatch/shelfwatch/internal/models"
	"github.com/shelfwatch/shelfwatch/internal/purchase"
	"github.com/shelfwatch/shelfwatch/internal/ratelimit"
	"github.com/shelfwatch/shelfwatch/internal/store"
	"github.com/shelfwatch/shelfwatch/internal/telemetry"
	"github.com/shelfwatch/shelfwatch/internal/timer"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Logging)
	zlog.Logger = *logger

	logger.Info().Msg("Starting shelfwatch")

	ctx := context.Background()

	cleanup := telemetry.MustInit(ctx, telemetry.Config{
		Enabled:  cfg.Telemetry.Enabled,
		Endpoint: cfg.Telemetry.Endpoint,
	})
	defer func() {
		if err := cleanup(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("Telemetry shutdown failed")
		}
	}()

	dbURL := config.GetDatabaseURL()
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL not set")
	}

	if err := database.Connect(
		ctx,
		dbURL,
		cfg.Database.MaxConnections,
		cfg.Database.MinConnections,
		cfg.Database.MaxConnLifetime,
		cfg.Database.MaxConnIdleTime,
	); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	logger.Info().Msg("Database connected")

	st := store.NewPostgres(database.Pool(), cfg.Database.LogCap)
	if err := st.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ensure schema")
	}

	rotator := antidetect.NewRotator(nil, rand.NewSource(time.Now().UnixNano()))

	var (
		fetcher        fetch.Fetcher
		browserFetcher *fetch.BrowserFetcher
	)
	switch cfg.Fetch.Mode {
	case "browser":
		browserFetcher = fetch.NewBrowser(rotator)
		fetcher = browserFetcher
		defer browserFetcher.Shutdown()
	default:
		static := fetch.NewStatic(rotator)
		static.Timeout = cfg.Fetch.Timeout
		fetcher = static
	}
	logger.Info().Str("mode", cfg.Fetch.Mode).Msg("Fetcher ready")

	gateway := dispatch.NewGateway()
	if cfg.Dispatch.TelegramToken != "" {
		tg, err := dispatch.NewTelegram(cfg.Dispatch.TelegramToken, cfg.Dispatch.TelegramChatID)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to init telegram notifier")
		}
		gateway.AddNotifier(tg)
		logger.Info().Msg("Telegram notifier registered")
	}
	if cfg.Dispatch.WebhookURL != "" {
		gateway.AddWebhookSink(dispatch.NewHTTPWebhook(cfg.Dispatch.WebhookURL))
		logger.Info().Msg("Webhook sink registered")
	}

	machine := engine.NewStateMachine(engine.NewBackoffPolicy(rand.NewSource(time.Now().UnixNano())))
	limiter := ratelimit.New(cfg.Engine.MaxChecksPerWindow, cfg.Engine.Window)

	scheduler := engine.NewScheduler(
		st, fetcher, engine.NewClassifier(), machine, limiter, gateway, rotator,
		engine.SchedulerConfig{
			PauseBase:       cfg.Engine.PauseBase,
			RotateChance:    cfg.Engine.RotateChance,
			MinTickInterval: cfg.Engine.MinTickInterval,
		},
		rand.NewSource(time.Now().UnixNano()),
	)

	if browserFetcher != nil {
		automation := purchase.New(purchase.NewBrowserCart(browserFetcher.Browser), st)
		scheduler.AutoCart = func(ctx context.Context, p models.Product) {
			if _, err := automation.Run(ctx, p); err != nil {
				logger.Warn().Err(err).Str("product_id", p.ID).Msg("Auto add-to-cart failed")
			}
		}
	}

	alarm := timer.NewTicker(func() {
		scheduler.Tick(context.Background())
	})
	scheduler.AttachAlarm(alarm)
	if err := scheduler.Start(ctx); err != nil {
		logger.Warn().Err(err).Msg("Initial schedule failed")
	}

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	handler := api.NewHandler(st, scheduler, machine, rotator.Profiles())
	router := handler.Router(cfg.Server.APIKey, requestLogger(logger))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("service", "shelfwatch").Logger()
	return &logger
}

func requestLogger(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", c.Writer.Status()).
			Dur("latency", latency).
			Str("ip", c.ClientIP()).
			Msg("HTTP request")
	}
}
