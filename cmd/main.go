/**
 * @description
 * This is the main entry point for the banking-service. It is responsible for
 * initializing all components of the service, including configuration, the record
 * store, the rate limiter, the notification transport, the core banking service,
 * the scheduler and the HTTP server. It wires everything together and starts the
 * service.
 *
 * @dependencies
 * - github.com/joho/godotenv: Loads a local .env before configuration is read.
 * - github.com/jackc/pgx/v5: PostgreSQL driver and pool.
 * - github.com/redis/go-redis/v9: OTP issue rate limiting.
 * - internal/api, internal/app, internal/config, internal/notify, internal/store.
 * - pkg/mailer: SMTP delivery.
 * - pkg/rabbitmq: Queued email delivery.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/transfa/banking-service/internal/api"
	"github.com/transfa/banking-service/internal/app"
	"github.com/transfa/banking-service/internal/config"
	"github.com/transfa/banking-service/internal/notify"
	"github.com/transfa/banking-service/internal/store"
	"github.com/transfa/banking-service/pkg/mailer"
	rmrabbit "github.com/transfa/banking-service/pkg/rabbitmq"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	bootLog := logger.With("component", "bootstrap")

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		bootLog.Warn(".env load failed; continuing with process environment", "err", err)
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		fatal(bootLog, "config load failed", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal(bootLog, "config invalid", err)
	}
	bootLog.Info("starting banking-service", "port", cfg.ServerPort, "store", cfg.StoreDriver, "notification_transport", cfg.NotificationTransport)

	repository, closeStore := openStore(cfg, bootLog)
	defer closeStore()

	var limiter app.RateLimiter
	if redisClient := openRedis(cfg, bootLog); redisClient != nil {
		defer redisClient.Close()
		limiter = app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
	}

	channel, closeChannel := openChannel(cfg, logger)
	defer closeChannel()

	dispatcher := notify.NewDispatcher(channel, cfg.NotificationWorkers, cfg.NotificationQueueSize, logger)

	settings := app.Settings{
		StepUpThreshold:       cfg.StepUpThreshold,
		LowBalanceThreshold:   cfg.LowBalanceThreshold,
		OTPValidity:           time.Duration(cfg.OTPValidityMinutes) * time.Minute,
		OTPGrace:              time.Duration(cfg.OTPGraceMinutes) * time.Minute,
		OTPDeliveryAttempts:   cfg.OTPDeliveryAttempts,
		OTPDeliveryRetryDelay: time.Duration(cfg.OTPDeliveryRetryDelayMillis) * time.Millisecond,
		OTPIssueRateLimit:     cfg.OTPIssueRateLimitPerMinute,
		BroadcastConcurrency:  cfg.BroadcastConcurrency,
	}

	bankService := app.NewService(app.Dependencies{
		Repo:     repository,
		Channel:  channel,
		Notifier: dispatcher,
		Limiter:  limiter,
		Random:   app.NewRandomSource(),
		Clock:    app.SystemClock{Location: cfg.Location},
		PINs:     app.BcryptPINHasher{Cost: cfg.BcryptCost},
		Settings: settings,
		Logger:   logger,
	})

	scheduler := app.NewScheduler(app.NewJobs(bankService, logger), app.Schedules{
		EMIAutoDebit: cfg.EMIAutoDebitSchedule,
		CardExpiry:   cfg.CardExpirySchedule,
	}, logger)
	if err := scheduler.Start(); err != nil {
		bootLog.Error("scheduler job registration failed", "err", err)
	}

	sessions := api.NewSessionIssuer(cfg.SessionJWTSecret, cfg.SessionTTL())
	handlers := api.NewHandlers(bankService, sessions, cfg.Location, logger)
	router := api.NewRouter(handlers, api.RouterConfig{
		AdminAPIKey:    cfg.AdminAPIKey,
		AllowedOrigins: cfg.AllowedOrigins(),
	})

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", "component", "http", "addr", serverAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(logger.With("component", "http"), "server stopped unexpectedly", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown started", "component", "http")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("http shutdown failed", "component", "http", "err", err)
	}
	select {
	case <-scheduler.Stop().Done():
	case <-ctx.Done():
		logger.Warn("scheduler did not stop before deadline", "component", "scheduler")
	}
	if err := bankService.DrainBroadcasts(ctx); err != nil {
		logger.Warn("broadcasts not finished before deadline", "component", "service", "err", err)
	}
	if err := dispatcher.Close(ctx); err != nil {
		logger.Warn("notification queue not drained", "component", "notify", "err", err)
	}

	logger.Info("shutdown complete", "component", "http")
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "err", err)
	os.Exit(1)
}

// openStore returns the configured repository and its cleanup.
func openStore(cfg config.Config, logger *slog.Logger) (store.Repository, func()) {
	if cfg.StoreDriver == "memory" {
		logger.Warn("using in-memory store; data is lost on restart")
		return store.NewMemoryRepository(), func() {}
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		fatal(logger, "database url parse failed", err)
	}
	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	// Disable prepared statement caching to prevent conflicts behind poolers.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		fatal(logger, "database connection failed", err)
	}
	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		fatal(logger, "database ping failed", err)
	}
	logger.Info("database connected")

	if cfg.MigrateOnRun {
		if err := store.Migrate(ctx, dbpool); err != nil {
			dbpool.Close()
			fatal(logger, "schema migration failed", err)
		}
		logger.Info("schema migrated")
	}
	return store.NewPostgresRepository(dbpool), dbpool.Close
}

// openRedis returns nil when rate limiting cannot be enabled.
func openRedis(cfg config.Config, logger *slog.Logger) *redis.Client {
	if cfg.RedisURL == "" {
		logger.Warn("redis url missing; otp issue rate limiting disabled", "env", "REDIS_URL")
		return nil
	}
	redisOptions, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("redis url parse failed; otp issue rate limiting disabled", "err", err)
		return nil
	}
	client := redis.NewClient(redisOptions)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis ping failed; otp issue rate limiting disabled", "err", err)
		client.Close()
		return nil
	}
	logger.Info("redis connected")
	return client
}

// openChannel picks the synchronous notification transport. In queue mode the
// process also runs the delivery consumer that drains the email queue.
func openChannel(cfg config.Config, logger *slog.Logger) (notify.Channel, func()) {
	bootLog := logger.With("component", "bootstrap")

	var direct notify.Channel = notify.NewLogChannel(logger)
	if cfg.SMTPHost != "" {
		client, err := mailer.NewClient(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
		if err != nil {
			bootLog.Warn("smtp client not configured; emails will only be logged", "err", err)
		} else {
			direct = notify.NewSMTPChannel(client)
		}
	}

	switch cfg.NotificationTransport {
	case "smtp", "log":
		return direct, func() {}
	}

	producer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL, logger)
	if err != nil {
		bootLog.Warn("rabbitmq producer unavailable; delivering notifications directly", "err", err)
		return direct, func() {}
	}
	bootLog.Info("rabbitmq producer connected")

	consumer, err := rmrabbit.NewConsumer(cfg.RabbitMQURL, logger)
	if err != nil {
		bootLog.Warn("rabbitmq consumer unavailable; queued emails wait for another worker", "err", err)
		return notify.NewQueueChannel(producer, cfg.NotificationExchange), producer.Close
	}
	delivery := notify.NewDeliveryConsumer(direct, logger)
	bindings := map[string]rmrabbit.Handler{
		notify.EmailRequestedRoutingKey: delivery.Handler(),
	}
	if err := consumer.ConsumeWithBindings(cfg.NotificationExchange, cfg.EmailDeliveryQueue, bindings); err != nil {
		bootLog.Warn("email delivery consumer failed to start", "err", err)
	}

	return notify.NewQueueChannel(producer, cfg.NotificationExchange), func() {
		consumer.Close()
		producer.Close()
	}
}
