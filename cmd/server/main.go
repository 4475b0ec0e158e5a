package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"ridedispatch/internal/app"
	"ridedispatch/internal/auth"
	"ridedispatch/internal/config"
	"ridedispatch/internal/handler"
	"ridedispatch/internal/logging"
	"ridedispatch/internal/realtime"
	internalRedis "ridedispatch/internal/redis"
	"ridedispatch/internal/repository"
	mongorepo "ridedispatch/internal/repository/mongo"
	"ridedispatch/internal/repository/postgres"
	"ridedispatch/internal/service"
)

// stores is the persistence backend chosen by STORE_BACKEND.
type stores struct {
	bookings repository.BookingRepository
	drivers  repository.DriverRepository
	messages repository.ChatRepository
	close    func()
}

func main() {
	// Load configuration.
	cfg := config.Load()
	logger := logging.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		var err error
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", "error", err)
		} else {
			logger.Info("New Relic enabled", "app", cfg.NewRelic.AppName)
		}
	}

	st, err := openStores(startCtx, cfg, nrApp, logger)
	if err != nil {
		logger.Error("failed to open store", "backend", cfg.Store, "error", err)
		os.Exit(1)
	}
	defer st.close()

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(startCtx, cfg.Redis, nrApp)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("connected to redis", "addr", cfg.Redis.Addr)

	verifier, err := newVerifier(startCtx, cfg.Auth)
	if err != nil {
		logger.Error("failed to initialize identity verifier", "provider", cfg.Auth.Provider, "error", err)
		os.Exit(1)
	}

	kafkaWriter := app.NewNotificationWriter(cfg.Kafka)
	if kafkaWriter != nil {
		defer kafkaWriter.Close()
		logger.Info("kafka notification sink enabled", "topic", cfg.Kafka.NotificationTopic)
	}

	server, background := wireServer(cfg, st, redisClient, kafkaWriter, verifier, nrApp, logger)

	for _, run := range background {
		go run(ctx)
	}

	// Start server in goroutine.
	go func() {
		logger.Info("starting server", "port", cfg.Server.Port, "store", cfg.Store)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	// Graceful shutdown.
	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	logger.Info("server exited")
}

func openStores(ctx context.Context, cfg *config.Config, nrApp *newrelic.Application, logger *slog.Logger) (*stores, error) {
	switch cfg.Store {
	case config.StoreMongo:
		client, db, err := app.NewMongoDatabase(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to mongo", "database", cfg.Mongo.Database)
		return &stores{
			bookings: mongorepo.NewBookingRepository(db),
			drivers:  mongorepo.NewDriverRepository(db),
			messages: mongorepo.NewChatRepository(db),
			close:    func() { _ = client.Disconnect(context.Background()) },
		}, nil
	default:
		db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to postgres", "host", cfg.Database.Host, "database", cfg.Database.DBName)
		return &stores{
			bookings: postgres.NewBookingRepository(db),
			drivers:  postgres.NewDriverRepository(db),
			messages: postgres.NewChatRepository(db),
			close:    func() { _ = db.Close() },
		}, nil
	}
}

func newVerifier(ctx context.Context, cfg config.AuthConfig) (auth.Verifier, error) {
	if cfg.Provider == config.AuthFirebase {
		return auth.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentials)
	}
	return auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer), nil
}

// wireServer wires all dependencies and returns the HTTP server together with
// the background loops that must run alongside it.
func wireServer(
	cfg *config.Config,
	st *stores,
	redisClient *redis.Client,
	kafkaWriter *kafka.Writer,
	verifier auth.Verifier,
	nrApp *newrelic.Application,
	logger *slog.Logger,
) (*http.Server, []func(context.Context)) {
	var background []func(context.Context)

	// Initialize Redis stores.
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	// Realtime channel: local hub, optionally fanned out through Redis.
	hub := realtime.NewHub(logger)
	var publisher realtime.Publisher = hub
	if cfg.Realtime.Backplane {
		bp := realtime.NewBackplane(redisClient, cfg.Realtime.Channel, hub, logger)
		publisher = bp
		background = append(background, func(ctx context.Context) {
			if err := bp.Run(ctx); err != nil {
				logger.Error("realtime backplane stopped", "error", err)
			}
		})
	}

	// Notification sinks.
	sinks := []service.Sink{
		{Name: "log", Notifier: service.NewLogNotifier(logger)},
		{Name: "realtime", Notifier: service.NewRealtimeNotifier(publisher)},
	}
	if kafkaWriter != nil {
		sinks = append(sinks, service.Sink{Name: "kafka", Notifier: service.NewKafkaNotifier(kafkaWriter)})
	}
	notifier := service.NewFanoutNotifier(sinks...)

	// Initialize services.
	registry := service.NewRegistry(st.drivers, cacheStore, logger)
	coordinator := service.NewCoordinator(st.bookings, registry, publisher, notifier, logger)
	query := service.NewQuery(st.bookings, registry)
	chat := service.NewChat(st.bookings, st.messages, publisher, notifier, logger)

	if cfg.Dispatch.SweeperEnabled {
		sweeper := service.NewExpirySweeper(st.bookings, coordinator, lockStore,
			cfg.Dispatch.ExpiryWindow, cfg.Dispatch.SweepInterval, logger)
		background = append(background, sweeper.Run)
	}

	// Initialize handlers.
	bookingHandler := handler.NewBookingHandler(coordinator, query)
	driverHandler := handler.NewDriverHandler(registry, query)
	chatHandler := handler.NewChatHandler(chat)
	wsHandler := handler.NewWSHandler(hub, verifier, query, chat, realtime.ConnConfig{
		WriteTimeout: cfg.Realtime.WriteTimeout,
		PingInterval: cfg.Realtime.PingInterval,
	}, cfg.Realtime.SendBuffer, logger)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		BookingHandler: bookingHandler,
		DriverHandler:  driverHandler,
		ChatHandler:    chatHandler,
		WSHandler:      wsHandler,
		Verifier:       verifier,
		ResponseCache:  redisClient,
		NewRelicApp:    nrApp,
		CORSOrigin:     cfg.Server.CORSOrigin,
		Logger:         logger,
	})

	// Create HTTP server. Upgraded websocket connections manage their own
	// deadlines.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, background
}
