package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	_ "go.uber.org/automaxprocs"

	helplineecho "github.com/pilab-dev/helpline/api/echo"
	"github.com/pilab-dev/helpline/cache"
	"github.com/pilab-dev/helpline/cache/bolt"
	cacheredis "github.com/pilab-dev/helpline/cache/redis"
	"github.com/pilab-dev/helpline/config"
	"github.com/pilab-dev/helpline/dedup"
	"github.com/pilab-dev/helpline/gateway/httpgw"
	"github.com/pilab-dev/helpline/internal/audit"
	"github.com/pilab-dev/helpline/internal/metrics"
	"github.com/pilab-dev/helpline/internal/server"
	"github.com/pilab-dev/helpline/log"
	"github.com/pilab-dev/helpline/mongodb"
	"github.com/pilab-dev/helpline/router"
	"github.com/pilab-dev/helpline/routing"
	"github.com/pilab-dev/helpline/sessions"
	"github.com/pilab-dev/helpline/tracing"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	redisKeyPrefix      = "helpline:"
	boltCleanupInterval = time.Minute
	auditQueueSize      = 1024
)

// closer is anything with resources to release on shutdown.
type closer func(ctx context.Context) error

func main() {
	// A missing .env is fine; real deployments use the environment.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		stdLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		stdLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
		fallbackLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		fallbackLog.Warn().
			Str("configured_log_level", cfg.LogLevel).
			Str("fallback_log_level", logLevel.String()).
			Err(parseErr).
			Msg("Invalid LOG_LEVEL configured, defaulting to 'info'")
	}
	zerolog.SetGlobalLevel(logLevel)
	appLogger := log.NewZerologAdapter(logLevel, cfg.LogPretty)
	ctx := appLogger.WithContext(context.Background())

	if err := cfg.Validate(); err != nil {
		appLogger.Fatal(ctx, "Invalid configuration", err)
	}
	appLogger.Info(ctx, "Configuration loaded successfully", map[string]interface{}{
		"http_port":     cfg.HTTPPort,
		"store_backend": cfg.StoreBackend,
		"audit_backend": cfg.AuditBackend,
		"lobby_pod":     cfg.LobbyPod,
		"log_level":     cfg.LogLevel,
		"otel_service":  cfg.OtelServiceName,
	})

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName, nil)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize TracerProvider", err)
	}

	metrics.Register(prometheus.DefaultRegisterer)

	// Closed in reverse order on shutdown.
	var closers []closer

	kv, health, closeStore, err := openStore(cfg)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to open store", err, map[string]interface{}{"backend": cfg.StoreBackend})
	}
	closers = append(closers, closeStore)

	recorder, err := openRecorder(ctx, cfg)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to open audit recorder", err, map[string]interface{}{"backend": cfg.AuditBackend})
	}
	if cfg.AuditBackend == config.AuditMongo {
		closers = append(closers, func(ctx context.Context) error {
			mongodb.CloseMongoDB(ctx)
			return nil
		})
		storeHealth := health
		health = func(ctx context.Context) error {
			if err := storeHealth(ctx); err != nil {
				return err
			}
			return mongodb.Ping(ctx)
		}
	}
	dispatcher := audit.NewDispatcher(recorder, auditQueueSize)
	closers = append(closers, dispatcher.Close)

	httpClient := &http.Client{Timeout: 10 * time.Second}
	messaging := httpgw.NewMessaging(cfg.MessagingGatewayURL, cfg.GatewayToken, httpClient)
	chat := httpgw.NewChat(cfg.ChatGatewayURL, cfg.GatewayToken, httpClient)

	groups, _ := config.ParsePairs(cfg.RegionGroups)
	regions := routing.NewRegions(groups)
	registry := routing.NewRegistry(kv, regions)
	handles := routing.NewHandleCache(chat, cfg.PodHandleTTL)
	if err := handles.Refresh(ctx); err != nil {
		// Pods still resolve one by one on demand.
		appLogger.Warn(ctx, "Failed to preload pod handles", map[string]interface{}{"error": err.Error()})
	}

	opts, err := routerOptions(cfg)
	if err != nil {
		appLogger.Fatal(ctx, "Invalid routing configuration", err)
	}
	rt := router.New(router.Deps{
		Sessions:  sessions.NewStore(kv),
		Balancer:  routing.NewBalancer(registry),
		Regions:   regions,
		Handles:   handles,
		Dedup:     dedup.New(kv, cfg.DedupTTL),
		Messaging: messaging,
		Chat:      chat,
		Audit:     dispatcher,
		Logger:    appLogger,
	}, opts)

	helplineAPI := helplineecho.NewHelplineAPI(rt, registry, cfg.AdminToken,
		helplineecho.WithHealthCheck(health),
	)
	if cfg.AdminToken == "" {
		appLogger.Warn(ctx, "ADMIN_TOKEN is empty, admin endpoints are disabled")
	}
	httpServer := server.NewHTTPServer(cfg, server.NewEcho(appLogger, helplineAPI))

	go func() {
		appLogger.Info(ctx, fmt.Sprintf("HTTP server listening on port %s", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal(ctx, "Failed to start HTTP server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit

	appLogger.Info(ctx, fmt.Sprintf("Received signal: %v. Shutting down server...", receivedSignal))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown error", err)
	}
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](shutdownCtx); err != nil {
			appLogger.Error(shutdownCtx, "Shutdown error", err)
		}
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "TracerProvider shutdown error", err)
	}

	appLogger.Info(shutdownCtx, "Server gracefully stopped.")
}

// openStore opens the configured key/value backend and returns it with a
// health check and a closer.
func openStore(cfg *config.ServerConfig) (cache.Store, func(context.Context) error, closer, error) {
	noHealth := func(context.Context) error { return nil }

	switch cfg.StoreBackend {
	case config.BackendRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := cacheredis.NewStore(client, redisKeyPrefix)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			_ = client.Close()
			return nil, nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return store, store.Ping, func(context.Context) error { return client.Close() }, nil

	case config.BackendBolt:
		store, err := bolt.NewStore(cfg.BoltPath, boltCleanupInterval)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, noHealth, func(context.Context) error { return store.Close() }, nil

	default:
		store := cache.NewMemoryStore()
		return store, noHealth, func(context.Context) error { return store.Close() }, nil
	}
}

func openRecorder(ctx context.Context, cfg *config.ServerConfig) (audit.Recorder, error) {
	if cfg.AuditBackend != config.AuditMongo {
		return audit.NewLogRecorder(os.Stdout), nil
	}
	if err := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
		return nil, err
	}
	repo, err := mongodb.NewAuditRepositoryMongo(ctx, mongodb.GetDB())
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func routerOptions(cfg *config.ServerConfig) (router.Options, error) {
	pushRegions, err := config.ParsePairs(cfg.PushNumberRegions)
	if err != nil {
		return router.Options{}, err
	}
	return router.Options{
		UserIDSecret:         []byte(cfg.UserIDSecret),
		LobbyPod:             cfg.LobbyPod,
		DemoLobbyPod:         cfg.DemoLobbyPod,
		DemoNumbers:          config.ParseList(cfg.DemoNumbers),
		PushNumberRegions:    pushRegions,
		DisclaimerToken:      cfg.DisclaimerToken,
		RegionSelectionLimit: cfg.RegionSelectionLimit,
		WelcomeBackAfter:     cfg.WelcomeBackAfter,
	}, nil
}
