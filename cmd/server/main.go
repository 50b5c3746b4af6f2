package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/lacs-cc/auth-gateway/internal/auth"
	"github.com/lacs-cc/auth-gateway/internal/config"
	"github.com/lacs-cc/auth-gateway/internal/database"
	"github.com/lacs-cc/auth-gateway/internal/handlers"
	"github.com/lacs-cc/auth-gateway/internal/identity"
	"github.com/lacs-cc/auth-gateway/internal/invites"
	"github.com/lacs-cc/auth-gateway/internal/logger"
	"github.com/lacs-cc/auth-gateway/internal/middleware"
	"github.com/lacs-cc/auth-gateway/internal/origin"
	"github.com/lacs-cc/auth-gateway/internal/queue"
	"github.com/lacs-cc/auth-gateway/internal/telemetry"
	"github.com/lacs-cc/auth-gateway/internal/token"
)

const serviceName = "auth-gateway"

var version = "dev"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.Strings("allowed_origins", cfg.AllowedOrigins),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), serviceName, cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	redisClient, err := middleware.NewRedisClient(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	// The audit stream is optional: without RABBITMQ_URL the service runs
	// with event publishing disabled.
	var eventQueue queue.EventQueue
	if cfg.RabbitMQURL != "" {
		eventQueue = connectRabbitMQ(cfg.RabbitMQURL, zapLogger)
		if eventQueue != nil {
			defer func() {
				if err := eventQueue.Close(); err != nil {
					zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
				}
			}()
		}
	} else {
		zapLogger.Info("audit_event_stream_disabled")
	}

	inviteRepo := database.NewInviteCodeRepository(db)
	profileRepo := database.NewProfileRepository(db)

	provider := identity.NewClient(cfg.IdentityURL, cfg.IdentityClientID, cfg.IdentityClientSecret)
	originValidator := origin.NewValidator(cfg.AllowedOrigins)
	codec := token.NewCodec()

	authService := auth.NewService(originValidator, provider, codec, profileRepo, zapLogger)
	inviteService := invites.NewService(inviteRepo, zapLogger)

	crossDomainOpts := []handlers.CrossDomainOption{}
	inviteOpts := []handlers.InviteOption{}
	healthOpts := []handlers.HealthOption{handlers.WithRedisCheck(redisClient)}
	if eventQueue != nil {
		crossDomainOpts = append(crossDomainOpts, handlers.WithCrossDomainEvents(eventQueue))
		inviteOpts = append(inviteOpts, handlers.WithInviteEvents(eventQueue))
		healthOpts = append(healthOpts, handlers.WithQueueCheck(eventQueue))
	}
	crossDomainHandler := handlers.NewCrossDomainHandler(authService, zapLogger, crossDomainOpts...)
	inviteHandler := handlers.NewInviteHandler(inviteService, zapLogger, inviteOpts...)
	healthChecker := handlers.NewHealthChecker(db, version, healthOpts...)

	rateLimitMW, err := middleware.RateLimit(redisClient, cfg.RateLimitRate)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}

	r := mux.NewRouter()

	// Middleware runs in registration order: outermost first.
	if cfg.OTELEnabled {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/health", healthChecker.HealthCheck).Methods("GET") // legacy alias
	r.HandleFunc("/version", healthChecker.Version).Methods("GET")

	// The handshake endpoint manages its own CORS headers; only rate
	// limiting and body validation wrap it.
	crossDomainRouter := r.PathPrefix("/api").Subrouter()
	crossDomainRouter.Use(rateLimitMW)
	crossDomainRouter.Use(middleware.ContentType)
	crossDomainHandler.RegisterRoutes(crossDomainRouter)

	// First-party invite API rides the shared CORS middleware.
	inviteRouter := r.PathPrefix("/api").Subrouter()
	inviteRouter.Use(middleware.CORS(cfg.AllowedOrigins))
	inviteRouter.Use(rateLimitMW)
	inviteRouter.Use(middleware.ContentType)
	inviteHandler.RegisterRoutes(inviteRouter, middleware.Auth(provider, zapLogger))
	// Preflight catch-all so the CORS middleware sees OPTIONS requests for
	// routes that only register their real methods.
	inviteRouter.PathPrefix("/invite-codes").Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	gcCtx, gcCancel := context.WithCancel(context.Background())
	defer gcCancel()
	if purger, ok := eventQueue.(queue.DLQPurger); ok {
		dlqGC := queue.NewGarbageCollector(purger, 1*time.Hour, 24*time.Hour)
		go func() {
			if err := dlqGC.Start(gcCtx); err != nil && err != context.Canceled {
				zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
			}
		}()
		zapLogger.Info("started_dlq_garbage_collector")
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	gcCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// connectRabbitMQ retries with exponential backoff to ride out broker
// startup delays. Returns nil if the broker never comes up; the server runs
// without the audit stream in that case.
func connectRabbitMQ(amqpURL string, zapLogger *zap.Logger) queue.EventQueue {
	const maxRetries = 10
	delay := 2 * time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		q, err := queue.NewRabbitMQQueue(amqpURL)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return q
		}

		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
		time.Sleep(delay)
		delay *= 2
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
	}

	zapLogger.Error("failed_to_connect_to_rabbitmq_after_retries_audit_stream_disabled")
	return nil
}
