// Package main is the entry point for the dialog engine server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/channeldesk/dialog-engine/internal/adapter"
	"github.com/channeldesk/dialog-engine/internal/assistant"
	"github.com/channeldesk/dialog-engine/internal/catalog"
	"github.com/channeldesk/dialog-engine/internal/config"
	"github.com/channeldesk/dialog-engine/internal/engine"
	"github.com/channeldesk/dialog-engine/internal/handler"
	"github.com/channeldesk/dialog-engine/internal/handoff"
	"github.com/channeldesk/dialog-engine/internal/hours"
	"github.com/channeldesk/dialog-engine/internal/middleware"
	natsclient "github.com/channeldesk/dialog-engine/internal/nats"
	"github.com/channeldesk/dialog-engine/internal/store"
	"github.com/channeldesk/dialog-engine/pkg/logger"
	"github.com/channeldesk/dialog-engine/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting dialog engine")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "dialog-engine", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to NATS
	natsClient, err := natsclient.Connect(ctx, natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Error("failed to connect to NATS", zap.Error(err))
		os.Exit(1)
	}
	defer natsClient.Close()

	// Ensure JetStream stream exists
	streamManager := natsclient.NewStreamManager(natsClient)
	if err := streamManager.EnsureStream(ctx); err != nil {
		log.Error("failed to ensure stream", zap.Error(err))
		os.Exit(1)
	}

	// Durable conversation state in JetStream KV
	convStore, err := store.NewKVStore(ctx, natsClient.JetStream())
	if err != nil {
		log.Error("failed to bind conversation state bucket", zap.Error(err))
		os.Exit(1)
	}

	// Load menu catalog and business hours
	cat := catalog.NewMemoryCatalog(log)
	sched := hours.NewSchedule()
	if err := catalog.LoadFile(cfg.CatalogFile, cat, sched); err != nil {
		// Invalid menus load inactive; the engine keeps running.
		log.Warn("catalog loaded with configuration errors", zap.Error(err))
	}

	// Assistant providers, keyed by configured credentials
	var clients []assistant.Client
	if cfg.OpenAIAPIKey != "" {
		if c, err := assistant.NewOpenAIClient(cfg.OpenAIAPIKey, ""); err == nil {
			clients = append(clients, c)
		}
	}
	if cfg.XAIAPIKey != "" {
		if c, err := assistant.NewGrokClient(cfg.XAIAPIKey, ""); err == nil {
			clients = append(clients, c)
		}
	}
	if cfg.GeminiAPIKey != "" {
		if c, err := assistant.NewGeminiClient(ctx, cfg.GeminiAPIKey, ""); err == nil {
			clients = append(clients, c)
		} else {
			log.Warn("failed to create Gemini client", zap.Error(err))
		}
	}
	if cfg.AnthropicAPIKey != "" {
		if c, err := assistant.NewAnthropicClient(cfg.AnthropicAPIKey, ""); err == nil {
			clients = append(clients, c)
		}
	}

	// Build the engine
	eng := engine.New(
		engine.Config{
			FailedMatchCeiling: cfg.FailedMatchCeiling,
			DescentCap:         cfg.DescentCap,
			SendRetries:        cfg.SendRetries,
			RetryBase:          cfg.RetryBase,
			LeaseRetryDelay:    cfg.LeaseRetryDelay,
			LeaseWait:          cfg.LeaseWait,
		},
		cat,
		convStore,
		adapter.NewNATSPublisher(streamManager),
		handoff.NewNATSEmitter(streamManager),
		assistant.NewRegistry(clients...),
		sched,
		streamManager,
		log,
	)
	defer eng.Shutdown()

	// Rebuild expiration timers from persisted state
	if err := eng.RestoreTimers(ctx); err != nil {
		log.Error("failed to restore timers", zap.Error(err))
		os.Exit(1)
	}

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(natsClient)
	eventHandler := handler.NewEventHandler(eng, log)
	conversationHandler := handler.NewConversationHandler(eng, streamManager, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.With(middleware.RequireScope(middleware.ScopeEventsWrite)).
			Post("/events", eventHandler.Ingest)

		r.Route("/conversations/{channel}/{contact}", func(r chi.Router) {
			r.With(middleware.RequireScope(middleware.ScopeConversationsRead)).
				Get("/", conversationHandler.Get)
			r.With(middleware.RequireScope(middleware.ScopeConversationsRead)).
				Get("/history", conversationHandler.History)
			r.With(middleware.RequireScope(middleware.ScopeConversationsWrite)).
				Delete("/", conversationHandler.Takeover)
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
