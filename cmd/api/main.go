package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"

	"github.com/clinicvoice/frontdesk/internal/api/router"
	appconfig "github.com/clinicvoice/frontdesk/internal/config"
	"github.com/clinicvoice/frontdesk/internal/dialog"
	"github.com/clinicvoice/frontdesk/internal/ehr/nexhealth"
	"github.com/clinicvoice/frontdesk/internal/http/handlers"
	"github.com/clinicvoice/frontdesk/internal/nlu"
	"github.com/clinicvoice/frontdesk/internal/observability/metrics"
	"github.com/clinicvoice/frontdesk/internal/practice"
	"github.com/clinicvoice/frontdesk/pkg/logging"
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting frontdesk API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	// Shared stores
	rdb := connectRedis(cfg)
	db := connectPostgres(cfg.DatabaseURL, logger)

	practiceStore := practice.NewStore(rdb)
	stateStore := dialog.NewRedisStateStore(rdb, cfg.ConversationStateTTL)
	auditLog := dialog.NewAuditLog(db)

	metricsHandler, dialogMetrics := setupDialogMetrics()

	// Conversation core
	ehrClient, err := setupEHR(cfg)
	if err != nil {
		logger.Error("failed to configure scheduling client", "error", err)
		os.Exit(1)
	}
	var transcripts dialog.TranscriptFetcher
	if t := dialog.NewPlatformTranscripts(cfg.TranscriptBaseURL, cfg.TranscriptAPIKey, 5*time.Second); t != nil {
		transcripts = t
	}
	engine := dialog.NewEngine(dialog.EngineConfig{
		EHR:                   ehrClient,
		NLU:                   setupNLU(cfg, logger),
		Transcripts:           transcripts,
		TranscriptRetryDelay:  cfg.TranscriptRetryDelay,
		SlotPresentationCount: cfg.SlotPresentationCount,
		Logger:                logger,
	})
	dispatcher := dialog.NewDispatcher(engine, stateStore, practiceStore, auditLog, dialogMetrics, logger)

	// Setup router
	r := router.New(&router.Config{
		Logger: logger,
		Health: handlers.NewHealthHandler(cfg.Env),
		VoiceTool: handlers.NewVoiceToolHandler(handlers.VoiceToolHandlerConfig{
			Practices:  practiceStore,
			Dispatcher: dispatcher,
			Logger:     logger,
		}),
		MetricsHandler:       metricsHandler,
		WebhookRatePerSecond: 20,
		WebhookBurst:         40,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func connectRedis(cfg *appconfig.Config) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(opts)
}

// connectPostgres opens the audit log database. An empty URL disables
// auditing rather than failing startup.
func connectPostgres(databaseURL string, logger *logging.Logger) *sql.DB {
	if databaseURL == "" {
		logger.Warn("DATABASE_URL not set; tool invocation auditing disabled")
		return nil
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		logger.Error("failed to open postgres", "error", err)
		return nil
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db
}

func setupDialogMetrics() (http.Handler, *metrics.DialogMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewDialogMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}

func setupNLU(cfg *appconfig.Config, logger *logging.Logger) *nlu.Service {
	clientCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.OpenAITimeout}
	return nlu.NewService(openai.NewClientWithConfig(clientCfg), cfg.OpenAIModel, logger)
}

func setupEHR(cfg *appconfig.Config) (*nexhealth.Client, error) {
	tokens := nexhealth.NewTokenCache(
		nexhealth.ClientCredentials(cfg.EHRBaseURL, cfg.EHRClientID, cfg.EHRClientSecret, nil),
		cfg.EHRTokenExpirySlop,
	)
	return nexhealth.New(nexhealth.Config{
		BaseURL: cfg.EHRBaseURL,
		Tokens:  tokens,
		Timeout: cfg.EHRTimeout,
	})
}
