package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/advisor"
	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/catalog"
	"fintrack/internal/classifier"
	"fintrack/internal/config"
	"fintrack/internal/core"
	apphttp "fintrack/internal/http"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	applog.Setup(applog.ParseLevel(cfg.LogLevel))
	logger := applog.ForComponent(applog.ComponentAPI)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Category catalog: DB-backed, with a short-lived read-through cache.
	catalogCache := cache.NewLRUCache[[]string](4, 5*time.Minute)
	src := catalog.NewCached(repo.CatalogSource(), catalogCache)

	// Summary cache: Redis when configured, in-process LRU otherwise.
	var summaries cache.Cache[[]core.CategorySpending]
	if cfg.RedisURL != "" {
		redisClient, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		summaries = cache.NewRedisCache[[]core.CategorySpending](redisClient, "fintrack", 5*time.Minute)
		logger.Info("Using Redis summary cache")
	} else {
		lru := cache.NewLRUCache[[]core.CategorySpending](200, 5*time.Minute)
		manager := cache.NewManager()
		manager.Register(lru)
		manager.StartCleanup(10 * time.Minute)
		defer manager.Stop()
		summaries = lru
	}

	// Classifier and advisor are optional; without an API key the service
	// runs with manual categorization only.
	var (
		suggester classifier.Suggester
		tips      advisor.TipGenerator
	)
	if cfg.GeminiAPIKey != "" {
		g, err := classifier.NewGemini(context.Background(), src, cfg.GeminiModel, cfg.GeminiTimeout)
		if err != nil {
			logger.Error("Failed to initialize Gemini classifier", "error", err)
			os.Exit(1)
		}
		suggester = g
		a, err := advisor.NewGemini(context.Background(), cfg.GeminiModel, cfg.GeminiTimeout)
		if err != nil {
			logger.Error("Failed to initialize Gemini advisor", "error", err)
			os.Exit(1)
		}
		tips = a
		logger.Info("Gemini collaborators initialized", "model", cfg.GeminiModel)
	} else {
		logger.Info("Gemini disabled - no GEMINI_API_KEY provided")
	}

	// Category-updated events are best-effort; a missing broker degrades
	// to no export, not a dead API.
	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, category events disabled", "error", err)
		} else {
			defer amqpClient.Close()
			events = amqpClient
		}
	}

	transactions := services.NewTransactionService(repo)
	categorization := services.NewCategorizationService(repo, src, suggester, events, summaries)
	analytics := services.NewAnalyticsService(repo, src, tips, summaries)

	auth := apphttp.NewAuthenticator(cfg.JWTSecret)
	srv := apphttp.NewServer(":"+cfg.Port, auth, transactions, categorization, analytics, src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting fintrack server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
