package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"content-safety/internal/analyzer"
	"content-safety/internal/cache"
	"content-safety/internal/classifier"
	"content-safety/internal/config"
	"content-safety/internal/duplicate"
	"content-safety/internal/fallback"
	"content-safety/internal/handler"
	"content-safety/internal/llm"
	"content-safety/internal/moderation"
	"content-safety/internal/repository"
	"content-safety/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yml"
	}

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		panic(err)
	}

	// Initialize logger
	logger, err := newLogger(cfg.Logging.Development)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting Content Safety Service...")

	// Initialize database and run migrations
	db, err := repository.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	contentRepo := repository.NewContentRepository(db, logger)
	reportRepo := repository.NewReportRepository(db, logger)
	moderationRepo := repository.NewModerationRepository(db, logger)

	heuristics, err := fallback.New()
	if err != nil {
		logger.Fatal("Failed to build keyword heuristics", zap.Error(err))
	}

	// Remote analyzer, probed once at startup
	remote := newAnalyzer(cfg, heuristics, logger)
	statusFn := func() string { return remote.Status().String() }

	// Stage 1 and the orchestrator. A nil checker leaves the safety
	// service in keyword-only mode.
	var checker service.Checker
	if cfg.ModerationEnabled() {
		detector := duplicate.NewDetector(contentRepo, cfg.Moderation.Duplicate, logger)
		checker = moderation.NewOrchestrator(detector, classifier.Default(), remote, logger)
		logger.Info("Moderation pipeline initialized",
			zap.String("analyzer", remote.Status().String()))
	} else {
		logger.Warn("Moderation pipeline disabled, using keyword check only")
	}

	safety := service.NewSafetyService(checker, contentRepo, reportRepo, moderationRepo,
		heuristics, cfg.Escalation, logger)

	// Initialize HTTP handler
	apiHandler := handler.NewHandler(safety, statusFn, logger)

	// Setup Gin router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Register routes
	apiHandler.RegisterRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Info("Server starting", zap.String("address", serverAddr))

	// Graceful shutdown
	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Content Safety Service is running",
		zap.String("port", cfg.Server.Port),
		zap.String("analyzer", statusFn()),
		zap.Bool("pipeline", safety.HasChecker()))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newAnalyzer wires providers, the verdict cache and the analyzer, then
// probes availability. Any failure yields an analyzer that always uses
// local heuristics.
func newAnalyzer(cfg *config.Config, heuristics *fallback.Heuristics, logger *zap.Logger) *analyzer.Analyzer {
	if !cfg.AnalyzerEnabled() {
		logger.Info("Remote analyzer disabled by configuration")
		return analyzer.Noop(heuristics, logger)
	}

	client, err := llm.NewMultiProviderClient(llm.MultiProviderConfig{
		Providers:   cfg.Providers,
		MaxFailures: cfg.MaxFailuresBeforeSwitch,
	}, logger)
	if err != nil {
		logger.Warn("Failed to initialize inference providers, using heuristics", zap.Error(err))
		return analyzer.Noop(heuristics, logger)
	}

	var opts []analyzer.Option
	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		rdb, err := cache.NewClient(ctx, cfg.Redis)
		cancel()
		if err != nil {
			logger.Warn("Redis unavailable, verdict cache disabled",
				zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			opts = append(opts, analyzer.WithCache(cache.NewVerdictCache(rdb, cfg.Redis.TTL, logger)))
			logger.Info("Verdict cache enabled", zap.String("addr", cfg.Redis.Addr))
		}
	}

	a := analyzer.New(client, heuristics, cfg.Analyzer.Config, logger, opts...)
	status := a.Probe(context.Background())

	logger.Info("Remote analyzer probed",
		zap.String("status", status.String()),
		zap.Any("providers", client.GetModelInfo()))
	return a
}
