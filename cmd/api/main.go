package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"github.com/betlink/governance-api/internal/config"
	"github.com/betlink/governance-api/internal/database"
	"github.com/betlink/governance-api/internal/handlers"
	"github.com/betlink/governance-api/internal/jobs"
	"github.com/betlink/governance-api/internal/middleware"
	"github.com/betlink/governance-api/internal/repository"
	"github.com/betlink/governance-api/internal/services"
	"github.com/betlink/governance-api/pkg/logger"
)

// @title Governance API
// @version 1.0
// @description Multi-admin pause/resume governance and tamper-evident audit core for the Betlink platform

// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Setup(cfg.Environment)

	// Initialize Sentry when DSN is configured
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
		}); err != nil {
			logger.Error("Sentry initialization failed", "error", err)
		} else {
			logger.Info("Sentry initialized")
		}
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to database")

	if err := database.Migrate(db); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	// Real-time publication: Redis when configured, log-only otherwise
	var publisher services.StatusPublisher = services.NewLogPublisher()
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("Invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		publisher = services.NewRedisPublisher(redisClient)
		logger.Info("Connected to Redis", "channel", services.StatusChannel)
	} else {
		logger.Warn("REDIS_URL not set: module status events will only be logged")
	}

	// Initialize repositories
	repos := repository.NewRepositories(db)

	// Initialize background worker
	worker := jobs.NewWorker(cfg.WorkerCount)
	logger.Info("Started background worker", "goroutines", cfg.WorkerCount)

	// Initialize services
	svcs := services.NewServices(repos, worker, publisher, cfg)

	// Register governable modules (idempotent on every start)
	bootstrapCtx, cancelBootstrap := context.WithTimeout(context.Background(), 30*time.Second)
	if err := svcs.Governance.Bootstrap(bootstrapCtx); err != nil {
		cancelBootstrap()
		logger.Error("Failed to bootstrap governable modules", "error", err)
		os.Exit(1)
	}
	cancelBootstrap()
	logger.Info("Governable modules ready", "modules", cfg.GovernedModules, "quorum", cfg.QuorumSize)

	// Schedule recurring jobs
	scheduleJobs(worker, svcs, cfg)

	// Initialize handlers
	h := handlers.NewHandlers(svcs, worker)

	// Setup router
	router := setupRouter(h, cfg)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Shutdown background worker
	worker.Shutdown()
	logger.Info("Background worker stopped")

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Failed to close Redis client", "error", err)
		}
	}

	// Flush Sentry events before exit
	if cfg.SentryDSN != "" {
		sentry.Flush(5 * time.Second)
	}

	logger.Info("Server exited gracefully")
}

func setupRouter(h *handlers.Handlers, cfg *config.Config) *gin.Engine {
	router := gin.New()

	// Global middleware
	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Health check (public)
		v1.GET("/health", h.Health.Index)

		// Protected routes (requires authentication)
		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTSecret))
		{
			// Status queries: financial modules and dashboards poll these
			protected.GET("/governance/modules", h.Governance.ListModules)
			protected.GET("/governance/modules/:module_name", h.Governance.ShowModule)

			// Admin-only routes
			admin := protected.Group("")
			admin.Use(middleware.RequireAdmin())
			{
				// Quorum-gated pause/resume
				admin.POST("/governance/pause", h.Governance.RequestPause)
				admin.POST("/governance/resume", h.Governance.RequestResume)
			}

			// Audit chain: admins plus read-only compliance reviewers
			audit := protected.Group("")
			audit.Use(middleware.RequireRole("admin", "auditor"))
			{
				audit.GET("/audits", h.Audit.Index)
				audit.GET("/audits/verify", h.Audit.Verify)
			}
		}
	}

	return router
}

func scheduleJobs(worker *jobs.Worker, svcs *services.Services, cfg *config.Config) {
	// Periodically republish every module's status so subscribers that missed
	// an event converge. Immediate first run covers process restarts.
	worker.ScheduleEveryImmediate(cfg.BroadcastInterval, func(ctx context.Context) error {
		return svcs.Governance.BroadcastStatuses(ctx)
	})

	verifyChain := func(ctx context.Context) error {
		logger.Info("[Job] Verifying audit chain integrity...")
		last, err := svcs.Audit.LastSequence(ctx)
		if err != nil {
			return err
		}
		if last < 0 {
			return nil
		}
		result, err := svcs.Integrity.Verify(ctx, 0, last)
		if err != nil {
			return err
		}
		if !result.Valid {
			logger.Error("[Job] Audit chain verification failed", "broken_at", *result.BrokenAt)
		}
		return nil
	}

	// Full sweep shortly after boot, then nightly; a violation pages via Sentry.
	worker.Enqueue(verifyChain)
	worker.ScheduleEvery(24*time.Hour, verifyChain)

	logger.Info("Scheduled recurring jobs")
}
