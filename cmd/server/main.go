package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"snaplink/internal/config"
	"snaplink/internal/handlers"
	"snaplink/internal/repository"
	"snaplink/internal/services"
	"snaplink/internal/token"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func Run(ctx context.Context) error {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Setup Logger
	var handler slog.Handler
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 3. Initialize Database
	db, err := repository.InitDB(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// 4. Schema
	if strings.HasPrefix(cfg.DatabaseURL, "postgres") {
		logger.Info("Running database migrations...")
		if err := repository.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	} else if err := repository.AutoMigrate(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	// 5. Link cache. Redis is optional; without it every lookup goes to the database.
	var linkCache services.LinkCache
	rdb, err := repository.InitRedis(cfg.RedisURL, cfg.RedisPassword, 0)
	if err != nil {
		logger.Warn("Failed to connect to Redis, link cache disabled", "error", err)
	} else {
		defer rdb.Close()
		linkCache = repository.NewRedisLinkCache(rdb, cfg.LinkCacheTTL)
	}

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET is not set, bearer tokens are disabled")
	}

	// 6. Initialize Services
	clock := services.Clock(services.SystemClock)
	notifier := services.NewNotifier(db, logger, clock)
	geoIPService := services.NewGeoIPService(cfg, logger)
	clickIngestor := services.NewClickIngestor(db, services.NewUserAgentParser(), geoIPService, logger, clock, cfg.MaskClickIPs)
	shortenerService := services.NewShortenerService(db, linkCache, notifier, logger, clock, cfg)
	resolver := services.NewResolver(shortenerService, clickIngestor, logger, clock)
	analytics := services.NewAnalytics(db, logger, clock, cfg.BreakdownTopN)
	userService := services.NewUserService(db, linkCache, notifier, logger, clock)
	identity := services.NewIdentityProvider(userService, token.NewManager(cfg.JWTSecret, cfg.TokenTTL))
	qrService := services.NewQRService()
	rateLimiter := services.NewIPRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, logger)
	sweeper := services.NewExpirationSweeper(shortenerService, logger, clock, cfg.SweepInterval, cfg.SweepGrace)

	if cfg.AdminEmail != "" {
		admin, created, err := userService.EnsureAdmin(ctx, cfg.AdminEmail)
		if err != nil {
			return fmt.Errorf("failed to bootstrap admin: %w", err)
		}
		if created {
			logger.Info("Created admin account", "email", admin.Email, "api_key", admin.APIKey)
		}
	}

	// 7. Initialize Handler
	h := handlers.NewHandler(cfg, logger, shortenerService, resolver, analytics, userService, identity, qrService)

	// 8. Setup Router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := h.SetupRouter(rateLimiter)

	// 9. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	go notifier.Start(workerCtx)
	go geoIPService.Init()
	go geoIPService.StartUpdater(workerCtx)
	go rateLimiter.StartCleanup(workerCtx, 10*time.Minute)
	go sweeper.Start(workerCtx)
	defer geoIPService.Close()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "base_url", cfg.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	workerCancel()
	// Give the notifier a moment to drain.
	time.Sleep(100 * time.Millisecond)

	logger.Info("Server exiting")
	return nil
}
