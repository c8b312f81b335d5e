package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"log/slog"

	"github.com/averyhollis/bastion/internal/auth"
	"github.com/averyhollis/bastion/internal/background"
	"github.com/averyhollis/bastion/internal/config"
	"github.com/averyhollis/bastion/internal/database"
	"github.com/averyhollis/bastion/internal/handlers"
	middlewareCustom "github.com/averyhollis/bastion/internal/middleware"
	"github.com/averyhollis/bastion/internal/ratelimit"
	"github.com/averyhollis/bastion/internal/repositories"
	"github.com/averyhollis/bastion/internal/routes"
	"github.com/averyhollis/bastion/internal/services"
	pkgauth "github.com/averyhollis/bastion/pkg/auth"
	pkghttp "github.com/averyhollis/bastion/pkg/http"
	pkglogger "github.com/averyhollis/bastion/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := pkglogger.New(cfg.Server.Env, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize Redis for the sliding-window rate limiter
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	tokenRepo := repositories.NewTokenRepository(db)
	twoFactorRepo := repositories.NewTwoFactorRepository(db)
	activityRepo := repositories.NewActivityRepository(db)

	// Security primitives
	hasher := pkgauth.NewPasswordHasher(cfg.Security.BcryptCost)
	totpEngine := auth.NewTOTPEngine(cfg.Security.TOTPIssuer)
	csrfGuard := auth.NewCSRFGuard(cfg.Security.CSRFTokenTTL)
	defer csrfGuard.Stop()
	challenges := auth.NewChallengeIssuer(cfg.Security.ChallengeSecret, cfg.Security.ChallengeTTL)
	timingDelay := auth.NewTimingDelay(cfg.Security.LoginDelayFloor, cfg.Security.LoginDelayJitter)

	limiter := ratelimit.New(
		ratelimit.NewRedisStore(redisClient),
		ratelimit.Config{Limit: cfg.RateLimit.Limit, Window: cfg.RateLimit.Window},
	)

	// AWS SES email sender
	emailSender, err := services.NewAWSSESEmailSender(
		cfg.Email.AWSRegion,
		cfg.Email.FromAddress,
		cfg.Email.BaseURL,
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize email sender", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize services
	activityService := services.NewActivityService(activityRepo, logger)
	tokenService := services.NewTokenService(tokenRepo, services.TokenConfig{
		VerificationTTL: cfg.Security.VerificationTTL,
		ResetTTL:        cfg.Security.ResetTTL,
	}, logger)
	twoFactorService := services.NewTwoFactorService(
		twoFactorRepo, userRepo, totpEngine, hasher, activityService, logger,
		cfg.Security.BackupCodeCount,
	)
	accountService := services.NewAccountService(
		userRepo, tokenService, twoFactorService, hasher, limiter,
		emailSender, challenges, timingDelay, activityService, logger,
	)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: trustedProxies()}
	secureCookies := cfg.Server.Env == "production"
	authHandler := handlers.NewAuthHandler(accountService, csrfGuard, ipConfig, secureCookies)
	twoFactorHandler := handlers.NewTwoFactorHandler(twoFactorService, activityService)

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(tokenService, logger, cfg.Security.CleanupInterval)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.RequestLogger(logger))
	router.Use(middlewareCustom.CSRFProtection(csrfGuard, logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, twoFactorHandler)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// trustedProxies reads the TRUSTED_PROXIES env var as comma-separated CIDRs.
func trustedProxies() []string {
	raw := os.Getenv("TRUSTED_PROXIES")
	if raw == "" {
		return nil
	}

	var cidrs []string
	for _, entry := range strings.Split(raw, ",") {
		if entry = strings.TrimSpace(entry); entry != "" {
			cidrs = append(cidrs, entry)
		}
	}
	return cidrs
}
