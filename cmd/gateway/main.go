package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/schoolstock/schoolstock-gateway/internal/api"
	"github.com/schoolstock/schoolstock-gateway/internal/app"
	"github.com/schoolstock/schoolstock-gateway/internal/audit"
	"github.com/schoolstock/schoolstock-gateway/internal/auth"
	"github.com/schoolstock/schoolstock-gateway/internal/backend"
	"github.com/schoolstock/schoolstock-gateway/internal/gate"
	"github.com/schoolstock/schoolstock-gateway/internal/menu"
	"github.com/schoolstock/schoolstock-gateway/internal/observability"
	"github.com/schoolstock/schoolstock-gateway/internal/platform/cache"
	"github.com/schoolstock/schoolstock-gateway/internal/privilege"
	"github.com/schoolstock/schoolstock-gateway/internal/proxy"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, privilege caching disabled", slog.Any("error", err))
			redisClient = nil
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			}()
		}
	}

	var auditRepo audit.Repository
	if cfg.AuditPGDSN != "" {
		dbpool, err := pgxpool.New(ctx, cfg.AuditPGDSN)
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer dbpool.Close()
		auditRepo = audit.NewRepository(dbpool)
	}
	auditService := audit.NewService(logger, auditRepo)

	backendClient := backend.NewClient(backend.Endpoints{
		BaseURL:       cfg.BackendBaseURL,
		VerifyURL:     cfg.BackendVerifyURL,
		RefreshURL:    cfg.BackendRefreshURL,
		LoginURL:      cfg.BackendLoginURL,
		CreateUserURL: cfg.BackendCreateUserURL,
	}, nil)

	metrics := observability.NewMetrics()

	privilegeService := privilege.NewService(privilege.ServiceConfig{
		Logger:           logger,
		Fetcher:          backendClient,
		Cache:            redisClient,
		CacheTTL:         cfg.PrivilegeCacheTTL,
		SuperAdminEmails: cfg.SuperAdminEmails,
		Permissive:       cfg.PermissiveFallback,
		Metrics:          metrics,
	})
	menuService := menu.NewService(logger, backendClient, cfg.PermissiveFallback)

	excludePrefixes, excludePaths := app.GateExclusions()
	sessionGate := gate.New(gate.Config{
		Logger:          logger,
		Backend:         backendClient,
		SecureCookies:   cfg.SecureCookies(),
		ExcludePrefixes: excludePrefixes,
		ExcludePaths:    excludePaths,
		IsSuperAdmin:    privilegeService.IsSuperAdminEmail,
		Audit:           auditService,
		Metrics:         metrics,
	})

	authHandler := auth.NewHandler(logger, backendClient, auditService, cfg.SecureCookies())
	apiHandler := api.NewHandler(logger, backendClient, privilegeService, menuService)

	forwarder := proxy.New(proxy.Config{
		Logger:          logger,
		BaseURL:         cfg.BackendBaseURL,
		Metrics:         metrics,
		MaxAttempts:     cfg.ProxyMaxAttempts,
		InitialInterval: cfg.ProxyInitialInterval,
		MaxInterval:     cfg.ProxyMaxInterval,
		MaxElapsed:      cfg.ProxyMaxElapsed,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:      logger,
		Config:      cfg,
		Gate:        sessionGate,
		AuthHandler: authHandler,
		APIHandler:  apiHandler,
		Proxy:       forwarder,
		Metrics:     metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
