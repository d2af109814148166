package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/agentgate/config"
	"github.com/ErlanBelekov/agentgate/internal/audit"
	"github.com/ErlanBelekov/agentgate/internal/bootstrap"
	"github.com/ErlanBelekov/agentgate/internal/email"
	"github.com/ErlanBelekov/agentgate/internal/health"
	"github.com/ErlanBelekov/agentgate/internal/infrastructure/postgres"
	ctxlog "github.com/ErlanBelekov/agentgate/internal/log"
	"github.com/ErlanBelekov/agentgate/internal/metrics"
	"github.com/ErlanBelekov/agentgate/internal/repository"
	"github.com/ErlanBelekov/agentgate/internal/session"
	httptransport "github.com/ErlanBelekov/agentgate/internal/transport/http"
	"github.com/ErlanBelekov/agentgate/internal/transport/http/handler"
	"github.com/ErlanBelekov/agentgate/internal/transport/http/middleware"
	"github.com/ErlanBelekov/agentgate/internal/upstream"
	"github.com/ErlanBelekov/agentgate/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

const reapInterval = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := map[string]health.Pinger{}

	// Upstream
	api := upstream.NewClient(upstream.Options{
		APIBase:    cfg.APIBaseURL,
		AuthSuffix: cfg.AuthPathSuffix,
		Tenant:     cfg.Tenant,
		Timeout:    cfg.UpstreamTimeout,
	}, logger)
	deps["upstream"] = api

	// Browser sessions: redis when configured, process memory otherwise
	var sessions session.Provider
	if cfg.RedisURL != "" {
		rdb, err := session.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			stop()
			log.Fatalf("redis: %v", err)
		}
		defer func() { _ = rdb.Close() }()
		rp := session.NewRedisProvider(rdb, "", cfg.SessionTTL)
		sessions = rp
		deps["redis"] = rp
	} else {
		mp := session.NewMemoryProvider()
		sessions = mp
		go session.NewReaper(mp, logger, reapInterval, cfg.SessionTTL).Start(ctx)
	}

	// Audit trail: postgres when configured, log lines otherwise
	var auditRepo repository.AuditRepository = audit.NewLogRepository(logger)
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			stop()
			log.Fatalf("db: %v", err)
		}
		defer pool.Close()
		repo := postgres.NewAuditRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			stop()
			log.Fatalf("db: %v", err)
		}
		auditRepo = repo
		deps["postgres"] = pool
	}
	trail := audit.NewTrail(auditRepo, logger)

	// Credentials and links
	sender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)
	credentials := usecase.NewCredentialUsecase(api, trail, sender, logger)
	links := usecase.NewAgentLinkUsecase(api, trail)
	flows := bootstrap.New(credentials, links, logger)

	metrics.Register()
	checker := health.NewChecker(deps, logger, prometheus.DefaultRegisterer)
	monitor, err := health.NewMonitor(checker, cfg.HealthProbeSchedule, logger)
	if err != nil {
		stop()
		log.Fatalf("health monitor: %v", err)
	}
	go monitor.Start(ctx)

	router := httptransport.NewRouter(logger, httptransport.Handlers{
		Credentials: handler.NewCredentialHandler(credentials, logger),
		AgentLink:   handler.NewAgentLinkHandler(links, logger),
		Web:         handler.NewWebHandler(flows, logger),
	}, httptransport.Options{
		Session: middleware.SessionConfig{
			Secret:     []byte(cfg.SessionSecret),
			TTL:        cfg.SessionTTL,
			CookieName: cfg.SessionCookie,
			Secure:     cfg.SecureCookies(),
			Provider:   sessions,
		},
		RateLimitPerMin: cfg.RateLimitPerMin,
		HSTS:            cfg.SecureCookies(),
	})

	srv := http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port, "upstream", cfg.APIBaseURL, "tenant", cfg.Tenant)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
