package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/serjnsk/dl-network/internal/app/migrate"
	"github.com/serjnsk/dl-network/internal/dns"
	"github.com/serjnsk/dl-network/internal/hosting"
	httpx "github.com/serjnsk/dl-network/internal/http"
	"github.com/serjnsk/dl-network/internal/repository/postgres"
	"github.com/serjnsk/dl-network/internal/service/auth"
	"github.com/serjnsk/dl-network/internal/service/deploy"
	"github.com/serjnsk/dl-network/internal/service/domains"
	"github.com/serjnsk/dl-network/internal/service/project"
	"github.com/serjnsk/dl-network/internal/ws"
	"github.com/serjnsk/dl-network/pkg/config"
	"github.com/serjnsk/dl-network/pkg/logger"
)

func main() {
	cfg := config.LoadDashboardConfig()
	log := logger.NewWithEnv("api", cfg.Environment, slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)
	deployHub := ws.NewHub()

	hostingClient := hosting.New(cfg.HostingAPIBase, cfg.HostingAccountID, cfg.HostingAPIToken, cfg.HostingTimeout, log)
	reconciler := dns.New(hostingClient, log)

	authSvc := auth.New(log, cfg)
	projectSvc := project.New(repo, repo, repo, repo, log)
	domainSvc := domains.New(repo, repo, repo, reconciler, hostingClient, log, cfg)
	deploySvc := deploy.New(repo, repo, repo, repo, hostingClient, hostingClient, deployHub, log, cfg)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, authSvc, projectSvc, domainSvc, deploySvc, deployHub, limiter, pool.Ping, cfg)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("dashboard api starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("dashboard api stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
