package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tokoledger/api/internal/cache"
	"github.com/tokoledger/api/internal/config"
	"github.com/tokoledger/api/internal/database"
	"github.com/tokoledger/api/internal/router"
	"github.com/tokoledger/api/internal/service"
	"github.com/tokoledger/api/internal/ws"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer pool.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Fatal("ping database", zap.Error(err))
	}

	var guard service.SubmissionGuard = cache.NoopGuard{}
	if cfg.RedisAddr != "" {
		redisGuard := cache.NewRedisGuard(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SubmissionTTL)
		if err := redisGuard.Ping(pingCtx); err != nil {
			logger.Warn("redis unavailable, duplicate submissions are not guarded", zap.Error(err))
		} else {
			guard = redisGuard
			defer redisGuard.Close()
			logger.Info("submission guard: redis", zap.String("addr", cfg.RedisAddr))
		}
	} else {
		logger.Info("submission guard: noop")
	}

	hub := ws.NewHub()
	go hub.Run(ctx)

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: router.New(cfg, router.Deps{
			Queries: database.New(pool),
			Pool:    pool,
			Hub:     hub,
			Guard:   guard,
			Logger:  logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
