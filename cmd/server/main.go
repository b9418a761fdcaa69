// Package main is the entry point for the checkbook API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkbook/internal/app"
	"checkbook/internal/config"
	"checkbook/internal/domain/auth"
	"checkbook/internal/domain/posting"
	"checkbook/internal/infrastructure/accounting"
	v1 "checkbook/internal/infrastructure/http/v1"
	"checkbook/internal/infrastructure/storage/memory"
	"checkbook/internal/infrastructure/storage/postgres"
	"checkbook/pkg/logger"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx := context.Background()
	log.Infow("starting checkbook server", "version", version, "storage", cfg.Storage.Driver)

	// --- Storage ---
	var st app.Storage
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		log.Warn("using in-memory storage; data is lost on restart")
		st = app.NewMemoryStorage(memory.New())
	default:
		poolCfg := postgres.DefaultPoolConfig(cfg.Database.DSN)
		poolCfg.MaxConns = cfg.Database.MaxConns
		poolCfg.MinConns = cfg.Database.MinConns

		pool, err := postgres.NewPool(ctx, poolCfg)
		if err != nil {
			log.Fatalw("failed to connect to database", "error", err)
		}
		defer pool.Close()
		log.Info("database connection established")

		st, err = app.NewPostgresStorage(pool, app.PostgresOptions{
			AuditCompressThreshold: cfg.Audit.CompressThreshold,
			IdempotencyTTL:         cfg.Worker.IdempotencyTTL,
		})
		if err != nil {
			log.Fatalw("failed to initialize storage", "error", err)
		}
	}

	// --- Accounting client ---
	accCfg := accounting.DefaultConfig(cfg.Accounting.BaseURL, cfg.Accounting.APIKey)
	accCfg.Timeout = cfg.Accounting.Timeout
	accCfg.BreakerConsecutiveFailures = cfg.Accounting.BreakerFailures
	accCfg.BreakerOpenTimeout = cfg.Accounting.BreakerOpenTimeout
	accountingClient := accounting.NewClient(accCfg)

	services := app.NewServices(st, accountingClient, posting.Accounts{
		DebitAccountID:     cfg.Accounting.DebitAccountID,
		CreditAccountID:    cfg.Accounting.CreditAccountID,
		AuxiliaryAccountID: cfg.Accounting.AuxiliaryAccountID,
	})

	// --- Router ---
	routerCfg := v1.RouterConfig{
		Logger:         log,
		Idempotency:    st.Idempotency,
		Ping:           st.Ping,
		StorageDriver:  st.Driver,
		Version:        version,
		Requests:       services.Requests,
		Ledger:         services.Ledger,
		History:        services.History,
		Issuance:       services.Issuance,
		Posting:        services.Posting,
		Reports:        services.Reports,
		PostingTimeout: cfg.HTTP.PostingTimeout,
	}
	if cfg.Auth.JWTSecret != "" {
		jwtCfg := auth.DefaultJWTConfig(cfg.Auth.JWTSecret)
		jwtCfg.Issuer = cfg.Auth.Issuer
		routerCfg.JWTValidator = auth.NewJWTService(jwtCfg)
	} else {
		log.Warn("JWT secret not set; API is unauthenticated")
	}
	router := v1.NewRouter(routerCfg)

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
