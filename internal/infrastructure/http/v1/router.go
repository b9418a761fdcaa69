// Package v1 provides HTTP API version 1.
package v1

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"checkbook/internal/domain/audit"
	"checkbook/internal/domain/documents/checkrequest"
	"checkbook/internal/domain/issuance"
	"checkbook/internal/domain/posting"
	"checkbook/internal/domain/registers/balance"
	"checkbook/internal/domain/reports"
	"checkbook/internal/infrastructure/http/v1/handlers"
	"checkbook/internal/infrastructure/http/v1/middleware"
	"checkbook/pkg/logger"
)

// RouterConfig holds the services the API exposes.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator enables bearer authentication on /api/v1 when set.
	JWTValidator middleware.JWTValidator

	// Idempotency enables X-Idempotency-Key handling when set.
	Idempotency middleware.IdempotencyStore

	// Ping checks storage for /health/ready.
	Ping          func(ctx context.Context) error
	StorageDriver string
	Version       string

	Requests *checkrequest.Service
	Ledger   *balance.Ledger
	History  audit.HistoryReader
	Issuance *issuance.Engine
	Posting  *posting.Coordinator
	Reports  *reports.Service

	// PostingTimeout bounds each PostBatch call.
	PostingTimeout time.Duration
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	var pinger handlers.Pinger
	if cfg.Ping != nil {
		pinger = pingFunc(cfg.Ping)
	}
	healthHandler := handlers.NewHealthHandler(pinger, cfg.StorageDriver, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	v1 := router.Group("/api/v1")
	if cfg.JWTValidator != nil {
		v1.Use(middleware.Auth(cfg.JWTValidator))
	}
	if cfg.Idempotency != nil {
		v1.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()
	registerRequestRoutes(v1, base, cfg)
	registerPostingRoutes(v1, base, cfg)
	registerReportRoutes(v1, base, cfg)

	return router
}
