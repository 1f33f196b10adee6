// Package router assembles the gin engine of the ledger API.
package router

import (
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/interfaces/http/handler"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// RouteRegistrar mounts a handler's routes on a group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Config holds the cross-cutting settings of the engine
type Config struct {
	Logger      *zap.Logger
	ServiceName string
	// Meter enables request metrics when set
	Meter         metric.Meter
	TracerOptions []otelgin.Option
	// TracingEnabled wraps every request in an otelgin span
	TracingEnabled bool
	MaxBodySize    int64
	TrustedProxies []string
	// DefaultTenant serves requests without X-Tenant-ID; uuid.Nil requires the header
	DefaultTenant uuid.UUID
}

// Handlers are the route registrars of the engine
type Handlers struct {
	System   *handler.SystemHandler
	Webhooks RouteRegistrar
	API      []RouteRegistrar
}

// New builds the engine. API routes live under /api/v1 and webhooks under
// /webhooks; both require a tenant. Health probes need none.
func New(cfg Config, h Handlers) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(logger.Recovery(log))
	if cfg.TracingEnabled {
		engine.Use(middleware.Tracing(cfg.ServiceName, cfg.TracerOptions...))
	}
	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		middleware.HTTPMetrics(cfg.Meter, log),
		middleware.BodyLimit(cfg.MaxBodySize),
	)

	if h.System != nil {
		engine.GET("/health", h.System.Live)
		engine.GET("/ready", h.System.Ready)
	}

	tenant := middleware.Tenant(middleware.TenantConfig{Default: cfg.DefaultTenant})

	api := engine.Group("/api/v1", tenant, middleware.SpanEnricher())
	for _, r := range h.API {
		r.RegisterRoutes(api)
	}
	if h.Webhooks != nil {
		h.Webhooks.RegisterRoutes(engine.Group("/webhooks", tenant, middleware.SpanEnricher()))
	}
	return engine, nil
}
