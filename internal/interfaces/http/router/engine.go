package router

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/societyledger/backend/internal/infrastructure/logger"
	"github.com/societyledger/backend/internal/interfaces/http/middleware"
)

// EngineConfig selects the optional parts of the middleware chain
type EngineConfig struct {
	ServiceName      string
	TracingEnabled   bool
	ProfilingEnabled bool
	MaxBodySize      int64
	CORSOrigins      []string
	TrustedProxies   []string
	// Meter records HTTP metrics; nil disables them
	Meter metric.Meter
}

// NewEngine builds the gin engine with the full middleware chain, the health
// endpoints and every API route group
func NewEngine(cfg EngineConfig, log *zap.Logger, h Handlers) (*gin.Engine, error) {
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.CORSOrigins

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Tracing(middleware.TracingConfig{ServiceName: cfg.ServiceName, Enabled: cfg.TracingEnabled}),
		middleware.SpanAttributes(),
		middleware.HTTPMetrics(cfg.Meter),
		middleware.Secure(),
		middleware.CORS(cors),
	)
	if cfg.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}

	engine.GET("/health", h.System.Health)
	engine.GET("/ready", h.System.Ready)

	NewRouter(engine, WithAPIMiddleware(
		middleware.Tenant(middleware.DefaultTenantConfig()),
		middleware.Profiling(cfg.ProfilingEnabled),
	)).Register(DomainGroups(h)...).Setup()

	return engine, nil
}
