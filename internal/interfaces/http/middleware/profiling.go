package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/societyledger/backend/internal/infrastructure/telemetry"
)

// Profiling tags the CPU samples of each request with its route and tenant so
// a slow bulk generation can be isolated in Pyroscope. Place it after Tenant.
func Profiling(enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		tenant := ""
		if id := GetTenantID(c); id != uuid.Nil {
			tenant = id.String()
		}
		operation := c.Request.Method + " " + routePattern(c)
		telemetry.WithOperationLabels(c.Request.Context(), operation, tenant, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}
