package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/dnsscience/telemetry/api/handlers"
	"github.com/dnsscience/telemetry/api/middleware"
	"github.com/dnsscience/telemetry/internal/logger"
	"github.com/dnsscience/telemetry/internal/tracing"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(r *gin.Engine, s handlers.Services, apikey string, log logger.Logger) {
	if s.Stats == nil {
		panic("Stats gateway cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	apiHandlers := handlers.InitHandlers(s, log)

	r.GET("/health", handlers.HealthCheck)

	// dashboard stats are public
	stats := r.Group("/api")
	stats.Use(middleware.TracingMiddleware())
	{
		stats.GET("/stats/live", apiHandlers.Stats.Live())
		stats.GET("/stats", apiHandlers.Stats.Live())
	}

	v1 := r.Group("/v1")
	v1.Use(middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  middleware.APIKeyHeader,
		ValidAPIKey: apikey,
	}))
	v1.Use(middleware.TracingMiddleware())
	{
		v1.GET("/ip-reputation", apiHandlers.Reputation.IPReputation())
		v1.POST("/threat-intel", apiHandlers.Reputation.ThreatIntel())
		v1.GET("/domain-security-score", apiHandlers.Security.DomainSecurityScore())
		v1.GET("/geolocation", apiHandlers.Geolocation.Geolocate())
	}
}
