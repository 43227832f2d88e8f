package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/dnsscience/telemetry/interfaces"
	"github.com/dnsscience/telemetry/internal/tracing"
)

type StatsHandler struct {
	gateway interfaces.StatsGateway
}

func NewStatsHandler(gateway interfaces.StatsGateway) *StatsHandler {
	return &StatsHandler{gateway: gateway}
}

// Live serves the dashboard document, from the stats cache when warm.
func (h *StatsHandler) Live() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "StatsHandler.Live")
		defer span.Finish()
		tracing.TagComponentRest(span)

		stats := h.gateway.Stats(ctx)
		span.SetTag("stats.source", stats.Source)

		c.JSON(http.StatusOK, stats)
	}
}
