package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/dnsscience/telemetry/interfaces"
	er "github.com/dnsscience/telemetry/internal/errors"
	"github.com/dnsscience/telemetry/internal/logger"
	"github.com/dnsscience/telemetry/internal/tracing"
	"github.com/dnsscience/telemetry/services/reputation"
)

type ReputationHandler struct {
	reputation  interfaces.ReputationService
	geolocation interfaces.GeolocationService
	log         logger.Logger
}

type ThreatIntelRequest struct {
	IP string `json:"ip" binding:"required"`
}

type ThreatIntelResponse struct {
	IP          string                  `json:"ip"`
	Reputation  *reputation.Reputation  `json:"reputation"`
	Geolocation *reputation.Geolocation `json:"geolocation"`
}

func NewReputationHandler(rep interfaces.ReputationService, geo interfaces.GeolocationService, log logger.Logger) *ReputationHandler {
	return &ReputationHandler{reputation: rep, geolocation: geo, log: log}
}

func (h *ReputationHandler) IPReputation() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "ReputationHandler.IPReputation")
		defer span.Finish()
		tracing.TagComponentRest(span)

		ip := strings.TrimSpace(c.Query("ip"))
		if ip == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": missingParam("ip")})
			return
		}
		tracing.TagIP(span, ip)

		rep, err := h.reputation.Lookup(ctx, ip)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, rep)
	}
}

// ThreatIntel combines reputation and geolocation for one address. A missing
// geolocation is reported as null rather than failing the request.
func (h *ReputationHandler) ThreatIntel() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "ReputationHandler.ThreatIntel")
		defer span.Finish()
		tracing.TagComponentRest(span)

		var req ThreatIntelRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": missingParam("ip")})
			return
		}
		ip := strings.TrimSpace(req.IP)
		tracing.TagIP(span, ip)

		rep, err := h.reputation.Lookup(ctx, ip)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}

		resp := ThreatIntelResponse{IP: rep.IP, Reputation: rep}
		if h.geolocation != nil {
			geo, err := h.geolocation.Geolocate(ctx, rep.IP)
			switch {
			case err == nil:
				resp.Geolocation = geo
			case !errors.Is(err, er.ErrNotFound):
				h.log.Warnf("geolocation for %s failed: %v", rep.IP, err)
			}
		}

		c.JSON(http.StatusOK, resp)
	}
}
