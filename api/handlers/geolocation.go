package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/dnsscience/telemetry/interfaces"
	"github.com/dnsscience/telemetry/internal/tracing"
)

type GeolocationHandler struct {
	geolocation interfaces.GeolocationService
}

func NewGeolocationHandler(geo interfaces.GeolocationService) *GeolocationHandler {
	return &GeolocationHandler{geolocation: geo}
}

func (h *GeolocationHandler) Geolocate() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "GeolocationHandler.Geolocate")
		defer span.Finish()
		tracing.TagComponentRest(span)

		ip := strings.TrimSpace(c.Query("ip"))
		if ip == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": missingParam("ip")})
			return
		}
		tracing.TagIP(span, ip)

		geo, err := h.geolocation.Geolocate(ctx, ip)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, geo)
	}
}
