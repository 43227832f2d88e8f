package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/dnsscience/telemetry/interfaces"
	"github.com/dnsscience/telemetry/internal/tracing"
)

type SecurityHandler struct {
	scorer interfaces.DomainSecurityService
}

func NewSecurityHandler(scorer interfaces.DomainSecurityService) *SecurityHandler {
	return &SecurityHandler{scorer: scorer}
}

func (h *SecurityHandler) DomainSecurityScore() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "SecurityHandler.DomainSecurityScore")
		defer span.Finish()
		tracing.TagComponentRest(span)

		domain := strings.TrimSpace(c.Query("domain"))
		if domain == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": missingParam("domain")})
			return
		}
		tracing.TagDomain(span, domain)

		score, err := h.scorer.DomainSecurityScore(ctx, domain)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, score)
	}
}
