package handlers

import (
	"net/http"

	"github.com/pkg/errors"

	er "github.com/dnsscience/telemetry/internal/errors"
)

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, er.ErrInvalidIP), errors.Is(err, er.ErrInvalidDomain):
		return http.StatusBadRequest
	case errors.Is(err, er.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, er.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case er.Is(err, er.KindHTTP):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func missingParam(name string) string {
	return "Missing required parameter: " + name
}
