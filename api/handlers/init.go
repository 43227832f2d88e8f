package handlers

import (
	"github.com/dnsscience/telemetry/interfaces"
	"github.com/dnsscience/telemetry/internal/logger"
)

type APIHandlers struct {
	Stats       *StatsHandler
	Reputation  *ReputationHandler
	Security    *SecurityHandler
	Geolocation *GeolocationHandler
}

type Services struct {
	Stats       interfaces.StatsGateway
	Reputation  interfaces.ReputationService
	Geolocation interfaces.GeolocationService
	Security    interfaces.DomainSecurityService
}

func InitHandlers(s Services, log logger.Logger) *APIHandlers {
	return &APIHandlers{
		Stats:       NewStatsHandler(s.Stats),
		Reputation:  NewReputationHandler(s.Reputation, s.Geolocation, log),
		Security:    NewSecurityHandler(s.Security),
		Geolocation: NewGeolocationHandler(s.Geolocation),
	}
}
