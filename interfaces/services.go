package interfaces

import (
	"context"

	"github.com/dnsscience/telemetry/dto"
	"github.com/dnsscience/telemetry/services/reputation"
	"github.com/dnsscience/telemetry/services/security"
)

type StatsGateway interface {
	Stats(ctx context.Context) *dto.Stats
}

type ReputationService interface {
	Lookup(ctx context.Context, ip string) (*reputation.Reputation, error)
}

type GeolocationService interface {
	Geolocate(ctx context.Context, ip string) (*reputation.Geolocation, error)
}

type DomainSecurityService interface {
	DomainSecurityScore(ctx context.Context, domain string) (*security.SecurityScore, error)
}
