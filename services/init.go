package services

import (
	"net/http"

	"github.com/dnsscience/telemetry/config"
	"github.com/dnsscience/telemetry/internal/cache"
	"github.com/dnsscience/telemetry/internal/dns"
	"github.com/dnsscience/telemetry/internal/logger"
	"github.com/dnsscience/telemetry/internal/repository"
	"github.com/dnsscience/telemetry/internal/utils"
	"github.com/dnsscience/telemetry/services/certificate"
	"github.com/dnsscience/telemetry/services/events"
	"github.com/dnsscience/telemetry/services/reputation"
	"github.com/dnsscience/telemetry/services/security"
	"github.com/dnsscience/telemetry/services/stats"
)

type Services struct {
	Cache          *cache.Cache
	EventsService  *events.EventsService
	Resolver       dns.Resolver
	Checker        *security.Checker
	SecurityScore  *security.Service
	Aggregator     *reputation.Aggregator
	Geolocator     *reputation.Geolocator
	CertClient     *certificate.Client
	StatsCollector *stats.Collector
	StatsPopulator *stats.Populator
	StatsGateway   *stats.Gateway
}

// InitServices builds every service once from the shared handles.
func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories, c *cache.Cache) (*Services, error) {
	eventsService, err := events.NewEventsService(cfg.AppConfig.RabbitMQURL, log, events.DefaultPublisherConfig())
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.AppConfig.HTTPClientTimeout}

	resolver := dns.NewResolver(dns.ResolverConfig{
		Nameservers: utils.StringToSlice(cfg.DNSConfig.Nameservers),
		Timeout:     cfg.DNSConfig.Timeout,
	})

	checker := security.NewChecker(resolver, httpClient, log, cfg.ScanConfig.DANEPort)
	aggregator, geolocator := reputation.NewFromConfig(cfg.ReputationConfig, httpClient, c, log)
	collector := stats.NewCollector(repos.StatsRepository, log)

	return &Services{
		Cache:          c,
		EventsService:  eventsService,
		Resolver:       resolver,
		Checker:        checker,
		SecurityScore:  security.NewService(checker, c, cfg.ReputationConfig.DomainSecurityCacheTTL, log).
			WithEnrichTimeout(cfg.AppConfig.HTTPClientTimeout),
		Aggregator:     aggregator,
		Geolocator:     geolocator,
		CertClient:      certificate.NewClient(cfg.AppConfig.HTTPClientTimeout),
		StatsCollector: collector,
		StatsPopulator: stats.NewPopulator(collector, c, cfg.StatsTTL(), log),
		StatsGateway:   stats.NewGateway(collector, c, log),
	}, nil
}

// Close releases the broker connection and the cache handle.
func (s *Services) Close() error {
	if err := s.EventsService.Close(); err != nil {
		return err
	}
	return s.Cache.Close()
}
