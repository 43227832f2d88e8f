package reputation

import (
	"net/http"

	"github.com/dnsscience/telemetry/config"
	"github.com/dnsscience/telemetry/internal/cache"
	"github.com/dnsscience/telemetry/internal/logger"
)

// Quotas maps each rate-limited source to its window.
func Quotas(cfg *config.ReputationConfig) map[string]cache.Quota {
	return map[string]cache.Quota{
		SourceAbuseIPDB:     {Limit: cfg.AbuseIPDBDailyQuota, Period: cache.PerDay},
		SourceVirusTotal:    {Limit: cfg.VirusTotalDailyQuota, Period: cache.PerDay},
		SourceShodan:        {Limit: cfg.ShodanPerSecondQuota, Period: cache.PerSecond},
		SourceIPGeolocation: {Limit: cfg.IPGeoMonthlyQuota, Period: cache.PerMonth},
	}
}

// ConfiguredSources returns the sources that have credentials. Unconfigured
// sources are neither called nor listed in results.
func ConfiguredSources(cfg *config.ReputationConfig, client *http.Client) []Source {
	var sources []Source
	if cfg.AbuseIPDBAPIKey != "" {
		sources = append(sources, NewAbuseIPDB(cfg.AbuseIPDBAPIKey, client))
	}
	if cfg.VirusTotalAPIKey != "" {
		sources = append(sources, NewVirusTotal(cfg.VirusTotalAPIKey, client))
	}
	if cfg.ShodanAPIKey != "" {
		sources = append(sources, NewShodan(cfg.ShodanAPIKey, client))
	}
	if cfg.BlacklistScanEnabled {
		sources = append(sources, NewBlacklist(nil))
	}
	return sources
}

func NewFromConfig(cfg *config.ReputationConfig, client *http.Client, c *cache.Cache, log logger.Logger) (*Aggregator, *Geolocator) {
	limiter := cache.NewRateLimiter(c, Quotas(cfg))
	aggregator := NewAggregator(ConfiguredSources(cfg, client), limiter, c, cfg.ReputationCacheTTL, log)
	geolocator := NewGeolocator(GeolocatorConfig{
		IPGeolocationAPIKey: cfg.IPGeolocationAPIKey,
		IPInfoToken:         cfg.IPInfoToken,
		TTL:                 cfg.GeolocationCacheTTL,
	}, client, limiter, c, log)
	return aggregator, geolocator
}
