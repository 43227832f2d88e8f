package stats

import (
	"context"
	"math"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/dnsscience/telemetry/dto"
	"github.com/dnsscience/telemetry/interfaces"
	"github.com/dnsscience/telemetry/internal/logger"
	"github.com/dnsscience/telemetry/internal/tracing"
	"github.com/dnsscience/telemetry/internal/utils"
)

const (
	SourceCache = "cache"
	SourceStore = "store"

	expiringWithin = 30 * 24 * time.Hour
	topCountries   = 20
)

// Collector runs the aggregate queries. A failing aggregate is logged and
// left at its zero value; the rest still run.
type Collector struct {
	repo interfaces.StatsRepository
	log  logger.Logger
	now  func() time.Time
}

func NewCollector(repo interfaces.StatsRepository, log logger.Logger) *Collector {
	return &Collector{repo: repo, log: log, now: utils.Now}
}

func (c *Collector) Collect(ctx context.Context) *dto.Stats {
	span, ctx := opentracing.StartSpanFromContext(ctx, "StatsCollector.Collect")
	defer span.Finish()
	tracing.TagComponentService(span)

	now := c.now()
	today := utils.StartOfDay(now)
	stats := &dto.Stats{
		Countries:      map[string]int64{},
		LastUpdate:     now.Format(time.RFC3339),
		LastUpdateUnix: now.Unix(),
	}

	var err error
	if stats.TotalDomains, err = c.repo.CountActiveDomains(ctx); err != nil {
		c.failed("total_domains", err)
	}
	if stats.DomainsToday, err = c.repo.CountDomainsCreatedSince(ctx, today); err != nil {
		c.failed("domains_today", err)
	}
	if stats.DomainsThisWeek, err = c.repo.CountDomainsCreatedSince(ctx, startOfWeek(today)); err != nil {
		c.failed("domains_this_week", err)
	}
	if stats.DomainsThisMonth, err = c.repo.CountDomainsCreatedSince(ctx, today.AddDate(0, 0, 1-today.Day())); err != nil {
		c.failed("domains_this_month", err)
	}

	if coverage, err := c.repo.EmailSecurityCoverage(ctx); err != nil {
		c.failed("email_security", err)
	} else if coverage != nil {
		stats.EmailSecurity = emailStats(coverage)
	}

	if ssl, err := c.repo.CertificateCounts(ctx, now, expiringWithin); err != nil {
		c.failed("ssl_certificates", err)
	} else if ssl != nil {
		stats.SSLCertificates = *ssl
	}

	if countries, ready, err := c.repo.CountryDistribution(ctx, topCountries); err != nil {
		c.failed("countries", err)
	} else {
		stats.GeoIPReady = ready
		for k, v := range countries {
			stats.Countries[k] = v
		}
	}

	if valuations, err := c.repo.ValuationTotals(ctx); err != nil {
		c.failed("valuations", err)
	} else if valuations != nil {
		stats.Valuations = *valuations
	}

	span.LogKV("result.total_domains", stats.TotalDomains)
	return stats
}

func (c *Collector) failed(metric string, err error) {
	c.log.Warnf("stats aggregate %s failed: %v", metric, err)
}

// startOfWeek returns the Monday of day's week.
func startOfWeek(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func emailStats(c *dto.EmailCoverage) dto.EmailSecurityStats {
	return dto.EmailSecurityStats{
		Total:     c.Total,
		MX:        c.MX,
		MXPct:     percent(c.MX, c.Total),
		SPF:       c.SPF,
		SPFPct:    percent(c.SPF, c.Total),
		DMARC:     c.DMARC,
		DMARCPct:  percent(c.DMARC, c.Total),
		DKIM:      c.DKIM,
		DKIMPct:   percent(c.DKIM, c.Total),
		DANE:      c.DANE,
		DANEPct:   percent(c.DANE, c.Total),
		MTASTS:    c.MTASTS,
		MTASTSPct: percent(c.MTASTS, c.Total),
	}
}

// percent rounds to two decimals; zero total yields zero.
func percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)*10000/float64(total)) / 100
}
