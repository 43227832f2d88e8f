package repository

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/dnsscience/telemetry/dto"
	"github.com/dnsscience/telemetry/interfaces"
	"github.com/dnsscience/telemetry/internal/models"
	"github.com/dnsscience/telemetry/internal/tracing"
)

type statsRepository struct {
	db *gorm.DB
}

func NewStatsRepository(db *gorm.DB) interfaces.StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) CountActiveDomains(ctx context.Context) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "StatsRepository.CountActiveDomains")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var count int64
	err := r.db.WithContext(ctx).Model(&models.Domain{}).Where("is_active = ?", true).Count(&count).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, storeErr("StatsRepository.CountActiveDomains", err)
	}
	return count, nil
}

func (r *statsRepository) CountDomainsCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "StatsRepository.CountDomainsCreatedSince")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.LogKV("request.since", since.Format(time.RFC3339))

	var count int64
	err := r.db.WithContext(ctx).Model(&models.Domain{}).Where("created_at >= ?", since).Count(&count).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, storeErr("StatsRepository.CountDomainsCreatedSince", err)
	}
	return count, nil
}

func (r *statsRepository) EmailSecurityCoverage(ctx context.Context) (*dto.EmailCoverage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "StatsRepository.EmailSecurityCoverage")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var coverage dto.EmailCoverage
	err := r.db.WithContext(ctx).Raw(`SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE has_mx) AS mx,
		COUNT(*) FILTER (WHERE has_spf) AS spf,
		COUNT(*) FILTER (WHERE has_dmarc) AS dmarc,
		COUNT(*) FILTER (WHERE has_dkim) AS dkim,
		COUNT(*) FILTER (WHERE has_dane) AS dane,
		COUNT(*) FILTER (WHERE has_mta_sts) AS mta_sts
		FROM email_security_records`).Scan(&coverage).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, storeErr("StatsRepository.EmailSecurityCoverage", err)
	}
	return &coverage, nil
}

func (r *statsRepository) CertificateCounts(ctx context.Context, now time.Time, expiringWithin time.Duration) (*dto.SSLStats, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "StatsRepository.CertificateCounts")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var row struct {
		Total        int64 `gorm:"column:total"`
		ExpiringSoon int64 `gorm:"column:expiring_soon"`
		Expired      int64 `gorm:"column:expired"`
	}
	err := r.db.WithContext(ctx).Raw(`SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE expires_at BETWEEN ? AND ?) AS expiring_soon,
		COUNT(*) FILTER (WHERE expires_at < ?) AS expired
		FROM ssl_certificates`, now, now.Add(expiringWithin), now).Scan(&row).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, storeErr("StatsRepository.CertificateCounts", err)
	}
	return &dto.SSLStats{Total: row.Total, ExpiringSoon: row.ExpiringSoon, Expired: row.Expired}, nil
}

// CountryDistribution maps active domain IPs onto GeoIP networks. With no
// location data loaded it reports not-ready instead of failing.
func (r *statsRepository) CountryDistribution(ctx context.Context, limit int) (map[string]int64, bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "StatsRepository.CountryDistribution")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	countries := map[string]int64{}
	if !r.db.WithContext(ctx).Migrator().HasTable(&models.GeoIPLocation{}) {
		span.LogKV("result.geoipReady", false)
		return countries, false, nil
	}

	var locations int64
	if err := r.db.WithContext(ctx).Model(&models.GeoIPLocation{}).Count(&locations).Error; err != nil {
		tracing.TraceErr(span, err)
		return countries, false, storeErr("StatsRepository.CountryDistribution", err)
	}
	if locations == 0 {
		span.LogKV("result.geoipReady", false)
		return countries, false, nil
	}

	var rows []dto.CountryCount
	err := r.db.WithContext(ctx).Raw(`SELECT gl.country_name, COUNT(*) AS cnt
		FROM domains d
		JOIN geoip_blocks gb ON d.ip_address <<= gb.network
		JOIN geoip_locations gl ON gb.geoname_id = gl.geoname_id
		WHERE d.is_active = true AND gl.country_name IS NOT NULL
		GROUP BY gl.country_name
		ORDER BY cnt DESC
		LIMIT ?`, limit).Scan(&rows).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return countries, true, storeErr("StatsRepository.CountryDistribution", err)
	}

	for _, row := range rows {
		countries[row.CountryName] = row.Count
	}
	return countries, true, nil
}

func (r *statsRepository) ValuationTotals(ctx context.Context) (*dto.ValuationStats, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "StatsRepository.ValuationTotals")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	totals := &dto.ValuationStats{}
	if !r.db.WithContext(ctx).Migrator().HasTable(&models.DomainValuation{}) {
		span.LogKV("result.tablePresent", false)
		return totals, nil
	}

	var row struct {
		Total      int64   `gorm:"column:total"`
		TotalValue float64 `gorm:"column:total_value"`
	}
	err := r.db.WithContext(ctx).Raw(`SELECT COUNT(*) AS total, COALESCE(SUM(estimated_value), 0) AS total_value
		FROM domain_valuations`).Scan(&row).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return totals, storeErr("StatsRepository.ValuationTotals", err)
	}

	totals.Total = row.Total
	totals.TotalValue = row.TotalValue
	return totals, nil
}


