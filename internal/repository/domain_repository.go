package repository

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/dnsscience/telemetry/interfaces"
	er "github.com/dnsscience/telemetry/internal/errors"
	"github.com/dnsscience/telemetry/internal/models"
	"github.com/dnsscience/telemetry/internal/tracing"
)

type domainRepository struct {
	db *gorm.DB
}

func NewDomainRepository(db *gorm.DB) interfaces.DomainRepository {
	return &domainRepository{
		db: db,
	}
}

func (r *domainRepository) GetByName(ctx context.Context, domainName string) (*models.Domain, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "DomainRepository.GetByName")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagDomain(span, domainName)

	var domain models.Domain
	err := r.db.WithContext(ctx).
		Where("domain_name = ?", domainName).
		First(&domain).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.LogFields(tracingLog.Bool("response.found", false))
			return nil, er.ErrNotFound
		}
		tracing.TraceErr(span, errors.Wrap(err, "db error"))
		return nil, storeErr("DomainRepository.GetByName", err)
	}

	return &domain, nil
}

func (r *domainRepository) GetStaleForEmailSecurity(ctx context.Context, cutoff time.Time, limit int, exclude []uint64) ([]models.Domain, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "DomainRepository.GetStaleForEmailSecurity")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.LogFields(tracingLog.Int("request.limit", limit), tracingLog.Int("request.excluded", len(exclude)))

	query := r.db.WithContext(ctx).
		Model(&models.Domain{}).
		Select("domains.*").
		Joins("LEFT JOIN email_security_records r ON r.domain_id = domains.id").
		Where("domains.is_active = ?", true).
		Where("r.last_checked IS NULL OR r.last_checked < ?", cutoff)

	return r.findStale(span, excludeIDs(query, exclude).Order("r.last_checked ASC NULLS FIRST"), limit)
}

func (r *domainRepository) GetStaleForCertificates(ctx context.Context, cutoff time.Time, port, limit int, exclude []uint64) ([]models.Domain, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "DomainRepository.GetStaleForCertificates")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.LogFields(tracingLog.Int("request.limit", limit), tracingLog.Int("request.port", port))

	query := r.db.WithContext(ctx).
		Model(&models.Domain{}).
		Select("domains.*").
		Joins("LEFT JOIN ssl_certificates c ON c.domain_name = domains.domain_name AND c.port = ?", port).
		Where("domains.is_active = ?", true).
		Where("c.last_checked IS NULL OR c.last_checked < ?", cutoff)

	return r.findStale(span, excludeIDs(query, exclude).Order("c.last_checked ASC NULLS FIRST"), limit)
}

// GetStaleForReputation groups per domain: a domain counts as fresh when any
// of its IP rows was checked after cutoff, so rows for IPs the domain no
// longer resolves to do not keep it permanently stale.
func (r *domainRepository) GetStaleForReputation(ctx context.Context, cutoff time.Time, limit int, exclude []uint64) ([]models.Domain, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "DomainRepository.GetStaleForReputation")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.LogFields(tracingLog.Int("request.limit", limit), tracingLog.Int("request.excluded", len(exclude)))

	query := r.db.WithContext(ctx).
		Model(&models.Domain{}).
		Select("domains.*").
		Joins("LEFT JOIN ip_reputation r ON r.domain_id = domains.id").
		Where("domains.is_active = ?", true)

	query = excludeIDs(query, exclude).
		Group("domains.id").
		Having("MAX(r.last_checked) IS NULL OR MAX(r.last_checked) < ?", cutoff).
		Order("MAX(r.last_checked) ASC NULLS FIRST")

	return r.findStale(span, query, limit)
}

func (r *domainRepository) findStale(span opentracing.Span, query *gorm.DB, limit int) ([]models.Domain, error) {
	var domains []models.Domain
	err := query.Limit(limit).Find(&domains).Error
	if err != nil {
		tracing.TraceErr(span, errors.Wrap(err, "db error"))
		return nil, storeErr("DomainRepository.findStale", err)
	}

	span.LogFields(tracingLog.Int("response.count", len(domains)))
	return domains, nil
}

func excludeIDs(query *gorm.DB, exclude []uint64) *gorm.DB {
	if len(exclude) == 0 {
		return query
	}
	return query.Where("domains.id NOT IN ?", exclude)
}
