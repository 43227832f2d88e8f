package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dnsscience/telemetry/interfaces"
	er "github.com/dnsscience/telemetry/internal/errors"
	"github.com/dnsscience/telemetry/internal/models"
	"github.com/dnsscience/telemetry/internal/tracing"
)

var emailSecurityMutableColumns = []string{
	"has_mx", "mx_records",
	"has_spf", "spf_record", "spf_strict",
	"has_dmarc", "dmarc_record", "dmarc_policy",
	"has_dkim", "dkim_selectors",
	"has_dane", "tlsa_records", "tlsa_count",
	"has_mta_sts", "mta_sts_policy", "mta_sts_mode", "mta_sts_max_age",
	"has_dnssec", "dnskey_count",
	"has_caa", "caa_records",
	"last_checked",
}

type emailSecurityRepository struct {
	db *gorm.DB
}

func NewEmailSecurityRepository(db *gorm.DB) interfaces.EmailSecurityRepository {
	return &emailSecurityRepository{db: db}
}

// Upsert writes the record keyed by domain_id and stamps the domain in the
// same transaction.
func (r *emailSecurityRepository) Upsert(ctx context.Context, record *models.EmailSecurityRecord) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailSecurityRepository.Upsert")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, formatID(record.DomainID))

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "domain_id"}},
			DoUpdates: clause.AssignmentColumns(emailSecurityMutableColumns),
		}).Create(record).Error
		if err != nil {
			return err
		}

		return tx.Model(&models.Domain{}).
			Where("id = ?", record.DomainID).
			UpdateColumn("last_checked", record.LastChecked).
			Error
	})
	if err != nil {
		tracing.TraceErr(span, errors.Wrap(err, "db error"))
		return storeErr("EmailSecurityRepository.Upsert", err)
	}

	return nil
}

func (r *emailSecurityRepository) GetByDomainID(ctx context.Context, domainID uint64) (*models.EmailSecurityRecord, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailSecurityRepository.GetByDomainID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, formatID(domainID))

	var record models.EmailSecurityRecord
	err := r.db.WithContext(ctx).
		Where("domain_id = ?", domainID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.LogFields(tracingLog.Bool("response.found", false))
			return nil, er.ErrNotFound
		}
		tracing.TraceErr(span, errors.Wrap(err, "db error"))
		return nil, storeErr("EmailSecurityRepository.GetByDomainID", err)
	}

	return &record, nil
}
