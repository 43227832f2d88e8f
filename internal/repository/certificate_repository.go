package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dnsscience/telemetry/interfaces"
	"github.com/dnsscience/telemetry/internal/models"
	"github.com/dnsscience/telemetry/internal/tracing"
)

type certificateRepository struct {
	db *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) interfaces.CertificateRepository {
	return &certificateRepository{db: db}
}

func (r *certificateRepository) Upsert(ctx context.Context, cert *models.SSLCertificate) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CertificateRepository.Upsert")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagDomain(span, cert.DomainName)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "domain_name"}, {Name: "port"}},
			DoUpdates: clause.AssignmentColumns([]string{"issuer_cn", "subject_cn", "not_before", "expires_at", "last_checked"}),
		}).Create(cert).Error
	})
	if err != nil {
		tracing.TraceErr(span, errors.Wrap(err, "db error"))
		return storeErr("CertificateRepository.Upsert", err)
	}

	return nil
}
