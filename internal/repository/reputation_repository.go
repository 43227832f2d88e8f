package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dnsscience/telemetry/interfaces"
	"github.com/dnsscience/telemetry/internal/models"
	"github.com/dnsscience/telemetry/internal/tracing"
)

var ipReputationMutableColumns = []string{
	"reputation_score", "is_malicious", "is_spam", "is_proxy",
	"threat_level", "confidence", "sources", "last_checked",
}

type reputationRepository struct {
	db *gorm.DB
}

func NewReputationRepository(db *gorm.DB) interfaces.ReputationRepository {
	return &reputationRepository{db: db}
}

// UpsertForDomain writes every IP row of one domain atomically and records
// the first address on the domain itself.
func (r *reputationRepository) UpsertForDomain(ctx context.Context, domainID uint64, records []models.IPReputation) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ReputationRepository.UpsertForDomain")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, formatID(domainID))
	span.LogFields(tracingLog.Int("request.records", len(records)))

	if len(records) == 0 {
		return ErrInvalidInput
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range records {
			records[i].DomainID = domainID
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "domain_id"}, {Name: "ip_address"}},
				DoUpdates: clause.AssignmentColumns(ipReputationMutableColumns),
			}).Create(&records[i]).Error
			if err != nil {
				return err
			}
		}

		return tx.Model(&models.Domain{}).
			Where("id = ?", domainID).
			UpdateColumn("ip_address", records[0].IPAddress).
			Error
	})
	if err != nil {
		tracing.TraceErr(span, errors.Wrap(err, "db error"))
		return storeErr("ReputationRepository.UpsertForDomain", err)
	}

	return nil
}
