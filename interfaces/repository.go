package interfaces

import (
	"context"
	"time"

	"github.com/dnsscience/telemetry/dto"
	"github.com/dnsscience/telemetry/internal/models"
)

// DomainRepository selects scan candidates. A domain is stale for a scanner
// when it has no result row or the row is older than cutoff.
type DomainRepository interface {
	GetByName(ctx context.Context, domainName string) (*models.Domain, error)
	GetStaleForEmailSecurity(ctx context.Context, cutoff time.Time, limit int, exclude []uint64) ([]models.Domain, error)
	GetStaleForCertificates(ctx context.Context, cutoff time.Time, port, limit int, exclude []uint64) ([]models.Domain, error)
	GetStaleForReputation(ctx context.Context, cutoff time.Time, limit int, exclude []uint64) ([]models.Domain, error)
}

type EmailSecurityRepository interface {
	Upsert(ctx context.Context, record *models.EmailSecurityRecord) error
	GetByDomainID(ctx context.Context, domainID uint64) (*models.EmailSecurityRecord, error)
}

type CertificateRepository interface {
	Upsert(ctx context.Context, cert *models.SSLCertificate) error
}

type ReputationRepository interface {
	UpsertForDomain(ctx context.Context, domainID uint64, records []models.IPReputation) error
}

type StatsRepository interface {
	CountActiveDomains(ctx context.Context) (int64, error)
	CountDomainsCreatedSince(ctx context.Context, since time.Time) (int64, error)
	EmailSecurityCoverage(ctx context.Context) (*dto.EmailCoverage, error)
	CertificateCounts(ctx context.Context, now time.Time, expiringWithin time.Duration) (*dto.SSLStats, error)
	CountryDistribution(ctx context.Context, limit int) (map[string]int64, bool, error)
	ValuationTotals(ctx context.Context) (*dto.ValuationStats, error)
}
