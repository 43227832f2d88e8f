package daemon

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/dnsscience/telemetry/dto"
	"github.com/dnsscience/telemetry/interfaces"
	"github.com/dnsscience/telemetry/internal/dns"
	"github.com/dnsscience/telemetry/internal/logger"
	"github.com/dnsscience/telemetry/internal/models"
	"github.com/dnsscience/telemetry/internal/utils"
	"github.com/dnsscience/telemetry/services/events"
	"github.com/dnsscience/telemetry/services/reputation"
	"github.com/dnsscience/telemetry/services/security"
)

const (
	JobEmailSecurity = "email_security"
	JobReputation    = "ip_reputation"
	JobCertificate   = "ssl_certificate"
)

var ErrNoAddress = errors.New("domain has no A records")

type SecurityChecker interface {
	Check(ctx context.Context, domain string) *security.EmailSecurity
}

type ReputationLookup interface {
	Lookup(ctx context.Context, ip string) (*reputation.Reputation, error)
}

type CertificateFetcher interface {
	Fetch(ctx context.Context, domain string, port int) (*models.SSLCertificate, error)
}

// publish never fails the entity; the row is already committed.
func publish(ctx context.Context, publisher interfaces.EventPublisher, log logger.Logger, event dto.ScanCompleted) {
	if publisher == nil {
		return
	}
	if err := publisher.PublishScanCompleted(ctx, event); err != nil {
		log.Warnf("failed to publish %s event for %s: %v", event.EntityType, event.Domain, err)
	}
}

type EmailSecurityJob struct {
	domains   interfaces.DomainRepository
	records   interfaces.EmailSecurityRepository
	checker   SecurityChecker
	publisher interfaces.EventPublisher
	interval  time.Duration
	log       logger.Logger
}

func NewEmailSecurityJob(domains interfaces.DomainRepository, records interfaces.EmailSecurityRepository, checker SecurityChecker, publisher interfaces.EventPublisher, interval time.Duration, log logger.Logger) *EmailSecurityJob {
	return &EmailSecurityJob{domains: domains, records: records, checker: checker, publisher: publisher, interval: interval, log: log}
}

func (j *EmailSecurityJob) Name() string            { return JobEmailSecurity }
func (j *EmailSecurityJob) Interval() time.Duration { return j.interval }

func (j *EmailSecurityJob) SelectStale(ctx context.Context, cutoff time.Time, limit int, exclude []uint64) ([]models.Domain, error) {
	return j.domains.GetStaleForEmailSecurity(ctx, cutoff, limit, exclude)
}

func (j *EmailSecurityJob) Process(ctx context.Context, domain models.Domain) error {
	result := j.checker.Check(ctx, domain.DomainName)
	record := result.ToRecord(domain.ID)
	if err := j.records.Upsert(ctx, record); err != nil {
		return err
	}
	publish(ctx, j.publisher, j.log, events.NewScanCompleted(JobEmailSecurity, domain.ID, domain.DomainName, record.LastChecked))
	return nil
}

type ReputationJob struct {
	domains    interfaces.DomainRepository
	repo       interfaces.ReputationRepository
	resolver   dns.Resolver
	aggregator ReputationLookup
	publisher  interfaces.EventPublisher
	interval   time.Duration
	log        logger.Logger
}

func NewReputationJob(domains interfaces.DomainRepository, repo interfaces.ReputationRepository, resolver dns.Resolver, aggregator ReputationLookup, publisher interfaces.EventPublisher, interval time.Duration, log logger.Logger) *ReputationJob {
	return &ReputationJob{domains: domains, repo: repo, resolver: resolver, aggregator: aggregator, publisher: publisher, interval: interval, log: log}
}

func (j *ReputationJob) Name() string            { return JobReputation }
func (j *ReputationJob) Interval() time.Duration { return j.interval }

func (j *ReputationJob) SelectStale(ctx context.Context, cutoff time.Time, limit int, exclude []uint64) ([]models.Domain, error) {
	return j.domains.GetStaleForReputation(ctx, cutoff, limit, exclude)
}

// Process scores every A record of the domain and saves them together.
func (j *ReputationJob) Process(ctx context.Context, domain models.Domain) error {
	res, err := j.resolver.LookupA(ctx, domain.DomainName)
	if err != nil {
		if dns.IsAbsent(err) {
			return ErrNoAddress
		}
		return err
	}

	records := make([]models.IPReputation, 0, len(res.Records))
	for _, ip := range res.Records {
		rep, err := j.aggregator.Lookup(ctx, ip)
		if err != nil {
			j.log.Warnf("reputation lookup failed for %s (%s): %v", ip, domain.DomainName, err)
			continue
		}
		records = append(records, toIPReputation(domain.ID, rep))
	}
	if len(records) == 0 {
		return errors.Errorf("no reputation result for any of %d addresses", len(res.Records))
	}

	if err := j.repo.UpsertForDomain(ctx, domain.ID, records); err != nil {
		return err
	}
	publish(ctx, j.publisher, j.log, events.NewScanCompleted(JobReputation, domain.ID, domain.DomainName, records[0].LastChecked))
	return nil
}

func toIPReputation(domainID uint64, rep *reputation.Reputation) models.IPReputation {
	sources := make(models.JSONMap, len(rep.Sources))
	for name, src := range rep.Sources {
		sources[name] = src
	}
	return models.IPReputation{
		DomainID:        domainID,
		IPAddress:       rep.IP,
		ReputationScore: rep.OverallRiskScore,
		IsMalicious:     rep.IsMalicious,
		IsSpam:          rep.IsSpam,
		IsProxy:         rep.IsProxy,
		ThreatLevel:     rep.RiskLevel,
		Confidence:      rep.Confidence,
		Sources:         sources,
		LastChecked:     utils.Now(),
	}
}

type CertificateJob struct {
	domains   interfaces.DomainRepository
	repo      interfaces.CertificateRepository
	fetcher   CertificateFetcher
	publisher interfaces.EventPublisher
	port      int
	interval  time.Duration
	log       logger.Logger
}

func NewCertificateJob(domains interfaces.DomainRepository, repo interfaces.CertificateRepository, fetcher CertificateFetcher, publisher interfaces.EventPublisher, port int, interval time.Duration, log logger.Logger) *CertificateJob {
	return &CertificateJob{domains: domains, repo: repo, fetcher: fetcher, publisher: publisher, port: port, interval: interval, log: log}
}

func (j *CertificateJob) Name() string            { return JobCertificate }
func (j *CertificateJob) Interval() time.Duration { return j.interval }

func (j *CertificateJob) SelectStale(ctx context.Context, cutoff time.Time, limit int, exclude []uint64) ([]models.Domain, error) {
	return j.domains.GetStaleForCertificates(ctx, cutoff, j.port, limit, exclude)
}

func (j *CertificateJob) Process(ctx context.Context, domain models.Domain) error {
	cert, err := j.fetcher.Fetch(ctx, domain.DomainName, j.port)
	if err != nil {
		return err
	}
	if err := j.repo.Upsert(ctx, cert); err != nil {
		return err
	}
	publish(ctx, j.publisher, j.log, events.NewScanCompleted(JobCertificate, domain.ID, domain.DomainName, cert.LastChecked))
	return nil
}
