package security

import (
	"context"
	"time"

	"github.com/customeros/mailsherpa/domaincheck"
	"github.com/customeros/mailwatcher/domainage"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	er "github.com/dnsscience/telemetry/internal/errors"
	"github.com/dnsscience/telemetry/internal/logger"
	"github.com/dnsscience/telemetry/internal/tracing"
	"github.com/dnsscience/telemetry/internal/utils"
)

const cacheKeyPrefix = "domain_security:"

const defaultEnrichTimeout = 10 * time.Second

// Cache is the subset of the Redis cache the score needs.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

type SecurityScore struct {
	Domain          string          `json:"domain"`
	Score           int             `json:"security_score"`
	Grade           string          `json:"grade"`
	Checks          map[string]bool `json:"checks"`
	Recommendations []string        `json:"recommendations"`
	DomainAgeDays   *int            `json:"domain_age_days,omitempty"`
	PrimaryDomain   *bool           `json:"primary_domain,omitempty"`
	Details         *EmailSecurity  `json:"details"`
	Timestamp       time.Time       `json:"timestamp"`
}

// scoredChecks lists the binary checks in the score, in report order.
var scoredChecks = []struct {
	name           string
	passed         func(*EmailSecurity) bool
	recommendation string
}{
	{"dnssec", func(e *EmailSecurity) bool { return e.DNSSEC.Enabled }, "Enable DNSSEC to protect DNS answers from tampering"},
	{"spf", func(e *EmailSecurity) bool { return e.SPF.Exists }, "Publish an SPF record to authorize mail senders"},
	{"dmarc", func(e *EmailSecurity) bool { return e.DMARC.Exists }, "Publish a DMARC policy at _dmarc"},
	{"dkim", func(e *EmailSecurity) bool { return e.DKIM.Exists }, "Configure DKIM signing for outbound mail"},
	{"caa", func(e *EmailSecurity) bool { return e.CAA.Exists }, "Add CAA records to restrict certificate issuance"},
	{"dane", func(e *EmailSecurity) bool { return e.DANE.Exists }, "Publish TLSA records for the mail service (DANE)"},
	{"mta_sts", func(e *EmailSecurity) bool { return e.MTASTS.Exists }, "Deploy an MTA-STS policy to require TLS for inbound mail"},
}

// DomainAgeFunc returns a domain's age in days and whether it could be
// determined.
type DomainAgeFunc func(domain string) (int, bool)

func whoisDomainAge(domain string) (int, bool) {
	dates, err := domainage.GetDomainDates(domain)
	if err != nil || !dates.Success {
		return 0, false
	}
	return int(dates.CreationAge), true
}

// PrimaryDomainFunc reports whether a domain serves its own site rather
// than redirecting to another one.
type PrimaryDomainFunc func(domain string) bool

func mailsherpaPrimaryDomain(domain string) bool {
	isPrimary, _ := domaincheck.PrimaryDomainCheck(domain)
	return isPrimary
}

type Service struct {
	checker       *Checker
	cache         Cache
	ttl           time.Duration
	log           logger.Logger
	domainAge     DomainAgeFunc
	primaryDomain PrimaryDomainFunc
	enrichTimeout time.Duration
}

func NewService(checker *Checker, cache Cache, ttl time.Duration, log logger.Logger) *Service {
	return &Service{
		checker:       checker,
		cache:         cache,
		ttl:           ttl,
		log:           log,
		domainAge:     whoisDomainAge,
		primaryDomain: mailsherpaPrimaryDomain,
		enrichTimeout: defaultEnrichTimeout,
	}
}

// WithDomainAge replaces the WHOIS lookup; nil disables it.
func (s *Service) WithDomainAge(fn DomainAgeFunc) *Service {
	s.domainAge = fn
	return s
}

// WithEnrichTimeout bounds the WHOIS and primary domain lookups.
func (s *Service) WithEnrichTimeout(d time.Duration) *Service {
	if d > 0 {
		s.enrichTimeout = d
	}
	return s
}

// WithPrimaryDomain replaces the primary domain check; nil disables it.
func (s *Service) WithPrimaryDomain(fn PrimaryDomainFunc) *Service {
	s.primaryDomain = fn
	return s
}

func (s *Service) Check(ctx context.Context, domain string) *EmailSecurity {
	return s.checker.Check(ctx, domain)
}

// DomainSecurityScore is cache-aside on domain_security:<domain>. Cache
// failures degrade to a live check.
func (s *Service) DomainSecurityScore(ctx context.Context, domain string) (*SecurityScore, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SecurityService.DomainSecurityScore")
	defer span.Finish()
	tracing.TagComponentService(span)

	domain, err := utils.NormalizeDomain(domain)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	tracing.TagDomain(span, domain)

	key := cacheKeyPrefix + domain
	var cached SecurityScore
	err = s.cache.GetJSON(ctx, key, &cached)
	switch {
	case err == nil:
		span.LogKV("result.cached", true)
		return &cached, nil
	case !errors.Is(err, er.ErrCacheMiss):
		s.log.Warnf("domain security cache read failed for %s: %v", domain, err)
	}

	score := Score(s.checker.Check(ctx, domain))
	s.enrich(ctx, domain, score)

	if err := s.cache.SetJSON(ctx, key, score, s.ttl); err != nil {
		s.log.Warnf("domain security cache write failed for %s: %v", domain, err)
	}
	return score, nil
}

// enrich runs the informational lookups side by side. Lookups still running
// at the deadline are abandoned and their fields left empty.
func (s *Service) enrich(ctx context.Context, domain string, score *SecurityScore) {
	ctx, cancel := context.WithTimeout(ctx, s.enrichTimeout)
	defer cancel()

	ages := make(chan *int, 1)
	primaries := make(chan *bool, 1)
	pending := 0

	if s.domainAge != nil {
		pending++
		go func() {
			if days, ok := s.domainAge(domain); ok {
				ages <- utils.Ptr(days)
				return
			}
			ages <- nil
		}()
	}
	if s.primaryDomain != nil {
		pending++
		go func() { primaries <- utils.Ptr(s.primaryDomain(domain)) }()
	}

	for ; pending > 0; pending-- {
		select {
		case age := <-ages:
			score.DomainAgeDays = age
		case primary := <-primaries:
			score.PrimaryDomain = primary
		case <-ctx.Done():
			s.log.Warnf("domain lookups for %s did not finish within %s", domain, s.enrichTimeout)
			return
		}
	}
}

// Score is the mean of the binary checks, each worth 100 or 0.
func Score(result *EmailSecurity) *SecurityScore {
	checks := make(map[string]bool, len(scoredChecks))
	recommendations := []string{}
	total := 0
	for _, c := range scoredChecks {
		passed := c.passed(result)
		checks[c.name] = passed
		if passed {
			total += 100
		} else {
			recommendations = append(recommendations, c.recommendation)
		}
	}

	score := total / len(scoredChecks)
	return &SecurityScore{
		Domain:          result.Domain,
		Score:           score,
		Grade:           Grade(score),
		Checks:          checks,
		Recommendations: recommendations,
		Details:         result,
		Timestamp:       result.CheckedAt,
	}
}

func Grade(score int) string {
	switch {
	case score >= 90:
		return "A+"
	case score >= 80:
		return "A"
	case score >= 70:
		return "B"
	case score >= 60:
		return "C"
	case score >= 50:
		return "D"
	default:
		return "F"
	}
}
