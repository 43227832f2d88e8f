package security

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/dnsscience/telemetry/internal/dns"
	"github.com/dnsscience/telemetry/internal/logger"
	"github.com/dnsscience/telemetry/internal/tracing"
	"github.com/dnsscience/telemetry/internal/utils"
)

const maxPolicySize = 64 * 1024

type Checker struct {
	resolver dns.Resolver
	client   *http.Client
	log      logger.Logger
	danePort int

	// policyURL builds the MTA-STS policy location for a domain.
	policyURL func(domain string) string
}

func NewChecker(resolver dns.Resolver, client *http.Client, log logger.Logger, danePort int) *Checker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if danePort == 0 {
		danePort = 25
	}
	return &Checker{
		resolver: resolver,
		client:   client,
		log:      log,
		danePort: danePort,
		policyURL: func(domain string) string {
			return fmt.Sprintf("https://mta-sts.%s/.well-known/mta-sts.txt", domain)
		},
	}
}

// WithPolicyURL overrides where MTA-STS policies are fetched from.
func (c *Checker) WithPolicyURL(fn func(domain string) string) *Checker {
	c.policyURL = fn
	return c
}

// Check evaluates every record type independently. A failing lookup only
// marks its own feature absent.
func (c *Checker) Check(ctx context.Context, domain string) *EmailSecurity {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Checker.Check")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagDomain(span, domain)

	result := &EmailSecurity{
		Domain:    domain,
		MX:        c.checkMX(ctx, domain),
		SPF:       c.checkSPF(ctx, domain),
		DMARC:     c.checkDMARC(ctx, domain),
		DKIM:      c.checkDKIM(ctx, domain),
		DANE:      c.checkDANE(ctx, domain),
		MTASTS:    c.checkMTASTS(ctx, domain),
		DNSSEC:    c.checkDNSSEC(ctx, domain),
		CAA:       c.checkCAA(ctx, domain),
		CheckedAt: utils.Now(),
	}

	span.LogKV("result.spf", result.SPF.Exists, "result.dmarc", result.DMARC.Exists, "result.dkim", result.DKIM.Exists)
	return result
}

// anomaly logs lookup errors that are not plain absence.
func (c *Checker) anomaly(domain, rtype string, err error) {
	if err == nil || dns.IsAbsent(err) {
		return
	}
	c.log.Warnf("unexpected %s lookup failure for %s: %v", rtype, domain, err)
}

func (c *Checker) checkMX(ctx context.Context, domain string) MXResult {
	res, err := c.resolver.LookupMX(ctx, domain)
	if err != nil {
		c.anomaly(domain, "MX", err)
		return MXResult{}
	}
	hosts := make([]string, 0, len(res.Records))
	for _, mx := range res.Records {
		hosts = append(hosts, strings.TrimSuffix(mx.Host, "."))
	}
	return MXResult{Exists: true, Hosts: hosts}
}

func (c *Checker) checkSPF(ctx context.Context, domain string) SPFResult {
	res, err := c.resolver.LookupTXT(ctx, domain)
	if err != nil {
		c.anomaly(domain, "TXT", err)
		return SPFResult{}
	}
	for _, txt := range res.Records {
		if strings.HasPrefix(txt, "v=spf1") {
			return SPFResult{
				Exists: true,
				Record: txt,
				Strict: strings.HasSuffix(strings.TrimSpace(txt), "-all"),
			}
		}
	}
	return SPFResult{}
}

func (c *Checker) checkDMARC(ctx context.Context, domain string) DMARCResult {
	res, err := c.resolver.LookupTXT(ctx, "_dmarc."+domain)
	if err != nil {
		c.anomaly(domain, "DMARC", err)
		return DMARCResult{}
	}
	for _, txt := range res.Records {
		if strings.HasPrefix(txt, "v=DMARC1") {
			return DMARCResult{Exists: true, Record: txt, Policy: dmarcPolicy(txt)}
		}
	}
	return DMARCResult{}
}

func dmarcPolicy(record string) string {
	switch {
	case strings.Contains(record, "p=reject"):
		return "reject"
	case strings.Contains(record, "p=quarantine"):
		return "quarantine"
	default:
		return "none"
	}
}

// checkDKIM is best effort: a resolving selector confirms DKIM, no selector
// resolving proves nothing.
func (c *Checker) checkDKIM(ctx context.Context, domain string) DKIMResult {
	var found []string
	for _, selector := range DKIMSelectors {
		res, err := c.resolver.LookupTXT(ctx, selector+"._domainkey."+domain)
		if err != nil {
			c.anomaly(domain, "DKIM", err)
			continue
		}
		if len(res.Records) > 0 {
			found = append(found, selector)
		}
	}
	return DKIMResult{Exists: len(found) > 0, Selectors: found}
}

func (c *Checker) checkDANE(ctx context.Context, domain string) DANEResult {
	res, err := c.resolver.LookupTLSA(ctx, fmt.Sprintf("_%d._tcp.%s", c.danePort, domain))
	if err != nil {
		c.anomaly(domain, "TLSA", err)
		return DANEResult{}
	}
	records := make([]string, 0, len(res.Records))
	for _, t := range res.Records {
		records = append(records, fmt.Sprintf("%d %d %d %s", t.Usage, t.Selector, t.MatchingType, t.Certificate))
	}
	return DANEResult{Exists: true, RecordCount: len(records), Records: records}
}

func (c *Checker) checkMTASTS(ctx context.Context, domain string) MTASTSResult {
	res, err := c.resolver.LookupTXT(ctx, "_mta-sts."+domain)
	if err != nil {
		c.anomaly(domain, "MTA-STS", err)
		return MTASTSResult{}
	}

	var result MTASTSResult
	for _, txt := range res.Records {
		if strings.HasPrefix(txt, "v=STSv1") {
			result.Exists = true
			result.ID = tagValue(txt, ";", "id")
			break
		}
	}
	if !result.Exists {
		return result
	}

	policy, err := c.fetchPolicy(ctx, domain)
	if err != nil {
		c.log.Debugf("mta-sts policy fetch failed for %s: %v", domain, err)
		return result
	}
	result.Policy = policy
	result.Mode = tagValue(policy, "\n", "mode")
	if maxAge, err := strconv.Atoi(tagValue(policy, "\n", "max_age")); err == nil {
		result.MaxAge = maxAge
	}
	return result
}

func (c *Checker) fetchPolicy(ctx context.Context, domain string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.policyURL(domain), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPolicySize))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// tagValue finds key in a list of key=value (TXT) or key: value (policy)
// pairs separated by sep.
func tagValue(s, sep, key string) string {
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		for _, delim := range []string{"=", ":"} {
			k, v, ok := strings.Cut(part, delim)
			if ok && strings.TrimSpace(k) == key {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}

func (c *Checker) checkDNSSEC(ctx context.Context, domain string) DNSSECResult {
	res, err := c.resolver.LookupDNSKEY(ctx, domain)
	if err != nil {
		c.anomaly(domain, "DNSKEY", err)
		return DNSSECResult{}
	}
	return DNSSECResult{Enabled: true, KeyCount: len(res.Records)}
}

func (c *Checker) checkCAA(ctx context.Context, domain string) CAAResult {
	res, err := c.resolver.LookupCAA(ctx, domain)
	if err != nil {
		c.anomaly(domain, "CAA", err)
		return CAAResult{}
	}
	records := make([]string, 0, len(res.Records))
	for _, r := range res.Records {
		records = append(records, fmt.Sprintf("%d %s %q", r.Flag, r.Tag, r.Value))
	}
	return CAAResult{Exists: true, Records: records}
}
