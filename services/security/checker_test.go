package security

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnsscience/telemetry/internal/dns"
	"github.com/dnsscience/telemetry/internal/logger"
)

func fullyConfigured() dns.MockResolver {
	return dns.MockResolver{
		MX: map[string][]*net.MX{
			"example.com.": {{Host: "mx1.example.com.", Pref: 10}},
		},
		TXT: map[string][]string{
			"example.com.":                      {"google-site-verification=abc", "v=spf1 include:_spf.example.com -all"},
			"_dmarc.example.com.":               {"v=DMARC1; p=reject; rua=mailto:x@example.com"},
			"selector1._domainkey.example.com.": {"v=DKIM1; k=rsa; p=MIGf"},
			"_mta-sts.example.com.":             {"v=STSv1; id=20240101"},
		},
		TLSA: map[string][]dns.TLSA{
			"_25._tcp.example.com.": {{Usage: 3, Selector: 1, MatchingType: 1, Certificate: "abcd"}},
		},
		DNSKEY: map[string][]dns.DNSKEY{
			"example.com.": {{Flags: 257, Protocol: 3, Algorithm: 13}, {Flags: 256, Protocol: 3, Algorithm: 13}},
		},
		CAA: map[string][]dns.CAA{
			"example.com.": {{Tag: "issue", Value: "letsencrypt.org"}},
		},
	}
}

func policyServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/.well-known/mta-sts.txt", r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestChecker(resolver dns.Resolver, srv *httptest.Server) *Checker {
	c := NewChecker(resolver, srv.Client(), logger.NewNopLogger(), 25)
	return c.WithPolicyURL(func(string) string { return srv.URL + "/.well-known/mta-sts.txt" })
}

func TestChecker_FullyConfiguredDomain(t *testing.T) {
	srv := policyServer(t, "version: STSv1\nmode: enforce\nmx: mx1.example.com\nmax_age: 604800\n", http.StatusOK)
	result := newTestChecker(fullyConfigured(), srv).Check(context.Background(), "example.com")

	assert.Equal(t, MXResult{Exists: true, Hosts: []string{"mx1.example.com"}}, result.MX)

	assert.True(t, result.SPF.Exists)
	assert.True(t, result.SPF.Strict)
	assert.Equal(t, "v=spf1 include:_spf.example.com -all", result.SPF.Record)

	assert.True(t, result.DMARC.Exists)
	assert.Equal(t, "reject", result.DMARC.Policy)

	assert.True(t, result.DKIM.Exists)
	assert.Equal(t, []string{"selector1"}, result.DKIM.Selectors)

	assert.True(t, result.DANE.Exists)
	assert.Equal(t, 1, result.DANE.RecordCount)
	assert.Equal(t, []string{"3 1 1 abcd"}, result.DANE.Records)

	assert.True(t, result.MTASTS.Exists)
	assert.Equal(t, "20240101", result.MTASTS.ID)
	assert.Equal(t, "enforce", result.MTASTS.Mode)
	assert.Equal(t, 604800, result.MTASTS.MaxAge)

	assert.True(t, result.DNSSEC.Enabled)
	assert.Equal(t, 2, result.DNSSEC.KeyCount)

	assert.True(t, result.CAA.Exists)
	assert.False(t, result.CheckedAt.IsZero())
}

func TestChecker_SPFSoftFailIsNotStrict(t *testing.T) {
	r := dns.MockResolver{TXT: map[string][]string{"example.com.": {"v=spf1 include:_spf.example.com ~all"}}}
	result := newTestChecker(r, policyServer(t, "", http.StatusNotFound)).Check(context.Background(), "example.com")

	assert.True(t, result.SPF.Exists)
	assert.False(t, result.SPF.Strict)
}

func TestDMARCPolicy(t *testing.T) {
	assert.Equal(t, "reject", dmarcPolicy("v=DMARC1; p=reject"))
	assert.Equal(t, "quarantine", dmarcPolicy("v=DMARC1; p=quarantine; pct=50"))
	assert.Equal(t, "none", dmarcPolicy("v=DMARC1; p=none"))
	assert.Equal(t, "none", dmarcPolicy("v=DMARC1; rua=mailto:a@b.c"))
}

func TestChecker_FailedLookupDoesNotStopOtherChecks(t *testing.T) {
	r := fullyConfigured()
	r.Fail = []string{"txt example.com.", "dnskey example.com."}
	r.Timeout = []string{"caa example.com."}

	srv := policyServer(t, "version: STSv1\nmode: testing\nmax_age: 86400\n", http.StatusOK)
	result := newTestChecker(r, srv).Check(context.Background(), "example.com")

	assert.False(t, result.SPF.Exists)
	assert.False(t, result.DNSSEC.Enabled)
	assert.False(t, result.CAA.Exists)
	assert.True(t, result.DMARC.Exists)
	assert.True(t, result.DKIM.Exists)
	assert.True(t, result.MTASTS.Exists)
	assert.Equal(t, "testing", result.MTASTS.Mode)
}

func TestChecker_MTASTSPolicyFetchFailureKeepsPresence(t *testing.T) {
	srv := policyServer(t, "", http.StatusInternalServerError)
	result := newTestChecker(fullyConfigured(), srv).Check(context.Background(), "example.com")

	assert.True(t, result.MTASTS.Exists)
	assert.Empty(t, result.MTASTS.Mode)
	assert.Zero(t, result.MTASTS.MaxAge)
}

func TestChecker_BareDomain(t *testing.T) {
	srv := policyServer(t, "", http.StatusNotFound)
	result := newTestChecker(dns.MockResolver{}, srv).Check(context.Background(), "example.org")

	assert.False(t, result.MX.Exists)
	assert.False(t, result.SPF.Exists)
	assert.False(t, result.DMARC.Exists)
	assert.False(t, result.DKIM.Exists)
	assert.False(t, result.DANE.Exists)
	assert.False(t, result.MTASTS.Exists)
	assert.False(t, result.DNSSEC.Enabled)
	assert.False(t, result.CAA.Exists)
}

func TestEmailSecurity_ToRecord(t *testing.T) {
	srv := policyServer(t, "version: STSv1\nmode: enforce\nmax_age: 604800\n", http.StatusOK)
	result := newTestChecker(fullyConfigured(), srv).Check(context.Background(), "example.com")

	rec := result.ToRecord(7)
	require.NotNil(t, rec)
	assert.Equal(t, uint64(7), rec.DomainID)
	assert.True(t, rec.HasSPF)
	assert.True(t, rec.SPFStrict)
	assert.Equal(t, "reject", rec.DMARCPolicy)
	assert.Equal(t, 1, rec.TLSACount)
	assert.Equal(t, "enforce", rec.MTASTSMode)
	assert.Equal(t, 604800, rec.MTASTSMaxAge)
	assert.Equal(t, 2, rec.DNSKEYCount)
	assert.Equal(t, result.CheckedAt, rec.LastChecked)
}

func TestChecker_Idempotent(t *testing.T) {
	srv := policyServer(t, "version: STSv1\nmode: enforce\nmax_age: 604800\n", http.StatusOK)
	c := newTestChecker(fullyConfigured(), srv)

	first := c.Check(context.Background(), "example.com").ToRecord(1)
	second := c.Check(context.Background(), "example.com").ToRecord(1)
	first.LastChecked = second.LastChecked

	assert.Equal(t, first, second)
}
