package security

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnsscience/telemetry/internal/cache"
	"github.com/dnsscience/telemetry/internal/dns"
	"github.com/dnsscience/telemetry/internal/logger"
)

func TestGrade(t *testing.T) {
	cases := map[int]string{100: "A+", 90: "A+", 85: "A", 71: "B", 60: "C", 57: "D", 42: "F", 0: "F"}
	for score, grade := range cases {
		assert.Equal(t, grade, Grade(score), "score %d", score)
	}
}

func TestScore_AllChecksPass(t *testing.T) {
	score := Score(&EmailSecurity{
		Domain: "example.com",
		SPF:    SPFResult{Exists: true},
		DMARC:  DMARCResult{Exists: true},
		DKIM:   DKIMResult{Exists: true},
		DANE:   DANEResult{Exists: true},
		MTASTS: MTASTSResult{Exists: true},
		DNSSEC: DNSSECResult{Enabled: true},
		CAA:    CAAResult{Exists: true},
	})

	assert.Equal(t, 100, score.Score)
	assert.Equal(t, "A+", score.Grade)
	assert.Empty(t, score.Recommendations)
}

func TestScore_NoDNSSECNoDANENoMTASTS(t *testing.T) {
	score := Score(&EmailSecurity{
		Domain: "example.com",
		SPF:    SPFResult{Exists: true},
		DMARC:  DMARCResult{Exists: true},
		DKIM:   DKIMResult{Exists: true},
		CAA:    CAAResult{Exists: true},
	})

	// 4 of 7 checks
	assert.Equal(t, 57, score.Score)
	assert.Equal(t, "D", score.Grade)
	assert.False(t, score.Checks["dnssec"])
	assert.False(t, score.Checks["dane"])
	assert.False(t, score.Checks["mta_sts"])
	assert.Len(t, score.Recommendations, 3)
}

func newTestService(t *testing.T, resolver dns.Resolver) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := cache.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	srv := policyServer(t, "", http.StatusNotFound)
	checker := newTestChecker(resolver, srv)
	svc := NewService(checker, c, time.Hour, logger.NewNopLogger()).
		WithDomainAge(func(string) (int, bool) { return 400, true }).
		WithPrimaryDomain(func(string) bool { return true })
	return svc, mr
}

func TestService_DomainSecurityScore_CachesResult(t *testing.T) {
	svc, mr := newTestService(t, fullyConfigured())
	ctx := context.Background()

	first, err := svc.DomainSecurityScore(ctx, "Example.COM.")
	require.NoError(t, err)
	assert.Equal(t, "example.com", first.Domain)
	require.NotNil(t, first.DomainAgeDays)
	assert.Equal(t, 400, *first.DomainAgeDays)
	require.NotNil(t, first.PrimaryDomain)
	assert.True(t, *first.PrimaryDomain)

	assert.True(t, mr.Exists("domain_security:example.com"))
	assert.Equal(t, time.Hour, mr.TTL("domain_security:example.com"))

	// served from cache even after the records disappear
	svc.checker.resolver = dns.MockResolver{}
	second, err := svc.DomainSecurityScore(ctx, "example.com")
	require.NoError(t, err)
	assert.Equal(t, first.Score, second.Score)
}

func TestService_DomainSecurityScore_InvalidDomain(t *testing.T) {
	svc, _ := newTestService(t, fullyConfigured())

	_, err := svc.DomainSecurityScore(context.Background(), "not a domain")
	assert.Error(t, err)
}

func TestService_DomainSecurityScore_CacheDown(t *testing.T) {
	svc, mr := newTestService(t, fullyConfigured())
	mr.Close()

	score, err := svc.DomainSecurityScore(context.Background(), "example.com")
	require.NoError(t, err)
	assert.NotZero(t, score.Score)
}

func TestService_DomainSecurityScore_SlowLookupsAreBounded(t *testing.T) {
	svc, _ := newTestService(t, fullyConfigured())
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	svc.WithDomainAge(func(string) (int, bool) {
		<-release
		return 400, true
	}).WithEnrichTimeout(50 * time.Millisecond)

	start := time.Now()
	score, err := svc.DomainSecurityScore(context.Background(), "example.com")
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Nil(t, score.DomainAgeDays)
	require.NotNil(t, score.PrimaryDomain)
	assert.True(t, *score.PrimaryDomain)
}
