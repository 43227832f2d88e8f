package reputation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dnsscience/telemetry/internal/cache"
	er "github.com/dnsscience/telemetry/internal/errors"
	"github.com/dnsscience/telemetry/internal/logger"
)

type mockSource struct {
	mock.Mock
	name string
}

func (m *mockSource) Name() string { return m.name }

func (m *mockSource) Lookup(ctx context.Context, ip string) (*SourceResult, error) {
	args := m.Called(ctx, ip)
	res, _ := args.Get(0).(*SourceResult)
	return res, args.Error(1)
}

func scoring(name string, v float64, flags Flags) *mockSource {
	s := &mockSource{name: name}
	s.On("Lookup", mock.Anything, mock.Anything).Return(&SourceResult{Score: score(v), Flags: flags}, nil)
	return s
}

func failing(name string) *mockSource {
	s := &mockSource{name: name}
	s.On("Lookup", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
	return s
}

type panicking struct{}

func (panicking) Name() string { return "panicky" }
func (panicking) Lookup(context.Context, string) (*SourceResult, error) {
	panic("boom")
}

func newTestCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return cache.New(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

func TestAggregator_MeanOfRespondingSources(t *testing.T) {
	c, mr := newTestCache(t)
	a := NewAggregator([]Source{
		scoring(SourceAbuseIPDB, 20, Flags{Proxy: true}),
		scoring(SourceVirusTotal, 40, Flags{Malicious: true}),
		failing(SourceShodan),
	}, nil, c, time.Hour, logger.NewNopLogger())

	res, err := a.Lookup(context.Background(), "192.0.2.1")
	require.NoError(t, err)

	assert.Equal(t, 30.0, res.OverallRiskScore)
	assert.Equal(t, RiskHigh, res.RiskLevel)
	assert.Equal(t, ConfidenceMedium, res.Confidence)
	assert.True(t, res.IsProxy)
	assert.True(t, res.IsMalicious)
	assert.False(t, res.IsSpam)
	assert.Equal(t, "connection refused", res.Sources[SourceShodan].Error)
	assert.False(t, res.Cached)
	assert.True(t, mr.Exists("ip_reputation:192.0.2.1"))
}

func TestAggregator_AllSourcesFailed(t *testing.T) {
	c, mr := newTestCache(t)
	a := NewAggregator([]Source{failing(SourceAbuseIPDB), failing(SourceVirusTotal), panicking{}}, nil, c, time.Hour, logger.NewNopLogger())

	res, err := a.Lookup(context.Background(), "192.0.2.1")
	require.NoError(t, err)

	assert.Zero(t, res.OverallRiskScore)
	assert.Equal(t, ConfidenceUnknown, res.Confidence)
	assert.Equal(t, RiskUnknown, res.RiskLevel)
	assert.Len(t, res.Sources, 3)
	assert.NotEmpty(t, res.Sources["panicky"].Error)
	assert.False(t, mr.Exists("ip_reputation:192.0.2.1"))
}

func TestAggregator_CleanResultIsNotUnknown(t *testing.T) {
	a := NewAggregator([]Source{scoring(SourceBlacklist, 0, Flags{})}, nil, nil, time.Hour, logger.NewNopLogger())

	res, err := a.Lookup(context.Background(), "192.0.2.1")
	require.NoError(t, err)
	assert.Zero(t, res.OverallRiskScore)
	assert.Equal(t, ConfidenceLow, res.Confidence)
	assert.Equal(t, RiskLow, res.RiskLevel)
}

func TestAggregator_CacheHitSkipsSources(t *testing.T) {
	c, _ := newTestCache(t)
	src := scoring(SourceAbuseIPDB, 80, Flags{})
	a := NewAggregator([]Source{src}, nil, c, time.Hour, logger.NewNopLogger())
	ctx := context.Background()

	_, err := a.Lookup(ctx, "192.0.2.1")
	require.NoError(t, err)
	res, err := a.Lookup(ctx, "192.0.2.1")
	require.NoError(t, err)

	assert.True(t, res.Cached)
	assert.Equal(t, 80.0, res.OverallRiskScore)
	src.AssertNumberOfCalls(t, "Lookup", 1)
}

func TestAggregator_QuotaExceededSkipsSource(t *testing.T) {
	c, _ := newTestCache(t)
	limiter := cache.NewRateLimiter(c, map[string]cache.Quota{
		SourceAbuseIPDB: {Limit: 1, Period: cache.PerDay},
	})
	src := scoring(SourceAbuseIPDB, 50, Flags{})
	a := NewAggregator([]Source{src}, limiter, nil, time.Hour, logger.NewNopLogger())
	ctx := context.Background()

	first, err := a.Lookup(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, ConfidenceLow, first.Confidence)

	second, err := a.Lookup(ctx, "192.0.2.2")
	require.NoError(t, err)
	assert.Equal(t, er.ErrQuotaExceeded.Error(), second.Sources[SourceAbuseIPDB].Error)
	assert.Equal(t, ConfidenceUnknown, second.Confidence)
	src.AssertNumberOfCalls(t, "Lookup", 1)
}

func TestAggregator_InvalidIP(t *testing.T) {
	a := NewAggregator(nil, nil, nil, time.Hour, logger.NewNopLogger())

	_, err := a.Lookup(context.Background(), "not-an-ip")
	assert.ErrorIs(t, err, er.ErrInvalidIP)
}

func TestRiskLevel(t *testing.T) {
	assert.Equal(t, RiskLow, RiskLevel(9.9, ConfidenceHigh))
	assert.Equal(t, RiskMedium, RiskLevel(10, ConfidenceHigh))
	assert.Equal(t, RiskHigh, RiskLevel(30, ConfidenceHigh))
	assert.Equal(t, RiskCritical, RiskLevel(60, ConfidenceHigh))
	assert.Equal(t, RiskUnknown, RiskLevel(0, ConfidenceUnknown))
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, ConfidenceUnknown, confidence(0))
	assert.Equal(t, ConfidenceLow, confidence(1))
	assert.Equal(t, ConfidenceMedium, confidence(2))
	assert.Equal(t, ConfidenceHigh, confidence(4))
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("dial tcp: connection refused")
}

type baseLogger = logger.Logger

type warnCounter struct {
	baseLogger
	warnings int
}

func (w *warnCounter) Warnf(string, ...interface{}) { w.warnings++ }

func TestAggregator_LimiterOutageWarnsOncePerWindow(t *testing.T) {
	log := &warnCounter{baseLogger: logger.NewNopLogger()}
	src := scoring("abuseipdb", 10, Flags{})
	a := NewAggregator([]Source{src, scoring("virustotal", 20, Flags{})}, brokenLimiter{}, nil, time.Hour, log)

	for i := 0; i < 3; i++ {
		rep, err := a.Lookup(context.Background(), "192.0.2.1")
		require.NoError(t, err)
		assert.Equal(t, ConfidenceUnknown, rep.Confidence)
		assert.Equal(t, "rate limiter unavailable", rep.Sources["abuseipdb"].Error)
	}

	assert.Equal(t, 1, log.warnings)
	src.AssertNotCalled(t, "Lookup", mock.Anything, mock.Anything)

	a.limiterWarnedAt = a.limiterWarnedAt.Add(-limiterWarnEvery)
	_, err := a.Lookup(context.Background(), "192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, 2, log.warnings)
}
