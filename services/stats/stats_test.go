package stats

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

	"github.com/dnsscience/telemetry/dto"
	"github.com/dnsscience/telemetry/internal/cache"
	"github.com/dnsscience/telemetry/internal/logger"
)

type mockStatsRepository struct {
	mock.Mock
}

func (m *mockStatsRepository) CountActiveDomains(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStatsRepository) CountDomainsCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	args := m.Called(ctx, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStatsRepository) EmailSecurityCoverage(ctx context.Context) (*dto.EmailCoverage, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).(*dto.EmailCoverage)
	return res, args.Error(1)
}

func (m *mockStatsRepository) CertificateCounts(ctx context.Context, now time.Time, expiringWithin time.Duration) (*dto.SSLStats, error) {
	args := m.Called(ctx, now, expiringWithin)
	res, _ := args.Get(0).(*dto.SSLStats)
	return res, args.Error(1)
}

func (m *mockStatsRepository) CountryDistribution(ctx context.Context, limit int) (map[string]int64, bool, error) {
	args := m.Called(ctx, limit)
	res, _ := args.Get(0).(map[string]int64)
	return res, args.Bool(1), args.Error(2)
}

func (m *mockStatsRepository) ValuationTotals(ctx context.Context) (*dto.ValuationStats, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).(*dto.ValuationStats)
	return res, args.Error(1)
}

// 2024-03-14 is a Thursday.
var fixedNow = time.Date(2024, 3, 14, 15, 30, 0, 0, time.UTC)

func newRepo(total int64) *mockStatsRepository {
	repo := &mockStatsRepository{}
	repo.On("CountActiveDomains", mock.Anything).Return(total, nil)
	repo.On("CountDomainsCreatedSince", mock.Anything, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)).Return(int64(3), nil)
	repo.On("CountDomainsCreatedSince", mock.Anything, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)).Return(int64(10), nil)
	repo.On("CountDomainsCreatedSince", mock.Anything, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)).Return(int64(25), nil)
	repo.On("EmailSecurityCoverage", mock.Anything).Return(&dto.EmailCoverage{Total: 3, MX: 3, SPF: 2, DMARC: 1}, nil)
	repo.On("CertificateCounts", mock.Anything, fixedNow, expiringWithin).Return(&dto.SSLStats{Total: 5, ExpiringSoon: 1, Expired: 2}, nil)
	repo.On("CountryDistribution", mock.Anything, topCountries).Return(map[string]int64{}, false, nil)
	repo.On("ValuationTotals", mock.Anything).Return(nil, errors.New(`relation "domain_valuations" does not exist`))
	return repo
}

func newCollector(repo *mockStatsRepository) *Collector {
	c := NewCollector(repo, logger.NewNopLogger())
	c.now = func() time.Time { return fixedNow }
	return c
}

func TestCollector_Collect(t *testing.T) {
	stats := newCollector(newRepo(42)).Collect(context.Background())

	assert.Equal(t, int64(42), stats.TotalDomains)
	assert.Equal(t, int64(3), stats.DomainsToday)
	assert.Equal(t, int64(10), stats.DomainsThisWeek)
	assert.Equal(t, int64(25), stats.DomainsThisMonth)
	assert.Equal(t, 100.0, stats.EmailSecurity.MXPct)
	assert.Equal(t, 66.67, stats.EmailSecurity.SPFPct)
	assert.Equal(t, 33.33, stats.EmailSecurity.DMARCPct)
	assert.Equal(t, int64(2), stats.SSLCertificates.Expired)
	assert.False(t, stats.GeoIPReady)
	assert.NotNil(t, stats.Countries)
	// failed aggregate stays zero
	assert.Equal(t, dto.ValuationStats{}, stats.Valuations)
	assert.Equal(t, fixedNow.Unix(), stats.LastUpdateUnix)
}

func TestCollector_FailedAggregateDoesNotAbortOthers(t *testing.T) {
	repo := &mockStatsRepository{}
	repo.On("CountActiveDomains", mock.Anything).Return(int64(0), errors.New("connection reset"))
	repo.On("CountDomainsCreatedSince", mock.Anything, mock.Anything).Return(int64(1), nil)
	repo.On("EmailSecurityCoverage", mock.Anything).Return(nil, errors.New("boom"))
	repo.On("CertificateCounts", mock.Anything, mock.Anything, mock.Anything).Return(&dto.SSLStats{Total: 9}, nil)
	repo.On("CountryDistribution", mock.Anything, mock.Anything).Return(map[string]int64{"Germany": 4}, true, nil)
	repo.On("ValuationTotals", mock.Anything).Return(&dto.ValuationStats{Total: 2, TotalValue: 1500}, nil)

	stats := newCollector(repo).Collect(context.Background())

	assert.Zero(t, stats.TotalDomains)
	assert.Equal(t, int64(1), stats.DomainsToday)
	assert.Equal(t, int64(9), stats.SSLCertificates.Total)
	assert.True(t, stats.GeoIPReady)
	assert.Equal(t, int64(4), stats.Countries["Germany"])
	assert.Equal(t, 1500.0, stats.Valuations.TotalValue)
}

func TestStartOfWeek(t *testing.T) {
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), startOfWeek(time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), startOfWeek(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)))
}

func TestUnflatten_MissingKey(t *testing.T) {
	values := Flatten(&dto.Stats{Countries: map[string]int64{}, LastUpdate: fixedNow.Format(time.RFC3339)})
	delete(values, KeyPrefix+"ssl_expired")

	_, err := Unflatten(values)
	assert.Error(t, err)
}

func newCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return cache.New(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

func TestGateway_ColdCacheReadsStore(t *testing.T) {
	c, _ := newCache(t)
	gw := NewGateway(newCollector(newRepo(42)), c, logger.NewNopLogger())

	stats := gw.Stats(context.Background())
	assert.Equal(t, SourceStore, stats.Source)
	assert.Equal(t, int64(42), stats.TotalDomains)
}

func TestGateway_WarmCacheAfterPopulate(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	populated := newCollector(newRepo(42))
	require.NoError(t, NewPopulator(populated, c, 10*time.Minute, logger.NewNopLogger()).Populate(ctx))
	assert.Equal(t, 10*time.Minute, mr.TTL(KeyLastUpdate))
	assert.Equal(t, 10*time.Minute, mr.TTL(KeyAll))

	// the store now disagrees; a warm cache must win
	gw := NewGateway(newCollector(newRepo(7)), c, logger.NewNopLogger())
	fromCache := gw.Stats(ctx)
	assert.Equal(t, SourceCache, fromCache.Source)
	assert.Equal(t, int64(42), fromCache.TotalDomains)

	fromStore := newCollector(newRepo(42)).Collect(ctx)
	fromStore.Source = SourceCache
	assert.Equal(t, fromStore, fromCache)
}

func TestGateway_ExpiredSnapshotFallsBack(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	require.NoError(t, NewPopulator(newCollector(newRepo(42)), c, time.Minute, logger.NewNopLogger()).Populate(ctx))
	mr.FastForward(2 * time.Minute)

	stats := NewGateway(newCollector(newRepo(7)), c, logger.NewNopLogger()).Stats(ctx)
	assert.Equal(t, SourceStore, stats.Source)
	assert.Equal(t, int64(7), stats.TotalDomains)
}

func TestGateway_PartialSnapshotFallsBack(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	require.NoError(t, NewPopulator(newCollector(newRepo(42)), c, time.Minute, logger.NewNopLogger()).Populate(ctx))
	mr.Del(KeyPrefix + "total_domains")

	stats := NewGateway(newCollector(newRepo(7)), c, logger.NewNopLogger()).Stats(ctx)
	assert.Equal(t, SourceStore, stats.Source)
}

func TestGateway_CacheDownFallsBack(t *testing.T) {
	c, mr := newCache(t)
	mr.Close()

	stats := NewGateway(newCollector(newRepo(42)), c, logger.NewNopLogger()).Stats(context.Background())
	assert.Equal(t, SourceStore, stats.Source)
	assert.Equal(t, int64(42), stats.TotalDomains)
}

func TestPopulator_CacheDownSkipsCycle(t *testing.T) {
	c, mr := newCache(t)
	mr.Close()
	repo := newRepo(42)

	err := NewPopulator(newCollector(repo), c, time.Minute, logger.NewNopLogger()).Populate(context.Background())
	assert.Error(t, err)
	repo.AssertNotCalled(t, "CountActiveDomains", mock.Anything)
}
