package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriod_Bucket(t *testing.T) {
	ts := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	assert.Equal(t, "20250314150926", PerSecond.Bucket(ts))
	assert.Equal(t, "20250314", PerDay.Bucket(ts))
	assert.Equal(t, "202503", PerMonth.Bucket(ts))
	assert.Equal(t, "rate_limit:abuseipdb:20250314", Key("abuseipdb", PerDay, ts))
}

func TestRateLimiter_StopsAtQuotaWithoutIncrementing(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	limiter := NewRateLimiter(c, map[string]Quota{"virustotal": {Limit: 3, Period: PerDay}}).
		WithClock(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "virustotal")
		require.NoError(t, err)
		assert.True(t, ok, "call %d", i+1)
	}

	ok, err := limiter.Allow(ctx, "virustotal")
	require.NoError(t, err)
	assert.False(t, ok)

	used, err := limiter.Used(ctx, "virustotal")
	require.NoError(t, err)
	assert.Equal(t, int64(3), used)

	v, err := mr.Get("rate_limit:virustotal:20250314")
	require.NoError(t, err)
	assert.Equal(t, "3", v)
	assert.Equal(t, 25*time.Hour, mr.TTL("rate_limit:virustotal:20250314"))
}

func TestRateLimiter_NewPeriodResets(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 14, 23, 59, 59, 0, time.UTC)

	limiter := NewRateLimiter(c, map[string]Quota{"abuseipdb": {Limit: 1, Period: PerDay}}).
		WithClock(func() time.Time { return now })

	ok, err := limiter.Allow(ctx, "abuseipdb")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = limiter.Allow(ctx, "abuseipdb")
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(2 * time.Second)
	used, err := limiter.Used(ctx, "abuseipdb")
	require.NoError(t, err)
	assert.Equal(t, int64(0), used)

	ok, err = limiter.Allow(ctx, "abuseipdb")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRateLimiter_UnlimitedSource(t *testing.T) {
	c, _ := newTestCache(t)
	limiter := NewRateLimiter(c, nil)

	ok, err := limiter.Allow(context.Background(), "blacklist")
	require.NoError(t, err)
	assert.True(t, ok)
}
