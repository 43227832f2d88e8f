package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/redis/go-redis/v9"

	er "github.com/dnsscience/telemetry/internal/errors"
	"github.com/dnsscience/telemetry/internal/tracing"
)

// Period is the quota window of a source.
type Period string

const (
	PerSecond Period = "second"
	PerDay    Period = "day"
	PerMonth  Period = "month"
)

type Quota struct {
	Limit  int64
	Period Period
}

// Bucket names the window containing t, e.g. 20250314 for a daily quota.
func (p Period) Bucket(t time.Time) string {
	t = t.UTC()
	switch p {
	case PerSecond:
		return t.Format("20060102150405")
	case PerMonth:
		return t.Format("200601")
	default:
		return t.Format("20060102")
	}
}

func (p Period) TTL() time.Duration {
	switch p {
	case PerSecond:
		return 2 * time.Second
	case PerMonth:
		return 32 * 24 * time.Hour
	default:
		return 25 * time.Hour
	}
}

// Increments only while below the limit so refused calls leave the counter
// untouched. Returns 1 when the call is allowed.
var allowScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if current >= tonumber(ARGV[1]) then
	return 0
end
current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[2])
end
return 1
`)

type RateLimiter struct {
	client redis.UniversalClient
	quotas map[string]Quota
	now    func() time.Time
}

func NewRateLimiter(c *Cache, quotas map[string]Quota) *RateLimiter {
	return &RateLimiter{client: c.client, quotas: quotas, now: time.Now}
}

// WithClock swaps the time source. Used by tests to cross bucket boundaries.
func (l *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	l.now = now
	return l
}

func Key(source string, period Period, t time.Time) string {
	return fmt.Sprintf("rate_limit:%s:%s", source, period.Bucket(t))
}

// Allow consumes one call for source. Sources without a quota are unlimited.
func (l *RateLimiter) Allow(ctx context.Context, source string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RateLimiter.Allow")
	defer span.Finish()
	tracing.TagComponentCache(span)
	span.LogKV("source", source)

	quota, ok := l.quotas[source]
	if !ok {
		return true, nil
	}

	key := Key(source, quota.Period, l.now())
	allowed, err := allowScript.Run(ctx, l.client, []string{key}, quota.Limit, int(quota.Period.TTL().Seconds())).Int()
	if err != nil {
		tracing.TraceErr(span, err)
		return false, er.New(er.KindCache, "rate limit", err)
	}

	span.LogKV("result.allowed", allowed == 1)
	return allowed == 1, nil
}

// Used returns the counter of the current window.
func (l *RateLimiter) Used(ctx context.Context, source string) (int64, error) {
	quota, ok := l.quotas[source]
	if !ok {
		return 0, nil
	}
	n, err := l.client.Get(ctx, Key(source, quota.Period, l.now())).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, er.New(er.KindCache, "rate limit", err)
	}
	return n, nil
}
