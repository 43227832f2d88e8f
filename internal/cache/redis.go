package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/dnsscience/telemetry/config"
	er "github.com/dnsscience/telemetry/internal/errors"
	"github.com/dnsscience/telemetry/internal/tracing"
)

// Cache wraps the shared Redis handle. One instance is built at start-up and
// passed to every component that needs it.
type Cache struct {
	client redis.UniversalClient
}

func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.DialTimeout,
	})
}

func New(client redis.UniversalClient) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() redis.UniversalClient {
	return c.client
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return er.New(er.KindCache, "ping", err)
	}
	return nil
}

// GetJSON decodes key into dest. A missing key yields ErrCacheMiss.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Cache.GetJSON")
	defer span.Finish()
	tracing.TagComponentCache(span)
	span.LogKV("key", key)

	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		span.LogKV("result.hit", false)
		return er.ErrCacheMiss
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return er.New(er.KindCache, "get", err)
	}

	span.LogKV("result.hit", true)
	if err := json.Unmarshal(raw, dest); err != nil {
		return er.New(er.KindCache, "decode", err)
	}
	return nil
}

func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Cache.SetJSON")
	defer span.Finish()
	tracing.TagComponentCache(span)
	span.LogKV("key", key, "ttl", ttl.String())

	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "encode cache value")
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		tracing.TraceErr(span, err)
		return er.New(er.KindCache, "set", err)
	}
	return nil
}

func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, er.New(er.KindCache, "exists", err)
	}
	return n > 0, nil
}

// MGet returns the string values for keys; missing keys are absent from the
// returned map.
func (c *Cache) MGet(ctx context.Context, keys ...string) (map[string]string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Cache.MGet")
	defer span.Finish()
	tracing.TagComponentCache(span)

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, er.New(er.KindCache, "mget", err)
	}

	out := make(map[string]string, len(keys))
	for i, v := range values {
		if s, ok := v.(string); ok {
			out[keys[i]] = s
		}
	}
	span.LogKV("result.found", len(out), "result.requested", len(keys))
	return out, nil
}

// WriteSnapshot replaces the flat keys and the combined hash in a single
// MULTI/EXEC so readers never see a half-written cycle.
func (c *Cache) WriteSnapshot(ctx context.Context, values map[string]string, hashKey string, ttl time.Duration) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Cache.WriteSnapshot")
	defer span.Finish()
	tracing.TagComponentCache(span)
	span.LogKV("keys", len(values), "ttl", ttl.String())

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		hash := make(map[string]interface{}, len(values))
		for key, value := range values {
			pipe.Set(ctx, key, value, ttl)
			hash[key] = value
		}
		pipe.Del(ctx, hashKey)
		if len(hash) > 0 {
			pipe.HSet(ctx, hashKey, hash)
			pipe.Expire(ctx, hashKey, ttl)
		}
		return nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return er.New(er.KindCache, "write snapshot", err)
	}
	return nil
}
