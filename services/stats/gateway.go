package stats

import (
	"context"

	"github.com/opentracing/opentracing-go"

	"github.com/dnsscience/telemetry/dto"
	"github.com/dnsscience/telemetry/internal/logger"
	"github.com/dnsscience/telemetry/internal/tracing"
)

type SnapshotReader interface {
	Exists(ctx context.Context, key string) (bool, error)
	MGet(ctx context.Context, keys ...string) (map[string]string, error)
}

// Gateway serves the stats document from the cache when the sentinel key is
// present and from the store otherwise.
type Gateway struct {
	collector *Collector
	cache     SnapshotReader
	log       logger.Logger
}

func NewGateway(collector *Collector, cache SnapshotReader, log logger.Logger) *Gateway {
	return &Gateway{collector: collector, cache: cache, log: log}
}

func (g *Gateway) Stats(ctx context.Context) *dto.Stats {
	span, ctx := opentracing.StartSpanFromContext(ctx, "StatsGateway.Stats")
	defer span.Finish()
	tracing.TagComponentService(span)

	if stats := g.fromCache(ctx); stats != nil {
		stats.Source = SourceCache
		span.LogKV("result.source", SourceCache)
		return stats
	}

	stats := g.collector.Collect(ctx)
	stats.Source = SourceStore
	span.LogKV("result.source", SourceStore)
	return stats
}

func (g *Gateway) fromCache(ctx context.Context) *dto.Stats {
	warm, err := g.cache.Exists(ctx, KeyLastUpdate)
	if err != nil {
		g.log.Warnf("stats cache unavailable, reading from store: %v", err)
		return nil
	}
	if !warm {
		return nil
	}

	values, err := g.cache.MGet(ctx, MetricKeys()...)
	if err != nil {
		g.log.Warnf("stats cache read failed, reading from store: %v", err)
		return nil
	}
	stats, err := Unflatten(values)
	if err != nil {
		g.log.Debugf("stats cache incomplete, reading from store: %v", err)
		return nil
	}
	return stats
}
