package stats

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/dnsscience/telemetry/internal/logger"
	"github.com/dnsscience/telemetry/internal/tracing"
)

type SnapshotWriter interface {
	Ping(ctx context.Context) error
	WriteSnapshot(ctx context.Context, values map[string]string, hashKey string, ttl time.Duration) error
}

type Populator struct {
	collector *Collector
	cache     SnapshotWriter
	ttl       time.Duration
	log       logger.Logger
}

// NewPopulator takes the entry TTL, normally twice the populate interval.
func NewPopulator(collector *Collector, cache SnapshotWriter, ttl time.Duration, log logger.Logger) *Populator {
	return &Populator{collector: collector, cache: cache, ttl: ttl, log: log}
}

// Populate writes one snapshot. An unreachable cache skips the cycle before
// any store query runs.
func (p *Populator) Populate(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "StatsPopulator.Populate")
	defer span.Finish()
	tracing.TagComponentService(span)

	if err := p.cache.Ping(ctx); err != nil {
		tracing.TraceErr(span, err)
		p.log.Warnf("stats cache unreachable, skipping populate: %v", err)
		return err
	}

	stats := p.collector.Collect(ctx)
	if err := p.cache.WriteSnapshot(ctx, Flatten(stats), KeyAll, p.ttl); err != nil {
		tracing.TraceErr(span, err)
		p.log.Errorf("failed to write stats snapshot: %v", err)
		return err
	}

	p.log.Infof("stats populated: %d domains, ttl %s", stats.TotalDomains, p.ttl)
	return nil
}
