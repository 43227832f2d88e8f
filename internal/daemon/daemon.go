// Package daemon runs the scan loops. Each daemon owns one Job and processes
// its stale entities one at a time.
package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/opentracing/opentracing-go"

	"github.com/dnsscience/telemetry/internal/logger"
	"github.com/dnsscience/telemetry/internal/models"
	"github.com/dnsscience/telemetry/internal/tracing"
	"github.com/dnsscience/telemetry/internal/utils"
)

const maxDeferred = 50000

type Job interface {
	Name() string
	// Interval is the staleness window.
	Interval() time.Duration
	SelectStale(ctx context.Context, cutoff time.Time, limit int, exclude []uint64) ([]models.Domain, error)
	Process(ctx context.Context, domain models.Domain) error
}

type Config struct {
	BatchSize int
	IdleSleep time.Duration
	BusySleep time.Duration
}

type Daemon struct {
	job Job
	cfg Config
	log logger.Logger
	now func() time.Time

	// deferred holds entities that failed this window. They are left out of
	// selection until their entry expires after one interval.
	deferred *expirable.LRU[uint64, struct{}]
}

func New(job Job, cfg Config, log logger.Logger) *Daemon {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Daemon{
		job:      job,
		cfg:      cfg,
		log:      log.With("daemon", job.Name()),
		now:      utils.Now,
		deferred: expirable.NewLRU[uint64, struct{}](maxDeferred, nil, job.Interval()),
	}
}

// Run loops until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	d.log.Infof("starting %s daemon: batch %d, interval %s", d.job.Name(), d.cfg.BatchSize, d.job.Interval())

	for {
		sleep := d.cfg.IdleSleep
		if d.RunOnce(ctx) {
			sleep = d.cfg.BusySleep
		}

		select {
		case <-ctx.Done():
			d.log.Infof("%s daemon stopped", d.job.Name())
			return nil
		case <-time.After(sleep):
		}
	}
}

// RunOnce processes one batch and reports whether anything was saved.
// Entity failures are logged and never abort the batch.
func (d *Daemon) RunOnce(ctx context.Context) bool {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Daemon.RunOnce")
	defer span.Finish()
	tracing.TagComponentDaemon(span)
	tracing.TagJob(span, d.job.Name())

	cutoff := d.now().Add(-d.job.Interval())
	batch, err := d.job.SelectStale(ctx, cutoff, d.cfg.BatchSize, d.deferred.Keys())
	if err != nil {
		tracing.TraceErr(span, err)
		d.log.Errorf("failed to select stale domains: %v", err)
		return false
	}
	span.LogKV("batch.size", len(batch))
	if len(batch) == 0 {
		return false
	}

	processed, failed := 0, 0
	for _, domain := range batch {
		if ctx.Err() != nil {
			break
		}
		if err := d.process(ctx, domain); err != nil {
			failed++
			d.deferred.Add(domain.ID, struct{}{})
			d.log.Warnf("%s failed for %s (id %d): %v", d.job.Name(), domain.DomainName, domain.ID, err)
			continue
		}
		processed++
	}

	span.LogKV("result.processed", processed, "result.failed", failed)
	d.log.Infof("%s batch done: %d processed, %d failed, %d deferred", d.job.Name(), processed, failed, d.deferred.Len())
	return processed > 0
}

func (d *Daemon) process(ctx context.Context, domain models.Domain) (err error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Daemon.Process")
	defer span.Finish()
	tracing.TagComponentDaemon(span)
	tracing.TagDomain(span, domain.DomainName)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			tracing.TraceErr(span, err)
		}
	}()

	if err := d.job.Process(ctx, domain); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (d *Daemon) Deferred() int {
	return d.deferred.Len()
}
