package reputation

import (
	"context"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	er "github.com/dnsscience/telemetry/internal/errors"
	"github.com/dnsscience/telemetry/internal/logger"
	"github.com/dnsscience/telemetry/internal/tracing"
	"github.com/dnsscience/telemetry/internal/utils"
)

const cacheKeyPrefix = "ip_reputation:"

// limiterWarnEvery bounds how often a limiter outage is logged.
const limiterWarnEvery = time.Minute

const (
	ConfidenceUnknown = "unknown"
	ConfidenceLow     = "low"
	ConfidenceMedium  = "medium"
	ConfidenceHigh    = "high"

	RiskUnknown  = "unknown"
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

type Limiter interface {
	Allow(ctx context.Context, source string) (bool, error)
}

// Reputation is the combined view of an address. A zero score with
// confidence "unknown" means no source answered; it is not a clean result.
type Reputation struct {
	IP               string                   `json:"ip"`
	Timestamp        time.Time                `json:"timestamp"`
	Sources          map[string]*SourceResult `json:"sources"`
	OverallRiskScore float64                  `json:"overall_risk_score"`
	RiskLevel        string                   `json:"risk_level"`
	Confidence       string                   `json:"confidence"`
	IsMalicious      bool                     `json:"is_malicious"`
	IsSpam           bool                     `json:"is_spam"`
	IsProxy          bool                     `json:"is_proxy"`
	Cached           bool                     `json:"cached"`
}

type Aggregator struct {
	sources []Source
	limiter Limiter
	cache   Cache
	ttl     time.Duration
	log     logger.Logger

	mu              sync.Mutex
	limiterWarnedAt time.Time
}

func NewAggregator(sources []Source, limiter Limiter, cache Cache, ttl time.Duration, log logger.Logger) *Aggregator {
	return &Aggregator{sources: sources, limiter: limiter, cache: cache, ttl: ttl, log: log}
}

func (a *Aggregator) Sources() []string {
	names := make([]string, 0, len(a.sources))
	for _, s := range a.sources {
		names = append(names, s.Name())
	}
	return names
}

// Lookup is cache-aside on ip_reputation:<ip>. Source failures and quota
// skips are recorded per source and never fail the call.
func (a *Aggregator) Lookup(ctx context.Context, ip string) (*Reputation, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Aggregator.Lookup")
	defer span.Finish()
	tracing.TagComponentService(span)

	ip, err := utils.ParseIP(ip)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	tracing.TagIP(span, ip)

	key := cacheKeyPrefix + ip
	if a.cache != nil {
		var cached Reputation
		err := a.cache.GetJSON(ctx, key, &cached)
		switch {
		case err == nil:
			cached.Cached = true
			span.LogKV("result.cached", true)
			return &cached, nil
		case !errors.Is(err, er.ErrCacheMiss):
			a.log.Warnf("reputation cache read failed for %s: %v", ip, err)
		}
	}

	result := a.aggregate(ctx, ip)
	span.LogKV("result.score", result.OverallRiskScore, "result.confidence", result.Confidence)

	if a.cache != nil && result.Confidence != ConfidenceUnknown {
		if err := a.cache.SetJSON(ctx, key, result, a.ttl); err != nil {
			a.log.Warnf("reputation cache write failed for %s: %v", ip, err)
		}
	}
	return result, nil
}

func (a *Aggregator) aggregate(ctx context.Context, ip string) *Reputation {
	result := &Reputation{
		IP:        ip,
		Timestamp: utils.Now(),
		Sources:   make(map[string]*SourceResult, len(a.sources)),
	}

	var scores []float64
	for _, source := range a.sources {
		res := a.query(ctx, source, ip)
		result.Sources[source.Name()] = res
		if res.Error != "" {
			continue
		}
		if res.Score != nil {
			scores = append(scores, *res.Score)
		}
		result.IsMalicious = result.IsMalicious || res.Flags.Malicious
		result.IsSpam = result.IsSpam || res.Flags.Spam
		result.IsProxy = result.IsProxy || res.Flags.Proxy
	}

	result.Confidence = confidence(len(scores))
	if len(scores) > 0 {
		sum := 0.0
		for _, s := range scores {
			sum += s
		}
		result.OverallRiskScore = sum / float64(len(scores))
	}
	result.RiskLevel = RiskLevel(result.OverallRiskScore, result.Confidence)
	return result
}

// query checks the quota and calls one source. Any failure or panic becomes
// an error sub-result.
func (a *Aggregator) query(ctx context.Context, source Source, ip string) (res *SourceResult) {
	name := source.Name()

	if a.limiter != nil {
		allowed, err := a.limiter.Allow(ctx, name)
		if err != nil {
			a.warnLimiterDown(err)
			return &SourceResult{Error: "rate limiter unavailable"}
		}
		if !allowed {
			return &SourceResult{Error: er.ErrQuotaExceeded.Error()}
		}
	}

	defer func() {
		if r := recover(); r != nil {
			a.log.Errorf("source %s panicked: %v", name, r)
			res = &SourceResult{Error: "internal source failure"}
		}
	}()

	res, err := source.Lookup(ctx, ip)
	if err != nil {
		a.log.Warnf("source %s failed for %s: %v", name, ip, err)
		return &SourceResult{Error: err.Error()}
	}
	if res == nil {
		return &SourceResult{Error: "empty response"}
	}
	return res
}

// warnLimiterDown logs a limiter outage at most once per limiterWarnEvery.
// While it lasts every quota-bound source is skipped.
func (a *Aggregator) warnLimiterDown(err error) {
	a.mu.Lock()
	now := utils.Now()
	due := now.Sub(a.limiterWarnedAt) >= limiterWarnEvery
	if due {
		a.limiterWarnedAt = now
	}
	a.mu.Unlock()

	if due {
		a.log.Warnf("rate limiter unavailable, skipping quota-bound sources: %v", err)
	}
}

func confidence(scored int) string {
	switch {
	case scored == 0:
		return ConfidenceUnknown
	case scored == 1:
		return ConfidenceLow
	case scored == 2:
		return ConfidenceMedium
	default:
		return ConfidenceHigh
	}
}

func RiskLevel(score float64, confidence string) string {
	if confidence == ConfidenceUnknown {
		return RiskUnknown
	}
	switch {
	case score < 10:
		return RiskLow
	case score < 30:
		return RiskMedium
	case score < 60:
		return RiskHigh
	default:
		return RiskCritical
	}
}
