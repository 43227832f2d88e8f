package server

import (
	"io"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/dnsscience/telemetry/config"
	"github.com/dnsscience/telemetry/internal/cache"
	"github.com/dnsscience/telemetry/internal/logger"
	"github.com/dnsscience/telemetry/internal/repository"
	"github.com/dnsscience/telemetry/internal/tracing"
	"github.com/dnsscience/telemetry/services"
)

// Runtime holds the handles every command shares: logger, tracer,
// repositories and services. Built once at start-up.
type Runtime struct {
	Config       *config.Config
	Log          logger.Logger
	Repositories *repository.Repositories
	Services     *services.Services
	tracerCloser io.Closer
}

func NewRuntime(cfg *config.Config, db *gorm.DB) (*Runtime, error) {
	log := logger.NewAppLogger(cfg.Logger)
	log.InitLogger()

	tracer, closer := newTracer(cfg.Tracing, log)
	opentracing.SetGlobalTracer(tracer)

	repos := repository.InitRepositories(db)
	redisCache := cache.New(cache.NewRedisClient(cfg.RedisConfig))

	svcs, err := services.InitServices(cfg, log, repos, redisCache)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, err
	}

	return &Runtime{
		Config:       cfg,
		Log:          log,
		Repositories: repos,
		Services:     svcs,
		tracerCloser: closer,
	}, nil
}

// newTracer falls back to the no-op tracer when jaeger cannot be set up;
// tracing is never a reason to refuse to start.
func newTracer(cfg *tracing.JaegerConfig, log logger.Logger) (opentracing.Tracer, io.Closer) {
	tracer, closer, err := tracing.NewJaegerTracer(cfg, log)
	if err != nil {
		log.Warnf("Could not initialize jaeger tracer, tracing disabled: %v", err)
		return opentracing.NoopTracer{}, nil
	}
	return tracer, closer
}

func (r *Runtime) Close() {
	if err := r.Services.Close(); err != nil {
		r.Log.Warnf("Closing services: %v", err)
	}
	if r.tracerCloser != nil {
		r.tracerCloser.Close()
	}
	r.Log.Sync()
}
