package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/dnsscience/telemetry/config"
	"github.com/dnsscience/telemetry/internal/daemon"
)

// Job builds the named scan job from the runtime handles.
func (r *Runtime) Job(name string) (daemon.Job, error) {
	repos, svcs, scan := r.Repositories, r.Services, r.Config.ScanConfig
	publisher := svcs.EventsService.Publisher

	switch name {
	case daemon.JobEmailSecurity:
		return daemon.NewEmailSecurityJob(repos.DomainRepository, repos.EmailSecurityRepository,
			svcs.Checker, publisher, scan.EmailScanInterval, r.Log), nil
	case daemon.JobReputation:
		return daemon.NewReputationJob(repos.DomainRepository, repos.ReputationRepository,
			svcs.Resolver, svcs.Aggregator, publisher, scan.ReputationScanInterval, r.Log), nil
	case daemon.JobCertificate:
		return daemon.NewCertificateJob(repos.DomainRepository, repos.CertificateRepository,
			svcs.CertClient, publisher, scan.CertPort, scan.CertScanInterval, r.Log), nil
	default:
		return nil, errors.Errorf("unknown scan job %q", name)
	}
}

// RunDaemon runs one scan loop until SIGINT or SIGTERM.
func RunDaemon(cfg *config.Config, db *gorm.DB, name string) error {
	rt, err := NewRuntime(cfg, db)
	if err != nil {
		return err
	}
	defer rt.Close()

	job, err := rt.Job(name)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := daemon.New(job, daemon.Config{
		BatchSize: cfg.ScanConfig.BatchSize,
		IdleSleep: cfg.ScanConfig.IdleSleep,
		BusySleep: cfg.ScanConfig.BusySleep,
	}, rt.Log)

	return d.Run(ctx)
}

// PopulateOnce refreshes the stats cache a single time.
func PopulateOnce(cfg *config.Config, db *gorm.DB) error {
	rt, err := NewRuntime(cfg, db)
	if err != nil {
		return err
	}
	defer rt.Close()

	return rt.Services.StatsPopulator.Populate(context.Background())
}
