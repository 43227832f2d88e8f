package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	cronv3 "github.com/robfig/cron/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/dnsscience/telemetry/config"
	"github.com/dnsscience/telemetry/internal/logger"
	"github.com/dnsscience/telemetry/internal/tracing"
)

// CONSTANTS
const (
	// GroupStats is the group for stats cache jobs
	GroupStats = "stats"

	JobHeartbeat     = "heartbeat"
	JobStatsPopulate = "stats_populate"

	LeaseName = "dnsscience-telemetry-cron-leader"

	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second
)

// LOCK MANAGEMENT
var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupStats: new(sync.Mutex),
	},
}

type StatsPopulator interface {
	Populate(ctx context.Context) error
}

type CronManager struct {
	cfg       *config.Config
	log       logger.Logger
	cron      *cronv3.Cron
	k8s       kubernetes.Interface
	stopCh    chan struct{}
	stopOnce  sync.Once
	jobIDs    map[string]cronv3.EntryID
	populator StatsPopulator
}

func NewCronManager(cfg *config.Config, log logger.Logger, k8s kubernetes.Interface, populator StatsPopulator) *CronManager {
	return &CronManager{
		cfg:       cfg,
		log:       log,
		k8s:       k8s,
		stopCh:    make(chan struct{}),
		jobIDs:    make(map[string]cronv3.EntryID),
		populator: populator,
	}
}

// Start initializes and starts the cron manager with leader election
// If k8s is nil, it will start in local mode without leader election
func (cm *CronManager) Start() error {
	if cm.k8s == nil || cm.cfg.CronConfig.LocalDev {
		cm.log.Info("Starting cron manager in local mode")
		return cm.StartCron()
	}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      LeaseName,
			Namespace: cm.cfg.CronConfig.PodNamespace,
		},
		Client: cm.k8s.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: cm.cfg.CronConfig.PodName,
		},
	}

	// Channel to track leader election errors
	errCh := make(chan error, 1)

	go func() {
		le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
			Lock:            lock,
			ReleaseOnCancel: true,
			LeaseDuration:   LeaseDuration,
			RenewDeadline:   RenewDeadline,
			RetryPeriod:     RetryPeriod,
			Callbacks: leaderelection.LeaderCallbacks{
				OnStartedLeading: func(ctx context.Context) {
					if err := cm.StartCron(); err != nil {
						cm.log.Errorf("Failed to start crons as leader: %v", err)
					}
				},
				OnStoppedLeading: func() {
					cm.log.Info("Leader lost - stopping crons")
					cm.Stop()
				},
				OnNewLeader: func(identity string) {
					cm.log.Infof("New leader elected: %s", identity)
				},
			},
		})
		if err != nil {
			errCh <- err
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-cm.stopCh
			cancel()
		}()
		le.Run(ctx)
	}()

	// Wait briefly to see if leader election fails immediately
	select {
	case err := <-errCh:
		cm.log.Warnf("Leader election failed, falling back to local mode: %v", err)
		return cm.StartCron()
	case <-time.After(5 * time.Second):
	}

	return nil
}

// Stop gracefully stops the cron manager
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		// Wait for jobs to finish
		<-ctx.Done()
	}
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron) error {
	cronConfig := cm.cfg.CronConfig

	if cronConfig.CronScheduleHeartbeat != "" {
		podName := cronConfig.PodName
		id, err := c.AddFunc(cronConfig.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Infof("Cron heartbeat from pod: %s", podName)
		})
		if err != nil {
			return fmt.Errorf("could not add heartbeat cron job: %w", err)
		}
		cm.jobIDs[JobHeartbeat] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cronConfig.CronScheduleHeartbeat)
	}

	if cm.populator != nil {
		schedule := PopulateSchedule(cm.cfg.StatsConfig.PopulateInterval)
		id, err := c.AddFunc(schedule, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupStats].Lock()
			defer jobLocks.locks[GroupStats].Unlock()
			cm.populateStats()
		})
		if err != nil {
			return fmt.Errorf("could not add stats populate cron job: %w", err)
		}
		cm.jobIDs[JobStatsPopulate] = id
		cm.log.Infof("Registered stats populate job with schedule: %s", schedule)
	}

	return nil
}

func PopulateSchedule(interval time.Duration) string {
	return "@every " + interval.String()
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() error {
	cm.log.Info("Starting cron manager")
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	if err := cm.registerJobs(c); err != nil {
		return err
	}
	c.Start()
	cm.cron = c

	// first snapshot right away so the gateway does not start cold
	if cm.populator != nil {
		go func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupStats].Lock()
			defer jobLocks.locks[GroupStats].Unlock()
			cm.populateStats()
		}()
	}
	return nil
}

func (cm *CronManager) populateStats() {
	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.populateStats")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	if err := cm.populator.Populate(ctx); err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to populate stats cache: %v", err)
	}
}
