package cron

import (
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/dnsscience/telemetry/config"
	"github.com/dnsscience/telemetry/internal/logger"
)

// NewKubernetesClient returns the in-cluster client used for leader
// election, or nil when running locally or outside a cluster.
func NewKubernetesClient(cfg *config.CronConfig, log logger.Logger) kubernetes.Interface {
	if cfg.LocalDev {
		return nil
	}
	restConfig, err := rest.InClusterConfig()
	if err != nil {
		log.Warnf("Not running in cluster, cron leader election disabled: %v", err)
		return nil
	}
	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		log.Warnf("Could not build kubernetes client: %v", err)
		return nil
	}
	return client
}
