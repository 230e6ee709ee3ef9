package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/launcher/pkg/log"
	"github.com/cuemby/launcher/pkg/metrics"
	"github.com/cuemby/launcher/pkg/types"
	"github.com/rs/zerolog"
)

// DefaultInterval is the re-poll period when none is configured
const DefaultInterval = 30 * time.Second

// Fetcher refreshes the deployment status of one cluster
type Fetcher interface {
	FetchDeploymentStatus(ctx context.Context, cluster *types.Cluster) error
	Deployment(clusterID string) (*types.DeploymentState, bool)
}

// ClusterLister lists the clusters to keep fresh
type ClusterLister interface {
	ListClusters() ([]*types.Cluster, error)
}

// Reconciler periodically re-polls the status of every registered cluster
type Reconciler struct {
	fetcher  Fetcher
	clusters ClusterLister
	interval time.Duration
	logger   zerolog.Logger

	mu     sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewReconciler creates a new reconciler. A non-positive interval uses DefaultInterval.
func NewReconciler(fetcher Fetcher, clusters ClusterLister, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reconciler{
		fetcher:  fetcher,
		clusters: clusters,
		interval: interval,
		logger:   log.WithComponent("reconciler"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the reconciliation loop
func (r *Reconciler) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop stops the loop and waits for the running cycle to finish
func (r *Reconciler) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *Reconciler) run(ctx context.Context) {
	defer close(r.doneCh)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Reconcile(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Reconcile runs one re-poll cycle. Clusters with a configure or fetch in
// flight are skipped; the others are fetched concurrently.
func (r *Reconciler) Reconcile(ctx context.Context) {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	clusters, err := r.clusters.ListClusters()
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to list clusters")
		return
	}

	var wg sync.WaitGroup
	for _, c := range clusters {
		if d, ok := r.fetcher.Deployment(c.ID); ok && d.Busy() {
			r.logger.Debug().Str("cluster_id", c.ID).Msg("Cluster busy, skipping re-poll")
			metrics.ReconciliationSkipped.Inc()
			continue
		}

		wg.Add(1)
		go func(c *types.Cluster) {
			defer wg.Done()
			if err := r.fetcher.FetchDeploymentStatus(ctx, c); err != nil {
				r.logger.Warn().Err(err).Str("cluster_id", c.ID).Msg("Re-poll failed")
			}
		}(c)
	}
	wg.Wait()
}
