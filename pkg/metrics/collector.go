package metrics

import (
	"time"

	"github.com/cuemby/launcher/pkg/types"
)

// DefaultCollectInterval is how often the Collector samples state
const DefaultCollectInterval = 15 * time.Second

// StateSource exposes the aggregated deployment state
type StateSource interface {
	Snapshot() map[string]*types.DeploymentState
}

// ClusterSource lists the registered clusters
type ClusterSource interface {
	ListClusters() ([]*types.Cluster, error)
}

// Collector periodically turns deployment state into gauges
type Collector struct {
	state    StateSource
	clusters ClusterSource
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector. clusters may be nil.
func NewCollector(state StateSource, clusters ClusterSource) *Collector {
	return &Collector{
		state:    state,
		clusters: clusters,
		interval: DefaultCollectInterval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectDeploymentMetrics()
	c.collectRegistryMetrics()
}

func (c *Collector) collectDeploymentMetrics() {
	snapshot := c.state.Snapshot()

	var configuring, fetching int
	counts := make(map[types.StatusKind]map[types.Status]int)

	for _, d := range snapshot {
		if d.IsConfiguring {
			configuring++
		}
		if d.IsFetchingStatuses {
			fetching++
		}
		for _, kind := range types.StatusKinds {
			for _, e := range *d.StatusList(kind) {
				if counts[kind] == nil {
					counts[kind] = make(map[types.Status]int)
				}
				counts[kind][e.Status]++
			}
		}
	}

	DeploymentsBusy.WithLabelValues("configuring").Set(float64(configuring))
	DeploymentsBusy.WithLabelValues("fetching").Set(float64(fetching))

	// Reset so statuses that disappeared stop reporting
	StatusEntries.Reset()
	for kind, statuses := range counts {
		for status, count := range statuses {
			StatusEntries.WithLabelValues(string(kind), string(status)).Set(float64(count))
		}
	}
}

func (c *Collector) collectRegistryMetrics() {
	if c.clusters == nil {
		return
	}
	clusters, err := c.clusters.ListClusters()
	if err != nil {
		return
	}
	RegisteredClusters.Set(float64(len(clusters)))
}
