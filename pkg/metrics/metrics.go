package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// State container metrics
	TrackedClusters = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "launcher_tracked_clusters",
			Help: "Number of clusters with a deployment state container",
		},
	)

	ActionsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launcher_actions_dispatched_total",
			Help: "Total number of state actions dispatched by action type",
		},
		[]string{"action"},
	)

	ActionsIgnored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launcher_actions_ignored_total",
			Help: "Actions that left state unchanged, e.g. point updates for unknown ids",
		},
		[]string{"action"},
	)

	// Orchestrator metrics
	StatusFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launcher_status_fetches_total",
			Help: "Total number of deployment status fetches by result",
		},
		[]string{"result"},
	)

	StatusFetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "launcher_status_fetch_duration_seconds",
			Help:    "Time taken by a deployment status fetch in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ConfigureTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launcher_configure_total",
			Help: "Total number of cluster configuration runs by result",
		},
		[]string{"result"},
	)

	ConfigureDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "launcher_configure_duration_seconds",
			Help:    "Time taken to configure a cluster in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	// Probe metrics
	ProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launcher_probes_total",
			Help: "Total number of status probes by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	ProbeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "launcher_probe_duration_seconds",
			Help:    "Status probe duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// Event metrics
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launcher_events_published_total",
			Help: "Total number of push events published by channel",
		},
		[]string{"channel"},
	)

	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "launcher_events_dropped_total",
			Help: "Push events dropped because a subscriber buffer was full",
		},
	)

	// Snapshot gauges, refreshed by the Collector
	RegisteredClusters = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "launcher_registered_clusters",
			Help: "Number of clusters in the local registry",
		},
	)

	DeploymentsBusy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "launcher_deployments_busy",
			Help: "Number of deployments with a configure or fetch in flight",
		},
		[]string{"operation"},
	)

	StatusEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "launcher_status_entries",
			Help: "Status entries across all deployments by kind and status",
		},
		[]string{"kind", "status"},
	)

	// Reconciler metrics
	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "launcher_reconciliation_cycles_total",
			Help: "Total number of periodic re-poll cycles",
		},
	)

	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "launcher_reconciliation_duration_seconds",
			Help:    "Time taken by a re-poll cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "launcher_reconciliation_skipped_total",
			Help: "Clusters skipped by the re-poll because they were busy",
		},
	)

	// Workload metrics
	WorkloadQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launcher_workload_queries_total",
			Help: "Total number of workload queries by operation and result",
		},
		[]string{"operation", "result"},
	)
)

func init() {
	prometheus.MustRegister(TrackedClusters)
	prometheus.MustRegister(ActionsDispatched)
	prometheus.MustRegister(ActionsIgnored)
	prometheus.MustRegister(StatusFetchesTotal)
	prometheus.MustRegister(StatusFetchDuration)
	prometheus.MustRegister(ConfigureTotal)
	prometheus.MustRegister(ConfigureDuration)
	prometheus.MustRegister(ProbesTotal)
	prometheus.MustRegister(ProbeDuration)
	prometheus.MustRegister(EventsPublished)
	prometheus.MustRegister(EventsDropped)
	prometheus.MustRegister(WorkloadQueriesTotal)
	prometheus.MustRegister(RegisteredClusters)
	prometheus.MustRegister(DeploymentsBusy)
	prometheus.MustRegister(StatusEntries)
	prometheus.MustRegister(ReconciliationCyclesTotal)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReconciliationSkipped)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Result label values shared by the counters above
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// ResultLabel maps an error onto a result label value
func ResultLabel(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
