/*
Package metrics provides Prometheus metrics and component health for the launcher.

All collectors are package-level variables registered with the default
registry at init, so any package can record against them without wiring:

	timer := metrics.NewTimer()
	err := backend.ConfigureCluster(ctx, cluster, password, flags)
	timer.ObserveDuration(metrics.ConfigureDuration)
	metrics.ConfigureTotal.WithLabelValues(metrics.ResultLabel(err)).Inc()

# Metric Families

	launcher_actions_dispatched_total      state actions by action name
	launcher_actions_ignored_total         actions that changed nothing
	launcher_tracked_clusters              deployment containers in the store
	launcher_status_fetches_total          status fetches by result
	launcher_configure_total               configure runs by result
	launcher_probes_total                  probes by kind and outcome
	launcher_events_published_total        push events by channel
	launcher_events_dropped_total          events lost to slow subscribers
	launcher_workload_queries_total        Kubernetes queries by operation
	launcher_status_entries                entries by kind and status
	launcher_reconciliation_cycles_total   periodic re-poll cycles

The gauges under launcher_status_entries, launcher_deployments_busy and
launcher_registered_clusters are sampled by a Collector from the deployment
store snapshot every 15 seconds.

# Health

UpdateComponent records the health of a named component (store, broker,
registry). HealthHandler reports liveness, ReadyHandler returns 503 until
every registered component is healthy. Handler exposes /metrics.
*/
package metrics
