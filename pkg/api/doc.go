/*
Package api implements the launcher's read-only HTTP surface.

`launcher serve` exposes the aggregated deployment state so dashboards and
scripts can observe clusters without driving them. Every write method is
rejected with 405; configuration always goes through the CLI.

# Routes

	GET /health                      liveness and component health
	GET /ready                       503 until store, events and registry are ready
	GET /metrics                     Prometheus exposition
	GET /v1/clusters                 registered clusters
	GET /v1/deployments              deployment state of every tracked cluster
	GET /v1/deployments/{id}         deployment state of one cluster
	GET /v1/clusters/{id}/workloads  pods per workload role, queried live
	GET /v1/notifications            recent user notifications
	GET /v1/events[?cluster=id]      websocket stream of push events

Routing uses gorilla/mux; the event stream uses gorilla/websocket and only
accepts browser origins on loopback hosts.

# Usage

	srv, err := api.NewServer(api.Config{
		Deployments: orch,
		Registry:    store,
		Broker:      broker,
		Workloads: func(c *types.Cluster) (api.WorkloadLister, error) {
			return workloads.NewClientForCluster(c, kubeconfig)
		},
	})
	go srv.Start("127.0.0.1:9440")
	defer srv.Shutdown(ctx)
*/
package api
