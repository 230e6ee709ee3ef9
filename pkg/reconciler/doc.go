/*
Package reconciler keeps deployment status fresh by re-polling every
registered cluster on a fixed interval.

Each cycle lists the clusters from the registry and calls
FetchDeploymentStatus for each one concurrently. A cluster whose deployment
is configuring or already fetching is skipped for that cycle, so the re-poll
never stacks a second fetch on top of one in flight.

	r := reconciler.NewReconciler(orch, store, 30*time.Second)
	r.Start(ctx)
	defer r.Stop()
*/
package reconciler
