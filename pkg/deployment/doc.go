/*
Package deployment holds the per-cluster deployment state and the single
serialized path through which it changes.

# Architecture

Every DeploymentState lives inside a Store. The Store is an actor: one
goroutine receives actions from an unbuffered mailbox and applies them with
Reduce, so transitions are totally ordered even when the producers (status
fetches, configure runs, push events from background probes) run
concurrently.

	producer ─┐
	producer ─┼─▶ Dispatch ─▶ mailbox ─▶ Reduce(prev, action) ─▶ next State
	producer ─┘                                   │
	                                              └─▶ watchers

Reduce is a pure function over an immutable State. A transition copies the
cluster map and the one deployment it touches; every other cluster keeps its
pointer, which makes cross-cluster isolation observable with pointer
equality.

# Merge Strategies

SetDeploymentApps replaces the three status lists wholesale, creating the
container when the cluster has none yet, and marks the deployment as
fetching. StatusReceived replaces one entry, matched by id, in the list
selected by its kind. A point update for an id the list does not contain is
dropped; entries only appear through a bulk replace.

# Usage

	store := deployment.NewStore()
	store.Start()
	defer store.Stop()

	store.Dispatch(deployment.SetDeploymentApps{ClusterID: id, Bundle: bundle})
	store.Dispatch(deployment.StatusReceived{
		ClusterID: id,
		Kind:      types.KindSystem,
		Entry:     types.StatusEntry{ID: "node", Status: types.StatusConfigured},
	})

	d, ok := store.Get(id)

Readers always receive copies. Mutating a value returned by Get or Snapshot
never reaches the store.
*/
package deployment
