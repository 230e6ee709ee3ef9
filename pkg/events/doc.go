/*
Package events provides the in-memory broker that carries push events from
long-running background work to the orchestrator.

Background probes, dashboard port-forwards and admin access checks finish on
their own schedule. Each result is published on a named Channel:

	cluster.system-status         one StatusEntry, system list
	cluster.app-status            one StatusEntry, app list
	cluster.engine-status         one StatusEntry, engine list
	cluster.k8-dashboard(.error)  dashboard URL or failure
	shell.ipfs-dashboard(.error)  IPFS dashboard URL or failure
	engine.admin-access(.error)   admin panel ready or failure

The broker buffers up to 100 pending events. Publish blocks only while that
buffer is full; broadcast never blocks.

Two kinds of subscription exist. Subscribe gives a channel with room for 50
events; an event that does not fit is dropped and counted in
launcher_events_dropped_total. The API event stream uses it, so a stalled
browser cannot hold up the broker. SubscribeQueued keeps every event in an
unbounded queue until it is read. The orchestrator listens this way, so no
point update is lost and no entry stays Checking.
*/
package events
