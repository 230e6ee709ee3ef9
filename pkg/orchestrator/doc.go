/*
Package orchestrator runs the configure and status workflows for local
clusters and records their outcome in a deployment.Store.

Every entry point clones the cluster it is given before doing any work, so a
caller editing its cluster value afterwards never retargets an operation in
flight. Busy flags are cleared in deferred finalizers and are therefore reset
on every return path.

Backend commands that finish later (probes, dashboards, admin access) report
through an events.Broker; Listen binds each push channel to one store action.
*/
package orchestrator
