/*
Package health runs the probes that decide the status of each dependency,
app and engine entry of a cluster.

# Checkers

Every probe implements Checker:

	┌───────────────────────────────────────────────┐
	│               Checker Interface               │
	│  • Check(ctx) Result                          │
	│  • Type() CheckType                           │
	└──────┬──────────┬──────────┬──────────┬───────┘
	       ▼          ▼          ▼          ▼
	   ExecChecker TCPChecker HTTPChecker GuardedChecker
	   shell script port open  URL answers guard, then probe

ExecChecker runs a script through bash, or through sudo -S with the password
written to stdin. Exit code 0 is healthy. The script's stderr becomes the
result message when it fails.

# Runtime Guard

Most app probes talk to the cluster. When Minikube or MicroK8s is stopped,
each of them would fail with its own low-level error. A GuardedChecker asks
its Guard first and, when the runtime is down, returns one recognizable
result instead:

	Result{Ran: false, RuntimeNotConfigured: true, ExitCode: 1,
	       Message: "Minikube not configured"}

Result.Ran separates a probe that never ran from one that ran and failed.
Entry maps the cases onto statuses:

	healthy                  → Configured
	runtime not configured   → NotConfigured
	ran and failed           → NotConfigured
	never ran                → Error

One status pass wraps the guard in a OnceGuard so the runtime is queried a
single time no matter how many probes depend on it.

# Catalog

Catalog returns the declared checks of a cluster type in display order.
Ripple stack checks are dropped by Select unless the cluster enables the
stack. DeclaredBundle lays definitions out as the three status lists.
*/
package health
