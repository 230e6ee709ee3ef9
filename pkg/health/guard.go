package health

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/launcher/pkg/types"
)

// Guard decides whether the cluster runtime is up before a dependent probe runs
type Guard interface {
	Running(ctx context.Context) bool
	// Message is reported for every probe the guard stops
	Message() string
}

// RuntimeGuard runs a status script for the cluster runtime and looks for
// markers of a stopped runtime in its output
type RuntimeGuard struct {
	Name       string
	Script     string
	NotRunning []string
	Timeout    time.Duration
}

// GuardFor returns the runtime guard of a cluster type
func GuardFor(t types.ClusterType) *RuntimeGuard {
	if t == types.ClusterTypeMicroK8s {
		return &RuntimeGuard{
			Name:       "MicroK8s",
			Script:     "microk8s status",
			NotRunning: []string{"microk8s is not running"},
			Timeout:    30 * time.Second,
		}
	}
	return &RuntimeGuard{
		Name:       "Minikube",
		Script:     "minikube status --output json",
		NotRunning: []string{"minikube start", "Nonexistent", "Stopped"},
		Timeout:    30 * time.Second,
	}
}

// Running implements Guard. A status command that cannot be started counts
// as a stopped runtime.
func (g *RuntimeGuard) Running(ctx context.Context) bool {
	result := NewExecChecker(g.Script).WithTimeout(g.Timeout).Check(ctx)
	if !result.Ran {
		return false
	}
	combined := result.Output + "\n" + result.Message
	for _, marker := range g.NotRunning {
		if strings.Contains(combined, marker) {
			return false
		}
	}
	return true
}

// Message implements Guard
func (g *RuntimeGuard) Message() string {
	return g.Name + " not configured"
}

// OnceGuard evaluates the wrapped guard at most once. One status pass shares
// a single OnceGuard so the runtime is not queried for every probe.
type OnceGuard struct {
	guard   Guard
	once    sync.Once
	running bool
}

// NewOnceGuard wraps g
func NewOnceGuard(g Guard) *OnceGuard {
	return &OnceGuard{guard: g}
}

// Running implements Guard
func (o *OnceGuard) Running(ctx context.Context) bool {
	o.once.Do(func() {
		o.running = o.guard.Running(ctx)
	})
	return o.running
}

// Message implements Guard
func (o *OnceGuard) Message() string {
	return o.guard.Message()
}

// GuardedChecker runs Probe only when Guard reports the runtime running
type GuardedChecker struct {
	Guard Guard
	Probe Checker
}

// Check performs the guarded check. A stopped runtime yields a result with
// RuntimeNotConfigured set, exit code 1 and Ran cleared.
func (g *GuardedChecker) Check(ctx context.Context) Result {
	start := time.Now()
	if !g.Guard.Running(ctx) {
		return Result{
			Healthy:              false,
			Ran:                  false,
			RuntimeNotConfigured: true,
			ExitCode:             1,
			Message:              g.Guard.Message(),
			CheckedAt:            start,
			Duration:             time.Since(start),
		}
	}
	return g.Probe.Check(ctx)
}

// Type returns the health check type
func (g *GuardedChecker) Type() CheckType {
	return CheckTypeGuarded
}
