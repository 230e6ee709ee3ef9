package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/cuemby/launcher/pkg/backend"
	"github.com/cuemby/launcher/pkg/deployment"
	"github.com/cuemby/launcher/pkg/events"
	"github.com/cuemby/launcher/pkg/git"
	"github.com/cuemby/launcher/pkg/orchestrator"
	"github.com/cuemby/launcher/pkg/security"
	"github.com/cuemby/launcher/pkg/storage"
	"github.com/cuemby/launcher/pkg/types"
)

// notificationHistory bounds the notifications kept for the API
const notificationHistory = 50

// app is the wired set of components one command runs against
type app struct {
	registry    *storage.BoltStore
	credentials *security.SudoCredentials
	store       *deployment.Store
	broker      *events.Broker
	backend     *backend.Local
	notes       *orchestrator.RecordingNotifier
	orch        *orchestrator.Orchestrator

	listenCancel context.CancelFunc
	listenDone   chan struct{}
}

// openRegistry opens the registry and the credential source only
func openRegistry() (*storage.BoltStore, *security.SudoCredentials, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	registry, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}

	secrets, err := security.NewSecretsManagerFromKeyFile(filepath.Join(cfg.DataDir, security.KeyFile))
	if err != nil {
		registry.Close()
		return nil, nil, err
	}
	return registry, security.NewSudoCredentials(registry, secrets), nil
}

// newApp wires the full orchestration stack
func newApp() (*app, error) {
	registry, credentials, err := openRegistry()
	if err != nil {
		return nil, err
	}

	a := &app{
		registry:    registry,
		credentials: credentials,
		store:       deployment.NewStore(),
		broker:      events.NewBroker(),
		notes:       orchestrator.NewRecordingNotifier(notificationHistory, orchestrator.NewLogNotifier()),
		listenDone:  make(chan struct{}),
	}
	a.store.Start()
	a.broker.Start()

	a.backend, err = backend.NewLocal(backend.Config{
		Events: a.broker,
		Probe:  cfg.HealthConfig(),
	})
	if err != nil {
		a.close()
		return nil, err
	}

	a.orch, err = orchestrator.New(orchestrator.Config{
		Store:             a.store,
		Backend:           a.backend,
		Git:               git.NewClient(),
		Credentials:       credentials,
		Notifier:          a.notes,
		RequiresPrivilege: requiresPrivilege(),
		SettleDelay:       cfg.Deployment.SettleDelay,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	var ctx context.Context
	ctx, a.listenCancel = context.WithCancel(context.Background())
	go func() {
		defer close(a.listenDone)
		a.orch.Listen(ctx, a.broker)
	}()

	return a, nil
}

// requiresPrivilege reports whether probes and configure need sudo on this
// host. macOS runs Minikube as the user.
func requiresPrivilege() bool {
	return runtime.GOOS == "linux"
}

func (a *app) close() {
	if a.orch != nil {
		a.orch.Close()
	}
	if a.backend != nil {
		a.backend.Close()
	}
	if a.listenCancel != nil {
		a.listenCancel()
		<-a.listenDone
	}
	a.broker.Stop()
	a.store.Stop()
	a.registry.Close()
}

// lookupCluster resolves a cluster by id or by name
func lookupCluster(registry storage.Store, ref string) (*types.Cluster, error) {
	if c, err := registry.GetCluster(ref); err == nil {
		return c, nil
	}
	return registry.GetClusterByName(ref)
}

// waitSettled blocks until the deployment of clusterID has no fetch in
// flight and no entry still checking, or ctx ends
func (a *app) waitSettled(ctx context.Context, clusterID string) *types.DeploymentState {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		d, ok := a.orch.Deployment(clusterID)
		if ok && settled(d) {
			return d
		}
		select {
		case <-ctx.Done():
			d, _ = a.orch.Deployment(clusterID)
			return d
		case <-ticker.C:
		}
	}
}

func settled(d *types.DeploymentState) bool {
	if d.Busy() {
		return false
	}
	for _, kind := range types.StatusKinds {
		for _, e := range *d.StatusList(kind) {
			if e.Status == types.StatusChecking {
				return false
			}
		}
	}
	return true
}
