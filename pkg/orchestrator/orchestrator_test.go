package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/launcher/pkg/deployment"
	"github.com/cuemby/launcher/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu sync.Mutex

	configureErr error
	statusErr    error
	checkErr     error
	dashboardErr error
	adminErr     error
	bundle       *types.StatusBundle

	configureCalls int
	statusCalls    int
	checked        []*types.StatusBundle
	passwords      []string
	flags          map[string]string
}

func (f *fakeBackend) ConfigureCluster(_ context.Context, _ *types.Cluster, password string, flags map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configureCalls++
	f.passwords = append(f.passwords, password)
	f.flags = flags
	return f.configureErr
}

func (f *fakeBackend) GetClusterStatus(_ context.Context, _ *types.Cluster, password string) (*types.StatusBundle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	f.passwords = append(f.passwords, password)
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.bundle.Clone(), nil
}

func (f *fakeBackend) CheckClusterStatus(_ context.Context, _ *types.Cluster, bundle *types.StatusBundle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, bundle)
	return f.checkErr
}

func (f *fakeBackend) ConfigureK8Dashboard(context.Context, *types.Cluster) error   { return f.dashboardErr }
func (f *fakeBackend) ConfigureIPFSDashboard(context.Context, *types.Cluster) error { return f.dashboardErr }
func (f *fakeBackend) EnsureAdminAccess(context.Context, *types.Cluster) error      { return f.adminErr }

func (f *fakeBackend) statusCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

type fakeGit struct {
	statuses map[string]*types.GitStatus
	block    chan struct{}
}

func (f *fakeGit) Status(ctx context.Context, path string) (*types.GitStatus, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s, ok := f.statuses[path]
	if !ok {
		return nil, errors.New("repository does not exist")
	}
	return s, nil
}

type fakeCredentials struct {
	password string
	err      error
}

func (f fakeCredentials) DecryptedSudoPassword(context.Context) (string, error) {
	return f.password, f.err
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []Notification
}

func (f *fakeNotifier) Notify(n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, n)
}

func (f *fakeNotifier) all() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notification(nil), f.notes...)
}

type harness struct {
	orch     *Orchestrator
	store    *deployment.Store
	backend  *fakeBackend
	git      *fakeGit
	notifier *fakeNotifier
	cluster  *types.Cluster
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()

	store := deployment.NewStore()
	store.Start()

	h := &harness{
		store: store,
		backend: &fakeBackend{bundle: &types.StatusBundle{
			SystemStatus: []types.StatusEntry{{ID: "node", Status: types.StatusChecking}},
			AppStatus:    []types.StatusEntry{{ID: "redis", Status: types.StatusChecking}},
			EngineStatus: []types.StatusEntry{{ID: "engine", Status: types.StatusChecking}},
		}},
		git: &fakeGit{statuses: map[string]*types.GitStatus{
			"/src/engine": {Branch: "dev", Commit: "abc123"},
		}},
		notifier: &fakeNotifier{},
		cluster: &types.Cluster{
			ID:   "C1",
			Name: "local",
			Type: types.ClusterTypeMinikube,
			Configs: map[string]string{
				string(types.RepoEngine): "/src/engine",
				string(types.RepoOps):    "/src/missing",
			},
		},
	}

	cfg := Config{
		Store:       store,
		Backend:     h.backend,
		Git:         h.git,
		Credentials: fakeCredentials{password: "secret"},
		Notifier:    h.notifier,
		SettleDelay: time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	orch, err := New(cfg)
	require.NoError(t, err)
	h.orch = orch

	t.Cleanup(func() {
		orch.Close()
		store.Stop()
	})
	return h
}

func (h *harness) deployment(t *testing.T) *types.DeploymentState {
	t.Helper()
	d, ok := h.orch.Deployment(h.cluster.ID)
	require.True(t, ok)
	return d
}

func TestNewValidatesConfig(t *testing.T) {
	store := deployment.NewStore()

	_, err := New(Config{Backend: &fakeBackend{}, Git: &fakeGit{}})
	assert.Error(t, err)

	_, err = New(Config{Store: store, Git: &fakeGit{}})
	assert.Error(t, err)

	_, err = New(Config{Store: store, Backend: &fakeBackend{}, Git: &fakeGit{}, RequiresPrivilege: true})
	assert.Error(t, err)

	orch, err := New(Config{Store: store, Backend: &fakeBackend{}, Git: &fakeGit{}})
	require.NoError(t, err)
	assert.Equal(t, DefaultSettleDelay, orch.settleDelay)
	assert.IsType(t, &LogNotifier{}, orch.notifier)
}

func TestFetchDeploymentStatus(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.orch.FetchDeploymentStatus(context.Background(), h.cluster))
	h.orch.Wait()

	d := h.deployment(t)
	assert.False(t, d.IsFetchingStatuses)
	assert.True(t, d.IsFirstFetched)
	assert.Equal(t, h.backend.bundle.SystemStatus, d.SystemStatus)
	assert.Equal(t, h.backend.bundle.AppStatus, d.AppStatus)
	assert.Equal(t, h.backend.bundle.EngineStatus, d.EngineStatus)
	assert.Len(t, h.backend.checked, 1)

	engine := d.GitStatus[types.RepoEngine]
	require.NotNil(t, engine.Data)
	assert.Equal(t, "dev", engine.Data.Branch)
	assert.False(t, engine.Loading)

	ops := d.GitStatus[types.RepoOps]
	assert.Nil(t, ops.Data)
	assert.False(t, ops.Loading)
	assert.Equal(t, "repository does not exist", ops.Error)
	assert.Empty(t, h.notifier.all())
}

func TestFetchDeploymentStatusBackendFailure(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.orch.FetchDeploymentStatus(context.Background(), h.cluster))
	h.orch.Wait()
	before := h.deployment(t)

	h.backend.statusErr = errors.New("exit status 1")
	err := h.orch.FetchDeploymentStatus(context.Background(), h.cluster)
	require.Error(t, err)
	h.orch.Wait()

	d := h.deployment(t)
	assert.False(t, d.IsFetchingStatuses)
	assert.True(t, d.IsFirstFetched)
	assert.Equal(t, before.SystemStatus, d.SystemStatus)
	assert.Equal(t, before.AppStatus, d.AppStatus)
	assert.Equal(t, before.EngineStatus, d.EngineStatus)
	// no verification after a failed fetch
	assert.Len(t, h.backend.checked, 1)

	notes := h.notifier.all()
	require.Len(t, notes, 1)
	assert.Equal(t, SeverityError, notes[0].Severity)
	assert.Equal(t, "C1", notes[0].ClusterID)
	assert.Contains(t, notes[0].Message, "local")
}

func TestFetchDeploymentStatusCheckFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.checkErr = errors.New("probe runner unavailable")

	err := h.orch.FetchDeploymentStatus(context.Background(), h.cluster)
	require.Error(t, err)
	h.orch.Wait()

	d := h.deployment(t)
	assert.False(t, d.IsFetchingStatuses)
	assert.True(t, d.IsFirstFetched)
	assert.Len(t, d.SystemStatus, 1)
	assert.Len(t, h.notifier.all(), 1)
}

func TestFetchDeploymentStatusPrivilege(t *testing.T) {
	t.Run("password is passed to the backend", func(t *testing.T) {
		h := newHarness(t, func(c *Config) { c.RequiresPrivilege = true })

		require.NoError(t, h.orch.FetchDeploymentStatus(context.Background(), h.cluster))
		h.orch.Wait()
		assert.Equal(t, []string{"secret"}, h.backend.passwords)
	})

	t.Run("decrypt failure gates the backend", func(t *testing.T) {
		h := newHarness(t, func(c *Config) {
			c.RequiresPrivilege = true
			c.Credentials = fakeCredentials{err: errors.New("no password stored")}
		})
		h.orch.RegisterCluster(h.cluster.ID)

		err := h.orch.FetchDeploymentStatus(context.Background(), h.cluster)
		assert.ErrorIs(t, err, ErrPrivilegeRequired)
		h.orch.Wait()

		assert.Equal(t, 0, h.backend.statusCallCount())
		d := h.deployment(t)
		assert.False(t, d.IsFetchingStatuses)
		assert.True(t, d.IsFirstFetched)

		notes := h.notifier.all()
		require.Len(t, notes, 1)
		assert.Equal(t, SeverityError, notes[0].Severity)
	})

	t.Run("empty password gates the backend", func(t *testing.T) {
		h := newHarness(t, func(c *Config) {
			c.RequiresPrivilege = true
			c.Credentials = fakeCredentials{}
		})

		err := h.orch.FetchDeploymentStatus(context.Background(), h.cluster)
		assert.ErrorIs(t, err, ErrPrivilegeRequired)
		assert.Equal(t, 0, h.backend.statusCallCount())
	})
}

func TestGetDeploymentStatusFailureKeepsCache(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.orch.GetDeploymentStatus(context.Background(), h.cluster, "")
	require.NoError(t, err)

	h.backend.statusErr = errors.New("boom")
	bundle, err := h.orch.GetDeploymentStatus(context.Background(), h.cluster, "")
	require.Error(t, err)
	require.NotNil(t, bundle)
	assert.Equal(t, 0, bundle.Len())
	assert.Len(t, h.deployment(t).SystemStatus, 1)
}

func TestProcessConfigurations(t *testing.T) {
	h := newHarness(t, nil)
	flags := map[string]string{"ENGINE_BUILD": "true"}

	require.NoError(t, h.orch.ProcessConfigurations(context.Background(), h.cluster, "secret", flags))
	h.orch.Wait()

	assert.Equal(t, 1, h.backend.configureCalls)
	assert.Equal(t, flags, h.backend.flags)
	assert.Equal(t, 1, h.backend.statusCallCount())
	assert.Empty(t, h.notifier.all())

	d := h.deployment(t)
	assert.False(t, d.IsConfiguring)
	assert.False(t, d.IsFetchingStatuses)
	assert.True(t, d.IsFirstFetched)
}

func TestProcessConfigurationsBackendFailure(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.orch.FetchDeploymentStatus(context.Background(), h.cluster))
	h.orch.Wait()
	before := h.deployment(t)

	h.backend.configureErr = errors.New("exit status 2")
	err := h.orch.ProcessConfigurations(context.Background(), h.cluster, "secret", nil)
	require.Error(t, err)
	h.orch.Wait()

	d := h.deployment(t)
	assert.False(t, d.IsConfiguring)
	assert.Equal(t, before.SystemStatus, d.SystemStatus)
	assert.Equal(t, before.AppStatus, d.AppStatus)
	assert.Equal(t, before.EngineStatus, d.EngineStatus)

	notes := h.notifier.all()
	require.Len(t, notes, 1)
	assert.Equal(t, SeverityError, notes[0].Severity)
	assert.Equal(t, "C1", notes[0].ClusterID)
	// no follow-up fetch
	assert.Equal(t, 1, h.backend.statusCallCount())
}

func TestProcessConfigurationsRequiresPassword(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.RequiresPrivilege = true })
	h.orch.RegisterCluster(h.cluster.ID)

	err := h.orch.ProcessConfigurations(context.Background(), h.cluster, "", nil)
	assert.ErrorIs(t, err, ErrPrivilegeRequired)
	assert.Equal(t, 0, h.backend.configureCalls)
	assert.Len(t, h.notifier.all(), 1)
	assert.False(t, h.deployment(t).IsConfiguring)
}

func TestProcessConfigurationsCancelledDuringSettle(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.SettleDelay = time.Hour })
	h.orch.RegisterCluster(h.cluster.ID)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := h.orch.ProcessConfigurations(ctx, h.cluster, "secret", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, h.deployment(t).IsConfiguring)
	assert.Equal(t, 0, h.backend.statusCallCount())
}

func TestClusterIsClonedAtCallBoundary(t *testing.T) {
	h := newHarness(t, nil)
	h.git.block = make(chan struct{})
	h.orch.RegisterCluster(h.cluster.ID)

	done := make(chan error, 1)
	go func() {
		done <- h.orch.FetchGitStatus(context.Background(), h.cluster, types.RepoEngine)
	}()

	// retarget the caller's cluster while the fetch is in flight
	require.Eventually(t, func() bool {
		return h.deployment(t).GitStatus[types.RepoEngine].Loading
	}, time.Second, 5*time.Millisecond)
	h.cluster.Configs[string(types.RepoEngine)] = "/src/missing"
	close(h.git.block)

	require.NoError(t, <-done)
	assert.Equal(t, "dev", h.deployment(t).GitStatus[types.RepoEngine].Data.Branch)
}

func TestFetchGitStatusKeepsStaleDataWhileLoading(t *testing.T) {
	h := newHarness(t, nil)
	h.orch.RegisterCluster(h.cluster.ID)
	require.NoError(t, h.orch.FetchGitStatus(context.Background(), h.cluster, types.RepoEngine))

	h.git.block = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- h.orch.FetchGitStatus(context.Background(), h.cluster, types.RepoEngine)
	}()

	require.Eventually(t, func() bool {
		return h.deployment(t).GitStatus[types.RepoEngine].Loading
	}, time.Second, 5*time.Millisecond)
	item := h.deployment(t).GitStatus[types.RepoEngine]
	require.NotNil(t, item.Data)
	assert.Equal(t, "dev", item.Data.Branch)

	close(h.git.block)
	require.NoError(t, <-done)
}

func TestFetchGitStatusesIsolatesFailures(t *testing.T) {
	h := newHarness(t, nil)
	h.orch.RegisterCluster(h.cluster.ID)
	delete(h.cluster.Configs, string(types.RepoOps))

	err := h.orch.FetchGitStatuses(context.Background(), h.cluster)
	assert.ErrorIs(t, err, ErrRepoPathNotSet)

	d := h.deployment(t)
	assert.Equal(t, "abc123", d.GitStatus[types.RepoEngine].Data.Commit)
	assert.Empty(t, d.GitStatus[types.RepoEngine].Error)
	assert.Equal(t, ErrRepoPathNotSet.Error(), d.GitStatus[types.RepoOps].Error)
}

func TestDashboardItems(t *testing.T) {
	h := newHarness(t, nil)
	h.orch.RegisterCluster(h.cluster.ID)
	ctx := context.Background()

	// seed previous links, as delivered by push events
	h.store.Dispatch(deployment.SetK8Dashboard{ClusterID: "C1", Item: types.NewFetchable("http://k8", false, "")})
	h.store.Dispatch(deployment.SetIPFSDashboard{ClusterID: "C1", Item: types.NewFetchable("http://ipfs", false, "")})
	h.store.Dispatch(deployment.SetAdminPanel{ClusterID: "C1", Item: types.NewFetchable(true, false, "")})

	require.NoError(t, h.orch.FetchK8Dashboard(ctx, h.cluster))
	require.NoError(t, h.orch.FetchIPFSDashboard(ctx, h.cluster))
	require.NoError(t, h.orch.FetchAdminPanelAccess(ctx, h.cluster))

	d := h.deployment(t)
	assert.Equal(t, types.NewFetchable("http://k8", true, ""), d.K8Dashboard)
	assert.Equal(t, types.NewFetchable("http://ipfs", true, ""), d.IPFS)
	assert.Equal(t, types.NewFetchable(true, true, ""), d.AdminPanel)

	h.orch.ClearK8Dashboard("C1")
	h.orch.ClearIPFSDashboard("C1")
	h.orch.ClearAdminPanelAccess("C1")

	d = h.deployment(t)
	assert.Equal(t, types.FetchableItem[string]{}, d.K8Dashboard)
	assert.Equal(t, types.FetchableItem[string]{}, d.IPFS)
	assert.Equal(t, types.FetchableItem[bool]{}, d.AdminPanel)
}

func TestDashboardStartFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.orch.RegisterCluster(h.cluster.ID)
	h.store.Dispatch(deployment.SetIPFSDashboard{ClusterID: "C1", Item: types.NewFetchable("http://ipfs", false, "")})
	h.backend.dashboardErr = errors.New("kubectl not found")

	require.Error(t, h.orch.FetchK8Dashboard(context.Background(), h.cluster))

	d := h.deployment(t)
	assert.Equal(t, types.NewFetchable("", false, "kubectl not found"), d.K8Dashboard)
	// other items are unaffected
	assert.Equal(t, types.NewFetchable("http://ipfs", false, ""), d.IPFS)

	notes := h.notifier.all()
	require.Len(t, notes, 1)
	assert.Equal(t, SeverityError, notes[0].Severity)
	assert.Contains(t, notes[0].Message, "Kubernetes dashboard")
}

func TestAdminAccessFailureNotifies(t *testing.T) {
	h := newHarness(t, nil)
	h.orch.RegisterCluster(h.cluster.ID)
	h.backend.adminErr = errors.New("rollout timed out")

	require.Error(t, h.orch.FetchAdminPanelAccess(context.Background(), h.cluster))
	require.NoError(t, h.orch.FetchIPFSDashboard(context.Background(), h.cluster))

	assert.Equal(t, types.NewFetchable(false, false, "rollout timed out"), h.deployment(t).AdminPanel)
	assert.Len(t, h.notifier.all(), 1)
}

func TestCancelledFetchDoesNotNotify(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.statusErr = context.Canceled

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, h.orch.FetchDeploymentStatus(ctx, h.cluster))
	h.orch.Wait()
	assert.Empty(t, h.notifier.all())
}

func TestLifecycle(t *testing.T) {
	h := newHarness(t, nil)

	h.orch.RegisterCluster("C1")
	h.orch.SetConfiguring("C1", true)
	assert.True(t, h.deployment(t).IsConfiguring)
	assert.Contains(t, h.orch.State(), "C1")

	h.orch.RemoveDeploymentStatus("C1")
	_, ok := h.orch.Deployment("C1")
	assert.False(t, ok)
	assert.Empty(t, h.orch.State())
}
