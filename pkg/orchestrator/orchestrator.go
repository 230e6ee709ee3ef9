package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/launcher/pkg/deployment"
	"github.com/cuemby/launcher/pkg/log"
	"github.com/cuemby/launcher/pkg/metrics"
	"github.com/cuemby/launcher/pkg/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultSettleDelay is how long ProcessConfigurations waits after the
// configure command before fetching statuses again
const DefaultSettleDelay = 2000 * time.Millisecond

var (
	// ErrPrivilegeRequired is returned when an operation needs the sudo
	// password and none could be obtained
	ErrPrivilegeRequired = errors.New("elevated privilege required")

	// ErrRepoPathNotSet is returned when a cluster has no path for a repository role
	ErrRepoPathNotSet = errors.New("repository path not set")
)

// CommandBackend executes cluster commands outside the process
type CommandBackend interface {
	// ConfigureCluster runs the configure script to completion
	ConfigureCluster(ctx context.Context, cluster *types.Cluster, password string, flags map[string]string) error
	// GetClusterStatus returns the declared status bundle for the cluster
	GetClusterStatus(ctx context.Context, cluster *types.Cluster, password string) (*types.StatusBundle, error)
	// CheckClusterStatus verifies every entry of bundle. Results arrive later
	// as point updates on the status channels.
	CheckClusterStatus(ctx context.Context, cluster *types.Cluster, bundle *types.StatusBundle) error

	// The following start background work and return once it is started.
	// Results arrive on the dashboard and admin channels.
	ConfigureK8Dashboard(ctx context.Context, cluster *types.Cluster) error
	ConfigureIPFSDashboard(ctx context.Context, cluster *types.Cluster) error
	EnsureAdminAccess(ctx context.Context, cluster *types.Cluster) error
}

// GitBackend reads the checkout state of a repository
type GitBackend interface {
	Status(ctx context.Context, repoPath string) (*types.GitStatus, error)
}

// CredentialSource provides the stored sudo password
type CredentialSource interface {
	DecryptedSudoPassword(ctx context.Context) (string, error)
}

// Severity of a user notification
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityError Severity = "error"
)

// Notification is a transient message meant for the user
type Notification struct {
	ClusterID string   `json:"cluster_id"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
}

// Notifier surfaces transient notifications to the user
type Notifier interface {
	Notify(n Notification)
}

// Config holds orchestrator dependencies
type Config struct {
	Store       *deployment.Store
	Backend     CommandBackend
	Git         GitBackend
	Credentials CredentialSource
	Notifier    Notifier

	// RequiresPrivilege is true on hosts where probes and configure need sudo
	RequiresPrivilege bool
	SettleDelay       time.Duration
}

// Orchestrator drives configure and status fetch workflows for clusters and
// records their outcome in the deployment store
type Orchestrator struct {
	store       *deployment.Store
	backend     CommandBackend
	git         GitBackend
	credentials CredentialSource
	notifier    Notifier

	requiresPrivilege bool
	settleDelay       time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger zerolog.Logger
}

// New creates an orchestrator
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("command backend is required")
	}
	if cfg.Git == nil {
		return nil, fmt.Errorf("git backend is required")
	}
	if cfg.RequiresPrivilege && cfg.Credentials == nil {
		return nil, fmt.Errorf("credential source is required when privilege is required")
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NewLogNotifier()
	}
	settle := cfg.SettleDelay
	if settle == 0 {
		settle = DefaultSettleDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		store:             cfg.Store,
		backend:           cfg.Backend,
		git:               cfg.Git,
		credentials:       cfg.Credentials,
		notifier:          notifier,
		requiresPrivilege: cfg.RequiresPrivilege,
		settleDelay:       settle,
		ctx:               ctx,
		cancel:            cancel,
		logger:            log.WithComponent("orchestrator"),
	}, nil
}

// Close cancels background work and waits for it to finish
func (o *Orchestrator) Close() {
	o.cancel()
	o.wg.Wait()
}

// Wait blocks until all background work started so far has finished
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) goBackground(fn func(ctx context.Context)) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		fn(o.ctx)
	}()
}

// State returns a copy of every tracked deployment
func (o *Orchestrator) State() map[string]*types.DeploymentState {
	return o.store.Snapshot()
}

// Deployment returns a copy of one cluster's deployment
func (o *Orchestrator) Deployment(clusterID string) (*types.DeploymentState, bool) {
	return o.store.Get(clusterID)
}

// RegisterCluster creates an empty deployment for clusterID
func (o *Orchestrator) RegisterCluster(clusterID string) {
	o.store.Dispatch(deployment.RegisterCluster{ClusterID: clusterID})
}

// RemoveDeploymentStatus drops everything known about clusterID
func (o *Orchestrator) RemoveDeploymentStatus(clusterID string) {
	o.store.Dispatch(deployment.RemoveDeployment{ClusterID: clusterID})
}

// SetConfiguring sets the configure busy flag directly
func (o *Orchestrator) SetConfiguring(clusterID string, configuring bool) {
	o.store.Dispatch(deployment.SetConfiguring{ClusterID: clusterID, Configuring: configuring})
}

// GetDeploymentStatus asks the backend for the status bundle and replaces
// the cached lists with it. On failure the cache is left as it was and an
// empty bundle is returned with the error.
func (o *Orchestrator) GetDeploymentStatus(ctx context.Context, cluster *types.Cluster, password string) (*types.StatusBundle, error) {
	c := cluster.Clone()
	logger := log.WithClusterID(c.ID)

	bundle, err := o.backend.GetClusterStatus(ctx, c, password)
	if err == nil && bundle == nil {
		err = errors.New("backend returned no status bundle")
	}
	if err != nil {
		logger.Error().Err(err).Msg("Failed to get deployment status")
		return &types.StatusBundle{}, fmt.Errorf("failed to get deployment status: %w", err)
	}

	o.store.Dispatch(deployment.SetDeploymentApps{ClusterID: c.ID, Bundle: *bundle.Clone()})
	return bundle, nil
}

// FetchDeploymentStatus refreshes git statuses and the status bundle of the
// cluster, then asks the backend to verify every entry. The fetch flag is
// cleared on every return path.
func (o *Orchestrator) FetchDeploymentStatus(ctx context.Context, cluster *types.Cluster) (err error) {
	c := cluster.Clone()
	logger := log.WithClusterID(c.ID)
	timer := metrics.NewTimer()

	// Git results may land before the bundle does
	o.store.Dispatch(deployment.RegisterCluster{ClusterID: c.ID})
	o.store.Dispatch(deployment.SetFetchingStatuses{ClusterID: c.ID, Fetching: true})
	defer func() {
		o.store.Dispatch(deployment.SetFetchingStatuses{ClusterID: c.ID, Fetching: false})
		metrics.StatusFetchesTotal.WithLabelValues(metrics.ResultLabel(err)).Inc()
		timer.ObserveDuration(metrics.StatusFetchDuration)
		if err != nil {
			o.fail(ctx, c, err, "Failed to fetch deployment status")
		}
	}()

	password, err := o.sudoPassword(ctx)
	if err != nil {
		return err
	}

	o.goBackground(func(bg context.Context) {
		if err := o.FetchGitStatuses(bg, c); err != nil {
			logger.Warn().Err(err).Msg("Git status fetch failed")
		}
	})

	bundle, err := o.GetDeploymentStatus(ctx, c, password)
	if err != nil {
		return err
	}

	if err := o.backend.CheckClusterStatus(ctx, c, bundle); err != nil {
		return fmt.Errorf("failed to check cluster status: %w", err)
	}

	logger.Debug().
		Int("entries", bundle.Len()).
		Dur("duration", timer.Duration()).
		Msg("Deployment status fetched")
	return nil
}

// ProcessConfigurations runs the configure command for the cluster, waits
// for the settle delay and starts a status fetch. Failures raise one error
// notification. The returned error repeats what was already notified and
// logged; callers may ignore it. The configure flag is cleared on every
// return path.
func (o *Orchestrator) ProcessConfigurations(ctx context.Context, cluster *types.Cluster, password string, flags map[string]string) (err error) {
	c := cluster.Clone()
	logger := log.WithClusterID(c.ID)
	timer := metrics.NewTimer()

	o.store.Dispatch(deployment.SetConfiguring{ClusterID: c.ID, Configuring: true})
	defer func() {
		o.store.Dispatch(deployment.SetConfiguring{ClusterID: c.ID, Configuring: false})
		metrics.ConfigureTotal.WithLabelValues(metrics.ResultLabel(err)).Inc()
		timer.ObserveDuration(metrics.ConfigureDuration)
	}()

	if err := o.configure(ctx, c, password, flags); err != nil {
		o.fail(ctx, c, err, "Failed to configure cluster")
		return err
	}

	logger.Info().Dur("duration", timer.Duration()).Msg("Cluster configured")

	o.goBackground(func(bg context.Context) {
		_ = o.FetchDeploymentStatus(bg, c)
	})
	return nil
}

// fail logs err and raises one error notification for the cluster. Nothing
// is raised when ctx was cancelled by the caller.
func (o *Orchestrator) fail(ctx context.Context, c *types.Cluster, err error, msg string) {
	logger := log.WithClusterID(c.ID)
	logger.Error().Err(err).Msg(msg)

	if ctx.Err() != nil {
		return
	}
	o.notifier.Notify(Notification{
		ClusterID: c.ID,
		Severity:  SeverityError,
		Message:   fmt.Sprintf("%s for %s. Please check logs.", msg, displayName(c)),
	})
}

func displayName(c *types.Cluster) string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

func (o *Orchestrator) configure(ctx context.Context, c *types.Cluster, password string, flags map[string]string) error {
	if o.requiresPrivilege && password == "" {
		return ErrPrivilegeRequired
	}

	if err := o.backend.ConfigureCluster(ctx, c, password, flags); err != nil {
		return fmt.Errorf("configure command failed: %w", err)
	}

	select {
	case <-time.After(o.settleDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) sudoPassword(ctx context.Context) (string, error) {
	if !o.requiresPrivilege {
		return "", nil
	}
	password, err := o.credentials.DecryptedSudoPassword(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPrivilegeRequired, err)
	}
	if password == "" {
		return "", ErrPrivilegeRequired
	}
	return password, nil
}

// FetchGitStatuses refreshes the git status of every repository role
// concurrently. A failing role does not stop the others; the first error is
// returned.
func (o *Orchestrator) FetchGitStatuses(ctx context.Context, cluster *types.Cluster) error {
	c := cluster.Clone()

	var g errgroup.Group
	for _, role := range types.RepoRoles {
		g.Go(func() error {
			return o.FetchGitStatus(ctx, c, role)
		})
	}
	return g.Wait()
}

// FetchGitStatus refreshes the git status of one repository role
func (o *Orchestrator) FetchGitStatus(ctx context.Context, cluster *types.Cluster, role types.RepoRole) error {
	c := cluster.Clone()

	var previous *types.GitStatus
	if d, ok := o.store.Get(c.ID); ok {
		previous = d.GitStatus[role].Data
	}
	o.store.Dispatch(deployment.SetGitStatus{
		ClusterID: c.ID,
		Role:      role,
		Item:      types.NewFetchable(previous, true, ""),
	})

	status, err := o.gitStatus(ctx, c, role)
	if err != nil {
		o.store.Dispatch(deployment.SetGitStatus{
			ClusterID: c.ID,
			Role:      role,
			Item:      types.NewFetchable[*types.GitStatus](nil, false, err.Error()),
		})
		return fmt.Errorf("git status for %s: %w", role, err)
	}

	o.store.Dispatch(deployment.SetGitStatus{
		ClusterID: c.ID,
		Role:      role,
		Item:      types.NewFetchable(status, false, ""),
	})
	return nil
}

func (o *Orchestrator) gitStatus(ctx context.Context, c *types.Cluster, role types.RepoRole) (*types.GitStatus, error) {
	path := c.Configs[string(role)]
	if path == "" {
		return nil, ErrRepoPathNotSet
	}
	return o.git.Status(ctx, path)
}

// FetchK8Dashboard starts the Kubernetes dashboard. The link arrives later
// on the dashboard channel; the previous link stays visible meanwhile.
func (o *Orchestrator) FetchK8Dashboard(ctx context.Context, cluster *types.Cluster) error {
	c := cluster.Clone()

	var previous string
	if d, ok := o.store.Get(c.ID); ok {
		previous = d.K8Dashboard.Data
	}
	o.store.Dispatch(deployment.SetK8Dashboard{ClusterID: c.ID, Item: types.NewFetchable(previous, true, "")})

	if err := o.backend.ConfigureK8Dashboard(ctx, c); err != nil {
		o.store.Dispatch(deployment.SetK8Dashboard{ClusterID: c.ID, Item: types.NewFetchable("", false, err.Error())})
		o.fail(ctx, c, err, "Failed to start Kubernetes dashboard")
		return fmt.Errorf("failed to start kubernetes dashboard: %w", err)
	}
	return nil
}

// ClearK8Dashboard resets the dashboard item
func (o *Orchestrator) ClearK8Dashboard(clusterID string) {
	o.store.Dispatch(deployment.SetK8Dashboard{ClusterID: clusterID})
}

// FetchIPFSDashboard starts the IPFS dashboard
func (o *Orchestrator) FetchIPFSDashboard(ctx context.Context, cluster *types.Cluster) error {
	c := cluster.Clone()

	var previous string
	if d, ok := o.store.Get(c.ID); ok {
		previous = d.IPFS.Data
	}
	o.store.Dispatch(deployment.SetIPFSDashboard{ClusterID: c.ID, Item: types.NewFetchable(previous, true, "")})

	if err := o.backend.ConfigureIPFSDashboard(ctx, c); err != nil {
		o.store.Dispatch(deployment.SetIPFSDashboard{ClusterID: c.ID, Item: types.NewFetchable("", false, err.Error())})
		o.fail(ctx, c, err, "Failed to start IPFS dashboard")
		return fmt.Errorf("failed to start ipfs dashboard: %w", err)
	}
	return nil
}

// ClearIPFSDashboard resets the IPFS dashboard item
func (o *Orchestrator) ClearIPFSDashboard(clusterID string) {
	o.store.Dispatch(deployment.SetIPFSDashboard{ClusterID: clusterID})
}

// FetchAdminPanelAccess asks the backend to grant admin panel access
func (o *Orchestrator) FetchAdminPanelAccess(ctx context.Context, cluster *types.Cluster) error {
	c := cluster.Clone()

	var previous bool
	if d, ok := o.store.Get(c.ID); ok {
		previous = d.AdminPanel.Data
	}
	o.store.Dispatch(deployment.SetAdminPanel{ClusterID: c.ID, Item: types.NewFetchable(previous, true, "")})

	if err := o.backend.EnsureAdminAccess(ctx, c); err != nil {
		o.store.Dispatch(deployment.SetAdminPanel{ClusterID: c.ID, Item: types.NewFetchable(false, false, err.Error())})
		o.fail(ctx, c, err, "Failed to ensure admin access")
		return fmt.Errorf("failed to ensure admin access: %w", err)
	}
	return nil
}

// ClearAdminPanelAccess resets the admin panel item
func (o *Orchestrator) ClearAdminPanelAccess(clusterID string) {
	o.store.Dispatch(deployment.SetAdminPanel{ClusterID: clusterID})
}
