package deployment

import "github.com/cuemby/launcher/pkg/types"

// Action is a state transition request. The set of actions is closed: only
// types in this package implement it, and Reduce handles every one of them.
type Action interface {
	// Cluster returns the id of the deployment the action targets
	Cluster() string
	// Name returns a stable name used for logging and metrics
	Name() string

	sealed()
}

// RegisterCluster creates an empty deployment container if none exists
type RegisterCluster struct {
	ClusterID string
}

// RemoveDeployment deletes a deployment container entirely
type RemoveDeployment struct {
	ClusterID string
}

// SetConfiguring toggles the configure busy flag
type SetConfiguring struct {
	ClusterID   string
	Configuring bool
}

// SetFetchingStatuses toggles the fetch busy flag. Clearing it marks the
// deployment as fetched at least once.
type SetFetchingStatuses struct {
	ClusterID string
	Fetching  bool
}

// SetDeploymentApps bulk-replaces the three status lists
type SetDeploymentApps struct {
	ClusterID string
	Bundle    types.StatusBundle
}

// StatusReceived point-updates a single entry of one status list
type StatusReceived struct {
	ClusterID string
	Kind      types.StatusKind
	Entry     types.StatusEntry
}

// SetGitStatus replaces the git status item of one repository role
type SetGitStatus struct {
	ClusterID string
	Role      types.RepoRole
	Item      types.FetchableItem[*types.GitStatus]
}

// SetK8Dashboard replaces the Kubernetes dashboard item
type SetK8Dashboard struct {
	ClusterID string
	Item      types.FetchableItem[string]
}

// SetIPFSDashboard replaces the IPFS dashboard item
type SetIPFSDashboard struct {
	ClusterID string
	Item      types.FetchableItem[string]
}

// SetAdminPanel replaces the admin panel access item
type SetAdminPanel struct {
	ClusterID string
	Item      types.FetchableItem[bool]
}

func (a RegisterCluster) Cluster() string     { return a.ClusterID }
func (a RemoveDeployment) Cluster() string    { return a.ClusterID }
func (a SetConfiguring) Cluster() string      { return a.ClusterID }
func (a SetFetchingStatuses) Cluster() string { return a.ClusterID }
func (a SetDeploymentApps) Cluster() string   { return a.ClusterID }
func (a StatusReceived) Cluster() string      { return a.ClusterID }
func (a SetGitStatus) Cluster() string        { return a.ClusterID }
func (a SetK8Dashboard) Cluster() string      { return a.ClusterID }
func (a SetIPFSDashboard) Cluster() string    { return a.ClusterID }
func (a SetAdminPanel) Cluster() string       { return a.ClusterID }

func (RegisterCluster) Name() string     { return "register_cluster" }
func (RemoveDeployment) Name() string    { return "remove_deployment" }
func (SetConfiguring) Name() string      { return "set_configuring" }
func (SetFetchingStatuses) Name() string { return "set_fetching_statuses" }
func (SetDeploymentApps) Name() string   { return "set_deployment_apps" }
func (StatusReceived) Name() string      { return "status_received" }
func (SetGitStatus) Name() string        { return "set_git_status" }
func (SetK8Dashboard) Name() string      { return "set_k8_dashboard" }
func (SetIPFSDashboard) Name() string    { return "set_ipfs_dashboard" }
func (SetAdminPanel) Name() string       { return "set_admin_panel" }

func (RegisterCluster) sealed()     {}
func (RemoveDeployment) sealed()    {}
func (SetConfiguring) sealed()      {}
func (SetFetchingStatuses) sealed() {}
func (SetDeploymentApps) sealed()   {}
func (StatusReceived) sealed()      {}
func (SetGitStatus) sealed()        {}
func (SetK8Dashboard) sealed()      {}
func (SetIPFSDashboard) sealed()    {}
func (SetAdminPanel) sealed()       {}
