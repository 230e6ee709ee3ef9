package types

import (
	"maps"
	"slices"
	"time"
)

// ClusterType identifies the local runtime backing a cluster
type ClusterType string

const (
	ClusterTypeMinikube ClusterType = "Minikube"
	ClusterTypeMicroK8s ClusterType = "MicroK8s"
)

// Valid reports whether t is a supported cluster type
func (t ClusterType) Valid() bool {
	return t == ClusterTypeMinikube || t == ClusterTypeMicroK8s
}

// Cluster represents a local compute environment the launcher deploys into
type Cluster struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Type      ClusterType       `json:"type"`
	Configs   map[string]string `json:"configs"`
	Variables map[string]string `json:"variables"`
}

// Clone returns a deep copy of the cluster. Asynchronous operations work on a
// clone so that later edits to the selected cluster never retarget them.
func (c *Cluster) Clone() *Cluster {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Configs = maps.Clone(c.Configs)
	clone.Variables = maps.Clone(c.Variables)
	if clone.Configs == nil {
		clone.Configs = make(map[string]string)
	}
	if clone.Variables == nil {
		clone.Variables = make(map[string]string)
	}
	return &clone
}

// RepoRole names a tracked source repository. The value doubles as the key
// under which the repository path is stored in Cluster.Configs.
type RepoRole string

const (
	RepoEngine RepoRole = "ENGINE_PATH"
	RepoOps    RepoRole = "OPS_PATH"
)

// RepoRoles lists every repository role tracked per cluster
var RepoRoles = []RepoRole{RepoEngine, RepoOps}

// Well-known keys in Cluster.Configs and Cluster.Variables
const (
	ConfigReleaseName     = "RELEASE_NAME"
	ConfigConfigureScript = "CONFIGURE_SCRIPT"
	VariableRippleStack   = "ENABLE_RIPPLE_STACK"
)

// Status is the outcome of one discrete check
type Status string

const (
	StatusUnknown       Status = "Unknown"
	StatusChecking      Status = "Checking"
	StatusConfigured    Status = "Configured"
	StatusNotConfigured Status = "NotConfigured"
	StatusProcessing    Status = "Processing"
	StatusError         Status = "Error"
)

// StatusEntry represents one dependency, app or engine check result
type StatusEntry struct {
	ID              string `json:"id"`
	Label           string `json:"label"`
	Status          Status `json:"status"`
	Detail          string `json:"detail,omitempty"`
	Required        bool   `json:"required"`
	RequiresSudo    bool   `json:"requiresSudo"`
	RippleStackOnly bool   `json:"rippleStackOnly"`
}

// StatusKind selects one of the three status lists of a deployment
type StatusKind string

const (
	KindSystem StatusKind = "system"
	KindApp    StatusKind = "app"
	KindEngine StatusKind = "engine"
)

// StatusKinds lists the status kinds in display order
var StatusKinds = []StatusKind{KindSystem, KindApp, KindEngine}

// StatusBundle is the result of a full status fetch
type StatusBundle struct {
	SystemStatus []StatusEntry `json:"systemStatus"`
	AppStatus    []StatusEntry `json:"appStatus"`
	EngineStatus []StatusEntry `json:"engineStatus"`
}

// List returns the list for the given kind
func (b *StatusBundle) List(kind StatusKind) []StatusEntry {
	switch kind {
	case KindSystem:
		return b.SystemStatus
	case KindApp:
		return b.AppStatus
	case KindEngine:
		return b.EngineStatus
	}
	return nil
}

// Clone returns a copy whose lists do not alias b's
func (b *StatusBundle) Clone() *StatusBundle {
	if b == nil {
		return nil
	}
	return &StatusBundle{
		SystemStatus: slices.Clone(b.SystemStatus),
		AppStatus:    slices.Clone(b.AppStatus),
		EngineStatus: slices.Clone(b.EngineStatus),
	}
}

// Len returns the number of entries across all three lists
func (b *StatusBundle) Len() int {
	return len(b.SystemStatus) + len(b.AppStatus) + len(b.EngineStatus)
}

// FetchableItem wraps one asynchronously obtained resource. It is always
// replaced as a whole; Loading with non-empty Data means the data is stale
// but still valid while a refresh runs.
type FetchableItem[T any] struct {
	Loading bool   `json:"loading"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
}

// NewFetchable builds a FetchableItem from all three fields
func NewFetchable[T any](data T, loading bool, errMsg string) FetchableItem[T] {
	return FetchableItem[T]{Loading: loading, Data: data, Error: errMsg}
}

// GitStatus describes the checkout state of a tracked repository
type GitStatus struct {
	Branch string `json:"branch"`
	Commit string `json:"commit"`
	Dirty  bool   `json:"dirty"`
	Ahead  int    `json:"ahead"`
	Behind int    `json:"behind"`
}

// DeploymentState is the aggregated view of one cluster's deployment
type DeploymentState struct {
	ClusterID          string                                 `json:"clusterId"`
	IsConfiguring      bool                                   `json:"isConfiguring"`
	IsFetchingStatuses bool                                   `json:"isFetchingStatuses"`
	IsFirstFetched     bool                                   `json:"isFirstFetched"`
	GitStatus          map[RepoRole]FetchableItem[*GitStatus] `json:"gitStatus"`
	IPFS               FetchableItem[string]                  `json:"ipfs"`
	AdminPanel         FetchableItem[bool]                    `json:"adminPanel"`
	K8Dashboard        FetchableItem[string]                  `json:"k8dashboard"`
	SystemStatus       []StatusEntry                          `json:"systemStatus"`
	AppStatus          []StatusEntry                          `json:"appStatus"`
	EngineStatus       []StatusEntry                          `json:"engineStatus"`
}

// NewDeploymentState returns a container with every resource at its default
func NewDeploymentState(clusterID string) *DeploymentState {
	git := make(map[RepoRole]FetchableItem[*GitStatus], len(RepoRoles))
	for _, role := range RepoRoles {
		git[role] = FetchableItem[*GitStatus]{}
	}
	return &DeploymentState{
		ClusterID:    clusterID,
		GitStatus:    git,
		SystemStatus: []StatusEntry{},
		AppStatus:    []StatusEntry{},
		EngineStatus: []StatusEntry{},
	}
}

// Clone returns a deep copy of the deployment state
func (d *DeploymentState) Clone() *DeploymentState {
	if d == nil {
		return nil
	}
	clone := *d
	clone.GitStatus = make(map[RepoRole]FetchableItem[*GitStatus], len(d.GitStatus))
	for role, item := range d.GitStatus {
		if item.Data != nil {
			data := *item.Data
			item.Data = &data
		}
		clone.GitStatus[role] = item
	}
	clone.SystemStatus = slices.Clone(d.SystemStatus)
	clone.AppStatus = slices.Clone(d.AppStatus)
	clone.EngineStatus = slices.Clone(d.EngineStatus)
	return &clone
}

// StatusList returns a pointer to the list for kind, or nil for an unknown kind
func (d *DeploymentState) StatusList(kind StatusKind) *[]StatusEntry {
	switch kind {
	case KindSystem:
		return &d.SystemStatus
	case KindApp:
		return &d.AppStatus
	case KindEngine:
		return &d.EngineStatus
	}
	return nil
}

// Busy reports whether a configure or fetch is in flight
func (d *DeploymentState) Busy() bool {
	return d.IsConfiguring || d.IsFetchingStatuses
}

// PodStatus summarises a pod or container lifecycle state
type PodStatus string

const (
	PodRunning    PodStatus = "Running"
	PodTerminated PodStatus = "Terminated"
	PodWaiting    PodStatus = "Waiting"
	PodUndefined  PodStatus = "Undefined"
)

// WorkloadPod describes one pod returned by a workload query
type WorkloadPod struct {
	Name       string              `json:"name"`
	Status     PodStatus           `json:"status"`
	Age        time.Time           `json:"age"`
	Containers []WorkloadContainer `json:"containers"`
}

// WorkloadContainer describes one container of a WorkloadPod
type WorkloadContainer struct {
	Name     string    `json:"name"`
	Status   PodStatus `json:"status"`
	Ready    bool      `json:"ready"`
	Started  bool      `json:"started"`
	Restarts int32     `json:"restarts"`
	Image    string    `json:"image"`
}

// Workload groups the pods tracked under one logical role
type Workload struct {
	ID    string        `json:"id"`
	Label string        `json:"label"`
	Pods  []WorkloadPod `json:"pods"`
}

// WorkloadDeployment describes one deployment returned by a workload query
type WorkloadDeployment struct {
	Name              string `json:"name"`
	Replicas          int32  `json:"replicas"`
	ReadyReplicas     int32  `json:"readyReplicas"`
	AvailableReplicas int32  `json:"availableReplicas"`
}
