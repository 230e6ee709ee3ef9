package deployment

import (
	"testing"

	"github.com/cuemby/launcher/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id string, status types.Status) types.StatusEntry {
	return types.StatusEntry{ID: id, Label: id, Status: status}
}

func bulk(id string, system ...types.StatusEntry) SetDeploymentApps {
	return SetDeploymentApps{
		ClusterID: id,
		Bundle: types.StatusBundle{
			SystemStatus: system,
			AppStatus:    []types.StatusEntry{entry("minikube", types.StatusChecking), entry("redis", types.StatusChecking)},
			EngineStatus: []types.StatusEntry{entry("engine", types.StatusChecking)},
		},
	}
}

func mustReduce(t *testing.T, s State, a Action) State {
	t.Helper()
	next, _ := Reduce(s, a)
	return next
}

func TestBulkReplaceCreatesDeployment(t *testing.T) {
	// Cluster C1 has no deployment state yet
	state, changed := Reduce(State{}, bulk("C1", entry("node", types.StatusUnknown)))
	require.True(t, changed)

	d, ok := state["C1"]
	require.True(t, ok)
	assert.Equal(t, []types.StatusEntry{entry("node", types.StatusUnknown)}, d.SystemStatus)
	assert.True(t, d.IsFetchingStatuses)
	assert.False(t, d.IsConfiguring)
	assert.False(t, d.IsFirstFetched)
	assert.Len(t, d.GitStatus, len(types.RepoRoles))
	assert.Equal(t, types.FetchableItem[string]{}, d.K8Dashboard)
}

func TestBulkReplacePreservesOrderAndLength(t *testing.T) {
	system := []types.StatusEntry{
		entry("node", types.StatusChecking),
		entry("npm", types.StatusChecking),
		entry("python", types.StatusChecking),
		entry("git", types.StatusChecking),
	}
	state := mustReduce(t, State{}, bulk("C1", entry("stale", types.StatusError)))
	state = mustReduce(t, state, bulk("C1", system...))

	assert.Equal(t, system, state["C1"].SystemStatus)
	assert.Len(t, state["C1"].AppStatus, 2)
}

func TestBulkReplaceDoesNotAliasBundle(t *testing.T) {
	system := []types.StatusEntry{entry("node", types.StatusChecking)}
	state := mustReduce(t, State{}, bulk("C1", system...))

	system[0].Status = types.StatusError
	assert.Equal(t, types.StatusChecking, state["C1"].SystemStatus[0].Status)
}

func TestPointUpdate(t *testing.T) {
	state := mustReduce(t, State{}, bulk("C1", entry("node", types.StatusUnknown)))

	t.Run("matching id replaces the entry in place", func(t *testing.T) {
		next, changed := Reduce(state, StatusReceived{
			ClusterID: "C1",
			Kind:      types.KindSystem,
			Entry:     entry("node", types.StatusConfigured),
		})
		require.True(t, changed)
		require.Len(t, next["C1"].SystemStatus, 1)
		assert.Equal(t, types.StatusConfigured, next["C1"].SystemStatus[0].Status)
		// prev is untouched
		assert.Equal(t, types.StatusUnknown, state["C1"].SystemStatus[0].Status)
	})

	t.Run("unknown id is a no-op", func(t *testing.T) {
		next, changed := Reduce(state, StatusReceived{
			ClusterID: "C1",
			Kind:      types.KindSystem,
			Entry:     entry("unknown-id", types.StatusError),
		})
		assert.False(t, changed)
		assert.Equal(t, state["C1"].SystemStatus, next["C1"].SystemStatus)
	})

	t.Run("unknown cluster is a no-op", func(t *testing.T) {
		next, changed := Reduce(state, StatusReceived{
			ClusterID: "C2",
			Kind:      types.KindSystem,
			Entry:     entry("node", types.StatusError),
		})
		assert.False(t, changed)
		assert.NotContains(t, next, "C2")
	})

	t.Run("unknown kind is a no-op", func(t *testing.T) {
		_, changed := Reduce(state, StatusReceived{
			ClusterID: "C1",
			Kind:      types.StatusKind("cluster"),
			Entry:     entry("node", types.StatusError),
		})
		assert.False(t, changed)
	})
}

func TestPointUpdateChangesExactlyOneEntry(t *testing.T) {
	state := mustReduce(t, State{}, bulk("C1"))
	before := state["C1"].AppStatus

	next := mustReduce(t, state, StatusReceived{
		ClusterID: "C1",
		Kind:      types.KindApp,
		Entry:     entry("redis", types.StatusNotConfigured),
	})

	after := next["C1"].AppStatus
	require.Len(t, after, len(before))
	assert.Equal(t, before[0], after[0])
	assert.Equal(t, types.StatusNotConfigured, after[1].Status)
	assert.Equal(t, state["C1"].SystemStatus, next["C1"].SystemStatus)
	assert.Equal(t, state["C1"].EngineStatus, next["C1"].EngineStatus)
}

func TestMergesAreIsolatedPerCluster(t *testing.T) {
	state := mustReduce(t, State{}, bulk("A", entry("node", types.StatusUnknown)))
	state = mustReduce(t, state, bulk("B", entry("node", types.StatusUnknown)))
	untouched := state["B"].Clone()
	pointer := state["B"]

	actions := []Action{
		StatusReceived{ClusterID: "A", Kind: types.KindSystem, Entry: entry("node", types.StatusConfigured)},
		SetConfiguring{ClusterID: "A", Configuring: true},
		SetFetchingStatuses{ClusterID: "A", Fetching: false},
		SetGitStatus{ClusterID: "A", Role: types.RepoEngine, Item: types.NewFetchable(&types.GitStatus{Branch: "dev"}, false, "")},
		SetK8Dashboard{ClusterID: "A", Item: types.NewFetchable("http://127.0.0.1:1234", false, "")},
		SetIPFSDashboard{ClusterID: "A", Item: types.NewFetchable("", false, "port-forward failed")},
		SetAdminPanel{ClusterID: "A", Item: types.NewFetchable(true, false, "")},
		bulk("A"),
		RemoveDeployment{ClusterID: "A"},
	}

	for _, a := range actions {
		state = mustReduce(t, state, a)
		assert.Same(t, pointer, state["B"], a.Name())
		assert.Equal(t, untouched, state["B"], a.Name())
	}
	assert.NotContains(t, state, "A")
}

func TestFetchingFlagAndFirstFetched(t *testing.T) {
	state := mustReduce(t, State{}, bulk("C1"))
	require.False(t, state["C1"].IsFirstFetched)

	state = mustReduce(t, state, SetFetchingStatuses{ClusterID: "C1", Fetching: false})
	assert.False(t, state["C1"].IsFetchingStatuses)
	assert.True(t, state["C1"].IsFirstFetched)

	// stays true across later fetches
	state = mustReduce(t, state, SetFetchingStatuses{ClusterID: "C1", Fetching: true})
	state = mustReduce(t, state, bulk("C1"))
	assert.True(t, state["C1"].IsFetchingStatuses)
	assert.True(t, state["C1"].IsFirstFetched)
}

func TestActionsOnAbsentClusterAreNoOps(t *testing.T) {
	actions := []Action{
		SetConfiguring{ClusterID: "C1", Configuring: true},
		SetFetchingStatuses{ClusterID: "C1", Fetching: false},
		SetGitStatus{ClusterID: "C1", Role: types.RepoOps},
		SetK8Dashboard{ClusterID: "C1"},
		SetIPFSDashboard{ClusterID: "C1"},
		SetAdminPanel{ClusterID: "C1"},
		RemoveDeployment{ClusterID: "C1"},
	}
	for _, a := range actions {
		next, changed := Reduce(State{}, a)
		assert.False(t, changed, a.Name())
		assert.Empty(t, next, a.Name())
	}
}

func TestRegisterCluster(t *testing.T) {
	state, changed := Reduce(State{}, RegisterCluster{ClusterID: "C1"})
	require.True(t, changed)
	assert.Equal(t, types.NewDeploymentState("C1"), state["C1"])
	assert.False(t, state["C1"].IsFetchingStatuses)

	// idempotent, keeps existing data
	state = mustReduce(t, state, bulk("C1", entry("node", types.StatusUnknown)))
	next, changed := Reduce(state, RegisterCluster{ClusterID: "C1"})
	assert.False(t, changed)
	assert.Len(t, next["C1"].SystemStatus, 1)
}

func TestFetchableItemReplacedAsWhole(t *testing.T) {
	state := mustReduce(t, State{}, bulk("C1"))
	state = mustReduce(t, state, SetK8Dashboard{ClusterID: "C1", Item: types.NewFetchable("", false, "timeout")})
	state = mustReduce(t, state, SetK8Dashboard{ClusterID: "C1", Item: types.NewFetchable("http://dash", false, "")})

	assert.Equal(t, types.FetchableItem[string]{Data: "http://dash"}, state["C1"].K8Dashboard)
}

func TestGitStatusItemIsCopied(t *testing.T) {
	status := &types.GitStatus{Branch: "dev"}
	state := mustReduce(t, State{}, bulk("C1"))
	state = mustReduce(t, state, SetGitStatus{ClusterID: "C1", Role: types.RepoEngine, Item: types.NewFetchable(status, false, "")})

	status.Branch = "changed"
	assert.Equal(t, "dev", state["C1"].GitStatus[types.RepoEngine].Data.Branch)
	assert.Equal(t, types.FetchableItem[*types.GitStatus]{}, state["C1"].GitStatus[types.RepoOps])
}
