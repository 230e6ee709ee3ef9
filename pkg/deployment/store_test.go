package deployment

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/launcher/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	s.Start()
	t.Cleanup(s.Stop)
	return s
}

func TestStoreScenario(t *testing.T) {
	s := newTestStore(t)

	// A: bulk replace creates the deployment
	require.True(t, s.Dispatch(SetDeploymentApps{
		ClusterID: "C1",
		Bundle:    types.StatusBundle{SystemStatus: []types.StatusEntry{{ID: "node", Status: types.StatusUnknown}}},
	}))
	d, ok := s.Get("C1")
	require.True(t, ok)
	assert.Equal(t, []types.StatusEntry{{ID: "node", Status: types.StatusUnknown}}, d.SystemStatus)
	assert.True(t, d.IsFetchingStatuses)

	// B: point update replaces the entry
	require.True(t, s.Dispatch(StatusReceived{
		ClusterID: "C1",
		Kind:      types.KindSystem,
		Entry:     types.StatusEntry{ID: "node", Status: types.StatusConfigured},
	}))
	d, _ = s.Get("C1")
	require.Len(t, d.SystemStatus, 1)
	assert.Equal(t, types.StatusConfigured, d.SystemStatus[0].Status)

	// C: unknown id leaves the list unchanged
	assert.False(t, s.Dispatch(StatusReceived{
		ClusterID: "C1",
		Kind:      types.KindSystem,
		Entry:     types.StatusEntry{ID: "unknown-id", Status: types.StatusError},
	}))
	after, _ := s.Get("C1")
	assert.Equal(t, d.SystemStatus, after.SystemStatus)
}

func TestStoreGetReturnsCopy(t *testing.T) {
	s := newTestStore(t)
	s.Dispatch(SetDeploymentApps{
		ClusterID: "C1",
		Bundle:    types.StatusBundle{SystemStatus: []types.StatusEntry{{ID: "node"}}},
	})

	d, _ := s.Get("C1")
	d.SystemStatus[0].Status = types.StatusError
	d.IsConfiguring = true

	fresh, _ := s.Get("C1")
	assert.Empty(t, fresh.SystemStatus[0].Status)
	assert.False(t, fresh.IsConfiguring)

	snapshot := s.Snapshot()
	snapshot["C1"].SystemStatus = nil
	fresh, _ = s.Get("C1")
	assert.Len(t, fresh.SystemStatus, 1)
}

func TestStoreConcurrentDispatch(t *testing.T) {
	s := newTestStore(t)

	const clusters = 8
	const updates = 50

	entries := make([]types.StatusEntry, updates)
	for i := range entries {
		entries[i] = types.StatusEntry{ID: fmt.Sprintf("check-%d", i), Status: types.StatusChecking}
	}
	for c := 0; c < clusters; c++ {
		s.Dispatch(SetDeploymentApps{
			ClusterID: fmt.Sprintf("cluster-%d", c),
			Bundle:    types.StatusBundle{AppStatus: entries},
		})
	}

	var wg sync.WaitGroup
	for c := 0; c < clusters; c++ {
		for i := 0; i < updates; i++ {
			wg.Add(1)
			go func(c, i int) {
				defer wg.Done()
				s.Dispatch(StatusReceived{
					ClusterID: fmt.Sprintf("cluster-%d", c),
					Kind:      types.KindApp,
					Entry:     types.StatusEntry{ID: fmt.Sprintf("check-%d", i), Status: types.StatusConfigured},
				})
			}(c, i)
		}
	}
	wg.Wait()

	snapshot := s.Snapshot()
	require.Len(t, snapshot, clusters)
	for id, d := range snapshot {
		require.Len(t, d.AppStatus, updates, id)
		for i, e := range d.AppStatus {
			assert.Equal(t, fmt.Sprintf("check-%d", i), e.ID, id)
			assert.Equal(t, types.StatusConfigured, e.Status, id)
		}
	}
}

func TestStoreLastWriteWinsInDispatchOrder(t *testing.T) {
	s := newTestStore(t)
	s.Dispatch(SetDeploymentApps{
		ClusterID: "C1",
		Bundle:    types.StatusBundle{EngineStatus: []types.StatusEntry{{ID: "engine"}}},
	})

	for _, status := range []types.Status{types.StatusChecking, types.StatusProcessing, types.StatusError} {
		s.Dispatch(StatusReceived{ClusterID: "C1", Kind: types.KindEngine, Entry: types.StatusEntry{ID: "engine", Status: status}})
	}

	d, _ := s.Get("C1")
	assert.Equal(t, types.StatusError, d.EngineStatus[0].Status)
}

func TestStoreWatch(t *testing.T) {
	s := newTestStore(t)
	w, cancel := s.Watch()
	defer cancel()

	s.Dispatch(RegisterCluster{ClusterID: "C1"})
	s.Dispatch(SetConfiguring{ClusterID: "missing", Configuring: true})
	s.Dispatch(SetConfiguring{ClusterID: "C1", Configuring: true})

	expect := []Change{
		{ClusterID: "C1", Action: "register_cluster"},
		{ClusterID: "C1", Action: "set_configuring"},
	}
	for _, want := range expect {
		select {
		case got := <-w:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %v", want)
		}
	}
}

func TestStoreRemoveAndIDs(t *testing.T) {
	s := newTestStore(t)
	s.Dispatch(RegisterCluster{ClusterID: "b"})
	s.Dispatch(RegisterCluster{ClusterID: "a"})
	assert.Equal(t, []string{"a", "b"}, s.ClusterIDs())

	assert.True(t, s.Dispatch(RemoveDeployment{ClusterID: "a"}))
	_, ok := s.Get("a")
	assert.False(t, ok)
	assert.Equal(t, []string{"b"}, s.ClusterIDs())
}

func TestStoreDispatchAfterStop(t *testing.T) {
	s := NewStore()
	s.Start()
	s.Stop()

	assert.False(t, s.Dispatch(RegisterCluster{ClusterID: "C1"}))
	_, ok := s.Get("C1")
	assert.False(t, ok)
}

func TestStoreDispatchReportsChange(t *testing.T) {
	s := newTestStore(t)

	assert.True(t, s.Dispatch(RegisterCluster{ClusterID: "C1"}))
	assert.False(t, s.Dispatch(RegisterCluster{ClusterID: "C1"}))
	assert.True(t, s.Dispatch(SetConfiguring{ClusterID: "C1", Configuring: true}))
	assert.False(t, s.Dispatch(SetConfiguring{ClusterID: "missing", Configuring: true}))
}
