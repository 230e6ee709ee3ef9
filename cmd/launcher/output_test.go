package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cuemby/launcher/pkg/events"
	"github.com/cuemby/launcher/pkg/orchestrator"
	"github.com/cuemby/launcher/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettled(t *testing.T) {
	d := types.NewDeploymentState("C1")
	d.SystemStatus = []types.StatusEntry{{ID: "node", Status: types.StatusConfigured}}
	assert.True(t, settled(d))

	d.IsFetchingStatuses = true
	assert.False(t, settled(d))

	d.IsFetchingStatuses = false
	d.EngineStatus = []types.StatusEntry{{ID: "engine", Status: types.StatusChecking}}
	assert.False(t, settled(d))
}

func TestContainerSummary(t *testing.T) {
	ready, restarts := containerSummary(types.WorkloadPod{
		Containers: []types.WorkloadContainer{
			{Name: "api", Ready: true, Restarts: 2},
			{Name: "sidecar", Restarts: 1},
		},
	})
	assert.Equal(t, "1/2", ready)
	assert.Equal(t, int32(3), restarts)

	ready, restarts = containerSummary(types.WorkloadPod{})
	assert.Equal(t, "0/0", ready)
	assert.Zero(t, restarts)
}

func TestAge(t *testing.T) {
	now := time.Now()
	tests := []struct {
		created time.Time
		want    string
	}{
		{time.Time{}, "-"},
		{now.Add(-30 * time.Second), "30s"},
		{now.Add(-5 * time.Minute), "5m"},
		{now.Add(-3 * time.Hour), "3h"},
		{now.Add(-72 * time.Hour), "3d"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, age(tt.created))
	}
}

func TestPrintDeployment(t *testing.T) {
	d := types.NewDeploymentState("C1")
	d.SystemStatus = []types.StatusEntry{{ID: "node", Label: "Node.js", Status: types.StatusConfigured}}
	d.GitStatus[types.RepoEngine] = types.NewFetchable(&types.GitStatus{Branch: "main", Commit: "abc1234", Dirty: true, Ahead: 1}, false, "")
	d.GitStatus[types.RepoOps] = types.NewFetchable[*types.GitStatus](nil, false, "not a git repository")

	var buf bytes.Buffer
	printDeployment(&buf, d)
	out := buf.String()

	assert.Contains(t, out, "System")
	assert.Contains(t, out, "Node.js")
	assert.NotContains(t, out, "Apps")
	assert.Contains(t, out, "main@abc1234 (dirty)")
	assert.Contains(t, out, "+1 -0")
	assert.Contains(t, out, "not a git repository")

	buf.Reset()
	printDeployment(&buf, nil)
	assert.Equal(t, "No deployment state.\n", buf.String())
}

func TestPrivilegeHint(t *testing.T) {
	err := privilegeHint(orchestrator.ErrPrivilegeRequired)
	assert.ErrorIs(t, err, orchestrator.ErrPrivilegeRequired)
	assert.Contains(t, err.Error(), "launcher password set")

	other := errors.New("boom")
	assert.Equal(t, other, privilegeHint(other))
}

func TestWaitItem(t *testing.T) {
	calls := 0
	item, err := waitItem(context.Background(), time.Second, func() (types.FetchableItem[string], bool) {
		calls++
		return types.NewFetchable("http://127.0.0.1:8001", calls < 2, ""), true
	})
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8001", item.Data)

	_, err = waitItem(context.Background(), 50*time.Millisecond, func() (types.FetchableItem[bool], bool) {
		return types.FetchableItem[bool]{}, false
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFormatEvent(t *testing.T) {
	ts := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

	line := formatEvent(&events.Event{
		Channel:   events.ChannelSystemStatus,
		ClusterID: "c1",
		Timestamp: ts,
		Entry:     &types.StatusEntry{ID: "node", Status: types.StatusError, Detail: "exit status 1"},
	})
	assert.Equal(t, "15:04:05  c1  cluster.system-status  node=Error  exit status 1", line)

	line = formatEvent(&events.Event{Channel: events.ChannelK8DashboardError, ClusterID: "c1", Timestamp: ts, Error: "timeout"})
	assert.Equal(t, "15:04:05  c1  cluster.k8-dashboard.error  error: timeout", line)
}
