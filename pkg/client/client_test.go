package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuemby/launcher/pkg/api"
	"github.com/cuemby/launcher/pkg/events"
	"github.com/cuemby/launcher/pkg/orchestrator"
	"github.com/cuemby/launcher/pkg/storage"
	"github.com/cuemby/launcher/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deployments map[string]*types.DeploymentState

func (d deployments) State() map[string]*types.DeploymentState { return d }

func (d deployments) Deployment(id string) (*types.DeploymentState, bool) {
	s, ok := d[id]
	return s, ok
}

type registry []*types.Cluster

func (r registry) ListClusters() ([]*types.Cluster, error) { return r, nil }

func (r registry) GetCluster(id string) (*types.Cluster, error) {
	for _, c := range r {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", storage.ErrClusterNotFound, id)
}

type notes []orchestrator.Notification

func (n notes) Notifications() []orchestrator.Notification { return n }

func newTestClient(t *testing.T, broker *events.Broker) *Client {
	t.Helper()

	d := types.NewDeploymentState("c1")
	d.SystemStatus = []types.StatusEntry{{ID: "node", Label: "Node.js", Status: types.StatusConfigured}}

	s, err := api.NewServer(api.Config{
		Deployments:   deployments{"c1": d},
		Registry:      registry{{ID: "c1", Name: "dev", Type: types.ClusterTypeMinikube}},
		Broker:        broker,
		Notifications: notes{{ClusterID: "c1", Severity: orchestrator.SeverityError, Message: "configure failed"}},
	})
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	c, err := NewClient(ts.URL)
	require.NoError(t, err)
	return c
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("127.0.0.1:9440")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9440/v1/events", c.endpoint("/v1/events").String())

	_, err = NewClient("ftp://example.com")
	assert.Error(t, err)
}

func TestReadEndpoints(t *testing.T) {
	c := newTestClient(t, nil)
	ctx := context.Background()

	all, err := c.Deployments(ctx)
	require.NoError(t, err)
	require.Contains(t, all, "c1")
	assert.Equal(t, "Node.js", all["c1"].SystemStatus[0].Label)

	d, err := c.Deployment(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusConfigured, d.SystemStatus[0].Status)

	clusters, err := c.Clusters(ctx)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, "dev", clusters[0].Name)

	got, err := c.Notifications(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "configure failed", got[0].Message)
}

func TestNotFound(t *testing.T) {
	c := newTestClient(t, nil)

	_, err := c.Deployment(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "missing")

	// workload queries are disabled on this server
	_, err = c.Workloads(context.Background(), "c1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWatch(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	c := newTestClient(t, broker)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan *events.Event, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, "c1", func(e *events.Event) error {
			received <- e
			return errors.New("stop")
		})
	}()

	require.Eventually(t, func() bool { return broker.SubscriberCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	broker.PublishStatus("c2", types.KindApp, types.StatusEntry{ID: "redis", Status: types.StatusError})
	broker.PublishStatus("c1", types.KindApp, types.StatusEntry{ID: "redis", Status: types.StatusConfigured})

	select {
	case e := <-received:
		assert.Equal(t, "c1", e.ClusterID)
		assert.Equal(t, events.ChannelAppStatus, e.Channel)
		assert.Equal(t, "redis", e.Entry.ID)
	case <-ctx.Done():
		t.Fatal("no event received")
	}
	assert.EqualError(t, <-done, "stop")
}

func TestWatchStopsWithContext(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	c := newTestClient(t, broker)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, "", func(*events.Event) error { return nil })
	}()

	require.Eventually(t, func() bool { return broker.SubscriberCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
}
