package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cuemby/launcher/pkg/events"
	"github.com/cuemby/launcher/pkg/orchestrator"
	"github.com/cuemby/launcher/pkg/types"
	"github.com/gorilla/websocket"
)

// DefaultTimeout bounds every request except Watch
const DefaultTimeout = 10 * time.Second

// ErrNotFound is returned when the server answers 404
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx reply from the server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Is makes errors.Is(err, ErrNotFound) work for 404 replies
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client talks to the read-only API of a running launcher
type Client struct {
	base   *url.URL
	http   *http.Client
	dialer *websocket.Dialer
}

// NewClient creates a client for addr, given as host:port or as a URL
func NewClient(addr string) (*Client, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	base, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid server address: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", base.Scheme)
	}

	return &Client{
		base:   base,
		http:   &http.Client{Timeout: DefaultTimeout},
		dialer: &websocket.Dialer{HandshakeTimeout: DefaultTimeout},
	}, nil
}

// Deployments returns the deployment state of every tracked cluster
func (c *Client) Deployments(ctx context.Context) (map[string]*types.DeploymentState, error) {
	var out map[string]*types.DeploymentState
	if err := c.get(ctx, "/v1/deployments", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Deployment returns the deployment state of one cluster
func (c *Client) Deployment(ctx context.Context, clusterID string) (*types.DeploymentState, error) {
	var out types.DeploymentState
	if err := c.get(ctx, "/v1/deployments/"+url.PathEscape(clusterID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Clusters lists the registered clusters
func (c *Client) Clusters(ctx context.Context) ([]*types.Cluster, error) {
	var out []*types.Cluster
	if err := c.get(ctx, "/v1/clusters", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Workloads lists the engine workloads of one cluster
func (c *Client) Workloads(ctx context.Context, clusterID string) ([]types.Workload, error) {
	var out []types.Workload
	if err := c.get(ctx, "/v1/clusters/"+url.PathEscape(clusterID)+"/workloads", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Notifications returns the most recent user notifications, oldest first
func (c *Client) Notifications(ctx context.Context) ([]orchestrator.Notification, error) {
	var out []orchestrator.Notification
	if err := c.get(ctx, "/v1/notifications", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Watch streams events to fn until ctx ends, the server closes the stream,
// or fn returns an error. An empty clusterID streams every cluster.
func (c *Client) Watch(ctx context.Context, clusterID string, fn func(*events.Event) error) error {
	u := c.endpoint("/v1/events")
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if clusterID != "" {
		u.RawQuery = url.Values{"cluster": {clusterID}}.Encode()
	}

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return decodeError(resp)
		}
		return fmt.Errorf("failed to open event stream: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage when ctx ends
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("event stream: %w", err)
		}

		var event events.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return fmt.Errorf("failed to decode event: %w", err)
		}
		if err := fn(&event); err != nil {
			return err
		}
	}
}

func (c *Client) endpoint(path string) *url.URL {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return &u
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path).String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var reply struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &reply) == nil && reply.Error != "" {
		msg = reply.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
