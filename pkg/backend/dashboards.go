package backend

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/cuemby/launcher/pkg/events"
	"github.com/cuemby/launcher/pkg/health"
	"github.com/cuemby/launcher/pkg/log"
	"github.com/cuemby/launcher/pkg/types"
)

// Scripts build the shell commands behind dashboards and admin access
type Scripts struct {
	// K8Dashboard keeps running and prints the dashboard URL
	K8Dashboard func(c *types.Cluster) string
	// IPFSDashboard keeps running a port-forward to the IPFS web UI
	IPFSDashboard func(c *types.Cluster) string
	// AdminAccess exits zero once the engine admin panel can be used
	AdminAccess func(c *types.Cluster) string
}

// IPFSLocalPort is where the IPFS web UI is forwarded to
const IPFSLocalPort = 5001

func kubeContext(c *types.Cluster) string {
	if c.Type == types.ClusterTypeMicroK8s {
		return "microk8s"
	}
	return "minikube"
}

func release(c *types.Cluster) string {
	if r := c.Configs[types.ConfigReleaseName]; r != "" {
		return r
	}
	return health.DefaultRelease
}

// DefaultScripts returns the commands used against local clusters
func DefaultScripts() Scripts {
	return Scripts{
		K8Dashboard: func(c *types.Cluster) string {
			if c.Type == types.ClusterTypeMicroK8s {
				return "microk8s dashboard-proxy"
			}
			return "minikube dashboard --url"
		},
		IPFSDashboard: func(c *types.Cluster) string {
			return fmt.Sprintf("kubectl --context %s port-forward svc/%s-ipfs %d:%d",
				kubeContext(c), release(c), IPFSLocalPort, IPFSLocalPort)
		},
		AdminAccess: func(c *types.Cluster) string {
			return fmt.Sprintf("kubectl --context %s rollout status deployment/%s-api --timeout=120s",
				kubeContext(c), release(c))
		},
	}
}

func (s Scripts) withDefaults() Scripts {
	d := DefaultScripts()
	if s.K8Dashboard == nil {
		s.K8Dashboard = d.K8Dashboard
	}
	if s.IPFSDashboard == nil {
		s.IPFSDashboard = d.IPFSDashboard
	}
	if s.AdminAccess == nil {
		s.AdminAccess = d.AdminAccess
	}
	return s
}

var (
	urlPattern        = regexp.MustCompile(`https?://[^\s"']+`)
	forwardingPattern = regexp.MustCompile(`Forwarding from (\S+:\d+)`)
)

func dashboardURL(line string) (string, bool) {
	u := urlPattern.FindString(line)
	return u, u != ""
}

func forwardedURL(line string) (string, bool) {
	m := forwardingPattern.FindStringSubmatch(line)
	if m == nil {
		return dashboardURL(line)
	}
	return "http://" + m[1] + "/webui", true
}

type forward struct {
	name    string
	script  string
	match   func(line string) (string, bool)
	ok      events.Channel
	failed  events.Channel
	cluster *types.Cluster
}

// ConfigureK8Dashboard starts the Kubernetes dashboard in the background.
// The URL is published once the dashboard answers.
func (l *Local) ConfigureK8Dashboard(_ context.Context, c *types.Cluster) error {
	return l.startForward(forward{
		name:    "k8-dashboard",
		script:  l.scripts.K8Dashboard(c),
		match:   dashboardURL,
		ok:      events.ChannelK8Dashboard,
		failed:  events.ChannelK8DashboardError,
		cluster: c.Clone(),
	})
}

// ConfigureIPFSDashboard forwards the IPFS web UI in the background
func (l *Local) ConfigureIPFSDashboard(_ context.Context, c *types.Cluster) error {
	if c.Variables[types.VariableRippleStack] != "true" {
		return fmt.Errorf("ripple stack is not enabled for %s", c.Name)
	}
	return l.startForward(forward{
		name:    "ipfs-dashboard",
		script:  l.scripts.IPFSDashboard(c),
		match:   forwardedURL,
		ok:      events.ChannelIPFSDashboard,
		failed:  events.ChannelIPFSDashboardError,
		cluster: c.Clone(),
	})
}

// EnsureAdminAccess waits in the background for the engine API to roll out
func (l *Local) EnsureAdminAccess(_ context.Context, c *types.Cluster) error {
	cluster := c.Clone()
	script := l.scripts.AdminAccess(cluster)

	l.goBackground(func() {
		result := health.NewExecChecker(script).WithTimeout(l.readyTimeout).Check(l.ctx)
		if !result.Healthy {
			l.events.Publish(&events.Event{
				Channel:   events.ChannelAdminAccessError,
				ClusterID: cluster.ID,
				Error:     result.Message,
			})
			return
		}
		l.events.Publish(&events.Event{Channel: events.ChannelAdminAccess, ClusterID: cluster.ID})
	})
	return nil
}

// startForward launches a long-running command for the cluster, replacing
// any previous one with the same name
func (l *Local) startForward(f forward) error {
	key := f.cluster.ID + "/" + f.name

	ctx, cancel := context.WithCancel(l.ctx)
	l.mu.Lock()
	if previous, ok := l.forwards[key]; ok {
		previous()
	}
	l.forwards[key] = cancel
	l.mu.Unlock()

	logger := log.WithClusterID(f.cluster.ID).With().Str("forward", f.name).Logger()

	pr, pw := io.Pipe()
	cmd := exec.CommandContext(ctx, l.shell, "-c", f.script)
	cmd.Stdout = pw
	cmd.Stderr = pw
	cmd.WaitDelay = 2 * time.Second
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start %s: %w", f.name, err)
	}

	l.goBackground(func() {
		err := cmd.Wait()
		_ = pw.Close()
		logger.Debug().Err(err).Msg("Forward exited")
	})

	l.goBackground(func() {
		url, last := scanURL(pr, f.match)
		// keep draining so the command never blocks on output
		go func() { _, _ = io.Copy(io.Discard, pr) }()

		if url == "" {
			msg := fmt.Sprintf("%s exited before reporting a URL", f.name)
			if last != "" {
				msg += ": " + last
			}
			l.publishForward(f, "", msg)
			return
		}

		readyCtx, readyCancel := context.WithTimeout(ctx, l.readyTimeout)
		defer readyCancel()
		if err := health.WaitHealthy(readyCtx, health.NewHTTPChecker(url), l.readyInterval); err != nil {
			l.publishForward(f, "", err.Error())
			return
		}

		logger.Info().Str("url", url).Msg("Dashboard ready")
		l.publishForward(f, url, "")
	})
	return nil
}

func (l *Local) publishForward(f forward, url, errMsg string) {
	if errMsg != "" {
		l.events.Publish(&events.Event{Channel: f.failed, ClusterID: f.cluster.ID, Error: errMsg})
		return
	}
	l.events.Publish(&events.Event{Channel: f.ok, ClusterID: f.cluster.ID, Data: url})
}

// StopForwards stops every port-forward of a cluster
func (l *Local) StopForwards(clusterID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, cancel := range l.forwards {
		if strings.HasPrefix(key, clusterID+"/") {
			cancel()
			delete(l.forwards, key)
		}
	}
}

// scanURL reads lines until match finds a URL. It returns the URL, or ""
// and the last line read when the output ends first.
func scanURL(r io.Reader, match func(string) (string, bool)) (url, last string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		last = line
		if u, ok := match(line); ok {
			return u, last
		}
	}
	return "", last
}
