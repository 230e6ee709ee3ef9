package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/launcher/pkg/events"
	"github.com/cuemby/launcher/pkg/health"
	"github.com/cuemby/launcher/pkg/log"
	"github.com/cuemby/launcher/pkg/metrics"
	"github.com/cuemby/launcher/pkg/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoConfigureScript is returned when a cluster has no configure script set
	ErrNoConfigureScript = errors.New("configure script not set")
	// ErrUnsupportedCluster is returned for an unknown cluster type
	ErrUnsupportedCluster = errors.New("unsupported cluster type")
)

// Publisher receives the results of background work
type Publisher interface {
	Publish(e *events.Event)
	PublishStatus(clusterID string, kind types.StatusKind, entry types.StatusEntry)
}

// Config holds local backend settings
type Config struct {
	Events Publisher
	Probe  health.Config

	// Shell runs the configure script (default: bash)
	Shell   string
	Scripts Scripts

	// GuardFor overrides the runtime guard of a cluster type
	GuardFor func(types.ClusterType) health.Guard
	// Definitions overrides the probe catalog of a cluster
	Definitions func(c *types.Cluster) ([]health.Definition, error)

	// ReadyTimeout bounds how long a dashboard may take to answer
	ReadyTimeout  time.Duration
	ReadyInterval time.Duration
}

// Local runs cluster commands on this host
type Local struct {
	events   Publisher
	probe    health.Config
	shell    string
	scripts  Scripts
	guardFor func(types.ClusterType) health.Guard
	defs     func(c *types.Cluster) ([]health.Definition, error)

	readyTimeout  time.Duration
	readyInterval time.Duration

	mu        sync.Mutex
	passwords map[string]string
	forwards  map[string]context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger zerolog.Logger
}

// NewLocal creates a local backend
func NewLocal(cfg Config) (*Local, error) {
	if cfg.Events == nil {
		return nil, fmt.Errorf("event publisher is required")
	}

	probe := cfg.Probe
	defaults := health.DefaultConfig()
	if probe.Timeout == 0 {
		probe.Timeout = defaults.Timeout
	}
	if probe.Concurrency <= 0 {
		probe.Concurrency = defaults.Concurrency
	}

	l := &Local{
		events:        cfg.Events,
		probe:         probe,
		shell:         cfg.Shell,
		scripts:       cfg.Scripts,
		guardFor:      cfg.GuardFor,
		defs:          cfg.Definitions,
		readyTimeout:  cfg.ReadyTimeout,
		readyInterval: cfg.ReadyInterval,
		passwords:     make(map[string]string),
		forwards:      make(map[string]context.CancelFunc),
		logger:        log.WithComponent("backend"),
	}
	if l.shell == "" {
		l.shell = health.DefaultShell
	}
	l.scripts = l.scripts.withDefaults()
	if l.guardFor == nil {
		l.guardFor = func(t types.ClusterType) health.Guard { return health.GuardFor(t) }
	}
	if l.defs == nil {
		l.defs = definitions
	}
	if l.readyTimeout == 0 {
		l.readyTimeout = 2 * time.Minute
	}
	if l.readyInterval == 0 {
		l.readyInterval = time.Second
	}

	l.ctx, l.cancel = context.WithCancel(context.Background())
	return l, nil
}

// Close stops background probes and port-forwards and waits for them
func (l *Local) Close() {
	l.cancel()
	l.wg.Wait()
}

func (l *Local) goBackground(fn func()) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		fn()
	}()
}

func definitions(c *types.Cluster) ([]health.Definition, error) {
	if !c.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCluster, c.Type)
	}
	defs := health.Catalog(c.Type, c.Configs[types.ConfigReleaseName])
	return health.Select(defs, c.Variables[types.VariableRippleStack] == "true"), nil
}

// GetClusterStatus returns the declared checks of the cluster, every entry
// Checking. The password is kept for the verification pass that follows.
func (l *Local) GetClusterStatus(_ context.Context, c *types.Cluster, password string) (*types.StatusBundle, error) {
	defs, err := l.defs(c)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.passwords[c.ID] = password
	l.mu.Unlock()

	bundle := health.DeclaredBundle(defs, types.StatusChecking)
	return &bundle, nil
}

// CheckClusterStatus probes every entry of bundle in the background and
// publishes one point update per entry as its probe finishes
func (l *Local) CheckClusterStatus(_ context.Context, c *types.Cluster, bundle *types.StatusBundle) error {
	defs, err := l.defs(c)
	if err != nil {
		return err
	}

	declared := make(map[string]bool, bundle.Len())
	for _, kind := range []types.StatusKind{types.KindSystem, types.KindApp, types.KindEngine} {
		for _, e := range bundle.List(kind) {
			declared[string(kind)+"/"+e.ID] = true
		}
	}
	selected := defs[:0:0]
	for _, d := range defs {
		if declared[string(d.Kind)+"/"+d.ID] {
			selected = append(selected, d)
		}
	}

	l.mu.Lock()
	password := l.passwords[c.ID]
	l.mu.Unlock()

	cluster := c.Clone()
	l.goBackground(func() {
		l.runProbes(l.ctx, cluster, selected, password)
	})
	return nil
}

func (l *Local) runProbes(ctx context.Context, c *types.Cluster, defs []health.Definition, password string) {
	logger := log.WithClusterID(c.ID)
	timer := metrics.NewTimer()
	opts := health.ProbeOptions{
		Guard:    health.NewOnceGuard(l.guardFor(c.Type)),
		Password: password,
		Timeout:  l.probe.Timeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.probe.Concurrency)

	for _, def := range defs {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			probeTimer := metrics.NewTimer()
			result := health.NewChecker(def, opts).Check(gctx)
			entry := health.Entry(def, result)

			metrics.ProbesTotal.WithLabelValues(string(def.Kind), string(entry.Status)).Inc()
			probeTimer.ObserveDurationVec(metrics.ProbeDuration, string(def.Kind))

			l.events.PublishStatus(c.ID, def.Kind, entry)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Warn().Err(err).Msg("Status probes interrupted")
		return
	}
	logger.Debug().
		Int("probes", len(defs)).
		Dur("duration", timer.Duration()).
		Msg("Status probes finished")
}

// ConfigureCluster runs the cluster's configure script. Cluster configs,
// variables and flags are passed as environment variables; the password is
// written to the script's stdin.
func (l *Local) ConfigureCluster(ctx context.Context, c *types.Cluster, password string, flags map[string]string) error {
	script := c.Configs[types.ConfigConfigureScript]
	if script == "" {
		return ErrNoConfigureScript
	}

	logger := log.WithClusterID(c.ID).With().Str("step", "configure").Logger()
	logger.Info().Str("script", script).Msg("Running configure script")

	out := newLineLogger(logger)
	cmd := exec.CommandContext(ctx, l.shell, script)
	cmd.Env = append(os.Environ(), environment(c, flags)...)
	cmd.Stdin = strings.NewReader(password + "\n")
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()
	out.Flush()
	if err != nil {
		if last := out.Last(); last != "" {
			return fmt.Errorf("%w: %s", err, last)
		}
		return err
	}
	return nil
}

// environment renders configs, variables and flags as KEY=value pairs.
// Flags win over variables, which win over configs.
func environment(c *types.Cluster, flags map[string]string) []string {
	merged := make(map[string]string, len(c.Configs)+len(c.Variables)+len(flags))
	for _, m := range []map[string]string{c.Configs, c.Variables, flags} {
		for k, v := range m {
			merged[k] = v
		}
	}

	env := make([]string, 0, len(merged))
	for k, v := range merged {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}
