package deployment

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cuemby/launcher/pkg/log"
	"github.com/cuemby/launcher/pkg/metrics"
	"github.com/cuemby/launcher/pkg/types"
	"github.com/rs/zerolog"
)

// Change describes one applied action, delivered to watchers
type Change struct {
	ClusterID string
	Action    string
}

// Watcher is a channel that receives applied changes
type Watcher chan Change

// Store owns every DeploymentState. All writes go through Dispatch and are
// applied one at a time by a single goroutine, so merges never interleave.
type Store struct {
	mailbox chan *envelope
	stopCh  chan struct{}
	state   atomic.Pointer[State]

	mu       sync.RWMutex
	watchers map[Watcher]struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	logger    zerolog.Logger
}

// envelope carries one action through the mailbox. changed is set by the
// run loop before done is closed.
type envelope struct {
	action  Action
	changed bool
	done    chan struct{}
}

// NewStore creates an empty store. Call Start before dispatching.
func NewStore() *Store {
	s := &Store{
		mailbox:  make(chan *envelope),
		stopCh:   make(chan struct{}),
		watchers: make(map[Watcher]struct{}),
		logger:   log.WithComponent("deployment-store"),
	}
	empty := State{}
	s.state.Store(&empty)
	return s
}

// Start begins applying dispatched actions
func (s *Store) Start() {
	s.startOnce.Do(func() {
		go s.run()
	})
}

// Stop stops the store. Dispatch calls made afterwards are dropped.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// Dispatch hands an action to the store and waits until it has been
// applied. It reports whether the state changed.
func (s *Store) Dispatch(action Action) bool {
	env := &envelope{action: action, done: make(chan struct{})}

	select {
	case s.mailbox <- env:
	case <-s.stopCh:
		s.logger.Warn().
			Str("action", action.Name()).
			Str("cluster_id", action.Cluster()).
			Msg("Store stopped, dropping action")
		return false
	}

	// The mailbox is unbuffered: once received, the action is always applied.
	<-env.done
	return env.changed
}

func (s *Store) run() {
	for {
		select {
		case env := <-s.mailbox:
			s.apply(env)
		case <-s.stopCh:
			s.closeWatchers()
			return
		}
	}
}

func (s *Store) apply(env *envelope) {
	defer close(env.done)

	name := env.action.Name()
	metrics.ActionsDispatched.WithLabelValues(name).Inc()

	next, changed := Reduce(*s.state.Load(), env.action)
	env.changed = changed
	if !changed {
		metrics.ActionsIgnored.WithLabelValues(name).Inc()
		s.logger.Debug().
			Str("action", name).
			Str("cluster_id", env.action.Cluster()).
			Msg("Action left state unchanged")
		return
	}

	s.state.Store(&next)
	metrics.TrackedClusters.Set(float64(len(next)))
	s.notify(Change{ClusterID: env.action.Cluster(), Action: name})
}

// Get returns a copy of the deployment for clusterID
func (s *Store) Get(clusterID string) (*types.DeploymentState, bool) {
	d, ok := (*s.state.Load())[clusterID]
	if !ok {
		return nil, false
	}
	return d.Clone(), true
}

// Snapshot returns a copy of every tracked deployment
func (s *Store) Snapshot() map[string]*types.DeploymentState {
	current := *s.state.Load()
	out := make(map[string]*types.DeploymentState, len(current))
	for id, d := range current {
		out[id] = d.Clone()
	}
	return out
}

// ClusterIDs returns the tracked cluster ids in sorted order
func (s *Store) ClusterIDs() []string {
	current := *s.state.Load()
	ids := make([]string, 0, len(current))
	for id := range current {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Watch subscribes to applied changes. Delivery is best effort: a watcher
// that falls behind misses changes and should re-read the snapshot. The
// returned function cancels the subscription.
func (s *Store) Watch() (Watcher, func()) {
	w := make(Watcher, 64)

	s.mu.Lock()
	s.watchers[w] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return w, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.watchers[w]; ok {
				delete(s.watchers, w)
				close(w)
			}
		})
	}
}

func (s *Store) notify(change Change) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for w := range s.watchers {
		select {
		case w <- change:
		default:
		}
	}
}

func (s *Store) closeWatchers() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for w := range s.watchers {
		delete(s.watchers, w)
		close(w)
	}
}
