package events

import (
	"sync"
	"time"

	"github.com/cuemby/launcher/pkg/metrics"
	"github.com/cuemby/launcher/pkg/types"
	"github.com/google/uuid"
)

// Channel names a push event stream
type Channel string

const (
	ChannelSystemStatus       Channel = "cluster.system-status"
	ChannelAppStatus          Channel = "cluster.app-status"
	ChannelEngineStatus       Channel = "cluster.engine-status"
	ChannelK8Dashboard        Channel = "cluster.k8-dashboard"
	ChannelK8DashboardError   Channel = "cluster.k8-dashboard.error"
	ChannelIPFSDashboard      Channel = "shell.ipfs-dashboard"
	ChannelIPFSDashboardError Channel = "shell.ipfs-dashboard.error"
	ChannelAdminAccess        Channel = "engine.admin-access"
	ChannelAdminAccessError   Channel = "engine.admin-access.error"
)

// StatusChannel returns the push channel carrying point updates for kind
func StatusChannel(kind types.StatusKind) (Channel, bool) {
	switch kind {
	case types.KindSystem:
		return ChannelSystemStatus, true
	case types.KindApp:
		return ChannelAppStatus, true
	case types.KindEngine:
		return ChannelEngineStatus, true
	}
	return "", false
}

// Event is one push message. Status channels carry Entry; dashboard and
// admin channels carry Data on success and Error on the .error variant.
type Event struct {
	ID        string             `json:"id"`
	Channel   Channel            `json:"channel"`
	ClusterID string             `json:"cluster_id"`
	Timestamp time.Time          `json:"timestamp"`
	Entry     *types.StatusEntry `json:"entry,omitempty"`
	Data      string             `json:"data,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Broker fans events out to every subscriber. Delivery never blocks the
// publisher loop. A plain subscriber whose buffer is full misses the event;
// a queued subscriber receives every event in publish order.
type Broker struct {
	subscribers map[Subscriber]bool
	queued      map[Subscriber]*queue
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		queued:      make(map[Subscriber]*queue),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker. Publish calls made afterwards are discarded.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
}

// Subscribe creates a new subscription and returns a channel
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// SubscribeQueued creates a subscription that never misses an event.
// Events wait in an unbounded queue until the subscriber reads them.
func (b *Broker) SubscribeQueued() Subscriber {
	q := newQueue()

	b.mu.Lock()
	b.queued[q.out] = q
	b.mu.Unlock()

	go q.pump()
	return q.out
}

// Unsubscribe removes a subscription. The channel is closed once no more
// events can be delivered on it.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if q, ok := b.queued[sub]; ok {
		delete(b.queued, sub)
		close(q.done)
		return
	}
	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes an event to all subscribers
func (b *Broker) Publish(event *Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
		metrics.EventsPublished.WithLabelValues(string(event.Channel)).Inc()
	case <-b.stopCh:
	}
}

// PublishStatus publishes a point update for one status entry
func (b *Broker) PublishStatus(clusterID string, kind types.StatusKind, entry types.StatusEntry) {
	channel, ok := StatusChannel(kind)
	if !ok {
		return
	}
	b.Publish(&Event{Channel: channel, ClusterID: clusterID, Entry: &entry})
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			metrics.EventsDropped.Inc()
		}
	}
	for _, q := range b.queued {
		q.push(event)
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers) + len(b.queued)
}

// queue buffers events for one queued subscriber. Only pump sends on out,
// and pump closes it when done is closed.
type queue struct {
	mu      sync.Mutex
	pending []*Event
	wake    chan struct{}
	done    chan struct{}
	out     Subscriber
}

func newQueue() *queue {
	return &queue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		out:  make(Subscriber),
	}
}

func (q *queue) push(event *Event) {
	q.mu.Lock()
	q.pending = append(q.pending, event)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *queue) pump() {
	defer close(q.out)

	for {
		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		q.mu.Unlock()

		for _, event := range batch {
			select {
			case q.out <- event:
			case <-q.done:
				return
			}
		}

		select {
		case <-q.wake:
		case <-q.done:
			return
		}
	}
}
