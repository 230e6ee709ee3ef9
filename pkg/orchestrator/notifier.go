package orchestrator

import (
	"sync"

	"github.com/cuemby/launcher/pkg/log"
	"github.com/rs/zerolog"
)

// LogNotifier writes notifications to the log
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a notifier backed by the global logger
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: log.WithComponent("notifier")}
}

// Notify implements Notifier
func (n *LogNotifier) Notify(note Notification) {
	event := n.logger.Info()
	if note.Severity == SeverityError {
		event = n.logger.Error()
	}
	event.Str("cluster_id", note.ClusterID).Msg(note.Message)
}

// RecordingNotifier keeps the most recent notifications in memory so they can
// be listed by the API
type RecordingNotifier struct {
	mu    sync.Mutex
	limit int
	notes []Notification
	next  Notifier
}

// NewRecordingNotifier keeps up to limit notifications and forwards each one to next
func NewRecordingNotifier(limit int, next Notifier) *RecordingNotifier {
	if limit <= 0 {
		limit = 50
	}
	return &RecordingNotifier{limit: limit, next: next}
}

// Notify implements Notifier
func (n *RecordingNotifier) Notify(note Notification) {
	n.mu.Lock()
	n.notes = append(n.notes, note)
	if len(n.notes) > n.limit {
		n.notes = n.notes[len(n.notes)-n.limit:]
	}
	n.mu.Unlock()

	if n.next != nil {
		n.next.Notify(note)
	}
}

// Notifications returns the recorded notifications, oldest first
func (n *RecordingNotifier) Notifications() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]Notification, len(n.notes))
	copy(out, n.notes)
	return out
}
