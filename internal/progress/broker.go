package progress

import (
	"sync"
	"time"

	"github.com/reviewloop/reviewloop/internal/metrics"
)

// Event statuses, in the order a formatting run produces them. Connected is
// pushed once on registration; Completed and Failed are terminal.
const (
	StatusConnected  = "connected"
	StatusStarted    = "started"
	StatusProcessing = "processing"
	StatusSaving     = "saving"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Event is one progress notification for a batch run. Events are transient;
// nothing here is persisted.
type Event struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Progress  int       `json:"progress,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Status == StatusCompleted || e.Status == StatusFailed
}

const channelBuffer = 16

// Broker keeps at most one progress channel per batch id. Registration is
// last-writer-wins: opening a channel for an id that already has one replaces
// the entry without closing the old channel (the prior observer owns it).
// Safe for concurrent use by pipelines and observer connections.
type Broker struct {
	mu   sync.Mutex
	subs map[string]chan Event
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]chan Event)}
}

// Open registers a fresh channel for batchID, replacing any prior registration,
// and immediately pushes a connected event.
func (b *Broker) Open(batchID string) <-chan Event {
	ch := make(chan Event, channelBuffer)

	b.mu.Lock()
	if _, had := b.subs[batchID]; !had {
		metrics.ProgressSubscribers.Inc()
	}
	b.subs[batchID] = ch
	// Send under the lock so a concurrent Close cannot close the channel
	// mid-send; the channel is fresh and buffered, so this never blocks.
	ch <- Event{Status: StatusConnected, Message: "progress stream connected", Timestamp: time.Now().UTC()}
	b.mu.Unlock()

	return ch
}

// Publish delivers an event to the channel registered for batchID, if any.
// Publishing is best-effort: no registration or a full channel drops the event
// without error.
func (b *Broker) Publish(batchID string, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	// Send under the lock so a concurrent Close cannot close the channel
	// mid-send; the send is non-blocking, so the lock is never held long.
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.subs[batchID]
	if !ok {
		return
	}

	select {
	case ch <- ev:
		metrics.ProgressEvents.Inc()
	default:
	}
}

// Close ends the channel registered for batchID and removes the registration.
// Closing an id with no registration is a no-op.
func (b *Broker) Close(batchID string) {
	b.mu.Lock()
	ch, ok := b.subs[batchID]
	if ok {
		delete(b.subs, batchID)
		metrics.ProgressSubscribers.Dec()
	}
	b.mu.Unlock()

	if ok {
		close(ch)
	}
}

// CloseAfter schedules Close after the given delay, giving the observer time
// to drain the terminal event before the stream ends.
func (b *Broker) CloseAfter(batchID string, delay time.Duration) {
	time.AfterFunc(delay, func() { b.Close(batchID) })
}

// Unregister removes the registration for batchID without closing the channel.
// Used when the observer disconnects first and owns its channel's teardown.
// The channel guard keeps a stale observer from tearing down a replacement
// registration for the same batch.
func (b *Broker) Unregister(batchID string, ch <-chan Event) {
	b.mu.Lock()
	if cur, ok := b.subs[batchID]; ok && (<-chan Event)(cur) == ch {
		delete(b.subs, batchID)
		metrics.ProgressSubscribers.Dec()
	}
	b.mu.Unlock()
}
