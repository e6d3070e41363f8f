package relay

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dgnsrekt/audiosniff/internal/media"
	"github.com/dgnsrekt/audiosniff/internal/metrics"
)

const subscriberBufSize = 256

// Feed names published on the broker.
const (
	FeedCaptured = "media_captured"
	FeedRemoved  = "media_removed"
	FeedCleared  = "media_cleared"
)

// Event is one notification fanned out to display surfaces.
type Event struct {
	Feed    string
	Payload string
}

// CapturedMessage is the payload of a media_captured event.
type CapturedMessage struct {
	Type  string       `json:"type"`
	Media media.Record `json:"media"`
}

// Broker fans out events to every subscribed display surface. Publishing
// never blocks: a subscriber whose buffer is full misses the event.
type Broker struct {
	mu   sync.RWMutex
	subs map[int64]chan Event
	seq  atomic.Int64
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[int64]chan Event)}
}

// Subscribe returns a subscription id and its buffered event channel.
func (b *Broker) Subscribe() (int64, <-chan Event) {
	ch := make(chan Event, subscriberBufSize)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	metrics.Subscribers.Inc()
	return id, ch
}

// Unsubscribe closes the channel for id. Unknown ids are ignored.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	ch, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if !ok {
		return
	}
	close(ch)
	metrics.Subscribers.Dec()
}

// Publish offers evt to each subscriber and reports how many accepted it.
func (b *Broker) Publish(evt Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	delivered := 0
	for _, ch := range b.subs {
		select {
		case ch <- evt:
			delivered++
		default:
			metrics.EventsDroppedTotal.WithLabelValues(evt.Feed).Inc()
		}
	}
	return delivered
}

func (b *Broker) ClientCount() int {
	b.mu.RLock()
	n := len(b.subs)
	b.mu.RUnlock()
	return n
}

// NotifyCaptured publishes a media_captured event. Having no subscribers is
// not an error.
func (b *Broker) NotifyCaptured(rec media.Record) {
	b.publishJSON(FeedCaptured, CapturedMessage{Type: "MEDIA_CAPTURED", Media: rec})
}

// NotifyRemoved publishes a media_removed event for id.
func (b *Broker) NotifyRemoved(id string) {
	b.publishJSON(FeedRemoved, map[string]string{"type": "MEDIA_REMOVED", "id": id})
}

// NotifyCleared publishes a media_cleared event.
func (b *Broker) NotifyCleared() {
	b.publishJSON(FeedCleared, map[string]string{"type": "MEDIA_CLEARED"})
}

func (b *Broker) publishJSON(feed string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Debug("broker payload marshal failed", "feed", feed, "error", err)
		return
	}
	b.Publish(Event{Feed: feed, Payload: string(data)})
}
