package api

import (
	"sync"

	"github.com/flowlayer/engine/pkg/events"
)

// sseSubscriberBuffer bounds how many unread events a slow SSE client
// falls behind by. Once a client's buffer is full, publish drops further
// events for that client instead of blocking, so a stalled client never
// delays the run or another subscriber.
const sseSubscriberBuffer = 64

// eventBroadcaster fans out one run's events.Bus to any number of SSE
// clients that attach after the run has already started -- the engine's
// own Bus only delivers to subscribers registered before Publish runs,
// so the API layer re-broadcasts from its single internal subscription.
type eventBroadcaster struct {
	mu     sync.Mutex
	subs   map[chan events.Event]struct{}
	closed bool
}

func newEventBroadcaster() *eventBroadcaster {
	return &eventBroadcaster{subs: make(map[chan events.Event]struct{})}
}

func (b *eventBroadcaster) subscribe() chan events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan events.Event, sseSubscriberBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[ch] = struct{}{}
	return ch
}

func (b *eventBroadcaster) unsubscribe(ch chan events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
	}
}

func (b *eventBroadcaster) publish(ev events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for ch := range b.subs {
		select {
		case ch <- ev:
		default: // drop rather than block the run on a stalled SSE client
		}
	}
}

func (b *eventBroadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
