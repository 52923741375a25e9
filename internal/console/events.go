package console

import "sync"

// Event types pushed to the console front-end over the events stream.
const (
	EventTenantSwitched   = "tenant_switched"
	EventCatalogRefreshed = "catalog_refreshed"
	EventSignedOut        = "signed_out"
)

// Event is one scope-change notification.
type Event struct {
	Type     string `json:"type"`
	TenantID string `json:"tenant_id,omitempty"`
}

// Broadcaster fans events out to subscribers. Slow subscribers drop
// events rather than block the publisher.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Event)}
}

// Subscribe registers a listener. The returned cancel func must be called
// to release the subscription.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Event, 16)
	b.subs[id] = ch
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers e to every subscriber that has buffer room.
func (b *Broadcaster) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
