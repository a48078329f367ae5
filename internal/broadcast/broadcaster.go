// Package broadcast holds the authoritative show-state snapshot and fans it
// out to any number of subscribers without ever blocking the publisher.
package broadcast

import (
	"log/slog"
	"sync"

	"tickertalk/internal/domain"
)

// Subscription is one registered snapshot consumer. C delivers snapshots in
// version order but may skip intermediates: only the latest snapshot is
// guaranteed to arrive eventually.
type Subscription struct {
	C  <-chan domain.Snapshot
	id uint64
	ch chan domain.Snapshot
}

// Broadcaster versions and distributes snapshots. There is exactly one
// publisher (the show director) and arbitrarily many subscribers.
type Broadcaster struct {
	mu      sync.Mutex
	subs    map[uint64]*Subscription
	nextID  uint64
	version uint64
	current domain.Snapshot
	primed  bool
	closed  bool
	logger  *slog.Logger
}

// New creates an empty broadcaster.
func New(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[uint64]*Subscription),
		logger: logger,
	}
}

// Publish assigns the next version to snap, stores it as current, and offers
// it to every subscriber. A slow subscriber has its stale pending snapshot
// replaced rather than stalling the publisher.
func (b *Broadcaster) Publish(snap domain.Snapshot) domain.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return snap
	}

	b.version++
	snap.Version = b.version
	b.current = snap
	b.primed = true

	for _, sub := range b.subs {
		offer(sub.ch, snap)
	}

	return snap
}

// offer places snap in the subscriber's mailbox, evicting a pending older
// snapshot if the consumer hasn't drained it yet.
func offer(ch chan domain.Snapshot, snap domain.Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Subscribe registers a new consumer. The most recent snapshot at
// subscription time, if any, is delivered first.
func (b *Broadcaster) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan domain.Snapshot, 1)
	b.nextID++
	sub := &Subscription{C: ch, id: b.nextID, ch: ch}

	if b.closed {
		close(ch)
		return sub
	}

	b.subs[sub.id] = sub
	if b.primed {
		ch <- b.current
	}

	return sub
}

// Unsubscribe removes a registration and closes its channel.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub.id]; ok {
		delete(b.subs, sub.id)
		close(sub.ch)
	}
}

// Current returns the latest published snapshot, if any.
func (b *Broadcaster) Current() (domain.Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current, b.primed
}

// SubscriberCount returns the number of registered subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close drops all registrations and closes their channels. Publish becomes
// a no-op afterwards.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
