package notifications

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	"socialfeed/internal/observability"
)

// DefaultBacklog bounds how many undelivered events a subscription holds.
const DefaultBacklog = 256

// ErrSubscriptionClosed is returned by Next once a subscription has ended.
var ErrSubscriptionClosed = errors.New("subscription closed")

// Broker fans events out to subscriptions in-process. Publish never blocks on
// subscribers: each subscription buffers up to its backlog and drops its
// oldest event on overflow.
type Broker struct {
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	backlog int
	seq     uint64
	closed  bool
	now     func() time.Time
}

// NewBroker creates a broker whose subscriptions buffer up to backlog events.
func NewBroker(backlog int) *Broker {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Broker{
		subs:    make(map[*Subscription]struct{}),
		backlog: backlog,
		now:     time.Now,
	}
}

// Publish stamps ev with the next sequence number and delivers it to every
// subscription of its topic. Subscribers see events in publish order.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	b.seq++
	ev.Seq = b.seq
	ev.PublishedAt = b.now()
	observability.EventsPublished.WithLabelValues(string(ev.Topic)).Inc()

	for sub := range b.subs {
		if sub.wants(ev.Topic) {
			sub.push(ev)
		}
	}
}

// Subscribe attaches a new subscription for topics; no topics means all of them.
// Events published before the call are never delivered to it.
func (b *Broker) Subscribe(topics ...Topic) *Subscription {
	sub := &Subscription{
		broker:  b,
		limit:   b.backlog,
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		filters: make(map[Topic]struct{}, len(topics)),
	}
	for _, t := range topics {
		sub.filters[t] = struct{}{}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.once.Do(sub.end)
		return sub
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	observability.ActiveSubscriptions.Inc()
	return sub
}

// SubscriberCount reports the number of live subscriptions.
func (b *Broker) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription and rejects further publishes.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

func (b *Broker) remove(sub *Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return false
	}
	delete(b.subs, sub)
	return true
}

// Subscription is a cancellable stream of events for a fixed topic set.
type Subscription struct {
	broker  *Broker
	filters map[Topic]struct{}
	limit   int

	mu      sync.Mutex
	queue   []Event
	closed  bool
	dropped uint64

	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (s *Subscription) wants(t Topic) bool {
	if len(s.filters) == 0 {
		return true
	}
	_, ok := s.filters[t]
	return ok
}

func (s *Subscription) push(ev Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if len(s.queue) >= s.limit {
		s.queue[0] = Event{}
		s.queue = s.queue[1:]
		s.dropped++
		observability.SubscriberDrops.WithLabelValues(string(ev.Topic)).Inc()
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next blocks until an event is available, the subscription ends, or ctx is done.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return Event{}, ErrSubscriptionClosed
		}
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue[0] = Event{}
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return ev, nil
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-s.done:
			return Event{}, ErrSubscriptionClosed
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// Events adapts the subscription to a range-over-func sequence. The sequence
// ends when ctx is done or the subscription closes, and leaving the loop early
// unsubscribes.
func (s *Subscription) Events(ctx context.Context) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		defer s.Unsubscribe()
		for {
			ev, err := s.Next(ctx)
			if err != nil {
				return
			}
			if !yield(ev) {
				return
			}
		}
	}
}

// Unsubscribe detaches the subscription and discards its backlog. Calling it
// more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		if s.broker.remove(s) {
			observability.ActiveSubscriptions.Dec()
		}
		s.end()
	})
}

func (s *Subscription) end() {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.mu.Unlock()
	close(s.done)
}

// Done is closed once the subscription has ended.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Dropped reports how many events were discarded because the backlog was full.
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Pending reports the number of buffered, undelivered events.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
