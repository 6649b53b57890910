// Package live implements latest-value publish/subscribe subjects.
//
// A Subject holds the most recently published value. New subscribers receive
// that value immediately and every later one until they unsubscribe. Each
// subscriber owns a one-slot buffer: when a consumer falls behind, the
// pending value is replaced by the newer one, so Publish never blocks and a
// reader always converges on the latest state.
package live

import (
	"sync"
)

// Subject is a latest-value broadcaster. The zero value is not usable; call
// NewSubject.
type Subject[T any] struct {
	mu       sync.Mutex
	value    T
	hasValue bool
	closed   bool
	nextID   uint64
	sinks    map[uint64]sink[T]
}

// NewSubject returns an empty subject. Subscribers get nothing until the
// first Publish.
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{sinks: make(map[uint64]sink[T])}
}

// Publish stores v as the current value and offers it to every subscriber.
// Publishing on a closed subject is a no-op.
func (s *Subject[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.value, s.hasValue = v, true
	for _, k := range s.sinks {
		k.offer(v)
	}
}

// Value returns the current value and whether one has been published.
func (s *Subject[T]) Value() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.hasValue
}

// Subscribe registers a new subscriber.
func (s *Subject[T]) Subscribe() *Subscription[T] {
	return SubscribeMap(s, func(v T) T { return v }, nil)
}

// SubscribeMap registers a subscriber that receives f applied to each
// published value. When equal is non-nil, a mapped value equal to the last
// one offered to this subscriber is dropped.
func SubscribeMap[T, U any](s *Subject[T], f func(T) U, equal func(a, b U) bool) *Subscription[U] {
	sub := &Subscription[U]{ch: make(chan U, 1)}
	k := &mappedSink[T, U]{f: f, equal: equal, ch: sub.ch}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		close(sub.ch)
		sub.cancel = func() {}
		return sub
	}

	id := s.nextID
	s.nextID++
	s.sinks[id] = k
	if s.hasValue {
		k.offer(s.value)
	}

	sub.cancel = func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.sinks[id]; ok {
			delete(s.sinks, id)
			close(k.ch)
		}
	}
	return sub
}

// Close ends every subscription: their channels are closed after any value
// still buffered has been read. Later Publish calls are ignored and later
// Subscribe calls return an already-closed subscription.
func (s *Subject[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, k := range s.sinks {
		k.close()
		delete(s.sinks, id)
	}
}

// Subscription delivers values from a Subject until Unsubscribe is called or
// the subject is closed.
type Subscription[T any] struct {
	ch     chan T
	once   sync.Once
	cancel func()
}

// C returns the delivery channel. It is closed when the subscription ends.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Unsubscribe stops delivery and closes C. It is safe to call more than once
// and from any goroutine.
func (s *Subscription[T]) Unsubscribe() {
	s.once.Do(s.cancel)
}

// sink is implemented by every subscriber. Both methods are only called with
// the owning subject's mutex held.
type sink[T any] interface {
	offer(v T)
	close()
}

type mappedSink[T, U any] struct {
	f       func(T) U
	equal   func(a, b U) bool
	ch      chan U
	last    U
	hasLast bool
}

func (k *mappedSink[T, U]) offer(v T) {
	u := k.f(v)
	if k.equal != nil && k.hasLast && k.equal(k.last, u) {
		return
	}
	k.last, k.hasLast = u, true

	// Drop a value the consumer has not read yet. The subject mutex makes
	// this the only sender, so the send below always finds a free slot.
	select {
	case <-k.ch:
	default:
	}
	k.ch <- u
}

func (k *mappedSink[T, U]) close() {
	close(k.ch)
}
