// Package stream provides an unbounded multi-producer/multi-consumer FIFO
// with close-on-drop semantics.
//
// A stream is created with New, which returns the first Sender and Receiver
// handles. Senders are reference counted: every Clone adds a reference and
// every Close drops one. When the last sender is closed the stream closes;
// receivers then drain whatever is still queued and afterwards get ErrClosed
// instead of blocking.
//
// Receivers compete for values: each value is delivered to exactly one Recv
// call, no matter how many receiver handles exist.
package stream

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Send on a closed stream and by Recv once a closed
// stream has been drained.
var ErrClosed = errors.New("stream closed")

type queue[T any] struct {
	mu      sync.Mutex
	items   []T
	head    int
	senders int
	closed  bool
	// wake is closed and replaced whenever an item is queued or the stream
	// closes, releasing every waiting receiver.
	wake chan struct{}
}

func (q *queue[T]) signalLocked() {
	close(q.wake)
	q.wake = make(chan struct{})
}

func (q *queue[T]) lenLocked() int {
	return len(q.items) - q.head
}

func (q *queue[T]) popLocked() T {
	var zero T
	v := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	// Reclaim the consumed prefix once it dominates the backing array.
	if q.head > 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return v
}

// Sender is the producing half of a stream.
type Sender[T any] struct {
	q    *queue[T]
	once sync.Once
}

// Receiver is the consuming half of a stream.
type Receiver[T any] struct {
	q *queue[T]
}

// New creates an empty stream with one sender reference.
func New[T any]() (*Sender[T], *Receiver[T]) {
	q := &queue[T]{
		senders: 1,
		wake:    make(chan struct{}),
	}
	return &Sender[T]{q: q}, &Receiver[T]{q: q}
}

// Send queues v. It never blocks.
func (s *Sender[T]) Send(v T) error {
	q := s.q
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, v)
	q.signalLocked()
	return nil
}

// Clone returns a new sender reference on the same stream. Cloning a sender
// of a closed stream yields a handle whose sends fail with ErrClosed.
func (s *Sender[T]) Clone() *Sender[T] {
	q := s.q
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.senders++
	}
	return &Sender[T]{q: q}
}

// Close drops this sender reference. Calling Close more than once on the same
// handle has no further effect.
func (s *Sender[T]) Close() {
	s.once.Do(func() {
		q := s.q
		q.mu.Lock()
		defer q.mu.Unlock()

		if q.closed {
			return
		}
		q.senders--
		if q.senders <= 0 {
			q.closed = true
			q.signalLocked()
		}
	})
}

// Recv returns the next value. It blocks until a value is available, ctx is
// done, or the stream is closed and empty, in which case it returns ErrClosed.
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	q := r.q
	for {
		q.mu.Lock()
		if q.lenLocked() > 0 {
			v := q.popLocked()
			q.mu.Unlock()
			return v, nil
		}
		if q.closed {
			q.mu.Unlock()
			var zero T
			return zero, ErrClosed
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Clone returns another receiver handle on the same stream.
func (r *Receiver[T]) Clone() *Receiver[T] {
	return &Receiver[T]{q: r.q}
}

// Len returns the number of queued values.
func (r *Receiver[T]) Len() int {
	r.q.mu.Lock()
	defer r.q.mu.Unlock()
	return r.q.lenLocked()
}
