// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package condqueue provides an unbounded blocking queue whose consumers can
// wait for an element satisfying a condition.
//
// Elements are considered in the order given by a Comparator, or in insertion
// order if the queue has none. Every retrieval, conditional or not, removes
// the first element in that order accepted by its Matcher.
//
//	q := condqueue.New[*Device]()
//	q.Add(dev)
//	d, err := q.TakeMatch(ctx, func(d *Device) bool { return d.Product == "eve" })
//
// Blocking operations take a context.Context and return ctx.Err() when it is
// done. All methods are safe for concurrent use.
package condqueue

import (
	"context"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"golang.org/x/exp/slices"

	"go.chromium.org/tradefed/errors"
)

// clk is replaced in unit tests to use fake clocks.
var clk = clock.NewClock()

// ErrConcurrentModification is reported by Iterator.Err when the queue was
// structurally modified after the iterator was created.
var ErrConcurrentModification = errors.New("queue modified during iteration")

// Comparator defines a total order over elements. It returns a negative
// number if a should be retrieved before b, a positive number if after, and
// zero if they are equivalent.
type Comparator[T any] func(a, b T) int

// Matcher reports whether v may be returned by a conditional retrieval.
// Matchers must be pure; they may be called from several goroutines at once.
type Matcher[T any] func(v T) bool

// MatchAll returns a Matcher accepting every element.
func MatchAll[T any]() Matcher[T] {
	return func(T) bool { return true }
}

// entry is a queued element together with its insertion sequence number.
type entry[T any] struct {
	v   T
	seq uint64
}

// waiter is a goroutine blocked in a retrieval. wake has capacity 1 so that a
// producer never blocks on it and pending wakeups coalesce.
type waiter struct {
	wake chan struct{}
}

// Queue is a concurrency-safe, unbounded, optionally ordered queue supporting
// blocking retrieval filtered by a Matcher.
//
// The zero value is not ready for use; construct a Queue with New or
// NewOrdered.
type Queue[T any] struct {
	cmp Comparator[T] // nil means FIFO

	mu      sync.Mutex
	items   []entry[T] // sorted by cmp, then seq
	nextSeq uint64
	mods    uint64 // incremented on every structural change
	waiters map[*waiter]struct{}
}

// New returns an empty FIFO queue.
func New[T any]() *Queue[T] {
	return NewOrdered[T](nil)
}

// NewOrdered returns an empty queue ordered by cmp. Elements comparing equal
// are retrieved in insertion order. A nil cmp gives a FIFO queue.
func NewOrdered[T any](cmp Comparator[T]) *Queue[T] {
	return &Queue[T]{
		cmp:     cmp,
		waiters: make(map[*waiter]struct{}),
	}
}

// Add inserts v and wakes all blocked consumers. It never blocks.
func (q *Queue[T]) Add(v T) {
	q.AddAll(v)
}

// AddAll inserts vs in order and wakes all blocked consumers once.
func (q *Queue[T]) AddAll(vs ...T) {
	if len(vs) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, v := range vs {
		q.insertLocked(v)
	}
	for w := range q.waiters {
		select {
		case w.wake <- struct{}{}:
		default:
		}
	}
}

// Poll removes and returns the first element. ok is false if the queue is
// empty.
func (q *Queue[T]) Poll() (v T, ok bool) {
	return q.PollMatch(MatchAll[T]())
}

// PollMatch removes and returns the first element accepted by m. ok is false
// if there is none; the queue is then left unchanged.
func (q *Queue[T]) PollMatch(m Matcher[T]) (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	i, ok := q.findLocked(m, 0)
	if !ok {
		return v, false
	}
	return q.removeLocked(i), true
}

// Take removes and returns the first element, blocking until one is added if
// the queue is empty. It returns ctx.Err() if ctx is done first.
func (q *Queue[T]) Take(ctx context.Context) (T, error) {
	return q.TakeMatch(ctx, MatchAll[T]())
}

// TakeMatch removes and returns the first element accepted by m, blocking
// until a matching element is added. It returns ctx.Err() if ctx is done
// first, in which case nothing is removed.
func (q *Queue[T]) TakeMatch(ctx context.Context, m Matcher[T]) (T, error) {
	v, _, err := q.await(ctx, m, nil)
	return v, err
}

// PollTimeout is like TakeMatch but gives up after timeout. On expiry it
// returns ok=false and a nil error. A non-positive timeout does not wait.
func (q *Queue[T]) PollTimeout(ctx context.Context, timeout time.Duration, m Matcher[T]) (v T, ok bool, err error) {
	if timeout <= 0 {
		v, ok = q.PollMatch(m)
		return v, ok, nil
	}
	tm := clk.NewTimer(timeout)
	defer tm.Stop()
	return q.await(ctx, m, tm.C())
}

// await implements the blocking retrievals. expired may be nil to wait with
// no timeout.
func (q *Queue[T]) await(ctx context.Context, m Matcher[T], expired <-chan time.Time) (v T, ok bool, err error) {
	q.mu.Lock()
	if i, found := q.findLocked(m, 0); found {
		v = q.removeLocked(i)
		q.mu.Unlock()
		return v, true, nil
	}
	w := &waiter{wake: make(chan struct{}, 1)}
	q.waiters[w] = struct{}{}
	// Everything below scanned has already been rejected by m.
	scanned := q.nextSeq
	q.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			q.dropWaiter(w)
			return v, false, ctx.Err()
		case <-expired:
			q.dropWaiter(w)
			return v, false, nil
		case <-w.wake:
		}

		q.mu.Lock()
		i, found := q.findLocked(m, scanned)
		scanned = q.nextSeq
		if found {
			v = q.removeLocked(i)
			delete(q.waiters, w)
			q.mu.Unlock()
			return v, true, nil
		}
		q.mu.Unlock()
	}
}

func (q *Queue[T]) dropWaiter(w *waiter) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.waiters, w)
}

// Remove removes the first element accepted by m and reports whether one was
// found. It never blocks.
func (q *Queue[T]) Remove(m Matcher[T]) bool {
	_, ok := q.PollMatch(m)
	return ok
}

// Contains reports whether some element is accepted by m.
func (q *Queue[T]) Contains(m Matcher[T]) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.findLocked(m, 0)
	return ok
}

// Len returns the number of queued elements.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Waiters returns the number of goroutines blocked in a retrieval.
func (q *Queue[T]) Waiters() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiters)
}

// Clear removes all elements. Blocked consumers keep waiting.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.mods++
}

// Snapshot returns a copy of the queued elements in retrieval order.
func (q *Queue[T]) Snapshot() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]T, len(q.items))
	for i, e := range q.items {
		out[i] = e.v
	}
	return out
}

func (q *Queue[T]) insertLocked(v T) {
	e := entry[T]{v: v, seq: q.nextSeq}
	q.nextSeq++
	q.mods++
	if q.cmp == nil {
		q.items = append(q.items, e)
		return
	}
	i, _ := slices.BinarySearchFunc(q.items, e, q.compareEntries)
	q.items = slices.Insert(q.items, i, e)
}

func (q *Queue[T]) compareEntries(a, b entry[T]) int {
	if c := q.cmp(a.v, b.v); c != 0 {
		return c
	}
	switch {
	case a.seq < b.seq:
		return -1
	case a.seq > b.seq:
		return 1
	}
	return 0
}

// findLocked returns the index of the first element accepted by m among those
// inserted with a sequence number of at least since.
func (q *Queue[T]) findLocked(m Matcher[T], since uint64) (int, bool) {
	for i, e := range q.items {
		if e.seq >= since && m(e.v) {
			return i, true
		}
	}
	return 0, false
}

func (q *Queue[T]) removeLocked(i int) T {
	v := q.items[i].v
	n := len(q.items)
	q.items = slices.Delete(q.items, i, i+1)
	// Drop the reference left in the vacated tail slot.
	q.items[:n][n-1] = entry[T]{}
	q.mods++
	return v
}
