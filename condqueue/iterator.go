// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package condqueue

// Iterator walks the elements of a Queue in retrieval order without removing
// them. It fails fast: once the queue is structurally modified after the
// iterator was created, Next returns false and Err returns
// ErrConcurrentModification. The queue itself stays usable.
//
//	it := q.Iterator()
//	for it.Next() {
//		use(it.Value())
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
//
// An Iterator is not restartable and must not be shared between goroutines.
type Iterator[T any] struct {
	q    *Queue[T]
	mods uint64
	pos  int
	cur  T
	err  error
	done bool
}

// Iterator returns an Iterator positioned before the first element.
func (q *Queue[T]) Iterator() *Iterator[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return &Iterator[T]{q: q, mods: q.mods}
}

// Next advances to the next element and reports whether there is one.
func (it *Iterator[T]) Next() bool {
	var zero T
	if it.done {
		return false
	}
	it.q.mu.Lock()
	defer it.q.mu.Unlock()
	if it.q.mods != it.mods {
		it.err = ErrConcurrentModification
		it.done = true
		it.cur = zero
		return false
	}
	if it.pos >= len(it.q.items) {
		it.done = true
		it.cur = zero
		return false
	}
	it.cur = it.q.items[it.pos].v
	it.pos++
	return true
}

// Value returns the element at the current position.
func (it *Iterator[T]) Value() T {
	return it.cur
}

// Err returns ErrConcurrentModification if iteration stopped because the
// queue changed, or nil otherwise.
func (it *Iterator[T]) Err() error {
	return it.err
}
