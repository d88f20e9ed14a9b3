// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package condqueue

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/tradefed/errors"
)

// collect drains it and returns the visited elements.
func collect[T any](it *Iterator[T]) []T {
	var out []T
	for it.Next() {
		out = append(out, it.Value())
	}
	return out
}

func TestIteratorOrder(t *testing.T) {
	q := NewOrdered(intCmp)
	q.AddAll(3, 1, 2)

	it := q.Iterator()
	if diff := cmp.Diff(collect(it), []int{1, 2, 3}); diff != "" {
		t.Errorf("Iteration mismatch (-got +want):\n%s", diff)
	}
	if err := it.Err(); err != nil {
		t.Error("Iteration failed: ", err)
	}
	if it.Next() {
		t.Error("Next() = true after exhaustion")
	}
	if n := q.Len(); n != 3 {
		t.Errorf("Len() = %d after iteration; want 3", n)
	}

	// A fresh iterator starts over.
	if diff := cmp.Diff(collect(q.Iterator()), []int{1, 2, 3}); diff != "" {
		t.Errorf("Second iteration mismatch (-got +want):\n%s", diff)
	}
}

func TestIteratorEmpty(t *testing.T) {
	it := New[int]().Iterator()
	if it.Next() {
		t.Error("Next() = true on empty queue")
	}
	if err := it.Err(); err != nil {
		t.Error("Iteration failed: ", err)
	}
}

func TestIteratorFailsFast(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(q *Queue[int])
	}{
		{"Add", func(q *Queue[int]) { q.Add(9) }},
		{"Poll", func(q *Queue[int]) { q.Poll() }},
		{"Remove", func(q *Queue[int]) { q.Remove(equals(3)) }},
		{"Clear", func(q *Queue[int]) { q.Clear() }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			q := New[int]()
			q.AddAll(1, 2, 3)

			it := q.Iterator()
			if !it.Next() || it.Value() != 1 {
				t.Fatalf("First Next() gave %d; want 1", it.Value())
			}
			tc.mutate(q)
			if it.Next() {
				t.Errorf("Next() = true after mutation (value %d)", it.Value())
			}
			if err := it.Err(); !errors.Is(err, ErrConcurrentModification) {
				t.Errorf("Err() = %v; want %v", err, ErrConcurrentModification)
			}
			if it.Next() {
				t.Error("Next() = true after failure")
			}
		})
	}
}

func TestIteratorUnaffectedByFailedRetrieval(t *testing.T) {
	q := New[int]()
	q.AddAll(1, 2)

	it := q.Iterator()
	q.PollMatch(equals(5))
	q.Contains(equals(1))
	q.Snapshot()
	if diff := cmp.Diff(collect(it), []int{1, 2}); diff != "" {
		t.Errorf("Iteration mismatch (-got +want):\n%s", diff)
	}
	if err := it.Err(); err != nil {
		t.Error("Iteration failed: ", err)
	}
}

func TestIteratorConcurrentAdd(t *testing.T) {
	q := New[int]()
	for i := 0; i < 1000; i++ {
		q.Add(i)
	}
	before := q.Snapshot()
	it := q.Iterator()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1000; i < 2000; i++ {
			q.Add(i)
		}
	}()

	got := collect(it)
	<-done

	// Whatever was visited is a prefix of the queue as it was when iteration
	// began; a shorter walk must be reported.
	if len(got) > len(before) {
		t.Fatalf("Visited %d elements; queue had %d at start", len(got), len(before))
	}
	if diff := cmp.Diff(got, before[:len(got)]); diff != "" {
		t.Errorf("Visited elements are not a prefix of the snapshot (-got +want):\n%s", diff)
	}
	if len(got) < len(before) && !errors.Is(it.Err(), ErrConcurrentModification) {
		t.Errorf("Iteration stopped after %d of %d elements with Err() = %v", len(got), len(before), it.Err())
	}
	if n := q.Len(); n != 2000 {
		t.Errorf("Len() = %d; want 2000", n)
	}
}
