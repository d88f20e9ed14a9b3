// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package devicepool

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/tradefed/errors"
	"go.chromium.org/tradefed/internal/logging"
	"go.chromium.org/tradefed/internal/logging/loggingtest"
)

func serials(devs []*Device) []string {
	var out []string
	for _, d := range devs {
		out = append(out, d.Serial)
	}
	return out
}

func newTestPool(t *testing.T, devs ...*Device) *Pool {
	t.Helper()
	p := New()
	if err := p.Register(devs...); err != nil {
		t.Fatal("Register failed: ", err)
	}
	return p
}

func TestRegister(t *testing.T) {
	p := newTestPool(t, &Device{Serial: "b"}, &Device{Serial: "a"}, &Device{Serial: "c", Priority: 1})

	if diff := cmp.Diff(serials(p.Available()), []string{"c", "a", "b"}); diff != "" {
		t.Errorf("Available mismatch (-got +want):\n%s", diff)
	}

	if err := p.Register(&Device{Serial: "a"}); err == nil {
		t.Error("Register of a duplicate serial succeeded")
	}
	if err := p.Register(&Device{Serial: "d"}, &Device{Serial: "d"}); err == nil {
		t.Error("Register of a repeated serial succeeded")
	}
	if err := p.Register(&Device{}); err == nil {
		t.Error("Register of an empty serial succeeded")
	}
	if n := len(p.Available()); n != 3 {
		t.Errorf("Failed registrations changed the pool: %d devices available", n)
	}
}

func TestSelectorMatch(t *testing.T) {
	dev := &Device{Serial: "s1", Product: "eve", Attrs: []string{"wifi", "arc"}}
	for _, tc := range []struct {
		sel  Selector
		want bool
	}{
		{Selector{}, true},
		{Selector{Serials: []string{"s0", "s1"}}, true},
		{Selector{Serials: []string{"s0"}}, false},
		{Selector{Product: "eve"}, true},
		{Selector{Product: "kevin"}, false},
		{Selector{Attrs: []string{"arc", "wifi"}}, true},
		{Selector{Attrs: []string{"arc", "cellular"}}, false},
		{Selector{Product: "eve", Attrs: []string{"wifi"}}, true},
	} {
		if got := tc.sel.Match(dev); got != tc.want {
			t.Errorf("%v.Match(%v) = %v; want %v", tc.sel, dev, got, tc.want)
		}
	}
}

func TestSelectorString(t *testing.T) {
	if got, want := (Selector{}).String(), "any device"; got != want {
		t.Errorf("String() = %q; want %q", got, want)
	}
	sel := Selector{Serials: []string{"a", "b"}, Product: "eve", Attrs: []string{"wifi"}}
	if got, want := sel.String(), "{serial in a,b product=eve attrs=wifi}"; got != want {
		t.Errorf("String() = %q; want %q", got, want)
	}
}

func TestAllocateRelease(t *testing.T) {
	logger := loggingtest.NewLogger(t, logging.LevelDebug)
	ctx := logging.AttachLogger(context.Background(), logger)

	eve := &Device{Serial: "eve1", Product: "eve"}
	kevin := &Device{Serial: "kevin1", Product: "kevin", Priority: 5}
	p := newTestPool(t, eve, kevin)

	d, err := p.Allocate(ctx, Selector{Product: "eve"}, time.Second)
	if err != nil {
		t.Fatal("Allocate failed: ", err)
	}
	if d != eve {
		t.Errorf("Allocate returned %v; want %v", d, eve)
	}
	if diff := cmp.Diff(serials(p.Allocated()), []string{"eve1"}); diff != "" {
		t.Errorf("Allocated mismatch (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(serials(p.Available()), []string{"kevin1"}); diff != "" {
		t.Errorf("Available mismatch (-got +want):\n%s", diff)
	}

	if err := p.Release(ctx, d); err != nil {
		t.Fatal("Release failed: ", err)
	}
	if err := p.Release(ctx, d); err == nil {
		t.Error("Second Release succeeded")
	}
	if n := len(p.Allocated()); n != 0 {
		t.Errorf("%d devices still allocated", n)
	}

	want := []string{"Allocated device eve1", "Released device eve1"}
	if diff := cmp.Diff(logger.Logs(), want); diff != "" {
		t.Errorf("Logs mismatch (-got +want):\n%s", diff)
	}
}

func TestAllocatePrefersPriority(t *testing.T) {
	p := newTestPool(t, &Device{Serial: "low"}, &Device{Serial: "high", Priority: 10})
	d, err := p.Allocate(context.Background(), Selector{}, time.Second)
	if err != nil {
		t.Fatal("Allocate failed: ", err)
	}
	if d.Serial != "high" {
		t.Errorf("Allocate returned %v; want high", d)
	}
}

func TestAllocateTimeout(t *testing.T) {
	dev := &Device{Serial: "d1"}
	p := newTestPool(t, dev)
	ctx := context.Background()
	if _, err := p.Allocate(ctx, Selector{}, time.Second); err != nil {
		t.Fatal("Allocate failed: ", err)
	}

	if _, err := p.Allocate(ctx, Selector{}, 50*time.Millisecond); !errors.Is(err, ErrNoDevice) {
		t.Errorf("Allocate on busy pool returned %v; want %v", err, ErrNoDevice)
	}
	if _, err := p.Allocate(ctx, Selector{Product: "none"}, time.Second); !errors.Is(err, ErrUnsatisfiable) {
		t.Errorf("Allocate with unsatisfiable selector returned %v; want %v", err, ErrUnsatisfiable)
	}
}

func TestAllocateWaitsForRelease(t *testing.T) {
	ctx := context.Background()
	dev := &Device{Serial: "d1", Attrs: []string{"wifi"}}
	p := newTestPool(t, dev)
	d, err := p.Allocate(ctx, Selector{}, time.Second)
	if err != nil {
		t.Fatal("Allocate failed: ", err)
	}

	got := make(chan *Device, 1)
	go func() {
		d, err := p.AllocateWait(ctx, Selector{Attrs: []string{"wifi"}})
		if err != nil {
			t.Error("AllocateWait failed: ", err)
		}
		got <- d
	}()
	for p.Waiting() != 1 {
		time.Sleep(time.Millisecond)
	}
	if err := p.Release(ctx, d); err != nil {
		t.Fatal("Release failed: ", err)
	}
	if d := <-got; d != dev {
		t.Errorf("AllocateWait returned %v; want %v", d, dev)
	}
}

func TestAllocateWaitCanceled(t *testing.T) {
	p := newTestPool(t, &Device{Serial: "d1", Product: "eve"})
	if _, err := p.Allocate(context.Background(), Selector{}, time.Second); err != nil {
		t.Fatal("Allocate failed: ", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := p.AllocateWait(ctx, Selector{Product: "eve"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("AllocateWait returned %v; want %v", err, context.DeadlineExceeded)
	}
	if n := p.Waiting(); n != 0 {
		t.Errorf("Waiting() = %d; want 0", n)
	}
}

func TestAvailableDuringChurn(t *testing.T) {
	p := newTestPool(t, &Device{Serial: "a"}, &Device{Serial: "b"}, &Device{Serial: "c"}, &Device{Serial: "d", Priority: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Keep at most one device allocated at a time, modifying the queue as
	// fast as possible.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ctx.Err() == nil {
			d, err := p.AllocateWait(ctx, Selector{})
			if err != nil {
				return
			}
			if err := p.Release(ctx, d); err != nil {
				t.Error("Release failed: ", err)
				return
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		devs := p.Available()
		if n := len(devs); n < 3 || n > 4 {
			t.Fatalf("Available returned %d devices %v; want 3 or 4", n, serials(devs))
		}
		seen := make(map[string]bool)
		for j, d := range devs {
			if seen[d.Serial] {
				t.Fatalf("Available returned %s twice: %v", d.Serial, serials(devs))
			}
			seen[d.Serial] = true
			if j > 0 && compareDevices(devs[j-1], d) > 0 {
				t.Fatalf("Available returned %v out of allocation order", serials(devs))
			}
		}
	}
	cancel()
	<-done

	if diff := cmp.Diff(serials(p.Available()), []string{"d", "a", "b", "c"}); diff != "" {
		t.Errorf("Available mismatch after churn (-got +want):\n%s", diff)
	}
}

func TestAvailableSnapshotFallback(t *testing.T) {
	defer func(n int) { maxIterRetries = n }(maxIterRetries)
	maxIterRetries = 0

	p := newTestPool(t, &Device{Serial: "b"}, &Device{Serial: "a", Priority: 2})
	if diff := cmp.Diff(serials(p.Available()), []string{"a", "b"}); diff != "" {
		t.Errorf("Available mismatch (-got +want):\n%s", diff)
	}
}
