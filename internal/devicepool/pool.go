// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package devicepool hands devices under test to invocations that need them.
package devicepool

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.chromium.org/tradefed/condqueue"
	"go.chromium.org/tradefed/errors"
	"go.chromium.org/tradefed/internal/logging"
)

// ErrNoDevice is returned by Allocate when no matching device became
// available before the timeout.
var ErrNoDevice = errors.New("no matching device available")

// ErrUnsatisfiable is returned when no registered device can ever satisfy a
// selector.
var ErrUnsatisfiable = errors.New("no registered device matches")

// maxIterRetries bounds how often Available restarts a walk interrupted by
// concurrent allocations before falling back to a snapshot. Tests change it.
var maxIterRetries = 3

// Pool tracks registered devices and which of them are allocated.
// All methods are safe for concurrent use.
type Pool struct {
	avail *condqueue.Queue[*Device]

	mu        sync.Mutex
	known     map[string]*Device
	allocated map[string]*Device
}

// New returns an empty Pool.
func New() *Pool {
	return &Pool{
		avail:     condqueue.NewOrdered(compareDevices),
		known:     make(map[string]*Device),
		allocated: make(map[string]*Device),
	}
}

// Register adds devices to the pool as available. It fails without
// registering anything if a serial is empty or already known.
func (p *Pool) Register(devs ...*Device) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	seen := make(map[string]struct{})
	for _, d := range devs {
		if d.Serial == "" {
			return errors.New("device has empty serial")
		}
		if _, ok := p.known[d.Serial]; ok {
			return errors.Errorf("device %s already registered", d.Serial)
		}
		if _, ok := seen[d.Serial]; ok {
			return errors.Errorf("device %s given twice", d.Serial)
		}
		seen[d.Serial] = struct{}{}
	}
	for _, d := range devs {
		p.known[d.Serial] = d
	}
	p.avail.AddAll(devs...)
	return nil
}

// Satisfiable reports whether some registered device, allocated or not,
// matches sel.
func (p *Pool) Satisfiable(sel Selector) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, d := range p.known {
		if sel.Match(d) {
			return true
		}
	}
	return false
}

// Allocate returns an available device matching sel, waiting up to timeout
// for one to be released. It returns ErrNoDevice on timeout and
// ErrUnsatisfiable if no registered device could ever match.
func (p *Pool) Allocate(ctx context.Context, sel Selector, timeout time.Duration) (*Device, error) {
	if !p.Satisfiable(sel) {
		return nil, errors.Wrapf(ErrUnsatisfiable, "selector %v", sel)
	}
	d, ok, err := p.avail.PollTimeout(ctx, timeout, sel.Matcher())
	if err != nil {
		return nil, errors.Wrapf(err, "allocating %v", sel)
	}
	if !ok {
		return nil, errors.Wrapf(ErrNoDevice, "%v after %v", sel, timeout)
	}
	p.markAllocated(ctx, d)
	return d, nil
}

// AllocateWait is like Allocate but waits until ctx is done.
func (p *Pool) AllocateWait(ctx context.Context, sel Selector) (*Device, error) {
	if !p.Satisfiable(sel) {
		return nil, errors.Wrapf(ErrUnsatisfiable, "selector %v", sel)
	}
	d, err := p.avail.TakeMatch(ctx, sel.Matcher())
	if err != nil {
		return nil, errors.Wrapf(err, "allocating %v", sel)
	}
	p.markAllocated(ctx, d)
	return d, nil
}

func (p *Pool) markAllocated(ctx context.Context, d *Device) {
	p.mu.Lock()
	p.allocated[d.Serial] = d
	p.mu.Unlock()
	logging.Debugf(ctx, "Allocated device %s", d.Serial)
}

// Release makes an allocated device available again.
func (p *Pool) Release(ctx context.Context, d *Device) error {
	p.mu.Lock()
	if p.allocated[d.Serial] != d {
		p.mu.Unlock()
		return errors.Errorf("device %s is not allocated", d.Serial)
	}
	delete(p.allocated, d.Serial)
	p.mu.Unlock()

	p.avail.Add(d)
	logging.Debugf(ctx, "Released device %s", d.Serial)
	return nil
}

// Available returns the currently available devices in allocation order.
func (p *Pool) Available() []*Device {
	for i := 0; i < maxIterRetries; i++ {
		var devs []*Device
		it := p.avail.Iterator()
		for it.Next() {
			devs = append(devs, it.Value())
		}
		if it.Err() == nil {
			return devs
		}
	}
	return p.avail.Snapshot()
}

// Allocated returns the allocated devices sorted by serial.
func (p *Pool) Allocated() []*Device {
	p.mu.Lock()
	defer p.mu.Unlock()
	devs := make([]*Device, 0, len(p.allocated))
	for _, d := range p.allocated {
		devs = append(devs, d)
	}
	sort.Slice(devs, func(i, j int) bool { return devs[i].Serial < devs[j].Serial })
	return devs
}

// Waiting returns the number of allocations currently blocked.
func (p *Pool) Waiting() int {
	return p.avail.Waiters()
}
