// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package failfast tracks invocation failures so a run can stop early.
package failfast

import (
	"sync"

	"go.chromium.org/tradefed/errors"
)

// Counter counts failures and reports an error once they reach a threshold.
// A nil *Counter is valid and never aborts, as if the threshold were
// infinite. Counter is safe for concurrent use.
type Counter struct {
	threshold int

	mu    sync.Mutex
	fails int
}

// NewCounter returns a Counter with threshold, or nil if threshold is not
// positive.
func NewCounter(threshold int) *Counter {
	if threshold <= 0 {
		return nil
	}
	return &Counter{threshold: threshold}
}

// Increment records one failure.
func (c *Counter) Increment() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fails++
}

// Check returns an error if the number of failures has reached the
// threshold.
func (c *Counter) Check() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fails >= c.threshold {
		return errors.Errorf("aborting due to too many failures (%d)", c.fails)
	}
	return nil
}
