// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package scheduler runs invocations on devices allocated from a pool.
package scheduler

import (
	"context"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"golang.org/x/sync/errgroup"

	"go.chromium.org/tradefed/errors"
	"go.chromium.org/tradefed/internal/devicepool"
	"go.chromium.org/tradefed/internal/failfast"
	"go.chromium.org/tradefed/internal/logging"
)

// clk is replaced in unit tests to use fake clocks.
var clk = clock.NewClock()

// Invocation is a unit of work needing one device.
type Invocation struct {
	// Name identifies the invocation in logs and results.
	Name string
	// Selector constrains the device the invocation runs on.
	Selector devicepool.Selector
	// Command is the command line run by CommandRunner.
	Command []string
	// Disabled invocations are reported as skipped without running.
	Disabled bool
}

// Result is the outcome of one invocation.
type Result struct {
	Name     string        `json:"name"`
	Device   string        `json:"device,omitempty"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
	Skipped  bool          `json:"skipped,omitempty"`
	// Error is empty if the invocation passed.
	Error string `json:"error,omitempty"`
}

// Failed reports whether r ran and failed, or could not run.
func (r *Result) Failed() bool {
	return !r.Skipped && r.Error != ""
}

// Runner runs an invocation on an allocated device.
type Runner interface {
	Run(ctx context.Context, inv *Invocation, dev *devicepool.Device) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, inv *Invocation, dev *devicepool.Device) error

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, inv *Invocation, dev *devicepool.Device) error {
	return f(ctx, inv, dev)
}

// Config controls a Scheduler.
type Config struct {
	// Parallelism is the maximum number of invocations running at once.
	// Non-positive means one.
	Parallelism int
	// AllocationTimeout bounds the wait for a device per invocation.
	// Zero waits until the run is canceled.
	AllocationTimeout time.Duration
	// MaxFailures aborts the run once this many invocations failed.
	// Non-positive never aborts.
	MaxFailures int
}

// Scheduler assigns invocations to devices.
type Scheduler struct {
	pool   *devicepool.Pool
	runner Runner
	cfg    Config
}

// New returns a Scheduler allocating devices from pool.
func New(pool *devicepool.Pool, runner Runner, cfg Config) *Scheduler {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	return &Scheduler{pool: pool, runner: runner, cfg: cfg}
}

// Run runs invs and returns one Result per invocation in the same order.
//
// Invocations failing does not make Run fail. Run returns an error, along
// with the results, if it stopped early because ctx was done or because too
// many invocations failed; invocations never started then carry that error.
func (s *Scheduler) Run(ctx context.Context, invs []*Invocation) ([]*Result, error) {
	results := make([]*Result, len(invs))
	counter := failfast.NewCounter(s.cfg.MaxFailures)

	var (
		mu       sync.Mutex
		abortErr error
	)
	// aborted returns a non-nil error once the run should stop starting
	// invocations.
	aborted := func() error {
		mu.Lock()
		defer mu.Unlock()
		if abortErr != nil {
			return abortErr
		}
		if err := ctx.Err(); err != nil {
			abortErr = errors.Wrap(err, "run canceled")
		} else if err := counter.Check(); err != nil {
			abortErr = err
		}
		if abortErr != nil {
			logging.Warning(ctx, abortErr)
		}
		return abortErr
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.Parallelism)
	for i, inv := range invs {
		if inv.Disabled {
			logging.Infof(ctx, "Skipping disabled invocation %s", inv.Name)
			results[i] = &Result{Name: inv.Name, Start: clk.Now(), Skipped: true}
			continue
		}
		i, inv := i, inv
		g.Go(func() error {
			if err := aborted(); err != nil {
				results[i] = &Result{Name: inv.Name, Start: clk.Now(), Error: "not run: " + err.Error()}
				return nil
			}
			res := s.runOne(ctx, inv)
			if res.Failed() {
				counter.Increment()
			}
			results[i] = res
			return nil
		})
	}
	g.Wait()
	return results, abortErr
}

// runOne allocates a device for inv, runs it and releases the device.
func (s *Scheduler) runOne(ctx context.Context, inv *Invocation) *Result {
	res := &Result{Name: inv.Name, Start: clk.Now()}
	defer func() { res.Duration = clk.Since(res.Start) }()

	dev, err := s.allocate(ctx, inv.Selector)
	if err != nil {
		logging.Warningf(ctx, "%s: %v", inv.Name, err)
		res.Error = err.Error()
		return res
	}
	res.Device = dev.Serial
	defer func() {
		if err := s.pool.Release(ctx, dev); err != nil {
			logging.Warningf(ctx, "Failed to release %s: %v", dev.Serial, err)
		}
	}()

	logging.Infof(ctx, "Running %s on %s", inv.Name, dev.Serial)
	rctx := logging.SetLogPrefix(ctx, "["+inv.Name+"] ")
	if err := s.runner.Run(rctx, inv, dev); err != nil {
		logging.Warningf(ctx, "%s failed on %s: %v", inv.Name, dev.Serial, err)
		res.Error = err.Error()
		return res
	}
	logging.Infof(ctx, "%s passed on %s", inv.Name, dev.Serial)
	return res
}

func (s *Scheduler) allocate(ctx context.Context, sel devicepool.Selector) (*devicepool.Device, error) {
	if s.cfg.AllocationTimeout > 0 {
		return s.pool.Allocate(ctx, sel, s.cfg.AllocationTimeout)
	}
	return s.pool.AllocateWait(ctx, sel)
}
