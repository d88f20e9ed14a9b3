// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/subcommands"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sync/errgroup"

	"go.chromium.org/tradefed/condqueue"
	"go.chromium.org/tradefed/errors"
	"go.chromium.org/tradefed/internal/logging"
)

// benchPollInterval bounds how long a consumer waits before rechecking
// whether all items were delivered.
const benchPollInterval = 50 * time.Millisecond

// benchConfig configures a queue stress run.
type benchConfig struct {
	producers int
	consumers int
	items     int
	classes   int // consumer i only takes items v with v%classes == i%classes
}

func (c *benchConfig) validate() error {
	if c.producers <= 0 || c.consumers <= 0 || c.items <= 0 || c.classes <= 0 {
		return errors.New("producers, consumers, items and classes must be positive")
	}
	if c.consumers < c.classes {
		return errors.Errorf("%d consumers cannot cover %d classes", c.consumers, c.classes)
	}
	return nil
}

// benchStats summarizes a stress run.
type benchStats struct {
	elapsed    time.Duration
	delivered  int
	duplicates int
	missing    int
}

// runBench adds items 0..cfg.items-1 from cfg.producers goroutines while
// cfg.consumers goroutines take them with class matchers, and checks every
// item was delivered exactly once.
func runBench(ctx context.Context, cfg benchConfig) (*benchStats, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	q := condqueue.New[int]()
	seen := make([]int32, cfg.items)
	var delivered atomic.Int64

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.consumers; i++ {
		class := i % cfg.classes
		match := func(v int) bool { return v%cfg.classes == class }
		g.Go(func() error {
			for delivered.Load() < int64(cfg.items) {
				v, ok, err := q.PollTimeout(ctx, benchPollInterval, match)
				if err != nil {
					return err
				}
				if ok {
					atomic.AddInt32(&seen[v], 1)
					delivered.Add(1)
				}
			}
			return nil
		})
	}
	for p := 0; p < cfg.producers; p++ {
		p := p
		g.Go(func() error {
			for v := p; v < cfg.items; v += cfg.producers {
				q.Add(v)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "benchmark interrupted")
	}

	st := &benchStats{elapsed: time.Since(start), delivered: int(delivered.Load())}
	for _, n := range seen {
		switch {
		case n == 0:
			st.missing++
		case n > 1:
			st.duplicates += int(n - 1)
		}
	}
	return st, nil
}

// benchCmd implements subcommands.Command to stress the condition queue.
type benchCmd struct {
	cfg    benchConfig
	stdout io.Writer
}

var _ = subcommands.Command(&benchCmd{})

func newBenchCmd(stdout io.Writer) *benchCmd {
	return &benchCmd{stdout: stdout}
}

func (*benchCmd) Name() string     { return "bench" }
func (*benchCmd) Synopsis() string { return "stress the condition queue" }
func (*benchCmd) Usage() string {
	return `Usage: bench [flag]...

Description:
    Runs concurrent producers and matcher-based consumers against one queue,
    verifies every item is delivered exactly once, and reports throughput
    and resource usage.

Flag:
`
}

func (b *benchCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&b.cfg.producers, "producers", 4, "number of producer goroutines")
	f.IntVar(&b.cfg.consumers, "consumers", 8, "number of consumer goroutines")
	f.IntVar(&b.cfg.items, "items", 100000, "number of items to deliver")
	f.IntVar(&b.cfg.classes, "classes", 4, "number of distinct consumer matchers")
}

func (b *benchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 {
		logging.Info(ctx, b.Usage())
		return subcommands.ExitUsageError
	}
	st, err := runBench(ctx, b.cfg)
	if err != nil {
		logging.Info(ctx, "Benchmark failed: ", err)
		return subcommands.ExitFailure
	}

	fmt.Fprintf(b.stdout, "delivered %d items in %v (%.0f items/s)\n",
		st.delivered, st.elapsed.Round(time.Millisecond), float64(st.delivered)/st.elapsed.Seconds())
	if usage, err := processUsage(); err != nil {
		logging.Debug(ctx, "Failed to read process usage: ", err)
	} else {
		fmt.Fprintln(b.stdout, usage)
	}

	if st.duplicates > 0 || st.missing > 0 {
		fmt.Fprintf(b.stdout, "FAIL: %d duplicate and %d missing deliveries\n", st.duplicates, st.missing)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(b.stdout, "every item delivered exactly once")
	return subcommands.ExitSuccess
}

// processUsage describes the memory and CPU usage of this process.
func processUsage() (string, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return "", err
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return "", err
	}
	times, err := p.Times()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("rss %.1f MiB, cpu user %.2fs sys %.2fs",
		float64(mem.RSS)/(1<<20), times.User, times.System), nil
}
