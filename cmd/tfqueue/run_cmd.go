// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"go.chromium.org/tradefed/errors"
	"go.chromium.org/tradefed/internal/devicepool"
	"go.chromium.org/tradefed/internal/logging"
	"go.chromium.org/tradefed/internal/scheduler"
)

// runCmd implements subcommands.Command to support running invocations.
type runCmd struct {
	json         bool          // print results as JSON
	failForTests bool          // exit with 1 if any invocation fails
	timeout      time.Duration // overall timeout; 0 if no timeout
	logFile      string        // path of a debug log for this run; empty if none
	shard        shardFlags
	runner       scheduler.Runner     // can be replaced by tests
	stdout       io.Writer            // where to write results
	logger       *logging.MultiLogger // attached to the context passed to Execute
}

var _ = subcommands.Command(&runCmd{})

func newRunCmd(stdout io.Writer, logger *logging.MultiLogger) *runCmd {
	return &runCmd{
		runner: scheduler.CommandRunner{},
		stdout: stdout,
		logger: logger,
	}
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "run invocations" }
func (*runCmd) Usage() string {
	return `Usage: run [flag]... <scheduler.yaml>

Description:
    Registers the devices of a scheduler file and runs the invocations of the
    selected shard on them, each on a device matching its selector.
    Exits with 0 if all invocations were attempted, even if some of them
    failed. -failfortests can be supplied to override this behavior.

Flag:
`
}

func (r *runCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&r.json, "json", false, "print results as JSON")
	f.BoolVar(&r.failForTests, "failfortests", false, "exit with 1 if any invocation fails")
	f.DurationVar(&r.timeout, "timeout", 0, "overall run timeout; 0 for none")
	f.StringVar(&r.logFile, "logfile", "", "also write debug logs of this run to this file")
	r.shard.SetFlags(f)
}

func (r *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		logging.Info(ctx, "Missing scheduler file.\n\n"+r.Usage())
		return subcommands.ExitUsageError
	}
	if r.logFile != "" {
		lf, err := os.Create(r.logFile)
		if err != nil {
			logging.Info(ctx, "Failed to create log file: ", err)
			return subcommands.ExitFailure
		}
		defer lf.Close()
		fileLogger := logging.NewSinkLogger(logging.LevelDebug, true, logging.NewWriterSink(lf))
		r.logger.AddLogger(fileLogger)
		defer r.logger.RemoveLogger(fileLogger)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cf, invs, err := r.shard.loadShard(f.Arg(0))
	if err != nil {
		logging.Info(ctx, "Failed to load invocations: ", err)
		return subcommands.ExitFailure
	}
	if len(invs) == 0 {
		logging.Info(ctx, "No invocations in this shard")
		return subcommands.ExitSuccess
	}

	pool := devicepool.New()
	if err := pool.Register(cf.PoolDevices()...); err != nil {
		logging.Info(ctx, "Failed to register devices: ", err)
		return subcommands.ExitFailure
	}
	logging.Infof(ctx, "Running %d invocation(s) on %d device(s)", len(invs), len(pool.Available()))

	results, runErr := scheduler.New(pool, r.runner, cf.SchedulerConfig()).Run(ctx, invs)
	if err := r.printResults(results); err != nil {
		logging.Info(ctx, "Failed to write results: ", err)
		return subcommands.ExitFailure
	}
	if runErr != nil {
		logging.Info(ctx, "Run stopped early: ", runErr)
		return subcommands.ExitFailure
	}
	if r.failForTests {
		for _, res := range results {
			if res.Failed() {
				return subcommands.ExitFailure
			}
		}
	}
	return subcommands.ExitSuccess
}

func (r *runCmd) printResults(results []*scheduler.Result) error {
	if r.json {
		enc := json.NewEncoder(r.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return errors.Wrap(err, "failed to encode results")
		}
		return nil
	}

	tw := tabwriter.NewWriter(r.stdout, 0, 8, 2, ' ', 0)
	for _, res := range results {
		status := "PASS"
		switch {
		case res.Skipped:
			status = "SKIP"
		case res.Failed():
			status = "FAIL"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%s\n", res.Name, status, res.Device, res.Duration.Round(time.Millisecond), res.Error)
	}
	return tw.Flush()
}
