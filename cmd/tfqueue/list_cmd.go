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

	"github.com/google/subcommands"

	"go.chromium.org/tradefed/internal/logging"
	"go.chromium.org/tradefed/internal/scheduler"
)

// listCmd implements subcommands.Command to support listing invocations.
type listCmd struct {
	json   bool      // marshal invocations to JSON instead of printing names
	shard  shardFlags
	stdout io.Writer // where to write invocations
}

var _ = subcommands.Command(&listCmd{})

func newListCmd(stdout io.Writer) *listCmd {
	return &listCmd{stdout: stdout}
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list invocations" }
func (*listCmd) Usage() string {
	return `Usage: list [flag]... <scheduler.yaml>

Description:
    Lists the invocations of a scheduler file handled by the selected shard,
    repeats expanded, one per line.

Flag:
`
}

func (lc *listCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&lc.json, "json", false, "print full invocation details as JSON")
	lc.shard.SetFlags(f)
}

func (lc *listCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		logging.Info(ctx, "Missing scheduler file.\n\n"+lc.Usage())
		return subcommands.ExitUsageError
	}
	_, invs, err := lc.shard.loadShard(f.Arg(0))
	if err != nil {
		logging.Info(ctx, "Failed to load invocations: ", err)
		return subcommands.ExitFailure
	}
	if err := lc.printInvocations(invs); err != nil {
		logging.Info(ctx, "Failed to write invocations: ", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (lc *listCmd) printInvocations(invs []*scheduler.Invocation) error {
	if lc.json {
		enc := json.NewEncoder(lc.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(invs)
	}
	for _, inv := range invs {
		if _, err := fmt.Fprintln(lc.stdout, inv.Name); err != nil {
			return err
		}
	}
	return nil
}
