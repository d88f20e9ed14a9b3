// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"flag"

	"go.chromium.org/tradefed/internal/config"
	"go.chromium.org/tradefed/internal/scheduler"
	"go.chromium.org/tradefed/internal/sharding"
)

// shardFlags holds the sharding flags shared by run and list.
type shardFlags struct {
	index int
	total int
}

func (s *shardFlags) SetFlags(f *flag.FlagSet) {
	f.IntVar(&s.index, "shardindex", 0, "index of the shard to handle, in [0, totalshards)")
	f.IntVar(&s.total, "totalshards", 1, "total number of shards")
}

// loadShard loads the scheduler file at path and returns it along with the
// invocations of the selected shard.
func (s *shardFlags) loadShard(path string) (*config.File, []*scheduler.Invocation, error) {
	cf, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	shard, err := sharding.Compute(cf.SchedulerInvocations(), func(inv *scheduler.Invocation) bool {
		return inv.Disabled
	}, s.index, s.total)
	if err != nil {
		return nil, nil, err
	}
	return cf, shard.Included, nil
}
