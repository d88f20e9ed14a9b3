// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package sharding splits invocations among several scheduler processes.
package sharding

import (
	"go.chromium.org/tradefed/errors"
)

// Shard is the part of a list of items handled by one shard.
type Shard[T any] struct {
	// Included is the items to be handled by the shard. Skipped items are
	// all included in shard 0 so they are reported exactly once.
	Included []T
	// Excluded is the items handled by other shards.
	Excluded []T
}

// Compute returns shard shardIndex of totalShards. Items for which skipped
// returns true are not run and all go to shard 0; the remaining items are
// split into contiguous ranges, the first shards getting one extra item when
// the split is uneven. skipped may be nil.
func Compute[T any](items []T, skipped func(T) bool, shardIndex, totalShards int) (*Shard[T], error) {
	if totalShards <= 0 {
		return nil, errors.Errorf("invalid number of shards %d", totalShards)
	}
	if shardIndex < 0 || shardIndex >= totalShards {
		return nil, errors.Errorf("shard index %d out of range [0, %d)", shardIndex, totalShards)
	}

	var runs, skips []T
	for _, it := range items {
		if skipped != nil && skipped(it) {
			skips = append(skips, it)
		} else {
			runs = append(runs, it)
		}
	}

	start, end := shardIndices(len(runs), shardIndex, totalShards)

	var includes, excludes []T
	if shardIndex == 0 {
		includes = skips
	} else {
		excludes = skips
	}
	includes = append(includes, runs[start:end]...)
	excludes = append(append(excludes, runs[:start]...), runs[end:]...)
	return &Shard[T]{Included: includes, Excluded: excludes}, nil
}

func shardIndices(n, shardIndex, totalShards int) (start, end int) {
	per := n / totalShards
	extra := n % totalShards
	if shardIndex < extra {
		per++
		start = shardIndex * per
	} else {
		start = shardIndex*per + extra
	}
	return start, start + per
}
