// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package sharding_test

import (
	"fmt"
	"strings"
	"testing"
	"unicode"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"go.chromium.org/tradefed/internal/sharding"
)

// items splits pattern into one-character names. Lower-case names are
// skipped by isSkipped.
func items(pattern string) []string {
	return strings.Split(pattern, "")
}

func isSkipped(s string) bool {
	return unicode.IsLower(rune(s[0]))
}

func TestCompute(t *testing.T) {
	for _, tc := range []struct {
		name    string
		pattern string
		shards  [][2]string // included, excluded
	}{
		{"single", "AxyBCzEF", [][2]string{{"xyzABCEF", ""}}},
		{"even", "ABCDEFGHI", [][2]string{{"ABC", "DEFGHI"}, {"DEF", "ABCGHI"}, {"GHI", "ABCDEF"}}},
		{"uneven", "ABCDEFGHIJK", [][2]string{{"ABCD", "EFGHIJK"}, {"EFGH", "ABCDIJK"}, {"IJK", "ABCDEFGH"}}},
		{"skips", "AxByCzD", [][2]string{{"xyzAB", "CD"}, {"C", "xyzABD"}, {"D", "xyzABC"}}},
		{"sparse", "AB", [][2]string{{"A", "B"}, {"B", "A"}, {"", "AB"}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			for i, want := range tc.shards {
				got, err := sharding.Compute(items(tc.pattern), isSkipped, i, len(tc.shards))
				if err != nil {
					t.Fatal("Compute failed: ", err)
				}
				wantShard := &sharding.Shard[string]{
					Included: items(want[0]),
					Excluded: items(want[1]),
				}
				if diff := cmp.Diff(got, wantShard, cmpopts.EquateEmpty()); diff != "" {
					t.Errorf("Shard %d mismatch (-got +want):\n%s", i, diff)
				}
			}
		})
	}
}

func TestComputeNoSkipFunc(t *testing.T) {
	got, err := sharding.Compute([]int{1, 2, 3}, nil, 1, 2)
	if err != nil {
		t.Fatal("Compute failed: ", err)
	}
	if diff := cmp.Diff(got.Included, []int{3}); diff != "" {
		t.Errorf("Included mismatch (-got +want):\n%s", diff)
	}
}

func TestComputeInvalid(t *testing.T) {
	for _, tc := range []struct{ index, total int }{{0, 0}, {-1, 2}, {2, 2}} {
		if _, err := sharding.Compute([]int{1}, nil, tc.index, tc.total); err == nil {
			t.Errorf("Compute(index=%d, total=%d) succeeded; want error", tc.index, tc.total)
		}
	}
}

func ExampleCompute() {
	s, _ := sharding.Compute([]string{"a", "b", "c", "d", "e"}, nil, 0, 2)
	fmt.Println(s.Included, s.Excluded)
	// Output: [a b c] [d e]
}
