// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package shutil formats command lines for logs so they can be pasted into a
// shell.
package shutil

import (
	"regexp"
	"strings"
)

// safeRE matches words that need no quoting. A leading "=" is excluded since
// zsh expands it.
var safeRE = regexp.MustCompile(`^[-\w@%+:,./][-\w@%+:,./=]*$`)

// Escape quotes s for a POSIX shell if needed.
func Escape(s string) string {
	if safeRE.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// EscapeSlice escapes each of args and joins them with spaces.
func EscapeSlice(args []string) string {
	escaped := make([]string, len(args))
	for i, arg := range args {
		escaped[i] = Escape(arg)
	}
	return strings.Join(escaped, " ")
}

// CommandLine formats args preceded by "KEY=value" environment assignments,
// e.g. "TF_DEVICE_SERIAL=dut1 ./run 'a b'". Entries of env without "=" are
// ignored.
func CommandLine(env, args []string) string {
	var parts []string
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		parts = append(parts, k+"="+Escape(v))
	}
	if s := EscapeSlice(args); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}
