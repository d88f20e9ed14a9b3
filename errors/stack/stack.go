// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package stack captures and formats call stacks for the errors package.
package stack

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	maxDepth = 8 // maximum number of frames kept

	ellipsis = "\t..." // appended when frames were dropped
)

// Stack is a snapshot of program counters, innermost first.
type Stack []uintptr

// New captures the current call stack. skip=0 records the caller of New as
// the innermost frame.
func New(skip int) Stack {
	pc := make([]uintptr, maxDepth+1)
	pc = pc[:runtime.Callers(skip+2, pc)]
	return Stack(pc)
}

// Frames resolves s into at most maxDepth runtime frames. truncated reports
// whether deeper frames were dropped.
func (s Stack) Frames() (frames []runtime.Frame, truncated bool) {
	cf := runtime.CallersFrames(s)
	for {
		f, more := cf.Next()
		frames = append(frames, f)
		if !more {
			return frames, false
		}
		if len(frames) >= maxDepth {
			return frames, true
		}
	}
}

// String formats s as one "\tat func (file:line)" line per frame.
func (s Stack) String() string {
	frames, truncated := s.Frames()
	lines := make([]string, 0, len(frames)+1)
	for _, f := range frames {
		lines = append(lines, fmt.Sprintf("\tat %s (%s:%d)", f.Function, filepath.Base(f.File), f.Line))
	}
	if truncated {
		lines = append(lines, ellipsis)
	}
	return strings.Join(lines, "\n")
}
