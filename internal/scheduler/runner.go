// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scheduler

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"go.chromium.org/tradefed/errors"
	"go.chromium.org/tradefed/internal/devicepool"
	"go.chromium.org/tradefed/internal/logging"
	"go.chromium.org/tradefed/shutil"
)

// Environment variables exported to invocation commands.
const (
	DeviceSerialEnv = "TF_DEVICE_SERIAL"
	InvocationEnv   = "TF_INVOCATION"
)

// CommandRunner is a Runner executing Invocation.Command on the host. The
// command runs in its own process group, which is killed if ctx is done
// first. Its combined output is logged at debug level.
type CommandRunner struct{}

var _ Runner = CommandRunner{}

// Run executes inv.Command for dev.
func (CommandRunner) Run(ctx context.Context, inv *Invocation, dev *devicepool.Device) error {
	if len(inv.Command) == 0 {
		return errors.Errorf("invocation %s has no command", inv.Name)
	}
	env := []string{DeviceSerialEnv + "=" + dev.Serial, InvocationEnv + "=" + inv.Name}
	logging.Infof(ctx, "Executing %s", shutil.CommandLine(env, inv.Command))

	var out bytes.Buffer
	cmd := exec.Command(inv.Command[0], inv.Command[1:]...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "failed to start %s", inv.Command[0])
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		// A negative pid signals the whole process group.
		unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		<-done
		err = errors.Wrap(ctx.Err(), "command interrupted")
	}

	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		logging.Debug(ctx, sc.Text())
	}
	if err != nil {
		return errors.Wrapf(err, "%s failed", shutil.Escape(inv.Command[0]))
	}
	return nil
}
