// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package main implements the tfqueue executable, which schedules
// invocations onto a pool of devices.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/google/subcommands"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"go.chromium.org/tradefed/internal/logging"
)

const signalChannelSize = 3 // capacity of channel used to intercept signals

// Version is the version info of this command. It is filled in at build time.
var Version = "<unknown>"

// newLogger creates a console logger based on the supplied command-line flags.
func newLogger(verbose, logTime bool) logging.Logger {
	level := logging.LevelInfo
	if verbose {
		level = logging.LevelDebug
	}
	return logging.NewSinkLogger(level, logTime, logging.NewWriterSink(os.Stdout))
}

// installSignalHandler cancels the run on the first SIGINT or SIGTERM so that
// invocation commands, which run in their own process groups and do not see
// terminal signals, get killed. A second signal exits immediately.
func installSignalHandler(ctx context.Context, cancel context.CancelFunc) {
	var st *term.State
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		var err error
		if st, err = term.GetState(fd); err != nil {
			logging.Info(ctx, "Failed to get terminal state: ", err)
		}
	}

	sc := make(chan os.Signal, signalChannelSize)
	go handleSignals(sc, cancel, func(code int) {
		if st != nil {
			term.Restore(fd, st)
		}
		os.Exit(code)
	}, os.Stdout)
	signal.Notify(sc, unix.SIGINT, unix.SIGTERM)
}

// handleSignals calls cancel on the first signal received from sc and exit on
// the second.
func handleSignals(sc <-chan os.Signal, cancel context.CancelFunc, exit func(code int), w io.Writer) {
	first := true
	for sig := range sc {
		if first {
			fmt.Fprintf(w, "\nCaught %v signal; stopping invocations (send again to exit now)\n", sig)
			cancel()
			first = false
			continue
		}
		fmt.Fprintf(w, "\nCaught %v signal; exiting\n", sig)
		exit(1)
		return
	}
}

// doMain implements the main body of the program. It's a separate function so
// that its deferred functions will run before os.Exit makes the program exit
// immediately.
func doMain() int {
	// The console logger is added once flags are parsed.
	logger := logging.NewMultiLogger()

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(newRunCmd(os.Stdout, logger), "")
	subcommands.Register(newListCmd(os.Stdout), "")
	subcommands.Register(newBenchCmd(os.Stdout), "")

	version := flag.Bool("version", false, "print version and exit")
	verbose := flag.Bool("verbose", false, "use verbose logging")
	logTime := flag.Bool("logtime", true, "include date/time headers in logs")
	flag.Parse()

	if *version {
		fmt.Printf("tfqueue version %s\n", Version)
		return 0
	}

	logger.AddLogger(newLogger(*verbose, *logTime))
	ctx, cancel := context.WithCancel(logging.AttachLogger(context.Background(), logger))
	defer cancel()
	installSignalHandler(ctx, cancel)

	return int(subcommands.Execute(ctx))
}

func main() {
	os.Exit(doMain())
}
