// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/greenlight-ci/greenlight/cmd/greenlight/commands"
	"github.com/greenlight-ci/greenlight/lib/process"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own output (like a failed run's
		// console summary) return an ExitError with the desired exit
		// code. Don't print a redundant "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		process.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return commands.Root().Execute(ctx, os.Args[1:])
}
