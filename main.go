// nanochat - A terminal client for NanoChat.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/thejudge22/nanochat-desktop/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	// Ctrl+C is handled per command: ask stops waiting, chat stops the
	// current reply, so only SIGTERM cancels the whole run.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	err := cli.Run(ctx, cmd, args, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		cli.HandleErrorAndExit(err, args.JSON)
	}
}
