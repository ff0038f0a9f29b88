// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Rajak13/StudyCollab-sub003/internal/cli"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	build := cli.BuildInfo{Version: buildVersion, Date: buildDate, Commit: buildCommit}
	if err := cli.NewRemoteCommand(build).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "syncremote: %v\n", err)
		stop()
		os.Exit(1)
	}
}
