// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Rajak13/StudyCollab-sub003/internal/client"
	"github.com/Rajak13/StudyCollab-sub003/internal/config"
	"github.com/Rajak13/StudyCollab-sub003/internal/logger"
)

// BuildInfo is stamped into the binaries at link time.
type BuildInfo struct {
	Version string
	Date    string
	Commit  string
}

func (b BuildInfo) String() string {
	orNA := func(s string) string {
		if s == "" {
			return "N/A"
		}
		return s
	}
	return fmt.Sprintf("Build version: %s\nBuild date: %s\nBuild commit: %s\n",
		orNA(b.Version), orNA(b.Date), orNA(b.Commit))
}

// app carries the session shared by a client command run.
type app struct {
	build      BuildInfo
	clientOpts []client.Option

	cfg    *config.ClientConfig
	logger *logger.Logger
	client *client.Coordinator
}

// NewClientCommand returns the studysync root command. opts are passed to
// every session the commands open.
func NewClientCommand(build BuildInfo, opts ...client.Option) *cobra.Command {
	a := &app{build: build, clientOpts: opts}

	cmd := &cobra.Command{
		Use:           "studysync",
		Short:         "Offline cache and sync client for StudyCollab",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		a.withSession(newStatusCommand(a)),
		a.withSession(newSyncCommand(a)),
		a.withSession(newRecordCommand(a)),
		a.withSession(newGetCommand(a)),
		a.withSession(newListCommand(a)),
		a.withSession(newConflictsCommand(a)),
		a.withSession(newResolveCommand(a)),
		a.withSession(newDeadLettersCommand(a)),
		a.withSession(newRequeueCommand(a)),
		a.withSession(newClearCacheCommand(a)),
		a.withSession(newWatchCommand(a)),
		newVersionCommand(build),
	)

	return cmd
}

// withSession opens the coordinator before cmd runs and closes it after.
func (a *app) withSession(cmd *cobra.Command) *cobra.Command {
	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.GetClientConfig(cmd.Flags())
		if err != nil {
			return err
		}
		a.cfg = cfg
		a.logger = logger.NewClientLogger("studysync", cfg.Log)

		c := client.NewCoordinator(cfg, a.logger)
		if err = c.Initialize(cmd.Context(), cfg.App.UserID, cfg.App.SessionToken, a.clientOpts...); err != nil {
			return fmt.Errorf("open session: %w", err)
		}
		a.client = c
		return nil
	}
	run := cmd.RunE
	cmd.RunE = func(cmd *cobra.Command, args []string) (err error) {
		defer func() { err = errors.Join(err, a.close()) }()
		return run(cmd, args)
	}
	return cmd
}

func (a *app) close() error {
	if a.client == nil {
		return nil
	}
	err := a.client.Close()
	a.client = nil
	return err
}

func newVersionCommand(build BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), build.String())
			return err
		},
	}
}
