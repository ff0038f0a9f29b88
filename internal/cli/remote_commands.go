// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Rajak13/StudyCollab-sub003/internal/config"
	handlerhttp "github.com/Rajak13/StudyCollab-sub003/internal/handler/http"
	"github.com/Rajak13/StudyCollab-sub003/internal/logger"
	"github.com/Rajak13/StudyCollab-sub003/internal/remote"
	"github.com/Rajak13/StudyCollab-sub003/internal/server"
	"github.com/Rajak13/StudyCollab-sub003/internal/utils"
)

// NewRemoteCommand returns the syncremote root command.
func NewRemoteCommand(build BuildInfo) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "syncremote",
		Short:         "In-memory reference sync remote for StudyCollab clients",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newServeCommand(build),
		newTokenCommand(),
		newVersionCommand(build),
	)
	return cmd
}

func newServeCommand(build BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the sync API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.GetServerConfig(cmd.Flags())
			if err != nil {
				return err
			}
			if cfg.Version == "dev" && build.Version != "" {
				cfg.Version = build.Version
			}

			log := logger.NewLogger("syncremote")
			log.Debug().Str("address", cfg.HTTPAddress).Str("version", cfg.Version).Msg("received configs")

			handler := handlerhttp.NewHandler(remote.NewMemoryStore(log), cfg, log)
			srv, err := server.NewServer(handler.Init(), cfg, log)
			if err != nil {
				return fmt.Errorf("create server: %w", err)
			}

			srv.RunServer()
			return nil
		},
	}
}

func newTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Issue a session token for --user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.GetServerConfig(cmd.Flags())
			if err != nil {
				return err
			}
			userID, _ := cmd.Flags().GetString(config.FlagUserID)
			if userID == "" {
				return errors.New("--user is required")
			}

			token, err := utils.GenerateJWTToken(cfg.TokenIssuer, userID, cfg.TokenDuration, cfg.TokenSignKey)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
}
