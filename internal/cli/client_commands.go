// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Rajak13/StudyCollab-sub003/internal/workers"
	"github.com/Rajak13/StudyCollab-sub003/models"
)

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity, queue, conflict and cache counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.client.CheckConnectivity(cmd.Context()); err != nil {
				return err
			}
			status, err := a.client.Status(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), status)
		},
	}
}

func newSyncCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push queued mutations and pull remote changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.client.CheckConnectivity(cmd.Context()); err != nil {
				return err
			}
			res, err := a.client.TriggerSync(cmd.Context())
			if werr := writeJSON(cmd.OutOrStdout(), res); werr != nil {
				return errors.Join(err, werr)
			}
			return err
		},
	}
}

func newRecordCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "record <type> <id> <create|update|delete> [payload-json]",
		Short: "Apply a local change and queue it for sync",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := models.EntityType(args[0])
			op := models.Operation(args[2])

			var payload models.Payload
			if len(args) == 4 {
				var err error
				if payload, err = models.DecodePayload(t, []byte(args[3])); err != nil {
					return fmt.Errorf("decode payload: %w", err)
				}
			}

			if err := a.client.RecordMutation(cmd.Context(), t, args[1], op, payload); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "recorded %s %s/%s\n", op, t, args[1])
			return err
		},
	}
}

func newGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <type> <id>",
		Short: "Print a cached entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.client.Get(cmd.Context(), models.EntityKey{Type: models.EntityType(args[0]), ID: args[1]})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), e)
		},
	}
}

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <type>",
		Short: "Print every cached entity of a type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seq, err := a.client.List(cmd.Context(), models.EntityType(args[0]))
			if err != nil {
				return err
			}

			entities := []models.Entity{}
			for e, err := range seq {
				if err != nil {
					return err
				}
				entities = append(entities, e)
			}
			return writeJSON(cmd.OutOrStdout(), entities)
		},
	}
}

func newConflictsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts",
		Short: "List unresolved conflicts with both snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conflicts, err := a.client.Conflicts(cmd.Context())
			if err != nil {
				return err
			}
			if conflicts == nil {
				conflicts = []models.Conflict{}
			}
			return writeJSON(cmd.OutOrStdout(), conflicts)
		},
	}
}

func newResolveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <type> <id> <local|remote|merged> [payload-json]",
		Short: "Resolve a conflict",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := models.EntityKey{Type: models.EntityType(args[0]), ID: args[1]}

			res := models.Resolution{Choice: models.Choice(args[2])}
			if len(args) == 4 {
				payload, err := models.DecodePayload(key.Type, []byte(args[3]))
				if err != nil {
					return fmt.Errorf("decode payload: %w", err)
				}
				res.Payload = payload
			}

			if err := a.client.ResolveConflict(cmd.Context(), key, res); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "resolved %s with %s\n", key, res.Choice)
			return err
		},
	}
}

func newDeadLettersCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dead-letters",
		Short: "List mutations that gave up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dead, err := a.client.DeadLettered(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), dead)
		},
	}
}

func newRequeueCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <mutation-id>",
		Short: "Move a dead-lettered mutation back to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.RequeueDeadLettered(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "requeued %s\n", args[0])
			return err
		},
	}
}

func newClearCacheCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-cache",
		Short: "Drop synced cache rows; unsynced work is kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			removed, err := a.client.ClearCache(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached entities\n", removed)
			return err
		},
	}
}

func newWatchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run background sync and print events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			events, unsubscribe, err := a.client.Subscribe()
			if err != nil {
				return err
			}
			defer unsubscribe()

			enc := json.NewEncoder(cmd.OutOrStdout())
			printer := workers.Func(func(ctx context.Context) error {
				for {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case e, ok := <-events:
						if !ok {
							return nil
						}
						if err := enc.Encode(e); err != nil {
							return err
						}
					}
				}
			})

			return workers.NewWorkers(a.logger, printer, workers.Func(a.client.Start)).Run(cmd.Context())
		},
	}
}
