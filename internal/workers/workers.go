// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package workers

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/Rajak13/StudyCollab-sub003/internal/logger"
)

// Workers runs a set of workers together: they start at once, and the
// first failure stops the rest.
type Workers struct {
	workers []Worker
	logger  *logger.Logger
}

// NewWorkers groups ws.
func NewWorkers(logger *logger.Logger, ws ...Worker) *Workers {
	return &Workers{workers: ws, logger: logger}
}

// Run blocks until every worker has returned. Cancellation of ctx is a
// clean stop and yields nil; otherwise the first worker error is returned.
func (w *Workers) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, worker := range w.workers {
		g.Go(func() error {
			return worker.Run(gctx)
		})
	}

	err := g.Wait()
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	if err != nil {
		w.logger.Err(err).Str("func", "Workers.Run").Msg("worker stopped with error")
	}
	return err
}
