// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Rajak13/StudyCollab-sub003/internal/logger"
)

const (
	defaultSyncInterval = time.Minute
	minRetryDelay       = time.Second
)

// SyncJob triggers sync cycles in the background: on every online
// transition, on a fixed interval, when the earliest backed-off mutation
// becomes due and on Kick. An offline transition aborts the running cycle.
type SyncJob struct {
	syncer   Syncer
	network  Connectivity
	retries  RetryScheduler
	interval time.Duration
	kick     chan struct{}
	now      func() time.Time
	logger   *logger.Logger
}

// NewSyncJob builds an idle job; it does nothing until Run. A non-positive
// interval defaults to one minute.
func NewSyncJob(syncer Syncer, network Connectivity, retries RetryScheduler, interval time.Duration, logger *logger.Logger) *SyncJob {
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	return &SyncJob{
		syncer:   syncer,
		network:  network,
		retries:  retries,
		interval: interval,
		kick:     make(chan struct{}, 1),
		now:      time.Now,
		logger:   logger,
	}
}

// Kick asks for a cycle as soon as possible. It never blocks; kicks that
// arrive while one is already waiting are merged.
func (j *SyncJob) Kick() {
	select {
	case j.kick <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is done. Cycles it started are awaited before it
// returns.
func (j *SyncJob) Run(ctx context.Context) error {
	updates, unsubscribe := j.network.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	retry := time.NewTimer(time.Hour)
	retry.Stop()
	defer retry.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	done := make(chan error, 1)
	trigger := func(reason string) {
		wg.Go(func() {
			err := j.syncOnce(ctx, reason)
			select {
			case done <- err:
			default:
			}
		})
	}

	j.scheduleRetry(ctx, retry)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case online, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if online {
				trigger("online")
			} else {
				j.syncer.Abort(ErrOffline)
			}

		case <-ticker.C:
			trigger("interval")

		case <-j.kick:
			trigger("kick")

		case <-retry.C:
			trigger("retry")

		case err := <-done:
			// After a failed cycle only the interval retries.
			if err == nil {
				j.scheduleRetry(ctx, retry)
			}
		}
	}
}

func (j *SyncJob) syncOnce(ctx context.Context, reason string) error {
	log := j.logger.With().Str("func", "SyncJob.syncOnce").Str("trigger", reason).Logger()

	res, err := j.syncer.Sync(ctx)
	switch {
	case err == nil:
		log.Debug().Bool("success", res.Success).Int("errors", len(res.Errors)).Msg("background sync finished")
	case errors.Is(err, ErrOffline), errors.Is(err, ErrClosed), errors.Is(err, context.Canceled):
		log.Debug().Err(err).Msg("background sync skipped")
	default:
		log.Warn().Err(err).Msg("background sync failed")
	}
	return err
}

// scheduleRetry arms the retry timer for the earliest pending backoff.
// Nothing is armed while offline: the online transition triggers a cycle.
func (j *SyncJob) scheduleRetry(ctx context.Context, retry *time.Timer) {
	if !j.network.IsOnline() {
		return
	}
	next, ok, err := j.retries.NextRetryAt(ctx)
	if err != nil {
		j.logger.Err(err).Str("func", "SyncJob.scheduleRetry").Msg("error reading next retry time")
		return
	}
	if !ok {
		return
	}
	retry.Reset(max(next.Sub(j.now()), minRetryDelay))
}
