// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package service holds the offline layer of a session: the encrypted local
// cache, the durable mutation queue, the conflict registry and the sync
// manager that moves data between them and the remote.
package service

import (
	"context"
	"time"

	"github.com/Rajak13/StudyCollab-sub003/models"
)

// Publisher receives notifications for UI subscribers. Publish must not
// block; [notify.Broadcaster] satisfies it.
type Publisher interface {
	Publish(e models.Event)
}

// Connectivity is the part of the network monitor the sync layer reads.
type Connectivity interface {
	// IsOnline returns the last committed connectivity state.
	IsOnline() bool

	// Subscribe returns a channel of committed transitions and the func
	// that ends the subscription.
	Subscribe() (<-chan bool, func())
}

// Syncer runs sync cycles. Implemented by [SyncManager].
type Syncer interface {
	// Sync runs one cycle, or joins the one already running, and returns
	// its result. An error is returned only when the cycle could not run or
	// failed fatally; per-mutation failures are reported in the result.
	Sync(ctx context.Context) (models.SyncResult, error)

	// Abort cancels the running cycle, if any, with cause. Requests in
	// flight are abandoned and their mutations stay queued.
	Abort(cause error)
}

// RetryScheduler tells the sync job when the next backed-off mutation is
// due. Implemented by [MutationQueue].
type RetryScheduler interface {
	NextRetryAt(ctx context.Context) (time.Time, bool, error)
}

type nopPublisher struct{}

func (nopPublisher) Publish(models.Event) {}
