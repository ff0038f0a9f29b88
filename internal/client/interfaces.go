// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package client

import (
	"context"
	"iter"

	"github.com/Rajak13/StudyCollab-sub003/models"
)

// Client is the contract of the offline coordinator used by the CLI.
type Client interface {
	// Initialize opens the session of userID. It must be called before any
	// other method.
	Initialize(ctx context.Context, userID, sessionToken string, opts ...Option) error

	// RecordMutation applies a local change to the cache and queues it.
	RecordMutation(ctx context.Context, entityType models.EntityType, entityID string, op models.Operation, payload models.Payload) error

	// TriggerSync runs one sync cycle, joining a cycle already in progress.
	TriggerSync(ctx context.Context) (models.SyncResult, error)

	// Status summarizes connectivity, queue, conflicts and cache.
	Status(ctx context.Context) (models.Status, error)

	// ClearCache drops synced cache rows. Unsynced local work is kept.
	ClearCache(ctx context.Context) (int64, error)

	Get(ctx context.Context, key models.EntityKey) (models.Entity, error)
	List(ctx context.Context, t models.EntityType) (iter.Seq2[models.Entity, error], error)

	Conflicts(ctx context.Context) ([]models.Conflict, error)
	ResolveConflict(ctx context.Context, key models.EntityKey, res models.Resolution) error

	DeadLettered(ctx context.Context) ([]models.DeadLetter, error)
	RequeueDeadLettered(ctx context.Context, id string) error

	// Subscribe returns the event stream of the session and the func that
	// ends the subscription.
	Subscribe() (<-chan models.Event, func(), error)

	// Start runs the background workers and blocks until ctx ends.
	Start(ctx context.Context) error

	Close() error
}
