// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package remote implements the reference sync remote: a per-user versioned
// entity store with a change feed.
//
// Every accepted write bumps the entity version and moves the entity to the
// head of the user's change feed. Pushes carry the version the client based
// its edit on; a mismatch is answered with a conflict carrying the current
// remote snapshot. Deletes leave tombstones so other devices learn about
// them from the feed. Applied pushes are remembered by idempotency key and
// replayed verbatim on redelivery.
package remote

import (
	"context"

	"github.com/Rajak13/StudyCollab-sub003/models"
)

// SyncStore is the contract the HTTP handler serves.
type SyncStore interface {
	// Push applies req for userID. Conflicts are results, not errors.
	// idempotencyKey may be empty; when set, a repeated key returns the
	// first applied result without touching the store.
	Push(ctx context.Context, userID, idempotencyKey string, req models.PushRequest) (models.PushResult, error)

	// Changes returns at most limit entity snapshots whose feed position
	// is greater than since, in feed order.
	Changes(ctx context.Context, userID string, since int64, limit int) (models.PullResponse, error)
}
