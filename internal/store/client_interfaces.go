// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"time"

	"github.com/Rajak13/StudyCollab-sub003/models"
)

// Transactor runs fn in one transaction. Repository calls made with the
// context handed to fn take part in it.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EntityRepository stores cached entities and keeps cache_stats in step.
type EntityRepository interface {
	Get(ctx context.Context, key models.EntityKey) (models.CachedEntity, error)
	Upsert(ctx context.Context, e models.CachedEntity) error
	Delete(ctx context.Context, key models.EntityKey) (bool, error)
	Touch(ctx context.Context, key models.EntityKey, at time.Time) error
	ListByType(ctx context.Context, t models.EntityType, afterID string, limit int) ([]models.CachedEntity, error)
	DeleteSynced(ctx context.Context, t models.EntityType) (int64, error)
	LeastRecentlyRead(ctx context.Context, limit int) ([]models.CachedEntity, error)
	Stats(ctx context.Context) (models.CacheStats, error)
}

// MutationRepository stores the durable mutation queue.
type MutationRepository interface {
	Insert(ctx context.Context, m models.QueuedMutation) (int64, error)
	Update(ctx context.Context, m models.QueuedMutation) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (models.QueuedMutation, error)
	GetLive(ctx context.Context, key models.EntityKey) (models.QueuedMutation, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.QueuedMutation, error)
	ListByState(ctx context.Context, state models.MutationState) ([]models.QueuedMutation, error)
	CountByState(ctx context.Context) (map[models.MutationState]int64, error)
	NextAttemptAt(ctx context.Context) (time.Time, bool, error)
}

// ConflictRepository stores unresolved conflicts, one per entity.
type ConflictRepository interface {
	Upsert(ctx context.Context, c models.ConflictRecord) error
	Get(ctx context.Context, key models.EntityKey) (models.ConflictRecord, error)
	Delete(ctx context.Context, key models.EntityKey) error
	List(ctx context.Context) ([]models.ConflictRecord, error)
	Count(ctx context.Context) (int64, error)
}

// MetaRepository is a small key/value table of partition bookkeeping.
type MetaRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	GetInt64(ctx context.Context, key string) (int64, bool, error)
	SetInt64(ctx context.Context, key string, value int64) error
}
