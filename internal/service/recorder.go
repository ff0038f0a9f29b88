// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Rajak13/StudyCollab-sub003/internal/logger"
	"github.com/Rajak13/StudyCollab-sub003/internal/store"
	"github.com/Rajak13/StudyCollab-sub003/internal/utils"
	"github.com/Rajak13/StudyCollab-sub003/models"
)

// Recorder applies local writes: the cache row and the queued mutation are
// changed together under the entity lock, in one transaction. It never
// touches the network.
type Recorder struct {
	storages  *store.ClientStorages
	cache     *LocalCache
	queue     *MutationQueue
	conflicts *ConflictRegistry
	locks     *utils.KeyedMutex
	events    Publisher
	now       func() time.Time
	logger    *logger.Logger
}

// NewRecorder wires a recorder.
func NewRecorder(
	storages *store.ClientStorages,
	cache *LocalCache,
	queue *MutationQueue,
	conflicts *ConflictRegistry,
	locks *utils.KeyedMutex,
	events Publisher,
	logger *logger.Logger,
) *Recorder {
	if events == nil {
		events = nopPublisher{}
	}
	return &Recorder{
		storages:  storages,
		cache:     cache,
		queue:     queue,
		conflicts: conflicts,
		locks:     locks,
		events:    events,
		now:       time.Now,
		logger:    logger,
	}
}

// Record applies req locally and queues it for the remote.
//
// A create needs an entity that is absent or deleted locally; update and
// delete need a cached one ([store.ErrNotFound] otherwise). Writes bump the
// local version and mark the row pending; a delete marks it
// deleted-pending, or removes it when the remote never saw the entity. An
// entity in conflict stays in conflict and its local side is refreshed.
func (r *Recorder) Record(ctx context.Context, req models.MutationRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}
	if req.Payload.Type == "" && req.Operation != models.OpDelete {
		req.Payload.Type = req.EntityType
	}

	key := models.EntityKey{Type: req.EntityType, ID: req.EntityID}
	unlock := r.locks.Lock(key.String())
	defer unlock()

	now := r.now()
	err := r.storages.InTx(ctx, func(ctx context.Context) error {
		ent, exists, err := r.cache.record(ctx, key)
		if err != nil {
			return err
		}

		deleted := exists && ent.SyncStatus == models.StatusDeletedPending
		switch req.Operation {
		case models.OpCreate:
			if exists && !deleted {
				return fmt.Errorf("%w: %s already exists", ErrInvalidMutation, key)
			}
		default:
			if !exists || deleted {
				return fmt.Errorf("%w: %s", store.ErrNotFound, key)
			}
		}

		var base *int64
		if exists && ent.RemoteVersion != nil {
			base = models.Int64Ptr(*ent.RemoteVersion)
		}

		m, cancelled, err := r.queue.Enqueue(ctx, req, base)
		if err != nil {
			return err
		}
		if cancelled {
			_, err = r.cache.Remove(ctx, key)
			return err
		}

		inConflict := exists && ent.SyncStatus == models.StatusConflict
		if !exists {
			ent = models.CachedEntity{ID: key.ID, EntityType: key.Type}
		}
		ent.LocalVersion++
		ent.LastModifiedLocal = now

		var localBlob []byte
		switch req.Operation {
		case models.OpDelete:
			ent.SyncStatus = models.StatusDeletedPending
		default:
			ent.PayloadEncrypted = m.PayloadEncrypted
			ent.SyncStatus = models.StatusPending
			localBlob = m.PayloadEncrypted
		}

		if inConflict {
			ent.SyncStatus = models.StatusConflict
			if m.State != models.MutationConflict {
				if _, err = r.queue.MarkConflict(ctx, m); err != nil {
					return err
				}
			}
			if err = r.conflicts.RefreshLocal(ctx, key, localBlob, now); err != nil {
				return err
			}
		}
		return r.cache.putRecord(ctx, ent)
	})
	if err != nil {
		r.logger.Err(err).Str("func", "Recorder.Record").Str("entity", key.String()).Str("op", string(req.Operation)).Msg("error recording mutation")
		return err
	}

	r.logger.Debug().Str("func", "Recorder.Record").Str("entity", key.String()).Str("op", string(req.Operation)).Msg("mutation recorded")
	r.events.Publish(models.Event{Kind: models.EventEntityChanged, At: now, Entity: &key})
	return nil
}
