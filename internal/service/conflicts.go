// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Rajak13/StudyCollab-sub003/internal/crypto"
	"github.com/Rajak13/StudyCollab-sub003/internal/logger"
	"github.com/Rajak13/StudyCollab-sub003/internal/store"
	"github.com/Rajak13/StudyCollab-sub003/internal/utils"
	"github.com/Rajak13/StudyCollab-sub003/models"
)

// ConflictRegistry keeps one unresolved conflict per entity until the user
// resolves it. Conflicts never expire.
type ConflictRegistry struct {
	storages *store.ClientStorages
	cipher   crypto.Cipher
	cache    *LocalCache
	queue    *MutationQueue
	locks    *utils.KeyedMutex
	events   Publisher
	now      func() time.Time
	logger   *logger.Logger
}

// NewConflictRegistry wires the registry. locks must be the mutex set shared
// with every other writer of the partition.
func NewConflictRegistry(
	storages *store.ClientStorages,
	cipher crypto.Cipher,
	cache *LocalCache,
	queue *MutationQueue,
	locks *utils.KeyedMutex,
	events Publisher,
	logger *logger.Logger,
) *ConflictRegistry {
	if events == nil {
		events = nopPublisher{}
	}
	return &ConflictRegistry{
		storages: storages,
		cipher:   cipher,
		cache:    cache,
		queue:    queue,
		locks:    locks,
		events:   events,
		now:      time.Now,
		logger:   logger,
	}
}

// List returns the decrypted conflicts, oldest first.
func (r *ConflictRegistry) List(ctx context.Context) ([]models.Conflict, error) {
	recs, err := r.storages.Conflicts.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.Conflict, 0, len(recs))
	for _, rec := range recs {
		c, err := r.decode(rec)
		if err != nil {
			r.logger.Err(err).Str("func", "ConflictRegistry.List").Str("entity", rec.Key().String()).Msg("error decrypting conflict")
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Get returns the decrypted conflict of key or [store.ErrNotFound].
func (r *ConflictRegistry) Get(ctx context.Context, key models.EntityKey) (models.Conflict, error) {
	rec, err := r.storages.Conflicts.Get(ctx, key)
	if err != nil {
		return models.Conflict{}, err
	}
	return r.decode(rec)
}

// Count returns the number of unresolved conflicts.
func (r *ConflictRegistry) Count(ctx context.Context) (int64, error) {
	return r.storages.Conflicts.Count(ctx)
}

// Record stores rec, replacing the conflict already known for the entity.
func (r *ConflictRegistry) Record(ctx context.Context, rec models.ConflictRecord) error {
	if rec.DetectedAt.IsZero() {
		rec.DetectedAt = r.now()
	}
	return r.storages.Conflicts.Upsert(ctx, rec)
}

// RefreshLocal replaces the local side of the conflict of key after a new
// local edit. It is a no-op when the entity has no conflict.
func (r *ConflictRegistry) RefreshLocal(ctx context.Context, key models.EntityKey, localBlob []byte, at time.Time) error {
	rec, err := r.storages.Conflicts.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	rec.LocalSnapshot = localBlob
	rec.LocalTimestamp = at
	return r.storages.Conflicts.Upsert(ctx, rec)
}

// refreshRemote replaces the remote side of the conflict of key when snap is
// newer than the version recorded.
func (r *ConflictRegistry) refreshRemote(ctx context.Context, key models.EntityKey, snap models.RemoteSnapshot) (bool, error) {
	rec, err := r.storages.Conflicts.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if snap.Version <= rec.RemoteVersion {
		return false, nil
	}

	blob, err := sealRaw(r.cipher, snap.Payload)
	if err != nil {
		return false, err
	}
	rec.RemoteSnapshot = blob
	rec.RemoteVersion = snap.Version
	rec.RemoteDeleted = snap.Deleted
	rec.RemoteTimestamp = snap.UpdatedAt
	return true, r.storages.Conflicts.Upsert(ctx, rec)
}

// Resolve settles the conflict of key.
//
//   - remote: the remote snapshot becomes the synced cache row (or the row
//     is removed when the remote deleted the entity) and the queued
//     mutation is discarded.
//   - local: the local snapshot is kept and its mutation is rebased onto the
//     remote version as pending.
//   - merged: like local with res.Payload as the new content.
//
// The kept local row gets a local version above both sides. The conflict
// record is removed.
func (r *ConflictRegistry) Resolve(ctx context.Context, key models.EntityKey, res models.Resolution) error {
	var mergedBlob []byte
	switch res.Choice {
	case models.ChooseLocal, models.ChooseRemote:
	case models.ChooseMerged:
		if res.Payload.IsZero() {
			return fmt.Errorf("%w: merged resolution needs a payload", ErrInvalidResolution)
		}
		if res.Payload.Type != "" && res.Payload.Type != key.Type {
			return fmt.Errorf("%w: %s payload for a %s", ErrInvalidResolution, res.Payload.Type, key.Type)
		}
		blob, err := sealPayload(r.cipher, res.Payload)
		if err != nil {
			return err
		}
		mergedBlob = blob
	default:
		return fmt.Errorf("%w: unknown choice %q", ErrInvalidResolution, res.Choice)
	}

	unlock := r.locks.Lock(key.String())
	defer unlock()

	err := r.storages.InTx(ctx, func(ctx context.Context) error {
		rec, err := r.storages.Conflicts.Get(ctx, key)
		if err != nil {
			return err
		}
		ent, exists, err := r.cache.record(ctx, key)
		if err != nil {
			return err
		}
		mut, hasMut, err := r.queue.Live(ctx, key)
		if err != nil {
			return err
		}

		remoteVersion := rec.RemoteVersion
		localDeleted := (hasMut && mut.Operation == models.OpDelete) || (!hasMut && rec.LocalSnapshot == nil)
		switch {
		case res.Choice == models.ChooseRemote:
			err = r.takeRemote(ctx, rec)

		case res.Choice == models.ChooseLocal && localDeleted:
			err = r.keepLocalDelete(ctx, rec, ent, exists)

		default:
			blob := mergedBlob
			if res.Choice == models.ChooseLocal {
				blob = rec.LocalSnapshot
				if blob == nil && exists {
					blob = ent.PayloadEncrypted
				}
			}

			op, base := models.OpUpdate, models.Int64Ptr(remoteVersion)
			if rec.RemoteDeleted {
				op, base = models.OpCreate, nil
			}
			if _, err = r.queue.Rebase(ctx, key, op, base, blob); err != nil {
				return err
			}
			err = r.cache.putRecord(ctx, models.CachedEntity{
				ID:                key.ID,
				EntityType:        key.Type,
				PayloadEncrypted:  blob,
				LocalVersion:      max(ent.LocalVersion, remoteVersion) + 1,
				RemoteVersion:     models.Int64Ptr(remoteVersion),
				LastModifiedLocal: r.now(),
				SyncStatus:        models.StatusPending,
			})
		}
		if err != nil {
			return err
		}

		return r.storages.Conflicts.Delete(ctx, key)
	})
	if err != nil {
		r.logger.Err(err).Str("func", "ConflictRegistry.Resolve").Str("entity", key.String()).Str("choice", string(res.Choice)).Msg("error resolving conflict")
		return err
	}

	r.logger.Info().Str("func", "ConflictRegistry.Resolve").Str("entity", key.String()).Str("choice", string(res.Choice)).Msg("conflict resolved")
	r.events.Publish(models.Event{Kind: models.EventConflictResolved, At: r.now(), Entity: &key})
	return nil
}

func (r *ConflictRegistry) takeRemote(ctx context.Context, rec models.ConflictRecord) error {
	key := rec.Key()
	if err := r.queue.Discard(ctx, key); err != nil {
		return err
	}
	if rec.RemoteDeleted {
		_, err := r.cache.Remove(ctx, key)
		return err
	}
	return r.cache.putRecord(ctx, models.CachedEntity{
		ID:                key.ID,
		EntityType:        key.Type,
		PayloadEncrypted:  rec.RemoteSnapshot,
		LocalVersion:      rec.RemoteVersion,
		RemoteVersion:     models.Int64Ptr(rec.RemoteVersion),
		LastModifiedLocal: rec.RemoteTimestamp,
		SyncStatus:        models.StatusSynced,
	})
}

// keepLocalDelete keeps a local delete over a remote edit. When both sides
// deleted there is nothing left to push.
func (r *ConflictRegistry) keepLocalDelete(ctx context.Context, rec models.ConflictRecord, ent models.CachedEntity, exists bool) error {
	key := rec.Key()
	if rec.RemoteDeleted {
		if err := r.queue.Discard(ctx, key); err != nil {
			return err
		}
		_, err := r.cache.Remove(ctx, key)
		return err
	}

	if _, err := r.queue.Rebase(ctx, key, models.OpDelete, models.Int64Ptr(rec.RemoteVersion), nil); err != nil {
		return err
	}
	if !exists {
		return nil
	}
	ent.LocalVersion = max(ent.LocalVersion, rec.RemoteVersion) + 1
	ent.RemoteVersion = models.Int64Ptr(rec.RemoteVersion)
	ent.LastModifiedLocal = r.now()
	ent.SyncStatus = models.StatusDeletedPending
	return r.cache.putRecord(ctx, ent)
}

func (r *ConflictRegistry) decode(rec models.ConflictRecord) (models.Conflict, error) {
	local, err := openPayload(r.cipher, rec.EntityType, rec.LocalSnapshot)
	if err != nil {
		return models.Conflict{}, err
	}
	remote, err := openPayload(r.cipher, rec.EntityType, rec.RemoteSnapshot)
	if err != nil {
		return models.Conflict{}, err
	}
	return models.Conflict{
		EntityID:        rec.EntityID,
		EntityType:      rec.EntityType,
		Local:           local,
		Remote:          remote,
		LocalTimestamp:  rec.LocalTimestamp,
		RemoteTimestamp: rec.RemoteTimestamp,
		RemoteVersion:   rec.RemoteVersion,
		RemoteDeleted:   rec.RemoteDeleted,
		DetectedAt:      rec.DetectedAt,
	}, nil
}
