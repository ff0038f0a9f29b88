// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/Rajak13/StudyCollab-sub003/internal/crypto"
	"github.com/Rajak13/StudyCollab-sub003/internal/logger"
	"github.com/Rajak13/StudyCollab-sub003/internal/store"
	"github.com/Rajak13/StudyCollab-sub003/models"
)

const (
	defaultPageSize = 100
	evictBatchSize  = 64
)

// LocalCache is the encrypted read-through cache of one user's entities.
// Payloads are sealed before they reach the store and opened on read.
type LocalCache struct {
	storages *store.ClientStorages
	cipher   crypto.Cipher
	pageSize int
	now      func() time.Time
	logger   *logger.Logger
}

// NewLocalCache wires a cache over an opened partition.
func NewLocalCache(storages *store.ClientStorages, cipher crypto.Cipher, logger *logger.Logger) *LocalCache {
	return &LocalCache{
		storages: storages,
		cipher:   cipher,
		pageSize: defaultPageSize,
		now:      time.Now,
		logger:   logger,
	}
}

// Get returns the decrypted entity and stamps its last read time. Entities
// deleted locally but not yet flushed are reported as [store.ErrNotFound].
func (c *LocalCache) Get(ctx context.Context, key models.EntityKey) (models.Entity, error) {
	rec, err := c.storages.Entities.Get(ctx, key)
	if err != nil {
		return models.Entity{}, err
	}
	if rec.SyncStatus == models.StatusDeletedPending {
		return models.Entity{}, fmt.Errorf("%w: %s is deleted", store.ErrNotFound, key)
	}

	e, err := c.decode(rec)
	if err != nil {
		c.logger.Err(err).Str("func", "LocalCache.Get").Str("entity", key.String()).Msg("error decrypting cached entity")
		return models.Entity{}, err
	}

	if err = c.storages.Entities.Touch(ctx, key, c.now()); err != nil {
		c.logger.Err(err).Str("func", "LocalCache.Get").Str("entity", key.String()).Msg("error stamping read time")
		return models.Entity{}, err
	}

	return e, nil
}

// Put encrypts e and stores it as given, including its sync status and
// versions.
func (c *LocalCache) Put(ctx context.Context, e models.Entity) error {
	if e.ID == "" || !e.EntityType.Known() {
		return fmt.Errorf("%w: entity needs a known type and an id", ErrInvalidMutation)
	}
	if e.SyncStatus == "" {
		e.SyncStatus = models.StatusSynced
	}
	if e.LastModifiedLocal.IsZero() {
		e.LastModifiedLocal = c.now()
	}

	blob, err := sealPayload(c.cipher, e.Payload)
	if err != nil {
		return err
	}

	return c.putRecord(ctx, models.CachedEntity{
		ID:                e.ID,
		EntityType:        e.EntityType,
		PayloadEncrypted:  blob,
		LocalVersion:      e.LocalVersion,
		RemoteVersion:     e.RemoteVersion,
		LastModifiedLocal: e.LastModifiedLocal,
		SyncStatus:        e.SyncStatus,
	})
}

// Remove deletes the entity row whatever its status. It reports whether a
// row existed.
func (c *LocalCache) Remove(ctx context.Context, key models.EntityKey) (bool, error) {
	return c.storages.Entities.Delete(ctx, key)
}

// ClearType drops synced rows of type t. Unflushed rows survive.
func (c *LocalCache) ClearType(ctx context.Context, t models.EntityType) (int64, error) {
	if !t.Known() {
		return 0, fmt.Errorf("%w: unknown entity type %q", ErrInvalidMutation, t)
	}
	return c.storages.Entities.DeleteSynced(ctx, t)
}

// ClearAll drops every synced row. Unflushed rows survive.
func (c *LocalCache) ClearAll(ctx context.Context) (int64, error) {
	removed, err := c.storages.Entities.DeleteSynced(ctx, "")
	if err != nil {
		return 0, err
	}
	c.logger.Info().Str("func", "LocalCache.ClearAll").Int64("removed", removed).Msg("cache cleared")
	return removed, nil
}

// GetByType iterates over the visible entities of type t in id order. The
// sequence is lazy: pages are read from the store as it is consumed. Rows
// that fail to decrypt are yielded with their error; iteration continues if
// the consumer asks for more. Reads through GetByType do not count as use
// for eviction.
func (c *LocalCache) GetByType(ctx context.Context, t models.EntityType) iter.Seq2[models.Entity, error] {
	return func(yield func(models.Entity, error) bool) {
		after := ""
		for {
			page, err := c.storages.Entities.ListByType(ctx, t, after, c.pageSize)
			if err != nil {
				yield(models.Entity{}, err)
				return
			}

			for _, rec := range page {
				after = rec.ID
				if rec.SyncStatus == models.StatusDeletedPending {
					continue
				}
				if !yield(c.decode(rec)) {
					return
				}
			}

			if len(page) < c.pageSize {
				return
			}
		}
	}
}

// Stats returns the incrementally maintained size counters.
func (c *LocalCache) Stats(ctx context.Context) (models.CacheStats, error) {
	return c.storages.Entities.Stats(ctx)
}

// Evict removes synced rows, least recently read first, until the cache is
// at most maxBytes or no synced row is left. Unflushed rows are never
// evicted, so the cap is soft. A non-positive cap disables eviction.
func (c *LocalCache) Evict(ctx context.Context, maxBytes int64) (int, error) {
	if maxBytes <= 0 {
		return 0, nil
	}

	evicted := 0
	for {
		stats, err := c.storages.Entities.Stats(ctx)
		if err != nil {
			return evicted, err
		}
		if stats.TotalSize <= maxBytes {
			break
		}

		victims, err := c.storages.Entities.LeastRecentlyRead(ctx, evictBatchSize)
		if err != nil {
			return evicted, err
		}
		if len(victims) == 0 {
			break
		}

		size := stats.TotalSize
		for _, v := range victims {
			if size <= maxBytes {
				break
			}
			removed, err := c.evictOne(ctx, v.Key())
			if err != nil {
				return evicted, err
			}
			if removed {
				size -= v.Size
				evicted++
			}
		}
	}

	if evicted > 0 {
		c.logger.Info().Str("func", "LocalCache.Evict").Int("evicted", evicted).Int64("max_bytes", maxBytes).Msg("evicted synced entities")
	}
	return evicted, nil
}

// evictOne deletes key only if it is still synced when the transaction
// runs.
func (c *LocalCache) evictOne(ctx context.Context, key models.EntityKey) (bool, error) {
	removed := false
	err := c.storages.InTx(ctx, func(ctx context.Context) error {
		rec, err := c.storages.Entities.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if rec.SyncStatus != models.StatusSynced {
			return nil
		}
		removed, err = c.storages.Entities.Delete(ctx, key)
		return err
	})
	return removed, err
}

// record returns the raw row, or ok=false when key is not cached.
func (c *LocalCache) record(ctx context.Context, key models.EntityKey) (models.CachedEntity, bool, error) {
	rec, err := c.storages.Entities.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return models.CachedEntity{}, false, nil
	}
	if err != nil {
		return models.CachedEntity{}, false, err
	}
	return rec, true, nil
}

// putRecord stores a sealed row. A write counts as a read for eviction.
func (c *LocalCache) putRecord(ctx context.Context, rec models.CachedEntity) error {
	rec.Size = int64(len(rec.PayloadEncrypted))
	rec.LastReadAt = c.now()
	if err := c.storages.Entities.Upsert(ctx, rec); err != nil {
		c.logger.Err(err).Str("func", "LocalCache.putRecord").Str("entity", rec.Key().String()).Msg("error storing entity")
		return err
	}
	return nil
}

func (c *LocalCache) decode(rec models.CachedEntity) (models.Entity, error) {
	p, err := openPayload(c.cipher, rec.EntityType, rec.PayloadEncrypted)
	if err != nil {
		return models.Entity{}, err
	}
	return models.Entity{
		ID:                rec.ID,
		EntityType:        rec.EntityType,
		Payload:           p,
		LocalVersion:      rec.LocalVersion,
		RemoteVersion:     rec.RemoteVersion,
		LastModifiedLocal: rec.LastModifiedLocal,
		SyncStatus:        rec.SyncStatus,
	}, nil
}
