// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajak13/StudyCollab-sub003/models"
)

func TestEntityRepository_UpsertGetDelete(t *testing.T) {
	s := newTestStorages(t)
	ctx := context.Background()
	key := models.EntityKey{Type: models.EntityTask, ID: "t1"}

	e := testEntity("t1", models.StatusSynced, 12)
	require.NoError(t, s.Entities.Upsert(ctx, e))

	got, err := s.Entities.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, e.PayloadEncrypted, got.PayloadEncrypted)
	assert.Equal(t, models.StatusSynced, got.SyncStatus)
	require.NotNil(t, got.RemoteVersion)
	assert.Equal(t, int64(1), *got.RemoteVersion)
	assert.WithinDuration(t, e.LastModifiedLocal, got.LastModifiedLocal, time.Microsecond)

	deleted, err := s.Entities.Delete(ctx, key)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.Entities.Delete(ctx, key)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = s.Entities.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEntityRepository_StatsFollowWrites(t *testing.T) {
	s := newTestStorages(t)
	ctx := context.Background()

	require.NoError(t, s.Entities.Upsert(ctx, testEntity("a", models.StatusSynced, 10)))
	require.NoError(t, s.Entities.Upsert(ctx, testEntity("b", models.StatusPending, 20)))

	note := testEntity("n", models.StatusSynced, 5)
	note.EntityType = models.EntityNote
	require.NoError(t, s.Entities.Upsert(ctx, note))

	// overwrite shrinks
	require.NoError(t, s.Entities.Upsert(ctx, testEntity("a", models.StatusSynced, 4)))

	stats, err := s.Entities.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(29), stats.TotalSize)
	assert.Equal(t, int64(3), stats.TotalCount)
	assert.Equal(t, int64(2), stats.PerTypeCounts[models.EntityTask])
	assert.Equal(t, int64(24), stats.PerTypeSize[models.EntityTask])
	assert.Equal(t, int64(5), stats.PerTypeSize[models.EntityNote])

	_, err = s.Entities.Delete(ctx, models.EntityKey{Type: models.EntityTask, ID: "b"})
	require.NoError(t, err)

	stats, err = s.Entities.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9), stats.TotalSize)
}

func TestEntityRepository_DeleteSyncedKeepsUnflushed(t *testing.T) {
	s := newTestStorages(t)
	ctx := context.Background()

	require.NoError(t, s.Entities.Upsert(ctx, testEntity("synced", models.StatusSynced, 1)))
	require.NoError(t, s.Entities.Upsert(ctx, testEntity("pending", models.StatusPending, 2)))
	require.NoError(t, s.Entities.Upsert(ctx, testEntity("conflict", models.StatusConflict, 3)))
	require.NoError(t, s.Entities.Upsert(ctx, testEntity("deleted", models.StatusDeletedPending, 4)))

	removed, err := s.Entities.DeleteSynced(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	items, err := s.Entities.ListByType(ctx, models.EntityTask, "", 10)
	require.NoError(t, err)
	require.Len(t, items, 3)

	stats, err := s.Entities.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9), stats.TotalSize)
}

func TestEntityRepository_ListByTypePages(t *testing.T) {
	s := newTestStorages(t)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b", "d"} {
		require.NoError(t, s.Entities.Upsert(ctx, testEntity(id, models.StatusSynced, 1)))
	}

	page, err := s.Entities.ListByType(ctx, models.EntityTask, "", 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "a", page[0].ID)
	assert.Equal(t, "c", page[2].ID)

	page, err = s.Entities.ListByType(ctx, models.EntityTask, "c", 3)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "d", page[0].ID)
}

func TestEntityRepository_LeastRecentlyReadOnlySynced(t *testing.T) {
	s := newTestStorages(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i, id := range []string{"old", "mid", "new"} {
		e := testEntity(id, models.StatusSynced, 1)
		e.LastReadAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Entities.Upsert(ctx, e))
	}
	pending := testEntity("oldest-pending", models.StatusPending, 1)
	pending.LastReadAt = base.Add(-time.Hour)
	require.NoError(t, s.Entities.Upsert(ctx, pending))

	require.NoError(t, s.Entities.Touch(ctx, models.EntityKey{Type: models.EntityTask, ID: "old"}, base.Add(time.Hour)))

	lru, err := s.Entities.LeastRecentlyRead(ctx, 10)
	require.NoError(t, err)
	require.Len(t, lru, 3)
	assert.Equal(t, []string{"mid", "new", "old"}, []string{lru[0].ID, lru[1].ID, lru[2].ID})
}
