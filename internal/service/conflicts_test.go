// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajak13/StudyCollab-sub003/internal/store"
	"github.com/Rajak13/StudyCollab-sub003/models"
)

// conflictOnEdit leaves t1 in conflict: synced at v1, edited locally to
// "local" and edited remotely to "remote" at v2.
func conflictOnEdit(t *testing.T, env *testEnv) {
	t.Helper()
	env.seedSynced(t, "t1", "base", 1)
	env.record(t, models.OpUpdate, "t1", "local")
	outcome, err := env.svc.Sync.applyRemote(context.Background(), remoteTask(t, "t1", "remote", 2))
	require.NoError(t, err)
	require.Equal(t, remoteConflict, outcome)
}

// conflictOnRemoteDelete leaves t1 in conflict: edited locally to "local"
// and deleted remotely at v2.
func conflictOnRemoteDelete(t *testing.T, env *testEnv) {
	t.Helper()
	env.seedSynced(t, "t1", "base", 1)
	env.record(t, models.OpUpdate, "t1", "local")
	snap := remoteTask(t, "t1", "", 2)
	snap.Payload, snap.Deleted = nil, true
	outcome, err := env.svc.Sync.applyRemote(context.Background(), snap)
	require.NoError(t, err)
	require.Equal(t, remoteConflict, outcome)
}

// conflictOnLocalDelete leaves t1 in conflict: deleted locally and edited
// remotely to "remote" at v2.
func conflictOnLocalDelete(t *testing.T, env *testEnv) {
	t.Helper()
	env.seedSynced(t, "t1", "base", 1)
	env.record(t, models.OpDelete, "t1", "")
	outcome, err := env.svc.Sync.applyRemote(context.Background(), remoteTask(t, "t1", "remote", 2))
	require.NoError(t, err)
	require.Equal(t, remoteConflict, outcome)
}

func TestConflictRegistry_ListShowsBothSides(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conflictOnEdit(t, env)

	list, err := env.svc.Conflicts.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	c := list[0]
	assert.Equal(t, "t1", c.EntityID)
	assert.Equal(t, "local", c.Local.Task.Title)
	assert.Equal(t, "remote", c.Remote.Task.Title)
	assert.Equal(t, int64(2), c.RemoteVersion)
	assert.False(t, c.RemoteDeleted)
	assert.True(t, c.DetectedAt.Equal(env.clock.Now()))

	assert.Equal(t, models.StatusConflict, env.entity(t, "t1").SyncStatus)
	assert.Equal(t, models.MutationConflict, env.live(t, "t1").State)

	count, err := env.svc.Conflicts.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestConflictRegistry_NewerRemoteRefreshesRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conflictOnEdit(t, env)

	outcome, err := env.svc.Sync.applyRemote(ctx, remoteTask(t, "t1", "remote again", 3))
	require.NoError(t, err)
	assert.Equal(t, remoteSkipped, outcome, "already counted")

	c, err := env.svc.Conflicts.Get(ctx, taskKey("t1"))
	require.NoError(t, err)
	assert.Equal(t, "remote again", c.Remote.Task.Title)
	assert.Equal(t, int64(3), c.RemoteVersion)
}

func TestConflictRegistry_LocalEditRefreshesRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conflictOnEdit(t, env)

	env.clock.Advance(time.Minute)
	env.record(t, models.OpUpdate, "t1", "local v2")

	c, err := env.svc.Conflicts.Get(ctx, taskKey("t1"))
	require.NoError(t, err)
	assert.Equal(t, "local v2", c.Local.Task.Title)
	assert.True(t, c.LocalTimestamp.Equal(env.clock.Now()))
	assert.Equal(t, models.StatusConflict, env.entity(t, "t1").SyncStatus)
	assert.Equal(t, models.MutationConflict, env.live(t, "t1").State)
}

func TestConflictRegistry_ResolveRemote(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conflictOnEdit(t, env)

	events, unsubscribe := env.events.Subscribe()
	defer unsubscribe()

	require.NoError(t, env.svc.Conflicts.Resolve(ctx, taskKey("t1"), models.ResolveRemote()))

	got, err := env.svc.Cache.Get(ctx, taskKey("t1"))
	require.NoError(t, err)
	assert.Equal(t, "remote", got.Payload.Task.Title)
	assert.Equal(t, models.StatusSynced, got.SyncStatus)
	assert.Equal(t, int64(2), got.LocalVersion)

	_, ok, err := env.svc.Queue.Live(ctx, taskKey("t1"))
	require.NoError(t, err)
	assert.False(t, ok, "local mutation discarded")

	_, err = env.svc.Conflicts.Get(ctx, taskKey("t1"))
	assert.ErrorIs(t, err, store.ErrNotFound)

	select {
	case e := <-events:
		assert.Equal(t, models.EventConflictResolved, e.Kind)
		assert.Equal(t, taskKey("t1"), *e.Entity)
	case <-time.After(time.Second):
		t.Fatal("no conflict-resolved event")
	}
}

func TestConflictRegistry_ResolveLocal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conflictOnEdit(t, env)

	require.NoError(t, env.svc.Conflicts.Resolve(ctx, taskKey("t1"), models.ResolveLocal()))

	ent := env.entity(t, "t1")
	assert.Equal(t, models.StatusPending, ent.SyncStatus)
	assert.Equal(t, int64(3), ent.LocalVersion, "above both sides")
	require.NotNil(t, ent.RemoteVersion)
	assert.Equal(t, int64(2), *ent.RemoteVersion)
	assert.Equal(t, "local", env.title(t, ent.PayloadEncrypted))

	m := env.live(t, "t1")
	assert.Equal(t, models.MutationPending, m.State)
	assert.Equal(t, models.OpUpdate, m.Operation)
	require.NotNil(t, m.BaseVersion)
	assert.Equal(t, int64(2), *m.BaseVersion)
	assert.Equal(t, "local", env.title(t, m.PayloadEncrypted))
}

func TestConflictRegistry_ResolveMerged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conflictOnEdit(t, env)

	merged := models.NewTaskPayload(models.TaskData{Title: "local + remote", Priority: "high"})
	require.NoError(t, env.svc.Conflicts.Resolve(ctx, taskKey("t1"), models.ResolveMerged(merged)))

	got, err := env.svc.Cache.Get(ctx, taskKey("t1"))
	require.NoError(t, err)
	assert.Equal(t, "local + remote", got.Payload.Task.Title)
	assert.Equal(t, "high", got.Payload.Task.Priority)
	assert.Equal(t, "local + remote", env.title(t, env.live(t, "t1").PayloadEncrypted))
}

func TestConflictRegistry_ResolveRemoteDeleted(t *testing.T) {
	t.Run("take remote removes the row", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		conflictOnRemoteDelete(t, env)

		c, err := env.svc.Conflicts.Get(ctx, taskKey("t1"))
		require.NoError(t, err)
		assert.True(t, c.RemoteDeleted)
		assert.True(t, c.Remote.IsZero())

		require.NoError(t, env.svc.Conflicts.Resolve(ctx, taskKey("t1"), models.ResolveRemote()))

		_, err = env.storages.Entities.Get(ctx, taskKey("t1"))
		assert.ErrorIs(t, err, store.ErrNotFound)
		count, err := env.svc.Queue.PendingCount(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("keep local recreates", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		conflictOnRemoteDelete(t, env)

		require.NoError(t, env.svc.Conflicts.Resolve(ctx, taskKey("t1"), models.ResolveLocal()))

		m := env.live(t, "t1")
		assert.Equal(t, models.OpCreate, m.Operation)
		assert.Nil(t, m.BaseVersion)
		assert.Equal(t, "local", env.title(t, m.PayloadEncrypted))
		assert.Equal(t, models.StatusPending, env.entity(t, "t1").SyncStatus)
	})
}

func TestConflictRegistry_ResolveLocalDelete(t *testing.T) {
	t.Run("keep local delete", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		conflictOnLocalDelete(t, env)

		c, err := env.svc.Conflicts.Get(ctx, taskKey("t1"))
		require.NoError(t, err)
		assert.True(t, c.Local.IsZero())

		require.NoError(t, env.svc.Conflicts.Resolve(ctx, taskKey("t1"), models.ResolveLocal()))

		m := env.live(t, "t1")
		assert.Equal(t, models.OpDelete, m.Operation)
		require.NotNil(t, m.BaseVersion)
		assert.Equal(t, int64(2), *m.BaseVersion)

		ent := env.entity(t, "t1")
		assert.Equal(t, models.StatusDeletedPending, ent.SyncStatus)
		assert.Equal(t, int64(3), ent.LocalVersion)
	})

	t.Run("take remote restores", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		conflictOnLocalDelete(t, env)

		require.NoError(t, env.svc.Conflicts.Resolve(ctx, taskKey("t1"), models.ResolveRemote()))

		got, err := env.svc.Cache.Get(ctx, taskKey("t1"))
		require.NoError(t, err)
		assert.Equal(t, "remote", got.Payload.Task.Title)
		assert.Equal(t, models.StatusSynced, got.SyncStatus)
	})
}

func TestConflictRegistry_ResolveValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conflictOnEdit(t, env)

	for name, res := range map[string]models.Resolution{
		"unknown choice":       {Choice: "both"},
		"merged without body":  {Choice: models.ChooseMerged},
		"merged of other type": models.ResolveMerged(models.NewNotePayload(models.NoteData{Title: "n"})),
	} {
		t.Run(name, func(t *testing.T) {
			err := env.svc.Conflicts.Resolve(ctx, taskKey("t1"), res)
			assert.ErrorIs(t, err, ErrInvalidResolution)
		})
	}

	count, err := env.svc.Conflicts.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "failed resolutions change nothing")
}

func TestConflictRegistry_ResolveWithoutConflict(t *testing.T) {
	env := newTestEnv(t)
	env.seedSynced(t, "t1", "fine", 1)

	err := env.svc.Conflicts.Resolve(context.Background(), taskKey("t1"), models.ResolveLocal())
	assert.ErrorIs(t, err, store.ErrNotFound)
}
