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

func TestRecorder_CreateIsVisibleOffline(t *testing.T) {
	env := newTestEnv(t)
	env.monitor.Report(false)
	ctx := context.Background()

	env.record(t, models.OpCreate, "t1", "write essay")

	got, err := env.svc.Cache.Get(ctx, taskKey("t1"))
	require.NoError(t, err)
	assert.Equal(t, "write essay", got.Payload.Task.Title)
	assert.Equal(t, models.StatusPending, got.SyncStatus)
	assert.Equal(t, int64(1), got.LocalVersion)
	assert.Nil(t, got.RemoteVersion)
	assert.True(t, got.LastModifiedLocal.Equal(env.clock.Now()))

	m := env.live(t, "t1")
	assert.Equal(t, models.OpCreate, m.Operation)
	assert.Nil(t, m.BaseVersion)
	assert.Equal(t, env.entity(t, "t1").PayloadEncrypted, m.PayloadEncrypted)
}

func TestRecorder_UpdateUsesRemoteVersionAsBase(t *testing.T) {
	env := newTestEnv(t)

	env.seedSynced(t, "t1", "draft", 5)
	env.clock.Advance(time.Minute)
	env.record(t, models.OpUpdate, "t1", "final")

	ent := env.entity(t, "t1")
	assert.Equal(t, int64(6), ent.LocalVersion)
	assert.Equal(t, models.StatusPending, ent.SyncStatus)

	m := env.live(t, "t1")
	require.NotNil(t, m.BaseVersion)
	assert.Equal(t, int64(5), *m.BaseVersion)
}

func TestRecorder_DeleteMarksDeletedPending(t *testing.T) {
	env := newTestEnv(t)

	env.seedSynced(t, "t1", "old", 2)
	env.record(t, models.OpDelete, "t1", "")

	ent := env.entity(t, "t1")
	assert.Equal(t, models.StatusDeletedPending, ent.SyncStatus)
	assert.Equal(t, int64(3), ent.LocalVersion)
	assert.Equal(t, models.OpDelete, env.live(t, "t1").Operation)
}

func TestRecorder_CreateThenDeleteLeavesNoTrace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.record(t, models.OpCreate, "t1", "typo")
	env.record(t, models.OpDelete, "t1", "")

	_, err := env.storages.Entities.Get(ctx, taskKey("t1"))
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, ok, err := env.svc.Queue.Live(ctx, taskKey("t1"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecorder_RecreateAfterDelete(t *testing.T) {
	env := newTestEnv(t)

	env.seedSynced(t, "t1", "old", 2)
	env.record(t, models.OpDelete, "t1", "")
	env.record(t, models.OpCreate, "t1", "again")

	m := env.live(t, "t1")
	assert.Equal(t, models.OpUpdate, m.Operation, "the remote still has the entity")
	require.NotNil(t, m.BaseVersion)
	assert.Equal(t, int64(2), *m.BaseVersion)
	assert.Equal(t, models.StatusPending, env.entity(t, "t1").SyncStatus)
}

func TestRecorder_RejectsInvalidWrites(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedSynced(t, "t1", "exists", 1)
	env.seedSynced(t, "t2", "gone", 1)
	env.record(t, models.OpDelete, "t2", "")

	tests := []struct {
		name    string
		req     models.MutationRequest
		wantErr error
	}{
		{
			name:    "create existing",
			req:     models.MutationRequest{EntityType: models.EntityTask, EntityID: "t1", Operation: models.OpCreate, Payload: taskPayload("dup")},
			wantErr: ErrInvalidMutation,
		},
		{
			name:    "update missing",
			req:     models.MutationRequest{EntityType: models.EntityTask, EntityID: "t9", Operation: models.OpUpdate, Payload: taskPayload("x")},
			wantErr: store.ErrNotFound,
		},
		{
			name:    "update deleted",
			req:     models.MutationRequest{EntityType: models.EntityTask, EntityID: "t2", Operation: models.OpUpdate, Payload: taskPayload("x")},
			wantErr: store.ErrNotFound,
		},
		{
			name:    "delete missing",
			req:     models.MutationRequest{EntityType: models.EntityTask, EntityID: "t9", Operation: models.OpDelete},
			wantErr: store.ErrNotFound,
		},
		{
			name:    "create without payload",
			req:     models.MutationRequest{EntityType: models.EntityTask, EntityID: "t5", Operation: models.OpCreate},
			wantErr: ErrInvalidMutation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, env.svc.Recorder.Record(ctx, tt.req), tt.wantErr)
		})
	}

	count, err := env.svc.Queue.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "only the delete of t2 is queued")
}

func TestRecorder_FillsPayloadType(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.svc.Recorder.Record(ctx, models.MutationRequest{
		EntityType: models.EntityNote,
		EntityID:   "n1",
		Operation:  models.OpCreate,
		Payload:    models.Payload{Note: &models.NoteData{Title: "lecture 3"}},
	})
	require.NoError(t, err)

	got, err := env.svc.Cache.Get(ctx, models.EntityKey{Type: models.EntityNote, ID: "n1"})
	require.NoError(t, err)
	assert.Equal(t, "lecture 3", got.Payload.Note.Title)
}

func TestRecorder_PublishesEntityChanged(t *testing.T) {
	env := newTestEnv(t)
	events, unsubscribe := env.events.Subscribe()
	defer unsubscribe()

	env.record(t, models.OpCreate, "t1", "x")

	select {
	case e := <-events:
		assert.Equal(t, models.EventEntityChanged, e.Kind)
		assert.Equal(t, taskKey("t1"), *e.Entity)
	case <-time.After(time.Second):
		t.Fatal("no entity-changed event")
	}
}
