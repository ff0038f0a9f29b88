// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Rajak13/StudyCollab-sub003/internal/config"
	"github.com/Rajak13/StudyCollab-sub003/internal/crypto"
	"github.com/Rajak13/StudyCollab-sub003/internal/logger"
	"github.com/Rajak13/StudyCollab-sub003/internal/mock"
	"github.com/Rajak13/StudyCollab-sub003/internal/network"
	"github.com/Rajak13/StudyCollab-sub003/internal/notify"
	"github.com/Rajak13/StudyCollab-sub003/internal/store"
	"github.com/Rajak13/StudyCollab-sub003/models"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// testEnv is one session over a real partition with a mocked remote.
type testEnv struct {
	storages *store.ClientStorages
	cipher   *crypto.EncryptionService
	remote   *mock.MockRemoteAdapter
	monitor  *network.Monitor
	events   *notify.Broadcaster[models.Event]
	clock    *fakeClock
	svc      *ClientServices

	mu    sync.Mutex
	token string
}

func newTestEnv(t *testing.T, tune ...func(cfg *config.ClientConfig)) *testEnv {
	t.Helper()
	ctx := context.Background()

	cfg := config.DefaultClientConfig()
	cfg.Storage.DataDir = t.TempDir()
	cfg.Sync.BackoffJitterPercent = 0
	cfg.Sync.Concurrency = 2
	for _, fn := range tune {
		fn(&cfg)
	}

	storages, err := store.NewClientStorages(ctx, cfg.Storage, "user-1", logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = storages.Close() })

	salt, err := crypto.GenerateSalt()
	require.NoError(t, err)
	cipher := crypto.NewFastEncryptionService()
	require.NoError(t, cipher.Initialize("user-1", "secret", salt))

	ctrl := gomock.NewController(t)
	env := &testEnv{
		storages: storages,
		cipher:   cipher,
		remote:   mock.NewMockRemoteAdapter(ctrl),
		monitor:  network.NewMonitor(nil, config.ClientNetwork{}, logger.Nop()),
		events:   notify.NewBroadcaster[models.Event](256),
		clock:    newFakeClock(),
		token:    "opaque-session-token",
	}
	env.remote.EXPECT().Token().DoAndReturn(env.currentToken).AnyTimes()
	env.monitor.Report(true)
	t.Cleanup(env.monitor.Close)
	t.Cleanup(env.events.Close)

	env.svc = NewClientServices(storages, cipher, env.remote, env.monitor, env.events, &cfg, logger.Nop(), WithClock(env.clock.Now))
	return env
}

func (e *testEnv) currentToken() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.token
}

func (e *testEnv) setToken(token string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.token = token
}

func (e *testEnv) record(t *testing.T, op models.Operation, id, title string) {
	t.Helper()
	req := models.MutationRequest{EntityType: models.EntityTask, EntityID: id, Operation: op}
	if op != models.OpDelete {
		req.Payload = taskPayload(title)
	}
	require.NoError(t, e.svc.Recorder.Record(context.Background(), req))
}

// seedSynced stores id as a synced entity at version.
func (e *testEnv) seedSynced(t *testing.T, id, title string, version int64) {
	t.Helper()
	require.NoError(t, e.svc.Cache.Put(context.Background(), models.Entity{
		ID:            id,
		EntityType:    models.EntityTask,
		Payload:       taskPayload(title),
		LocalVersion:  version,
		RemoteVersion: models.Int64Ptr(version),
		SyncStatus:    models.StatusSynced,
	}))
}

func (e *testEnv) entity(t *testing.T, id string) models.CachedEntity {
	t.Helper()
	rec, err := e.storages.Entities.Get(context.Background(), taskKey(id))
	require.NoError(t, err)
	return rec
}

func (e *testEnv) live(t *testing.T, id string) models.QueuedMutation {
	t.Helper()
	m, err := e.storages.Mutations.GetLive(context.Background(), taskKey(id))
	require.NoError(t, err)
	return m
}

func (e *testEnv) title(t *testing.T, blob []byte) string {
	t.Helper()
	p, err := openPayload(e.cipher, models.EntityTask, blob)
	require.NoError(t, err)
	if p.Task == nil {
		return ""
	}
	return p.Task.Title
}

// expectEmptyPull answers every pull with an empty page.
func (e *testEnv) expectEmptyPull() *gomock.Call {
	return e.remote.EXPECT().PullChanges(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, since int64, _ int) (models.PullResponse, error) {
			return models.PullResponse{Watermark: since}, nil
		})
}

func taskKey(id string) models.EntityKey {
	return models.EntityKey{Type: models.EntityTask, ID: id}
}

func taskPayload(title string) models.Payload {
	return models.NewTaskPayload(models.TaskData{Title: title})
}

func taskJSON(t *testing.T, title string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(map[string]string{"title": title})
	require.NoError(t, err)
	return raw
}

func remoteTask(t *testing.T, id, title string, version int64) models.RemoteSnapshot {
	t.Helper()
	return models.RemoteSnapshot{
		EntityType: models.EntityTask,
		EntityID:   id,
		Version:    version,
		Payload:    taskJSON(t, title),
		UpdatedAt:  time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		Seq:        version,
	}
}
