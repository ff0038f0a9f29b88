// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package client

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/Rajak13/StudyCollab-sub003/internal/adapter"
	"github.com/Rajak13/StudyCollab-sub003/internal/config"
	"github.com/Rajak13/StudyCollab-sub003/internal/crypto"
	"github.com/Rajak13/StudyCollab-sub003/internal/logger"
	"github.com/Rajak13/StudyCollab-sub003/internal/network"
	"github.com/Rajak13/StudyCollab-sub003/internal/notify"
	"github.com/Rajak13/StudyCollab-sub003/internal/service"
	"github.com/Rajak13/StudyCollab-sub003/internal/store"
	"github.com/Rajak13/StudyCollab-sub003/internal/workers"
	"github.com/Rajak13/StudyCollab-sub003/models"
)

// session is everything that lives between Initialize and Close.
type session struct {
	userID   string
	storages *store.ClientStorages
	cipher   *crypto.EncryptionService
	remote   adapter.RemoteAdapter
	monitor  *network.Monitor
	events   *notify.Broadcaster[models.Event]
	services *service.ClientServices
	now      func() time.Time

	forwarded chan struct{}
}

// Coordinator is the offline client facade. It is safe for concurrent use.
type Coordinator struct {
	cfg    *config.ClientConfig
	logger *logger.Logger

	mu   sync.RWMutex
	sess *session
}

var _ Client = (*Coordinator)(nil)

// NewCoordinator returns a coordinator without a session.
func NewCoordinator(cfg *config.ClientConfig, logger *logger.Logger) *Coordinator {
	return &Coordinator{cfg: cfg, logger: logger}
}

// Initialize implements [Client]. The key is derived from, in order of
// preference, the WithSecret option, the configured encryption secret and
// the session token. A partition created with another secret fails with
// [crypto.ErrWrongSecret].
func (c *Coordinator) Initialize(ctx context.Context, userID, sessionToken string, opts ...Option) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrNoUserID
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	secret := firstNonEmpty(o.secret, c.cfg.App.EncryptionSecret, sessionToken)
	if secret == "" {
		return ErrNoSecret
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != nil {
		return ErrAlreadyInitialized
	}

	log := &logger.Logger{Logger: c.logger.With().Str("user_id", userID).Logger()}

	storages, err := store.NewClientStorages(ctx, c.cfg.Storage, userID, log)
	if err != nil {
		return err
	}

	sess, err := c.openSession(ctx, storages, userID, sessionToken, secret, o, log)
	if err != nil {
		_ = storages.Close()
		log.Err(err).Str("func", "Coordinator.Initialize").Msg("failed to open session")
		return err
	}
	c.sess = sess

	log.Info().Str("func", "Coordinator.Initialize").Str("partition", storages.Path).Msg("session opened")
	return nil
}

func (c *Coordinator) openSession(
	ctx context.Context,
	storages *store.ClientStorages,
	userID, sessionToken, secret string,
	o options,
	log *logger.Logger,
) (*session, error) {
	salt, err := loadSalt(ctx, storages)
	if err != nil {
		return nil, err
	}

	cipher := o.cipher
	if cipher == nil {
		cipher = crypto.NewEncryptionService()
	}
	if err = cipher.Initialize(userID, secret, salt); err != nil {
		return nil, err
	}
	if err = verifyKey(ctx, storages, cipher); err != nil {
		cipher.Reset()
		return nil, err
	}

	remote := o.remote
	if remote == nil {
		remote, err = adapter.NewHTTPRemoteAdapter(c.cfg.Adapter, c.cfg.App, log)
		if err != nil {
			cipher.Reset()
			return nil, err
		}
	}
	if sessionToken != "" {
		remote.SetToken(sessionToken)
	}

	monitor := network.NewMonitor(network.ProbeFunc(func(ctx context.Context) error {
		_, err := remote.Ping(ctx)
		return err
	}), c.cfg.Network, log)

	events := notify.NewBroadcaster[models.Event](notify.DefaultBuffer)
	services := service.NewClientServices(storages, cipher, remote, monitor, events, c.cfg, log, service.WithClock(o.now))

	sess := &session{
		userID:    userID,
		storages:  storages,
		cipher:    cipher,
		remote:    remote,
		monitor:   monitor,
		events:    events,
		services:  services,
		now:       o.now,
		forwarded: make(chan struct{}),
	}
	updates, unsubscribe := monitor.Subscribe()
	go sess.forwardConnectivity(updates, unsubscribe)

	return sess, nil
}

// loadSalt returns the partition salt, creating it on first use.
func loadSalt(ctx context.Context, storages *store.ClientStorages) ([]byte, error) {
	salt, err := storages.Meta.Get(ctx, store.MetaSalt)
	if err == nil {
		return salt, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if salt, err = crypto.GenerateSalt(); err != nil {
		return nil, err
	}
	if err = storages.Meta.Set(ctx, store.MetaSalt, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// verifyKey checks the derived key against the stored key check, writing
// one on first use.
func verifyKey(ctx context.Context, storages *store.ClientStorages, cipher *crypto.EncryptionService) error {
	check, err := storages.Meta.Get(ctx, store.MetaKeyCheck)
	if err == nil {
		return cipher.VerifyKeyCheck(check)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if check, err = cipher.KeyCheck(); err != nil {
		return err
	}
	return storages.Meta.Set(ctx, store.MetaKeyCheck, check)
}

// forwardConnectivity republishes monitor transitions on the event stream
// until the monitor is closed.
func (s *session) forwardConnectivity(updates <-chan bool, unsubscribe func()) {
	defer close(s.forwarded)
	defer unsubscribe()

	for online := range updates {
		s.events.Publish(models.Event{
			Kind:   models.EventConnectivity,
			At:     s.now(),
			Online: &online,
		})
	}
}

func (c *Coordinator) current() (*session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sess == nil {
		return nil, ErrNotInitialized
	}
	return c.sess, nil
}

// RecordMutation implements [Client]. When online, a sync is scheduled.
func (c *Coordinator) RecordMutation(ctx context.Context, entityType models.EntityType, entityID string, op models.Operation, payload models.Payload) error {
	s, err := c.current()
	if err != nil {
		return err
	}

	err = s.services.Recorder.Record(ctx, models.MutationRequest{
		EntityType: entityType,
		EntityID:   entityID,
		Operation:  op,
		Payload:    payload,
	})
	if err != nil {
		return err
	}

	if s.monitor.IsOnline() {
		s.services.SyncJob.Kick()
	}
	return nil
}

// TriggerSync implements [Client]. The result is returned together with
// the error when the cycle did not complete.
func (c *Coordinator) TriggerSync(ctx context.Context) (models.SyncResult, error) {
	s, err := c.current()
	if err != nil {
		return models.SyncResult{}, err
	}
	return s.services.Sync.Sync(ctx)
}

// Status implements [Client].
func (c *Coordinator) Status(ctx context.Context) (models.Status, error) {
	s, err := c.current()
	if err != nil {
		return models.Status{}, err
	}

	counts, err := s.services.Queue.Counts(ctx)
	if err != nil {
		return models.Status{}, fmt.Errorf("count mutations: %w", err)
	}
	conflicts, err := s.services.Conflicts.Count(ctx)
	if err != nil {
		return models.Status{}, fmt.Errorf("count conflicts: %w", err)
	}
	stats, err := s.services.Cache.Stats(ctx)
	if err != nil {
		return models.Status{}, fmt.Errorf("cache stats: %w", err)
	}
	lastSync, ok, err := s.storages.Meta.GetInt64(ctx, store.MetaLastSyncTime)
	if err != nil {
		return models.Status{}, fmt.Errorf("last sync time: %w", err)
	}

	state, reason, errs := s.services.Sync.State()
	status := models.Status{
		IsOnline:        s.monitor.IsOnline(),
		PendingCount:    counts[models.MutationPending] + counts[models.MutationConflict],
		ConflictCount:   conflicts,
		DeadLetterCount: counts[models.MutationDead],
		CacheSize:       stats.TotalSize,
		State:           state,
		FailureReason:   reason,
		Errors:          errs,
	}
	if ok {
		t := time.Unix(0, lastSync).UTC()
		status.LastSyncTime = &t
	}
	return status, nil
}

// ClearCache implements [Client]. The pull watermark is reset so the next
// sync refetches what was dropped.
func (c *Coordinator) ClearCache(ctx context.Context) (int64, error) {
	s, err := c.current()
	if err != nil {
		return 0, err
	}

	var removed int64
	err = s.storages.InTx(ctx, func(ctx context.Context) error {
		n, err := s.services.Cache.ClearAll(ctx)
		if err != nil {
			return err
		}
		removed = n
		return s.storages.Meta.Delete(ctx, store.MetaWatermark)
	})
	if err != nil {
		return 0, fmt.Errorf("clear cache: %w", err)
	}
	return removed, nil
}

// Get implements [Client].
func (c *Coordinator) Get(ctx context.Context, key models.EntityKey) (models.Entity, error) {
	s, err := c.current()
	if err != nil {
		return models.Entity{}, err
	}
	return s.services.Cache.Get(ctx, key)
}

// List implements [Client].
func (c *Coordinator) List(ctx context.Context, t models.EntityType) (iter.Seq2[models.Entity, error], error) {
	s, err := c.current()
	if err != nil {
		return nil, err
	}
	return s.services.Cache.GetByType(ctx, t), nil
}

// Conflicts implements [Client].
func (c *Coordinator) Conflicts(ctx context.Context) ([]models.Conflict, error) {
	s, err := c.current()
	if err != nil {
		return nil, err
	}
	return s.services.Conflicts.List(ctx)
}

// ResolveConflict implements [Client]. The winning side is queued and a
// sync is scheduled.
func (c *Coordinator) ResolveConflict(ctx context.Context, key models.EntityKey, res models.Resolution) error {
	s, err := c.current()
	if err != nil {
		return err
	}
	if err = s.services.Conflicts.Resolve(ctx, key, res); err != nil {
		return err
	}
	s.services.SyncJob.Kick()
	return nil
}

// DeadLettered implements [Client].
func (c *Coordinator) DeadLettered(ctx context.Context) ([]models.DeadLetter, error) {
	s, err := c.current()
	if err != nil {
		return nil, err
	}
	return s.services.Queue.GetDeadLettered(ctx)
}

// RequeueDeadLettered implements [Client].
func (c *Coordinator) RequeueDeadLettered(ctx context.Context, id string) error {
	s, err := c.current()
	if err != nil {
		return err
	}
	if _, err = s.services.Queue.Requeue(ctx, id); err != nil {
		return err
	}
	s.services.SyncJob.Kick()
	return nil
}

// ReportConnectivity feeds a platform connectivity signal to the monitor.
func (c *Coordinator) ReportConnectivity(online bool) error {
	s, err := c.current()
	if err != nil {
		return err
	}
	s.monitor.Report(online)
	return nil
}

// CheckConnectivity probes the remote once and reports the outcome to the
// monitor. It returns the committed state.
func (c *Coordinator) CheckConnectivity(ctx context.Context) (bool, error) {
	s, err := c.current()
	if err != nil {
		return false, err
	}

	if _, err = s.remote.Ping(ctx); err != nil {
		c.logger.Debug().Err(err).Str("func", "Coordinator.CheckConnectivity").Msg("remote unreachable")
	}
	s.monitor.Report(err == nil)
	return s.monitor.IsOnline(), nil
}

// RefreshSession replaces the session token after re-authentication and
// schedules a sync. The encryption key is not affected.
func (c *Coordinator) RefreshSession(token string) error {
	s, err := c.current()
	if err != nil {
		return err
	}
	s.remote.SetToken(token)
	s.services.SyncJob.Kick()
	return nil
}

// Subscribe implements [Client].
func (c *Coordinator) Subscribe() (<-chan models.Event, func(), error) {
	s, err := c.current()
	if err != nil {
		return nil, nil, err
	}
	ch, unsubscribe := s.events.Subscribe()
	return ch, unsubscribe, nil
}

// Start implements [Client]. It returns nil when ctx ends.
func (c *Coordinator) Start(ctx context.Context) error {
	s, err := c.current()
	if err != nil {
		return err
	}
	return workers.NewWorkers(c.logger, s.monitor, s.services.SyncJob).Run(ctx)
}

// Close implements [Client]. A running cycle is aborted with
// [service.ErrClosed] and waited for before the partition closes. Closing
// twice is a no-op.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	s := c.sess
	c.sess = nil
	c.mu.Unlock()
	if s == nil {
		return nil
	}

	s.services.Sync.Stop(service.ErrClosed)
	s.monitor.Close()
	<-s.forwarded
	s.events.Close()
	s.cipher.Reset()

	if err := s.storages.Close(); err != nil {
		return fmt.Errorf("close partition: %w", err)
	}
	c.logger.Info().Str("func", "Coordinator.Close").Str("user_id", s.userID).Msg("session closed")
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
