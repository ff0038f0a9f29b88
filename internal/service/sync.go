// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Rajak13/StudyCollab-sub003/internal/adapter"
	"github.com/Rajak13/StudyCollab-sub003/internal/config"
	"github.com/Rajak13/StudyCollab-sub003/internal/crypto"
	"github.com/Rajak13/StudyCollab-sub003/internal/logger"
	"github.com/Rajak13/StudyCollab-sub003/internal/store"
	"github.com/Rajak13/StudyCollab-sub003/internal/utils"
	"github.com/Rajak13/StudyCollab-sub003/models"
)

const (
	defaultConcurrency  = 4
	defaultPullPageSize = 200

	syncFlightKey = "sync"
)

// SyncManager runs sync cycles for one session:
//
//	idle -> draining-queue -> pushing -> pulling -> reconciling -> idle
//
// Unrecoverable errors (expired session, store or encryption failures) move
// it to failed until the next cycle starts. Everything else is absorbed and
// reported in the cycle result.
type SyncManager struct {
	storages  *store.ClientStorages
	cipher    crypto.Cipher
	cache     *LocalCache
	queue     *MutationQueue
	conflicts *ConflictRegistry
	remote    adapter.RemoteAdapter
	network   Connectivity
	locks     *utils.KeyedMutex
	events    Publisher

	concurrency   int
	pageSize      int
	maxCacheBytes int64

	now    func() time.Time
	flight singleflight.Group

	mu      sync.Mutex
	state   models.SyncState
	reason  string
	errs    []string
	abortFn context.CancelCauseFunc
	running chan struct{}
	stopped error

	logger *logger.Logger
}

// SyncManagerDeps groups the collaborators of a [SyncManager].
type SyncManagerDeps struct {
	Storages  *store.ClientStorages
	Cipher    crypto.Cipher
	Cache     *LocalCache
	Queue     *MutationQueue
	Conflicts *ConflictRegistry
	Remote    adapter.RemoteAdapter
	Network   Connectivity
	Locks     *utils.KeyedMutex
	Events    Publisher
}

// NewSyncManager wires a manager. maxCacheBytes is the eviction cap applied
// while reconciling; zero disables eviction.
func NewSyncManager(deps SyncManagerDeps, cfg config.ClientSync, maxCacheBytes int64, logger *logger.Logger) *SyncManager {
	m := &SyncManager{
		storages:      deps.Storages,
		cipher:        deps.Cipher,
		cache:         deps.Cache,
		queue:         deps.Queue,
		conflicts:     deps.Conflicts,
		remote:        deps.Remote,
		network:       deps.Network,
		locks:         deps.Locks,
		events:        deps.Events,
		concurrency:   cfg.Concurrency,
		pageSize:      cfg.PullPageSize,
		maxCacheBytes: maxCacheBytes,
		now:           time.Now,
		state:         models.SyncIdle,
		logger:        logger,
	}
	if m.events == nil {
		m.events = nopPublisher{}
	}
	if m.concurrency <= 0 {
		m.concurrency = defaultConcurrency
	}
	if m.pageSize <= 0 {
		m.pageSize = defaultPullPageSize
	}
	return m
}

// Sync implements [Syncer]. Concurrent callers share one cycle. The cycle is
// detached from ctx: a caller giving up does not cancel it for the others;
// use Abort for that.
func (m *SyncManager) Sync(ctx context.Context) (models.SyncResult, error) {
	ch := m.flight.DoChan(syncFlightKey, func() (any, error) {
		return m.runCycle(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return models.SyncResult{}, ctx.Err()
	case r := <-ch:
		res, _ := r.Val.(models.SyncResult)
		return res, r.Err
	}
}

// Abort implements [Syncer].
func (m *SyncManager) Abort(cause error) {
	m.mu.Lock()
	abort := m.abortFn
	m.mu.Unlock()

	if abort != nil {
		m.logger.Info().Str("func", "SyncManager.Abort").AnErr("cause", cause).Msg("aborting sync cycle")
		abort(cause)
	}
}

// Stop aborts the running cycle with cause and waits until it has returned,
// so its store writes are done. Later cycles fail with cause at once.
func (m *SyncManager) Stop(cause error) {
	m.mu.Lock()
	m.stopped = cause
	abort, running := m.abortFn, m.running
	m.mu.Unlock()

	if abort == nil {
		return
	}
	m.logger.Info().Str("func", "SyncManager.Stop").AnErr("cause", cause).Msg("stopping sync cycle")
	abort(cause)
	<-running
}

// State returns the current phase, the failure reason when failed and the
// errors of the last finished cycle.
func (m *SyncManager) State() (models.SyncState, string, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.reason, slices.Clone(m.errs)
}

// cycle carries the bookkeeping of one run.
type cycle struct {
	mu     sync.Mutex
	report models.SyncReport
	errs   []string
}

func (c *cycle) addError(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, fmt.Sprintf(format, args...))
}

func (c *cycle) count(fn func(r *models.SyncReport)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.report)
}

func (m *SyncManager) runCycle(parent context.Context) (models.SyncResult, error) {
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	m.mu.Lock()
	if m.stopped != nil {
		m.mu.Unlock()
		return models.SyncResult{}, m.stopped
	}
	running := make(chan struct{})
	m.abortFn, m.running = cancel, running
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.abortFn, m.running = nil, nil
		m.mu.Unlock()
		close(running)
	}()

	log := m.logger.With().Str("func", "SyncManager.runCycle").Logger()
	c := &cycle{report: models.SyncReport{StartedAt: m.now()}}

	if !m.network.IsOnline() {
		log.Debug().Msg("skipping sync while offline")
		c.addError("%s", ErrOffline)
		return m.finish(c, models.SyncIdle, nil), ErrOffline
	}
	if err := m.checkSession(); err != nil {
		return m.fail(c, err)
	}

	m.setState(models.SyncDrainingQueue, "")
	due, err := m.queue.Drain(ctx)
	if err != nil {
		return m.fail(c, err)
	}

	m.setState(models.SyncPushing, "")
	if err = m.push(ctx, c, due); err != nil {
		return m.fail(c, err)
	}
	if cause := context.Cause(ctx); cause != nil {
		return m.aborted(c, cause)
	}

	m.setState(models.SyncPulling, "")
	if err = m.pull(ctx, c); err != nil {
		return m.fail(c, err)
	}
	if cause := context.Cause(ctx); cause != nil {
		return m.aborted(c, cause)
	}

	m.setState(models.SyncReconciling, "")
	if err = m.reconcile(context.WithoutCancel(ctx)); err != nil {
		return m.fail(c, err)
	}

	res := m.finish(c, models.SyncIdle, nil)
	log.Info().
		Int("pushed", res.Report.Pushed).
		Int("pulled", res.Report.Pulled).
		Int("conflicts", res.Report.Conflicts).
		Int("retried", res.Report.Retried).
		Int("dead_lettered", res.Report.DeadLettered).
		Dur("duration", res.Report.Duration).
		Msg("sync cycle finished")
	return res, nil
}

// checkSession fails fast on a missing or expired session token. Opaque
// tokens are accepted as they are; the remote has the last word.
func (m *SyncManager) checkSession() error {
	token := m.remote.Token()
	if token == "" {
		return fmt.Errorf("%w: no session token", ErrAuthExpired)
	}
	exp, ok, err := utils.TokenExpiry(token)
	if err != nil || !ok {
		return nil
	}
	if !exp.After(m.now()) {
		return fmt.Errorf("%w: token expired at %s", ErrAuthExpired, exp.Format(time.RFC3339))
	}
	return nil
}

// push sends the drained mutations. Entities are pushed in parallel up to
// the concurrency limit; the mutations of one entity go in order and stop at
// the first one that is not applied.
func (m *SyncManager) push(ctx context.Context, c *cycle, due []models.QueuedMutation) error {
	defer func() {
		for _, mu := range due {
			m.queue.Release(mu.ID)
		}
	}()
	if len(due) == 0 {
		return nil
	}

	var (
		order  []models.EntityKey
		groups = make(map[models.EntityKey][]models.QueuedMutation)
	)
	for _, mu := range due {
		key := mu.Key()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], mu)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for _, key := range order {
		chain := groups[key]
		g.Go(func() error {
			for _, mu := range chain {
				applied, err := m.pushOne(gctx, c, mu)
				if err != nil || !applied {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// pushOne pushes one mutation and records the outcome. It returns an error
// only for failures that end the cycle.
func (m *SyncManager) pushOne(ctx context.Context, c *cycle, mu models.QueuedMutation) (bool, error) {
	if ctx.Err() != nil {
		c.count(func(r *models.SyncReport) { r.Skipped++ })
		return false, nil
	}

	body, err := openRaw(m.cipher, mu.PayloadEncrypted)
	if err != nil {
		return false, err
	}

	res, err := m.remote.PushMutation(ctx, models.PushRequest{
		MutationID:  mu.ID,
		Revision:    mu.Revision,
		EntityType:  mu.EntityType,
		EntityID:    mu.EntityID,
		Operation:   mu.Operation,
		BaseVersion: mu.BaseVersion,
		Payload:     body,
	})

	// Store writes after the request must land even if the cycle is
	// aborted meanwhile.
	sctx := context.WithoutCancel(ctx)
	key := mu.Key()

	if err == nil && res.Status == models.PushConflict && res.Remote == nil {
		err = fmt.Errorf("%w: conflict without a remote snapshot", adapter.ErrTransient)
	}

	switch {
	case err == nil:
	case ctx.Err() != nil:
		c.count(func(r *models.SyncReport) { r.Skipped++ })
		return false, nil
	case errors.Is(err, adapter.ErrUnauthorized):
		return false, fmt.Errorf("%w: %w", ErrAuthExpired, err)
	default:
		dead, merr := m.markFailed(sctx, mu, err, false)
		if merr != nil {
			return false, merr
		}
		c.addError("push %s: %v", key, err)
		c.count(func(r *models.SyncReport) {
			if dead {
				r.DeadLettered++
			} else {
				r.Retried++
			}
		})
		if dead {
			m.publish(models.Event{Kind: models.EventDeadLettered, Entity: &key, Reason: err.Error()})
		}
		return false, nil
	}

	switch res.Status {
	case models.PushApplied:
		if err = m.applyAck(sctx, mu, res.NewVersion); err != nil {
			return false, err
		}
		c.count(func(r *models.SyncReport) { r.Pushed++ })
		m.publish(models.Event{Kind: models.EventMutationApplied, Entity: &key})
		return true, nil

	case models.PushConflict:
		if err = m.raisePushConflict(sctx, mu, *res.Remote); err != nil {
			return false, err
		}
		c.count(func(r *models.SyncReport) { r.Conflicts++ })
		m.publish(models.Event{Kind: models.EventConflictDetected, Entity: &key})
		return false, nil

	default:
		reason := res.Reason
		if reason == "" {
			reason = string(res.Status)
		}
		if _, err = m.markFailed(sctx, mu, fmt.Errorf("%w: %s", adapter.ErrPermanent, reason), true); err != nil {
			return false, err
		}
		c.addError("push %s rejected: %s", key, reason)
		c.count(func(r *models.SyncReport) { r.DeadLettered++ })
		m.publish(models.Event{Kind: models.EventDeadLettered, Entity: &key, Reason: reason})
		return false, nil
	}
}

// markFailed counts a failed push. When the mutation goes dead its entity is
// left pending, restoring one that was deleted locally, so the unsynced data
// stays visible and editable.
func (m *SyncManager) markFailed(ctx context.Context, mu models.QueuedMutation, cause error, permanent bool) (bool, error) {
	var dead bool
	err := m.locked(ctx, mu.Key(), func(ctx context.Context) error {
		var err error
		if dead, err = m.queue.MarkFailed(ctx, mu, cause, permanent); err != nil || !dead {
			return err
		}

		ent, exists, err := m.cache.record(ctx, mu.Key())
		if err != nil || !exists || ent.SyncStatus == models.StatusPending {
			return err
		}
		ent.SyncStatus = models.StatusPending
		return m.cache.putRecord(ctx, ent)
	})
	return dead, err
}

// applyAck records an applied push. An entity whose mutation was fully
// flushed becomes synced at newVersion; one edited while in flight stays
// pending with its mutation rebased onto newVersion.
func (m *SyncManager) applyAck(ctx context.Context, mu models.QueuedMutation, newVersion int64) error {
	key := mu.Key()
	return m.locked(ctx, key, func(ctx context.Context) error {
		_, live, err := m.queue.MarkApplied(ctx, mu, newVersion)
		if err != nil {
			return err
		}

		ent, exists, err := m.cache.record(ctx, key)
		if err != nil || !exists {
			return err
		}

		ent.RemoteVersion = models.Int64Ptr(newVersion)
		switch {
		case live:
			ent.LocalVersion = max(ent.LocalVersion, newVersion+1)
		case mu.Operation == models.OpDelete:
			_, err = m.cache.Remove(ctx, key)
			return err
		default:
			ent.LocalVersion = newVersion
			ent.SyncStatus = models.StatusSynced
		}
		return m.cache.putRecord(ctx, ent)
	})
}

func (m *SyncManager) raisePushConflict(ctx context.Context, mu models.QueuedMutation, snap models.RemoteSnapshot) error {
	key := mu.Key()
	return m.locked(ctx, key, func(ctx context.Context) error {
		if _, err := m.queue.MarkConflict(ctx, mu); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}
		return m.recordConflict(ctx, key, snap)
	})
}

// recordConflict stores both sides of key and flags the cache row.
func (m *SyncManager) recordConflict(ctx context.Context, key models.EntityKey, snap models.RemoteSnapshot) error {
	ent, exists, err := m.cache.record(ctx, key)
	if err != nil {
		return err
	}

	remoteBlob, err := sealRaw(m.cipher, snap.Payload)
	if err != nil {
		return err
	}

	rec := models.ConflictRecord{
		EntityID:        key.ID,
		EntityType:      key.Type,
		RemoteSnapshot:  remoteBlob,
		RemoteTimestamp: snap.UpdatedAt,
		RemoteVersion:   snap.Version,
		RemoteDeleted:   snap.Deleted,
		DetectedAt:      m.now(),
	}
	if exists {
		rec.LocalTimestamp = ent.LastModifiedLocal
		if ent.SyncStatus != models.StatusDeletedPending {
			rec.LocalSnapshot = ent.PayloadEncrypted
		}
	}
	if err = m.conflicts.Record(ctx, rec); err != nil {
		return err
	}

	if !exists {
		return nil
	}
	ent.SyncStatus = models.StatusConflict
	return m.cache.putRecord(ctx, ent)
}

// pull pages through the change feed from the stored watermark. The
// watermark is persisted after every page, so an interrupted pull resumes
// where it stopped.
func (m *SyncManager) pull(ctx context.Context, c *cycle) error {
	sctx := context.WithoutCancel(ctx)
	since, _, err := m.storages.Meta.GetInt64(sctx, store.MetaWatermark)
	if err != nil {
		return err
	}

	for ctx.Err() == nil {
		page, err := m.remote.PullChanges(ctx, since, m.pageSize)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, adapter.ErrUnauthorized):
			return fmt.Errorf("%w: %w", ErrAuthExpired, err)
		default:
			c.addError("pull since %d: %v", since, err)
			return nil
		}

		for _, snap := range page.Changes {
			outcome, err := m.applyRemote(sctx, snap)
			if err != nil {
				return err
			}
			key := snap.Key()
			switch outcome {
			case remoteApplied:
				c.count(func(r *models.SyncReport) { r.Pulled++ })
				m.publish(models.Event{Kind: models.EventEntityChanged, Entity: &key})
			case remoteConflict:
				c.count(func(r *models.SyncReport) { r.Conflicts++ })
				m.publish(models.Event{Kind: models.EventConflictDetected, Entity: &key})
			}
		}

		if page.Watermark > since {
			if err = m.storages.Meta.SetInt64(sctx, store.MetaWatermark, page.Watermark); err != nil {
				return err
			}
			since = page.Watermark
		}
		c.count(func(r *models.SyncReport) { r.Watermark = since })

		if !page.HasMore || len(page.Changes) == 0 {
			return nil
		}
	}
	return nil
}

type remoteOutcome int

const (
	remoteSkipped remoteOutcome = iota
	remoteApplied
	remoteConflict
	remoteAcknowledged
)

// applyRemote merges one change from the feed into the partition.
func (m *SyncManager) applyRemote(ctx context.Context, snap models.RemoteSnapshot) (remoteOutcome, error) {
	key := snap.Key()
	if !key.Type.Known() || key.ID == "" {
		m.logger.Warn().Str("func", "SyncManager.applyRemote").Str("entity", key.String()).Msg("skipping change of unknown entity type")
		return remoteSkipped, nil
	}

	outcome := remoteSkipped
	err := m.locked(ctx, key, func(ctx context.Context) error {
		ent, exists, err := m.cache.record(ctx, key)
		if err != nil {
			return err
		}
		if exists && ent.RemoteVersion != nil && snap.Version <= *ent.RemoteVersion {
			return nil
		}

		mu, hasMut, err := m.queue.Live(ctx, key)
		if err != nil {
			return err
		}

		switch {
		case !hasMut && (!exists || ent.SyncStatus == models.StatusSynced):
			outcome = remoteApplied
			return m.storeRemote(ctx, snap, ent, exists)

		case !hasMut && ent.SyncStatus == models.StatusConflict,
			hasMut && mu.State == models.MutationConflict:
			_, err = m.conflicts.refreshRemote(ctx, key, snap)
			if errors.Is(err, store.ErrNotFound) {
				outcome = remoteConflict
				return m.recordConflict(ctx, key, snap)
			}
			return err

		case hasMut && mu.BaseVersion != nil && *mu.BaseVersion == snap.Version:
			outcome = remoteAcknowledged
			if !exists {
				return nil
			}
			ent.RemoteVersion = models.Int64Ptr(snap.Version)
			return m.cache.putRecord(ctx, ent)

		default:
			outcome = remoteConflict
			if hasMut {
				if _, err = m.queue.MarkConflict(ctx, mu); err != nil {
					return err
				}
			}
			return m.recordConflict(ctx, key, snap)
		}
	})
	return outcome, err
}

// storeRemote writes a remote snapshot as a synced row, or removes the row
// for a remote delete.
func (m *SyncManager) storeRemote(ctx context.Context, snap models.RemoteSnapshot, ent models.CachedEntity, exists bool) error {
	key := snap.Key()
	if snap.Deleted {
		if !exists {
			return nil
		}
		_, err := m.cache.Remove(ctx, key)
		return err
	}

	blob, err := sealRaw(m.cipher, snap.Payload)
	if err != nil {
		return err
	}
	return m.cache.putRecord(ctx, models.CachedEntity{
		ID:                key.ID,
		EntityType:        key.Type,
		PayloadEncrypted:  blob,
		LocalVersion:      snap.Version,
		RemoteVersion:     models.Int64Ptr(snap.Version),
		LastModifiedLocal: snap.UpdatedAt,
		SyncStatus:        models.StatusSynced,
	})
}

func (m *SyncManager) reconcile(ctx context.Context) error {
	if err := m.storages.Meta.SetInt64(ctx, store.MetaLastSyncTime, m.now().UnixNano()); err != nil {
		return err
	}
	if m.maxCacheBytes > 0 {
		if _, err := m.cache.Evict(ctx, m.maxCacheBytes); err != nil {
			return err
		}
	}
	return nil
}

// locked runs fn under the entity lock inside one transaction.
func (m *SyncManager) locked(ctx context.Context, key models.EntityKey, fn func(ctx context.Context) error) error {
	unlock := m.locks.Lock(key.String())
	defer unlock()
	return m.storages.InTx(ctx, fn)
}

func (m *SyncManager) fail(c *cycle, err error) (models.SyncResult, error) {
	m.logger.Err(err).Str("func", "SyncManager.fail").Msg("sync cycle failed")
	c.addError("%v", err)
	return m.finish(c, models.SyncFailed, err), err
}

func (m *SyncManager) aborted(c *cycle, cause error) (models.SyncResult, error) {
	m.logger.Warn().Str("func", "SyncManager.aborted").AnErr("cause", cause).Msg("sync cycle aborted")
	c.addError("aborted: %v", cause)
	return m.finish(c, models.SyncIdle, nil), cause
}

func (m *SyncManager) finish(c *cycle, state models.SyncState, failure error) models.SyncResult {
	c.mu.Lock()
	report := c.report
	errs := slices.Clone(c.errs)
	c.mu.Unlock()

	report.Duration = m.now().Sub(report.StartedAt)
	report.FinishedState = state

	reason := ""
	if failure != nil {
		reason = failure.Error()
	}

	m.mu.Lock()
	m.errs = errs
	m.mu.Unlock()
	m.setState(state, reason)

	res := models.SyncResult{Success: len(errs) == 0, Errors: errs, Report: report}
	m.publish(models.Event{Kind: models.EventSyncFinished, Result: &res})
	return res
}

func (m *SyncManager) setState(state models.SyncState, reason string) {
	m.mu.Lock()
	changed := m.state != state || m.reason != reason
	m.state = state
	m.reason = reason
	m.mu.Unlock()

	if changed {
		m.publish(models.Event{Kind: models.EventStateChanged, State: state, Reason: reason})
	}
}

func (m *SyncManager) publish(e models.Event) {
	e.At = m.now()
	m.events.Publish(e)
}
