// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/Rajak13/StudyCollab-sub003/internal/config"
	"github.com/Rajak13/StudyCollab-sub003/internal/crypto"
	"github.com/Rajak13/StudyCollab-sub003/internal/logger"
	"github.com/Rajak13/StudyCollab-sub003/internal/store"
	"github.com/Rajak13/StudyCollab-sub003/internal/utils"
	"github.com/Rajak13/StudyCollab-sub003/models"
)

const (
	defaultMaxAttempts = 5
	defaultBackoffBase = time.Second
	defaultBackoffMax  = 30 * time.Second
)

// MutationQueue is the durable, per-entity coalescing queue of local writes
// waiting to be pushed. At most one live (non-dead) mutation exists per
// entity; a new write folds into it.
type MutationQueue struct {
	storages *store.ClientStorages
	cipher   crypto.Cipher
	ids      *utils.UUIDGenerator

	maxAttempts   int
	backoffBase   time.Duration
	backoffMax    time.Duration
	backoffJitter uint64

	now func() time.Time

	mu       sync.Mutex
	inFlight map[string]int64 // mutation id -> revision handed out by Drain

	logger *logger.Logger
}

// NewMutationQueue wires a queue over an opened partition. Zero values in
// cfg fall back to 5 attempts and a 1s..30s exponential backoff.
func NewMutationQueue(storages *store.ClientStorages, cipher crypto.Cipher, cfg config.ClientSync, logger *logger.Logger) *MutationQueue {
	q := &MutationQueue{
		storages:      storages,
		cipher:        cipher,
		ids:           utils.NewUUIDGenerator(),
		maxAttempts:   cfg.MaxAttempts,
		backoffBase:   cfg.BackoffBase,
		backoffMax:    cfg.BackoffMax,
		backoffJitter: cfg.BackoffJitterPercent,
		now:           time.Now,
		inFlight:      make(map[string]int64),
		logger:        logger,
	}
	if q.maxAttempts <= 0 {
		q.maxAttempts = defaultMaxAttempts
	}
	if q.backoffBase <= 0 {
		q.backoffBase = defaultBackoffBase
	}
	if q.backoffMax <= 0 {
		q.backoffMax = defaultBackoffMax
	}
	return q
}

// Enqueue records req against the live mutation of the same entity. base is
// the remote version the write was made on, nil for entities the remote has
// never acknowledged.
//
// Coalescing rules:
//
//	live     new      result
//	-        any      new mutation, revision 1
//	create   update   create with the new payload
//	update   update   update with the new payload, earliest base kept
//	delete   create   update with the new payload (create when base is nil)
//	create   delete   both cancelled if the create was never handed out
//	any      delete   delete
//	delete   delete   no-op
//	create   create   ErrInvalidMutation
//	update   create   ErrInvalidMutation
//	delete   update   ErrInvalidMutation
//
// cancelled reports the create/delete cancellation; the returned mutation is
// then the removed one.
func (q *MutationQueue) Enqueue(ctx context.Context, req models.MutationRequest, base *int64) (m models.QueuedMutation, cancelled bool, err error) {
	if err = validateRequest(req); err != nil {
		return models.QueuedMutation{}, false, err
	}

	var blob []byte
	if req.Operation != models.OpDelete {
		if blob, err = sealPayload(q.cipher, req.Payload); err != nil {
			return models.QueuedMutation{}, false, err
		}
	}

	key := models.EntityKey{Type: req.EntityType, ID: req.EntityID}
	err = q.storages.InTx(ctx, func(ctx context.Context) error {
		cur, err := q.storages.Mutations.GetLive(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			m = q.newMutation(key, req.Operation, base, blob)
			m.Seq, err = q.storages.Mutations.Insert(ctx, m)
			return err
		}
		if err != nil {
			return err
		}

		next, cancel, err := q.coalesce(cur, req.Operation, blob)
		if err != nil {
			return err
		}
		if cancel {
			cancelled = true
			m = cur
			return q.storages.Mutations.Delete(ctx, cur.ID)
		}

		m = next
		if next.Revision == cur.Revision {
			return nil
		}
		return q.storages.Mutations.Update(ctx, next)
	})
	if err != nil {
		q.logger.Err(err).Str("func", "MutationQueue.Enqueue").Str("entity", key.String()).Msg("error enqueueing mutation")
		return models.QueuedMutation{}, false, err
	}

	q.logger.Debug().Str("func", "MutationQueue.Enqueue").
		Str("entity", key.String()).
		Str("op", string(m.Operation)).
		Int64("revision", m.Revision).
		Bool("cancelled", cancelled).
		Msg("mutation queued")
	return m, cancelled, nil
}

// coalesce folds a write of op over the live mutation cur. Revision grows on
// every fold that changes the row; attempts and schedule are kept.
func (q *MutationQueue) coalesce(cur models.QueuedMutation, op models.Operation, blob []byte) (models.QueuedMutation, bool, error) {
	next := cur
	next.Revision++

	switch op {
	case models.OpCreate:
		if cur.Operation != models.OpDelete {
			return cur, false, fmt.Errorf("%w: create over a queued %s of %s", ErrInvalidMutation, cur.Operation, cur.Key())
		}
		next.Operation = models.OpUpdate
		if cur.BaseVersion == nil {
			next.Operation = models.OpCreate
		}
		next.PayloadEncrypted = blob

	case models.OpUpdate:
		if cur.Operation == models.OpDelete {
			return cur, false, fmt.Errorf("%w: update of deleted %s", ErrInvalidMutation, cur.Key())
		}
		next.PayloadEncrypted = blob

	case models.OpDelete:
		switch cur.Operation {
		case models.OpDelete:
			return cur, false, nil
		case models.OpCreate:
			if q.cancellable(cur) {
				return cur, true, nil
			}
		}
		next.Operation = models.OpDelete
		next.PayloadEncrypted = nil
	}

	return next, false, nil
}

// cancellable reports whether the remote can not have seen cur.
func (q *MutationQueue) cancellable(cur models.QueuedMutation) bool {
	if cur.State != models.MutationPending || cur.Attempts > 0 {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	_, busy := q.inFlight[cur.ID]
	return !busy
}

func (q *MutationQueue) newMutation(key models.EntityKey, op models.Operation, base *int64, blob []byte) models.QueuedMutation {
	now := q.now()
	if op == models.OpCreate {
		base = nil
	}
	return models.QueuedMutation{
		ID:               q.ids.Generate(),
		EntityID:         key.ID,
		EntityType:       key.Type,
		Operation:        op,
		PayloadEncrypted: blob,
		BaseVersion:      base,
		Revision:         1,
		State:            models.MutationPending,
		EnqueuedAt:       now,
		NextAttemptAt:    now,
	}
}

// Drain returns the due pending mutations in enqueue order and marks them in
// flight. Mutations already in flight are left out. Every drained mutation
// must be handed back with Release.
func (q *MutationQueue) Drain(ctx context.Context) ([]models.QueuedMutation, error) {
	due, err := q.storages.Mutations.ListDue(ctx, q.now(), 0)
	if err != nil {
		q.logger.Err(err).Str("func", "MutationQueue.Drain").Msg("error listing due mutations")
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	out := due[:0]
	for _, m := range due {
		if _, busy := q.inFlight[m.ID]; busy {
			continue
		}
		q.inFlight[m.ID] = m.Revision
		out = append(out, m)
	}
	return out, nil
}

// Release ends the in-flight registration of id. Releasing a mutation whose
// push was abandoned leaves it pending without counting an attempt.
func (q *MutationQueue) Release(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inFlight, id)
}

// MarkApplied acknowledges the push of m at newVersion. If m was not edited
// while in flight its row is removed; otherwise the newer revision is
// rebased onto newVersion and stays live.
func (q *MutationQueue) MarkApplied(ctx context.Context, m models.QueuedMutation, newVersion int64) (cur models.QueuedMutation, live bool, err error) {
	cur, err = q.storages.Mutations.GetByID(ctx, m.ID)
	if errors.Is(err, store.ErrNotFound) {
		return m, false, nil
	}
	if err != nil {
		return models.QueuedMutation{}, false, err
	}

	if cur.Revision == m.Revision {
		if err = q.storages.Mutations.Delete(ctx, m.ID); err != nil {
			return models.QueuedMutation{}, false, err
		}
		return cur, false, nil
	}

	cur.BaseVersion = models.Int64Ptr(newVersion)
	if cur.Operation == models.OpCreate {
		cur.Operation = models.OpUpdate
	}
	q.reset(&cur)
	if err = q.storages.Mutations.Update(ctx, cur); err != nil {
		return models.QueuedMutation{}, false, err
	}
	return cur, true, nil
}

// MarkFailed counts a failed push of m. The mutation goes dead when the
// remote rejected this revision or its attempts exceed the ceiling; otherwise
// it is rescheduled after the backoff.
func (q *MutationQueue) MarkFailed(ctx context.Context, m models.QueuedMutation, cause error, permanent bool) (dead bool, err error) {
	cur, err := q.storages.Mutations.GetByID(ctx, m.ID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	cur.Attempts++
	if cause != nil {
		cur.LastError = cause.Error()
	}

	// A rejection of an older revision says nothing about the current one.
	rejected := permanent && cur.Revision == m.Revision
	if rejected || cur.Attempts > q.maxAttempts {
		cur.State = models.MutationDead
		dead = true
	} else {
		cur.NextAttemptAt = q.now().Add(q.Backoff(cur.Attempts))
	}

	if err = q.storages.Mutations.Update(ctx, cur); err != nil {
		return false, err
	}

	ev := q.logger.Warn()
	if dead {
		ev = q.logger.Error()
	}
	ev.Str("func", "MutationQueue.MarkFailed").
		Str("entity", cur.Key().String()).
		Int("attempts", cur.Attempts).
		Bool("dead", dead).
		Time("next_attempt_at", cur.NextAttemptAt).
		Str("cause", cur.LastError).
		Msg("push failed")
	return dead, nil
}

// Backoff returns the delay before attempt number attempts+1: exponential
// from the base, jittered, then capped.
func (q *MutationQueue) Backoff(attempts int) time.Duration {
	var b retry.Backoff = retry.NewExponential(q.backoffBase)
	if q.backoffJitter > 0 {
		b = retry.WithJitterPercent(q.backoffJitter, b)
	}
	b = retry.WithCappedDuration(q.backoffMax, b)

	d := q.backoffBase
	for range attempts {
		next, stop := b.Next()
		if stop {
			break
		}
		d = next
	}
	return d
}

// MarkConflict parks m until its conflict is resolved.
func (q *MutationQueue) MarkConflict(ctx context.Context, m models.QueuedMutation) (models.QueuedMutation, error) {
	cur, err := q.storages.Mutations.GetByID(ctx, m.ID)
	if err != nil {
		return models.QueuedMutation{}, err
	}
	cur.State = models.MutationConflict
	if err = q.storages.Mutations.Update(ctx, cur); err != nil {
		return models.QueuedMutation{}, err
	}
	return cur, nil
}

// Live returns the live mutation of key; ok is false when there is none.
func (q *MutationQueue) Live(ctx context.Context, key models.EntityKey) (models.QueuedMutation, bool, error) {
	m, err := q.storages.Mutations.GetLive(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return models.QueuedMutation{}, false, nil
	}
	if err != nil {
		return models.QueuedMutation{}, false, err
	}
	return m, true, nil
}

// Pending lists pending mutations in enqueue order, due or not.
func (q *MutationQueue) Pending(ctx context.Context) ([]models.QueuedMutation, error) {
	return q.storages.Mutations.ListByState(ctx, models.MutationPending)
}

// Discard drops the live mutation of key, if any.
func (q *MutationQueue) Discard(ctx context.Context, key models.EntityKey) error {
	m, ok, err := q.Live(ctx, key)
	if err != nil || !ok {
		return err
	}
	return q.storages.Mutations.Delete(ctx, m.ID)
}

// Rebase replaces the live mutation of key with op over base, or queues a
// new one. The result is pending and due now.
func (q *MutationQueue) Rebase(ctx context.Context, key models.EntityKey, op models.Operation, base *int64, blob []byte) (models.QueuedMutation, error) {
	cur, ok, err := q.Live(ctx, key)
	if err != nil {
		return models.QueuedMutation{}, err
	}
	if !ok {
		m := q.newMutation(key, op, base, blob)
		m.Seq, err = q.storages.Mutations.Insert(ctx, m)
		return m, err
	}

	cur.Operation = op
	cur.BaseVersion = base
	if op == models.OpCreate {
		cur.BaseVersion = nil
	}
	cur.PayloadEncrypted = blob
	cur.Revision++
	q.reset(&cur)
	return cur, q.storages.Mutations.Update(ctx, cur)
}

// Requeue moves a dead-lettered mutation back to pending with a fresh
// attempt budget. It fails with ErrInvalidMutation when id is not dead or
// the entity already has a newer live mutation.
func (q *MutationQueue) Requeue(ctx context.Context, id string) (models.QueuedMutation, error) {
	var out models.QueuedMutation
	err := q.storages.InTx(ctx, func(ctx context.Context) error {
		m, err := q.storages.Mutations.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if m.State != models.MutationDead {
			return fmt.Errorf("%w: mutation %s is %s, not dead", ErrInvalidMutation, id, m.State)
		}

		if _, live, err := q.Live(ctx, m.Key()); err != nil {
			return err
		} else if live {
			return fmt.Errorf("%w: %s has a newer queued mutation", ErrInvalidMutation, m.Key())
		}

		m.Revision++
		q.reset(&m)
		out = m
		return q.storages.Mutations.Update(ctx, m)
	})
	if err != nil {
		return models.QueuedMutation{}, err
	}

	q.logger.Info().Str("func", "MutationQueue.Requeue").Str("entity", out.Key().String()).Msg("dead-lettered mutation requeued")
	return out, nil
}

// GetDeadLettered lists mutations that exceeded the retry ceiling or were
// rejected.
func (q *MutationQueue) GetDeadLettered(ctx context.Context) ([]models.DeadLetter, error) {
	dead, err := q.storages.Mutations.ListByState(ctx, models.MutationDead)
	if err != nil {
		return nil, err
	}

	out := make([]models.DeadLetter, 0, len(dead))
	for _, m := range dead {
		out = append(out, models.DeadLetter{
			ID:         m.ID,
			EntityType: m.EntityType,
			EntityID:   m.EntityID,
			Operation:  m.Operation,
			Attempts:   m.Attempts,
			LastError:  m.LastError,
			EnqueuedAt: m.EnqueuedAt,
		})
	}
	return out, nil
}

// Counts returns the number of mutations per state.
func (q *MutationQueue) Counts(ctx context.Context) (map[models.MutationState]int64, error) {
	return q.storages.Mutations.CountByState(ctx)
}

// PendingCount is the number of live mutations, parked conflicts included.
func (q *MutationQueue) PendingCount(ctx context.Context) (int64, error) {
	counts, err := q.Counts(ctx)
	if err != nil {
		return 0, err
	}
	return counts[models.MutationPending] + counts[models.MutationConflict], nil
}

// NextRetryAt implements [RetryScheduler].
func (q *MutationQueue) NextRetryAt(ctx context.Context) (time.Time, bool, error) {
	return q.storages.Mutations.NextAttemptAt(ctx)
}

func (q *MutationQueue) reset(m *models.QueuedMutation) {
	m.State = models.MutationPending
	m.Attempts = 0
	m.LastError = ""
	m.NextAttemptAt = q.now()
}

func validateRequest(req models.MutationRequest) error {
	switch {
	case req.EntityID == "":
		return fmt.Errorf("%w: empty entity id", ErrInvalidMutation)
	case !req.EntityType.Known():
		return fmt.Errorf("%w: unknown entity type %q", ErrInvalidMutation, req.EntityType)
	case !req.Operation.Valid():
		return fmt.Errorf("%w: unknown operation %q", ErrInvalidMutation, req.Operation)
	case req.Operation != models.OpDelete && req.Payload.IsZero():
		return fmt.Errorf("%w: %s of %s/%s needs a payload", ErrInvalidMutation, req.Operation, req.EntityType, req.EntityID)
	case req.Operation != models.OpDelete && req.Payload.Type != "" && req.Payload.Type != req.EntityType:
		return fmt.Errorf("%w: %s payload for a %s", ErrInvalidMutation, req.Payload.Type, req.EntityType)
	}
	return nil
}
