// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package remote

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Rajak13/StudyCollab-sub003/internal/logger"
	"github.com/Rajak13/StudyCollab-sub003/models"
)

const (
	// DefaultPageSize is used when a change feed query names no limit.
	DefaultPageSize = 100
	// MaxPageSize caps a single change feed page.
	MaxPageSize = 1000

	replayLimit = 10_000
)

// partition is the remote state of one user.
type partition struct {
	entities map[models.EntityKey]*models.RemoteSnapshot
	seq      int64

	replay      map[string]models.PushResult
	replayOrder []string
}

func newPartition() *partition {
	return &partition{
		entities: make(map[models.EntityKey]*models.RemoteSnapshot),
		replay:   make(map[string]models.PushResult),
	}
}

// MemoryStore is an in-memory [SyncStore]. All users share one lock; the
// reference remote serves tests and local development, not production load.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]*partition
	now   func() time.Time

	logger *logger.Logger
}

// NewMemoryStore returns an empty store.
func NewMemoryStore(logger *logger.Logger) *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]*partition),
		now:    time.Now,
		logger: logger,
	}
}

func (s *MemoryStore) partition(userID string) *partition {
	p, ok := s.users[userID]
	if !ok {
		p = newPartition()
		s.users[userID] = p
	}
	return p
}

// Push implements [SyncStore].
func (s *MemoryStore) Push(ctx context.Context, userID, idempotencyKey string, req models.PushRequest) (models.PushResult, error) {
	if err := ctx.Err(); err != nil {
		return models.PushResult{}, err
	}
	if userID == "" {
		return models.PushResult{}, ErrNoUserID
	}
	if err := validatePush(req); err != nil {
		return models.PushResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.partition(userID)
	if idempotencyKey != "" {
		if res, ok := p.replay[idempotencyKey]; ok {
			s.logger.Debug().
				Str("func", "MemoryStore.Push").
				Str("idempotency_key", idempotencyKey).
				Msg("replaying applied push")
			return res, nil
		}
	}

	res, err := s.apply(p, req)
	if err != nil {
		return models.PushResult{}, err
	}

	if res.Status == models.PushApplied && idempotencyKey != "" {
		p.remember(idempotencyKey, res)
	}

	s.logger.Debug().
		Str("func", "MemoryStore.Push").
		Str("user_id", userID).
		Str("entity", models.EntityKey{Type: req.EntityType, ID: req.EntityID}.String()).
		Str("operation", string(req.Operation)).
		Str("status", string(res.Status)).
		Int64("version", res.NewVersion).
		Msg("push handled")

	return res, nil
}

func (s *MemoryStore) apply(p *partition, req models.PushRequest) (models.PushResult, error) {
	key := models.EntityKey{Type: req.EntityType, ID: req.EntityID}
	current, exists := p.entities[key]
	live := exists && !current.Deleted

	switch req.Operation {
	case models.OpCreate:
		if live {
			return conflictWith(current), nil
		}
		return p.write(key, current, req.Payload, false, s.now()), nil

	case models.OpUpdate:
		if !exists {
			return models.PushResult{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		if current.Deleted || req.BaseVersion == nil || *req.BaseVersion != current.Version {
			return conflictWith(current), nil
		}
		return p.write(key, current, req.Payload, false, s.now()), nil

	default: // models.OpDelete
		if !live {
			var version int64
			if exists {
				version = current.Version
			}
			return models.PushResult{Status: models.PushApplied, NewVersion: version}, nil
		}
		if req.BaseVersion != nil && *req.BaseVersion != current.Version {
			return conflictWith(current), nil
		}
		return p.write(key, current, nil, true, s.now()), nil
	}
}

// write stores the next version of key and moves it to the feed head.
func (p *partition) write(key models.EntityKey, current *models.RemoteSnapshot, payload []byte, deleted bool, at time.Time) models.PushResult {
	var version int64 = 1
	if current != nil {
		version = current.Version + 1
	}
	p.seq++

	snap := &models.RemoteSnapshot{
		EntityType: key.Type,
		EntityID:   key.ID,
		Version:    version,
		Deleted:    deleted,
		UpdatedAt:  at.UTC(),
		Seq:        p.seq,
	}
	if !deleted {
		snap.Payload = bytes.Clone(payload)
	}
	p.entities[key] = snap

	return models.PushResult{Status: models.PushApplied, NewVersion: version}
}

func (p *partition) remember(key string, res models.PushResult) {
	p.replay[key] = res
	p.replayOrder = append(p.replayOrder, key)
	if len(p.replayOrder) > replayLimit {
		delete(p.replay, p.replayOrder[0])
		p.replayOrder = p.replayOrder[1:]
	}
}

func conflictWith(current *models.RemoteSnapshot) models.PushResult {
	snap := *current
	snap.Payload = bytes.Clone(current.Payload)
	return models.PushResult{Status: models.PushConflict, Remote: &snap}
}

// Changes implements [SyncStore]. The feed is compacted: an entity written
// several times since the watermark appears once, at its latest position.
func (s *MemoryStore) Changes(ctx context.Context, userID string, since int64, limit int) (models.PullResponse, error) {
	if err := ctx.Err(); err != nil {
		return models.PullResponse{}, err
	}
	if userID == "" {
		return models.PullResponse{}, ErrNoUserID
	}
	if since < 0 {
		return models.PullResponse{}, fmt.Errorf("%w: negative watermark", ErrInvalidQuery)
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.partition(userID)
	var newer []models.RemoteSnapshot
	for _, snap := range p.entities {
		if snap.Seq > since {
			c := *snap
			c.Payload = bytes.Clone(snap.Payload)
			newer = append(newer, c)
		}
	}
	slices.SortFunc(newer, func(a, b models.RemoteSnapshot) int {
		return cmp.Compare(a.Seq, b.Seq)
	})

	resp := models.PullResponse{Changes: newer, Watermark: since}
	if len(newer) > limit {
		resp.Changes = newer[:limit]
		resp.HasMore = true
	}
	if n := len(resp.Changes); n > 0 {
		resp.Watermark = resp.Changes[n-1].Seq
	}
	if resp.Changes == nil {
		resp.Changes = []models.RemoteSnapshot{}
	}

	return resp, nil
}

func validatePush(req models.PushRequest) error {
	switch {
	case req.EntityID == "":
		return fmt.Errorf("%w: empty entity id", ErrInvalidRequest)
	case req.EntityType == "":
		return fmt.Errorf("%w: empty entity type", ErrInvalidRequest)
	case !req.Operation.Valid():
		return fmt.Errorf("%w: unknown operation %q", ErrInvalidRequest, req.Operation)
	case req.Operation == models.OpDelete:
		return nil
	}

	raw := bytes.TrimSpace(req.Payload)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fmt.Errorf("%w: %s without payload", ErrInvalidRequest, req.Operation)
	}
	if _, err := models.DecodePayload(req.EntityType, raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}
