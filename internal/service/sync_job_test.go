// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajak13/StudyCollab-sub003/internal/logger"
	"github.com/Rajak13/StudyCollab-sub003/models"
)

type stubSyncer struct {
	calls chan struct{}
	err   error

	mu     sync.Mutex
	aborts []error
}

func newStubSyncer() *stubSyncer {
	return &stubSyncer{calls: make(chan struct{}, 16)}
}

func (s *stubSyncer) Sync(context.Context) (models.SyncResult, error) {
	select {
	case s.calls <- struct{}{}:
	default:
	}
	return models.SyncResult{Success: s.err == nil}, s.err
}

func (s *stubSyncer) Abort(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborts = append(s.aborts, cause)
}

func (s *stubSyncer) abortCauses() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.aborts...)
}

type stubNetwork struct {
	mu      sync.Mutex
	online  bool
	updates chan bool
}

func (n *stubNetwork) IsOnline() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.online
}

func (n *stubNetwork) Subscribe() (<-chan bool, func()) {
	return n.updates, func() {}
}

func (n *stubNetwork) set(online bool) {
	n.mu.Lock()
	n.online = online
	n.mu.Unlock()
	n.updates <- online
}

type stubRetries struct {
	mu   sync.Mutex
	next time.Time
	ok   bool
}

func (r *stubRetries) NextRetryAt(context.Context) (time.Time, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next, r.ok, nil
}

func startJob(t *testing.T, job *SyncJob) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- job.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(5 * time.Second):
			t.Error("Run did not return after cancel")
		}
	})
}

func waitCall(t *testing.T, s *stubSyncer) {
	t.Helper()
	select {
	case <-s.calls:
	case <-time.After(5 * time.Second):
		t.Fatal("no sync triggered")
	}
}

func assertNoCall(t *testing.T, s *stubSyncer, d time.Duration) {
	t.Helper()
	select {
	case <-s.calls:
		t.Fatal("unexpected sync")
	case <-time.After(d):
	}
}

func TestSyncJob_OnlineTransitionTriggersSync(t *testing.T) {
	syncer := newStubSyncer()
	network := &stubNetwork{updates: make(chan bool)}
	job := NewSyncJob(syncer, network, &stubRetries{}, time.Hour, logger.Nop())
	startJob(t, job)

	network.set(true)
	waitCall(t, syncer)
}

func TestSyncJob_OfflineTransitionAborts(t *testing.T) {
	syncer := newStubSyncer()
	network := &stubNetwork{online: true, updates: make(chan bool)}
	job := NewSyncJob(syncer, network, &stubRetries{}, time.Hour, logger.Nop())
	startJob(t, job)

	network.set(false)
	assert.Eventually(t, func() bool {
		causes := syncer.abortCauses()
		return len(causes) == 1 && errors.Is(causes[0], ErrOffline)
	}, 5*time.Second, 10*time.Millisecond)
	assertNoCall(t, syncer, 50*time.Millisecond)
}

func TestSyncJob_Kick(t *testing.T) {
	syncer := newStubSyncer()
	network := &stubNetwork{online: true, updates: make(chan bool)}
	job := NewSyncJob(syncer, network, &stubRetries{}, time.Hour, logger.Nop())

	// Kicks before Run are merged into one.
	job.Kick()
	job.Kick()
	startJob(t, job)

	waitCall(t, syncer)
	assertNoCall(t, syncer, 50*time.Millisecond)
}

func TestSyncJob_Interval(t *testing.T) {
	syncer := newStubSyncer()
	network := &stubNetwork{online: true, updates: make(chan bool)}
	job := NewSyncJob(syncer, network, &stubRetries{}, 20*time.Millisecond, logger.Nop())
	startJob(t, job)

	waitCall(t, syncer)
	waitCall(t, syncer)
}

func TestSyncJob_RetryWhenBackoffIsDue(t *testing.T) {
	syncer := newStubSyncer()
	network := &stubNetwork{online: true, updates: make(chan bool)}
	retries := &stubRetries{next: time.Now(), ok: true}
	job := NewSyncJob(syncer, network, retries, time.Hour, logger.Nop())

	start := time.Now()
	startJob(t, job)

	waitCall(t, syncer)
	assert.GreaterOrEqual(t, time.Since(start), minRetryDelay, "retries are never tighter than the floor")
}

func TestSyncJob_NoRetryWhileOffline(t *testing.T) {
	syncer := newStubSyncer()
	network := &stubNetwork{updates: make(chan bool)}
	retries := &stubRetries{next: time.Now(), ok: true}
	job := NewSyncJob(syncer, network, retries, time.Hour, logger.Nop())
	startJob(t, job)

	assertNoCall(t, syncer, minRetryDelay+200*time.Millisecond)
}

func TestSyncJob_RunEndsOnCancel(t *testing.T) {
	syncer := newStubSyncer()
	network := &stubNetwork{online: true, updates: make(chan bool)}
	job := NewSyncJob(syncer, network, &stubRetries{}, time.Hour, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, job.Run(ctx), context.Canceled)
}

func TestNewSyncJob_DefaultInterval(t *testing.T) {
	job := NewSyncJob(newStubSyncer(), &stubNetwork{}, &stubRetries{}, 0, logger.Nop())
	assert.Equal(t, defaultSyncInterval, job.interval)
}
