// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"time"

	"github.com/Rajak13/StudyCollab-sub003/internal/adapter"
	"github.com/Rajak13/StudyCollab-sub003/internal/config"
	"github.com/Rajak13/StudyCollab-sub003/internal/crypto"
	"github.com/Rajak13/StudyCollab-sub003/internal/logger"
	"github.com/Rajak13/StudyCollab-sub003/internal/store"
	"github.com/Rajak13/StudyCollab-sub003/internal/utils"
)

// ClientServices groups the offline services of one session. They share
// the partition, the key and the per-entity locks.
type ClientServices struct {
	Cache     *LocalCache
	Queue     *MutationQueue
	Conflicts *ConflictRegistry
	Recorder  *Recorder
	Sync      *SyncManager
	SyncJob   *SyncJob
	Locks     *utils.KeyedMutex
}

// Option tunes [NewClientServices].
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now in every service.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// NewClientServices wires the services of a session over an opened
// partition and an initialized cipher.
func NewClientServices(
	storages *store.ClientStorages,
	cipher crypto.Cipher,
	remote adapter.RemoteAdapter,
	network Connectivity,
	events Publisher,
	cfg *config.ClientConfig,
	log *logger.Logger,
	opts ...Option,
) *ClientServices {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	locks := utils.NewKeyedMutex()

	cache := NewLocalCache(storages, cipher, log)
	cache.now = o.now

	queue := NewMutationQueue(storages, cipher, cfg.Sync, log)
	queue.now = o.now

	conflicts := NewConflictRegistry(storages, cipher, cache, queue, locks, events, log)
	conflicts.now = o.now

	recorder := NewRecorder(storages, cache, queue, conflicts, locks, events, log)
	recorder.now = o.now

	manager := NewSyncManager(SyncManagerDeps{
		Storages:  storages,
		Cipher:    cipher,
		Cache:     cache,
		Queue:     queue,
		Conflicts: conflicts,
		Remote:    remote,
		Network:   network,
		Locks:     locks,
		Events:    events,
	}, cfg.Sync, cfg.Storage.MaxCacheBytes, log)
	manager.now = o.now

	job := NewSyncJob(manager, network, queue, cfg.Sync.Interval, log)
	job.now = o.now

	return &ClientServices{
		Cache:     cache,
		Queue:     queue,
		Conflicts: conflicts,
		Recorder:  recorder,
		Sync:      manager,
		SyncJob:   job,
		Locks:     locks,
	}
}
