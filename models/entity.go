// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "time"

// EntityType tags the kind of study object a record holds. Unknown tags are
// accepted and carried as opaque payloads.
type EntityType string

const (
	EntityTask     EntityType = "task"
	EntityNote     EntityType = "note"
	EntityGroup    EntityType = "group"
	EntityResource EntityType = "resource"
)

// Known reports whether t is one of the entity types with a typed payload.
func (t EntityType) Known() bool {
	switch t {
	case EntityTask, EntityNote, EntityGroup, EntityResource:
		return true
	}
	return false
}

// SyncStatus describes how a cached entity relates to the remote copy.
type SyncStatus string

const (
	// StatusSynced means the local copy equals the last acknowledged remote
	// version (LocalVersion == RemoteVersion).
	StatusSynced SyncStatus = "synced"

	// StatusPending means local edits have not been acknowledged yet.
	StatusPending SyncStatus = "pending"

	// StatusConflict means local and remote copies diverged and a
	// ConflictRecord is waiting for a manual decision.
	StatusConflict SyncStatus = "conflict"

	// StatusDeletedPending means the entity was deleted locally and the
	// deletion has not been acknowledged by the remote yet.
	StatusDeletedPending SyncStatus = "deleted-pending"
)

// Unflushed reports whether the status represents local work that must never
// be dropped by eviction or cache clears.
func (s SyncStatus) Unflushed() bool {
	return s != StatusSynced
}

// CachedEntity is the stored form of an entity. The payload never leaves the
// store unencrypted.
type CachedEntity struct {
	ID                string
	EntityType        EntityType
	PayloadEncrypted  []byte
	LocalVersion      int64
	RemoteVersion     *int64
	LastModifiedLocal time.Time
	LastReadAt        time.Time
	SyncStatus        SyncStatus
	Size              int64
}

// Key returns the row's entity key.
func (e CachedEntity) Key() EntityKey {
	return EntityKey{Type: e.EntityType, ID: e.ID}
}

// Entity is the decrypted view of a CachedEntity handed to callers.
type Entity struct {
	ID                string     `json:"id"`
	EntityType        EntityType `json:"entity_type"`
	Payload           Payload    `json:"payload"`
	LocalVersion      int64      `json:"local_version"`
	RemoteVersion     *int64     `json:"remote_version,omitempty"`
	LastModifiedLocal time.Time  `json:"last_modified_local"`
	SyncStatus        SyncStatus `json:"sync_status"`
}

// Key returns the entity key.
func (e Entity) Key() EntityKey {
	return EntityKey{Type: e.EntityType, ID: e.ID}
}

// EntityKey identifies an entity inside a user partition.
type EntityKey struct {
	Type EntityType `json:"type"`
	ID   string     `json:"id"`
}

// String returns "type/id".
func (k EntityKey) String() string {
	return string(k.Type) + "/" + k.ID
}

// CacheStats is the aggregate size report of the local cache.
type CacheStats struct {
	TotalSize     int64                `json:"total_size"`
	TotalCount    int64                `json:"total_count"`
	PerTypeCounts map[EntityType]int64 `json:"per_type_counts"`
	PerTypeSize   map[EntityType]int64 `json:"per_type_size"`
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}

// VersionEqual compares two optional versions; nil equals only nil.
func VersionEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
