// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "time"

// SyncState is the phase of the sync manager state machine.
type SyncState string

const (
	SyncIdle          SyncState = "idle"
	SyncDrainingQueue SyncState = "draining-queue"
	SyncPushing       SyncState = "pushing"
	SyncPulling       SyncState = "pulling"
	SyncReconciling   SyncState = "reconciling"
	SyncFailed        SyncState = "failed"
)

// Status is a point-in-time snapshot of the offline layer. It is always
// answerable without the network.
type Status struct {
	IsOnline        bool       `json:"is_online"`
	PendingCount    int64      `json:"pending_count"`
	ConflictCount   int64      `json:"conflict_count"`
	DeadLetterCount int64      `json:"dead_letter_count"`
	CacheSize       int64      `json:"cache_size"`
	LastSyncTime    *time.Time `json:"last_sync_time,omitempty"`
	State           SyncState  `json:"state"`
	FailureReason   string     `json:"failure_reason,omitempty"`
	Errors          []string   `json:"errors,omitempty"`
}

// SyncReport counts what a single cycle did.
type SyncReport struct {
	Pushed        int           `json:"pushed"`
	Pulled        int           `json:"pulled"`
	Conflicts     int           `json:"conflicts"`
	Retried       int           `json:"retried"`
	DeadLettered  int           `json:"dead_lettered"`
	Skipped       int           `json:"skipped"`
	Duration      time.Duration `json:"duration"`
	Watermark     int64         `json:"watermark"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedState SyncState     `json:"finished_state"`
}

// SyncResult is returned by a triggered sync.
type SyncResult struct {
	Success bool       `json:"success"`
	Errors  []string   `json:"errors,omitempty"`
	Report  SyncReport `json:"report"`
}

// EventKind classifies notifications published on the event stream.
type EventKind string

const (
	EventStateChanged     EventKind = "state-changed"
	EventConnectivity     EventKind = "connectivity"
	EventConflictDetected EventKind = "conflict-detected"
	EventConflictResolved EventKind = "conflict-resolved"
	EventMutationApplied  EventKind = "mutation-applied"
	EventDeadLettered     EventKind = "dead-lettered"
	EventEntityChanged    EventKind = "entity-changed"
	EventSyncFinished     EventKind = "sync-finished"
)

// Event is a notification for UI subscribers. Only the fields relevant to
// Kind are set.
type Event struct {
	Kind   EventKind   `json:"kind"`
	At     time.Time   `json:"at"`
	State  SyncState   `json:"state,omitempty"`
	Online *bool       `json:"online,omitempty"`
	Entity *EntityKey  `json:"entity,omitempty"`
	Result *SyncResult `json:"result,omitempty"`
	Reason string      `json:"reason,omitempty"`
}
