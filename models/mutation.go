// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "time"

// Operation is the kind of local change a mutation carries.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Valid reports whether op is a known operation.
func (op Operation) Valid() bool {
	switch op {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// MutationState is the lifecycle state of a queued mutation.
type MutationState string

const (
	// MutationPending is waiting to be pushed (possibly after a backoff).
	MutationPending MutationState = "pending"
	// MutationConflict is parked until its conflict is resolved.
	MutationConflict MutationState = "conflict"
	// MutationDead exceeded the retry ceiling or was rejected by the remote.
	MutationDead MutationState = "dead"
)

// QueuedMutation is a durable record of one local change awaiting delivery.
type QueuedMutation struct {
	ID               string
	Seq              int64
	EntityID         string
	EntityType       EntityType
	Operation        Operation
	PayloadEncrypted []byte
	BaseVersion      *int64
	Revision         int64
	State            MutationState
	EnqueuedAt       time.Time
	Attempts         int
	LastError        string
	NextAttemptAt    time.Time
}

// Key returns the entity the mutation targets.
func (m QueuedMutation) Key() EntityKey {
	return EntityKey{Type: m.EntityType, ID: m.EntityID}
}

// IdempotencyKey identifies one delivery attempt of a specific revision, so
// the remote can deduplicate retries of an already applied push.
func (m QueuedMutation) IdempotencyKey() string {
	return m.ID + ":" + itoa(m.Revision)
}

// MutationRequest is a local change as submitted by a caller.
type MutationRequest struct {
	EntityType EntityType
	EntityID   string
	Operation  Operation
	Payload    Payload
}

// DeadLetter is the decrypted caller view of a dead-lettered mutation.
type DeadLetter struct {
	ID         string     `json:"id"`
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	Operation  Operation  `json:"operation"`
	Attempts   int        `json:"attempts"`
	LastError  string     `json:"last_error"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
}
