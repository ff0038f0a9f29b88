// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "time"

// ConflictRecord is the stored form of a divergence between the local and
// the remote copy of an entity. Both snapshots stay encrypted at rest.
type ConflictRecord struct {
	EntityID        string
	EntityType      EntityType
	LocalSnapshot   []byte
	RemoteSnapshot  []byte
	LocalTimestamp  time.Time
	RemoteTimestamp time.Time
	RemoteVersion   int64
	RemoteDeleted   bool
	DetectedAt      time.Time
}

// Key returns the conflicting entity.
func (c ConflictRecord) Key() EntityKey {
	return EntityKey{Type: c.EntityType, ID: c.EntityID}
}

// Conflict is the decrypted view of a ConflictRecord handed to the UI.
// Timestamps are informational; detection is version based.
type Conflict struct {
	EntityID        string     `json:"entity_id"`
	EntityType      EntityType `json:"entity_type"`
	Local           Payload    `json:"local"`
	Remote          Payload    `json:"remote"`
	LocalTimestamp  time.Time  `json:"local_timestamp"`
	RemoteTimestamp time.Time  `json:"remote_timestamp"`
	RemoteVersion   int64      `json:"remote_version"`
	RemoteDeleted   bool       `json:"remote_deleted"`
	DetectedAt      time.Time  `json:"detected_at"`
}

// Choice selects which side of a conflict wins.
type Choice string

const (
	ChooseLocal  Choice = "local"
	ChooseRemote Choice = "remote"
	ChooseMerged Choice = "merged"
)

// Resolution is a manual decision on a conflict. Payload is only read for
// ChooseMerged.
type Resolution struct {
	Choice  Choice
	Payload Payload
}

// ResolveLocal keeps the local copy.
func ResolveLocal() Resolution { return Resolution{Choice: ChooseLocal} }

// ResolveRemote takes the remote copy.
func ResolveRemote() Resolution { return Resolution{Choice: ChooseRemote} }

// ResolveMerged writes a caller-built payload.
func ResolveMerged(p Payload) Resolution { return Resolution{Choice: ChooseMerged, Payload: p} }
