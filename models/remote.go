// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// PushRequest is the wire body of POST /api/sync/push. Payload is the
// plaintext JSON of the entity; encryption at rest is a client concern.
type PushRequest struct {
	MutationID  string          `json:"mutation_id"`
	Revision    int64           `json:"revision"`
	EntityType  EntityType      `json:"entity_type"`
	EntityID    string          `json:"entity_id"`
	Operation   Operation       `json:"operation"`
	BaseVersion *int64          `json:"base_version,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// PushStatus is the outcome class of a push.
type PushStatus string

const (
	PushApplied  PushStatus = "applied"
	PushConflict PushStatus = "conflict"
	PushRejected PushStatus = "rejected"
)

// PushResult is the wire response of a push.
type PushResult struct {
	Status     PushStatus      `json:"status"`
	NewVersion int64           `json:"new_version,omitempty"`
	Remote     *RemoteSnapshot `json:"remote,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

// RemoteSnapshot is the server copy of an entity at a given version. It is
// also the element of the change feed.
type RemoteSnapshot struct {
	EntityType EntityType      `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Version    int64           `json:"version"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Deleted    bool            `json:"deleted"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Seq        int64           `json:"seq"`
}

// Key returns the snapshot's entity.
func (r RemoteSnapshot) Key() EntityKey {
	return EntityKey{Type: r.EntityType, ID: r.EntityID}
}

// PullResponse is the wire response of GET /api/sync/changes. Watermark is
// the feed position to resume from.
type PullResponse struct {
	Changes   []RemoteSnapshot `json:"changes"`
	Watermark int64            `json:"watermark"`
	HasMore   bool             `json:"has_more"`
}

// PingResponse is returned by GET /api/ping.
type PingResponse struct {
	Status  string    `json:"status"`
	Version string    `json:"version"`
	Time    time.Time `json:"time"`
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
