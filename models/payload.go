// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
)

// TaskData is the payload of a study task.
type TaskData struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	GroupID     string     `json:"group_id,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
}

// NoteData is the payload of a study note.
type NoteData struct {
	Title    string   `json:"title"`
	Content  string   `json:"content,omitempty"`
	Folder   string   `json:"folder,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	IsPublic bool     `json:"is_public,omitempty"`
}

// GroupData is the payload of a study group.
type GroupData struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Privacy     string   `json:"privacy,omitempty"`
	Members     []string `json:"members,omitempty"`
}

// ResourceData is the payload of a shared study resource.
type ResourceData struct {
	Title    string `json:"title"`
	URL      string `json:"url,omitempty"`
	Kind     string `json:"kind,omitempty"`
	FileName string `json:"file_name,omitempty"`
	Size     int64  `json:"size,omitempty"`
	GroupID  string `json:"group_id,omitempty"`
}

// Payload is a tagged union over the known entity payloads. Fields the
// current build does not know about are kept in Extra and written back
// untouched, so records produced by newer clients survive a round trip.
//
// At most one of Task, Note, Group and Resource is set, matching Type.
type Payload struct {
	Type     EntityType
	Task     *TaskData
	Note     *NoteData
	Group    *GroupData
	Resource *ResourceData
	Extra    map[string]json.RawMessage
}

// NewTaskPayload wraps a task.
func NewTaskPayload(t TaskData) Payload { return Payload{Type: EntityTask, Task: &t} }

// NewNotePayload wraps a note.
func NewNotePayload(n NoteData) Payload { return Payload{Type: EntityNote, Note: &n} }

// NewGroupPayload wraps a group.
func NewGroupPayload(g GroupData) Payload { return Payload{Type: EntityGroup, Group: &g} }

// NewResourcePayload wraps a resource.
func NewResourcePayload(r ResourceData) Payload {
	return Payload{Type: EntityResource, Resource: &r}
}

// IsZero reports whether the payload carries no data at all (delete bodies).
func (p Payload) IsZero() bool {
	return p.typed() == nil && len(p.Extra) == 0
}

func (p Payload) typed() any {
	switch {
	case p.Task != nil:
		return p.Task
	case p.Note != nil:
		return p.Note
	case p.Group != nil:
		return p.Group
	case p.Resource != nil:
		return p.Resource
	}
	return nil
}

// Encode serialises the payload as a flat JSON object: known fields first
// merged over Extra. Keys are sorted, so equal payloads encode equally.
func (p Payload) Encode() ([]byte, error) {
	if p.IsZero() {
		return nil, nil
	}

	fields := make(map[string]json.RawMessage, len(p.Extra)+8)
	for k, v := range p.Extra {
		fields[k] = v
	}

	if typed := p.typed(); typed != nil {
		raw, err := json.Marshal(typed)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", p.Type, err)
		}
		var known map[string]json.RawMessage
		if err = json.Unmarshal(raw, &known); err != nil {
			return nil, fmt.Errorf("flatten %s payload: %w", p.Type, err)
		}
		for k, v := range known {
			fields[k] = v
		}
	}

	return json.Marshal(fields)
}

// MarshalJSON implements json.Marshaler.
func (p Payload) MarshalJSON() ([]byte, error) {
	raw, err := p.Encode()
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return []byte("null"), nil
	}
	return raw, nil
}

// DecodePayload parses raw as the payload of an entity of type t. An empty
// or null document yields a zero payload.
func DecodePayload(t EntityType, raw []byte) (Payload, error) {
	p := Payload{Type: t}
	if len(raw) == 0 || string(raw) == "null" {
		return p, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Payload{}, fmt.Errorf("decode %s payload: %w", t, err)
	}

	var (
		target any
		known  map[string]struct{}
	)
	switch t {
	case EntityTask:
		p.Task = new(TaskData)
		target, known = p.Task, fieldNames(reflect.TypeFor[TaskData]())
	case EntityNote:
		p.Note = new(NoteData)
		target, known = p.Note, fieldNames(reflect.TypeFor[NoteData]())
	case EntityGroup:
		p.Group = new(GroupData)
		target, known = p.Group, fieldNames(reflect.TypeFor[GroupData]())
	case EntityResource:
		p.Resource = new(ResourceData)
		target, known = p.Resource, fieldNames(reflect.TypeFor[ResourceData]())
	}

	if target != nil {
		if err := json.Unmarshal(raw, target); err != nil {
			return Payload{}, fmt.Errorf("decode %s payload: %w", t, err)
		}
	}

	for k, v := range fields {
		// json.Unmarshal matches keys case-insensitively; so does this.
		if _, ok := known[strings.ToLower(k)]; ok {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]json.RawMessage)
		}
		p.Extra[k] = v
	}

	return p, nil
}

var fieldNameCache sync.Map // reflect.Type -> map[string]struct{}

// fieldNames returns the lower-cased JSON keys declared by struct type t.
func fieldNames(t reflect.Type) map[string]struct{} {
	if cached, ok := fieldNameCache.Load(t); ok {
		return cached.(map[string]struct{})
	}

	names := make(map[string]struct{}, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "" {
			name = f.Name
		}
		names[strings.ToLower(name)] = struct{}{}
	}

	fieldNameCache.Store(t, names)
	return names
}
