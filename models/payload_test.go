// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload_KeepsUnknownFields(t *testing.T) {
	p, err := DecodePayload(EntityTask, []byte(`{"title":"revise","estimate":"2h"}`))
	require.NoError(t, err)

	require.NotNil(t, p.Task)
	assert.Equal(t, "revise", p.Task.Title)
	assert.Equal(t, map[string]json.RawMessage{"estimate": json.RawMessage(`"2h"`)}, p.Extra)

	raw, err := p.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"revise","estimate":"2h"}`, string(raw))
}

func TestDecodePayload_KnownKeysMatchAnyCase(t *testing.T) {
	tests := []struct {
		name string
		typ  EntityType
		raw  string
		want string
	}{
		{name: "task title", typ: EntityTask, raw: `{"Title":"revise"}`, want: `{"title":"revise"}`},
		{name: "note content", typ: EntityNote, raw: `{"title":"n","CONTENT":"body"}`, want: `{"title":"n","content":"body"}`},
		{name: "group name", typ: EntityGroup, raw: `{"Name":"algebra"}`, want: `{"name":"algebra"}`},
		{name: "resource file name", typ: EntityResource, raw: `{"title":"r","File_Name":"a.pdf"}`, want: `{"title":"r","file_name":"a.pdf"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := DecodePayload(tt.typ, []byte(tt.raw))
			require.NoError(t, err)
			assert.Empty(t, p.Extra)

			raw, err := p.Encode()
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}

func TestDecodePayload_EmptyAndMalformed(t *testing.T) {
	p, err := DecodePayload(EntityTask, nil)
	require.NoError(t, err)
	assert.True(t, p.IsZero())

	p, err = DecodePayload(EntityTask, []byte("null"))
	require.NoError(t, err)
	assert.True(t, p.IsZero())

	_, err = DecodePayload(EntityTask, []byte(`{"title":`))
	assert.Error(t, err)
}
