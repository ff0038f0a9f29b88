// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajak13/StudyCollab-sub003/internal/config"
)

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestNewLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("syncremote")
	l.Logger = l.Output(&buf)

	l.Debug().Msg("push handled")

	entry := lastEntry(t, &buf)
	assert.Equal(t, "syncremote", entry["role"])
	assert.Equal(t, "push handled", entry["message"])
	assert.Contains(t, entry, "time")
	assert.Equal(t, "func", zerolog.CallerFieldName)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestNewClientLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{level: "", want: zerolog.InfoLevel},
		{level: "loud", want: zerolog.InfoLevel},
		{level: "debug", want: zerolog.DebugLevel},
		{level: "warn", want: zerolog.WarnLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := NewClientLogger("studysync", config.ClientLog{Level: tt.level})
			assert.Equal(t, tt.want, l.GetLevel())
		})
	}
}

func TestNewClientLogger_DropsBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewClientLogger("studysync", config.ClientLog{Level: "warn"})
	l.Logger = l.Output(&buf)

	l.Info().Msg("cycle started")
	assert.Empty(t, buf.String())

	l.Warn().Msg("background sync failed")
	assert.Equal(t, "background sync failed", lastEntry(t, &buf)["message"])
}

func TestNewClientLogger_WritesToRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.log")
	l := NewClientLogger("studysync", config.ClientLog{FilePath: path, Level: "debug", MaxSizeMB: 1})

	l.Debug().Str("user_id", "user-1").Msg("session opened")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	entry := lastEntry(t, bytes.NewBuffer(data))
	assert.Equal(t, "studysync", entry["role"])
	assert.Equal(t, "user-1", entry["user_id"])
}

func TestNop(t *testing.T) {
	var buf bytes.Buffer
	l := Nop()
	l.Logger = l.Output(&buf)

	l.Error().Msg("discarded")
	assert.Empty(t, buf.String())
}

func TestGetChildLogger(t *testing.T) {
	var buf bytes.Buffer
	parent := &Logger{zerolog.New(&buf).With().Str("role", "studysync").Logger()}

	child := parent.GetChildLogger()
	require.NotSame(t, parent, child)

	child.UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("request_id", "r-1")
	})
	child.Info().Msg("child")
	entry := lastEntry(t, &buf)
	assert.Equal(t, "studysync", entry["role"])
	assert.Equal(t, "r-1", entry["request_id"])

	parent.Info().Msg("parent")
	assert.NotContains(t, lastEntry(t, &buf), "request_id")
}

func TestFromContextAndRequest(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf).With().Str("request_id", "r-7").Logger()
	ctx := zl.WithContext(context.Background())

	FromContext(ctx).Info().Msg("from context")
	assert.Equal(t, "r-7", lastEntry(t, &buf)["request_id"])

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil).WithContext(ctx)
	FromRequest(req).Info().Msg("from request")
	assert.Equal(t, "from request", lastEntry(t, &buf)["message"])

	assert.NotNil(t, FromContext(context.Background()))
}
