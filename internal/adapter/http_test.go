// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Rajak13/StudyCollab-sub003/internal/config"
	"github.com/Rajak13/StudyCollab-sub003/internal/logger"
	"github.com/Rajak13/StudyCollab-sub003/internal/utils"
	"github.com/Rajak13/StudyCollab-sub003/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHashKey = "testhashkey"

// newTestAdapter creates an httpRemoteAdapter pointed at the test server.
func newTestAdapter(t *testing.T, serverURL string) *httpRemoteAdapter {
	t.Helper()
	adapterCfg := config.ClientAdapter{HTTPAddress: serverURL, RequestTimeout: 2 * time.Second}
	appCfg := config.ClientApp{HashKey: testHashKey, SessionToken: "session-token"}

	a, err := NewHTTPRemoteAdapter(adapterCfg, appCfg, logger.Nop())
	require.NoError(t, err)
	return a.(*httpRemoteAdapter)
}

func testPushRequest() models.PushRequest {
	return models.PushRequest{
		MutationID:  "m-1",
		Revision:    3,
		EntityType:  models.EntityTask,
		EntityID:    "t-1",
		Operation:   models.OpUpdate,
		BaseVersion: models.Int64Ptr(4),
		Payload:     json.RawMessage(`{"title":"Essay"}`),
	}
}

// ── PushMutation ────────────────────────────────────────────────────────────

func TestPushMutation_Applied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, PathPush, r.URL.Path)
		assert.Equal(t, "Bearer session-token", r.Header.Get("Authorization"))
		assert.Equal(t, "m-1:3", r.Header.Get(HeaderIdempotency))
		assert.NotEmpty(t, r.Header.Get(HeaderRequestID))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.True(t, utils.NewHasher(testHashKey).Verify(body, r.Header.Get(utils.HashHeader)))

		var got models.PushRequest
		assert.NoError(t, json.Unmarshal(body, &got))
		if assert.NotNil(t, got.BaseVersion) {
			assert.Equal(t, int64(4), *got.BaseVersion)
		}
		assert.JSONEq(t, `{"title":"Essay"}`, string(got.Payload))

		_, _ = utils.WriteJSON(w, models.PushResult{Status: models.PushApplied, NewVersion: 5}, http.StatusOK)
	}))
	defer srv.Close()

	res, err := newTestAdapter(t, srv.URL).PushMutation(context.Background(), testPushRequest())

	require.NoError(t, err)
	assert.Equal(t, models.PushApplied, res.Status)
	assert.Equal(t, int64(5), res.NewVersion)
}

func TestPushMutation_Conflict(t *testing.T) {
	remote := &models.RemoteSnapshot{
		EntityType: models.EntityTask,
		EntityID:   "t-1",
		Version:    7,
		Payload:    json.RawMessage(`{"title":"Server essay"}`),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = utils.WriteJSON(w, models.PushResult{Status: models.PushConflict, Remote: remote}, http.StatusConflict)
	}))
	defer srv.Close()

	res, err := newTestAdapter(t, srv.URL).PushMutation(context.Background(), testPushRequest())

	require.NoError(t, err)
	assert.Equal(t, models.PushConflict, res.Status)
	require.NotNil(t, res.Remote)
	assert.Equal(t, int64(7), res.Remote.Version)
}

func TestPushMutation_ConflictWithoutSnapshotIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte("version conflict"))
	}))
	defer srv.Close()

	_, err := newTestAdapter(t, srv.URL).PushMutation(context.Background(), testPushRequest())

	assert.ErrorIs(t, err, ErrTransient)
}

func TestPushMutation_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteError(w, "title is required", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	res, err := newTestAdapter(t, srv.URL).PushMutation(context.Background(), testPushRequest())

	require.NoError(t, err)
	assert.Equal(t, models.PushRejected, res.Status)
	assert.Equal(t, "title is required", res.Reason)
}

func TestPushMutation_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestAdapter(t, srv.URL).PushMutation(context.Background(), testPushRequest())

	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestPushMutation_ServerErrorIsTransient(t *testing.T) {
	for _, code := range []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusTooManyRequests} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))

		_, err := newTestAdapter(t, srv.URL).PushMutation(context.Background(), testPushRequest())
		assert.ErrorIs(t, err, ErrTransient, "status %d", code)

		srv.Close()
	}
}

func TestPushMutation_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestAdapter(t, url).PushMutation(context.Background(), testPushRequest())

	assert.ErrorIs(t, err, ErrTransient)
}

func TestPushMutation_CancelledContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestAdapter(t, srv.URL).PushMutation(ctx, testPushRequest())

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// ── PullChanges ─────────────────────────────────────────────────────────────

func TestPullChanges_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, PathChanges, r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("since"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer session-token", r.Header.Get("Authorization"))

		_, _ = utils.WriteJSON(w, models.PullResponse{
			Changes: []models.RemoteSnapshot{
				{EntityType: models.EntityNote, EntityID: "n-1", Version: 2, Seq: 11},
				{EntityType: models.EntityNote, EntityID: "n-2", Version: 1, Seq: 12, Deleted: true},
			},
			Watermark: 12,
			HasMore:   true,
		}, http.StatusOK)
	}))
	defer srv.Close()

	page, err := newTestAdapter(t, srv.URL).PullChanges(context.Background(), 10, 2)

	require.NoError(t, err)
	require.Len(t, page.Changes, 2)
	assert.True(t, page.Changes[1].Deleted)
	assert.Equal(t, int64(12), page.Watermark)
	assert.True(t, page.HasMore)
}

func TestPullChanges_WatermarkNeverMovesBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = utils.WriteJSON(w, models.PullResponse{}, http.StatusOK)
	}))
	defer srv.Close()

	page, err := newTestAdapter(t, srv.URL).PullChanges(context.Background(), 42, 100)

	require.NoError(t, err)
	assert.Equal(t, int64(42), page.Watermark)
}

func TestPullChanges_Errors(t *testing.T) {
	tests := []struct {
		name string
		code int
		body string
		want error
	}{
		{"unauthorized", http.StatusUnauthorized, "", ErrUnauthorized},
		{"bad request", http.StatusBadRequest, "bad since", ErrPermanent},
		{"unavailable", http.StatusServiceUnavailable, "", ErrTransient},
		{"malformed", http.StatusOK, "{not json", ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestAdapter(t, srv.URL).PullChanges(context.Background(), 0, 10)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// ── Ping ────────────────────────────────────────────────────────────────────

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathPing, r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = utils.WriteJSON(w, models.PingResponse{Status: "ok", Version: "1.2.3"}, http.StatusOK)
	}))
	defer srv.Close()

	pong, err := newTestAdapter(t, srv.URL).Ping(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "ok", pong.Status)
	assert.Equal(t, "1.2.3", pong.Version)
}

// ── token & config ──────────────────────────────────────────────────────────

func TestSetToken_Trims(t *testing.T) {
	a := newTestAdapter(t, "http://localhost:1")
	a.SetToken("  new-token \n")
	assert.Equal(t, "new-token", a.Token())
}

func TestNewHTTPRemoteAdapter_InvalidAddress(t *testing.T) {
	_, err := NewHTTPRemoteAdapter(config.ClientAdapter{}, config.ClientApp{}, logger.Nop())
	assert.Error(t, err)
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"localhost:8080", "http://localhost:8080", false},
		{"https://sync.example.com/", "https://sync.example.com", false},
		{"  http://127.0.0.1:9000  ", "http://127.0.0.1:9000", false},
		{"", "", true},
		{"http://", "", true},
	}

	for _, tt := range tests {
		got, err := normalizeBaseURL(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
