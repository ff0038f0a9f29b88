// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON_Success(t *testing.T) {
	// Arrange
	p := filepath.Join(t.TempDir(), "config.json")
	jsonBody := `{
		"app": {"user_id": "user-1", "hash_key": "security_hash", "token_duration": "1h"},
		"storage": {"data_dir": "/var/studysync", "max_cache_bytes": 2048},
		"adapter": {"http_address": "localhost:8080", "request_timeout": "30s"},
		"sync": {"concurrency": 6, "backoff_base": "2s", "backoff_max": "1m", "interval": "5m"},
		"network": {"quiet_period": "1s"},
		"log": {"file": "client.log", "max_backups": 7}
	}`
	require.NoError(t, os.WriteFile(p, []byte(jsonBody), 0o600))

	// Act
	cfg, err := parseJSON(p)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "user-1", cfg.App.UserID)
	assert.Equal(t, "security_hash", cfg.App.HashKey)
	assert.Equal(t, time.Hour, cfg.App.TokenDuration)
	assert.Equal(t, "/var/studysync", cfg.Storage.DataDir)
	assert.Equal(t, int64(2048), cfg.Storage.MaxCacheBytes)
	assert.Equal(t, 30*time.Second, cfg.Adapter.RequestTimeout)
	assert.Equal(t, 6, cfg.Sync.Concurrency)
	assert.Equal(t, 2*time.Second, cfg.Sync.BackoffBase)
	assert.Equal(t, time.Minute, cfg.Sync.BackoffMax)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, time.Second, cfg.Network.QuietPeriod)
	assert.Equal(t, "client.log", cfg.Log.FilePath)
	assert.Equal(t, 7, cfg.Log.MaxBackups)
	assert.Empty(t, cfg.JSONFilePath)
}

func TestParseJSON_FileNotFound(t *testing.T) {
	_, err := parseJSON(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading a json file")
}

func TestParseJSON_InvalidJSON(t *testing.T) {
	p := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"sync": `), 0o600))

	_, err := parseJSON(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error decoding json configs")
}

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "string", input: `"45s"`, want: 45 * time.Second},
		{name: "nanoseconds", input: `1000`, want: 1000},
		{name: "bad string", input: `"soon"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := d.UnmarshalJSON([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, time.Duration(d))
		})
	}
}
