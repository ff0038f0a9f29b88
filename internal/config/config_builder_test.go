// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── helpers ───────────────────────────────────────────────────────────────────

func writeTempJSONConfig(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	f, err := os.CreateTemp(t.TempDir(), "config-*.json")
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

// ── build ─────────────────────────────────────────────────────────────────────

func TestBuild_EmptyBuilder(t *testing.T) {
	cfg, err := newConfigBuilder().build()
	require.NoError(t, err)
	assert.Equal(t, &StructuredConfig{}, cfg)
}

func TestBuild_PropagatesBuilderError(t *testing.T) {
	b := newConfigBuilder()
	b.err = assert.AnError

	cfg, err := b.build()
	assert.Nil(t, cfg)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestBuild_LaterSourcesOverride(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs,
		&StructuredConfig{App: App{HashKey: "env"}, Sync: Sync{Concurrency: 2}},
		&StructuredConfig{App: App{HashKey: "flag"}},
	)

	cfg, err := b.build()
	require.NoError(t, err)
	assert.Equal(t, "flag", cfg.App.HashKey)
	assert.Equal(t, 2, cfg.Sync.Concurrency)
}

func TestBuild_RejectsNegativeValues(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs, &StructuredConfig{Sync: Sync{MaxAttempts: -1}})

	_, err := b.build()
	assert.ErrorIs(t, err, ErrInvalidSyncConfigs)
}

// ── sources ───────────────────────────────────────────────────────────────────

func TestGetStructuredConfig_EnvFlagsJSON(t *testing.T) {
	path := writeTempJSONConfig(t, map[string]any{
		"sync": map[string]any{"interval": "3m"},
	})
	setEnvVars(t, map[string]string{
		"APP_HASH_KEY":     "from-env",
		"STORAGE_DATA_DIR": "/from/env",
		"CONFIG":           path,
	})
	fs := newFlagSet(t, "--data-dir", "/from/flag")

	cfg, err := GetStructuredConfig(fs)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.App.HashKey)
	assert.Equal(t, "/from/flag", cfg.Storage.DataDir)
	assert.Equal(t, 3*time.Minute, cfg.Sync.Interval)
}

func TestGetStructuredConfig_MissingJSON(t *testing.T) {
	setEnvVars(t, map[string]string{"CONFIG": "/definitely/not/here.json"})

	_, err := GetStructuredConfig(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error occured during building config")
}
