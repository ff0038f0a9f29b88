// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StructuredJSONConfig mirrors [StructuredConfig] with JSON tags and
// human-readable durations.
type StructuredJSONConfig struct {
	App struct {
		UserID        string   `json:"user_id"`
		SessionToken  string   `json:"session_token"`
		Secret        string   `json:"encryption_secret"`
		HashKey       string   `json:"hash_key"`
		TokenSignKey  string   `json:"token_sign_key"`
		TokenIssuer   string   `json:"token_issuer"`
		TokenDuration Duration `json:"token_duration"`
		Version       string   `json:"version"`
	} `json:"app,omitempty"`

	Storage struct {
		DataDir       string   `json:"data_dir"`
		MaxCacheBytes int64    `json:"max_cache_bytes"`
		BusyTimeout   Duration `json:"busy_timeout"`
	} `json:"storage,omitempty"`

	Server struct {
		HTTPAddress    string   `json:"http_address"`
		RequestTimeout Duration `json:"request_timeout"`
	} `json:"server,omitempty"`

	Adapter struct {
		HTTPAddress    string   `json:"http_address"`
		RequestTimeout Duration `json:"request_timeout"`
	} `json:"adapter,omitempty"`

	Sync struct {
		Concurrency          int      `json:"concurrency"`
		MaxAttempts          int      `json:"max_attempts"`
		BackoffBase          Duration `json:"backoff_base"`
		BackoffMax           Duration `json:"backoff_max"`
		BackoffJitterPercent uint64   `json:"backoff_jitter_percent"`
		Interval             Duration `json:"interval"`
		PullPageSize         int      `json:"pull_page_size"`
	} `json:"sync,omitempty"`

	Network struct {
		ProbeInterval Duration `json:"probe_interval"`
		QuietPeriod   Duration `json:"quiet_period"`
	} `json:"network,omitempty"`

	Log struct {
		FilePath   string `json:"file"`
		Level      string `json:"level"`
		MaxSizeMB  int    `json:"max_size_mb"`
		MaxBackups int    `json:"max_backups"`
		MaxAgeDays int    `json:"max_age_days"`
	} `json:"log,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var j StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&j); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		App: App{
			UserID:           j.App.UserID,
			SessionToken:     j.App.SessionToken,
			EncryptionSecret: j.App.Secret,
			HashKey:          j.App.HashKey,
			TokenSignKey:     j.App.TokenSignKey,
			TokenIssuer:      j.App.TokenIssuer,
			TokenDuration:    time.Duration(j.App.TokenDuration),
			Version:          j.App.Version,
		},
		Storage: Storage{
			DataDir:       j.Storage.DataDir,
			MaxCacheBytes: j.Storage.MaxCacheBytes,
			BusyTimeout:   time.Duration(j.Storage.BusyTimeout),
		},
		Server: Server{
			HTTPAddress:    j.Server.HTTPAddress,
			RequestTimeout: time.Duration(j.Server.RequestTimeout),
		},
		Adapter: Adapter{
			HTTPAddress:    j.Adapter.HTTPAddress,
			RequestTimeout: time.Duration(j.Adapter.RequestTimeout),
		},
		Sync: Sync{
			Concurrency:          j.Sync.Concurrency,
			MaxAttempts:          j.Sync.MaxAttempts,
			BackoffBase:          time.Duration(j.Sync.BackoffBase),
			BackoffMax:           time.Duration(j.Sync.BackoffMax),
			BackoffJitterPercent: j.Sync.BackoffJitterPercent,
			Interval:             time.Duration(j.Sync.Interval),
			PullPageSize:         j.Sync.PullPageSize,
		},
		Network: Network{
			ProbeInterval: time.Duration(j.Network.ProbeInterval),
			QuietPeriod:   time.Duration(j.Network.QuietPeriod),
		},
		Log: Log{
			FilePath:   j.Log.FilePath,
			Level:      j.Log.Level,
			MaxSizeMB:  j.Log.MaxSizeMB,
			MaxBackups: j.Log.MaxBackups,
			MaxAgeDays: j.Log.MaxAgeDays,
		},
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling from strings like "1h", "30s"
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
