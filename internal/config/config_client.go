// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"github.com/spf13/pflag"
)

// ClientApp holds session and signing settings of the client.
type ClientApp struct {
	// UserID and SessionToken may be empty here and supplied at runtime.
	UserID       string
	SessionToken string

	// EncryptionSecret overrides SessionToken as the key derivation secret.
	EncryptionSecret string

	// HashKey is the HMAC key used for the HashSHA256 header.
	HashKey string
}

// ClientAdapter holds network settings used by the client transport layer.
type ClientAdapter struct {
	// HTTPAddress is the sync remote base address.
	HTTPAddress string
	// RequestTimeout is the default timeout for outbound client requests.
	RequestTimeout time.Duration
}

// ClientStorage groups client storage settings.
type ClientStorage struct {
	DataDir       string
	MaxCacheBytes int64
	BusyTimeout   time.Duration
}

// ClientSync holds sync cycle and retry tuning.
type ClientSync struct {
	Concurrency          int
	MaxAttempts          int
	BackoffBase          time.Duration
	BackoffMax           time.Duration
	BackoffJitterPercent uint64
	Interval             time.Duration
	PullPageSize         int
}

// ClientNetwork holds connectivity monitor settings.
type ClientNetwork struct {
	ProbeInterval time.Duration
	QuietPeriod   time.Duration
}

// ClientLog holds log rotation settings.
type ClientLog struct {
	FilePath   string
	Level      string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ClientConfig is the top-level client configuration assembled from
// [StructuredConfig].
type ClientConfig struct {
	App     ClientApp
	Adapter ClientAdapter
	Storage ClientStorage
	Sync    ClientSync
	Network ClientNetwork
	Log     ClientLog
}

// DefaultClientConfig returns the values used for every setting left unset.
func DefaultClientConfig() ClientConfig {
	dataDir := filepath.Join(os.TempDir(), "studysync")
	if home, err := os.UserConfigDir(); err == nil {
		dataDir = filepath.Join(home, "studysync")
	}

	return ClientConfig{
		Adapter: ClientAdapter{
			HTTPAddress:    "localhost:8080",
			RequestTimeout: 30 * time.Second,
		},
		Storage: ClientStorage{
			DataDir:     dataDir,
			BusyTimeout: 5 * time.Second,
		},
		Sync: ClientSync{
			Concurrency:          4,
			MaxAttempts:          5,
			BackoffBase:          time.Second,
			BackoffMax:           30 * time.Second,
			BackoffJitterPercent: 20,
			Interval:             time.Minute,
			PullPageSize:         200,
		},
		Network: ClientNetwork{
			ProbeInterval: 10 * time.Second,
			QuietPeriod:   2 * time.Second,
		},
		Log: ClientLog{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// GetClientConfig builds and validates a client-specific config view from the
// merged structured configuration. fs is the parsed flag set of the running
// command, or nil.
func GetClientConfig(fs *pflag.FlagSet) (*ClientConfig, error) {
	cfg, err := GetStructuredConfig(fs)
	if err != nil {
		return nil, fmt.Errorf("error get structured config: %w", err)
	}

	return NewClientConfig(cfg)
}

// NewClientConfig maps cfg onto the client view and fills defaults.
func NewClientConfig(cfg *StructuredConfig) (*ClientConfig, error) {
	clientCfg := &ClientConfig{
		App: ClientApp{
			UserID:           cfg.App.UserID,
			SessionToken:     cfg.App.SessionToken,
			EncryptionSecret: cfg.App.EncryptionSecret,
			HashKey:          cfg.App.HashKey,
		},
		Adapter: ClientAdapter{
			HTTPAddress:    cfg.Adapter.HTTPAddress,
			RequestTimeout: cfg.Adapter.RequestTimeout,
		},
		Storage: ClientStorage{
			DataDir:       cfg.Storage.DataDir,
			MaxCacheBytes: cfg.Storage.MaxCacheBytes,
			BusyTimeout:   cfg.Storage.BusyTimeout,
		},
		Sync: ClientSync{
			Concurrency:          cfg.Sync.Concurrency,
			MaxAttempts:          cfg.Sync.MaxAttempts,
			BackoffBase:          cfg.Sync.BackoffBase,
			BackoffMax:           cfg.Sync.BackoffMax,
			BackoffJitterPercent: cfg.Sync.BackoffJitterPercent,
			Interval:             cfg.Sync.Interval,
			PullPageSize:         cfg.Sync.PullPageSize,
		},
		Network: ClientNetwork{
			ProbeInterval: cfg.Network.ProbeInterval,
			QuietPeriod:   cfg.Network.QuietPeriod,
		},
		Log: ClientLog{
			FilePath:   cfg.Log.FilePath,
			Level:      cfg.Log.Level,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		},
	}

	if err := mergo.Merge(clientCfg, DefaultClientConfig()); err != nil {
		return nil, fmt.Errorf("error applying client defaults: %w", err)
	}

	return clientCfg, clientCfg.validate()
}

// ServerConfig is the configuration view of the reference sync remote.
type ServerConfig struct {
	HTTPAddress    string
	RequestTimeout time.Duration
	HashKey        string
	TokenSignKey   string
	TokenIssuer    string
	TokenDuration  time.Duration
	Version        string
}

// GetServerConfig builds the reference remote configuration.
func GetServerConfig(fs *pflag.FlagSet) (*ServerConfig, error) {
	cfg, err := GetStructuredConfig(fs)
	if err != nil {
		return nil, fmt.Errorf("error get structured config: %w", err)
	}

	serverCfg := &ServerConfig{
		HTTPAddress:    cfg.Server.HTTPAddress,
		RequestTimeout: cfg.Server.RequestTimeout,
		HashKey:        cfg.App.HashKey,
		TokenSignKey:   cfg.App.TokenSignKey,
		TokenIssuer:    cfg.App.TokenIssuer,
		TokenDuration:  cfg.App.TokenDuration,
		Version:        cfg.App.Version,
	}

	defaults := ServerConfig{
		HTTPAddress:    "localhost:8080",
		RequestTimeout: 30 * time.Second,
		TokenIssuer:    "studysync",
		TokenDuration:  24 * time.Hour,
		Version:        "dev",
	}
	if err = mergo.Merge(serverCfg, defaults); err != nil {
		return nil, fmt.Errorf("error applying server defaults: %w", err)
	}

	return serverCfg, serverCfg.validate()
}
