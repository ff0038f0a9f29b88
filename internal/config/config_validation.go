// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import "fmt"

// validate checks source-independent invariants of the merged config.
func (cfg *StructuredConfig) validate() error {
	if cfg.Sync.Concurrency < 0 || cfg.Sync.MaxAttempts < 0 || cfg.Sync.PullPageSize < 0 {
		return fmt.Errorf("%w: negative sync value", ErrInvalidSyncConfigs)
	}
	if cfg.Storage.MaxCacheBytes < 0 {
		return fmt.Errorf("%w: negative cache cap", ErrInvalidStorageConfigs)
	}
	return nil
}

func (cfg *ClientConfig) validate() error {
	if cfg.Storage.DataDir == "" {
		return ErrInvalidStorageConfigs
	}

	if cfg.Adapter.HTTPAddress == "" || cfg.Adapter.RequestTimeout <= 0 {
		return ErrInvalidAdapterConfigs
	}

	if cfg.Sync.BackoffBase > cfg.Sync.BackoffMax || cfg.Sync.BackoffJitterPercent >= 100 {
		return ErrInvalidSyncConfigs
	}

	if cfg.App.HashKey == "" {
		return ErrInvalidAppConfigs
	}

	return nil
}

func (cfg *ServerConfig) validate() error {
	if cfg.TokenSignKey == "" || cfg.HashKey == "" {
		return ErrInvalidAppConfigs
	}
	if cfg.HTTPAddress == "" {
		return ErrInvalidServerConfigs
	}
	return nil
}
