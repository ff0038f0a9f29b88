// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"time"

	"github.com/spf13/pflag"
)

// StructuredConfig is the top-level configuration container. It aggregates
// all sub-configurations and is populated by merging values from environment
// variables, command-line flags and an optional JSON file.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env      : direct environment variable name for scalar fields.
type StructuredConfig struct {
	// App holds session and request-signing settings.
	App App `envPrefix:"APP_"`

	// Storage holds settings of the per-user local partition.
	Storage Storage `envPrefix:"STORAGE_"`

	// Server holds settings of the reference sync remote.
	Server Server `envPrefix:"SERVER_"`

	// Adapter holds settings of the outbound remote adapter.
	Adapter Adapter `envPrefix:"ADAPTER_"`

	// Sync holds settings of the sync manager and the mutation queue.
	Sync Sync `envPrefix:"SYNC_"`

	// Network holds settings of the connectivity monitor.
	Network Network `envPrefix:"NETWORK_"`

	// Log holds settings of the rotating client log file.
	Log Log `envPrefix:"LOG_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged on top of the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / --config flag.
	JSONFilePath string `env:"CONFIG"`
}

// App holds application-level configuration values.
type App struct {
	// UserID identifies the partition owner.
	// Env: APP_USER_ID
	UserID string `env:"USER_ID"`

	// SessionToken is the bearer token of the current session.
	// Env: APP_SESSION_TOKEN
	SessionToken string `env:"SESSION_TOKEN"`

	// EncryptionSecret is a stable secret the local encryption key is
	// derived from. When empty the session token is used, which ties the
	// cache to a single session.
	// Env: APP_ENCRYPTION_SECRET
	EncryptionSecret string `env:"ENCRYPTION_SECRET"`

	// HashKey is the HMAC key for the HashSHA256 request header.
	// Env: APP_HASH_KEY
	HashKey string `env:"HASH_KEY"`

	// TokenSignKey is the secret used by the reference remote to sign and
	// verify session tokens.
	// Env: APP_TOKEN_SIGN_KEY
	TokenSignKey string `env:"TOKEN_SIGN_KEY"`

	// TokenIssuer is the "iss" claim of issued session tokens.
	// Env: APP_TOKEN_ISSUER
	TokenIssuer string `env:"TOKEN_ISSUER"`

	// TokenDuration specifies how long an issued session token stays valid.
	// Env: APP_TOKEN_DURATION
	TokenDuration time.Duration `env:"TOKEN_DURATION"`

	// Version is exposed by the reference remote's ping endpoint.
	// Env: APP_VERSION
	Version string `env:"VERSION"`
}

// Storage holds local partition settings.
type Storage struct {
	// DataDir is the directory holding one SQLite file per user.
	// Env: STORAGE_DATA_DIR
	DataDir string `env:"DATA_DIR"`

	// MaxCacheBytes is the soft cap on synced cache rows; zero disables
	// eviction.
	// Env: STORAGE_MAX_CACHE_BYTES
	MaxCacheBytes int64 `env:"MAX_CACHE_BYTES"`

	// BusyTimeout is how long SQLite waits on a locked database file.
	// Env: STORAGE_BUSY_TIMEOUT
	BusyTimeout time.Duration `env:"BUSY_TIMEOUT"`
}

// Server holds network and timeout settings of the reference remote.
type Server struct {
	// HTTPAddress is the TCP address the reference remote listens on.
	// Env: SERVER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`

	// RequestTimeout bounds a single inbound request.
	// Env: SERVER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// Adapter holds settings of the outbound remote adapter.
type Adapter struct {
	// HTTPAddress is the base address of the sync remote.
	// Env: ADAPTER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`

	// RequestTimeout bounds a single outbound request.
	// Env: ADAPTER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// Sync holds the tuning knobs of sync cycles and retries.
type Sync struct {
	// Concurrency is the number of entities pushed in parallel.
	// Env: SYNC_CONCURRENCY
	Concurrency int `env:"CONCURRENCY"`

	// MaxAttempts is the retry ceiling before a mutation is dead-lettered.
	// Env: SYNC_MAX_ATTEMPTS
	MaxAttempts int `env:"MAX_ATTEMPTS"`

	// BackoffBase is the first retry delay.
	// Env: SYNC_BACKOFF_BASE
	BackoffBase time.Duration `env:"BACKOFF_BASE"`

	// BackoffMax caps the retry delay.
	// Env: SYNC_BACKOFF_MAX
	BackoffMax time.Duration `env:"BACKOFF_MAX"`

	// BackoffJitterPercent is the +/- jitter applied to every delay.
	// Env: SYNC_BACKOFF_JITTER_PERCENT
	BackoffJitterPercent uint64 `env:"BACKOFF_JITTER_PERCENT"`

	// Interval is the period of the background sync job.
	// Env: SYNC_INTERVAL
	Interval time.Duration `env:"INTERVAL"`

	// PullPageSize is the page size requested from the change feed.
	// Env: SYNC_PULL_PAGE_SIZE
	PullPageSize int `env:"PULL_PAGE_SIZE"`
}

// Network holds connectivity monitor settings.
type Network struct {
	// ProbeInterval is the period of remote reachability probes.
	// Env: NETWORK_PROBE_INTERVAL
	ProbeInterval time.Duration `env:"PROBE_INTERVAL"`

	// QuietPeriod is how long a transition must persist before it is
	// reported.
	// Env: NETWORK_QUIET_PERIOD
	QuietPeriod time.Duration `env:"QUIET_PERIOD"`
}

// Log holds rotating log file settings.
type Log struct {
	// FilePath of the client log; empty writes to stdout.
	// Env: LOG_FILE
	FilePath string `env:"FILE"`

	// Level is a zerolog level name.
	// Env: LOG_LEVEL
	Level string `env:"LEVEL"`

	// MaxSizeMB, MaxBackups and MaxAgeDays drive lumberjack rotation.
	MaxSizeMB  int `env:"MAX_SIZE_MB"`
	MaxBackups int `env:"MAX_BACKUPS"`
	MaxAgeDays int `env:"MAX_AGE_DAYS"`
}

// GetStructuredConfig loads, merges, and validates the configuration from all
// available sources in the following priority order (last source wins for
// non-zero fields):
//  1. Environment variables
//  2. Command-line flags (fs must already be parsed; nil skips flags)
//  3. JSON file (path resolved from sources 1 and 2)
func GetStructuredConfig(fs *pflag.FlagSet) (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags(fs).
		withJSON().
		build()
}
