// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Flag names shared by the CLI commands.
const (
	FlagConfig         = "config"
	FlagAddress        = "address"
	FlagServerAddress  = "listen"
	FlagDataDir        = "data-dir"
	FlagUserID         = "user"
	FlagSessionToken   = "token"
	FlagSecret         = "secret"
	FlagHashKey        = "hash-key"
	FlagRequestTimeout = "request-timeout"
	FlagSyncInterval   = "sync-interval"
	FlagConcurrency    = "concurrency"
	FlagMaxAttempts    = "max-attempts"
	FlagMaxCacheBytes  = "max-cache-bytes"
	FlagProbeInterval  = "probe-interval"
	FlagQuietPeriod    = "quiet-period"
	FlagLogFile        = "log-file"
	FlagLogLevel       = "log-level"
	FlagTokenSignKey   = "token-sign-key"
	FlagTokenIssuer    = "token-issuer"
	FlagTokenDuration  = "token-duration"
)

// NetAddress holds structured network address data for host and port.
// It implements the pflag.Value interface.
type NetAddress struct {
	Host string
	Port int
}

// BindFlags registers every configuration flag on fs. Values are read back by
// [GetStructuredConfig] once fs has been parsed; only flags the user actually
// set take part in the merge.
//
// Flags:
//
//	-c/--config          json file path with configs
//	-a/--address         sync remote address in format [host]:[port]
//	--listen             reference remote listen address
//	-d/--data-dir        directory of the per-user partitions
//	-u/--user            user id
//	-t/--token           session token
//	--secret             stable local encryption secret
//	--hash-key           request signing key
//	--request-timeout    outbound request timeout (e.g. "30s")
//	--sync-interval      background sync period (e.g. "1m")
//	--concurrency        parallel entity pushes
//	--max-attempts       retry ceiling before dead-lettering
//	--max-cache-bytes    soft cap of synced cache rows
//	--probe-interval     reachability probe period
//	--quiet-period       connectivity debounce
//	--log-file/--log-level
//	--token-sign-key/--token-issuer/--token-duration (reference remote)
func BindFlags(fs *pflag.FlagSet) {
	fs.StringP(FlagConfig, "c", "", "JSON config file path")
	fs.VarP(&NetAddress{}, FlagAddress, "a", "Sync remote address host:port")
	fs.Var(&NetAddress{}, FlagServerAddress, "Reference remote listen address host:port")
	fs.StringP(FlagDataDir, "d", "", "Directory of the per-user partitions")
	fs.StringP(FlagUserID, "u", "", "User id")
	fs.StringP(FlagSessionToken, "t", "", "Session token")
	fs.String(FlagSecret, "", "Stable secret for the local encryption key")
	fs.String(FlagHashKey, "", "Request signing key")
	fs.Duration(FlagRequestTimeout, 0, "Request timeout (e.g., 30s, 1m)")
	fs.Duration(FlagSyncInterval, 0, "Background sync interval (e.g., 1m)")
	fs.Int(FlagConcurrency, 0, "Number of entities pushed in parallel")
	fs.Int(FlagMaxAttempts, 0, "Failed attempts allowed before a mutation is dead-lettered")
	fs.Int64(FlagMaxCacheBytes, 0, "Soft cap of synced cache rows in bytes")
	fs.Duration(FlagProbeInterval, 0, "Reachability probe interval")
	fs.Duration(FlagQuietPeriod, 0, "Connectivity debounce period")
	fs.String(FlagLogFile, "", "Log file path")
	fs.String(FlagLogLevel, "", "Log level")
	fs.String(FlagTokenSignKey, "", "Token signing key")
	fs.String(FlagTokenIssuer, "", "Token issuer")
	fs.Duration(FlagTokenDuration, 0, "Token duration (e.g., 1h, 30m)")
}

// flagsConfig collects the flags that were set on the command line. Lookup
// errors only occur for flags that were never bound and are ignored.
func flagsConfig(fs *pflag.FlagSet) *StructuredConfig {
	cfg := &StructuredConfig{}
	if fs == nil {
		return cfg
	}

	str := func(name string, dst *string) {
		if fs.Changed(name) {
			*dst = fs.Lookup(name).Value.String()
		}
	}
	dur := func(name string, dst *time.Duration) {
		if fs.Changed(name) {
			*dst, _ = fs.GetDuration(name)
		}
	}
	num := func(name string, dst *int) {
		if fs.Changed(name) {
			*dst, _ = fs.GetInt(name)
		}
	}

	str(FlagConfig, &cfg.JSONFilePath)
	str(FlagAddress, &cfg.Adapter.HTTPAddress)
	str(FlagServerAddress, &cfg.Server.HTTPAddress)
	str(FlagDataDir, &cfg.Storage.DataDir)
	str(FlagUserID, &cfg.App.UserID)
	str(FlagSessionToken, &cfg.App.SessionToken)
	str(FlagSecret, &cfg.App.EncryptionSecret)
	str(FlagHashKey, &cfg.App.HashKey)
	str(FlagLogFile, &cfg.Log.FilePath)
	str(FlagLogLevel, &cfg.Log.Level)
	str(FlagTokenSignKey, &cfg.App.TokenSignKey)
	str(FlagTokenIssuer, &cfg.App.TokenIssuer)

	num(FlagConcurrency, &cfg.Sync.Concurrency)
	num(FlagMaxAttempts, &cfg.Sync.MaxAttempts)
	if fs.Changed(FlagMaxCacheBytes) {
		cfg.Storage.MaxCacheBytes, _ = fs.GetInt64(FlagMaxCacheBytes)
	}

	dur(FlagRequestTimeout, &cfg.Adapter.RequestTimeout)
	dur(FlagRequestTimeout, &cfg.Server.RequestTimeout)
	dur(FlagSyncInterval, &cfg.Sync.Interval)
	dur(FlagProbeInterval, &cfg.Network.ProbeInterval)
	dur(FlagQuietPeriod, &cfg.Network.QuietPeriod)
	dur(FlagTokenDuration, &cfg.App.TokenDuration)

	return cfg
}

// String returns a canonical host:port string for a NetAddress.
func (a *NetAddress) String() string {
	if a.Host == "" && a.Port == 0 {
		return ""
	}

	return a.Host + ":" + strconv.Itoa(a.Port)
}

// Type implements pflag.Value.
func (a *NetAddress) Type() string {
	return "host:port"
}

// Set parses the input string of form host:port and populates the NetAddress.
// It validates the port range, checks IP correctness unless host is "localhost",
// and returns an error if the format or values are invalid.
func (a *NetAddress) Set(s string) error {
	hostAndPort := strings.Split(s, ":")
	if len(hostAndPort) != 2 {
		return errors.New("need address in a form `host:port`")
	}

	host := hostAndPort[0]
	port, err := strconv.Atoi(hostAndPort[1])
	if err != nil {
		return err
	}

	if port < 1 || port > 65535 {
		return errors.New("port number must be in range 1..65535")
	}

	if host != "localhost" && host != "" {
		ip := net.ParseIP(host)
		if ip == nil {
			return errors.New("incorrect IP-address provided")
		}
	}

	a.Host = host
	a.Port = port
	return nil
}
