// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package network tracks whether the sync remote is reachable.
//
// A [Monitor] combines two signals: explicit reports from the platform
// (Report) and periodic probes of the remote (Run). Transitions are
// debounced by a quiet period so a flapping link produces one notification
// instead of many. The monitor only reports state; it never starts a sync.
package network

import "context"

// Probe checks reachability of the remote. A nil error means online.
type Probe interface {
	Probe(ctx context.Context) error
}

// ProbeFunc adapts a plain function to [Probe].
type ProbeFunc func(ctx context.Context) error

// Probe implements [Probe].
func (f ProbeFunc) Probe(ctx context.Context) error {
	return f(ctx)
}
