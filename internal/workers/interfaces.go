// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package workers runs the long-lived background loops of a session, such
// as the connectivity probe and the sync job, under one lifetime.
package workers

import "context"

// Worker is a background loop. Run blocks until ctx is done or the loop
// fails, and returns ctx.Err() on a normal stop.
//
// Example implementation:
//
//	type ticker struct{}
//
//	func (t *ticker) Run(ctx context.Context) error {
//	    <-ctx.Done()
//	    return ctx.Err()
//	}
type Worker interface {
	Run(ctx context.Context) error
}

// Func adapts a plain function to [Worker].
type Func func(ctx context.Context) error

// Run implements [Worker].
func (f Func) Run(ctx context.Context) error {
	return f(ctx)
}
