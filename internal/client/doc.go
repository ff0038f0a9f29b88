// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package client implements the offline coordinator, the single entry point
// an application uses to work with the StudyCollab offline cache.
//
// A [Coordinator] owns one session at a time. Initialize opens the user's
// partition, derives the encryption key, checks it against the stored key
// check and wires the cache, the mutation queue, the conflict registry, the
// sync manager and the network monitor. Start runs the background workers
// (reachability probes and the sync job) until its context ends; Close tears
// the session down and forgets the key.
package client
