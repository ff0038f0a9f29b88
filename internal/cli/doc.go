// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package cli holds the cobra commands of the studysync client and the
// syncremote reference server.
//
// Every client command opens one session of the offline coordinator for the
// configured user, runs, and closes it. Results are printed as JSON.
package cli
