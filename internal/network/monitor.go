// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package network

import (
	"context"
	"sync"
	"time"

	"github.com/Rajak13/StudyCollab-sub003/internal/config"
	"github.com/Rajak13/StudyCollab-sub003/internal/logger"
	"github.com/Rajak13/StudyCollab-sub003/internal/notify"
)

const (
	defaultProbeInterval = 10 * time.Second
	maxProbeTimeout      = 5 * time.Second
)

// Monitor is the connectivity state holder. The zero value is not usable;
// construct it with [NewMonitor].
type Monitor struct {
	probe    Probe
	interval time.Duration
	quiet    time.Duration

	mu        sync.Mutex
	online    bool
	known     bool
	candidate bool
	pending   bool
	timer     *time.Timer
	gen       uint64

	events *notify.Broadcaster[bool]
	logger *logger.Logger
}

// NewMonitor returns a monitor that starts offline until the first report.
// probe may be nil when only Report is used.
func NewMonitor(probe Probe, cfg config.ClientNetwork, log *logger.Logger) *Monitor {
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = defaultProbeInterval
	}
	if cfg.QuietPeriod < 0 {
		cfg.QuietPeriod = 0
	}

	return &Monitor{
		probe:    probe,
		interval: cfg.ProbeInterval,
		quiet:    cfg.QuietPeriod,
		events:   notify.NewBroadcaster[bool](notify.DefaultBuffer),
		logger:   log,
	}
}

// IsOnline returns the last committed state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe returns a channel receiving every committed transition and the
// func that ends the subscription.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	return m.events.Subscribe()
}

// Report feeds an observation. The first observation is committed at once;
// later transitions are committed only if no contrary observation arrives
// within the quiet period.
func (m *Monitor) Report(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.known {
		m.known = true
		m.commitLocked(online)
		return
	}

	if online == m.online {
		m.cancelPendingLocked()
		return
	}
	if m.pending && m.candidate == online {
		return
	}

	m.cancelPendingLocked()
	if m.quiet == 0 {
		m.commitLocked(online)
		return
	}

	m.pending = true
	m.candidate = online
	gen := m.gen
	m.timer = time.AfterFunc(m.quiet, func() { m.settle(gen) })
}

func (m *Monitor) settle(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.pending || gen != m.gen {
		return
	}
	m.pending = false
	m.timer = nil
	m.commitLocked(m.candidate)
}

func (m *Monitor) cancelPendingLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.pending = false
	m.gen++
}

func (m *Monitor) commitLocked(online bool) {
	changed := m.online != online
	m.online = online
	if !changed {
		return
	}

	m.logger.Info().
		Str("func", "Monitor.commit").
		Bool("online", online).
		Msg("connectivity changed")
	m.events.Publish(online)
}

// Run probes the remote immediately and then every probe interval until ctx
// is done. It returns ctx.Err(). Without a probe it only waits for ctx.
func (m *Monitor) Run(ctx context.Context) error {
	if m.probe == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.probeOnce(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (m *Monitor) probeOnce(ctx context.Context) {
	timeout := min(m.interval, maxProbeTimeout)
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := m.probe.Probe(probeCtx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		m.logger.Debug().Err(err).Str("func", "Monitor.probeOnce").Msg("remote unreachable")
	}
	m.Report(err == nil)
}

// Close stops pending transitions and closes every subscription.
func (m *Monitor) Close() {
	m.mu.Lock()
	m.cancelPendingLocked()
	m.mu.Unlock()

	m.events.Close()
}
