// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Rajak13/StudyCollab-sub003/internal/logger"
)

// blockingWorker counts starts and waits for cancellation.
type blockingWorker struct {
	started atomic.Int32
}

func (b *blockingWorker) Run(ctx context.Context) error {
	b.started.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func runAsync(ctx context.Context, ws *Workers) <-chan error {
	done := make(chan error, 1)
	go func() { done <- ws.Run(ctx) }()
	return done
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestWorkers_Run_AllWorkersStart(t *testing.T) {
	w1, w2, w3 := &blockingWorker{}, &blockingWorker{}, &blockingWorker{}
	ws := NewWorkers(logger.Nop(), w1, w2, w3)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, ws)

	assert.Eventually(t, func() bool {
		return w1.started.Load() == 1 && w2.started.Load() == 1 && w3.started.Load() == 1
	}, 5*time.Second, 5*time.Millisecond, "workers run concurrently")

	cancel()
	assert.NoError(t, wait(t, done), "cancellation is a clean stop")
}

func TestWorkers_Run_FirstErrorStopsTheRest(t *testing.T) {
	boom := errors.New("boom")
	survivor := &blockingWorker{}
	ws := NewWorkers(logger.Nop(),
		survivor,
		Func(func(ctx context.Context) error { return boom }),
	)

	err := wait(t, runAsync(context.Background(), ws))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), survivor.started.Load())
}

func TestWorkers_Run_DeadlineIsCleanStop(t *testing.T) {
	ws := NewWorkers(logger.Nop(), &blockingWorker{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.NoError(t, wait(t, runAsync(ctx, ws)))
}

func TestWorkers_Run_Empty(t *testing.T) {
	assert.NoError(t, NewWorkers(logger.Nop()).Run(context.Background()))
}

func TestWorkers_Run_WorkerFinishingEarly(t *testing.T) {
	ws := NewWorkers(logger.Nop(), Func(func(context.Context) error { return nil }))

	assert.NoError(t, ws.Run(context.Background()))
}
