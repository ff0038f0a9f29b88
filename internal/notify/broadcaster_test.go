// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package notify

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster[int](4)

	ch1, unsub1 := b.Subscribe()
	defer unsub1()
	ch2, unsub2 := b.Subscribe()
	defer unsub2()

	b.Publish(7)

	assert.Equal(t, 7, <-ch1)
	assert.Equal(t, 7, <-ch2)
	assert.Equal(t, 2, b.Len())
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster[string](0)

	ch, unsub := b.Subscribe()
	unsub()
	unsub()

	_, ok := <-ch
	assert.False(t, ok, "channel must be closed after unsubscribe")
	assert.Equal(t, 0, b.Len())

	b.Publish("ignored")
}

func TestBroadcaster_FullBufferDrops(t *testing.T) {
	b := NewBroadcaster[int](1)

	ch, unsub := b.Subscribe()
	defer unsub()

	b.Publish(1)
	b.Publish(2)

	assert.Equal(t, 1, <-ch)
	assert.Equal(t, int64(1), b.Dropped())
	select {
	case v := <-ch:
		t.Fatalf("unexpected value %d", v)
	default:
	}
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster[int](1)
	ch, unsub := b.Subscribe()

	b.Close()
	b.Close()
	unsub()

	_, ok := <-ch
	assert.False(t, ok)

	late, _ := b.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribing after Close yields a closed channel")
}

func TestBroadcaster_ConcurrentPublishAndUnsubscribe(t *testing.T) {
	b := NewBroadcaster[int](8)

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			ch, unsub := b.Subscribe()
			for range 50 {
				b.Publish(1)
				select {
				case <-ch:
				default:
				}
			}
			unsub()
		})
	}
	wg.Wait()

	require.Equal(t, 0, b.Len())
}
