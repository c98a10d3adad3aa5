package watcher

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Debouncer:
// - Five triggers spaced under the quiet period fire exactly once, after the last trigger settles
// - Separate bursts fire separately
// - Stop cancels a pending firing; triggers after Stop are ignored
// - Stop waits for a running callback to return
// - A panicking callback is recovered and later bursts still fire
// - Callbacks never overlap

// quantum scales every timing in these tests.
const quantum = 20 * time.Millisecond

func TestDebouncer_CoalescesBurst(t *testing.T) {
	t.Parallel()

	var fired atomic.Int32
	var firedAt atomic.Int64
	d := NewDebouncer(5*quantum, func() {
		fired.Add(1)
		firedAt.Store(time.Now().UnixNano())
	}, nil)
	defer d.Stop()

	var last time.Time
	for i := 0; i < 5; i++ {
		d.Trigger()
		last = time.Now()
		time.Sleep(2 * quantum)
	}

	require.Eventually(t, func() bool { return fired.Load() == 1 }, 40*quantum, quantum/4)
	time.Sleep(10 * quantum)
	assert.Equal(t, int32(1), fired.Load())
	assert.GreaterOrEqual(t, time.Duration(firedAt.Load()-last.UnixNano()), 5*quantum)
	assert.False(t, d.Pending())
}

func TestDebouncer_SeparateBursts(t *testing.T) {
	t.Parallel()

	var fired atomic.Int32
	d := NewDebouncer(2*quantum, func() { fired.Add(1) }, nil)
	defer d.Stop()

	d.Trigger()
	require.Eventually(t, func() bool { return fired.Load() == 1 }, 30*quantum, quantum/4)
	d.Trigger()
	d.Trigger()
	require.Eventually(t, func() bool { return fired.Load() == 2 }, 30*quantum, quantum/4)
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	t.Parallel()

	var fired atomic.Int32
	d := NewDebouncer(3*quantum, func() { fired.Add(1) }, nil)

	d.Trigger()
	assert.True(t, d.Pending())
	d.Stop()
	d.Trigger()

	time.Sleep(10 * quantum)
	assert.Equal(t, int32(0), fired.Load())
	assert.False(t, d.Pending())
}

func TestDebouncer_StopWaitsForCallback(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	var finished atomic.Bool
	d := NewDebouncer(quantum, func() {
		close(started)
		time.Sleep(5 * quantum)
		finished.Store(true)
	}, nil)

	d.Trigger()
	<-started
	d.Stop()
	assert.True(t, finished.Load(), "Stop returned before the callback finished")
}

func TestDebouncer_RecoversPanic(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	d := NewDebouncer(quantum, func() {
		if calls.Add(1) == 1 {
			panic("boom")
		}
	}, nil)
	defer d.Stop()

	d.Trigger()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 30*quantum, quantum/4)
	d.Trigger()
	require.Eventually(t, func() bool { return calls.Load() == 2 }, 30*quantum, quantum/4)
}

func TestDebouncer_NoOverlap(t *testing.T) {
	t.Parallel()

	var inside, overlaps, calls atomic.Int32
	d := NewDebouncer(quantum/2, func() {
		if inside.Add(1) > 1 {
			overlaps.Add(1)
		}
		time.Sleep(3 * quantum)
		inside.Add(-1)
		calls.Add(1)
	}, nil)

	for i := 0; i < 3; i++ {
		d.Trigger()
		time.Sleep(quantum)
	}
	require.Eventually(t, func() bool { return calls.Load() == 3 }, 60*quantum, quantum/4)
	d.Stop()
	assert.Equal(t, int32(0), overlaps.Load())
}
