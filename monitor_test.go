package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorPeriodicChecks(t *testing.T) {
	var checks atomic.Int64

	mon := newMonitor(10*time.Millisecond, func(context.Context) bool {
		checks.Add(1)
		return true
	})
	mon.start()
	defer mon.stop()

	require.Eventually(t, func() bool {
		return checks.Load() >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestMonitorWakeUpTriggersImmediateCheck(t *testing.T) {
	var checks atomic.Int64

	mon := newMonitor(time.Hour, func(context.Context) bool {
		checks.Add(1)
		return true
	})
	mon.start()
	defer mon.stop()

	mon.wakeUp()

	require.Eventually(t, func() bool {
		return checks.Load() >= 1
	}, time.Second, 5*time.Millisecond)
}

func TestMonitorWakeUpCoalesces(t *testing.T) {
	mon := newMonitor(time.Hour, func(context.Context) bool { return true })

	// without a running loop both sends must return immediately
	done := make(chan struct{})
	go func() {
		mon.wakeUp()
		mon.wakeUp()
		mon.wakeUp()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wakeUp blocked")
	}
}

func TestMonitorStopHaltsChecks(t *testing.T) {
	var checks atomic.Int64

	mon := newMonitor(5*time.Millisecond, func(context.Context) bool {
		checks.Add(1)
		return true
	})
	mon.start()

	require.Eventually(t, func() bool {
		return checks.Load() >= 1
	}, time.Second, time.Millisecond)

	mon.stop()
	after := checks.Load()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, checks.Load(), "no callbacks after stop returns")

	assert.NotPanics(t, func() { mon.stop() })
}
