package session

import (
	"context"
	"sync"
	"time"
)

// monitor runs the recurring freshness check plus the event-driven recheck
// used when the host application returns to the foreground. Both paths
// funnel into the same idempotent check on the Manager, so back-to-back
// invocations are safe.
type monitor struct {
	interval time.Duration
	check    func(context.Context) bool

	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newMonitor(interval time.Duration, check func(context.Context) bool) *monitor {
	if interval <= 0 {
		interval = defaultCheckInterval
	}

	return &monitor{
		interval: interval,
		check:    check,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (m *monitor) start() {
	m.wg.Add(1)

	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.done:
				return
			case <-ticker.C:
				m.check(context.Background())
			case <-m.wake:
				m.check(context.Background())
			}
		}
	}()
}

// wakeUp schedules an immediate check. Non-blocking: a pending wake-up
// already covers the caller.
func (m *monitor) wakeUp() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// stop cancels the monitor and waits for the loop to exit, guaranteeing no
// callback fires afterwards. Safe to call more than once.
func (m *monitor) stop() {
	m.stopOnce.Do(func() {
		close(m.done)
	})
	m.wg.Wait()
}
