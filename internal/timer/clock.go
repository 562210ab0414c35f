package timer

import (
	"sync"
	"time"
)

// Clock schedules periodic callbacks. Production code uses RealClock; tests
// drive time with FakeClock.
type Clock interface {
	Now() time.Time
	// Every calls fn every d until the returned Ticker is stopped.
	Every(d time.Duration, fn func()) Ticker
}

// Ticker is a running periodic callback.
type Ticker interface {
	Stop()
}

// RealClock is backed by time.Ticker.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) Every(d time.Duration, fn func()) Ticker {
	t := &realTicker{ticker: time.NewTicker(d), done: make(chan struct{})}
	go t.run(fn)
	return t
}

type realTicker struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (t *realTicker) run(fn func()) {
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.C:
			// Stop may race with a tick already delivered on the channel.
			select {
			case <-t.done:
				return
			default:
			}
			fn()
		}
	}
}

func (t *realTicker) Stop() {
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.done)
	})
}
