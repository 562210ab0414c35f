package timer

import (
	"sync"
	"time"
)

// FakeClock is a manually advanced Clock. Callbacks run synchronously on the
// goroutine calling Advance, one due tick at a time, without the clock lock
// held, so callbacks may stop tickers or schedule new ones.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

// NewFakeClock returns a clock frozen at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

type fakeTicker struct {
	clock   *FakeClock
	every   time.Duration
	next    time.Time
	fn      func()
	stopped bool
}

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	t.stopped = true
	t.clock.mu.Unlock()
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Every(d time.Duration, fn func()) Ticker {
	if d <= 0 {
		panic("timer: non-positive interval")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{clock: c, every: d, next: c.now.Add(d), fn: fn}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance moves the clock forward by d, firing every tick that falls due in
// chronological order.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due *fakeTicker
		for _, t := range c.tickers {
			if t.stopped || t.next.After(target) {
				continue
			}
			if due == nil || t.next.Before(due.next) {
				due = t
			}
		}
		if due == nil {
			c.now = target
			c.prune()
			c.mu.Unlock()
			return
		}
		c.now = due.next
		due.next = due.next.Add(due.every)
		fn := due.fn
		c.mu.Unlock()

		fn()
	}
}

// Active returns the number of running tickers.
func (c *FakeClock) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (c *FakeClock) prune() {
	live := c.tickers[:0]
	for _, t := range c.tickers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	c.tickers = live
}
