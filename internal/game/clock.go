package game

import (
	"sync"
	"time"
)

// RoundClockHooks are the clock's outbound callbacks. They are invoked from
// the clock's own goroutine; the engine funnels them back through its lock.
type RoundClockHooks struct {
	OnTick    func(remaining int)
	OnWarning func(remaining int)
	OnExpire  func()
}

// RoundClock is the per-question countdown. It ticks once per interval,
// emitting the remaining whole seconds, warns at 10 and 5 seconds, and fires
// OnExpire exactly once when the countdown reaches zero. At most one clock is
// active per session.
type RoundClock struct {
	deadline int
	interval time.Duration
	hooks    RoundClockHooks

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRoundClock creates a clock for deadlineSeconds. The tick interval is
// one second in production and shortened in tests.
func NewRoundClock(deadlineSeconds int, interval time.Duration, hooks RoundClockHooks) *RoundClock {
	if interval <= 0 {
		interval = time.Second
	}
	return &RoundClock{
		deadline: deadlineSeconds,
		interval: interval,
		hooks:    hooks,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the countdown.
func (c *RoundClock) Start() {
	go c.run()
}

// Cancel halts the clock without firing OnExpire. Safe to call more than
// once and safe to call from a hook.
func (c *RoundClock) Cancel() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *RoundClock) run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	remaining := c.deadline
	for remaining > 0 {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
		}

		remaining--
		if c.hooks.OnTick != nil {
			c.hooks.OnTick(remaining)
		}
		if (remaining == 10 || remaining == 5) && c.hooks.OnWarning != nil {
			c.hooks.OnWarning(remaining)
		}
	}

	select {
	case <-c.stopCh:
		return
	default:
	}
	if c.hooks.OnExpire != nil {
		c.hooks.OnExpire()
	}
}
