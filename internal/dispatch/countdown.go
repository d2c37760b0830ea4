package dispatch

import (
	"sync"
	"time"
)

// Countdown is the offer response timer. It ticks down once per interval and
// fires onExpire when it reaches zero, unless stopped first. Stop and expiry
// are mutually exclusive: whichever happens first wins.
type Countdown struct {
	mu        sync.Mutex
	remaining int
	stopped   bool
	done      chan struct{}
}

// StartCountdown runs a countdown of seconds at the given tick interval.
// onTick receives the remaining count after each tick; either callback may
// be nil.
func StartCountdown(seconds int, interval time.Duration, onTick func(remaining int), onExpire func()) *Countdown {
	c := &Countdown{
		remaining: seconds,
		done:      make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.done:
				return
			case <-ticker.C:
				c.mu.Lock()
				if c.stopped {
					c.mu.Unlock()
					return
				}
				c.remaining--
				remaining := c.remaining
				expired := remaining <= 0
				if expired {
					c.stopped = true
					close(c.done)
				}
				c.mu.Unlock()

				if onTick != nil {
					onTick(remaining)
				}
				if expired {
					if onExpire != nil {
						onExpire()
					}
					return
				}
			}
		}
	}()

	return c
}

// Remaining returns the seconds left on the timer.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Stop cancels the countdown so onExpire never fires. Idempotent.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	close(c.done)
}
