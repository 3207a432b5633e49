package engine

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Countdown runs the per-phase timer. All methods must be called from the
// device loop; clock events are posted back to it.
type Countdown struct {
	clock  clockwork.Clock
	post   func(func())
	onTick func(remaining int)

	gen       uint64
	remaining int
	active    bool
	stop      chan struct{}
}

func newCountdown(clock clockwork.Clock, post func(func()), onTick func(int)) *Countdown {
	return &Countdown{clock: clock, post: post, onTick: onTick}
}

// Start replaces any running countdown. onExpire runs once, on the loop, when
// remaining reaches zero; it may be nil for display-only countdowns.
func (c *Countdown) Start(seconds int, onExpire func()) {
	c.Stop()
	c.remaining = seconds
	c.active = true
	c.arm(c.gen, onExpire)
}

func (c *Countdown) Stop() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.active = false
	c.gen++
}

func (c *Countdown) Active() bool { return c.active }

func (c *Countdown) Remaining() int {
	if !c.active {
		return 0
	}
	return c.remaining
}

func (c *Countdown) arm(gen uint64, onExpire func()) {
	t := c.clock.NewTimer(time.Second)
	stop := make(chan struct{})
	c.stop = stop
	go func() {
		select {
		case <-t.Chan():
			c.post(func() { c.tick(gen, onExpire) })
		case <-stop:
			stopAndDrainTimer(t)
		}
	}()
}

func (c *Countdown) tick(gen uint64, onExpire func()) {
	if !c.active || gen != c.gen {
		return
	}
	// the timer goroutine has exited
	c.stop = nil
	c.remaining--
	if c.onTick != nil {
		c.onTick(c.remaining)
	}
	if c.remaining > 0 {
		c.arm(gen, onExpire)
		return
	}
	c.active = false
	c.gen++
	if onExpire != nil {
		onExpire()
	}
}

// schedule runs fn on the loop after dur unless the phase changes or another
// step is scheduled first. Only one step is pending at a time.
func (d *Device) schedule(dur time.Duration, fn func()) {
	d.cancelStep()
	epoch := d.epoch
	t := d.clock.NewTimer(dur)
	stop := make(chan struct{})
	d.stepStop = stop
	go func() {
		select {
		case <-t.Chan():
			d.post(func() {
				if d.epoch != epoch || d.stepStop != stop {
					return
				}
				d.stepStop = nil
				fn()
			})
		case <-stop:
			stopAndDrainTimer(t)
		}
	}()
}

func (d *Device) cancelStep() {
	if d.stepStop != nil {
		close(d.stepStop)
		d.stepStop = nil
	}
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
