package logic

import (
	"sync/atomic"
	"time"
)

// PulseCounter counts debounced anemometer edges. Capture is called from the
// edge handler goroutine, Take from the run loop; both are lock-free.
type PulseCounter struct {
	minInterval int64 // ns
	last        atomic.Int64
	count       atomic.Int64
}

// NewPulseCounter creates a counter that drops edges closer than minInterval.
func NewPulseCounter(minInterval time.Duration) *PulseCounter {
	c := &PulseCounter{minInterval: int64(minInterval)}
	// Any edge with ts >= 0 is accepted first.
	c.last.Store(-int64(minInterval))
	return c
}

// Capture records an edge at ts (monotonic, e.g. time since boot).
// Returns false if the edge was rejected as bounce.
func (c *PulseCounter) Capture(ts time.Duration) bool {
	now := int64(ts)
	for {
		prev := c.last.Load()
		if now-prev < c.minInterval {
			return false
		}
		if c.last.CompareAndSwap(prev, now) {
			c.count.Add(1)
			return true
		}
	}
}

// Take returns the pulse count and resets it to zero in one step.
func (c *PulseCounter) Take() int64 {
	return c.count.Swap(0)
}

// Pending returns the pulses counted in the current window so far.
func (c *PulseCounter) Pending() int64 {
	return c.count.Load()
}

// WindMeter converts the pulse count into a wind sample once per window.
// Between windows the previous sample is returned unchanged.
type WindMeter struct {
	p           WindParams
	counter     *PulseCounter
	windowStart time.Time
	last        WindSample
}

// NewWindMeter creates a meter whose first window starts at now.
func NewWindMeter(p WindParams, now time.Time) *WindMeter {
	return &WindMeter{
		p:           p,
		counter:     NewPulseCounter(p.MinPulseInterval),
		windowStart: now,
		last:        WindSample{Time: now},
	}
}

// Counter returns the counter the edge source should feed.
func (w *WindMeter) Counter() *PulseCounter {
	return w.counter
}

// Sample returns the current wind sample, computing a new one if the window
// has elapsed.
func (w *WindMeter) Sample(now time.Time) WindSample {
	if now.Sub(w.windowStart) <= w.p.Window {
		return w.last
	}

	pulses := w.counter.Take()
	rpm := float64(pulses) * 60 / float64(w.p.PulsesPerRevolution) / w.p.Window.Seconds()
	w.windowStart = now

	w.last = WindSample{
		Time:  now,
		RPM:   rpm,
		Speed: w.speed(rpm),
	}
	return w.last
}

// Last returns the most recent completed sample without advancing the window.
func (w *WindMeter) Last() WindSample {
	return w.last
}

func (w *WindMeter) speed(rpm float64) float64 {
	if rpm < w.p.MinRPM {
		return 0
	}
	return w.p.SpeedSlope*rpm + w.p.SpeedOffset
}
