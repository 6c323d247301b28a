// Package clock provides the simulated-time source that drives a session.
//
// The clock ticks at a fixed wall cadence. Each tick carries the wall delta
// and the sim delta (wall delta times the active scale factor). Scale changes
// and pause/resume requests take effect at the next tick boundary, never
// mid-tick, so cumulative sim time advances in whole-tick quanta.
package clock

import (
	"fmt"
	"sync"
	"time"
)

// Allowed time-acceleration factors, keyed by wire name.
var scaleFactors = map[string]float64{
	"real_time": 1,
	"2x":        2,
	"5x":        5,
	"10x":       10,
	"30x":       30,
	"60x":       60,
}

// ScaleFactor resolves a scale name to its multiplier.
func ScaleFactor(name string) (float64, error) {
	f, ok := scaleFactors[name]
	if !ok {
		return 0, fmt.Errorf("invalid time scale %q", name)
	}
	return f, nil
}

// ScaleNames returns the allowed scale names.
func ScaleNames() []string {
	return []string{"real_time", "2x", "5x", "10x", "30x", "60x"}
}

// Tick is one advance of the clock. When the clock is paused SimDt is zero
// but ticks keep flowing so the consumer stays responsive.
type Tick struct {
	WallDt     time.Duration
	SimDt      time.Duration
	SimElapsed time.Duration // cumulative sim time since Run started
	Scale      string
	Paused     bool
}

// Clock emits Ticks on C at the configured wall cadence.
type Clock struct {
	mu      sync.Mutex
	cadence time.Duration
	scale   string
	factor  float64
	paused  bool

	simElapsed time.Duration
	ticks      chan Tick
	stop       chan struct{}
	stopOnce   sync.Once
}

// New constructs a clock ticking at the given wall cadence, starting at
// real_time scale, unpaused.
func New(cadence time.Duration) *Clock {
	return &Clock{
		cadence: cadence,
		scale:   "real_time",
		factor:  1,
		ticks:   make(chan Tick, 1),
		stop:    make(chan struct{}),
	}
}

// C is the tick stream. Ticks are dropped, not queued, if the consumer lags;
// the next tick carries the accumulated wall time so sim time is not lost.
func (c *Clock) C() <-chan Tick { return c.ticks }

// SetScale requests a new scale factor. The change applies from the next
// tick boundary.
func (c *Clock) SetScale(name string) error {
	factor, err := ScaleFactor(name)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.scale = name
	c.factor = factor
	c.mu.Unlock()
	return nil
}

// Scale returns the current scale name.
func (c *Clock) Scale() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scale
}

// Pause stops sim time from advancing. Ticks continue with SimDt zero.
func (c *Clock) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
}

// Resume restarts sim-time advance from the next tick boundary.
func (c *Clock) Resume() {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
}

// SimElapsed returns the cumulative sim time emitted so far.
func (c *Clock) SimElapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.simElapsed
}

// Run drives the tick loop until Stop is called. It blocks; callers run it
// in the session task's goroutine group.
func (c *Clock) Run() {
	ticker := time.NewTicker(c.cadence)
	defer ticker.Stop()

	last := time.Now()
	var pendingWall time.Duration

	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			wallDt := now.Sub(last) + pendingWall
			last = now
			pendingWall = 0

			c.mu.Lock()
			simDt := time.Duration(0)
			if !c.paused {
				simDt = time.Duration(float64(wallDt) * c.factor)
			}
			c.simElapsed += simDt
			tick := Tick{
				WallDt:     wallDt,
				SimDt:      simDt,
				SimElapsed: c.simElapsed,
				Scale:      c.scale,
				Paused:     c.paused,
			}
			c.mu.Unlock()

			select {
			case c.ticks <- tick:
			default:
				// Consumer is behind; fold this tick's wall time into the next.
				pendingWall += wallDt
				c.mu.Lock()
				c.simElapsed -= simDt
				c.mu.Unlock()
			}
		}
	}
}

// Stop terminates the Run loop. Safe to call more than once.
func (c *Clock) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}
