// Package engine provides the hourly simulation clock and the tick
// orchestrator for the transmission model.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/ncruces/go-strftime"
)

// TickSchedule defines when periodic callbacks fire relative to the tick counter.
const (
	TicksPerSimDay  = 24  // One tick is one simulated hour
	TicksPerSimWeek = 168 // 7 days × 24
)

// Engine drives the simulation forward one hour at a time until the horizon.
type Engine struct {
	Tick     uint64        // Next tick to execute; equals ticks completed
	Horizon  uint64        // Run stops once Tick reaches it
	Interval time.Duration // Base wall time per tick; 0 runs unthrottled

	speed   atomic.Uint64 // math.Float64bits of the speed multiplier
	running atomic.Bool

	// Callbacks, populated during setup.
	OnTick func(tick uint64) // Executes tick; required
	OnDay  func(tick uint64) // After every 24th tick, with the completed tick count
	OnWeek func(tick uint64) // After every 168th tick
}

// NewEngine creates an engine that runs horizon ticks at full speed.
func NewEngine(horizon uint64) *Engine {
	e := &Engine{Horizon: horizon}
	e.SetSpeed(1)
	return e
}

// Speed returns the pacing multiplier: 1 is one tick per Interval, 0 is paused.
func (e *Engine) Speed() float64 {
	return math.Float64frombits(e.speed.Load())
}

// SetSpeed changes the pacing multiplier. Safe for concurrent use.
func (e *Engine) SetSpeed(s float64) {
	if s < 0 {
		s = 0
	}
	e.speed.Store(math.Float64bits(s))
}

// Running reports whether Run is in progress.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Done reports whether the horizon has been reached.
func (e *Engine) Done() bool {
	return e.Tick >= e.Horizon
}

// Run executes ticks until the horizon is reached or ctx is cancelled.
// Cancellation is only observed between ticks.
func (e *Engine) Run(ctx context.Context) error {
	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("simulation engine started", "tick", e.Tick, "horizon", e.Horizon, "speed", e.Speed())

	for !e.Done() {
		if err := ctx.Err(); err != nil {
			slog.Info("simulation engine stopped", "tick", e.Tick, "reason", err)
			return err
		}

		speed := e.Speed()
		if speed <= 0 {
			// Paused. Sleep briefly and check again.
			select {
			case <-ctx.Done():
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		start := time.Now()
		e.step()

		if e.Interval > 0 {
			target := time.Duration(float64(e.Interval) / speed)
			if elapsed := time.Since(start); elapsed < target {
				select {
				case <-ctx.Done():
				case <-time.After(target - elapsed):
				}
			}
		}
	}

	slog.Info("simulation engine finished", "tick", e.Tick)
	return nil
}

// step executes one tick and fires the periodic callbacks.
func (e *Engine) step() {
	if e.OnTick != nil {
		e.OnTick(e.Tick)
	}
	e.Tick++

	if e.Tick%TicksPerSimDay == 0 && e.OnDay != nil {
		e.OnDay(e.Tick)
	}
	if e.Tick%TicksPerSimWeek == 0 && e.OnWeek != nil {
		e.OnWeek(e.Tick)
	}
}

// HourOfDay returns the wall-clock hour a tick falls in.
func HourOfDay(tick uint64) int {
	return int(tick % TicksPerSimDay)
}

// SimTime renders a tick as a calendar timestamp relative to epoch.
func SimTime(epoch time.Time, tick uint64) string {
	t := epoch.Add(time.Duration(tick) * time.Hour)
	return fmt.Sprintf("day %d, %s", tick/TicksPerSimDay+1, strftime.Format("%a %d %b %Y %H:00", t))
}
