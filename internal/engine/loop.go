package engine

import (
	"log/slog"
	"time"
)

// Loop drives the simulation forward on wall-clock time for the
// daemon. Gameplay hosts embed the core and call AdvanceTurn
// themselves instead.
type Loop struct {
	Sim      *Simulation
	Speed    float64       // Multiplier: 1.0 = real-time, 0 = paused
	Interval time.Duration // Base turn interval
	Running  bool

	// OnDay fires after each completed economic day (e.g. auto-save).
	OnDay func(day uint64)
}

// NewLoop creates a loop with default settings.
func NewLoop(sim *Simulation) *Loop {
	return &Loop{
		Sim:      sim,
		Speed:    1.0,
		Interval: time.Second,
	}
}

// Run starts the loop. Blocks until Stop is called.
func (l *Loop) Run() {
	l.Running = true
	slog.Info("simulation loop started", "turn", l.Sim.Turn, "speed", l.Speed)

	for l.Running {
		if l.Speed <= 0 {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()
		dayBefore := l.Sim.Day
		l.Sim.AdvanceTurn()
		if l.Sim.Day != dayBefore && l.OnDay != nil {
			l.OnDay(l.Sim.Day)
		}

		elapsed := time.Since(start)
		target := time.Duration(float64(l.Interval) / l.Speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}

	slog.Info("simulation loop stopped", "turn", l.Sim.Turn)
}

// Stop halts the loop after the current turn.
func (l *Loop) Stop() {
	l.Running = false
}
