package stream

import (
	"fmt"

	"github.com/pulp-platform/hwpe-stream/sim"
)

// HookPosClockEdge marks the moment right before the registers of a cycle
// are committed. The hook item is the current cycle number; all channel
// signals are settled when the hook fires.
var HookPosClockEdge = &sim.HookPos{Name: "Clock Edge"}

// A Module is a synchronous hardware block in a single clock domain.
//
// Comb recomputes the combinational outputs of the module from its current
// register state and input signals, and reports whether any driven signal
// changed. Edge commits the next register state from the settled signals.
type Module interface {
	sim.Named

	Comb() bool
	Edge()
}

// A Clock owns an ordered set of modules in one clock domain and advances
// them cycle by cycle. Within a cycle, it sweeps the Comb functions until no
// signal changes anymore, and then fires every Edge.
//
// The sweep count is bounded. A set of modules that never settles contains a
// combinational loop, which is a protocol violation, so exceeding the bound
// is fatal.
type Clock struct {
	sim.HookableBase

	name    string
	modules []Module

	cycle    uint64
	deadline uint64
	stopped  bool
}

// NewClock creates a clock domain.
func NewClock(name string) *Clock {
	sim.NameMustBeValid(name)

	return &Clock{name: name}
}

// Name returns the name of the clock domain.
func (c *Clock) Name() string {
	return c.name
}

// Add registers modules with the clock. Modules are evaluated in
// registration order within each settle sweep.
func (c *Clock) Add(modules ...Module) {
	c.modules = append(c.modules, modules...)
}

// Cycle returns the number of completed cycles.
func (c *Clock) Cycle() uint64 {
	return c.cycle
}

// WithDeadline makes the clock fail fatally when the cycle count reaches
// maxCycles. A deadline of 0 disables the watchdog.
func (c *Clock) WithDeadline(maxCycles uint64) *Clock {
	c.deadline = maxCycles

	return c
}

// Stop ends the simulation. The current cycle completes; no further cycle
// starts.
func (c *Clock) Stop() {
	c.stopped = true
}

// Stopped reports whether Stop has been called.
func (c *Clock) Stopped() bool {
	return c.stopped
}

// Step advances the clock domain by one cycle.
func (c *Clock) Step() {
	if c.deadline > 0 && c.cycle >= c.deadline {
		panic(fmt.Sprintf("clock %s: no progress after %d cycles",
			c.name, c.deadline))
	}

	c.settle()

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosClockEdge,
		Item:   c.cycle,
	})

	for _, m := range c.modules {
		m.Edge()
	}

	c.cycle++
}

// StepN advances the clock domain by n cycles.
func (c *Clock) StepN(n int) {
	for i := 0; i < n; i++ {
		c.Step()
	}
}

// Tick implements sim.Ticker so that a Clock can be driven by the event
// engine through a TickingComponent.
func (c *Clock) Tick() bool {
	if c.stopped {
		return false
	}

	c.Step()

	return !c.stopped
}

func (c *Clock) settle() {
	maxSweeps := 2*len(c.modules) + 4

	for sweep := 0; ; sweep++ {
		changed := false
		for _, m := range c.modules {
			if m.Comb() {
				changed = true
			}
		}

		if !changed {
			return
		}

		if sweep >= maxSweeps {
			panic(fmt.Sprintf(
				"clock %s: combinational loop detected at cycle %d",
				c.name, c.cycle))
		}
	}
}
