package entities

import "sync/atomic"

type ProcessingState string

const (
	ProcessingActive    ProcessingState = "active"
	ProcessingSuspended ProcessingState = "suspended"
)

// ProcessingGate holds the switch that decides whether inbound messages get
// automatic replies. It starts Active. Writes are applied only when the gate
// was built with writes enabled; reads always reflect the current value.
type ProcessingGate struct {
	active        atomic.Bool
	writesEnabled bool
}

func NewProcessingGate(writesEnabled bool) *ProcessingGate {
	g := &ProcessingGate{writesEnabled: writesEnabled}
	g.active.Store(true)
	return g
}

func (g *ProcessingGate) Active() bool {
	return g.active.Load()
}

func (g *ProcessingGate) State() ProcessingState {
	if g.Active() {
		return ProcessingActive
	}
	return ProcessingSuspended
}

func (g *ProcessingGate) WritesEnabled() bool {
	return g.writesEnabled
}

// Suspend turns automatic replies off. It reports whether the write was applied.
func (g *ProcessingGate) Suspend() bool {
	return g.set(false)
}

// Resume turns automatic replies back on. It reports whether the write was applied.
func (g *ProcessingGate) Resume() bool {
	return g.set(true)
}

func (g *ProcessingGate) set(active bool) bool {
	if !g.writesEnabled {
		return false
	}
	g.active.Store(active)
	return true
}
