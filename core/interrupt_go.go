//go:build !tinygo

package core

import "sync"

// State is the saved interrupt mask returned by disableInterrupts.
type State uintptr

// irqMask stands in for the global interrupt enable bit on regular Go.
// Foreground critical sections and simulated interrupt handlers both hold
// it, so a handler can never run in the middle of a guarded update.
var irqMask sync.Mutex

// disableInterrupts masks simulated interrupts and returns the previous state
func disableInterrupts() State {
	irqMask.Lock()
	return 1
}

// restoreInterrupts restores the interrupt state
func restoreInterrupts(state State) {
	if state != 0 {
		irqMask.Unlock()
	}
}

// ServiceInterrupt runs handler the way hardware runs an ISR: with
// interrupts masked. Simulated overflow sources call this; on TinyGo the
// handler is already running in interrupt context.
func ServiceInterrupt(handler func()) {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	handler()
}
