//go:build tinygo

package core

import "runtime/interrupt"

// State is the saved interrupt mask returned by disableInterrupts.
type State = interrupt.State

// disableInterrupts disables interrupts and returns the previous state
func disableInterrupts() State {
	return interrupt.Disable()
}

// restoreInterrupts restores the interrupt state
func restoreInterrupts(state State) {
	interrupt.Restore(state)
}

// ServiceInterrupt runs handler directly; ISRs already run with interrupts
// disabled on the MCU.
func ServiceInterrupt(handler func()) {
	handler()
}
