//go:build tinygo && avr

package main

import (
	"device/avr"
	"runtime/interrupt"
	"runtime/volatile"

	"stage/core"
)

// Output-compare pins the timers toggle: OC0A=PB3, OC1A=PD5, OC2A=PD7, OC3A=PB6
const (
	oc0aBit = 1 << 3
	oc1aBit = 1 << 5
	oc2aBit = 1 << 7
	oc3aBit = 1 << 6
)

// avrTimer drives one counter in phase-correct PWM mode with TOP in OCRnA
// and OCnA toggling on compare match. It implements core.PulseHAL.
type avrTimer struct {
	tccrB *volatile.Register8 // Holds CSn2:0 next to the WGM bits
	ocrL  *volatile.Register8
	ocrH  *volatile.Register8 // nil on 8-bit timers
	timsk *volatile.Register8
	pin   *volatile.Register8 // PINx of the OCnA pin
	ddr   *volatile.Register8
	ocBit uint8
}

var timers = [4]avrTimer{
	{tccrB: avr.TCCR0B, ocrL: avr.OCR0A, timsk: avr.TIMSK0, pin: avr.PINB, ddr: avr.DDRB, ocBit: oc0aBit},
	{tccrB: avr.TCCR1B, ocrL: avr.OCR1AL, ocrH: avr.OCR1AH, timsk: avr.TIMSK1, pin: avr.PIND, ddr: avr.DDRD, ocBit: oc1aBit},
	{tccrB: avr.TCCR2B, ocrL: avr.OCR2A, timsk: avr.TIMSK2, pin: avr.PIND, ddr: avr.DDRD, ocBit: oc2aBit},
	{tccrB: avr.TCCR3B, ocrL: avr.OCR3AL, ocrH: avr.OCR3AH, timsk: avr.TIMSK3, pin: avr.PINB, ddr: avr.DDRB, ocBit: oc3aBit},
}

func (t *avrTimer) ApplyPrescaler(bits uint8) { t.tccrB.SetBits(bits) }
func (t *avrTimer) ClearPrescaler(mask uint8) { t.tccrB.ClearBits(mask) }
func (t *avrTimer) OutputHigh() bool          { return t.pin.HasBits(t.ocBit) }

// SetTop loads OCRnA. 16-bit registers take the high byte first.
func (t *avrTimer) SetTop(top uint16) {
	if t.ocrH != nil {
		t.ocrH.Set(uint8(top >> 8))
	}
	t.ocrL.Set(uint8(top))
}

// initTimers puts the axis counters in phase-correct mode, stopped. Timer 0
// is unbound in the board table and left as the runtime set it up.
func initTimers() {
	// Timer 2: mode 5 (WGM22:0 = 101), COM2A = toggle
	avr.TCCR2A.Set(1<<6 | 1<<0)
	avr.TCCR2B.Set(1 << 3)

	// Timers 1 and 3: mode 11 (WGMx3:0 = 1011), COMxA = toggle
	avr.TCCR1A.Set(1<<6 | 1<<1 | 1<<0)
	avr.TCCR1B.Set(1 << 4)
	avr.TCCR3A.Set(1<<6 | 1<<1 | 1<<0)
	avr.TCCR3B.Set(1 << 4)
}

// enableOutputs switches the OCnA pins of bound timers to outputs
func enableOutputs() {
	for i := range timers {
		if overflowAxis[i] >= 0 {
			timers[i].ddr.SetBits(timers[i].ocBit)
		}
	}
}

// overflowAxis maps a timer to the axis it steps, -1 for none
var (
	overflowAxis    = [4]int8{-1, -1, -1, -1}
	overflowHandler func(axis int)
)

// irqSource implements core.OverflowSource for the fixed timer vectors
type irqSource struct{}

func (irqSource) Attach(channel, axis int, fn func(axis int)) {
	overflowAxis[channel] = int8(axis)
	overflowHandler = fn
	timers[channel].timsk.SetBits(1) // TOIEn
}

func overflow(channel int) {
	if a := overflowAxis[channel]; a >= 0 && overflowHandler != nil {
		overflowHandler(int(a))
	}
}

func init() {
	interrupt.New(avr.IRQ_TIMER0_OVF, func(interrupt.Interrupt) { overflow(0) })
	interrupt.New(avr.IRQ_TIMER1_OVF, func(interrupt.Interrupt) { overflow(1) })
	interrupt.New(avr.IRQ_TIMER2_OVF, func(interrupt.Interrupt) { overflow(2) })
	interrupt.New(avr.IRQ_TIMER3_OVF, func(interrupt.Interrupt) { overflow(3) })
}

// hardware binds the timers and direction pins in board order
func hardware() core.Hardware {
	hw := core.Hardware{}
	for i := range timers {
		hw.Channels = append(hw.Channels, &timers[i])
	}
	for i := range dirPins {
		hw.Directions = append(hw.Directions, &dirPins[i])
	}
	return hw
}
