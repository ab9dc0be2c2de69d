//go:build tinygo && avr

package main

import (
	"device/avr"
	"machine"
	"time"

	"stage/core"
	"stage/protocol"
)

// dirPin is a direction output on PORTC. It implements core.DirectionLine.
type dirPin struct {
	pin machine.Pin
}

func (d *dirPin) SetDirection(high bool) { d.pin.Set(high) }

var dirPins = [3]dirPin{{machine.PC0}, {machine.PC1}, {machine.PC2}}

// recordGap is the line silence after which a partial record is dropped.
// A whole record takes about 1.2ms at 115200 baud.
const recordGap = 5 * time.Millisecond

var (
	motion *core.MotionState
	task   *core.PacketTask
	fifo   *protocol.RecordFifo
)

func main() {
	machine.Serial.Configure(machine.UARTConfig{BaudRate: 115200})

	for i := range dirPins {
		dirPins[i].pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		dirPins[i].pin.Low()
	}
	initTimers()

	var err error
	motion, err = core.NewMotionState(core.DefaultConfig(), hardware())
	if err != nil {
		// Board table is compiled in; nothing to report to
		for {
		}
	}
	motion.Attach(irqSource{})

	task = core.NewPacketTask(motion, core.SystemHooks{
		InitIO:     enableOutputs,
		Reset:      watchdogReset,
		Bootloader: enterBootloader,
	})
	fifo = protocol.NewRecordFifo(4 * task.CommandSize())

	lastRx := time.Now()
	for {
		for machine.Serial.Buffered() > 0 {
			b, err := machine.Serial.ReadByte()
			if err != nil {
				break
			}
			lastRx = time.Now()
			if fifo.WriteByte(b) != nil {
				// Host overran us; resynchronise on the next record
				fifo.Reset()
				core.DebugPrintln("[PACKET] input overrun")
			}
		}
		idle := fifo.Available() > 0 && time.Since(lastRx) > recordGap
		task.Service(fifo, machine.Serial, idle)
	}
}

// watchdogReset lets the watchdog reset the MCU within 15ms
func watchdogReset() {
	avr.WDTCSR.Set(avr.WDTCSR_WDCE | avr.WDTCSR_WDE)
	avr.WDTCSR.Set(avr.WDTCSR_WDE)
	for {
	}
}

// enterBootloader jumps to the boot section (BOOTSZ = 4096 words)
func enterBootloader() {
	avr.Asm("cli")
	avr.Asm("jmp 0x1E000")
}
