package core

import (
	"stage/internal/mathx"
	"stage/protocol"
)

// Dispatch applies one decoded command and returns the status to send
// back. Get-state and unknown opcodes change nothing; set-state stores the
// selected setpoints as one guarded batch, reprograms the dirty axes and
// clears cmd.Update.
func (m *MotionState) Dispatch(cmd *protocol.Command) protocol.Status {
	if cmd.Opcode == protocol.OpSetState {
		mask := cmd.Update
		m.applySetpoints(cmd)
		m.UpdateAll()
		cmd.Update = 0
		if IsDebugEnabled() {
			m.logAxes(mask)
		}
	}
	return m.Status(cmd.Opcode)
}

// applySetpoints stores every selected setpoint inside one critical section
// so the tracker never sees a new direction paired with an old frequency.
func (m *MotionState) applySetpoints(cmd *protocol.Command) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	for i := range m.axes {
		if !cmd.Selected(i) {
			continue
		}
		a := &m.axes[i]
		sp := cmd.Setpoints[i]

		a.frequency = mathx.Clamp(uint32(sp.Frequency), 0, a.frequencyMax)
		a.target = int64(sp.Position)
		switch {
		case a.target > a.position:
			a.direction = a.directionPos
		case a.target < a.position:
			a.direction = a.directionNeg
		default:
			// Already there
			a.frequency = 0
		}
		a.dirty = true

		// Counter stays stopped until the updater has set the direction line
		m.channels[a.channel].Disable()
		RecordEvent(EvtSetpoint, uint8(i), uint32(sp.Frequency), uint32(sp.Position))
	}
}

// Status returns the per-axis (frequency, position) snapshot echoing
// opcode. Each axis is read under the guard.
func (m *MotionState) Status(opcode uint8) protocol.Status {
	st := protocol.Status{Opcode: opcode}
	for i := range m.axes {
		state := disableInterrupts()
		freq, pos := m.axes[i].frequency, m.axes[i].position
		restoreInterrupts(state)

		st.Axes[i] = protocol.AxisValue{
			Frequency: mathx.Saturate16(freq),
			Position:  uint16(pos),
		}
	}
	return st
}

// logAxes prints the state of the axes selected by mask
func (m *MotionState) logAxes(mask uint8) {
	for i := range m.axes {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		st := m.AxisState(i)
		DebugPrintln("[MOTION] axis " + m.axes[i].Name +
			" pos=" + itoa(st.Position) +
			" target=" + itoa(st.Target) +
			" f=" + utoa(st.Frequency) +
			" top=" + utoa(st.Channel.Top))
	}
}
