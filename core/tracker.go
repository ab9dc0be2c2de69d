package core

// Overflow is the position tracker: the overflow interrupt handler for
// axis. It runs in interrupt context and must stay O(1) without I/O.
//
// An overflow only counts as a step when the bound counter is running and
// its output line is high, i.e. the waveform finished a full cycle.
// Anything else is spurious and ignored.
func (m *MotionState) Overflow(axis int) {
	a := &m.axes[axis]
	ch := &m.channels[a.channel]
	if !ch.on || !ch.hal.OutputHigh() {
		return
	}

	if a.direction == a.directionPos {
		a.position++
	} else {
		a.position--
	}

	if a.position == a.target {
		a.frequency = 0
		ch.Disable()
		// Park the direction line at its inactive level once motion stops
		m.dirLines[axis].SetDirection(false)
		RecordEvent(EvtTargetReached, uint8(axis), uint32(a.position), 0)
	}
}
