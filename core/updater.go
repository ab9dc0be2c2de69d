package core

import "stage/internal/mathx"

// UpdateAll resynchronises the hardware of every dirty axis
func (m *MotionState) UpdateAll() {
	for i := range m.axes {
		m.updateAxis(i)
	}
}

// updateAxis derives the channel setting for a dirty axis and applies it.
// The derivation runs with interrupts enabled; only the hardware writes
// and the state change are guarded. dirty is cleared last.
func (m *MotionState) updateAxis(i int) {
	a := &m.axes[i]
	ch := &m.channels[a.channel]

	state := disableInterrupts()
	dirty, freq, dir := a.dirty, a.frequency, a.direction
	restoreInterrupts(state)
	if !dirty {
		return
	}

	freq = mathx.Clamp(freq, 0, a.frequencyMax)
	var s Setting
	if freq > 0 {
		s = ch.Derive(freq)
	}

	state = disableInterrupts()
	defer restoreInterrupts(state)

	if freq == 0 {
		ch.Disable()
	} else {
		ch.Apply(s)
		m.dirLines[i].SetDirection(dir != 0)
		ch.Enable()
		freq = s.Achieved
		RecordEvent(EvtChannelOn, uint8(i), s.Ratio, s.Top)
	}
	a.frequency = freq
	a.dirty = false
}
