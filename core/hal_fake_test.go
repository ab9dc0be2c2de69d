package core

// fakeTimer is a test implementation of PulseHAL with an 8-bit control
// register. wgm bits are preset so tests can check they survive.
type fakeTimer struct {
	control uint8
	top     uint16
	output  bool
	setTops int
}

const fakeWGM uint8 = 0x18

func newFakeTimer() *fakeTimer {
	return &fakeTimer{control: fakeWGM}
}

func (f *fakeTimer) ApplyPrescaler(bits uint8) { f.control |= bits }
func (f *fakeTimer) ClearPrescaler(mask uint8) { f.control &^= mask }
func (f *fakeTimer) SetTop(top uint16)         { f.top = top; f.setTops++ }
func (f *fakeTimer) OutputHigh() bool          { return f.output }

type fakeLine struct {
	high bool
	sets int
}

func (l *fakeLine) SetDirection(high bool) { l.high = high; l.sets++ }

type fakeBoard struct {
	timers []*fakeTimer
	lines  []*fakeLine
}

func (b *fakeBoard) hardware() Hardware {
	hw := Hardware{}
	for _, t := range b.timers {
		hw.Channels = append(hw.Channels, t)
	}
	for _, l := range b.lines {
		hw.Directions = append(hw.Directions, l)
	}
	return hw
}

// newTestMotion builds the default board on fake hardware
func newTestMotion(t interface{ Fatalf(string, ...any) }) (*MotionState, *fakeBoard) {
	cfg := DefaultConfig()
	b := &fakeBoard{}
	for range cfg.Channels {
		b.timers = append(b.timers, newFakeTimer())
	}
	for range cfg.Axes {
		b.lines = append(b.lines, &fakeLine{})
	}
	m, err := NewMotionState(cfg, b.hardware())
	if err != nil {
		t.Fatalf("NewMotionState failed: %v", err)
	}
	return m, b
}

// timerOf returns the fake timer bound to axis
func (b *fakeBoard) timerOf(m *MotionState, axis int) *fakeTimer {
	return b.timers[m.ChannelOf(axis)]
}
