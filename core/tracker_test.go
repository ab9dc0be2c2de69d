package core

import (
	"testing"

	"stage/protocol"
)

func setState(m *MotionState, axis int, freq, target uint16) protocol.Status {
	cmd := protocol.Command{Opcode: protocol.OpSetState}
	cmd.Select(axis, freq, target)
	return m.Dispatch(&cmd)
}

// pulse delivers one overflow with the output line at level
func pulse(m *MotionState, ft *fakeTimer, axis int, level bool) {
	ft.output = level
	ServiceInterrupt(func() { m.Overflow(axis) })
}

func TestTrackerRunsToTarget(t *testing.T) {
	m, b := newTestMotion(t)
	ft := b.timerOf(m, 0)

	setState(m, 0, 10000, 1200)
	st := m.AxisState(0)
	if !st.Running() || st.Direction != 0 {
		t.Fatalf("Expected axis running in positive direction, got %+v", st)
	}
	if b.lines[0].high != (st.Direction != 0) {
		t.Errorf("Direction line does not match direction flag")
	}

	for i := int64(1); i <= 200; i++ {
		pulse(m, ft, 0, true)
		st = m.AxisState(0)
		if st.Position != 1000+i {
			t.Fatalf("Step %d: expected position %d, got %d", i, 1000+i, st.Position)
		}
		if i < 200 && !st.Running() {
			t.Fatalf("Step %d: axis stopped early", i)
		}
	}

	if st.Frequency != 0 || st.Channel.On {
		t.Errorf("Expected stopped axis at target, got %+v", st)
	}
	if ft.control != fakeWGM {
		t.Errorf("Expected clock-select cleared, control=%#x", ft.control)
	}
	if b.lines[0].high {
		t.Error("Direction line must be parked low after target reached")
	}

	// Further overflows are ignored once stopped
	pulse(m, ft, 0, true)
	if got := m.AxisState(0).Position; got != 1200 {
		t.Errorf("Stopped axis moved to %d", got)
	}
}

func TestTrackerNegativeDirection(t *testing.T) {
	m, b := newTestMotion(t)
	ft := b.timerOf(m, 1)

	setState(m, 1, 5000, 990)
	if st := m.AxisState(1); st.Direction != 1 || !b.lines[1].high {
		t.Fatalf("Expected negative direction with line high, got %+v line=%v", st, b.lines[1].high)
	}

	for i := int64(1); i <= 10; i++ {
		pulse(m, ft, 1, true)
		if got := m.AxisState(1).Position; got != 1000-i {
			t.Fatalf("Step %d: expected position %d, got %d", i, 1000-i, got)
		}
	}
	st := m.AxisState(1)
	if st.Frequency != 0 || st.Channel.On || b.lines[1].high {
		t.Errorf("Expected axis stopped with line low, got %+v line=%v", st, b.lines[1].high)
	}
}

func TestTrackerIgnoresSpuriousOverflow(t *testing.T) {
	m, b := newTestMotion(t)
	ft := b.timerOf(m, 0)

	setState(m, 0, 10000, 1001)
	pulse(m, ft, 0, false)

	st := m.AxisState(0)
	if st.Position != 1000 || !st.Running() {
		t.Errorf("Overflow with output low must be ignored, got %+v", st)
	}

	pulse(m, ft, 0, true)
	if st = m.AxisState(0); st.Position != 1001 || st.Running() {
		t.Errorf("Expected single step to target, got %+v", st)
	}
}

func TestTrackerIgnoresStoppedChannel(t *testing.T) {
	m, b := newTestMotion(t)
	ft := b.timerOf(m, 2)

	pulse(m, ft, 2, true)
	if got := m.AxisState(2).Position; got != DefaultHome2 {
		t.Errorf("Overflow on stopped channel moved axis to %d", got)
	}
}
