package sim

import (
	"sync"
	"testing"

	"stage/core"
	"stage/protocol"
)

func newTestStage(t *testing.T) (*core.MotionState, *Board) {
	t.Helper()
	cfg := core.DefaultConfig()
	b := NewBoard(cfg)
	m, err := core.NewMotionState(cfg, b.Hardware())
	if err != nil {
		t.Fatalf("NewMotionState failed: %v", err)
	}
	m.Attach(b)
	return m, b
}

func move(m *core.MotionState, axis int, freq, pos uint16) protocol.Status {
	cmd := protocol.Command{Opcode: protocol.OpSetState}
	cmd.Select(axis, freq, pos)
	return m.Dispatch(&cmd)
}

func TestBoardClosedLoopMove(t *testing.T) {
	m, b := newTestStage(t)
	ch := b.Channel(m.ChannelOf(0))

	st := move(m, 0, 10000, 1200)
	if st.Axes[0].Frequency != 10000 {
		t.Fatalf("Expected achieved 10000, got %d", st.Axes[0].Frequency)
	}
	if ch.Top() != 400 {
		t.Errorf("Expected top 400, got %d", ch.Top())
	}
	if ch.Control() != WGMBits|0x01 {
		t.Errorf("Expected control %#x, got %#x", WGMBits|0x01, ch.Control())
	}

	// 800 ticks per overflow, one step per two overflows
	b.Advance(319199)
	if got := m.AxisState(0).Position; got != 1199 {
		t.Fatalf("Expected 1199 just before the last step, got %d", got)
	}
	b.Advance(1)

	as := m.AxisState(0)
	if as.Position != 1200 || as.Running() {
		t.Errorf("Expected stop at 1200, got %+v", as)
	}
	if ch.Overflows() != 399 {
		t.Errorf("Expected 399 overflows, got %d", ch.Overflows())
	}
	if ch.Running() || ch.Control() != WGMBits {
		t.Errorf("Counter still clocked: control=%#x", ch.Control())
	}
	if b.Direction(0).Level() {
		t.Error("Direction line left high")
	}

	if !b.RunUntilIdle(1_000_000) {
		t.Error("Board did not go idle")
	}
	if got := m.AxisState(0).Position; got != 1200 {
		t.Errorf("Axis drifted to %d after stop", got)
	}
}

func TestBoardReverseMove(t *testing.T) {
	m, b := newTestStage(t)

	move(m, 2, 1000, 1200)
	if !b.Direction(2).Level() {
		t.Fatal("Expected direction line high for negative motion")
	}
	if !b.RunUntilIdle(uint64(core.DefaultClock)) {
		t.Fatal("Move did not finish within one second")
	}
	as := m.AxisState(2)
	if as.Position != 1200 || as.Frequency != 0 {
		t.Errorf("Expected stop at 1200, got %+v", as)
	}
	if b.Direction(2).Changes() != 2 {
		t.Errorf("Expected line raised then parked, got %d changes", b.Direction(2).Changes())
	}
}

func TestBoardMultiAxis(t *testing.T) {
	m, b := newTestStage(t)

	cmd := protocol.Command{Opcode: protocol.OpSetState}
	cmd.Select(0, 20000, 1100)
	cmd.Select(1, 5000, 900)
	cmd.Select(2, 300, 1240)
	m.Dispatch(&cmd)

	if !b.RunUntilIdle(uint64(core.DefaultClock)) {
		t.Fatal("Moves did not finish")
	}
	st := m.Status(protocol.OpGetState)
	want := []protocol.AxisValue{{Position: 1100}, {Position: 900}, {Position: 1240}}
	for i, w := range want {
		if st.Axes[i] != w {
			t.Errorf("Axis %d: expected %+v, got %+v", i, w, st.Axes[i])
		}
	}
}

func TestBoardSpuriousInterrupt(t *testing.T) {
	m, b := newTestStage(t)

	// Stopped channel
	b.InjectSpurious(m.ChannelOf(1))
	if got := m.AxisState(1).Position; got != core.DefaultHome1 {
		t.Errorf("Spurious interrupt moved stopped axis to %d", got)
	}

	// Running channel with the output low
	move(m, 1, 10000, 1010)
	b.InjectSpurious(m.ChannelOf(1))
	if got := m.AxisState(1).Position; got != core.DefaultHome1 {
		t.Errorf("Spurious interrupt with output low moved axis to %d", got)
	}
}

// An overflow serviced after a command stopped its channel, with the
// output still high, must not count a step.
func TestBoardOverflowAfterStop(t *testing.T) {
	m, b := newTestStage(t)
	ch := b.Channel(m.ChannelOf(0))

	move(m, 0, 10000, 1200)
	b.Advance(800)
	if got := m.AxisState(0).Position; got != 1001 || !ch.OutputHigh() {
		t.Fatalf("Expected 1001 with output high, got %d high=%v", got, ch.OutputHigh())
	}

	// Stop in place, then deliver the pending overflow
	st := move(m, 0, 10000, 1001)
	if st.Axes[0].Frequency != 0 || ch.Running() {
		t.Fatalf("Expected channel stopped, got freq=%d running=%v", st.Axes[0].Frequency, ch.Running())
	}
	b.InjectSpurious(m.ChannelOf(0))
	if got := m.AxisState(0).Position; got != 1001 {
		t.Errorf("Overflow after stop moved axis to %d", got)
	}
}

func TestBoardRetargetMidMove(t *testing.T) {
	m, b := newTestStage(t)

	move(m, 0, 10000, 1200)
	b.Advance(800 * 20)
	if got := m.AxisState(0).Position; got != 1010 {
		t.Fatalf("Expected 1010 after 20 overflows, got %d", got)
	}

	move(m, 0, 10000, 1000)
	if !b.RunUntilIdle(uint64(core.DefaultClock)) {
		t.Fatal("Reverse move did not finish")
	}
	if as := m.AxisState(0); as.Position != 1000 || as.Running() {
		t.Errorf("Expected stop back at 1000, got %+v", as)
	}
}

func TestBoardConcurrentCommands(t *testing.T) {
	m, b := newTestStage(t)
	move(m, 0, 50000, 60000)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			b.Advance(5000)
		}
	}()

	for i := 0; i < 200; i++ {
		get := protocol.Command{Opcode: protocol.OpGetState}
		m.Dispatch(&get)
		if as := m.AxisState(0); as.Position == as.Target && as.Running() {
			t.Errorf("Axis running at target: %+v", as)
		}
		if i%50 == 0 {
			move(m, 0, 50000, uint16(2000+i))
		}
	}
	wg.Wait()

	for i := 0; i < m.NumAxes(); i++ {
		as := m.AxisState(i)
		if as.Position == as.Target && (as.Frequency != 0 || as.Channel.On) {
			t.Errorf("Axis %d stopped-at-target violated: %+v", i, as)
		}
	}
}

func TestBoardRunUntilIdleStopsAtLastStep(t *testing.T) {
	m, b := newTestStage(t)

	move(m, 0, 10000, 1200)
	if !b.RunUntilIdle(1 << 40) {
		t.Fatal("Board did not go idle")
	}
	if b.Now() != 399*800 {
		t.Errorf("Expected clock at %d, got %d", 399*800, b.Now())
	}
	if !b.RunUntilIdle(1000) || b.Now() != 399*800 {
		t.Error("Idle board must not advance")
	}
}
