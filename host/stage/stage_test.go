package stage

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"stage/core"
	"stage/protocol"
	"stage/sim"
)

// loopback runs the firmware packet task on a simulated board
type loopback struct {
	task    *core.PacketTask
	board   *sim.Board
	pending bytes.Buffer
	hooks   []string
	closed  bool
}

func newLoopback(t *testing.T) *loopback {
	t.Helper()
	cfg := core.DefaultConfig()
	l := &loopback{board: sim.NewBoard(cfg)}
	m, err := core.NewMotionState(cfg, l.board.Hardware())
	if err != nil {
		t.Fatalf("NewMotionState failed: %v", err)
	}
	m.Attach(l.board)
	l.task = core.NewPacketTask(m, core.SystemHooks{
		Reset:      func() { l.hooks = append(l.hooks, "reset") },
		Bootloader: func() { l.hooks = append(l.hooks, "bootloader") },
	})
	return l
}

func (l *loopback) Write(p []byte) (int, error) {
	out, after, err := l.task.Handle(p)
	if err != nil {
		return 0, err
	}
	l.pending.Write(out)
	if after != nil {
		after()
	}
	return len(p), nil
}

func (l *loopback) Read(p []byte) (int, error) { return l.pending.Read(p) }
func (l *loopback) Close() error               { l.closed = true; return nil }

func newTestStage(t *testing.T) (*Stage, *loopback) {
	t.Helper()
	l := newLoopback(t)
	s, err := New(l, 3)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s, l
}

func TestStageMoveAndWait(t *testing.T) {
	s, l := newTestStage(t)

	st, err := s.MoveTo(0, 10000, 1200)
	if err != nil {
		t.Fatalf("MoveTo failed: %v", err)
	}
	if st.Axes[0].Frequency != 10000 {
		t.Errorf("Expected 10000 Hz, got %d", st.Axes[0].Frequency)
	}
	if Idle(&st, s.Axes()) {
		t.Error("Stage idle right after move")
	}

	l.board.RunUntilIdle(uint64(core.DefaultClock))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	st, err = s.WaitIdle(ctx, time.Millisecond)
	if err != nil {
		t.Fatalf("WaitIdle failed: %v", err)
	}
	if st.Axes[0].Position != 1200 {
		t.Errorf("Expected position 1200, got %d", st.Axes[0].Position)
	}
}

func TestStageStop(t *testing.T) {
	s, l := newTestStage(t)

	if _, err := s.MoveTo(1, 10000, 2000); err != nil {
		t.Fatalf("MoveTo failed: %v", err)
	}
	l.board.Advance(800 * 100)

	st, err := s.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !Idle(&st, 3) {
		t.Errorf("Expected all axes stopped, got %+v", st.Axes)
	}
	if st.Axes[1].Position != 1050 {
		t.Errorf("Expected axis 1 halted at 1050, got %d", st.Axes[1].Position)
	}

	l.board.Advance(800 * 100)
	if st, _ = s.GetState(); st.Axes[1].Position != 1050 {
		t.Errorf("Axis moved after stop: %d", st.Axes[1].Position)
	}
}

func TestStageSystemOpcodes(t *testing.T) {
	s, l := newTestStage(t)

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if err := s.EnterBootloader(); err != nil {
		t.Fatalf("EnterBootloader failed: %v", err)
	}
	if len(l.hooks) != 2 || l.hooks[0] != "reset" || l.hooks[1] != "bootloader" {
		t.Errorf("Unexpected hook calls %v", l.hooks)
	}
}

func TestStageBadAxis(t *testing.T) {
	s, _ := newTestStage(t)
	if _, err := s.MoveTo(3, 100, 100); !errors.Is(err, ErrBadAxis) {
		t.Errorf("Expected ErrBadAxis, got %v", err)
	}
	if _, err := s.Stop(7); !errors.Is(err, ErrBadAxis) {
		t.Errorf("Expected ErrBadAxis, got %v", err)
	}
}

func TestStageClose(t *testing.T) {
	s, l := newTestStage(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !l.closed {
		t.Error("Link not closed")
	}
	if _, err := s.GetState(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
}

// scriptLink answers every command with a fixed reply
type scriptLink struct {
	reply []byte
	r     *bytes.Reader
}

func (l *scriptLink) Write(p []byte) (int, error) {
	l.r = bytes.NewReader(l.reply)
	return len(p), nil
}

func (l *scriptLink) Read(p []byte) (int, error) { return l.r.Read(p) }

func TestStageOpcodeMismatch(t *testing.T) {
	reply, _ := protocol.AppendStatus(nil, &protocol.Status{Opcode: protocol.OpSetState}, 3)
	s, err := New(&scriptLink{reply: reply}, 3)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := s.GetState(); !errors.Is(err, ErrOpcodeMismatch) {
		t.Errorf("Expected ErrOpcodeMismatch, got %v", err)
	}
}

func TestStageShortStatus(t *testing.T) {
	s, err := New(&scriptLink{reply: []byte{protocol.OpGetState, 0, 0}}, 3)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := s.GetState(); err == nil {
		t.Error("Expected error for truncated status")
	}
}

func TestNewRejectsAxisCount(t *testing.T) {
	if _, err := New(&scriptLink{}, 0); !errors.Is(err, protocol.ErrAxisCount) {
		t.Errorf("Expected ErrAxisCount, got %v", err)
	}
}
