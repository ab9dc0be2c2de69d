package core

import (
	"errors"
	"fmt"
	"io"

	"stage/protocol"
)

// SystemHooks are the board actions behind the opcodes the motion core
// does not handle. Any of them may be nil.
type SystemHooks struct {
	InitIO     func() // Configure output lines; run before the first set-state
	Reset      func() // Reset the MCU; does not return on hardware
	Bootloader func() // Reboot into the bootloader
}

// PacketTask turns command records into status records
type PacketTask struct {
	motion    *MotionState
	registry  *CommandRegistry
	hooks     SystemHooks
	ioEnabled bool
	errors    uint32

	cmd protocol.Command
	in  []byte
	out []byte
}

// NewPacketTask registers the stage opcodes and returns a task bound to m
func NewPacketTask(m *MotionState, hooks SystemHooks) *PacketTask {
	t := &PacketTask{
		motion:   m,
		registry: NewCommandRegistry(),
		hooks:    hooks,
		in:       make([]byte, protocol.CommandSize(m.NumAxes())),
		out:      make([]byte, 0, protocol.StatusSize(m.NumAxes())),
	}

	t.registry.Register(protocol.OpGetState, "get_state", t.handleState)
	t.registry.Register(protocol.OpSetState, "set_state", t.handleState)
	t.registry.Register(protocol.OpReset, "reset", func(cmd *protocol.Command) (protocol.Status, func()) {
		return t.motion.Status(cmd.Opcode), t.hooks.Reset
	})
	t.registry.Register(protocol.OpBootloader, "bootloader", func(cmd *protocol.Command) (protocol.Status, func()) {
		return t.motion.Status(cmd.Opcode), t.hooks.Bootloader
	})
	return t
}

// Registry returns the task's opcode table
func (t *PacketTask) Registry() *CommandRegistry {
	return t.registry
}

// CommandSize returns the record size the task expects
func (t *PacketTask) CommandSize() int {
	return len(t.in)
}

func (t *PacketTask) handleState(cmd *protocol.Command) (protocol.Status, func()) {
	if cmd.Opcode == protocol.OpSetState && !t.ioEnabled {
		if t.hooks.InitIO != nil {
			t.hooks.InitIO()
		}
		t.ioEnabled = true
	}
	return t.motion.Dispatch(cmd), nil
}

// Handle processes one command record. It returns the encoded status and
// the action to run after the status has been sent (nil for none). The
// returned slice is reused by the next call.
func (t *PacketTask) Handle(record []byte) ([]byte, func(), error) {
	cmd := &t.cmd
	if err := protocol.DecodeCommand(record, t.motion.NumAxes(), cmd); err != nil {
		return nil, nil, err
	}
	update := cmd.Update

	st, after, err := t.registry.Dispatch(cmd)
	if errors.Is(err, ErrUnknownOpcode) {
		// Unknown opcodes are a defined no-op: echo current state
		st, after = t.motion.Dispatch(cmd), nil
	}

	state := disableInterrupts()
	RecordEvent(EvtPacket, 0, uint32(cmd.Opcode), uint32(update))
	restoreInterrupts(state)
	if IsDebugEnabled() {
		DebugPrintln("[PACKET] op=" + utoa(uint32(cmd.Opcode)) + " " + protocol.OpcodeName(cmd.Opcode))
	}

	out, err := protocol.AppendStatus(t.out[:0], &st, t.motion.NumAxes())
	if err != nil {
		return nil, nil, err
	}
	t.out = out
	return out, after, nil
}

// Poll handles one record from fifo if a whole one is buffered. It
// reports whether a record was processed.
func (t *PacketTask) Poll(fifo *protocol.RecordFifo, w io.Writer) (bool, error) {
	if !fifo.Next(t.in) {
		return false, nil
	}
	return true, t.reply(t.in, w)
}

// Service is one pass of a byte-stream packet loop. idle reports that the
// line has been quiet longer than a record takes to arrive; a partial
// record is then stray bytes and gets dropped so the next byte starts a
// new record. Failures are counted and reported through the debug writer.
// It reports whether a record was processed.
func (t *PacketTask) Service(fifo *protocol.RecordFifo, w io.Writer, idle bool) bool {
	if idle {
		if n := fifo.DropPartial(len(t.in)); n > 0 {
			t.errors++
			DebugPrintln("[PACKET] dropped " + utoa(uint32(n)) + " stray bytes")
		}
	}
	ok, err := t.Poll(fifo, w)
	if err != nil {
		t.errors++
		DebugPrintln("[PACKET] error: " + err.Error())
	}
	return ok
}

// Errors returns the number of failed or dropped records seen by Service
func (t *PacketTask) Errors() uint32 {
	return t.errors
}

// Serve reads command records from rw until it fails, answering each one.
// io.EOF from the link ends Serve with a nil error.
func (t *PacketTask) Serve(rw io.ReadWriter) error {
	for {
		if _, err := io.ReadFull(rw, t.in); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read command: %w", err)
		}
		if err := t.reply(t.in, rw); err != nil {
			return err
		}
	}
}

func (t *PacketTask) reply(record []byte, w io.Writer) error {
	out, after, err := t.Handle(record)
	if err != nil {
		return err
	}
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	if after != nil {
		after()
	}
	return nil
}
