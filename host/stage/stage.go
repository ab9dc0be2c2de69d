// Package stage is the bench-side link to a stage controller: it sends one
// command record and reads back the status record the device answers with.
package stage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"stage/host/serial"
	"stage/protocol"
)

var (
	// ErrNotConnected is returned after Close
	ErrNotConnected = errors.New("not connected to stage")
	// ErrOpcodeMismatch is returned when a status does not echo the command
	ErrOpcodeMismatch = errors.New("status does not echo command opcode")
	// ErrBadAxis is returned for axis indexes outside the link's axis count
	ErrBadAxis = errors.New("axis out of range")
)

// Stage is a connection to one stage controller
type Stage struct {
	link   io.ReadWriter
	closer io.Closer
	axes   int

	tx []byte
	rx []byte

	connected bool
}

// New wraps an open link to a controller with axes axes. If link is an
// io.Closer, Close closes it.
func New(link io.ReadWriter, axes int) (*Stage, error) {
	if axes < 1 || axes > protocol.MaxAxes {
		return nil, fmt.Errorf("%w: %d", protocol.ErrAxisCount, axes)
	}
	s := &Stage{
		link:      link,
		axes:      axes,
		tx:        make([]byte, 0, protocol.CommandSize(axes)),
		rx:        make([]byte, protocol.StatusSize(axes)),
		connected: true,
	}
	if c, ok := link.(io.Closer); ok {
		s.closer = c
	}
	return s, nil
}

// Connect opens a stage on a serial device with default settings
func Connect(device string, axes int) (*Stage, error) {
	return ConnectWithConfig(serial.DefaultConfig(device), axes)
}

// ConnectWithConfig opens a stage on a serial port
func ConnectWithConfig(cfg *serial.Config, axes int) (*Stage, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	// Drop anything left over from an earlier session
	if err := port.Flush(); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to flush serial port: %w", err)
	}
	s, err := New(port, axes)
	if err != nil {
		port.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying link
func (s *Stage) Close() error {
	if !s.connected {
		return nil
	}
	s.connected = false
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// Axes returns the number of axes on the link
func (s *Stage) Axes() int {
	return s.axes
}

// Exchange sends cmd and returns the decoded status
func (s *Stage) Exchange(cmd *protocol.Command) (protocol.Status, error) {
	var st protocol.Status
	if !s.connected {
		return st, ErrNotConnected
	}

	out, err := protocol.AppendCommand(s.tx[:0], cmd, s.axes)
	if err != nil {
		return st, err
	}
	if _, err := s.link.Write(out); err != nil {
		return st, fmt.Errorf("failed to send %s: %w", protocol.OpcodeName(cmd.Opcode), err)
	}

	if _, err := io.ReadFull(s.link, s.rx); err != nil {
		return st, fmt.Errorf("failed to receive %s status: %w", protocol.OpcodeName(cmd.Opcode), err)
	}
	if err := protocol.DecodeStatus(s.rx, s.axes, &st); err != nil {
		return st, err
	}
	if st.Opcode != cmd.Opcode {
		return st, fmt.Errorf("%w: sent %d, got %d", ErrOpcodeMismatch, cmd.Opcode, st.Opcode)
	}
	return st, nil
}

// GetState reads frequency and position of every axis
func (s *Stage) GetState() (protocol.Status, error) {
	return s.Exchange(&protocol.Command{Opcode: protocol.OpGetState})
}

// SetState sends the setpoints selected in cmd.Update. cmd.Opcode is
// forced to set-state.
func (s *Stage) SetState(cmd *protocol.Command) (protocol.Status, error) {
	cmd.Opcode = protocol.OpSetState
	return s.Exchange(cmd)
}

// MoveTo starts one axis towards position at frequency steps per second
func (s *Stage) MoveTo(axis int, frequency, position uint16) (protocol.Status, error) {
	if axis < 0 || axis >= s.axes {
		return protocol.Status{}, fmt.Errorf("%w: %d", ErrBadAxis, axis)
	}
	var cmd protocol.Command
	cmd.Select(axis, frequency, position)
	return s.SetState(&cmd)
}

// Stop halts axes by setting their targets to the current positions. With
// no axes given every axis is stopped.
func (s *Stage) Stop(axes ...int) (protocol.Status, error) {
	st, err := s.GetState()
	if err != nil {
		return st, err
	}
	if len(axes) == 0 {
		for i := 0; i < s.axes; i++ {
			axes = append(axes, i)
		}
	}

	var cmd protocol.Command
	for _, axis := range axes {
		if axis < 0 || axis >= s.axes {
			return st, fmt.Errorf("%w: %d", ErrBadAxis, axis)
		}
		cmd.Select(axis, 0, st.Axes[axis].Position)
	}
	return s.SetState(&cmd)
}

// Reset resets the controller. The status echo is sent before the reset.
func (s *Stage) Reset() error {
	_, err := s.Exchange(&protocol.Command{Opcode: protocol.OpReset})
	return err
}

// EnterBootloader reboots the controller into its firmware loader
func (s *Stage) EnterBootloader() error {
	_, err := s.Exchange(&protocol.Command{Opcode: protocol.OpBootloader})
	return err
}

// WaitIdle polls every interval until all axes report zero frequency
func (s *Stage) WaitIdle(ctx context.Context, interval time.Duration) (protocol.Status, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		st, err := s.GetState()
		if err != nil {
			return st, err
		}
		if Idle(&st, s.axes) {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Idle reports whether the first n axes of st are stopped
func Idle(st *protocol.Status, n int) bool {
	for i := 0; i < n; i++ {
		if st.Axes[i].Frequency != 0 {
			return false
		}
	}
	return true
}
