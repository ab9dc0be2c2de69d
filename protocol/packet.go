package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrShortRecord is returned when a buffer is smaller than the record
	ErrShortRecord = errors.New("record too short")
	// ErrAxisCount is returned for axis counts outside 1..MaxAxes
	ErrAxisCount = errors.New("axis count out of range")
	// ErrFifoFull is returned when a RecordFifo cannot take more bytes
	ErrFifoFull = errors.New("record buffer full")
)

// AxisValue is one (frequency, position) pair as carried on the wire
type AxisValue struct {
	Frequency uint16
	Position  uint16
}

// Command is a decoded host request
type Command struct {
	Opcode    uint8
	Update    uint8 // Bit n selects axis n
	Setpoints [MaxAxes]AxisValue
}

// Selected reports whether axis is marked for update
func (c *Command) Selected(axis int) bool {
	return c.Update&(1<<uint(axis)) != 0
}

// Select marks axis for update with the given setpoint
func (c *Command) Select(axis int, frequency, position uint16) {
	c.Update |= 1 << uint(axis)
	c.Setpoints[axis] = AxisValue{Frequency: frequency, Position: position}
}

// Status is the reply to every command
type Status struct {
	Opcode uint8
	Axes   [MaxAxes]AxisValue
}

func checkAxes(n int) error {
	if n < 1 || n > MaxAxes {
		return fmt.Errorf("%w: %d", ErrAxisCount, n)
	}
	return nil
}

// AppendCommand appends the n-axis encoding of c to dst
func AppendCommand(dst []byte, c *Command, n int) ([]byte, error) {
	if err := checkAxes(n); err != nil {
		return dst, err
	}
	dst = append(dst, c.Opcode, c.Update)
	for i := 0; i < n; i++ {
		dst = binary.LittleEndian.AppendUint16(dst, c.Setpoints[i].Frequency)
		dst = binary.LittleEndian.AppendUint16(dst, c.Setpoints[i].Position)
	}
	return dst, nil
}

// DecodeCommand decodes an n-axis command record into c
func DecodeCommand(b []byte, n int, c *Command) error {
	if err := checkAxes(n); err != nil {
		return err
	}
	if len(b) < CommandSize(n) {
		return fmt.Errorf("%w: command needs %d bytes, have %d", ErrShortRecord, CommandSize(n), len(b))
	}
	*c = Command{Opcode: b[0], Update: b[1]}
	p := b[CommandHeader:]
	for i := 0; i < n; i++ {
		c.Setpoints[i].Frequency = binary.LittleEndian.Uint16(p[0:])
		c.Setpoints[i].Position = binary.LittleEndian.Uint16(p[2:])
		p = p[AxisFieldSize:]
	}
	return nil
}

// AppendStatus appends the n-axis encoding of s to dst
func AppendStatus(dst []byte, s *Status, n int) ([]byte, error) {
	if err := checkAxes(n); err != nil {
		return dst, err
	}
	dst = append(dst, s.Opcode)
	for i := 0; i < n; i++ {
		dst = binary.LittleEndian.AppendUint16(dst, s.Axes[i].Frequency)
		dst = binary.LittleEndian.AppendUint16(dst, s.Axes[i].Position)
	}
	return dst, nil
}

// DecodeStatus decodes an n-axis status record into s
func DecodeStatus(b []byte, n int, s *Status) error {
	if err := checkAxes(n); err != nil {
		return err
	}
	if len(b) < StatusSize(n) {
		return fmt.Errorf("%w: status needs %d bytes, have %d", ErrShortRecord, StatusSize(n), len(b))
	}
	*s = Status{Opcode: b[0]}
	p := b[StatusHeader:]
	for i := 0; i < n; i++ {
		s.Axes[i].Frequency = binary.LittleEndian.Uint16(p[0:])
		s.Axes[i].Position = binary.LittleEndian.Uint16(p[2:])
		p = p[AxisFieldSize:]
	}
	return nil
}
