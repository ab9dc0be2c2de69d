// Package protocol implements the stage's fixed-size command and status
// records. Both are little endian:
//
//	command: opcode u8, axis mask u8, N x (frequency u16, position u16)
//	status:  opcode u8,               N x (frequency u16, position u16)
package protocol

// Version represents the stage firmware version
const Version = "0.3.0"

// Opcodes
const (
	OpGetState   uint8 = 1   // Echo current state
	OpSetState   uint8 = 2   // Apply setpoints
	OpReset      uint8 = 200 // Reset the MCU (handled outside the motion core)
	OpBootloader uint8 = 201 // Reboot into the bootloader (handled outside the motion core)
)

// Record layout constants
const (
	MaxAxes       = 8 // Width of the axis-update bitmask
	CommandHeader = 2 // opcode + mask
	StatusHeader  = 1 // opcode
	AxisFieldSize = 4 // frequency u16 + position u16
)

// CommandSize returns the size of a command record for n axes
func CommandSize(n int) int {
	return CommandHeader + n*AxisFieldSize
}

// StatusSize returns the size of a status record for n axes
func StatusSize(n int) int {
	return StatusHeader + n*AxisFieldSize
}

// OpcodeName returns a printable opcode name
func OpcodeName(op uint8) string {
	switch op {
	case OpGetState:
		return "get_state"
	case OpSetState:
		return "set_state"
	case OpReset:
		return "reset"
	case OpBootloader:
		return "bootloader"
	default:
		return "unknown"
	}
}
