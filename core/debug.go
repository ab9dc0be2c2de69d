package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// MotionEvent captures one motion event for post-mortem analysis
type MotionEvent struct {
	Seq    uint32 // Running event number
	Type   uint8  // Event type code
	Axis   uint8
	Value1 uint32 // Context-dependent value
	Value2 uint32 // Context-dependent value
}

// Event type codes
const (
	EvtSetpoint      = 1 // Setpoint stored: frequency, target
	EvtChannelOn     = 2 // Channel started: ratio, top
	EvtTargetReached = 3 // Tracker stopped the axis: position
	EvtPacket        = 4 // Packet handled: opcode, mask
)

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Event ring buffer, written with interrupts disabled
	eventRing     [EventRingSize]MotionEvent
	eventRingHead uint8
	eventSeq      uint32
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, stderr, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordEvent stores an event in the ring buffer. Callers hold the
// critical section (or run in interrupt context); it never allocates.
func RecordEvent(eventType, axis uint8, value1, value2 uint32) {
	idx := eventRingHead
	eventSeq++
	eventRing[idx] = MotionEvent{
		Seq:    eventSeq,
		Type:   eventType,
		Axis:   axis,
		Value1: value1,
		Value2: value2,
	}
	eventRingHead = (idx + 1) % EventRingSize
}

// Events returns the buffered events, oldest first
func Events() []MotionEvent {
	state := disableInterrupts()
	ring := eventRing
	head := eventRingHead
	restoreInterrupts(state)

	out := make([]MotionEvent, 0, EventRingSize)
	for i := uint8(0); i < EventRingSize; i++ {
		evt := ring[(head+i)%EventRingSize]
		if evt.Type == 0 {
			continue // Empty slot
		}
		out = append(out, evt)
	}
	return out
}

// DumpEvents writes the event ring through the debug writer
func DumpEvents() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[MOTION] === Event Ring Dump ===")
	for _, evt := range Events() {
		var name string
		switch evt.Type {
		case EvtSetpoint:
			name = "SETPOINT"
		case EvtChannelOn:
			name = "CHANNEL_ON"
		case EvtTargetReached:
			name = "TARGET_REACHED"
		case EvtPacket:
			name = "PACKET"
		default:
			name = "UNKNOWN"
		}

		debugPrintln("[MOTION] #" + utoa(evt.Seq) + " " + name +
			" axis=" + utoa(uint32(evt.Axis)) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[MOTION] === End Dump ===")
}

// ClearEvents clears the event ring
func ClearEvents() {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	for i := range eventRing {
		eventRing[i] = MotionEvent{}
	}
	eventRingHead = 0
}
