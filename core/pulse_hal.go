package core

// PulseHAL is the hardware side of one pulse generator channel.
// Implementations wrap a counter/timer whose output toggles on compare
// match, so one full output cycle takes two counter overflows.
// All methods may be called from interrupt context and must not block.
type PulseHAL interface {
	// ApplyPrescaler ORs bits into the timer's clock-select field.
	// Bits outside the clock-select field must be left untouched.
	ApplyPrescaler(bits uint8)

	// ClearPrescaler clears exactly the bits in mask from the
	// clock-select field, stopping the counter.
	ClearPrescaler(mask uint8)

	// SetTop writes the counter's TOP (reload) value.
	SetTop(top uint16)

	// OutputHigh reports the current level of the waveform output pin.
	// The position tracker uses it to tell a completed cycle from a
	// spurious overflow.
	OutputHigh() bool
}

// DirectionLine drives one axis's direction output.
type DirectionLine interface {
	// SetDirection drives the line high (true) or low (false)
	SetDirection(high bool)
}

// OverflowSource delivers counter overflow events to the position tracker.
// Attach registers fn for the timer bound to axis; the source must call
// fn(axis) once per overflow, in interrupt context.
type OverflowSource interface {
	Attach(channel, axis int, fn func(axis int))
}
