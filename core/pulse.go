package core

// Pulse generator channels.
// A channel is a hardware counter running phase-correct PWM with its
// output toggling on compare match:
//
//	F_out = Clock / (ratio * ScaleFactor * TOP)
//
// where ratio is picked from the channel's prescaler list.

// Setting is one (prescaler, TOP) choice for a channel
type Setting struct {
	Index    int    // Slot in the channel's ratio list
	Ratio    uint32 // Prescaler ratio at Index
	Top      uint32 // Counter TOP value
	Achieved uint32 // Output frequency actually produced by (Ratio, Top)
}

// DeriveTimer picks the smallest prescaler ratio whose TOP fits in topMax
// for the requested frequency. When even the largest ratio overflows the
// counter, TOP is clamped and the frequency error accepted. Achieved is
// recomputed from the final, clamped pair. freq must be non-zero.
func DeriveTimer(clock, scale uint32, ratios []uint32, topMax, freq uint32) Setting {
	f := uint64(freq)
	s := uint64(scale)

	idx := 0
	top := uint64(clock) / (s * f * uint64(ratios[0]))
	for top > uint64(topMax) && idx < len(ratios)-1 {
		idx++
		top = uint64(clock) / (f * s * uint64(ratios[idx]))
	}
	if top > uint64(topMax) {
		top = uint64(topMax)
	}
	if top == 0 {
		// Request above Clock/(scale*ratio); run as fast as the counter allows
		top = 1
	}

	achieved := uint64(clock) / (top * s * uint64(ratios[idx]))
	if achieved > 0xFFFFFFFF {
		achieved = 0xFFFFFFFF
	}
	return Setting{
		Index:    idx,
		Ratio:    ratios[idx],
		Top:      uint32(top),
		Achieved: uint32(achieved),
	}
}

// PulseChannel is one pulse generator: the counter's clock table plus its
// current prescaler, TOP and run state.
//
// Mutating methods must be called with interrupts disabled; the position
// tracker disables channels from interrupt context.
type PulseChannel struct {
	ID   int
	Name string

	clock       uint32
	ratios      []uint32
	clockSelect []uint8
	clockMask   uint8
	topMax      uint32
	scale       uint32

	prescalerN int
	top        uint32
	on         bool

	hal PulseHAL
}

// ChannelState is a copy of a channel's run state
type ChannelState struct {
	PrescalerIndex int
	Ratio          uint32
	Top            uint32
	On             bool
}

func newPulseChannel(id int, clock uint32, cfg *ChannelConfig, hal PulseHAL) PulseChannel {
	mask := cfg.ClockMask
	if mask == 0 {
		for _, bits := range cfg.ClockSelect {
			mask |= bits
		}
	}
	return PulseChannel{
		ID:          id,
		Name:        cfg.Name,
		clock:       clock,
		ratios:      cfg.Ratios,
		clockSelect: cfg.ClockSelect,
		clockMask:   mask,
		topMax:      cfg.TopMax,
		scale:       cfg.ScaleFactor,
		hal:         hal,
	}
}

// Derive computes the setting for freq without touching the channel.
// Only immutable clock-table fields are read, so it is safe without the
// critical section.
func (c *PulseChannel) Derive(freq uint32) Setting {
	return DeriveTimer(c.clock, c.scale, c.ratios, c.topMax, freq)
}

// Apply stops the counter and loads s. The channel is left disabled.
func (c *PulseChannel) Apply(s Setting) {
	c.Disable()
	c.hal.SetTop(uint16(s.Top))
	c.top = s.Top
	c.prescalerN = s.Index
}

// Configure derives and applies the setting for freq and returns the
// achieved frequency. freq == 0 only disables the channel; prescaler and
// TOP keep their previous values.
func (c *PulseChannel) Configure(freq uint32) uint32 {
	if freq == 0 {
		c.Disable()
		return 0
	}
	s := c.Derive(freq)
	c.Apply(s)
	return s.Achieved
}

// Enable starts the counter with the stored prescaler
func (c *PulseChannel) Enable() {
	c.hal.ApplyPrescaler(c.clockSelect[c.prescalerN])
	c.on = true
}

// Disable stops the counter. Safe on a channel that is already off.
func (c *PulseChannel) Disable() {
	c.hal.ClearPrescaler(c.clockMask)
	c.on = false
}

// On reports whether the counter is running
func (c *PulseChannel) On() bool {
	return c.on
}

func (c *PulseChannel) state() ChannelState {
	return ChannelState{
		PrescalerIndex: c.prescalerN,
		Ratio:          c.ratios[c.prescalerN],
		Top:            c.top,
		On:             c.on,
	}
}
