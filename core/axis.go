package core

import (
	"fmt"
)

// Axis is one motion axis bound to one pulse channel.
//
// frequency, position, target, direction and dirty are shared with the
// position tracker and must only be touched inside a critical section.
type Axis struct {
	Name    string
	channel int

	frequency    uint32 // Commanded step rate, 0 = stopped
	frequencyMax uint32
	position     int64
	target       int64
	direction    uint8
	directionPos uint8
	directionNeg uint8
	dirty        bool
}

// AxisState is a consistent copy of an axis taken under the guard
type AxisState struct {
	Frequency uint32
	Position  int64
	Target    int64
	Direction uint8
	Dirty     bool
	Channel   ChannelState
}

// Running reports whether the axis is in the RUNNING state
func (s AxisState) Running() bool {
	return s.Frequency > 0 && s.Channel.On
}

// MotionState owns the axis and channel tables. Only the dispatcher
// (foreground) and the position tracker (interrupt) mutate it.
type MotionState struct {
	axes     []Axis
	channels []PulseChannel
	dirLines []DirectionLine
}

// NewMotionState validates cfg, binds it to hw and runs one update pass so
// every channel starts stopped with the direction lines in a known state.
func NewMotionState(cfg Config, hw Hardware) (*MotionState, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid motion config: %w", err)
	}
	if len(hw.Channels) != len(cfg.Channels) || len(hw.Directions) != len(cfg.Axes) {
		return nil, fmt.Errorf("%w: %d/%d channels, %d/%d direction lines", ErrHardwareMismatch,
			len(hw.Channels), len(cfg.Channels), len(hw.Directions), len(cfg.Axes))
	}

	m := &MotionState{
		axes:     make([]Axis, len(cfg.Axes)),
		channels: make([]PulseChannel, len(cfg.Channels)),
		dirLines: hw.Directions,
	}
	for i := range cfg.Channels {
		if hw.Channels[i] == nil {
			return nil, fmt.Errorf("%w: channel %d has no driver", ErrHardwareMismatch, i)
		}
		m.channels[i] = newPulseChannel(i, cfg.Clock, &cfg.Channels[i], hw.Channels[i])
	}
	for i := range cfg.Axes {
		ac := &cfg.Axes[i]
		if hw.Directions[i] == nil {
			return nil, fmt.Errorf("%w: axis %d has no direction line", ErrHardwareMismatch, i)
		}
		m.axes[i] = Axis{
			Name:         ac.Name,
			channel:      ac.Channel,
			frequencyMax: ac.FrequencyMax,
			position:     ac.Home,
			target:       ac.Home,
			direction:    ac.DirectionPos,
			directionPos: ac.DirectionPos,
			directionNeg: ac.DirectionNeg,
			dirty:        true,
		}
	}

	m.UpdateAll()
	return m, nil
}

// NumAxes returns the number of configured axes
func (m *MotionState) NumAxes() int {
	return len(m.axes)
}

// ChannelOf returns the channel index bound to axis
func (m *MotionState) ChannelOf(axis int) int {
	return m.axes[axis].channel
}

// AxisState returns a guarded snapshot of one axis
func (m *MotionState) AxisState(axis int) AxisState {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	a := &m.axes[axis]
	return AxisState{
		Frequency: a.frequency,
		Position:  a.position,
		Target:    a.target,
		Direction: a.direction,
		Dirty:     a.dirty,
		Channel:   m.channels[a.channel].state(),
	}
}

// Attach registers the position tracker with src, one callback per axis
func (m *MotionState) Attach(src OverflowSource) {
	for i := range m.axes {
		src.Attach(m.axes[i].channel, i, m.Overflow)
	}
}
