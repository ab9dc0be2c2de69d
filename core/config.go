package core

import (
	"errors"
	"fmt"

	"stage/protocol"
)

// Startup configuration errors. These are reported once by NewMotionState;
// nothing on the control path can produce them.
var (
	ErrNoAxes           = errors.New("no axes configured")
	ErrTooManyAxes      = errors.New("axis count exceeds command bitmask width")
	ErrBadChannel       = errors.New("axis bound to unknown channel")
	ErrChannelShared    = errors.New("channel bound to more than one axis")
	ErrBadRatios        = errors.New("prescaler ratios must be non-empty and ascending")
	ErrBadClockSelect   = errors.New("clock-select table does not match prescaler ratios")
	ErrBadScale         = errors.New("scale factor must be non-zero")
	ErrBadTopMax        = errors.New("counter width must be 1..65535")
	ErrBadClock         = errors.New("input clock must be non-zero")
	ErrBadHome          = errors.New("home position outside 16-bit position range")
	ErrBadPolarity      = errors.New("direction polarities must differ")
	ErrHardwareMismatch = errors.New("hardware bindings do not match configuration")
)

// ChannelConfig describes one hardware counter
type ChannelConfig struct {
	Name        string
	Ratios      []uint32 // Allowed prescaler ratios, ascending
	ClockSelect []uint8  // Clock-select bits for each ratio
	ClockMask   uint8    // All clock-select bits of this timer (0 = OR of ClockSelect)
	TopMax      uint32   // Largest TOP value the counter accepts
	ScaleFactor uint32   // F_out = Clock / (ratio * ScaleFactor * TOP)
}

// AxisConfig describes one motion axis
type AxisConfig struct {
	Name         string
	Channel      int    // Index into Config.Channels
	Home         int64  // Position at power-up
	FrequencyMax uint32 // Clamp for commanded step rate
	DirectionPos uint8  // Direction value meaning "towards larger positions"
	DirectionNeg uint8
}

// Config is the board table handed to NewMotionState
type Config struct {
	Clock    uint32 // Timer input clock in Hz
	Channels []ChannelConfig
	Axes     []AxisConfig
}

// Hardware binds a Config to concrete pins and timers. Channels is indexed
// like Config.Channels, Directions like Config.Axes.
type Hardware struct {
	Channels   []PulseHAL
	Directions []DirectionLine
}

// Validate checks the tables for startup errors
func (c *Config) Validate() error {
	if c.Clock == 0 {
		return ErrBadClock
	}
	if len(c.Axes) == 0 {
		return ErrNoAxes
	}
	if len(c.Axes) > protocol.MaxAxes {
		return fmt.Errorf("%w: %d > %d", ErrTooManyAxes, len(c.Axes), protocol.MaxAxes)
	}

	for i := range c.Channels {
		ch := &c.Channels[i]
		if len(ch.Ratios) == 0 || ch.Ratios[0] == 0 {
			return fmt.Errorf("channel %d: %w", i, ErrBadRatios)
		}
		for j := 1; j < len(ch.Ratios); j++ {
			if ch.Ratios[j] <= ch.Ratios[j-1] {
				return fmt.Errorf("channel %d: %w", i, ErrBadRatios)
			}
		}
		if len(ch.ClockSelect) != len(ch.Ratios) {
			return fmt.Errorf("channel %d: %w", i, ErrBadClockSelect)
		}
		for _, bits := range ch.ClockSelect {
			if bits == 0 || (ch.ClockMask != 0 && bits&^ch.ClockMask != 0) {
				return fmt.Errorf("channel %d: %w", i, ErrBadClockSelect)
			}
		}
		if ch.ScaleFactor == 0 {
			return fmt.Errorf("channel %d: %w", i, ErrBadScale)
		}
		if ch.TopMax == 0 || ch.TopMax > 0xFFFF {
			return fmt.Errorf("channel %d: %w", i, ErrBadTopMax)
		}
	}

	used := make(map[int]int, len(c.Axes))
	for i := range c.Axes {
		ax := &c.Axes[i]
		if ax.Channel < 0 || ax.Channel >= len(c.Channels) {
			return fmt.Errorf("axis %d: %w (%d)", i, ErrBadChannel, ax.Channel)
		}
		if prev, ok := used[ax.Channel]; ok {
			return fmt.Errorf("axis %d: %w (also axis %d)", i, ErrChannelShared, prev)
		}
		used[ax.Channel] = i
		if ax.Home < 0 || ax.Home > 0xFFFF {
			return fmt.Errorf("axis %d: %w", i, ErrBadHome)
		}
		if ax.DirectionPos == ax.DirectionNeg {
			return fmt.Errorf("axis %d: %w", i, ErrBadPolarity)
		}
	}
	return nil
}
