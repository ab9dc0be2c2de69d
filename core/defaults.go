package core

// Board defaults: AT90USB/ATmega1284-class part at 16 MHz with two 8-bit
// and two 16-bit timers running phase-correct PWM, toggle on compare.
const (
	DefaultClock = 16000000
	DefaultHome0 = 1000
	DefaultHome1 = 1000
	DefaultHome2 = 1234
	DefaultFMax  = 50000
)

// Clock-select bits CSn2:0 shared by every timer on the part
const (
	csBit0    uint8 = 1 << 0
	csBit1    uint8 = 1 << 1
	csBit2    uint8 = 1 << 2
	csAllBits       = csBit2 | csBit1 | csBit0
)

var (
	// PrescalerRatios16 applies to timers 0, 1 and 3
	PrescalerRatios16 = []uint32{1, 8, 64, 256, 1024}
	// PrescalerRatios8 applies to the asynchronous timer 2
	PrescalerRatios8 = []uint32{1, 8, 32, 64, 128}

	defaultClockSelect = []uint8{csBit0, csBit1, csBit1 | csBit0, csBit2, csBit2 | csBit0}
)

// DefaultConfig returns the board table: three axes on timers 1, 3 and 2.
// Timer 0 is configured but left unbound.
func DefaultConfig() Config {
	timer := func(name string, ratios []uint32, topMax uint32) ChannelConfig {
		return ChannelConfig{
			Name:        name,
			Ratios:      ratios,
			ClockSelect: defaultClockSelect,
			ClockMask:   csAllBits,
			TopMax:      topMax,
			ScaleFactor: 4,
		}
	}
	return Config{
		Clock: DefaultClock,
		Channels: []ChannelConfig{
			timer("timer0", PrescalerRatios16, 255),
			timer("timer1", PrescalerRatios16, 65535),
			timer("timer2", PrescalerRatios8, 255),
			timer("timer3", PrescalerRatios16, 65535),
		},
		Axes: []AxisConfig{
			{Name: "x", Channel: 1, Home: DefaultHome0, FrequencyMax: DefaultFMax, DirectionPos: 0, DirectionNeg: 1},
			{Name: "y", Channel: 3, Home: DefaultHome1, FrequencyMax: DefaultFMax, DirectionPos: 0, DirectionNeg: 1},
			{Name: "z", Channel: 2, Home: DefaultHome2, FrequencyMax: DefaultFMax, DirectionPos: 0, DirectionNeg: 1},
		},
	}
}
