package core

import (
	"errors"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config invalid: %v", err)
	}
	if len(cfg.Axes) != 3 || len(cfg.Channels) != 4 {
		t.Errorf("Expected 3 axes on 4 timers, got %d on %d", len(cfg.Axes), len(cfg.Channels))
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"zero clock", func(c *Config) { c.Clock = 0 }, ErrBadClock},
		{"no axes", func(c *Config) { c.Axes = nil }, ErrNoAxes},
		{"too many axes", func(c *Config) {
			for len(c.Axes) <= 8 {
				c.Axes = append(c.Axes, c.Axes[0])
			}
		}, ErrTooManyAxes},
		{"unknown channel", func(c *Config) { c.Axes[0].Channel = 9 }, ErrBadChannel},
		{"shared channel", func(c *Config) { c.Axes[1].Channel = c.Axes[0].Channel }, ErrChannelShared},
		{"descending ratios", func(c *Config) { c.Channels[1].Ratios = []uint32{8, 1, 64, 256, 1024} }, ErrBadRatios},
		{"empty ratios", func(c *Config) { c.Channels[0].Ratios = nil }, ErrBadRatios},
		{"clock select length", func(c *Config) { c.Channels[1].ClockSelect = c.Channels[1].ClockSelect[:2] }, ErrBadClockSelect},
		{"clock select outside mask", func(c *Config) { c.Channels[1].ClockSelect = []uint8{1, 2, 3, 4, 8} }, ErrBadClockSelect},
		{"zero scale", func(c *Config) { c.Channels[2].ScaleFactor = 0 }, ErrBadScale},
		{"wide counter", func(c *Config) { c.Channels[3].TopMax = 70000 }, ErrBadTopMax},
		{"negative home", func(c *Config) { c.Axes[2].Home = -1 }, ErrBadHome},
		{"same polarity", func(c *Config) { c.Axes[0].DirectionNeg = c.Axes[0].DirectionPos }, ErrBadPolarity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNewMotionStateHardwareMismatch(t *testing.T) {
	cfg := DefaultConfig()
	b := &fakeBoard{timers: []*fakeTimer{newFakeTimer()}}
	if _, err := NewMotionState(cfg, b.hardware()); !errors.Is(err, ErrHardwareMismatch) {
		t.Errorf("Expected ErrHardwareMismatch, got %v", err)
	}
}

func TestNewMotionStateStartsStopped(t *testing.T) {
	m, b := newTestMotion(t)
	homes := []int64{DefaultHome0, DefaultHome1, DefaultHome2}

	for i := 0; i < m.NumAxes(); i++ {
		st := m.AxisState(i)
		if st.Position != homes[i] || st.Target != homes[i] {
			t.Errorf("Axis %d: expected home %d, got %+v", i, homes[i], st)
		}
		if st.Running() || st.Dirty {
			t.Errorf("Axis %d: expected clean stopped axis, got %+v", i, st)
		}
		if b.timerOf(m, i).control != fakeWGM {
			t.Errorf("Axis %d: clock-select bits set at startup", i)
		}
	}
}
