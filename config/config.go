// Package config loads the bench configuration: how to reach the stage and
// the board table used by the simulator and the derivation tool.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	"stage/core"
	"stage/host/serial"
)

//go:embed stage.toml
var defaultConfigData []byte

// Defaults filled in for keys the file leaves out
const (
	DefaultScale        = 4
	DefaultClockMask    = 0x07
	DefaultFrequencyMax = core.DefaultFMax
	DefaultReadTimeout  = 500
)

// Stock USB identity of the controller: vendor-class bulk interface 0
const (
	DefaultVendorID    = 0x03eb
	DefaultProductID   = 0x206c
	DefaultOutEndpoint = 0x04
	DefaultInEndpoint  = 0x83
)

// Transports
const (
	TransportSerial = "serial"
	TransportUSB    = "usb"
)

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Config represents the entire TOML configuration structure
type Config struct {
	Link  Link    `toml:"link"`
	Board Board   `toml:"board"`
	Timer []Timer `toml:"timer"`
	Axis  []Axis  `toml:"axis"`
}

// Link selects the transport to the controller
type Link struct {
	Transport     string  `toml:"transport"`
	Device        string  `toml:"device"`
	Baud          int     `toml:"baud"`
	ReadTimeoutMs int     `toml:"read_timeout_ms"`
	USB           USBLink `toml:"usb"`
}

// USBLink identifies the controller on the bus
type USBLink struct {
	VendorID    uint16 `toml:"vendor_id"`
	ProductID   uint16 `toml:"product_id"`
	Interface   int    `toml:"interface"`
	OutEndpoint int    `toml:"out_endpoint"`
	InEndpoint  int    `toml:"in_endpoint"`
}

// Board holds board-wide settings
type Board struct {
	Clock uint32 `toml:"clock"`
}

// Timer is one counter timer
type Timer struct {
	Name        string   `toml:"name"`
	Ratios      []uint32 `toml:"ratios"`
	ClockSelect []uint8  `toml:"clock_select"`
	ClockMask   uint8    `toml:"clock_mask"`
	TopMax      uint32   `toml:"top_max"`
	Scale       uint32   `toml:"scale"`
}

// Axis is one motion axis and the timer it steps from
type Axis struct {
	Name         string `toml:"name"`
	Timer        string `toml:"timer"`
	Home         int64  `toml:"home"`
	FrequencyMax uint32 `toml:"max_frequency"`
	DirectionPos uint8  `toml:"direction_pos"`
	DirectionNeg *uint8 `toml:"direction_neg"`
}

// DefaultPath returns ~/.stagectl.toml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine user home directory: %w", err)
	}
	return filepath.Join(home, ".stagectl.toml"), nil
}

// Default returns the embedded configuration
func Default() *Config {
	cfg, err := Parse(defaultConfigData)
	if err != nil {
		panic(fmt.Sprintf("embedded config: %v", err))
	}
	return cfg
}

// Load reads path. A missing file yields the embedded default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes, completes and validates a TOML document
func Parse(data []byte) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return nil, fmt.Errorf("%w: unknown key %q", ErrInvalid, undec[0].String())
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Link.Transport == "" {
		c.Link.Transport = TransportSerial
	}
	if c.Link.Baud == 0 {
		c.Link.Baud = serial.DefaultBaud
	}
	if c.Link.ReadTimeoutMs == 0 {
		c.Link.ReadTimeoutMs = DefaultReadTimeout
	}
	if c.Link.USB.VendorID == 0 && c.Link.USB.ProductID == 0 {
		c.Link.USB.VendorID = DefaultVendorID
		c.Link.USB.ProductID = DefaultProductID
	}
	if c.Link.USB.OutEndpoint == 0 {
		c.Link.USB.OutEndpoint = DefaultOutEndpoint
	}
	if c.Link.USB.InEndpoint == 0 {
		c.Link.USB.InEndpoint = DefaultInEndpoint
	}
	if c.Board.Clock == 0 {
		c.Board.Clock = core.DefaultClock
	}
	for i := range c.Timer {
		t := &c.Timer[i]
		if t.Scale == 0 {
			t.Scale = DefaultScale
		}
		if t.ClockMask == 0 {
			t.ClockMask = DefaultClockMask
		}
	}
	for i := range c.Axis {
		a := &c.Axis[i]
		if a.FrequencyMax == 0 {
			a.FrequencyMax = DefaultFrequencyMax
		}
		if a.DirectionNeg == nil {
			neg := uint8(1)
			if a.DirectionPos != 0 {
				neg = 0
			}
			a.DirectionNeg = &neg
		}
	}
}

// Validate checks the link settings and the board table
func (c *Config) Validate() error {
	switch c.Link.Transport {
	case TransportSerial, TransportUSB:
	default:
		return fmt.Errorf("%w: transport %q (want %q or %q)", ErrInvalid, c.Link.Transport, TransportSerial, TransportUSB)
	}
	if c.Link.Baud <= 0 {
		return fmt.Errorf("%w: baud %d", ErrInvalid, c.Link.Baud)
	}
	if _, err := c.ToCore(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// ToCore converts the board table for core.NewMotionState
func (c *Config) ToCore() (core.Config, error) {
	out := core.Config{Clock: c.Board.Clock}
	index := make(map[string]int, len(c.Timer))
	for i, t := range c.Timer {
		if _, dup := index[t.Name]; dup {
			return out, fmt.Errorf("timer %q defined twice", t.Name)
		}
		index[t.Name] = i
		out.Channels = append(out.Channels, core.ChannelConfig{
			Name:        t.Name,
			Ratios:      t.Ratios,
			ClockSelect: t.ClockSelect,
			ClockMask:   t.ClockMask,
			TopMax:      t.TopMax,
			ScaleFactor: t.Scale,
		})
	}
	for _, a := range c.Axis {
		ch, ok := index[a.Timer]
		if !ok {
			return out, fmt.Errorf("axis %q: unknown timer %q", a.Name, a.Timer)
		}
		neg := uint8(1)
		if a.DirectionNeg != nil {
			neg = *a.DirectionNeg
		}
		out.Axes = append(out.Axes, core.AxisConfig{
			Name:         a.Name,
			Channel:      ch,
			Home:         a.Home,
			FrequencyMax: a.FrequencyMax,
			DirectionPos: a.DirectionPos,
			DirectionNeg: neg,
		})
	}
	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

// AxisIndex resolves an axis name or a decimal index
func (c *Config) AxisIndex(name string) (int, error) {
	for i, a := range c.Axis {
		if a.Name == name {
			return i, nil
		}
	}
	if idx, err := strconv.Atoi(name); err == nil && idx >= 0 && idx < len(c.Axis) {
		return idx, nil
	}
	return 0, fmt.Errorf("unknown axis %q", name)
}

// SerialConfig returns the serial settings for device
func (c *Config) SerialConfig(device string) *serial.Config {
	sc := serial.DefaultConfig(device)
	sc.Baud = c.Link.Baud
	sc.ReadTimeout = c.Link.ReadTimeoutMs
	return sc
}

// USBID returns the controller's USB identity for serial port discovery
func (c *Config) USBID() serial.USBID {
	return serial.USBID{Vendor: c.Link.USB.VendorID, Product: c.Link.USB.ProductID}
}
