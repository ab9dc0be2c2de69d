// Package usb opens the stage's vendor-class bulk interface with gousb.
// The device answers every command record on the OUT endpoint with one
// status record on the IN endpoint.
package usb

import (
	"fmt"

	"github.com/google/gousb"

	"stage/host/stage"
)

// Config selects the device and endpoints
type Config struct {
	VendorID  uint16
	ProductID uint16
	Interface int
	OutAddr   int
	InAddr    int
}

// Link is an open bulk connection. It implements io.ReadWriteCloser.
type Link struct {
	ctx     *gousb.Context
	dev     *gousb.Device
	done    func()
	bulkOut *gousb.OutEndpoint
	bulkIn  *gousb.InEndpoint
}

// Open finds the first device matching cfg and claims its interface
func Open(cfg *Config) (*Link, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	ctx := gousb.NewContext()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return uint16(desc.Vendor) == cfg.VendorID && uint16(desc.Product) == cfg.ProductID
	})
	if err != nil {
		// OpenDevices reports partial failures alongside any devices it did open
		for _, d := range devs {
			d.Close()
		}
		ctx.Close()
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}
	if len(devs) == 0 {
		ctx.Close()
		return nil, fmt.Errorf("stage not found (VID=0x%04X PID=0x%04X)", cfg.VendorID, cfg.ProductID)
	}

	dev := devs[0]
	for i := 1; i < len(devs); i++ {
		devs[i].Close()
	}

	usbCfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("failed to get config 1: %w", err)
	}

	intf, err := usbCfg.Interface(cfg.Interface, 0)
	if err != nil {
		usbCfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("failed to claim interface %d: %w", cfg.Interface, err)
	}

	done := func() {
		intf.Close()
		usbCfg.Close()
	}

	bulkOut, err := intf.OutEndpoint(cfg.OutAddr)
	if err != nil {
		done()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("failed to open bulk out endpoint: %w", err)
	}

	bulkIn, err := intf.InEndpoint(cfg.InAddr)
	if err != nil {
		done()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("failed to open bulk in endpoint: %w", err)
	}

	return &Link{
		ctx:     ctx,
		dev:     dev,
		done:    done,
		bulkOut: bulkOut,
		bulkIn:  bulkIn,
	}, nil
}

// Write sends one command record
func (l *Link) Write(p []byte) (int, error) {
	return l.bulkOut.Write(p)
}

// Read receives status bytes. A whole record arrives in one transfer.
func (l *Link) Read(p []byte) (int, error) {
	return l.bulkIn.Read(p)
}

// Close releases the interface, the device and the context
func (l *Link) Close() error {
	if l.done != nil {
		l.done()
	}
	if l.dev != nil {
		l.dev.Close()
	}
	if l.ctx != nil {
		return l.ctx.Close()
	}
	return nil
}

// Connect opens a stage on its bulk USB interface
func Connect(cfg *Config, axes int) (*stage.Stage, error) {
	link, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	s, err := stage.New(link, axes)
	if err != nil {
		link.Close()
		return nil, err
	}
	return s, nil
}
