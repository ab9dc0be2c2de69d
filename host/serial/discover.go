package serial

import (
	"errors"
	"fmt"
	"strconv"

	"go.bug.st/serial/enumerator"
)

// ErrNoDevice is returned when no port matches the requested USB IDs
var ErrNoDevice = errors.New("no matching serial device")

// USBID identifies a USB serial adapter
type USBID struct {
	Vendor  uint16
	Product uint16
}

func (id USBID) String() string {
	return fmt.Sprintf("VID=0x%04X PID=0x%04X", id.Vendor, id.Product)
}

// parseUSBID converts the enumerator's hex strings into a USBID. Ports
// that are not USB report empty strings and fail to parse.
func parseUSBID(port *enumerator.PortDetails) (USBID, bool) {
	if !port.IsUSB {
		return USBID{}, false
	}
	vid, err := strconv.ParseUint(port.VID, 16, 16)
	if err != nil {
		return USBID{}, false
	}
	pid, err := strconv.ParseUint(port.PID, 16, 16)
	if err != nil {
		return USBID{}, false
	}
	return USBID{Vendor: uint16(vid), Product: uint16(pid)}, true
}

// matchPorts returns the names of ports whose IDs are in ids
func matchPorts(ports []*enumerator.PortDetails, ids []USBID) []string {
	var names []string
	for _, port := range ports {
		id, ok := parseUSBID(port)
		if !ok {
			continue
		}
		for _, want := range ids {
			if id == want {
				names = append(names, port.Name)
				break
			}
		}
	}
	return names
}

// Discover returns the first serial port belonging to one of ids
func Discover(ids ...USBID) (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("failed to list serial ports: %w", err)
	}

	names := matchPorts(ports, ids)
	if len(names) == 0 {
		return "", fmt.Errorf("%w (%v)", ErrNoDevice, ids)
	}
	return names[0], nil
}
