package serial

import (
	"testing"

	"go.bug.st/serial/enumerator"
)

func TestMatchPorts(t *testing.T) {
	ports := []*enumerator.PortDetails{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001"},
		{Name: "/dev/ttyUSB1", IsUSB: true, VID: "zz", PID: "6001"},
		{Name: "/dev/ttyACM0", IsUSB: true, VID: "03EB", PID: "2044"},
	}

	got := matchPorts(ports, []USBID{{Vendor: 0x03eb, Product: 0x2044}, {Vendor: 0x0403, Product: 0x6001}})
	want := []string{"/dev/ttyUSB0", "/dev/ttyACM0"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Match %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestMatchPortsNone(t *testing.T) {
	ports := []*enumerator.PortDetails{{Name: "/dev/ttyACM0", IsUSB: true, VID: "1234", PID: "5678"}}
	if got := matchPorts(ports, []USBID{{Vendor: 0x03eb, Product: 0x2044}}); len(got) != 0 {
		t.Errorf("Expected no match, got %v", got)
	}
}

func TestUSBIDString(t *testing.T) {
	id := USBID{Vendor: 0x03eb, Product: 0x2044}
	if id.String() != "VID=0x03EB PID=0x2044" {
		t.Errorf("Unexpected string %q", id.String())
	}
}
