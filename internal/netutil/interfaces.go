package netutil

import (
	"fmt"
	"net"
	"strings"

	"github.com/w3cp/cp-firmware/internal/model"
)

// Interface is the subset of a network interface needed to decide how the
// charge point is connected.
type Interface struct {
	Name     string
	Up       bool
	Loopback bool
	HasAddr  bool
}

// Usable reports whether the interface can carry traffic.
func (i Interface) Usable() bool {
	return i.Up && !i.Loopback && i.HasAddr
}

// ListInterfaces returns the host's network interfaces.
func ListInterfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	out := make([]Interface, 0, len(ifaces))
	for _, ifc := range ifaces {
		addrs, _ := ifc.Addrs()
		out = append(out, Interface{
			Name:     ifc.Name,
			Up:       ifc.Flags&net.FlagUp != 0,
			Loopback: ifc.Flags&net.FlagLoopback != 0,
			HasAddr:  len(addrs) > 0,
		})
	}
	return out, nil
}

// Classify maps a Linux interface name to a connection type.
func Classify(name string) model.ConnectionType {
	n := strings.ToLower(name)
	switch {
	case strings.HasPrefix(n, "eth"), strings.HasPrefix(n, "en"):
		return model.ConnectionTypeEthernet
	case strings.HasPrefix(n, "wlan"), strings.HasPrefix(n, "wl"):
		return model.ConnectionTypeWifi
	case strings.HasPrefix(n, "wwan"), strings.HasPrefix(n, "ppp"),
		strings.HasPrefix(n, "usb"), strings.HasPrefix(n, "rmnet"):
		return model.ConnectionTypeLTE
	default:
		return model.ConnectionTypeUnknown
	}
}

// DetectConnectionType picks the preferred usable uplink: ethernet, then
// wifi, then lte.
func DetectConnectionType(ifaces []Interface) model.ConnectionType {
	eth, wifi, lte := Readiness(ifaces)
	switch {
	case eth:
		return model.ConnectionTypeEthernet
	case wifi:
		return model.ConnectionTypeWifi
	case lte:
		return model.ConnectionTypeLTE
	default:
		return model.ConnectionTypeUnknown
	}
}

// Readiness reports which uplink kinds have at least one usable interface.
func Readiness(ifaces []Interface) (ethernet, wifi, lte bool) {
	for _, ifc := range ifaces {
		if !ifc.Usable() {
			continue
		}
		switch Classify(ifc.Name) {
		case model.ConnectionTypeEthernet:
			ethernet = true
		case model.ConnectionTypeWifi:
			wifi = true
		case model.ConnectionTypeLTE:
			lte = true
		}
	}
	return
}
