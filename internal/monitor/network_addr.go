package monitor

import (
	"context"
	"fmt"
	"net"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// InterfaceAddrs holds the IPv4 and IPv6 addresses of an interface.
type InterfaceAddrs struct {
	IPv4 []string
	IPv6 []string
}

// AddressReader lists interface addresses through gopsutil.
type AddressReader struct {
	interfaces func(ctx context.Context) (psnet.InterfaceStatList, error)
}

// NewAddressReader creates an AddressReader backed by the live system.
func NewAddressReader() *AddressReader {
	return &AddressReader{interfaces: psnet.InterfacesWithContext}
}

// Read returns the addresses assigned to device.
func (r *AddressReader) Read(ctx context.Context, device string) (InterfaceAddrs, error) {
	list, err := r.interfaces(ctx)
	if err != nil {
		return InterfaceAddrs{}, NewComponentError(ErrorSourceNetwork, fmt.Errorf("listing interfaces: %w", err))
	}

	for _, iface := range list {
		if iface.Name != device {
			continue
		}
		addrs := InterfaceAddrs{}
		for _, a := range iface.Addrs {
			ip, _, err := net.ParseCIDR(a.Addr)
			if err != nil {
				continue
			}
			if ip.To4() != nil {
				addrs.IPv4 = append(addrs.IPv4, ip.String())
			} else if !ip.IsLinkLocalUnicast() {
				addrs.IPv6 = append(addrs.IPv6, ip.String())
			}
		}
		return addrs, nil
	}
	return InterfaceAddrs{}, NewComponentError(ErrorSourceNetwork, fmt.Errorf("device %q: %w", device, ErrNotAvailable))
}
