package capture

import "net"

// DefaultInterface picks the first non-loopback up interface with an
// IPv4 address, per spec §6's flag default for -i/--interface.
func DefaultInterface() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if ipNet.IP.To4() != nil {
				return iface.Name, nil
			}
		}
	}
	return "", ErrInterfaceMissing
}

// LocalAddresses returns the set of IP address strings assigned to
// iface, used by the direction heuristic in Parse (spec §4.1).
func LocalAddresses(ifaceName string) (map[string]struct{}, error) {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, ErrInterfaceMissing
	}

	addrs, err := iface.Addrs()
	if err != nil {
		return nil, err
	}

	out := make(map[string]struct{}, len(addrs))
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		out[ipNet.IP.String()] = struct{}{}
	}
	return out, nil
}
