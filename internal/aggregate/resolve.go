package aggregate

import "net"

// resolveFromSocketMap looks up which process owns key, trying the
// fallback chain the upstream implementation uses for get_proc_info:
// a direct match, then the IPv4-mapped-IPv6 / IPv6-mapped-IPv4 form of
// the local address, then a match against a listening socket bound to
// the unspecified address on the same port and protocol. Both the
// packet's own orientation and its swapped form are tried, since the
// sniffer's local/remote guess is itself a heuristic (spec §3).
func resolveFromSocketMap(key ConnectionKey, socketMap map[ConnectionKey]ProcessInfo) (ProcessInfo, bool) {
	for _, candidate := range []ConnectionKey{key, key.Swapped()} {
		if p, ok := socketMap[candidate]; ok {
			return p, true
		}
		if p, ok := lookupMappedAddr(candidate, socketMap); ok {
			return p, true
		}
		if p, ok := lookupUnspecified(candidate, socketMap); ok {
			return p, true
		}
	}
	return ProcessInfo{}, false
}

func lookupMappedAddr(key ConnectionKey, socketMap map[ConnectionKey]ProcessInfo) (ProcessInfo, bool) {
	ip := net.ParseIP(key.Local.IP)
	if ip == nil {
		return ProcessInfo{}, false
	}

	v4 := ip.To4()
	if v4 == nil {
		return ProcessInfo{}, false // plain IPv6, no mapped form
	}

	alt := key
	if key.Local.IP == v4.String() {
		alt.Local.IP = "::ffff:" + v4.String() // 4-in-6 mapped form
	} else {
		alt.Local.IP = v4.String() // mapped v6 address in IPv4 form
	}
	p, ok := socketMap[alt]
	return p, ok
}

func lookupUnspecified(key ConnectionKey, socketMap map[ConnectionKey]ProcessInfo) (ProcessInfo, bool) {
	for _, unspec := range []string{"0.0.0.0", "::"} {
		// A listener's remote side is empty (lsof, WinAPI UDP) or the
		// unspecified address with port 0 (procfs).
		for _, remote := range []Endpoint{{}, {IP: "0.0.0.0"}, {IP: "::"}} {
			alt := key
			alt.Local.IP = unspec
			alt.Remote = remote
			if p, ok := socketMap[alt]; ok {
				return p, true
			}
		}
	}
	return ProcessInfo{}, false
}
