package capture

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/kzda/procwatch/internal/aggregate"
)

// Parse decodes a raw packet into the aggregation hub's Packet
// descriptor. localAddrs is the capturing interface's address set,
// used for the up/down direction heuristic (spec §4.1). ok is false for
// anything that isn't a TCP or UDP segment over IPv4/IPv6, or whose
// direction can't be determined; callers must count those as dropped.
//
// When the packet is an outgoing UDP/53 datagram, dnsPayload holds the
// UDP payload for the --show-dns side stream; it is nil otherwise.
func Parse(pkt gopacket.Packet, localAddrs map[string]struct{}) (out aggregate.Packet, ok bool, dnsPayload []byte) {
	var (
		srcIP, dstIP string
		ipPayloadLen int
		proto        aggregate.Protocol
		srcPort      uint16
		dstPort      uint16
		haveL4       bool
	)

	if v4 := pkt.Layer(layers.LayerTypeIPv4); v4 != nil {
		ip := v4.(*layers.IPv4)
		srcIP, dstIP = ip.SrcIP.String(), ip.DstIP.String()
		ipPayloadLen = int(ip.Length) - int(ip.IHL)*4
	} else if v6 := pkt.Layer(layers.LayerTypeIPv6); v6 != nil {
		ip := v6.(*layers.IPv6)
		srcIP, dstIP = ip.SrcIP.String(), ip.DstIP.String()
		ipPayloadLen = int(ip.Length)
	} else {
		return out, false, nil
	}

	if tcp := pkt.Layer(layers.LayerTypeTCP); tcp != nil {
		t := tcp.(*layers.TCP)
		srcPort, dstPort = uint16(t.SrcPort), uint16(t.DstPort)
		proto = aggregate.TCP
		haveL4 = true
	} else if udp := pkt.Layer(layers.LayerTypeUDP); udp != nil {
		u := udp.(*layers.UDP)
		srcPort, dstPort = uint16(u.SrcPort), uint16(u.DstPort)
		proto = aggregate.UDP
		haveL4 = true
		if dstPort == 53 {
			dnsPayload = u.Payload
		}
	}

	if !haveL4 {
		return out, false, nil
	}

	direction := classifyDirection(srcIP, dstIP, localAddrs)
	if direction == aggregate.DirectionUnknown {
		return out, false, dnsPayload
	}

	src := aggregate.Endpoint{IP: srcIP, Port: srcPort}
	dst := aggregate.Endpoint{IP: dstIP, Port: dstPort}

	var key aggregate.ConnectionKey
	if direction == aggregate.DirectionUp {
		key = aggregate.ConnectionKey{Proto: proto, Local: src, Remote: dst}
	} else {
		key = aggregate.ConnectionKey{Proto: proto, Local: dst, Remote: src}
	}

	return aggregate.Packet{
		Key:       key,
		Length:    ipPayloadLen,
		Direction: direction,
	}, true, dnsPayload
}

// classifyDirection matches spec §4.1: up if src is a local address,
// down if dst is, otherwise unknown. A loopback packet where src==dst
// is local is treated as up so it's counted exactly once.
func classifyDirection(src, dst string, localAddrs map[string]struct{}) aggregate.Direction {
	_, srcLocal := localAddrs[src]
	_, dstLocal := localAddrs[dst]

	switch {
	case srcLocal && dstLocal:
		return aggregate.DirectionUp
	case srcLocal:
		return aggregate.DirectionUp
	case dstLocal:
		return aggregate.DirectionDown
	default:
		return aggregate.DirectionUnknown
	}
}
