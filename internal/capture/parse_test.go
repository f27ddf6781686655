package capture

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"

	"github.com/kzda/procwatch/internal/aggregate"
)

func buildTCPPacket(t *testing.T, srcIP, dstIP string, srcPort, dstPort uint16, payloadLen int) gopacket.Packet {
	t.Helper()

	eth := &layers.Ethernet{EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.ParseIP(srcIP).To4(),
		DstIP:    net.ParseIP(dstIP).To4(),
	}
	tcp := &layers.TCP{SrcPort: layers.TCPPort(srcPort), DstPort: layers.TCPPort(dstPort)}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	payload := gopacket.Payload(make([]byte, payloadLen))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp, payload))

	return gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
}

func TestParseRoundTripsKnownTuple(t *testing.T) {
	pkt := buildTCPPacket(t, "10.0.0.2", "1.2.3.4", 5000, 80, 1000)
	localAddrs := map[string]struct{}{"10.0.0.2": {}}

	out, ok, dnsPayload := Parse(pkt, localAddrs)
	require.True(t, ok)
	require.Nil(t, dnsPayload)

	require.Equal(t, aggregate.TCP, out.Key.Proto)
	require.Equal(t, "10.0.0.2", out.Key.Local.IP)
	require.Equal(t, uint16(5000), out.Key.Local.Port)
	require.Equal(t, "1.2.3.4", out.Key.Remote.IP)
	require.Equal(t, uint16(80), out.Key.Remote.Port)
	require.Equal(t, aggregate.DirectionUp, out.Direction)
}

func TestParseUnknownDirectionDropped(t *testing.T) {
	pkt := buildTCPPacket(t, "10.0.0.2", "1.2.3.4", 5000, 80, 1000)
	localAddrs := map[string]struct{}{"9.9.9.9": {}}

	_, ok, _ := Parse(pkt, localAddrs)
	require.False(t, ok)
}
