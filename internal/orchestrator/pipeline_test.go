package orchestrator

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/kzda/procwatch/internal/aggregate"
	"github.com/kzda/procwatch/internal/resolver"
)

func buildPacket(t *testing.T, srcIP, dstIP string, srcPort, dstPort uint16) gopacket.Packet {
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

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	payload := gopacket.Payload(make([]byte, 1000))
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp, payload))

	return gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
}

func TestIngestPacketAccumulatesKnownTuple(t *testing.T) {
	hub := aggregate.New(nil, logrus.New())
	watcher := resolver.NewWatcher(false)
	localAddrs := map[string]struct{}{"10.0.0.2": {}}

	pkt := buildPacket(t, "10.0.0.2", "1.2.3.4", 5000, 80)
	ingestPacket(hub, watcher, pkt, localAddrs)

	snap := hub.Tick()
	require.Len(t, snap.Records, 1)
	require.Equal(t, uint64(0), snap.Dropped)
	// 1000-byte payload plus the 20-byte TCP header.
	require.Equal(t, uint64(1020), snap.Records[0].Closed.Up)
}

func TestIngestPacketCountsUnkeyableAsDropped(t *testing.T) {
	hub := aggregate.New(nil, logrus.New())
	watcher := resolver.NewWatcher(false)
	localAddrs := map[string]struct{}{"9.9.9.9": {}} // neither side is local

	pkt := buildPacket(t, "10.0.0.2", "1.2.3.4", 5000, 80)
	ingestPacket(hub, watcher, pkt, localAddrs)

	snap := hub.Tick()
	require.Empty(t, snap.Records)
	require.Equal(t, uint64(1), snap.Dropped)
}

type fakeEnumerator struct {
	result map[aggregate.ConnectionKey]aggregate.ProcessInfo
}

func (f fakeEnumerator) Snapshot(context.Context) (map[aggregate.ConnectionKey]aggregate.ProcessInfo, error) {
	return f.result, nil
}

func TestRunEnumeratorAttachesOnEveryScan(t *testing.T) {
	hub := aggregate.New(nil, logrus.New())
	localAddrs := map[string]struct{}{"10.0.0.2": {}}
	pkt := buildPacket(t, "10.0.0.2", "1.2.3.4", 5000, 80)
	watcher := resolver.NewWatcher(false)
	ingestPacket(hub, watcher, pkt, localAddrs)

	key := aggregate.ConnectionKey{
		Proto:  aggregate.TCP,
		Local:  aggregate.Endpoint{IP: "10.0.0.2", Port: 5000},
		Remote: aggregate.Endpoint{IP: "1.2.3.4", Port: 80},
	}
	enumerator := fakeEnumerator{result: map[aggregate.ConnectionKey]aggregate.ProcessInfo{
		key: {PID: 42, Name: "curl"},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	runEnumerator(ctx, enumerator, hub, logrus.New())

	snap := hub.Tick()
	require.Len(t, snap.Records, 1)
	require.Equal(t, "curl", snap.Records[0].Process.Name)
}
