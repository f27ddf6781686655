// Package capture implements the live capture source of spec §4.1: a
// lazy, cancellable sequence of parsed L3/L4 packet descriptors from a
// named interface. It is grounded on the teacher's eth0/netflow.go
// buildPcapHandler/captureDevice pair, generalized from a single
// TCP-only, IPv4-only filter to both TCP and UDP over both IP versions,
// and with packet parsing split out into Parse so capture and decoding
// stay decoupled per spec.
package capture

import (
	"context"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
)

const (
	snapshotLen  int32 = 65536
	captureTimeout    = time.Second
)

// Source wraps an open pcap handle for one interface.
type Source struct {
	handle     *pcap.Handle
	ifaceName  string
	promisc    bool
}

// Open starts a live capture on ifaceName. promisc requests promiscuous
// mode, honored only where the platform permits it (spec §4.1).
func Open(ifaceName string, promisc bool) (*Source, error) {
	handle, err := pcap.OpenLive(ifaceName, snapshotLen, promisc, captureTimeout)
	if err != nil {
		return nil, classifyOpenError(err)
	}

	// Only IP traffic carrying TCP or UDP payloads is ever yielded
	// (spec §4.1); restricting at the BPF filter avoids spending any
	// userspace parsing effort on traffic we'd discard anyway.
	if err := handle.SetBPFFilter("(ip or ip6) and (tcp or udp)"); err != nil {
		handle.Close()
		return nil, err
	}

	return &Source{handle: handle, ifaceName: ifaceName, promisc: promisc}, nil
}

func classifyOpenError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission denied") || strings.Contains(msg, "operation not permitted"):
		return ErrInterfacePermission
	case strings.Contains(msg, "no such device") || strings.Contains(msg, "not found"):
		return ErrInterfaceMissing
	case strings.Contains(msg, "busy") || strings.Contains(msg, "already"):
		return ErrInterfaceBusy
	default:
		return err
	}
}

// Close releases the capture handle.
func (s *Source) Close() {
	if s.handle != nil {
		s.handle.Close()
	}
}

// Packets streams raw decoded packets until ctx is cancelled, checking
// the cancellation signal at every packet boundary (spec §4.1
// "Suspension"). An unrecoverable read error closes the channel after
// sending ErrCaptureFault on errs.
func (s *Source) Packets(ctx context.Context) (<-chan gopacket.Packet, <-chan error) {
	out := make(chan gopacket.Packet, 1024)
	errs := make(chan error, 1)

	source := gopacket.NewPacketSource(s.handle, s.handle.LinkType())
	source.DecodeStreamsAsDatagrams = true

	go func() {
		defer close(out)
		defer close(errs)

		packets := source.Packets()
		for {
			select {
			case <-ctx.Done():
				return
			case pkt, ok := <-packets:
				if !ok {
					errs <- ErrCaptureFault
					return
				}
				// Packets that failed to decode are forwarded too: Parse
				// rejects those lacking a usable IP/TCP/UDP layer and the
				// caller counts them as dropped; never fatal here.
				select {
				case out <- pkt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, errs
}
