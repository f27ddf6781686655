package orchestrator

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/sirupsen/logrus"

	"github.com/kzda/procwatch/internal/aggregate"
	"github.com/kzda/procwatch/internal/capture"
	"github.com/kzda/procwatch/internal/platform"
	"github.com/kzda/procwatch/internal/resolver"
	"github.com/kzda/procwatch/internal/ui"
)

// runEnumerator periodically scans the socket table and attaches the
// result to the aggregation hub. A scan error is logged and retried on
// the next interval rather than propagated: spec §7 has SocketEnum
// permission errors degrade the UI to "<unknown>" process columns
// instead of terminating the process.
func runEnumerator(ctx context.Context, enumerator platform.Enumerator, hub *aggregate.State, log logrus.FieldLogger) {
	ticker := time.NewTicker(enumeratorInterval)
	defer ticker.Stop()

	scan := func() {
		socketMap, err := enumerator.Snapshot(ctx)
		if err != nil {
			log.WithError(err).Debug("socket enumeration failed, process columns will show <unknown>")
			return
		}
		hub.Attach(socketMap)
	}

	scan()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			scan()
		}
	}
}

// runCapture drains parsed packets from src into hub until ctx is
// cancelled or the capture source reports a fault, which is fatal
// (spec §7 CaptureFault).
func runCapture(ctx context.Context, src *capture.Source, localAddrs map[string]struct{}, hub *aggregate.State, watcher *resolver.Watcher) error {
	packets, errs := src.Packets(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			if errors.Is(err, capture.ErrCaptureFault) {
				return err
			}
		case pkt, ok := <-packets:
			if !ok {
				return nil
			}
			ingestPacket(hub, watcher, pkt, localAddrs)
		}
	}
}

// ingestPacket parses one raw packet and feeds it into the hub,
// counting it as dropped when it can't be keyed (spec §3 invariant:
// "bytes not keyable are discarded and counted in a dropped metric").
func ingestPacket(hub *aggregate.State, watcher *resolver.Watcher, pkt gopacket.Packet, localAddrs map[string]struct{}) {
	out, ok, dnsPayload := capture.Parse(pkt, localAddrs)
	if !ok {
		hub.IncrementDropped()
	} else {
		hub.Ingest(out)
	}
	if dnsPayload != nil && watcher.Enabled() {
		watcher.Observe(dnsPayload)
	}
}

// runTicker closes one interval per tick and hands the snapshot to the
// renderer, blocking until it's consumed so raw mode never skips an
// interval's output.
func runTicker(ctx context.Context, hub *aggregate.State, snapshots chan<- aggregate.Snapshot) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	defer close(snapshots)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := hub.Tick()
			select {
			case snapshots <- snap:
			case <-ctx.Done():
				return
			}
		}
	}
}

// runRender dispatches to the raw-mode line writer or the interactive
// terminal UI depending on -r/--raw (spec §4.5 "Raw mode").
func (o *Orchestrator) runRender(ctx context.Context, res *resolver.Resolver, watcher *resolver.Watcher, snapshots <-chan aggregate.Snapshot) error {
	if o.opts.Raw {
		w := ui.NewRawWriter(os.Stdout)
		for {
			select {
			case <-ctx.Done():
				return nil
			case snap, ok := <-snapshots:
				if !ok {
					return nil
				}
				if err := w.WriteSnapshot(snap); err != nil {
					return err
				}
			}
		}
	}

	app := ui.NewApp(o.opts, res, o.log)
	return app.Run(ctx, snapshots, watcher.Queries())
}
