// Package orchestrator brings up every other component in order,
// wires the channels between them, runs the tick clock, and tears
// everything down on shutdown, per spec §4.6.
package orchestrator

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kzda/procwatch/internal/aggregate"
	"github.com/kzda/procwatch/internal/capture"
	"github.com/kzda/procwatch/internal/config"
	"github.com/kzda/procwatch/internal/platform"
	"github.com/kzda/procwatch/internal/resolver"
)

const (
	tickInterval       = time.Second
	enumeratorInterval = time.Second
)

// Orchestrator owns the process's one run of the full pipeline:
// resolver, socket enumerator, capture, aggregation, renderer.
type Orchestrator struct {
	opts config.Options
	log  logrus.FieldLogger
}

// New builds an Orchestrator for opts. log is used for every component
// that doesn't have a more specific reason to log elsewhere.
func New(opts config.Options, log logrus.FieldLogger) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{opts: opts, log: log}
}

// Run brings up the pipeline and blocks until ctx is cancelled or a
// fatal component error occurs (spec §7's InterfaceOpen/CaptureFault).
// Socket-enumeration permission errors degrade gracefully rather than
// propagating here, per spec §7.
func (o *Orchestrator) Run(ctx context.Context) error {
	ifaceName := o.opts.Interface
	if ifaceName == "" {
		name, err := capture.DefaultInterface()
		if err != nil {
			return err
		}
		ifaceName = name
	}

	localAddrs, err := capture.LocalAddresses(ifaceName)
	if err != nil {
		return err
	}

	src, err := capture.Open(ifaceName, true)
	if err != nil {
		return err
	}
	defer src.Close()

	res := resolver.New(o.opts.DNSServer, o.opts.NoResolve, o.log)
	watcher := resolver.NewWatcher(o.opts.ShowDNS)
	hub := aggregate.New(res, o.log)
	enumerator := platform.New()

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		res.Run(gctx)
		return nil
	})
	group.Go(func() error {
		runEnumerator(gctx, enumerator, hub, o.log)
		return nil
	})
	group.Go(func() error {
		return runCapture(gctx, src, localAddrs, hub, watcher)
	})

	snapshots := make(chan aggregate.Snapshot)
	group.Go(func() error {
		runTicker(gctx, hub, snapshots)
		return nil
	})
	group.Go(func() error {
		return o.runRender(gctx, res, watcher, snapshots)
	})

	return group.Wait()
}
