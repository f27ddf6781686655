package ui

import (
	"fmt"
	"io"

	"github.com/kzda/procwatch/internal/aggregate"
)

// RawWriter is the line-oriented renderer substituted for the terminal UI
// under -r/--raw (spec §4.5 "Raw mode", §6 "Raw mode line format"). It
// keeps the rest of the pipeline unchanged: the orchestrator feeds it
// the same per-tick Snapshot the interactive renderer would receive.
type RawWriter struct {
	w io.Writer
}

// NewRawWriter builds a raw-mode renderer writing to w (normally stdout).
func NewRawWriter(w io.Writer) *RawWriter {
	return &RawWriter{w: w}
}

// WriteSnapshot emits one line per (pid, connection) tuple in the
// snapshot: "interval_index\tpid\tprocess\tproto\tlocal\tremote\tup_bytes\tdown_bytes\n".
// The trivial splitter round-trip required by spec §8 is exact because
// every field here is either an integer or a string with no embedded
// tabs or newlines (IPs, ports and process names never contain either).
func (rw *RawWriter) WriteSnapshot(snap aggregate.Snapshot) error {
	for _, r := range snap.Records {
		_, err := fmt.Fprintf(rw.w, "%d\t%d\t%s\t%s\t%s\t%s\t%d\t%d\n",
			snap.Tick,
			r.Process.PID,
			r.Process.Name,
			r.Key.Proto.String(),
			r.Key.Local.String(),
			r.Key.Remote.String(),
			r.Closed.Up,
			r.Closed.Down,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
