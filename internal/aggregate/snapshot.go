package aggregate

// Record is an immutable, per-frame view of one connection's state, safe
// to read from the UI goroutine without further locking.
type Record struct {
	Key     ConnectionKey
	Process ProcessInfo
	// Closed is the just-closed interval's counters.
	Closed HistoryPoint
	// TotalUp and TotalDown are integrated totals since the record was
	// created, never reset; the basis for -t/--total-utilization
	// (spec §4.5).
	TotalUp   uint64
	TotalDown uint64
	// History holds up to HistoryLength trailing intervals, oldest first,
	// including Closed as the last entry.
	History []HistoryPoint
}

// Snapshot is the read-only view handed to the UI once per tick. It never
// contains a half-updated record (spec §3 invariant).
type Snapshot struct {
	Tick    uint64
	Dropped uint64
	Records []Record
}
