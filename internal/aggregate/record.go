package aggregate

// HistoryLength is the number of trailing intervals kept per record for
// sparklines, chosen to fit the widest plausible terminal (see spec §3).
const HistoryLength = 300

// RetireAfterZeroIntervals (K) bounds memory: a record silent this many
// consecutive ticks is dropped.
const RetireAfterZeroIntervals = 5

// HistoryPoint is one closed interval's counters, used for sparklines.
type HistoryPoint struct {
	Up   uint64
	Down uint64
}

// record is the mutable per-connection state. It is never exposed
// directly to callers outside the package; Tick produces immutable
// Snapshot copies instead.
type record struct {
	key     ConnectionKey
	process ProcessInfo
	hasProc bool

	upBytes   uint64
	downBytes uint64

	// totalUp and totalDown accumulate since the record was created and
	// are never reset by closeInterval; they back -t/--total-utilization's
	// "integrated totals since start" (spec §4.5).
	totalUp   uint64
	totalDown uint64

	history    []HistoryPoint
	zeroStreak int
}

func newRecord(key ConnectionKey) *record {
	return &record{key: key}
}

func (r *record) ingest(length int, dir Direction) {
	switch dir {
	case DirectionUp:
		r.upBytes += uint64(length)
	case DirectionDown:
		r.downBytes += uint64(length)
	}
}

func (r *record) attachProcess(p ProcessInfo) {
	if r.hasProc {
		return
	}
	r.process = p
	r.hasProc = true
}

// closeInterval advances the history ring by one point for the
// just-finished interval and zeroes the live counters. It reports
// whether the record has now been idle for RetireAfterZeroIntervals
// consecutive intervals and should be retired.
func (r *record) closeInterval() (HistoryPoint, bool) {
	point := HistoryPoint{Up: r.upBytes, Down: r.downBytes}
	r.totalUp += point.Up
	r.totalDown += point.Down

	r.history = append(r.history, point)
	if len(r.history) > HistoryLength {
		r.history = r.history[len(r.history)-HistoryLength:]
	}

	if point.Up == 0 && point.Down == 0 {
		r.zeroStreak++
	} else {
		r.zeroStreak = 0
	}

	r.upBytes = 0
	r.downBytes = 0

	return point, r.zeroStreak >= RetireAfterZeroIntervals
}

func (r *record) historyCopy() []HistoryPoint {
	cp := make([]HistoryPoint, len(r.history))
	copy(cp, r.history)
	return cp
}
