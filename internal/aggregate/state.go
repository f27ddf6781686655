package aggregate

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Resolver is the subset of internal/resolver's interface the hub needs:
// enqueue a remote IP for background reverse-DNS lookup. Implemented
// here as an interface so aggregate never imports the resolver package
// directly (it only ever calls out through this one seam).
type Resolver interface {
	Enqueue(ip string)
}

type noopResolver struct{}

func (noopResolver) Enqueue(string) {}

// State is the shared aggregation hub described in spec §4.4. All
// exported methods are safe for concurrent use. Ingest holds the lock
// across a single-record mutation; Attach and Tick each hold it while
// walking every record.
type State struct {
	mu         sync.Mutex
	records    map[ConnectionKey]*record
	socketMap  map[ConnectionKey]ProcessInfo
	tickNum    uint64
	dropped    uint64 // atomic
	orphans    *orphanLog
	resolver   Resolver
	log        logrus.FieldLogger
}

// New constructs an empty aggregation hub. resolver may be nil, in
// which case remote IPs are simply never enqueued for resolution
// (equivalent to --no-resolve at the wiring level).
func New(resolver Resolver, log logrus.FieldLogger) *State {
	if resolver == nil {
		resolver = noopResolver{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &State{
		records:   make(map[ConnectionKey]*record),
		socketMap: make(map[ConnectionKey]ProcessInfo),
		orphans:   newOrphanLog(),
		resolver:  resolver,
		log:       log,
	}
}

// Ingest accumulates one packet's bytes into its connection's current
// interval. Unkeyable packets (direction unknown) are not passed here by
// the capture worker; they are counted as dropped at the capture layer
// and surfaced via IncrementDropped.
func (s *State) Ingest(pkt Packet) {
	if pkt.Direction == DirectionUnknown {
		s.IncrementDropped()
		return
	}

	s.mu.Lock()
	r, ok := s.records[pkt.Key]
	if !ok {
		r = newRecord(pkt.Key)
		if p, found := resolveFromSocketMap(pkt.Key, s.socketMap); found {
			r.attachProcess(p)
		}
		s.records[pkt.Key] = r
	}
	r.ingest(pkt.Length, pkt.Direction)
	s.mu.Unlock()
}

// IncrementDropped counts a packet that could not be keyed into a
// ConnectionKey at all (malformed, non-IP, or unknown direction).
func (s *State) IncrementDropped() {
	atomic.AddUint64(&s.dropped, 1)
}

// Attach replaces the current interval's socket-table view and attempts
// to resolve process identity for every record that doesn't have one
// yet. Unresolved remote IPs are enqueued for reverse DNS.
func (s *State) Attach(socketMap map[ConnectionKey]ProcessInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.socketMap = socketMap

	for key, r := range s.records {
		if r.hasProc {
			continue
		}
		if p, found := resolveFromSocketMap(key, socketMap); found {
			r.attachProcess(p)
			continue
		}
		if !s.orphans.observe(key) {
			if lookalike, info, found := findLookalike(key, socketMap); found {
				s.log.WithFields(logrus.Fields{
					"connection": key.String(),
					"lookalike":  lookalike.String(),
					"process":    info.Name,
				}).Debug("owns a similar looking connection, but its local ip doesn't match")
			} else {
				s.log.WithField("connection", key.String()).Debug("cannot determine which process owns this connection")
			}
		}
	}

	for key := range s.records {
		if key.Remote.IP != "" {
			s.resolver.Enqueue(key.Remote.IP)
		}
	}
}

// Tick holds the lock across every record: it advances every record's
// history ring, zeroes current counters, retires records idle for
// RetireAfterZeroIntervals consecutive intervals (leaving them out of
// the result), and returns an immutable Snapshot of what just closed.
func (s *State) Tick() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tickNum++

	out := make([]Record, 0, len(s.records))
	for key, r := range s.records {
		closed, retire := r.closeInterval()
		if retire {
			delete(s.records, key)
			continue
		}

		process := r.process
		if !r.hasProc {
			process = UnknownProcess
		}

		out = append(out, Record{
			Key:       key,
			Process:   process,
			Closed:    closed,
			TotalUp:   r.totalUp,
			TotalDown: r.totalDown,
			History:   r.historyCopy(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		ti := out[i].Closed.Up + out[i].Closed.Down
		tj := out[j].Closed.Up + out[j].Closed.Down
		return ti > tj
	})

	return Snapshot{
		Tick:    s.tickNum,
		Dropped: atomic.LoadUint64(&s.dropped),
		Records: out,
	}
}
