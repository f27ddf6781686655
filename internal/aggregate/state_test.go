package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() ConnectionKey {
	return ConnectionKey{
		Proto:  TCP,
		Local:  Endpoint{IP: "10.0.0.2", Port: 5000},
		Remote: Endpoint{IP: "1.2.3.4", Port: 80},
	}
}

// Scenario 1 from spec §8: 100 packets of length 1000 up, attributed to
// pid 42, should show up as a single row with up=100000, down=0.
func TestIngestAttributesToProcess(t *testing.T) {
	s := New(nil, nil)
	key := testKey()

	s.Attach(map[ConnectionKey]ProcessInfo{
		key: {PID: 42, Name: "curl"},
	})

	for i := 0; i < 100; i++ {
		s.Ingest(Packet{Key: key, Length: 1000, Direction: DirectionUp})
	}

	snap := s.Tick()
	require.Len(t, snap.Records, 1)
	assert.Equal(t, uint32(42), snap.Records[0].Process.PID)
	assert.Equal(t, uint64(100000), snap.Records[0].Closed.Up)
	assert.Equal(t, uint64(0), snap.Records[0].Closed.Down)
}

// Scenario 2: empty socket map throughout attributes to <unknown>, and a
// later Attach does not double-count the bytes already closed.
func TestUnknownThenLateAttribution(t *testing.T) {
	s := New(nil, nil)
	key := testKey()

	for i := 0; i < 100; i++ {
		s.Ingest(Packet{Key: key, Length: 1000, Direction: DirectionUp})
	}

	first := s.Tick()
	require.Len(t, first.Records, 1)
	assert.Equal(t, UnknownProcess, first.Records[0].Process)
	assert.Equal(t, uint64(100000), first.Records[0].Closed.Up)

	s.Attach(map[ConnectionKey]ProcessInfo{key: {PID: 42, Name: "curl"}})
	s.Ingest(Packet{Key: key, Length: 500, Direction: DirectionUp})

	second := s.Tick()
	require.Len(t, second.Records, 1)
	assert.Equal(t, uint32(42), second.Records[0].Process.PID)
	assert.Equal(t, uint64(500), second.Records[0].Closed.Up)
}

// Invariant 1: total bytes across closed intervals equals observed length.
func TestSumConservedAcrossIntervals(t *testing.T) {
	s := New(nil, nil)
	key := testKey()

	var total uint64
	for tick := 0; tick < 5; tick++ {
		for i := 0; i < 10; i++ {
			s.Ingest(Packet{Key: key, Length: 123, Direction: DirectionUp})
			total += 123
		}
		s.Tick()
	}

	// Re-derive the sum by replaying identical traffic and summing
	// Closed across every tick.
	s2 := New(nil, nil)
	var summed uint64
	for tick := 0; tick < 5; tick++ {
		for i := 0; i < 10; i++ {
			s2.Ingest(Packet{Key: key, Length: 123, Direction: DirectionUp})
		}
		snap := s2.Tick()
		for _, r := range snap.Records {
			summed += r.Closed.Up + r.Closed.Down
		}
	}
	assert.Equal(t, total, summed)
}

// Invariant 2, retirement: a record survives fewer than K idle ticks and
// is absent from the snapshot of the K-th consecutive idle tick.
func TestIdleRecordRetiredAfterK(t *testing.T) {
	s := New(nil, nil)
	key := testKey()

	s.Ingest(Packet{Key: key, Length: 1, Direction: DirectionUp})
	s.Tick() // one non-zero interval

	for i := 0; i < RetireAfterZeroIntervals-1; i++ {
		snap := s.Tick()
		require.Len(t, snap.Records, 1, "record must survive fewer than K idle ticks")
	}

	snap := s.Tick()
	assert.Len(t, snap.Records, 0, "record idle for K consecutive ticks must be retired")
}

// Unkeyable packets are dropped and counted, never attributed.
func TestUnknownDirectionDropped(t *testing.T) {
	s := New(nil, nil)
	s.Ingest(Packet{Key: testKey(), Length: 999, Direction: DirectionUnknown})

	snap := s.Tick()
	assert.Len(t, snap.Records, 0)
	assert.Equal(t, uint64(1), snap.Dropped)
}

// Two processes sharing a listening port (SO_REUSEPORT) must keep
// independent counters and not collapse into one row.
func TestReusePortKeepsSeparateProcesses(t *testing.T) {
	s := New(nil, nil)

	keyA := ConnectionKey{Proto: TCP, Local: Endpoint{IP: "10.0.0.2", Port: 443}, Remote: Endpoint{IP: "1.2.3.4", Port: 55000}}
	keyB := ConnectionKey{Proto: TCP, Local: Endpoint{IP: "10.0.0.2", Port: 443}, Remote: Endpoint{IP: "1.2.3.5", Port: 55001}}

	s.Attach(map[ConnectionKey]ProcessInfo{
		keyA: {PID: 10, Name: "srv-a"},
		keyB: {PID: 11, Name: "srv-b"},
	})

	for i := 0; i < 10; i++ {
		s.Ingest(Packet{Key: keyA, Length: 100, Direction: DirectionDown})
		s.Ingest(Packet{Key: keyB, Length: 100, Direction: DirectionDown})
	}

	snap := s.Tick()
	require.Len(t, snap.Records, 2)

	pids := map[uint32]uint64{}
	for _, r := range snap.Records {
		pids[r.Process.PID] = r.Closed.Down
	}
	assert.Equal(t, uint64(1000), pids[10])
	assert.Equal(t, uint64(1000), pids[11])
}
