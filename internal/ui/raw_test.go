package ui

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kzda/procwatch/internal/aggregate"
)

// TestRawWriterRoundTrip checks the spec §8 round-trip law: raw-mode
// output parsed by a trivial splitter reproduces the underlying counters
// exactly.
func TestRawWriterRoundTrip(t *testing.T) {
	snap := aggregate.Snapshot{
		Tick: 7,
		Records: []aggregate.Record{
			{
				Key: aggregate.ConnectionKey{
					Proto:  aggregate.TCP,
					Local:  aggregate.Endpoint{IP: "10.0.0.2", Port: 5000},
					Remote: aggregate.Endpoint{IP: "1.2.3.4", Port: 80},
				},
				Process: aggregate.ProcessInfo{PID: 42, Name: "curl"},
				Closed:  aggregate.HistoryPoint{Up: 100000, Down: 250},
			},
			{
				Key: aggregate.ConnectionKey{
					Proto:  aggregate.UDP,
					Local:  aggregate.Endpoint{IP: "10.0.0.2", Port: 53000},
					Remote: aggregate.Endpoint{IP: "8.8.8.8", Port: 53},
				},
				Process: aggregate.UnknownProcess,
				Closed:  aggregate.HistoryPoint{Up: 60, Down: 0},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewRawWriter(&buf).WriteSnapshot(snap))

	scanner := bufio.NewScanner(&buf)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 2)

	for i, r := range snap.Records {
		fields := strings.Split(lines[i], "\t")
		require.Len(t, fields, 8)

		tick, err := strconv.ParseUint(fields[0], 10, 64)
		require.NoError(t, err)
		require.Equal(t, snap.Tick, tick)

		pid, err := strconv.ParseUint(fields[1], 10, 32)
		require.NoError(t, err)
		require.Equal(t, uint64(r.Process.PID), pid)

		require.Equal(t, r.Process.Name, fields[2])
		require.Equal(t, r.Key.Proto.String(), fields[3])
		require.Equal(t, r.Key.Local.String(), fields[4])
		require.Equal(t, r.Key.Remote.String(), fields[5])

		up, err := strconv.ParseUint(fields[6], 10, 64)
		require.NoError(t, err)
		require.Equal(t, r.Closed.Up, up)

		down, err := strconv.ParseUint(fields[7], 10, 64)
		require.NoError(t, err)
		require.Equal(t, r.Closed.Down, down)
	}
}
