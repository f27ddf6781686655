package ui

import (
	"sort"

	"github.com/kzda/procwatch/internal/aggregate"
	"github.com/kzda/procwatch/internal/humanize"
)

// Resolver is the read side of internal/resolver's cache: a hostname
// for an IP if one has been resolved, else ok=false (spec §4.3 lookup).
type Resolver interface {
	Lookup(ip string) (string, bool)
}

// ProcessRow is one line of the processes table (spec §4.5). Up/Down are
// the just-closed interval's rates; TotalUp/TotalDown are integrated
// totals since each underlying connection was first observed, used
// under -t/--total-utilization.
type ProcessRow struct {
	Name        string
	PID         uint32
	Up          uint64
	Down        uint64
	TotalUp     uint64
	TotalDown   uint64
	Connections int
	Sparkline   []aggregate.HistoryPoint
}

// ConnectionRow is one line of the connections table.
type ConnectionRow struct {
	Process   string
	Proto     string
	Local     string
	Remote    string
	Up        uint64
	Down      uint64
	TotalUp   uint64
	TotalDown uint64
	Sparkline []aggregate.HistoryPoint
}

// AddressRow is one line of the remote-addresses table.
type AddressRow struct {
	Host      string
	Up        uint64
	Down      uint64
	TotalUp   uint64
	TotalDown uint64
}

// BuildRows computes the display rows for all three tables from a
// snapshot, in descending rate order (spec §4.5 "Responsive layout").
func BuildRows(snap aggregate.Snapshot, resolver Resolver) ([]ProcessRow, []ConnectionRow, []AddressRow) {
	return buildProcessRows(snap), buildConnectionRows(snap, resolver), buildAddressRows(snap, resolver)
}

func buildProcessRows(snap aggregate.Snapshot) []ProcessRow {
	byPID := make(map[uint32]*ProcessRow)
	order := make([]uint32, 0)

	for _, r := range snap.Records {
		row, ok := byPID[r.Process.PID]
		if !ok {
			row = &ProcessRow{Name: r.Process.Name, PID: r.Process.PID}
			byPID[r.Process.PID] = row
			order = append(order, r.Process.PID)
		}
		row.Up += r.Closed.Up
		row.Down += r.Closed.Down
		row.TotalUp += r.TotalUp
		row.TotalDown += r.TotalDown
		row.Connections++
		row.Sparkline = sumHistory(row.Sparkline, r.History)
	}

	rows := make([]ProcessRow, 0, len(order))
	for _, pid := range order {
		rows = append(rows, *byPID[pid])
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Up+rows[i].Down > rows[j].Up+rows[j].Down
	})
	return rows
}

func buildConnectionRows(snap aggregate.Snapshot, resolver Resolver) []ConnectionRow {
	rows := make([]ConnectionRow, 0, len(snap.Records))
	for _, r := range snap.Records {
		rows = append(rows, ConnectionRow{
			Process:   r.Process.Name,
			Proto:     r.Key.Proto.String(),
			Local:     r.Key.Local.String(),
			Remote:    hostOrIP(r.Key.Remote.IP, r.Key.Remote.Port, resolver),
			Up:        r.Closed.Up,
			Down:      r.Closed.Down,
			TotalUp:   r.TotalUp,
			TotalDown: r.TotalDown,
			Sparkline: r.History,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Up+rows[i].Down > rows[j].Up+rows[j].Down
	})
	return rows
}

func buildAddressRows(snap aggregate.Snapshot, resolver Resolver) []AddressRow {
	byIP := make(map[string]*AddressRow)
	order := make([]string, 0)

	for _, r := range snap.Records {
		ip := r.Key.Remote.IP
		if ip == "" {
			continue
		}
		row, ok := byIP[ip]
		if !ok {
			row = &AddressRow{Host: hostOrIP(ip, 0, resolver)}
			byIP[ip] = row
			order = append(order, ip)
		}
		row.Up += r.Closed.Up
		row.Down += r.Closed.Down
		row.TotalUp += r.TotalUp
		row.TotalDown += r.TotalDown
	}

	rows := make([]AddressRow, 0, len(order))
	for _, ip := range order {
		rows = append(rows, *byIP[ip])
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Up+rows[i].Down > rows[j].Up+rows[j].Down
	})
	return rows
}

func hostOrIP(ip string, _ uint16, resolver Resolver) string {
	if resolver != nil {
		if name, ok := resolver.Lookup(ip); ok {
			return name
		}
	}
	return ip
}

// sumHistory adds b into a element-wise, aligning both slices on their
// trailing (most recent) end since they may have different lengths
// early in a record's life.
func sumHistory(a, b []aggregate.HistoryPoint) []aggregate.HistoryPoint {
	if len(b) > len(a) {
		grown := make([]aggregate.HistoryPoint, len(b))
		copy(grown[len(b)-len(a):], a)
		a = grown
	}
	offset := len(a) - len(b)
	for i, h := range b {
		a[offset+i].Up += h.Up
		a[offset+i].Down += h.Down
	}
	return a
}

// Format renders either rate (the just-closed interval) or total (the
// integrated count since start) under the configured unit family,
// picking total when cumulative is set (-t/--total-utilization, spec
// §4.5 "Cumulative mode replaces rates with integrated totals since
// start").
func Format(family humanize.Family, rate, total uint64, cumulative bool) string {
	if cumulative {
		return family.Total(total)
	}
	return family.Rate(rate)
}
