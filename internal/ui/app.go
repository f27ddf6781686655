// Package ui renders the interactive terminal view of spec §4.5: three
// tables (processes, connections, remote addresses) drawn from the
// aggregation hub's per-tick Snapshot, plus the raw-mode line writer that
// replaces it under -r/--raw.
package ui

import (
	"context"
	"fmt"
	"strconv"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/sirupsen/logrus"

	"github.com/kzda/procwatch/internal/aggregate"
	"github.com/kzda/procwatch/internal/config"
	"github.com/kzda/procwatch/internal/resolver"
)

const (
	sparklineWidth = 20
	maxDNSLines    = 50
)

// App owns the termui widgets and the small amount of interactive state
// (focus, pause) that keyboard input mutates.
type App struct {
	opts     config.Options
	resolver Resolver
	log      logrus.FieldLogger

	focus  config.Focus
	paused bool

	processTable *widgets.Table
	connTable    *widgets.Table
	addrTable    *widgets.Table
	dnsList      *widgets.List

	dnsLines []string
}

// NewApp builds the renderer. resolver may be nil, in which case remote
// addresses are always shown as bare IPs.
func NewApp(opts config.Options, res Resolver, log logrus.FieldLogger) *App {
	if log == nil {
		log = logrus.StandardLogger()
	}
	a := &App{
		opts:         opts,
		resolver:     res,
		log:          log,
		focus:        opts.Focus,
		processTable: newTable(" processes "),
		connTable:    newTable(" connections "),
		addrTable:    newTable(" remote addresses "),
		dnsList:      widgets.NewList(),
	}
	a.dnsList.Title = " dns queries "
	return a
}

func newTable(title string) *widgets.Table {
	t := widgets.NewTable()
	t.Title = title
	t.TextStyle = ui.NewStyle(ui.ColorWhite)
	t.RowSeparator = false
	return t
}

// Run drives the terminal until ctx is cancelled or the user quits with
// q/Ctrl-C (spec §4.5 "Input"). snapshots delivers one Snapshot per tick;
// queries delivers observed DNS questions and may be nil when
// --show-dns is not set.
func (a *App) Run(ctx context.Context, snapshots <-chan aggregate.Snapshot, queries <-chan resolver.Query) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("ui: init terminal: %w", err)
	}
	defer ui.Close()

	grid := a.layout()
	ui.Render(grid)

	events := ui.PollEvents()
	var last aggregate.Snapshot
	haveSnapshot := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case e, ok := <-events:
			if !ok {
				return nil
			}
			switch {
			case e.Type == ui.KeyboardEvent && (e.ID == "q" || e.ID == "<C-c>"):
				return nil
			case e.Type == ui.KeyboardEvent && e.ID == "<Space>":
				a.paused = !a.paused
			case e.Type == ui.KeyboardEvent && e.ID == "<Tab>" && a.opts.Focus == config.FocusAll:
				a.focus = nextFocus(a.focus)
				grid = a.layout()
				if haveSnapshot {
					a.render(last)
				}
				ui.Render(grid)
			case e.Type == ui.ResizeEvent:
				payload := e.Payload.(ui.Resize)
				grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				ui.Render(grid)
			}

		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			last, haveSnapshot = snap, true
			if a.paused {
				continue
			}
			a.render(snap)
			ui.Render(grid)

		case q, ok := <-queries:
			if !ok {
				queries = nil
				continue
			}
			a.pushDNSQuery(q.Name)
			ui.Render(grid)
		}
	}
}

func nextFocus(f config.Focus) config.Focus {
	switch f {
	case config.FocusAll:
		return config.FocusProcesses
	case config.FocusProcesses:
		return config.FocusConnections
	case config.FocusConnections:
		return config.FocusAddresses
	default:
		return config.FocusAll
	}
}

// layout rebuilds the grid for the current focus (spec §4.5 "Flags
// restricting to a single table override layout"). Called once at
// startup and again whenever focus changes.
func (a *App) layout() *ui.Grid {
	grid := ui.NewGrid()
	w, h := ui.TerminalDimensions()
	grid.SetRect(0, 0, w, h)

	switch a.focus {
	case config.FocusProcesses:
		grid.Set(ui.NewRow(1.0, ui.NewCol(1.0, a.processTable)))
	case config.FocusConnections:
		grid.Set(ui.NewRow(1.0, ui.NewCol(1.0, a.connTable)))
	case config.FocusAddresses:
		grid.Set(ui.NewRow(1.0, ui.NewCol(1.0, a.addrTable)))
	default:
		if a.opts.ShowDNS {
			grid.Set(
				ui.NewRow(0.45, ui.NewCol(0.5, a.processTable), ui.NewCol(0.5, a.connTable)),
				ui.NewRow(0.35, ui.NewCol(1.0, a.addrTable)),
				ui.NewRow(0.2, ui.NewCol(1.0, a.dnsList)),
			)
		} else {
			grid.Set(
				ui.NewRow(0.6, ui.NewCol(0.5, a.processTable), ui.NewCol(0.5, a.connTable)),
				ui.NewRow(0.4, ui.NewCol(1.0, a.addrTable)),
			)
		}
	}
	return grid
}

func (a *App) render(snap aggregate.Snapshot) {
	procRows, connRows, addrRows := BuildRows(snap, a.resolver)
	a.processTable.Rows = processTableRows(procRows, a.opts)
	a.connTable.Rows = connTableRows(connRows, a.opts)
	a.addrTable.Rows = addrTableRows(addrRows, a.opts)
}

func (a *App) pushDNSQuery(name string) {
	a.dnsLines = append(a.dnsLines, name)
	if len(a.dnsLines) > maxDNSLines {
		a.dnsLines = a.dnsLines[len(a.dnsLines)-maxDNSLines:]
	}
	a.dnsList.Rows = a.dnsLines
}

func processTableRows(rows []ProcessRow, opts config.Options) [][]string {
	out := [][]string{{"pid", "process", "up", "down", "conns", "history"}}
	for _, r := range rows {
		out = append(out, []string{
			strconv.FormatUint(uint64(r.PID), 10),
			r.Name,
			Format(opts.UnitFamily, r.Up, r.TotalUp, opts.TotalUtilization),
			Format(opts.UnitFamily, r.Down, r.TotalDown, opts.TotalUtilization),
			strconv.Itoa(r.Connections),
			renderSparkline(r.Sparkline, sparklineWidth),
		})
	}
	return out
}

func connTableRows(rows []ConnectionRow, opts config.Options) [][]string {
	out := [][]string{{"process", "proto", "local", "remote", "up", "down", "history"}}
	for _, r := range rows {
		out = append(out, []string{
			r.Process,
			r.Proto,
			r.Local,
			r.Remote,
			Format(opts.UnitFamily, r.Up, r.TotalUp, opts.TotalUtilization),
			Format(opts.UnitFamily, r.Down, r.TotalDown, opts.TotalUtilization),
			renderSparkline(r.Sparkline, sparklineWidth),
		})
	}
	return out
}

func addrTableRows(rows []AddressRow, opts config.Options) [][]string {
	out := [][]string{{"host", "up", "down"}}
	for _, r := range rows {
		out = append(out, []string{
			r.Host,
			Format(opts.UnitFamily, r.Up, r.TotalUp, opts.TotalUtilization),
			Format(opts.UnitFamily, r.Down, r.TotalDown, opts.TotalUtilization),
		})
	}
	return out
}
