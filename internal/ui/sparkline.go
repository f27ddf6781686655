package ui

import "github.com/kzda/procwatch/internal/aggregate"

// blocks are the eight-level Unicode block elements used to render an
// inline per-row sparkline inside a table cell, since termui's Table
// widget is a plain text grid and spec §4.5 wants a sparkline *column*,
// not a separate widget, on the processes and connections tables.
var blocks = []rune(" ▁▂▃▄▅▆▇█")

// renderSparkline draws the trailing min(width, len(history)) points of
// history (summing up+down per interval) as a block-character bar. The
// widest history ring (spec §13's H=300) only ever costs as many glyphs
// as the current terminal width allows; the rest of the ring is simply
// not read.
func renderSparkline(history []aggregate.HistoryPoint, width int) string {
	if width <= 0 {
		return ""
	}
	if len(history) > width {
		history = history[len(history)-width:]
	}

	var max uint64
	totals := make([]uint64, len(history))
	for i, h := range history {
		totals[i] = h.Up + h.Down
		if totals[i] > max {
			max = totals[i]
		}
	}

	out := make([]rune, len(totals))
	for i, v := range totals {
		if max == 0 {
			out[i] = blocks[0]
			continue
		}
		level := int(v * uint64(len(blocks)-1) / max)
		out[i] = blocks[level]
	}
	return string(out)
}
