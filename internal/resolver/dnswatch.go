package resolver

import (
	"strings"

	"github.com/miekg/dns"
)

// Query is one observed outgoing DNS question, surfaced to the UI as a
// side stream when --show-dns is set (spec §4.3).
type Query struct {
	Name string
}

// Watcher decodes the question section of outgoing UDP/53 payloads.
// Parsing errors drop the record silently, per spec.
type Watcher struct {
	enabled bool
	queries chan Query
}

// NewWatcher builds a watcher. When enabled is false, Observe is a no-op
// and Queries never yields anything, matching the absence of --show-dns.
func NewWatcher(enabled bool) *Watcher {
	return &Watcher{
		enabled: enabled,
		queries: make(chan Query, 256),
	}
}

// Observe decodes a UDP/53 payload and, if it parses as a DNS query with
// a question section, publishes it. Call only when Enabled() is true.
func (w *Watcher) Observe(payload []byte) {
	if !w.enabled {
		return
	}

	msg := new(dns.Msg)
	if err := msg.Unpack(payload); err != nil {
		return
	}
	if len(msg.Question) == 0 {
		return
	}

	name := strings.TrimSuffix(msg.Question[0].Name, ".")
	select {
	case w.queries <- Query{Name: name}:
	default:
		// side stream is best-effort; drop rather than block capture.
	}
}

func (w *Watcher) Enabled() bool {
	return w.enabled
}

// Queries returns the channel the UI drains for observed DNS questions.
func (w *Watcher) Queries() <-chan Query {
	return w.queries
}
