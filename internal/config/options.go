// Package config holds the single immutable options value produced
// once from parsed CLI flags and the environment. Nothing downstream of
// the orchestrator touches os.Args or flag state directly; everything
// is threaded through an Options value (spec §1's "parsed options
// value" collaborator).
package config

import (
	"fmt"
	"os"

	"github.com/spf13/cast"

	"github.com/kzda/procwatch/internal/humanize"
)

// Focus restricts the UI to a single table when set.
type Focus uint8

const (
	FocusAll Focus = iota
	FocusProcesses
	FocusConnections
	FocusAddresses
)

// Options is the fully-resolved configuration the orchestrator and every
// component it wires receive by value.
type Options struct {
	Interface         string
	Raw               bool
	NoResolve         bool
	ShowDNS           bool
	DNSServer         string
	LogTo             string
	Verbosity         int // positive raises, negative lowers, relative to Info
	Focus             Focus
	UnitFamily        humanize.Family
	TotalUtilization  bool
	NoColor           bool
}

// FromFlags builds an Options from raw flag values as cobra hands them
// over, applying environment fallbacks (NO_COLOR, and
// PROCWATCH_DNS_SERVER when -d/--dns-server is empty). The
// PROCWATCH_DNS_SERVER value is passed through cast.ToStringE; flag
// values are used as given.
func FromFlags(iface string, raw, noResolve, showDNS bool, dnsServer, logTo string, verbosity int, focus Focus, unitFamily string, totalUtilization bool) (Options, error) {
	family, ok := humanize.Parse(unitFamily)
	if !ok {
		return Options{}, fmt.Errorf("invalid unit family %q: must be one of bin-bytes, bin-bits, si-bytes, si-bits", unitFamily)
	}

	server := dnsServer
	if server == "" {
		if envServer, err := cast.ToStringE(os.Getenv("PROCWATCH_DNS_SERVER")); err == nil {
			server = envServer
		}
	}

	return Options{
		Interface:        iface,
		Raw:              raw,
		NoResolve:        noResolve,
		ShowDNS:          showDNS,
		DNSServer:        server,
		LogTo:            logTo,
		Verbosity:        verbosity,
		Focus:            focus,
		UnitFamily:       family,
		TotalUtilization: totalUtilization,
		NoColor:          os.Getenv("NO_COLOR") != "",
	}, nil
}
