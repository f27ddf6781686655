// Package platform implements the socket enumerator capability
// described in spec §4.2: a periodic snapshot of open sockets mapped to
// the process that owns them. Three platform-specific strategies share
// this one contract; the concrete implementation is chosen once at
// startup via Go build tags, so no dynamic dispatch is needed after
// selection (spec §9 "platform polymorphism").
package platform

import (
	"context"
	"errors"

	"github.com/kzda/procwatch/internal/aggregate"
)

// ErrPermission is returned when the enumerator could not read the
// kernel's socket tables at all (spec SocketEnum{PermissionDenied}).
var ErrPermission = errors.New("platform: permission denied reading socket table")

// ErrToolMissing is returned when an enumerator backed by an external
// tool (lsof) could not find that tool on PATH.
var ErrToolMissing = errors.New("platform: required external tool not found")

// Enumerator produces a snapshot mapping connection keys to the process
// that owns them. Implementations must tolerate being raced by reality:
// a socket may close between the scan and the caller reading the map.
type Enumerator interface {
	Snapshot(ctx context.Context) (map[aggregate.ConnectionKey]aggregate.ProcessInfo, error)
}

// New selects the capability set for the running GOOS. Each platform
// file in this package provides its own newEnumerator(); this is the
// only function the orchestrator calls.
func New() Enumerator {
	return newEnumerator()
}
