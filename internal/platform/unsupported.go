//go:build !linux && !darwin && !windows

package platform

import (
	"context"

	"github.com/kzda/procwatch/internal/aggregate"
)

// unsupportedEnumerator backs GOOS values none of the three strategies
// in spec §4.2 cover. It degrades the way a SocketEnum{PermissionDenied}
// does: empty maps forever, so the UI shows every connection under
// <unknown> instead of failing the whole process.
type unsupportedEnumerator struct{}

func newEnumerator() Enumerator {
	return &unsupportedEnumerator{}
}

func (unsupportedEnumerator) Snapshot(ctx context.Context) (map[aggregate.ConnectionKey]aggregate.ProcessInfo, error) {
	return map[aggregate.ConnectionKey]aggregate.ProcessInfo{}, ErrPermission
}
