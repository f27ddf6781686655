package capture

import "errors"

// These three classify InterfaceOpen failures from spec §7's taxonomy.
var (
	ErrInterfacePermission = errors.New("capture: permission denied opening interface")
	ErrInterfaceMissing    = errors.New("capture: interface not found")
	ErrInterfaceBusy       = errors.New("capture: interface busy")
)

// ErrCaptureFault marks an unrecoverable fault during capture, which is
// fatal and triggers orderly shutdown per spec §7.
var ErrCaptureFault = errors.New("capture: unrecoverable capture fault")
