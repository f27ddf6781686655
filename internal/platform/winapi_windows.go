//go:build windows

package platform

import (
	"context"
	"fmt"
	"net"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/kzda/procwatch/internal/aggregate"
)

// winapiEnumerator implements the WinAPI-based strategy from spec §4.2:
// GetExtendedTcpTable/GetExtendedUdpTable, which return pid directly, so
// no separate inode-matching pass is needed the way procfs requires.
type winapiEnumerator struct {
	iphlpapi          *windows.LazyDLL
	getExtendedTCPTable *windows.LazyProc
	getExtendedUDPTable *windows.LazyProc
}

func newEnumerator() Enumerator {
	dll := windows.NewLazySystemDLL("iphlpapi.dll")
	return &winapiEnumerator{
		iphlpapi:            dll,
		getExtendedTCPTable: dll.NewProc("GetExtendedTcpTable"),
		getExtendedUDPTable: dll.NewProc("GetExtendedUdpTable"),
	}
}

const (
	afInet              = 2
	tcpTableOwnerPIDAll = 5
	udpTableOwnerPID    = 1
)

func (e *winapiEnumerator) Snapshot(ctx context.Context) (map[aggregate.ConnectionKey]aggregate.ProcessInfo, error) {
	result := make(map[aggregate.ConnectionKey]aggregate.ProcessInfo)

	if err := e.snapshotTCP(result); err != nil {
		return result, ErrPermission
	}
	if err := e.snapshotUDP(result); err != nil {
		return result, ErrPermission
	}
	return result, nil
}

// mibTCPRowOwnerPID mirrors MIB_TCPROW_OWNER_PID.
type mibTCPRowOwnerPID struct {
	State      uint32
	LocalAddr  uint32
	LocalPort  uint32
	RemoteAddr uint32
	RemotePort uint32
	OwningPID  uint32
}

// mibUDPRowOwnerPID mirrors MIB_UDPROW_OWNER_PID.
type mibUDPRowOwnerPID struct {
	LocalAddr uint32
	LocalPort uint32
	OwningPID uint32
}

func (e *winapiEnumerator) snapshotTCP(out map[aggregate.ConnectionKey]aggregate.ProcessInfo) error {
	var size uint32
	e.getExtendedTCPTable.Call(0, uintptr(unsafe.Pointer(&size)), 0, afInet, tcpTableOwnerPIDAll, 0)
	if size == 0 {
		return nil
	}

	buf := make([]byte, size)
	ret, _, _ := e.getExtendedTCPTable.Call(
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(unsafe.Pointer(&size)),
		0, afInet, tcpTableOwnerPIDAll, 0,
	)
	if ret != uintptr(windows.NO_ERROR) {
		return syscall.Errno(ret)
	}

	numEntries := *(*uint32)(unsafe.Pointer(&buf[0]))
	rowSize := unsafe.Sizeof(mibTCPRowOwnerPID{})
	base := uintptr(unsafe.Pointer(&buf[0])) + unsafe.Sizeof(numEntries)

	for i := uint32(0); i < numEntries; i++ {
		row := (*mibTCPRowOwnerPID)(unsafe.Pointer(base + uintptr(i)*rowSize))
		key := aggregate.ConnectionKey{
			Proto:  aggregate.TCP,
			Local:  endpointFromNet(row.LocalAddr, row.LocalPort),
			Remote: endpointFromNet(row.RemoteAddr, row.RemotePort),
		}
		pid := row.OwningPID
		if _, exists := out[key]; !exists {
			out[key] = aggregate.ProcessInfo{PID: pid, Name: processNameByPID(pid)}
		}
	}
	return nil
}

func (e *winapiEnumerator) snapshotUDP(out map[aggregate.ConnectionKey]aggregate.ProcessInfo) error {
	var size uint32
	e.getExtendedUDPTable.Call(0, uintptr(unsafe.Pointer(&size)), 0, afInet, udpTableOwnerPID, 0)
	if size == 0 {
		return nil
	}

	buf := make([]byte, size)
	ret, _, _ := e.getExtendedUDPTable.Call(
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(unsafe.Pointer(&size)),
		0, afInet, udpTableOwnerPID, 0,
	)
	if ret != uintptr(windows.NO_ERROR) {
		return syscall.Errno(ret)
	}

	numEntries := *(*uint32)(unsafe.Pointer(&buf[0]))
	rowSize := unsafe.Sizeof(mibUDPRowOwnerPID{})
	base := uintptr(unsafe.Pointer(&buf[0])) + unsafe.Sizeof(numEntries)

	for i := uint32(0); i < numEntries; i++ {
		row := (*mibUDPRowOwnerPID)(unsafe.Pointer(base + uintptr(i)*rowSize))
		key := aggregate.ConnectionKey{
			Proto: aggregate.UDP,
			Local: endpointFromNet(row.LocalAddr, row.LocalPort),
		}
		pid := row.OwningPID
		if _, exists := out[key]; !exists {
			out[key] = aggregate.ProcessInfo{PID: pid, Name: processNameByPID(pid)}
		}
	}
	return nil
}

func endpointFromNet(addr, port uint32) aggregate.Endpoint {
	ip := make(net.IP, 4)
	ip[0] = byte(addr)
	ip[1] = byte(addr >> 8)
	ip[2] = byte(addr >> 16)
	ip[3] = byte(addr >> 24)
	// ports in these tables are stored big-endian in the low 16 bits.
	p := uint16(port>>8) | uint16(port<<8)
	return aggregate.Endpoint{IP: ip.String(), Port: p}
}

func processNameByPID(pid uint32) string {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return "<unknown>"
	}
	defer windows.CloseHandle(handle)

	var buf [windows.MAX_PATH]uint16
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(handle, 0, &buf[0], &size); err != nil {
		return "<unknown>"
	}
	full := windows.UTF16ToString(buf[:size])
	for i := len(full) - 1; i >= 0; i-- {
		if full[i] == '\\' {
			return full[i+1:]
		}
	}
	return fmt.Sprintf("pid-%d", pid)
}
