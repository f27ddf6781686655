//go:build darwin

package platform

import (
	"bufio"
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"

	"github.com/kzda/procwatch/internal/aggregate"
)

// lsofEnumerator implements the lsof-based strategy from spec §4.2:
// invoke `lsof -nP -i -F pcPn` and parse its field-output record stream.
type lsofEnumerator struct{}

func newEnumerator() Enumerator {
	return &lsofEnumerator{}
}

func (e *lsofEnumerator) Snapshot(ctx context.Context) (map[aggregate.ConnectionKey]aggregate.ProcessInfo, error) {
	path, err := exec.LookPath("lsof")
	if err != nil {
		return map[aggregate.ConnectionKey]aggregate.ProcessInfo{}, ErrToolMissing
	}

	cmd := exec.CommandContext(ctx, path, "-nP", "-i", "-F", "pcPn")
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(out) == 0 {
			// lsof exits non-zero when it finds nothing to report; an
			// empty result set is not itself an enumerator failure.
			return map[aggregate.ConnectionKey]aggregate.ProcessInfo{}, nil
		}
	}

	return parseLsofFieldOutput(out), nil
}

func parseLsofFieldOutput(out []byte) map[aggregate.ConnectionKey]aggregate.ProcessInfo {
	result := make(map[aggregate.ConnectionKey]aggregate.ProcessInfo)

	var pid uint32
	var name string
	var proto aggregate.Protocol

	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		tag, value := line[0], line[1:]

		switch tag {
		case 'p':
			if n, err := strconv.Atoi(value); err == nil {
				pid = uint32(n)
			}
		case 'c':
			name = value
		case 'P':
			switch strings.ToUpper(value) {
			case "UDP":
				proto = aggregate.UDP
			default:
				proto = aggregate.TCP
			}
		case 'n':
			if key, ok := parseLsofAddress(value, proto); ok {
				if _, exists := result[key]; !exists {
					result[key] = aggregate.ProcessInfo{PID: pid, Name: name}
				}
			}
		}
	}
	return result
}

// parseLsofAddress parses the "n" field, which looks like
// "10.0.0.2:5000->1.2.3.4:80" for an established connection or
// "*:5000" for a listening socket.
func parseLsofAddress(value string, proto aggregate.Protocol) (aggregate.ConnectionKey, bool) {
	local, remote, hasRemote := strings.Cut(value, "->")

	localEP, ok := parseHostPort(local)
	if !ok {
		return aggregate.ConnectionKey{}, false
	}

	key := aggregate.ConnectionKey{Proto: proto, Local: localEP}
	if hasRemote {
		if remoteEP, ok := parseHostPort(remote); ok {
			key.Remote = remoteEP
		}
	}
	return key, true
}

func parseHostPort(s string) (aggregate.Endpoint, bool) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return aggregate.Endpoint{}, false
	}
	host := s[:idx]
	if host == "*" {
		host = "0.0.0.0"
	}
	port, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return aggregate.Endpoint{}, false
	}
	return aggregate.Endpoint{IP: host, Port: uint16(port)}, true
}
