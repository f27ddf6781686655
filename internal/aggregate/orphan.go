package aggregate

// orphanLog remembers which connection keys have already been reported
// as unattributable, so the orchestrator's logger doesn't repeat the
// same warning every tick. Bounded so a host with many short-lived
// unmatched connections can't grow it without limit.
type orphanLog struct {
	seen  map[ConnectionKey]struct{}
	order []ConnectionKey
	limit int
}

const defaultOrphanLogLimit = 10_000

func newOrphanLog() *orphanLog {
	return &orphanLog{
		seen:  make(map[ConnectionKey]struct{}),
		limit: defaultOrphanLogLimit,
	}
}

// observe reports whether key has already been logged as an orphan; if
// not, it records it and returns false so the caller knows to log it.
func (o *orphanLog) observe(key ConnectionKey) (alreadyKnown bool) {
	if _, ok := o.seen[key]; ok {
		return true
	}

	o.seen[key] = struct{}{}
	o.order = append(o.order, key)
	if len(o.order) > o.limit {
		oldest := o.order[0]
		o.order = o.order[1:]
		delete(o.seen, oldest)
	}
	return false
}

// findLookalike searches socketMap for an entry bound to the same
// protocol and local port as key but a different local IP: "owns a
// similar looking connection, but its local ip doesn't match" in the
// upstream implementation's terms. This distinguishes a likely
// misattribution (the sniffer's address guess landed on the wrong
// interface address) from a connection no process can be found for at
// all.
func findLookalike(key ConnectionKey, socketMap map[ConnectionKey]ProcessInfo) (ConnectionKey, ProcessInfo, bool) {
	for candidate, info := range socketMap {
		if candidate.Proto == key.Proto && candidate.Local.Port == key.Local.Port && candidate.Local.IP != key.Local.IP {
			return candidate, info, true
		}
	}
	return ConnectionKey{}, ProcessInfo{}, false
}
