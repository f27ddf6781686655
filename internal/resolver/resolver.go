// Package resolver performs best-effort reverse DNS resolution on its
// own asynchronous lifecycle, never blocking the capture or aggregation
// paths that enqueue work for it (spec §4.3, §9 "resolver backpressure
// must be a drop, not a block").
package resolver

import (
	"context"
	"net"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

const (
	// failedCooldown bounds how often a Failed entry is retried (spec §3).
	failedCooldown = 60 * time.Second
	// pendingTTL is generous insurance against a worker crashing mid-
	// lookup and leaving an IP permanently marked Pending.
	pendingTTL = 30 * time.Second
	queryTimeout = 2 * time.Second
	defaultWorkers = 8
	queueSize      = 4096
)

type state uint8

const (
	statePending state = iota
	stateResolved
	stateFailed
)

type entry struct {
	state state
	name  string
}

// Resolver exposes enqueue/lookup and runs its own worker pool. The
// zero value is not usable; construct with New.
type Resolver struct {
	cache   *gocache.Cache
	queue   chan string
	server  string // "" means use the system resolver configuration
	inert   bool
	log     logrus.FieldLogger
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds a resolver. If noResolve is true the component is inert:
// Enqueue is a no-op and Lookup always reports not-found, matching
// --no-resolve (spec §4.3). server overrides the system default when
// non-empty (-d/--dns-server).
func New(server string, noResolve bool, log logrus.FieldLogger) *Resolver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := &Resolver{
		cache:  gocache.New(5*time.Minute, 10*time.Minute),
		queue:  make(chan string, queueSize),
		server: server,
		inert:  noResolve,
		log:    log,
		done:   make(chan struct{}),
	}
	return r
}

// Run starts the worker pool. It returns once ctx is cancelled and every
// worker has drained.
func (r *Resolver) Run(ctx context.Context) {
	defer close(r.done)
	if r.inert {
		<-ctx.Done()
		return
	}

	workerCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	var active int
	results := make(chan struct{}, defaultWorkers)
	for i := 0; i < defaultWorkers; i++ {
		active++
		go func() {
			defer func() { results <- struct{}{} }()
			r.worker(workerCtx)
		}()
	}
	for i := 0; i < active; i++ {
		<-results
	}
}

func (r *Resolver) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ip := <-r.queue:
			name, err := r.reverseLookup(ctx, ip)
			if err != nil {
				r.cache.Set(ip, entry{state: stateFailed}, failedCooldown)
				continue
			}
			r.cache.Set(ip, entry{state: stateResolved, name: name}, gocache.NoExpiration)
		}
	}
}

// Enqueue schedules ip for background resolution. An IP already Pending
// or Resolved, or Failed within its cooldown, is not re-enqueued. If the
// worker queue is full the request is silently dropped; it will be
// re-attempted the next time the aggregation hub observes the IP.
func (r *Resolver) Enqueue(ip string) {
	if r.inert || ip == "" {
		return
	}
	if _, found := r.cache.Get(ip); found {
		return
	}

	r.cache.Set(ip, entry{state: statePending}, pendingTTL)
	select {
	case r.queue <- ip:
	default:
		r.cache.Delete(ip)
		r.log.WithField("ip", ip).Debug("dns resolver queue full, dropping enqueue")
	}
}

// Lookup returns the resolved hostname for ip, if any. It never blocks.
func (r *Resolver) Lookup(ip string) (string, bool) {
	v, found := r.cache.Get(ip)
	if !found {
		return "", false
	}
	e := v.(entry)
	if e.state != stateResolved {
		return "", false
	}
	return e.name, true
}

func (r *Resolver) reverseLookup(ctx context.Context, ip string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if r.server == "" {
		names, err := net.DefaultResolver.LookupAddr(ctx, ip)
		if err != nil || len(names) == 0 {
			return "", err
		}
		return strings.TrimSuffix(names[0], "."), nil
	}

	reverse, err := dns.ReverseAddr(ip)
	if err != nil {
		return "", err
	}

	msg := new(dns.Msg)
	msg.SetQuestion(reverse, dns.TypePTR)

	client := new(dns.Client)
	client.Timeout = queryTimeout

	resp, _, err := client.ExchangeContext(ctx, msg, net.JoinHostPort(r.server, "53"))
	if err != nil {
		return "", err
	}
	for _, ans := range resp.Answer {
		if ptr, ok := ans.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, "."), nil
		}
	}
	return "", errNoPTR
}
